package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ilexum-group/supportkit/internal/models"
	"github.com/ilexum-group/supportkit/internal/ticket"
)

type fakeDesk struct {
	mu          sync.Mutex
	tickets     []NewTicket
	attachments []models.Attachment
	createErr   error
	attachErr   error
}

func (d *fakeDesk) CreateTicket(_ context.Context, t NewTicket) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return "", d.createErr
	}
	d.tickets = append(d.tickets, t)
	return fmt.Sprintf("Z-%d", len(d.tickets)), nil
}

func (d *fakeDesk) AddAttachment(_ context.Context, _ string, f models.Attachment) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.attachErr != nil {
		return d.attachErr
	}
	d.attachments = append(d.attachments, f)
	return nil
}

type formFile struct {
	field, name, contentType, data string
}

func multipartBody(t *testing.T, fields map[string]string, files ...formFile) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.name)}
		h["Content-Type"] = []string{f.contentType}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.data))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func postTicket(t *testing.T, h http.Handler, fields map[string]string, files ...formFile) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, files...)
	req := httptest.NewRequest(http.MethodPost, TicketsPath, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error
}

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	ledger, err := OpenLedger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

func TestCreateTicket_Success(t *testing.T) {
	desk := &fakeDesk{}
	ledger := newLedger(t)
	srv := NewServer(Options{}, desk, ledger, nil)

	rec := postTicket(t, srv,
		map[string]string{"subject": "Login fails", "description": "details"},
		formFile{"files", "a.png", "image/png", "A"},
		formFile{"screens", "b.png", "image/png", "B"},
		formFile{"files", "support-logs-1.json", "application/json", "{}"},
	)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp createTicketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Z-1", resp.TicketID)
	assert.Equal(t, "Ticket created successfully", resp.Message)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	require.Len(t, desk.tickets, 1)
	assert.Equal(t, "Login fails", desk.tickets[0].Subject)
	assert.Nil(t, desk.tickets[0].Customer)

	names := []string{}
	for _, a := range desk.attachments {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"a.png", "b.png", "support-logs-1.json"}, names)
	assert.Equal(t, "application/json", desk.attachments[2].ContentType)

	entries, err := ledger.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Z-1", entries[0].TicketID)
	assert.Equal(t, 3, entries[0].AttachmentCount)
}

func TestCreateTicket_Customer(t *testing.T) {
	desk := &fakeDesk{}
	srv := NewServer(Options{}, desk, nil, nil)

	rec := postTicket(t, srv, map[string]string{
		"subject":  "s",
		"customer": `{"email":"ana@example.com","firstName":"Ana"}`,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, desk.tickets[0].Customer)
	assert.Equal(t, "ana@example.com", desk.tickets[0].Customer.Email)
}

func TestCreateTicket_ValidationErrors(t *testing.T) {
	raw := strings.Repeat("x", 300)
	tests := []struct {
		name       string
		production bool
		fields     map[string]string
		wantCode   string
		wantDetail bool
	}{
		{"missing subject", false, map[string]string{"description": "d"}, CodeSubjectRequired, false},
		{"blank subject", false, map[string]string{"subject": "  "}, CodeSubjectRequired, false},
		{"invalid customer", false, map[string]string{"subject": "s", "customer": raw}, CodeInvalidCustomer, true},
		{"invalid customer in production", true, map[string]string{"subject": "s", "customer": raw}, CodeInvalidCustomer, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desk := &fakeDesk{}
			srv := NewServer(Options{Production: tt.production}, desk, nil, nil)

			rec := postTicket(t, srv, tt.fields)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeEnvelope(t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotEmpty(t, body.Message)
			if tt.wantDetail {
				require.NotNil(t, body.Details)
				assert.Len(t, body.Details["raw"], 200)
			} else {
				assert.Nil(t, body.Details)
			}
			assert.Empty(t, desk.tickets)
		})
	}
}

func TestCreateTicket_NotMultipart(t *testing.T) {
	srv := NewServer(Options{}, &fakeDesk{}, nil, nil)
	req := httptest.NewRequest(http.MethodPost, TicketsPath, strings.NewReader(`{"subject":"s"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidForm, decodeEnvelope(t, rec).Code)
}

func TestCreateTicket_PayloadTooLarge(t *testing.T) {
	srv := NewServer(Options{MaxUploadBytes: 1024}, &fakeDesk{}, nil, nil)
	rec := postTicket(t, srv, map[string]string{"subject": "s"},
		formFile{"files", "big.bin", "application/octet-stream", strings.Repeat("z", 4096)})

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, CodePayloadTooLarge, decodeEnvelope(t, rec).Code)
}

func TestCreateTicket_OversizedFieldRejected(t *testing.T) {
	desk := &fakeDesk{}
	srv := NewServer(Options{}, desk, nil, nil)
	rec := postTicket(t, srv, map[string]string{
		"subject":     "s",
		"description": strings.Repeat("d", maxFieldBytes+1),
	})

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, CodePayloadTooLarge, decodeEnvelope(t, rec).Code)
	assert.Empty(t, desk.tickets)

	rec = postTicket(t, srv, map[string]string{
		"subject":     "s",
		"description": strings.Repeat("d", maxFieldBytes),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, desk.tickets, 1)
	assert.Len(t, desk.tickets[0].Description, maxFieldBytes)
}

func TestCreateTicket_DeskFailures(t *testing.T) {
	tests := []struct {
		name        string
		production  bool
		desk        *fakeDesk
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "desk rejects ticket",
			desk:        &fakeDesk{createErr: &DeskError{Op: "create ticket", StatusCode: 422, Message: "departmentId is invalid"}},
			wantStatus:  http.StatusBadGateway,
			wantCode:    CodeExternalService,
			wantMessage: "departmentId is invalid",
		},
		{
			name:        "attachment rejected",
			desk:        &fakeDesk{attachErr: &DeskError{Op: "upload attachment", StatusCode: 413, Message: "too big"}},
			wantStatus:  http.StatusBadGateway,
			wantCode:    CodeExternalService,
			wantMessage: "too big",
		},
		{
			name:        "missing token",
			desk:        &fakeDesk{createErr: fmt.Errorf("failed to get access token: %w", ErrNoToken)},
			wantStatus:  http.StatusInternalServerError,
			wantCode:    CodeInternal,
			wantMessage: "failed to get access token: missing help desk access token",
		},
		{
			name:        "missing token in production",
			production:  true,
			desk:        &fakeDesk{createErr: errors.New("secret path /etc/zoho")},
			wantStatus:  http.StatusInternalServerError,
			wantCode:    CodeInternal,
			wantMessage: "Internal server error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(Options{Production: tt.production}, tt.desk, nil, nil)
			rec := postTicket(t, srv, map[string]string{"subject": "s"},
				formFile{"files", "a.png", "image/png", "A"})

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeEnvelope(t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMessage, body.Message)
		})
	}
}

func TestHealthAndNotFound(t *testing.T) {
	srv := NewServer(Options{}, &fakeDesk{}, nil, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"NOT_FOUND","message":"Route not found"}}`, rec.Body.String())
}

func TestHealthReportsLastTicket(t *testing.T) {
	ledger := newLedger(t)
	srv := NewServer(Options{}, &fakeDesk{}, ledger, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, nil))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	entry, err := ledger.Record(context.Background(), "Z-42", "Printer on fire", 0)
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"status":"ok","lastTicket":{"ticketId":"Z-42","createdAt":"`+entry.CreatedAt.Format(time.RFC3339Nano)+`"}}`,
		rec.Body.String())
}

func TestRateLimit(t *testing.T) {
	srv := NewServer(Options{RateLimit: 0.001, RateBurst: 1}, &fakeDesk{}, nil, nil)

	first := postTicket(t, srv, map[string]string{"subject": "one"})
	assert.Equal(t, http.StatusOK, first.Code)

	second := postTicket(t, srv, map[string]string{"subject": "two"})
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, CodeRateLimited, decodeEnvelope(t, second).Code)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	srv := NewServer(Options{}, &fakeDesk{}, nil, zap.New(core))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	responses := logs.FilterMessage("HTTP response").All()
	require.Len(t, responses, 1)
	assert.Equal(t, zapcore.WarnLevel, responses[0].Level)
	fields := responses[0].ContextMap()
	assert.EqualValues(t, 404, fields["status"])
	assert.Equal(t, rec.Header().Get(RequestIDHeader), fields["request_id"])
}

type panickingDesk struct{ fakeDesk }

func (*panickingDesk) CreateTicket(context.Context, NewTicket) (string, error) { panic("boom") }

func TestRecovery(t *testing.T) {
	srv := NewServer(Options{Production: true}, &panickingDesk{}, nil, nil)
	rec := postTicket(t, srv, map[string]string{"subject": "s"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decodeEnvelope(t, rec).Message)
}

func TestSubmitterAgainstProxy(t *testing.T) {
	desk := &fakeDesk{}
	server := httptest.NewServer(NewServer(Options{}, desk, nil, nil))
	defer server.Close()

	submitter := ticket.NewSubmitter(server.URL, server.Client())
	id, err := submitter.Submit("Crash on save", "it crashed", []models.Attachment{
		{Name: "shot.png", ContentType: "image/png", Data: []byte("png")},
		{Name: "support-logs-1.json", ContentType: "application/json", Data: []byte(`{"consoleLogs":[]}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, "Z-1", id)
	require.Len(t, desk.attachments, 2)
	assert.Equal(t, "image/png", desk.attachments[0].ContentType)

	_, err = submitter.Submit("", "no subject", nil)
	var ext *ticket.ExternalSubmissionError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, http.StatusBadRequest, ext.StatusCode)
	assert.Equal(t, "subject is required", ext.Message)
}
