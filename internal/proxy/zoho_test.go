package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilexum-group/supportkit/internal/models"
)

func newTestDesk(t *testing.T, handler http.HandlerFunc) *ZohoDesk {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewZohoDesk(server.URL, "org-1", StaticToken("tok"), server.Client(), nil)
}

func TestZohoDesk_CreateTicket(t *testing.T) {
	var got map[string]any
	desk := newTestDesk(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tickets", r.URL.Path)
		assert.Equal(t, "Zoho-oauthtoken tok", r.Header.Get("Authorization"))
		assert.Equal(t, "org-1", r.Header.Get("orgId"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"id":"1892000000042001","ticketNumber":"101"}`)
	})
	desk.DepartmentID = "dep-9"
	desk.ContactID = "contact-3"

	id, err := desk.CreateTicket(context.Background(), NewTicket{Subject: "s", Description: "d"})
	require.NoError(t, err)
	assert.Equal(t, "1892000000042001", id)
	assert.Equal(t, map[string]any{
		"subject":      "s",
		"description":  "d",
		"departmentId": "dep-9",
		"contactId":    "contact-3",
	}, got)
}

func TestZohoDesk_CreateTicketWithCustomer(t *testing.T) {
	var got map[string]any
	desk := newTestDesk(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"data":{"id":77}}`)
	})
	desk.ContactID = "contact-3"

	id, err := desk.CreateTicket(context.Background(), NewTicket{
		Subject:  "s",
		Customer: &Customer{Email: "ana@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "77", id)
	assert.NotContains(t, got, "contactId")
	assert.Equal(t, map[string]any{"email": "ana@example.com", "lastName": "ana@example.com"}, got["contact"])
}

func TestZohoDesk_IDLocations(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"id":"A"}`, "A"},
		{`{"ticket":{"id":"T"}}`, "T"},
		{`{"response":{"id":"R"}}`, "R"},
		{`{"result":{"id":"S"}}`, "S"},
		{`{"data":{"id":"D"},"result":{"id":"S"}}`, "D"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			desk := newTestDesk(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})
			id, err := desk.CreateTicket(context.Background(), NewTicket{Subject: "s"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestZohoDesk_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"message", http.StatusUnprocessableEntity, `{"errorCode":"INVALID_DATA","message":"departmentId is invalid"}`, "departmentId is invalid"},
		{"error", http.StatusUnauthorized, `{"error":"invalid_token"}`, "invalid_token"},
		{"status text", http.StatusServiceUnavailable, `maintenance`, "Service Unavailable"},
		{"no id", http.StatusOK, `{"status":"created"}`, `No ticket id in response: {"status":"created"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desk := newTestDesk(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := desk.CreateTicket(context.Background(), NewTicket{Subject: "s"})

			var deskErr *DeskError
			require.ErrorAs(t, err, &deskErr)
			assert.Equal(t, tt.wantMsg, deskErr.Message)
		})
	}
}

func TestZohoDesk_MissingCredentials(t *testing.T) {
	var hits int
	desk := newTestDesk(t, func(http.ResponseWriter, *http.Request) { hits++ })

	desk.tokens = StaticToken("")
	_, err := desk.CreateTicket(context.Background(), NewTicket{Subject: "s"})
	assert.True(t, errors.Is(err, ErrNoToken))

	desk.tokens = StaticToken("tok")
	desk.OrgID = ""
	_, err = desk.CreateTicket(context.Background(), NewTicket{Subject: "s"})
	assert.Error(t, err)

	var deskErr *DeskError
	assert.False(t, errors.As(err, &deskErr))
	assert.Zero(t, hits)
}

func TestZohoDesk_AddAttachment(t *testing.T) {
	var filename, data string
	desk := newTestDesk(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tickets/T-1/attachments", r.URL.Path)
		assert.Equal(t, "org-1", r.Header.Get("orgId"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		raw, _ := io.ReadAll(file)
		filename, data = header.Filename, string(raw)
		_, _ = io.WriteString(w, `{"id":"att-1"}`)
	})

	err := desk.AddAttachment(context.Background(), "T-1", models.Attachment{Name: "logs.json", Data: []byte("{}")})
	require.NoError(t, err)
	assert.Equal(t, "logs.json", filename)
	assert.Equal(t, "{}", data)

	err = desk.AddAttachment(context.Background(), "T-1", models.Attachment{Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, "file", filename)
}
