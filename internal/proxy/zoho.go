package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/ilexum-group/supportkit/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultDeskURL is the Zoho Desk API origin
const DefaultDeskURL = "https://desk.zoho.com"

// DeskError is a non-2xx answer from the help desk
type DeskError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *DeskError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// ZohoDesk is a Desk backed by the Zoho Desk REST API
type ZohoDesk struct {
	BaseURL      string
	OrgID        string
	DepartmentID string
	ContactID    string

	tokens TokenSource
	client *http.Client
	logger *zap.Logger
}

// NewZohoDesk creates a Zoho Desk client. A nil client gets a 30 second timeout.
func NewZohoDesk(baseURL, orgID string, tokens TokenSource, client *http.Client, logger *zap.Logger) *ZohoDesk {
	if baseURL == "" {
		baseURL = DefaultDeskURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZohoDesk{
		BaseURL: strings.TrimRight(baseURL, "/"),
		OrgID:   orgID,
		tokens:  tokens,
		client:  client,
		logger:  logger.Named("zoho"),
	}
}

type createTicketRequest struct {
	Subject      string         `json:"subject"`
	Description  string         `json:"description"`
	DepartmentID string         `json:"departmentId,omitempty"`
	ContactID    string         `json:"contactId,omitempty"`
	Contact      *createContact `json:"contact,omitempty"`
}

type createContact struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
}

// CreateTicket implements Desk
func (z *ZohoDesk) CreateTicket(ctx context.Context, ticket NewTicket) (string, error) {
	body := createTicketRequest{
		Subject:      ticket.Subject,
		Description:  ticket.Description,
		DepartmentID: z.DepartmentID,
		ContactID:    z.ContactID,
	}
	if c := ticket.Customer; c != nil && c.Email != "" {
		lastName := c.LastName
		if lastName == "" {
			lastName = c.Email
		}
		body.ContactID = ""
		body.Contact = &createContact{Email: c.Email, FirstName: c.FirstName, LastName: lastName, Phone: c.Phone}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode ticket: %w", err)
	}

	z.logger.Info("Creating ticket",
		zap.String("orgId", z.OrgID),
		zap.String("departmentId", orIfEmpty(z.DepartmentID, "(not set)")),
		zap.String("subject", truncate(ticket.Subject, 50)))

	req, err := z.newRequest(ctx, http.MethodPost, "/api/v1/tickets", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	fields, err := z.do(req, "create ticket")
	if err != nil {
		return "", err
	}

	id, ok := extractID(fields)
	if !ok {
		raw, _ := json.Marshal(fields)
		z.logger.Error("No ticket id in response", zap.ByteString("body", raw))
		return "", &DeskError{Op: "create ticket", StatusCode: http.StatusOK,
			Message: "No ticket id in response: " + truncate(string(raw), 200)}
	}
	z.logger.Info("Ticket created", zap.String("ticketId", id))
	return id, nil
}

// AddAttachment implements Desk
func (z *ZohoDesk) AddAttachment(ctx context.Context, ticketID string, file models.Attachment) error {
	name := file.Name
	if name == "" {
		name = "file"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("failed to encode attachment: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return fmt.Errorf("failed to encode attachment: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to encode attachment: %w", err)
	}

	z.logger.Info("Uploading attachment", zap.String("filename", name), zap.String("ticketId", ticketID))
	req, err := z.newRequest(ctx, http.MethodPost, "/api/v1/tickets/"+ticketID+"/attachments", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	if _, err := z.do(req, "upload attachment "+name); err != nil {
		return err
	}
	return nil
}

func (z *ZohoDesk) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if z.OrgID == "" {
		return nil, fmt.Errorf("missing help desk organization id")
	}
	token, err := z.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, z.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	req.Header.Set("orgId", z.OrgID)
	return req, nil
}

// do sends req and decodes a JSON object body. Non-2xx answers become a *DeskError.
func (z *ZohoDesk) do(req *http.Request, op string) (map[string]any, error) {
	resp, err := z.client.Do(req)
	if err != nil {
		return nil, &DeskError{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DeskError{Op: op, StatusCode: resp.StatusCode, Message: err.Error()}
	}

	fields := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil || fields == nil {
		fields = map[string]any{}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		z.logger.Error("Help desk error response",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(raw), 300)))
		return nil, &DeskError{Op: op, StatusCode: resp.StatusCode, Message: deskMessage(resp, fields)}
	}
	return fields, nil
}

func deskMessage(resp *http.Response, fields map[string]any) string {
	for _, key := range []string{"message", "error"} {
		if msg, ok := fields[key].(string); ok && msg != "" {
			return msg
		}
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return "status " + strconv.Itoa(resp.StatusCode)
}

// extractID looks for the created ticket id in the places the API has used for it
func extractID(fields map[string]any) (string, bool) {
	candidates := []any{fields["id"]}
	for _, key := range []string{"data", "ticket", "response", "result"} {
		if nested, ok := fields[key].(map[string]any); ok {
			candidates = append(candidates, nested["id"])
		}
	}
	for _, c := range candidates {
		switch id := c.(type) {
		case string:
			if id != "" {
				return id, true
			}
		case interface{ String() string }:
			if s := id.String(); s != "" {
				return s, true
			}
		case float64:
			return strconv.FormatFloat(id, 'f', -1, 64), true
		}
	}
	return "", false
}

func orIfEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
