package ticket

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/ilexum-group/supportkit/internal/models"
	"github.com/ilexum-group/supportkit/internal/utils"
)

const (
	// TicketsPath is the proxy endpoint that creates tickets
	TicketsPath = "/api/zoho/tickets"
	// DefaultProxyPort is the port the bundled proxy listens on
	DefaultProxyPort = 3001
	// DefaultTimeout bounds a submission; there is no other way to cancel one
	DefaultTimeout = 2 * time.Minute

	userAgent       = "SupportKit-Client/1.0"
	maxErrorBodyLog = 300
)

// DefaultBaseURL is the proxy base used when none is configured
func DefaultBaseURL(port int) string {
	if port <= 0 {
		port = DefaultProxyPort
	}
	return fmt.Sprintf("http://localhost:%d", port)
}

// Submitter sends assembled tickets to the proxy
type Submitter struct {
	baseURL string
	client  *http.Client
}

// NewSubmitter creates a Submitter for the proxy at baseURL. An empty baseURL targets the
// local proxy on the default port; a nil client gets DefaultTimeout and the default transport.
func NewSubmitter(baseURL string, client *http.Client) *Submitter {
	if baseURL == "" {
		baseURL = DefaultBaseURL(DefaultProxyPort)
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Submitter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// URL returns the endpoint tickets are posted to
func (s *Submitter) URL() string {
	return s.baseURL + TicketsPath
}

// Submit posts one multipart request and returns the id of the created ticket.
// It never retries.
func (s *Submitter) Submit(subject, description string, attachments []models.Attachment) (string, error) {
	names := make([]string, 0, len(attachments))
	for _, a := range attachments {
		names = append(names, a.Name)
	}
	utils.LogInfo("Submitting ticket", map[string]string{
		"url":       s.URL(),
		"subject":   truncate(subject, 50),
		"fileCount": strconv.Itoa(len(attachments)),
		"fileNames": strings.Join(names, ","),
	})

	body, contentType, err := encodeForm(subject, description, attachments)
	if err != nil {
		utils.LogError("Failed to encode ticket form", map[string]string{"error": err.Error()})
		return "", fmt.Errorf("failed to encode ticket form: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.URL(), bytes.NewReader(body))
	if err != nil {
		utils.LogError("Failed to create request", map[string]string{"error": err.Error()})
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		utils.LogError("Failed to send request", map[string]string{"error": err.Error()})
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		utils.LogError("Failed to read response", map[string]string{"error": err.Error()})
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	result := decodeResponse(resp, raw)
	switch {
	case result.Rejected != nil:
		utils.LogError("Proxy rejected ticket", map[string]string{
			"status_code": strconv.Itoa(resp.StatusCode),
			"body":        truncate(string(raw), maxErrorBodyLog),
		})
		return "", &ExternalSubmissionError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    result.Rejected.Message,
		}
	case result.Accepted == nil:
		utils.LogError("No ticket ID in success response", map[string]string{
			"status_code": strconv.Itoa(resp.StatusCode),
			"body":        truncate(string(raw), maxErrorBodyLog),
		})
		return "", &MalformedResponseError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	utils.LogInfo("Ticket submitted", map[string]string{"ticketId": result.Accepted.TicketID})
	return result.Accepted.TicketID, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeForm(subject, description string, attachments []models.Attachment) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("subject", subject); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("description", description); err != nil {
		return nil, "", err
	}

	for _, a := range attachments {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, quoteEscaper.Replace(a.Name)))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(a.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
