package ticket

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
)

// ticketIDPaths lists where a ticket id may appear in a success body, highest priority first
var ticketIDPaths = [][]string{
	{"ticketId"},
	{"id"},
	{"data", "id"},
	{"ticket", "id"},
	{"response", "id"},
	{"result", "id"},
}

type accepted struct {
	TicketID string
}

type rejected struct {
	Message string
}

// submissionResponse holds exactly one of Accepted or Rejected, or neither for a
// success response without a ticket id.
type submissionResponse struct {
	Accepted *accepted
	Rejected *rejected
}

func decodeResponse(resp *http.Response, raw []byte) submissionResponse {
	fields := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil || fields == nil {
		fields = map[string]any{}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return submissionResponse{Rejected: &rejected{Message: rejectionMessage(resp, fields)}}
	}
	if id, ok := ticketID(fields); ok {
		return submissionResponse{Accepted: &accepted{TicketID: id}}
	}
	return submissionResponse{}
}

func ticketID(fields map[string]any) (string, bool) {
	for _, path := range ticketIDPaths {
		if id, ok := idString(lookup(fields, path)); ok {
			return id, true
		}
	}
	return "", false
}

func lookup(fields map[string]any, path []string) any {
	var cur any = fields
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

func idString(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, id != ""
	case interface{ String() string }: // json.Number
		s := id.String()
		return s, s != ""
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	}
	return "", false
}

// rejectionMessage prefers the proxy's own wording: a plain "error" string, the
// message of an error envelope, a top-level "message", then the status text.
func rejectionMessage(resp *http.Response, fields map[string]any) string {
	switch e := fields["error"].(type) {
	case string:
		if e != "" {
			return e
		}
	case map[string]any:
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg
		}
	}
	if msg, ok := fields["message"].(string); ok && msg != "" {
		return msg
	}
	if text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))); text != "" {
		return text
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return "Failed to create ticket"
}
