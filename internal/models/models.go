// Package models defines data structures for the diagnostics captured during a session
// and for the tickets built from them.
package models

// LogLevel is the severity of a console call
type LogLevel string

// Console levels, in the order they are installed
const (
	LevelLog   LogLevel = "log"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// ConsoleLevels lists every level the console capture wraps
var ConsoleLevels = []LogLevel{LevelLog, LevelInfo, LevelWarn, LevelError}

// ErrorType tells a synchronous runtime error from an unhandled asynchronous failure
type ErrorType string

// Error types recorded by the error capture
const (
	ErrorTypeRuntime            ErrorType = "runtime"
	ErrorTypeUnhandledRejection ErrorType = "unhandledrejection"
)

// LogEntry is one intercepted console call
type LogEntry struct {
	Level     LogLevel `json:"level"`
	Args      []string `json:"args"`
	Timestamp string   `json:"timestamp"` // ISO-8601
}

// NetworkLogEntry is one intercepted HTTP exchange
type NetworkLogEntry struct {
	URL             string `json:"url"`
	Method          string `json:"method"`
	Status          int    `json:"status,omitempty"` // absent on transport failure
	StatusText      string `json:"statusText,omitempty"`
	RequestTime     string `json:"requestTime"`
	Duration        int64  `json:"duration"` // milliseconds
	RequestBody     any    `json:"requestBody,omitempty"`
	ResponsePreview string `json:"responsePreview,omitempty"`
}

// ErrorLogEntry is one observed panic or unhandled goroutine failure
type ErrorLogEntry struct {
	Message   string    `json:"message"`
	Stack     string    `json:"stack,omitempty"`
	Source    string    `json:"source,omitempty"`
	Line      int       `json:"line,omitempty"`
	Column    int       `json:"column,omitempty"`
	Timestamp string    `json:"timestamp"`
	Type      ErrorType `json:"type"`
}

// EnvironmentInfo is a best-effort snapshot of the session environment
type EnvironmentInfo struct {
	UserAgent      string `json:"userAgent"`
	Browser        string `json:"browser,omitempty"`
	OS             string `json:"os,omitempty"`
	Language       string `json:"language,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
	ScreenWidth    int    `json:"screenWidth,omitempty"`
	ScreenHeight   int    `json:"screenHeight,omitempty"`
	ViewportWidth  int    `json:"viewportWidth,omitempty"`
	ViewportHeight int    `json:"viewportHeight,omitempty"`
	CurrentURL     string `json:"currentUrl,omitempty"`
	Referrer       string `json:"referrer,omitempty"`
	SessionID      string `json:"sessionId"`
	AppVersion     string `json:"appVersion,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// DiagnosticBundle is the JSON document attached to every ticket
type DiagnosticBundle struct {
	ConsoleLogs      []LogEntry        `json:"consoleLogs"`
	NetworkLogs      []NetworkLogEntry `json:"networkLogs"`
	ErrorLogs        []ErrorLogEntry   `json:"errorLogs"`
	Environment      EnvironmentInfo   `json:"environment"`
	CollectionErrors []string          `json:"collectionErrors,omitempty"`
}

// Attachment is a named file uploaded with a ticket
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the attachment length in bytes
func (a Attachment) Size() int {
	return len(a.Data)
}

// TicketPayload holds what the user typed and attached
type TicketPayload struct {
	Title       string
	Description string
	Images      []Attachment
	Video       *Attachment
}

// SubmitResult is the outcome of the submit flow
type SubmitResult struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	TicketID        string `json:"ticketId,omitempty"`
	Title           string `json:"title,omitempty"`
	Description     string `json:"description,omitempty"`
	ImageCount      int    `json:"imageCount"`
	HasVideo        bool   `json:"hasVideo"`
	ConsoleLogCount int    `json:"consoleLogCount"`
	NetworkLogCount int    `json:"networkLogCount"`
}
