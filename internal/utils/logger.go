// Package utils provides utility functions and types for the supportkit client
//
//nolint:revive // utils is a common pattern for internal utilities
package utils

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger defines the interface for logging operations
type Logger interface {
	LogInfo(message string, meta map[string]string)
	LogNotice(message string, meta map[string]string)
	LogWarn(message string, meta map[string]string)
	LogError(message string, meta map[string]string)
	LogDebug(message string, meta map[string]string)
}

var _ Logger = (*RFC5424Logger)(nil)

// FileConfig enables a rotating copy of the log on disk
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// RFC5424Logger implements Logger with RFC 5424 compliant syslog format using crewjam/rfc5424
type RFC5424Logger struct {
	appName   string
	hostname  string
	processID string
	facility  rfc5424.Priority
	mu        sync.Mutex // serializes writes so lines never interleave
	out       io.Writer
}

// NewRFC5424Logger creates a logger writing one RFC 5424 message per line to out.
// A nil out writes to stdout.
func NewRFC5424Logger(appName string, out io.Writer) *RFC5424Logger {
	if out == nil {
		out = os.Stdout
	}
	return &RFC5424Logger{
		appName:   appName,
		hostname:  getHostname(),
		processID: strconv.Itoa(os.Getpid()),
		facility:  rfc5424.User,
		out:       out,
	}
}

// getHostname retrieves the system hostname dynamically.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return hostname
}

// createMessage creates an RFC 5424 message using the library
func (l *RFC5424Logger) createMessage(severity rfc5424.Priority, message string, meta map[string]string) *rfc5424.Message {
	msg := &rfc5424.Message{
		Priority:  l.facility | severity,
		Timestamp: time.Now().UTC(),
		Hostname:  l.hostname,
		AppName:   l.appName,
		ProcessID: l.processID,
		MessageID: fmt.Sprintf("ID%d", time.Now().UnixNano()%100000),
		Message:   []byte(message),
	}

	for key, value := range meta {
		msg.AddDatum("meta@1", key, value)
	}

	return msg
}

// writeLog writes the formatted RFC 5424 log entry followed by a newline
func (l *RFC5424Logger) writeLog(severity rfc5424.Priority, message string, meta map[string]string) {
	msg := l.createMessage(severity, message, meta)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := msg.WriteTo(l.out); err != nil {
		// Fallback to simple format if the library rejects the message
		_, _ = fmt.Fprintf(l.out, "<%d>1 %s %s %s %s - - %s",
			int(l.facility|severity),
			msg.Timestamp.Format(time.RFC3339),
			l.hostname, l.appName, l.processID, message)
	}
	_, _ = io.WriteString(l.out, "\n")
}

// LogInfo logs an informational message (severity Info)
func (l *RFC5424Logger) LogInfo(message string, meta map[string]string) {
	l.writeLog(rfc5424.Info, message, meta)
}

// LogNotice logs a normal but significant message (severity Notice)
func (l *RFC5424Logger) LogNotice(message string, meta map[string]string) {
	l.writeLog(rfc5424.Notice, message, meta)
}

// LogWarn logs a warning message (severity Warning)
func (l *RFC5424Logger) LogWarn(message string, meta map[string]string) {
	l.writeLog(rfc5424.Warning, message, meta)
}

// LogError logs an error message (severity Error)
func (l *RFC5424Logger) LogError(message string, meta map[string]string) {
	l.writeLog(rfc5424.Error, message, meta)
}

// LogDebug logs a debug message (severity Debug)
func (l *RFC5424Logger) LogDebug(message string, meta map[string]string) {
	l.writeLog(rfc5424.Debug, message, meta)
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *RFC5424Logger
)

// InitDefaultLogger initializes the global logger instance writing to stdout and,
// when file.Path is set, to a rotating log file.
func InitDefaultLogger(appName string, file FileConfig) {
	var out io.Writer = os.Stdout
	if file.Path != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
			Compress:   file.Compress,
		})
	}
	SetDefaultLogger(NewRFC5424Logger(appName, out))
}

// SetDefaultLogger replaces the global logger. A nil logger silences the helpers below.
func SetDefaultLogger(l *RFC5424Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// DefaultLogger returns the global logger, or nil if none was initialized
func DefaultLogger() *RFC5424Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// Convenience functions using the global logger

// LogInfo logs an informational message using the default logger
func LogInfo(message string, meta map[string]string) {
	if l := DefaultLogger(); l != nil {
		l.LogInfo(message, meta)
	}
}

// LogNotice logs a notice using the default logger
func LogNotice(message string, meta map[string]string) {
	if l := DefaultLogger(); l != nil {
		l.LogNotice(message, meta)
	}
}

// LogWarn logs a warning message using the default logger
func LogWarn(message string, meta map[string]string) {
	if l := DefaultLogger(); l != nil {
		l.LogWarn(message, meta)
	}
}

// LogError logs an error message using the default logger
func LogError(message string, meta map[string]string) {
	if l := DefaultLogger(); l != nil {
		l.LogError(message, meta)
	}
}

// LogDebug logs a debug message using the default logger
func LogDebug(message string, meta map[string]string) {
	if l := DefaultLogger(); l != nil {
		l.LogDebug(message, meta)
	}
}
