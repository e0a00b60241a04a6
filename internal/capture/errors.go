package capture

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/ilexum-group/supportkit/internal/buffers"
	"github.com/ilexum-group/supportkit/internal/console"
	"github.com/ilexum-group/supportkit/internal/models"
	"github.com/ilexum-group/supportkit/internal/utils"
)

type errorHook func(models.ErrorLogEntry)

var (
	hooksMu    sync.RWMutex
	errorHooks []errorHook
	clock      = time.Now
)

func addErrorHook(h errorHook) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	errorHooks = append(errorHooks, h)
}

// dispatch hands entry to every installed hook and reports whether any hook ran
func dispatch(entry models.ErrorLogEntry) bool {
	hooksMu.RLock()
	hooks := make([]errorHook, len(errorHooks))
	copy(hooks, errorHooks)
	hooksMu.RUnlock()

	for _, h := range hooks {
		func() {
			defer func() { _ = recover() }()
			h(entry)
		}()
	}
	return len(hooks) > 0
}

// Recover observes a panic unwinding the calling goroutine and re-panics with the
// same value, so default crash reporting still happens. Use it directly with defer:
//
//	defer capture.Recover()
func Recover() {
	r := recover()
	if r == nil {
		return
	}
	func() {
		defer func() { _ = recover() }()
		dispatch(runtimeEntry(r))
	}()
	panic(r)
}

// Go runs fn in a new goroutine that nobody waits on. A returned error or a panic
// is reported as an unhandled rejection instead of crashing the process. With no
// error capture installed it is written to the console error level.
func Go(fn func() error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				reportRejection(rejectionEntry(r, string(debug.Stack())))
			}
		}()
		if err := fn(); err != nil {
			reportRejection(rejectionEntry(err, ""))
		}
	}()
}

func reportRejection(entry models.ErrorLogEntry) {
	defer func() { _ = recover() }()
	if !dispatch(entry) {
		console.Error("Unhandled rejection:", entry.Message)
	}
}

func runtimeEntry(r any) models.ErrorLogEntry {
	entry := models.ErrorLogEntry{
		Message:   reasonMessage(r),
		Stack:     string(debug.Stack()),
		Timestamp: utils.ISOTimestamp(clock()),
		Type:      models.ErrorTypeRuntime,
	}
	entry.Source, entry.Line = panicSite()
	return entry
}

func rejectionEntry(reason any, stack string) models.ErrorLogEntry {
	if err, ok := reason.(error); ok && stack == "" {
		if detailed := fmt.Sprintf("%+v", err); detailed != err.Error() {
			stack = detailed
		}
	}
	return models.ErrorLogEntry{
		Message:   reasonMessage(reason),
		Stack:     stack,
		Timestamp: utils.ISOTimestamp(clock()),
		Type:      models.ErrorTypeUnhandledRejection,
	}
}

func reasonMessage(reason any) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg = fmt.Sprintf("%T", reason)
		}
	}()
	if err, ok := reason.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(reason)
}

// panicSite returns the file and line of the first non-runtime frame below gopanic.
// Go exposes no column information.
func panicSite() (string, int) {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(1, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	seenPanic := false
	for {
		frame, more := frames.Next()
		if seenPanic && !isRuntimeFrame(frame.Function) {
			return frame.File, frame.Line
		}
		if frame.Function == "runtime.gopanic" {
			seenPanic = true
		}
		if !more {
			return "", 0
		}
	}
}

func isRuntimeFrame(function string) bool {
	return strings.HasPrefix(function, "runtime.") || strings.HasPrefix(function, "internal/runtime/")
}

// ErrorCapture records panics observed by Recover and failures reported by Go
type ErrorCapture struct {
	mu        sync.Mutex
	installed bool
	buf       *buffers.RingBuffer[models.ErrorLogEntry]
}

// NewErrorCapture creates an error capture keeping at most capacity entries
func NewErrorCapture(capacity int) *ErrorCapture {
	return &ErrorCapture{buf: buffers.NewRingBuffer[models.ErrorLogEntry](capacity)}
}

// Install registers the capture with the process-wide handlers.
// Calling Install again does nothing.
func (c *ErrorCapture) Install() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.installed {
		return
	}
	c.installed = true
	addErrorHook(c.buf.WriteOne)
}

// Installed reports whether Install has run
func (c *ErrorCapture) Installed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.installed
}

// Entries returns a snapshot of the buffered errors, oldest first
func (c *ErrorCapture) Entries() []models.ErrorLogEntry {
	return c.buf.ReadAll()
}

// Clear empties the buffer
func (c *ErrorCapture) Clear() {
	c.buf.Clear()
}
