package capture

import (
	"sync"
	"time"

	"github.com/ilexum-group/supportkit/internal/buffers"
	"github.com/ilexum-group/supportkit/internal/console"
	"github.com/ilexum-group/supportkit/internal/models"
	"github.com/ilexum-group/supportkit/internal/utils"
)

// ConsoleCapture mirrors console calls into a bounded buffer
type ConsoleCapture struct {
	mu        sync.Mutex
	installed bool
	buf       *buffers.RingBuffer[models.LogEntry]
	now       func() time.Time
}

// NewConsoleCapture creates a console capture keeping at most capacity entries
func NewConsoleCapture(capacity int) *ConsoleCapture {
	return &ConsoleCapture{
		buf: buffers.NewRingBuffer[models.LogEntry](capacity),
		now: time.Now,
	}
}

// Install wraps every console level. The previous function of each level still runs
// first, so output is unchanged. Calling Install again does nothing.
func (c *ConsoleCapture) Install() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.installed {
		return
	}
	c.installed = true

	for _, level := range models.ConsoleLevels {
		console.Replace(level, c.wrap(level, console.Current(level)))
	}
}

// Installed reports whether Install has run
func (c *ConsoleCapture) Installed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.installed
}

func (c *ConsoleCapture) wrap(level models.LogLevel, original console.Func) console.Func {
	return func(args ...any) {
		if original != nil {
			original(args...)
		}
		c.record(level, args)
	}
}

func (c *ConsoleCapture) record(level models.LogLevel, args []any) {
	defer func() { _ = recover() }()

	rendered := make([]string, len(args))
	for i, arg := range args {
		rendered[i] = Stringify(arg)
	}
	c.buf.WriteOne(models.LogEntry{
		Level:     level,
		Args:      rendered,
		Timestamp: utils.ISOTimestamp(c.now()),
	})
}

// Entries returns a snapshot of the buffered console calls, oldest first
func (c *ConsoleCapture) Entries() []models.LogEntry {
	return c.buf.ReadAll()
}

// Clear empties the buffer
func (c *ConsoleCapture) Clear() {
	c.buf.Clear()
}
