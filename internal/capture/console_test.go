package capture

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilexum-group/supportkit/internal/console"
	"github.com/ilexum-group/supportkit/internal/models"
)

func newTestConsoleCapture(t *testing.T, capacity int) *ConsoleCapture {
	t.Helper()
	t.Cleanup(console.Reset)
	for _, level := range models.ConsoleLevels {
		console.Replace(level, func(...any) {})
	}
	c := NewConsoleCapture(capacity)
	c.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestConsoleCaptureRecordsEveryLevel(t *testing.T) {
	c := newTestConsoleCapture(t, MaxConsoleEntries)
	c.Install()

	console.Log("plain")
	console.Info("info", 1)
	console.Warn("warn", true)
	console.Error(errors.New("broken"))

	entries := c.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, models.LevelLog, entries[0].Level)
	assert.Equal(t, []string{"info", "1"}, entries[1].Args)
	assert.Equal(t, []string{"warn", "true"}, entries[2].Args)
	assert.Equal(t, models.LevelError, entries[3].Level)
	assert.Equal(t, []string{"broken"}, entries[3].Args)
	assert.Equal(t, "2026-10-18T12:00:00.000Z", entries[0].Timestamp)
}

func TestConsoleCaptureStillCallsOriginalOnceAfterDoubleInstall(t *testing.T) {
	c := newTestConsoleCapture(t, MaxConsoleEntries)

	calls := 0
	console.Replace(models.LevelLog, func(...any) { calls++ })

	c.Install()
	c.Install()
	console.Log("hello")

	assert.Equal(t, 1, calls)
	assert.Len(t, c.Entries(), 1)
	assert.True(t, c.Installed())
}

func TestConsoleCaptureKeepsMostRecentHundred(t *testing.T) {
	c := newTestConsoleCapture(t, MaxConsoleEntries)
	c.Install()

	for i := 0; i < 150; i++ {
		console.Log(i)
	}

	entries := c.Entries()
	require.Len(t, entries, 100)
	for i, e := range entries {
		assert.Equal(t, []string{fmt.Sprint(50 + i)}, e.Args)
	}
}

func TestConsoleCaptureEntriesIsSnapshot(t *testing.T) {
	c := newTestConsoleCapture(t, MaxConsoleEntries)
	c.Install()

	console.Info("first")
	snapshot := c.Entries()
	console.Info("second")

	assert.Len(t, snapshot, 1)
	assert.Len(t, c.Entries(), 2)

	c.Clear()
	assert.Empty(t, c.Entries())
}

type panickyStringer struct{}

func (panickyStringer) String() string { panic("no") }

func TestStringify(t *testing.T) {
	assert.Equal(t, "null", Stringify(nil))
	assert.Equal(t, "text", Stringify("text"))
	assert.Equal(t, "3.5", Stringify(3.5))
	assert.Equal(t, "false", Stringify(false))
	assert.Equal(t, "{\n  \"a\": 1\n}", Stringify(map[string]int{"a": 1}))
	assert.Equal(t, "[\n  1,\n  2\n]", Stringify([]int{1, 2}))
	assert.Equal(t, unserializable, Stringify(panickyStringer{}))
	assert.Equal(t, "func()", Stringify(func() {}))

	withChan := struct{ C chan int }{C: make(chan int)}
	assert.NotPanics(t, func() { _ = Stringify(withChan) })
}
