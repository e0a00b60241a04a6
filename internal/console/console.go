// Package console is the process-wide logging surface of the host application.
//
// Application code logs through Log, Info, Warn and Error. Each level is backed by a
// replaceable Func so diagnostics can observe calls without changing what gets printed.
package console

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ilexum-group/supportkit/internal/models"
	"github.com/ilexum-group/supportkit/internal/utils"
)

// Func receives the raw arguments of one console call
type Func func(args ...any)

var (
	mu    sync.RWMutex
	funcs = defaultFuncs()
)

func defaultFuncs() map[models.LogLevel]Func {
	return map[models.LogLevel]Func{
		models.LevelLog:   func(args ...any) { utils.LogNotice(join(args), nil) },
		models.LevelInfo:  func(args ...any) { utils.LogInfo(join(args), nil) },
		models.LevelWarn:  func(args ...any) { utils.LogWarn(join(args), nil) },
		models.LevelError: func(args ...any) { utils.LogError(join(args), nil) },
	}
}

func join(args []any) string {
	return strings.TrimSuffix(fmt.Sprintln(args...), "\n")
}

// Replace installs fn for level and returns the function it replaced.
// A nil fn restores the default sink.
func Replace(level models.LogLevel, fn Func) Func {
	mu.Lock()
	defer mu.Unlock()
	prev := funcs[level]
	if fn == nil {
		fn = defaultFuncs()[level]
	}
	funcs[level] = fn
	return prev
}

// Current returns the function backing level
func Current(level models.LogLevel) Func {
	mu.RLock()
	defer mu.RUnlock()
	if fn, ok := funcs[level]; ok {
		return fn
	}
	return func(...any) {}
}

// Reset restores every level to its default sink
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	funcs = defaultFuncs()
}

// Log writes at the plain log level
func Log(args ...any) { Current(models.LevelLog)(args...) }

// Info writes at the info level
func Info(args ...any) { Current(models.LevelInfo)(args...) }

// Warn writes at the warn level
func Warn(args ...any) { Current(models.LevelWarn)(args...) }

// Error writes at the error level
func Error(args ...any) { Current(models.LevelError)(args...) }
