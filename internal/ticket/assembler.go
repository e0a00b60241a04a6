package ticket

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"

	"github.com/ilexum-group/supportkit/internal/models"
	"github.com/ilexum-group/supportkit/internal/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// BundleContentType is the content type of the diagnostic attachment
const BundleContentType = "application/json"

// ConsoleSource provides the captured console entries
type ConsoleSource interface {
	Entries() []models.LogEntry
}

// NetworkSource provides the captured network entries
type NetworkSource interface {
	Entries() []models.NetworkLogEntry
}

// ErrorSource provides the captured error entries
type ErrorSource interface {
	Entries() []models.ErrorLogEntry
}

// EnvironmentSource takes environment snapshots
type EnvironmentSource interface {
	Capture(appVersion string) models.EnvironmentInfo
}

// Assembled is a ticket ready for submission
type Assembled struct {
	// Attachments are ordered images, then video, then the diagnostic bundle
	Attachments []models.Attachment
	Bundle      models.DiagnosticBundle
	ImageCount  int
	HasVideo    bool
}

// Assembler turns a TicketPayload into the attachment list for a submission
type Assembler struct {
	Console     ConsoleSource
	Network     NetworkSource
	Errors      ErrorSource
	Environment EnvironmentSource
	AppVersion  string

	now func() time.Time
}

// NewAssembler creates an Assembler reading from the given sources. Nil sources contribute nothing.
func NewAssembler(console ConsoleSource, network NetworkSource, errs ErrorSource, env EnvironmentSource, appVersion string) *Assembler {
	return &Assembler{
		Console:     console,
		Network:     network,
		Errors:      errs,
		Environment: env,
		AppVersion:  appVersion,
		now:         time.Now,
	}
}

// Assemble filters the user's files and builds the diagnostic bundle. The only error is a
// failure to encode the bundle; a failing gatherer is noted in the bundle instead.
func (a *Assembler) Assemble(payload models.TicketPayload) (Assembled, error) {
	var out Assembled

	for _, img := range payload.Images {
		if hasMediaType(img.ContentType, "image/") {
			out.Attachments = append(out.Attachments, img)
		}
	}
	out.ImageCount = len(out.Attachments)

	if payload.Video != nil && hasMediaType(payload.Video.ContentType, "video/") {
		out.Attachments = append(out.Attachments, *payload.Video)
		out.HasVideo = true
	}

	out.Bundle = a.gather()
	utils.LogInfo("Logs gathered", map[string]string{
		"consoleLogs": fmt.Sprint(len(out.Bundle.ConsoleLogs)),
		"networkLogs": fmt.Sprint(len(out.Bundle.NetworkLogs)),
		"errorLogs":   fmt.Sprint(len(out.Bundle.ErrorLogs)),
	})

	data, err := json.MarshalIndent(out.Bundle, "", "  ")
	if err != nil {
		return Assembled{}, fmt.Errorf("failed to encode diagnostic bundle: %w", err)
	}
	out.Attachments = append(out.Attachments, models.Attachment{
		Name:        fmt.Sprintf("support-logs-%d.json", a.now().UnixMilli()),
		ContentType: BundleContentType,
		Data:        data,
	})
	return out, nil
}

func (a *Assembler) gather() models.DiagnosticBundle {
	bundle := models.DiagnosticBundle{
		ConsoleLogs: []models.LogEntry{},
		NetworkLogs: []models.NetworkLogEntry{},
		ErrorLogs:   []models.ErrorLogEntry{},
	}

	var (
		g        errgroup.Group
		mu       sync.Mutex
		failures []string
	)
	safely := func(name string, fn func()) {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					failures = append(failures, fmt.Sprintf("%s: %v", name, r))
					mu.Unlock()
				}
			}()
			fn()
			return nil
		})
	}

	// each gatherer writes a distinct field
	if a.Console != nil {
		safely("consoleLogs", func() {
			if entries := a.Console.Entries(); entries != nil {
				bundle.ConsoleLogs = entries
			}
		})
	}
	if a.Network != nil {
		safely("networkLogs", func() {
			if entries := a.Network.Entries(); entries != nil {
				bundle.NetworkLogs = entries
			}
		})
	}
	if a.Errors != nil {
		safely("errorLogs", func() {
			if entries := a.Errors.Entries(); entries != nil {
				bundle.ErrorLogs = entries
			}
		})
	}
	if a.Environment != nil {
		safely("environment", func() {
			bundle.Environment = a.Environment.Capture(a.AppVersion)
		})
	}
	_ = g.Wait()

	if len(failures) > 0 {
		slices.Sort(failures)
		bundle.CollectionErrors = failures
		utils.LogWarn("Diagnostics partially collected", map[string]string{"errors": strings.Join(failures, "; ")})
	}
	return bundle
}

func hasMediaType(contentType, prefix string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), prefix)
}
