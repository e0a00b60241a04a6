package environment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pterm/pterm"
)

// ErrUnavailable is returned by a Source that cannot provide a fact
var ErrUnavailable = errors.New("environment fact unavailable")

// Size is a width and height in the unit of the source (pixels or terminal cells)
type Size struct {
	Width  int
	Height int
}

// Source provides the raw facts of the environment. Every method may fail independently.
type Source interface {
	UserAgent() (string, error)
	Language() (string, error)
	Timezone() (string, error)
	ScreenSize() (Size, error)
	ViewportSize() (Size, error)
	CurrentURL() (string, error)
	Referrer() (string, error)
}

// StaticSource serves fixed facts, for example those forwarded by an embedding web view.
// Empty fields are reported as unavailable.
type StaticSource struct {
	UA       string
	Locale   string
	Zone     string
	Screen   Size
	Viewport Size
	URL      string
	Referer  string
}

func nonEmpty(v string) (string, error) {
	if v == "" {
		return "", ErrUnavailable
	}
	return v, nil
}

func nonZero(s Size) (Size, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return Size{}, ErrUnavailable
	}
	return s, nil
}

// UserAgent implements Source
func (s StaticSource) UserAgent() (string, error) { return nonEmpty(s.UA) }

// Language implements Source
func (s StaticSource) Language() (string, error) { return nonEmpty(s.Locale) }

// Timezone implements Source
func (s StaticSource) Timezone() (string, error) { return nonEmpty(s.Zone) }

// ScreenSize implements Source
func (s StaticSource) ScreenSize() (Size, error) { return nonZero(s.Screen) }

// ViewportSize implements Source
func (s StaticSource) ViewportSize() (Size, error) { return nonZero(s.Viewport) }

// CurrentURL implements Source
func (s StaticSource) CurrentURL() (string, error) { return nonEmpty(s.URL) }

// Referrer implements Source
func (s StaticSource) Referrer() (string, error) { return s.Referer, nil }

// ProcessSource derives facts from the running process: the Go runtime, the locale
// environment variables, the local time zone and the controlling terminal.
type ProcessSource struct {
	AppName    string
	AppVersion string
	PageURL    string
	Referer    string
	Screen     Size

	getenv       func(string) string
	terminalSize func() (int, int, error)
	localtime    string
}

// NewProcessSource creates a ProcessSource for the named application
func NewProcessSource(appName, appVersion string) *ProcessSource {
	return &ProcessSource{
		AppName:      appName,
		AppVersion:   appVersion,
		getenv:       os.Getenv,
		terminalSize: pterm.GetTerminalSize,
		localtime:    "/etc/localtime",
	}
}

// UserAgent builds a browser-style agent string, e.g. "supportkit/1.0.0 (X11; Linux amd64) Go/1.25.0"
func (p *ProcessSource) UserAgent() (string, error) {
	name := p.AppName
	if name == "" {
		name = "supportkit"
	}
	version := p.AppVersion
	if version == "" {
		version = "0.0.0"
	}
	return fmt.Sprintf("%s/%s (%s %s) Go/%s",
		name, version, platformToken(runtime.GOOS), runtime.GOARCH,
		strings.TrimPrefix(runtime.Version(), "go")), nil
}

func platformToken(goos string) string {
	switch goos {
	case "windows":
		return "Windows NT;"
	case "darwin":
		return "Macintosh; Mac OS X;"
	case "linux":
		return "X11; Linux"
	case "android":
		return "Linux; Android;"
	case "ios":
		return "iPhone; CPU iPhone OS;"
	}
	return goos + ";"
}

// Language returns the BCP 47 tag of the process locale, e.g. "en-US" for LANG=en_US.UTF-8
func (p *ProcessSource) Language() (string, error) {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		value := p.getenv(key)
		if value == "" {
			continue
		}
		if i := strings.IndexAny(value, ".@"); i >= 0 {
			value = value[:i]
		}
		if value == "" || value == "C" || value == "POSIX" {
			return "", ErrUnavailable
		}
		return strings.ReplaceAll(value, "_", "-"), nil
	}
	return "", ErrUnavailable
}

// Timezone returns the IANA name of the local zone when it can be determined,
// otherwise the zone abbreviation.
func (p *ProcessSource) Timezone() (string, error) {
	if tz := strings.TrimPrefix(p.getenv("TZ"), ":"); tz != "" {
		return tz, nil
	}
	if name := time.Local.String(); name != "" && name != "Local" {
		return name, nil
	}
	if target, err := filepath.EvalSymlinks(p.localtime); err == nil {
		if i := strings.Index(target, "zoneinfo/"); i >= 0 {
			return target[i+len("zoneinfo/"):], nil
		}
	}
	if abbrev, _ := time.Now().Zone(); abbrev != "" {
		return abbrev, nil
	}
	return "", ErrUnavailable
}

// ScreenSize returns the configured display size
func (p *ProcessSource) ScreenSize() (Size, error) { return nonZero(p.Screen) }

// ViewportSize returns the size of the controlling terminal in cells
func (p *ProcessSource) ViewportSize() (Size, error) {
	if p.terminalSize == nil {
		return Size{}, ErrUnavailable
	}
	w, h, err := p.terminalSize()
	if err != nil {
		return Size{}, fmt.Errorf("failed to read terminal size: %w", err)
	}
	return nonZero(Size{Width: w, Height: h})
}

// CurrentURL returns the configured page URL
func (p *ProcessSource) CurrentURL() (string, error) { return nonEmpty(p.PageURL) }

// Referrer returns the configured referrer
func (p *ProcessSource) Referrer() (string, error) { return p.Referer, nil }
