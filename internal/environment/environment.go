// Package environment provides best-effort snapshots of the environment a session runs in.
package environment

import (
	"fmt"
	"time"

	"github.com/ilexum-group/supportkit/internal/models"
	"github.com/ilexum-group/supportkit/internal/utils"
)

// gatherer fills one group of fields. Fields are only set once the fact is known,
// so a failing gatherer leaves its fields absent.
type gatherer struct {
	name   string
	gather func(Source, *models.EnvironmentInfo) error
}

var gatherers = []gatherer{
	{"userAgent", func(src Source, info *models.EnvironmentInfo) error {
		ua, err := src.UserAgent()
		if err != nil {
			return err
		}
		info.UserAgent = ua
		info.Browser = ParseBrowser(ua)
		info.OS = ParseOS(ua)
		return nil
	}},
	{"language", func(src Source, info *models.EnvironmentInfo) error {
		lang, err := src.Language()
		if err != nil {
			return err
		}
		info.Language = lang
		return nil
	}},
	{"timezone", func(src Source, info *models.EnvironmentInfo) error {
		tz, err := src.Timezone()
		if err != nil {
			return err
		}
		info.Timezone = tz
		return nil
	}},
	{"screen", func(src Source, info *models.EnvironmentInfo) error {
		size, err := src.ScreenSize()
		if err != nil {
			return err
		}
		info.ScreenWidth, info.ScreenHeight = size.Width, size.Height
		return nil
	}},
	{"viewport", func(src Source, info *models.EnvironmentInfo) error {
		size, err := src.ViewportSize()
		if err != nil {
			return err
		}
		info.ViewportWidth, info.ViewportHeight = size.Width, size.Height
		return nil
	}},
	{"currentUrl", func(src Source, info *models.EnvironmentInfo) error {
		u, err := src.CurrentURL()
		if err != nil {
			return err
		}
		info.CurrentURL = u
		return nil
	}},
	{"referrer", func(src Source, info *models.EnvironmentInfo) error {
		ref, err := src.Referrer()
		if err != nil {
			return err
		}
		info.Referrer = ref
		return nil
	}},
}

// Snapshotter captures EnvironmentInfo on demand. Only the session id persists
// between captures, through the session store.
type Snapshotter struct {
	source Source
	store  SessionStore
	now    func() time.Time
}

// NewSnapshotter creates a Snapshotter. A nil source yields snapshots with only the
// session id and timestamp; a nil store yields a fresh session id per capture.
func NewSnapshotter(source Source, store SessionStore) *Snapshotter {
	return &Snapshotter{source: source, store: store, now: time.Now}
}

// Capture returns a fresh snapshot. It never panics; each fact is gathered independently.
func (s *Snapshotter) Capture(appVersion string) models.EnvironmentInfo {
	info := models.EnvironmentInfo{
		SessionID: sessionID(s.store),
		Timestamp: utils.ISOTimestamp(s.now()),
	}

	for _, g := range gatherers {
		if err := runGatherer(g, s.source, &info); err != nil {
			utils.LogDebug("Environment fact unavailable", map[string]string{"fact": g.name, "error": err.Error()})
		}
	}

	if appVersion != "" {
		info.AppVersion = appVersion
	}
	return info
}

func runGatherer(g gatherer, src Source, info *models.EnvironmentInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("gatherer panicked: %v", r)
		}
	}()
	if src == nil {
		return ErrUnavailable
	}
	return g.gather(src, info)
}
