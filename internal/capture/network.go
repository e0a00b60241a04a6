package capture

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ilexum-group/supportkit/internal/buffers"
	"github.com/ilexum-group/supportkit/internal/models"
	"github.com/ilexum-group/supportkit/internal/utils"
)

// Sentinels stored in network entries
const (
	PreviewLimit            = 200
	FailedBodySentinel      = "[failed to read body]"
	NonSerializableSentinel = "[non-serializable]"

	maxRequestBodyBytes = 64 << 10
	// enough bytes to hold PreviewLimit runes plus one, so a cut is always visible
	previewBytes = (PreviewLimit + 1) * utf8.UTFMax
)

var (
	errClosedEarly  = errors.New("body closed before EOF")
	errReadPanicked = errors.New("body read panicked")
)

// NetworkCapture records every HTTP exchange made through a wrapped transport.
//
// The response preview is copied while the caller reads the body, so an entry
// shows up in Entries only after the caller has read the body to the end or
// closed it. Wait blocks until those pending entries are recorded.
type NetworkCapture struct {
	mu        sync.Mutex
	installed bool
	previous  http.RoundTripper
	buf       *buffers.RingBuffer[models.NetworkLogEntry]
	now       func() time.Time

	pendingMu sync.Mutex
	idle      *sync.Cond
	inflight  int
}

// NewNetworkCapture creates a network capture keeping at most capacity entries
func NewNetworkCapture(capacity int) *NetworkCapture {
	c := &NetworkCapture{
		buf: buffers.NewRingBuffer[models.NetworkLogEntry](capacity),
		now: time.Now,
	}
	c.idle = sync.NewCond(&c.pendingMu)
	return c
}

// Install replaces http.DefaultTransport with a recording wrapper around it.
// Calling Install again does nothing.
func (c *NetworkCapture) Install() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.installed {
		return
	}
	c.installed = true
	c.previous = http.DefaultTransport
	http.DefaultTransport = c.Wrap(c.previous)
}

// Installed reports whether Install has run
func (c *NetworkCapture) Installed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.installed
}

// restore puts back the transport that Install replaced
func (c *NetworkCapture) restore() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.installed {
		return
	}
	http.DefaultTransport = c.previous
	c.installed = false
}

// Wrap returns a RoundTripper recording through this capture. A nil base means
// http.DefaultTransport. Wrapping a transport this capture already wraps returns it as is.
func (c *NetworkCapture) Wrap(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if rt, ok := base.(*recordingTransport); ok && rt.capture == c {
		return rt
	}
	return &recordingTransport{base: base, capture: c}
}

// Entries returns a snapshot of the buffered exchanges, oldest first
func (c *NetworkCapture) Entries() []models.NetworkLogEntry {
	return c.buf.ReadAll()
}

// Clear empties the buffer
func (c *NetworkCapture) Clear() {
	c.buf.Clear()
}

// Wait blocks until every response body handed out so far has been read to the
// end or closed, and its entry recorded.
func (c *NetworkCapture) Wait() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for c.inflight > 0 {
		c.idle.Wait()
	}
}

func (c *NetworkCapture) track() {
	c.pendingMu.Lock()
	c.inflight++
	c.pendingMu.Unlock()
}

func (c *NetworkCapture) untrack() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.inflight--
	if c.inflight == 0 {
		c.idle.Broadcast()
	}
}

func (c *NetworkCapture) add(entry models.NetworkLogEntry) {
	defer func() { _ = recover() }()
	c.buf.WriteOne(entry)
}

type recordingTransport struct {
	base    http.RoundTripper
	capture *NetworkCapture
}

// RoundTrip forwards req unchanged and records the outcome.
// The response and error returned are exactly those of the base transport.
func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	entry := models.NetworkLogEntry{
		Method:      strings.ToUpper(req.Method),
		RequestTime: utils.ISOTimestamp(t.capture.now()),
		RequestBody: requestBody(req),
	}
	if entry.Method == "" {
		entry.Method = http.MethodGet
	}
	if req.URL != nil {
		entry.URL = req.URL.String()
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	entry.Duration = time.Since(start).Milliseconds()

	if err != nil {
		entry.ResponsePreview = err.Error()
		t.capture.add(entry)
		return resp, err
	}

	entry.Status = resp.StatusCode
	entry.StatusText = statusText(resp)
	resp.Body = t.capture.duplicate(resp, entry)
	return resp, nil
}

// duplicate hands the caller a body that passes bytes through as they arrive and
// keeps the first previewBytes of them. Protocol switches and writable bodies are
// returned untouched and recorded without a preview.
func (c *NetworkCapture) duplicate(resp *http.Response, entry models.NetworkLogEntry) io.ReadCloser {
	src := resp.Body
	if src == nil || resp.StatusCode == http.StatusSwitchingProtocols {
		c.add(entry)
		return src
	}
	if _, ok := src.(io.Writer); ok {
		c.add(entry)
		return src
	}

	c.track()
	return &teeBody{src: src, capture: c, entry: entry}
}

// teeBody records its entry once the caller reaches EOF, hits a read error or
// closes the body. Closing before EOF records FailedBodySentinel.
type teeBody struct {
	src     io.ReadCloser
	capture *NetworkCapture
	entry   models.NetworkLogEntry

	mu   sync.Mutex
	kept bytes.Buffer
	more bool
	once sync.Once
}

func (b *teeBody) Read(p []byte) (int, error) {
	defer func() {
		if r := recover(); r != nil {
			b.finish(errReadPanicked)
			panic(r)
		}
	}()
	n, err := b.src.Read(p)
	if n > 0 {
		b.keep(p[:n])
	}
	switch {
	case err == io.EOF:
		b.finish(nil)
	case err != nil:
		b.finish(err)
	}
	return n, err
}

func (b *teeBody) Close() error {
	err := b.src.Close()
	b.finish(errClosedEarly)
	return err
}

func (b *teeBody) keep(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room := previewBytes - b.kept.Len()
	if len(p) > room {
		b.more = true
		p = p[:max(room, 0)]
	}
	b.kept.Write(p)
}

func (b *teeBody) finish(err error) {
	b.once.Do(func() {
		defer b.capture.untrack()
		b.mu.Lock()
		entry := b.entry
		if err != nil {
			entry.ResponsePreview = FailedBodySentinel
		} else {
			entry.ResponsePreview = preview(b.kept.Bytes(), b.more)
		}
		b.mu.Unlock()
		b.capture.add(entry)
	})
}

// Preview returns body text cut to PreviewLimit characters, with a trailing ellipsis when cut
func Preview(data []byte) string {
	return preview(data, false)
}

// preview cuts data like Preview. more reports that data is only the head of a longer body.
func preview(data []byte, more bool) string {
	text := strings.ToValidUTF8(string(data), "�")
	if utf8.RuneCountInString(text) > PreviewLimit {
		return string([]rune(text)[:PreviewLimit]) + "..."
	}
	if more {
		return text + "..."
	}
	return text
}

func statusText(resp *http.Response) string {
	code := strconv.Itoa(resp.StatusCode)
	if text := strings.TrimSpace(strings.TrimPrefix(resp.Status, code)); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

// requestBody returns what the entry stores for the request payload.
// Only replayable bodies are read, through GetBody, so the request sent is untouched.
func requestBody(req *http.Request) any {
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}
	if req.GetBody == nil {
		return NonSerializableSentinel
	}
	if strings.HasPrefix(strings.ToLower(req.Header.Get("Content-Type")), "multipart/") {
		return NonSerializableSentinel
	}

	rc, err := req.GetBody()
	if err != nil {
		return NonSerializableSentinel
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, maxRequestBodyBytes+1))
	if err != nil || len(data) > maxRequestBodyBytes || !utf8.Valid(data) {
		return NonSerializableSentinel
	}

	var parsed any
	if err := json.Unmarshal(data, &parsed); err == nil {
		return parsed
	}
	return string(data)
}
