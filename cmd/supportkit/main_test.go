package main

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilexum-group/supportkit/internal/capture"
	"github.com/ilexum-group/supportkit/internal/config"
	"github.com/ilexum-group/supportkit/internal/models"
	"github.com/ilexum-group/supportkit/internal/proxy"
)

type recordingDesk struct {
	mu          sync.Mutex
	subjects    []string
	attachments []models.Attachment
}

func (d *recordingDesk) CreateTicket(_ context.Context, t proxy.NewTicket) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subjects = append(d.subjects, t.Subject)
	return "Z-100", nil
}

func (d *recordingDesk) AddAttachment(_ context.Context, _ string, f models.Attachment) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attachments = append(d.attachments, f)
	return nil
}

func TestReportCommand(t *testing.T) {
	pterm.DisableOutput()
	t.Cleanup(pterm.EnableOutput)

	desk := &recordingDesk{}
	server := httptest.NewServer(proxy.NewServer(proxy.Options{}, desk, nil, nil))
	defer server.Close()

	dir := t.TempDir()
	shot := filepath.Join(dir, "shot.png")
	require.NoError(t, os.WriteFile(shot, []byte("\x89PNG\r\n\x1a\n"), 0o600))
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("not an image"), 0o600))

	root := newRootCmd()
	root.SetArgs([]string{
		"report",
		"--title", "  Export hangs ",
		"--description", "after clicking export",
		"--image", shot,
		"--image", notes,
		"--proxy-url", server.URL,
		"--app-version", "3.1.4",
	})
	require.NoError(t, root.Execute())

	require.Equal(t, []string{"Export hangs"}, desk.subjects)
	require.Len(t, desk.attachments, 2)
	assert.Equal(t, "shot.png", desk.attachments[0].Name)
	assert.Equal(t, "image/png", desk.attachments[0].ContentType)

	var bundle models.DiagnosticBundle
	require.NoError(t, jsoniter.Unmarshal(desk.attachments[1].Data, &bundle))
	assert.Equal(t, "3.1.4", bundle.Environment.AppVersion)
	assert.NotEmpty(t, bundle.Environment.SessionID)
	require.NotEmpty(t, bundle.ConsoleLogs)
	starts := 0
	for _, entry := range bundle.ConsoleLogs {
		if len(entry.Args) > 0 && entry.Args[0] == "[SubmitTicket] Start" {
			starts++
		}
	}
	assert.Positive(t, starts)
	assert.True(t, capture.Console.Installed())
	assert.True(t, capture.Network.Installed())
}

func TestReportCommand_RequiresTitle(t *testing.T) {
	pterm.DisableOutput()
	t.Cleanup(pterm.EnableOutput)

	root := newRootCmd()
	root.SetArgs([]string{"report", "--proxy-url", "http://127.0.0.1:1"})
	err := root.Execute()
	assert.ErrorContains(t, err, "Please enter a title")
	assert.False(t, printError(err))
}

func TestPrintErrorSkipsErrorsAlreadyShown(t *testing.T) {
	pterm.DisableOutput()
	t.Cleanup(pterm.EnableOutput)

	assert.True(t, printError(errors.New("open shot.png: no such file")))
	assert.False(t, printError(shownError{errors.New("db down")}))
	assert.False(t, printError(fmt.Errorf("report: %w", shownError{errors.New("db down")})))
}

func TestReadAttachment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0o600))

	a, err := readAttachment(path)
	require.NoError(t, err)
	assert.Equal(t, "clip", a.Name)
	assert.Equal(t, "application/pdf", a.ContentType)

	_, err = readAttachment(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestAppVersion(t *testing.T) {
	assert.Equal(t, "2.0.0", appVersion(config.ClientConfig{AppVersion: "2.0.0", ManifestPath: "/nonexistent"}))
	assert.Empty(t, appVersion(config.ClientConfig{}))
	assert.Empty(t, appVersion(config.ClientConfig{ManifestPath: filepath.Join(t.TempDir(), "Info.plist")}))
}
