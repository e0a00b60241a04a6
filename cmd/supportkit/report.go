package main

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ilexum-group/supportkit/internal/capture"
	"github.com/ilexum-group/supportkit/internal/config"
	"github.com/ilexum-group/supportkit/internal/console"
	"github.com/ilexum-group/supportkit/internal/environment"
	"github.com/ilexum-group/supportkit/internal/models"
	"github.com/ilexum-group/supportkit/internal/ticket"
	"github.com/ilexum-group/supportkit/internal/utils"
)

type reportOptions struct {
	title       string
	description string
	images      []string
	video       string
}

func newReportCmd() *cobra.Command {
	opts := &reportOptions{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Submit a support ticket with diagnostics attached",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromFlagSet(cmd.Flags())
			if err != nil {
				return err
			}
			return runReport(cfg, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "ticket title (required)")
	cmd.Flags().StringVarP(&opts.description, "description", "d", "", "what happened")
	cmd.Flags().StringSliceVarP(&opts.images, "image", "i", nil, "screenshot to attach (repeatable)")
	cmd.Flags().StringVar(&opts.video, "video", "", "screen recording to attach")
	return cmd
}

func runReport(cfg *config.Config, opts *reportOptions) error {
	defer capture.Recover()

	utils.InitDefaultLogger(cfg.Client.AppName, utils.FileConfig{
		Path:       cfg.Logger.LogFile,
		MaxSizeMB:  cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
	})
	capture.InstallAll()

	version := appVersion(cfg.Client)
	console.Info("supportkit", Version, "reporting for", cfg.Client.AppName, version)

	var store environment.SessionStore = environment.NewMemoryStore()
	if cfg.Client.SessionDB != "" {
		sqliteStore, err := environment.OpenSQLiteStore(cfg.Client.SessionDB)
		if err != nil {
			console.Warn("Session store unavailable:", err)
		} else {
			defer sqliteStore.Close()
			store = sqliteStore
		}
	}

	source := environment.NewProcessSource(cfg.Client.AppName, version)
	source.PageURL = cfg.Client.PageURL
	source.Referer = cfg.Client.Referrer
	source.Screen = environment.Size{Width: cfg.Client.ScreenWidth, Height: cfg.Client.ScreenHeight}

	payload := models.TicketPayload{Title: opts.title, Description: opts.description}
	for _, path := range opts.images {
		a, err := readAttachment(path)
		if err != nil {
			return err
		}
		payload.Images = append(payload.Images, a)
	}
	if opts.video != "" {
		a, err := readAttachment(opts.video)
		if err != nil {
			return err
		}
		payload.Video = &a
	}

	flow := ticket.NewFlow(
		ticket.NewAssembler(capture.Console, capture.Network, capture.Errors, environment.NewSnapshotter(source, store), version),
		ticket.NewSubmitter(cfg.ProxyBaseURL(), &http.Client{Timeout: cfg.Client.Timeout}),
	)

	spinner, _ := pterm.DefaultSpinner.Start("Submitting ticket to " + cfg.ProxyBaseURL())
	result, err := flow.Submit(payload)
	if err != nil {
		spinner.Fail(err.Error())
		return shownError{fmt.Errorf("failed to submit ticket: %w", err)}
	}
	spinner.Success(result.Message)

	return pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Field", "Value"},
		{"Ticket ID", result.TicketID},
		{"Title", result.Title},
		{"Images", strconv.Itoa(result.ImageCount)},
		{"Video", strconv.FormatBool(result.HasVideo)},
		{"Console logs", strconv.Itoa(result.ConsoleLogCount)},
		{"Network logs", strconv.Itoa(result.NetworkLogCount)},
	}).Render()
}

func appVersion(cfg config.ClientConfig) string {
	if cfg.AppVersion != "" {
		return cfg.AppVersion
	}
	if cfg.ManifestPath == "" {
		return ""
	}
	version, err := environment.ManifestVersion(cfg.ManifestPath)
	if err != nil {
		console.Warn("Could not read app version:", err)
		return ""
	}
	return version
}

func readAttachment(path string) (models.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to read attachment: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return models.Attachment{Name: filepath.Base(path), ContentType: contentType, Data: data}, nil
}
