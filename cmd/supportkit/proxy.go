package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ilexum-group/supportkit/internal/config"
	"github.com/ilexum-group/supportkit/internal/observability"
	"github.com/ilexum-group/supportkit/internal/proxy"
)

func newProxyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "proxy",
		Short: "Serve the ticket proxy in front of the help desk",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromFlagSet(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runProxy(ctx, cfg)
		},
	}
}

func runProxy(ctx context.Context, cfg *config.Config) error {
	observability.InitializeLogger(cfg.Logger)
	defer observability.Sync()
	logger := observability.GetLogger()
	logger.Info("Starting ticket proxy", zap.String("version", Version), zap.Bool("production", cfg.Proxy.IsProduction()))

	zoho := cfg.Proxy.Zoho
	if zoho.OrgID == "" || zoho.AccessToken == "" {
		logger.Warn("Help desk credentials incomplete; ticket creation will fail",
			zap.Bool("org_id_set", zoho.OrgID != ""),
			zap.Bool("access_token_set", zoho.AccessToken != ""))
	}
	desk := proxy.NewZohoDesk(zoho.DeskURL, zoho.OrgID, proxy.StaticToken(zoho.AccessToken), &http.Client{Timeout: zoho.Timeout}, logger)
	desk.DepartmentID = zoho.DepartmentID
	desk.ContactID = zoho.ContactID

	ledger, err := proxy.OpenLedger(cfg.Proxy.LedgerPath)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer ledger.Close()

	srv := proxy.NewServer(proxy.Options{
		Addr:           fmt.Sprintf(":%d", cfg.Proxy.Port),
		Production:     cfg.Proxy.IsProduction(),
		MaxUploadBytes: cfg.Proxy.MaxUploadMB << 20,
		RateLimit:      cfg.Proxy.RateLimit,
		RateBurst:      cfg.Proxy.RateBurst,
		ReadTimeout:    cfg.Proxy.ReadTimeout,
		WriteTimeout:   cfg.Proxy.WriteTimeout,
	}, desk, ledger, logger)
	return srv.ListenAndServe(ctx)
}
