package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.io/infrasutra/bankfeed/internal/api"
	"github.io/infrasutra/bankfeed/internal/auth"
	"github.io/infrasutra/bankfeed/internal/config"
	"github.io/infrasutra/bankfeed/internal/ingest"
	"github.io/infrasutra/bankfeed/internal/smtpgateway"
	"github.io/infrasutra/bankfeed/internal/sse"
	"github.io/infrasutra/bankfeed/internal/store"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, dashboard and SMTP capture gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx := context.Background()
	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	authManager, err := auth.New(cfg.AuthSecret, 30*24*time.Hour)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}
	if cfg.AuthSecret == "" {
		logger.Warn("AUTH_SECRET not set; sessions reset on restart")
	}

	hub := sse.NewHub()
	ingestor := ingest.New(db, hub, logger)
	apiServer := api.NewServer(cfg, db, authManager, hub, ingestor, logger)

	gatewayAuth := smtpgateway.AuthConfig{
		Enabled:  cfg.SMTPAuthEnabled,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	}
	if !gatewayAuth.Enabled {
		logger.Warn("smtp auth disabled; gateway accepts unauthenticated connections")
	}
	gateway := smtpgateway.New(db, hub, logger, fmt.Sprintf(":%d", cfg.SMTPPort), gatewayAuth)

	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	httpSrv := &http.Server{
		Addr:    httpAddr,
		Handler: apiServer,
	}

	go func() {
		if err := gateway.ListenAndServe(); err != nil {
			logger.Error("smtp gateway stopped", "error", err)
		}
	}()

	go func() {
		logger.Info("http server listening", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown http", "error", err)
	}
	if err := gateway.Close(); err != nil {
		logger.Error("shutdown smtp gateway", "error", err)
	}
	return nil
}
