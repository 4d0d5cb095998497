// Command taxagent-server runs the filing service: HTTP API plus the admin
// gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/acoyfellow/tax-agent/internal/config"
	"github.com/acoyfellow/tax-agent/internal/limiter"
	"github.com/acoyfellow/tax-agent/internal/logging"
	"github.com/acoyfellow/tax-agent/internal/migrate"
	"github.com/acoyfellow/tax-agent/internal/provider"
	"github.com/acoyfellow/tax-agent/internal/repository/postgres"
	"github.com/acoyfellow/tax-agent/internal/review"
	grpcserver "github.com/acoyfellow/tax-agent/internal/server/grpc"
	httpserver "github.com/acoyfellow/tax-agent/internal/server/http"
	"github.com/acoyfellow/tax-agent/internal/service"
	"github.com/acoyfellow/tax-agent/internal/tracker"
	"github.com/acoyfellow/tax-agent/internal/validate"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	cfgPath := flag.String("config", "", "path to YAML config (env TAXAGENT_* overrides)")
	skipMigrate := flag.Bool("skip-migrate", false, "do not apply migrations on startup")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("http", cfg.HTTP.Addr),
		zap.String("grpc", cfg.GRPC.Addr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !*skipMigrate {
		if err := migrate.Up(ctx, cfg.Database.DSN); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer db.Close()

	tr := tracker.New(
		postgres.NewSubmissionRepo(db),
		[]byte(cfg.Webhook.Secret),
		cfg.Webhook.ClientID,
		logger.Named("tracker"),
	)
	filer := provider.New(provider.Config{
		BaseURL: cfg.Provider.BaseURL,
		AuthURL: cfg.Provider.AuthURL,
		Creds: provider.Credentials{
			ClientID:     cfg.Provider.ClientID,
			ClientSecret: cfg.Provider.ClientSecret,
			UserToken:    cfg.Provider.UserToken,
		},
		Timeout:   cfg.Provider.Timeout,
		Policy:    provider.Policy{MaxAttempts: cfg.Provider.MaxAttempts, BaseDelay: cfg.Provider.BaseDelay},
		TokenSkew: cfg.Provider.TokenSkew,
	}, provider.WithLogger(logger.Named("provider")))

	llm := review.NewAnthropicClient(cfg.Reviewer.APIKey, cfg.Reviewer.Timeout,
		review.WithBaseURL(cfg.Reviewer.BaseURL),
		review.WithModel(cfg.Reviewer.Model),
		review.WithMaxTokens(cfg.Reviewer.MaxTokens),
	)
	reviewer := review.NewGateway(llm, llm.Model(), logger.Named("review"))

	svc := service.NewFilingService(validate.New(), reviewer, filer, tr, service.DefaultMaxBatch, logger.Named("service"))

	senders := limiter.NewPG(db.Pool, limiter.Config{
		Window:   cfg.Webhook.FailureWindow,
		MaxFails: cfg.Webhook.MaxFailures,
		BlockFor: cfg.Webhook.LockoutFor,
	})

	api := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpserver.New(svc, tr, db, logger.Named("http"), httpserver.WithCallbackLimiter(senders)).Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	admin := grpcserver.NewAdmin(logger.Named("grpc"))
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		logger.Fatal("listen grpc", zap.Error(err))
	}
	go admin.Watch(ctx, db, 10*time.Second)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		logger.Info("grpc listening", zap.String("addr", cfg.GRPC.Addr))
		if err := admin.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	// In-flight filings finish; their handlers run detached from the request context.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		admin.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("grpc shutdown timed out")
	}

	logger.Info("shutdown complete")
}
