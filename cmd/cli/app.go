package main

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/acoyfellow/tax-agent/internal/config"
	"github.com/acoyfellow/tax-agent/internal/logging"
	"github.com/acoyfellow/tax-agent/internal/model"
	"github.com/acoyfellow/tax-agent/internal/provider"
	"github.com/acoyfellow/tax-agent/internal/repository/postgres"
	"github.com/acoyfellow/tax-agent/internal/review"
	"github.com/acoyfellow/tax-agent/internal/service"
	"github.com/acoyfellow/tax-agent/internal/tracker"
	"github.com/acoyfellow/tax-agent/internal/validate"
)

// app builds dependencies on first use so commands like version and offline
// validate need no database or credentials.
type app struct {
	cfgPath string

	cfg *config.Config
	log *zap.Logger
	db  *postgres.DB
}

func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

func (a *app) logger() (*zap.Logger, error) {
	if a.log != nil {
		return a.log, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}
	a.log = log
	return log, nil
}

func (a *app) database(ctx context.Context) (*postgres.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	if cfg.Database.DSN == "" {
		return nil, errors.New("database.dsn is required")
	}
	db, err := postgres.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

func (a *app) tracker(ctx context.Context) (*tracker.Tracker, error) {
	db, err := a.database(ctx)
	if err != nil {
		return nil, err
	}
	log, err := a.logger()
	if err != nil {
		return nil, err
	}
	return tracker.New(postgres.NewSubmissionRepo(db), []byte(a.cfg.Webhook.Secret), a.cfg.Webhook.ClientID, log.Named("tracker")), nil
}

// service wires the full workflow. It requires a valid configuration.
func (a *app) service(ctx context.Context) (*service.FilingServiceImpl, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log, err := a.logger()
	if err != nil {
		return nil, err
	}
	tr, err := a.tracker(ctx)
	if err != nil {
		return nil, err
	}

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
	}, provider.WithLogger(log.Named("provider")))

	llm := review.NewAnthropicClient(cfg.Reviewer.APIKey, cfg.Reviewer.Timeout,
		review.WithBaseURL(cfg.Reviewer.BaseURL),
		review.WithModel(cfg.Reviewer.Model),
		review.WithMaxTokens(cfg.Reviewer.MaxTokens),
	)
	reviewer := review.NewGateway(llm, llm.Model(), log.Named("review"))

	return service.NewFilingService(validate.New(), reviewer, filer, tr, service.DefaultMaxBatch, log.Named("service")), nil
}

// offlineService validates without the reviewer, provider or database.
func (a *app) offlineService() *service.FilingServiceImpl {
	log := a.log
	if log == nil {
		log = zap.NewNop()
	}
	return service.NewFilingService(validate.New(), offlineReviewer{}, nil, nil, service.DefaultMaxBatch, log)
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// offlineReviewer stands in for the semantic reviewer in offline mode.
type offlineReviewer struct{}

var _ review.Reviewer = offlineReviewer{}

func (offlineReviewer) Review(context.Context, model.FilingRequest) (model.ValidationResult, error) {
	return model.NewValidationResult(nil, "Structural checks passed; semantic review skipped (offline).", "offline"), nil
}
