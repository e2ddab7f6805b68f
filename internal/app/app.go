package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"NewsAutopilot/internal/config"
	"NewsAutopilot/internal/infrastructure/httpapi"
	"NewsAutopilot/internal/infrastructure/ledger"
	"NewsAutopilot/internal/infrastructure/llm"
	"NewsAutopilot/internal/infrastructure/metrics"
	"NewsAutopilot/internal/infrastructure/parser"
	"NewsAutopilot/internal/infrastructure/publisher"
	"NewsAutopilot/internal/infrastructure/rewrite"
	"NewsAutopilot/internal/infrastructure/scheduler"
	"NewsAutopilot/internal/infrastructure/storage"
	"NewsAutopilot/internal/infrastructure/telegram"
	"NewsAutopilot/internal/logging"
	"NewsAutopilot/internal/ports"
	"NewsAutopilot/internal/scanner"
	"NewsAutopilot/internal/usecase"
	"NewsAutopilot/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	db     *storage.DB

	runner    *usecase.MonitoringRunner
	scheduler *usecase.Scheduler
	server    *http.Server
}

// New opens storage and builds every adapter and use case.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	db, err := storage.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	repo := storage.NewRepository(db)
	baseLogger.Info("storage ready", "dialect", db.Dialect())

	observer := metrics.New()
	fetchClient := &http.Client{Timeout: cfg.Pipeline.FetchTimeout}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewFeedScanner(fetchClient))
	registry.Register(parser.NewWebsiteScanner(fetchClient))
	origin := parser.NewStrategySource(registry, baseLogger.With("component", "source"))

	cache := usecase.NewArticleCache()
	counter := usecase.NewExecutionCounter(repo, cfg.Pipeline.BatchSize)

	processor := usecase.NewSourceProcessor(usecase.ProcessorDeps{
		Sources:          repo,
		Articles:         repo,
		Origin:           origin,
		Detector:         parser.NewDetector(fetchClient),
		Counter:          counter,
		Cache:            cache,
		Observer:         observer,
		Logger:           baseLogger.With("component", "processor"),
		HealthyThreshold: cfg.Pipeline.HealthyThreshold,
		EmptyRunLimit:    cfg.Pipeline.EmptyRunLimit,
		FetchTimeout:     cfg.Pipeline.FetchTimeout,
	})

	credits := newLedger(cfg, db)
	rewriteOrchestrator := usecase.NewRewriteOrchestrator(usecase.RewriteDeps{
		Ledger:   credits,
		Rewriter: newRewriter(cfg, credits, baseLogger),
		Articles: repo,
		Defaults: ports.RewriteOptions{
			Tone:     cfg.Pipeline.Tone,
			Style:    cfg.Pipeline.Style,
			Language: cfg.Pipeline.Language,
			Length:   cfg.Pipeline.Length,
		},
		Timeout:  cfg.Pipeline.RewriteTimeout,
		Observer: observer,
		Logger:   baseLogger.With("component", "rewrite"),
	})

	publishOrchestrator := usecase.NewPublishOrchestrator(usecase.PublishDeps{
		Sources:    repo,
		Sites:      repo,
		Monitoring: repo,
		Articles:   repo,
		Publisher:  newPublisher(cfg, baseLogger),
		Timeout:    cfg.Pipeline.PublishTimeout,
		Observer:   observer,
		Logger:     baseLogger.With("component", "publish"),
	})

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID); tg.Configured() {
		notifier = tg
	}

	runner := usecase.NewMonitoringRunner(usecase.PipelineDeps{
		Monitoring: repo,
		Processor:  processor,
		Rewriter:   rewriteOrchestrator,
		Publisher:  publishOrchestrator,
		Notifier:   notifier,
		Logger:     baseLogger.With("component", "monitoring"),
	})

	integrity := usecase.NewIntegrityValidator(repo, repo, repo, cache, observer, baseLogger.With("component", "integrity"))

	api := httpapi.NewServer(httpapi.Deps{
		Processor:  processor,
		Counter:    counter,
		Runner:     runner,
		Rewriter:   rewriteOrchestrator,
		Publisher:  publishOrchestrator,
		Integrity:  integrity,
		Monitoring: repo,
		Articles:   repo,
		Metrics:    observer.Handler(),
		Logger:     baseLogger.With("component", "http"),
	})

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		runner:    runner,
		scheduler: usecase.NewScheduler(scheduler.NewTicker(cfg.Scheduler.TickInterval), runner, baseLogger.With("component", "scheduler")),
		server: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          logger.New(baseLogger, "http"),
		},
	}, nil
}

func newLedger(cfg config.Config, db *storage.DB) ports.CreditLedger {
	if cfg.Ledger.Endpoint != "" {
		return ledger.NewClient(cfg.Ledger.Endpoint, cfg.Ledger.APIKey, nil)
	}
	return storage.NewCreditLedger(db)
}

func newRewriter(cfg config.Config, credits ports.CreditLedger, log *slog.Logger) ports.Rewriter {
	switch {
	case cfg.Rewrite.Endpoint != "":
		return rewrite.NewClient(cfg.Rewrite.Endpoint, cfg.Rewrite.APIKey, cfg.Pipeline.RewriteTimeout)
	case cfg.ChatGPT.APIKey != "":
		return llm.NewChatRewriter(cfg.ChatGPT, credits)
	default:
		log.Warn("no rewriter configured, rewrites will fail")
		return nil
	}
}

func newPublisher(cfg config.Config, log *slog.Logger) ports.Publisher {
	if cfg.Publisher.Endpoint == "" {
		log.Warn("no publisher configured, publishing will fail")
		return nil
	}
	return publisher.NewClient(publisher.Options{
		Endpoint:   cfg.Publisher.Endpoint,
		APIKey:     cfg.Publisher.APIKey,
		Timeout:    cfg.Pipeline.PublishTimeout,
		MaxRetries: cfg.Publisher.MaxRetries,
		Logger:     log.With("component", "publisher"),
	})
}

// Run executes every due monitoring config once; meant for cron.
func (a *Application) Run(ctx context.Context) error {
	reports, err := a.runner.ExecuteDue(ctx)
	if err != nil {
		return err
	}
	var failed int
	for _, report := range reports {
		if report.Err != nil {
			failed++
		}
	}
	a.logger.Info("due monitoring run finished",
		"configs", len(reports),
		"failed", failed,
		"at", time.Now().In(a.cfg.Scheduler.Location()).Format(time.RFC3339))
	return nil
}

// Serve starts the ticker and the trigger API and blocks until ctx ends.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http api listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", "error", err)
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Error("scheduler stop failed", "error", err)
	}
	return serveErr
}

// Close releases storage.
func (a *Application) Close() error {
	return a.db.Close()
}
