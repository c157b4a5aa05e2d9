package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/DeafMist/doc-enricher/internal/bootstrap"
	"github.com/DeafMist/doc-enricher/internal/config"
	"github.com/DeafMist/doc-enricher/internal/elasticsearch"
	"github.com/DeafMist/doc-enricher/internal/logger"
	"github.com/DeafMist/doc-enricher/internal/metrics"
	"github.com/DeafMist/doc-enricher/internal/poller"
)

const (
	connectAttempts = 10
	connectDelay    = 2 * time.Second
)

func main() {
	_ = godotenv.Load()

	log := logger.New("applier")
	cfg, err := config.LoadApplier()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	stack := bootstrap.New(cfg.Common, log)
	actions, err := stack.Actions(cfg.Action)
	if err != nil {
		log.Error("build action", slog.Any("err", err))
		os.Exit(1)
	}

	if err := bootstrap.WaitReady(ctx, "repository", stack.Repo, connectAttempts, connectDelay, log); err != nil {
		log.Error("failed to connect to repository after retries", slog.Any("err", err))
		os.Exit(1)
	}

	searcher, err := newSearcher(ctx, cfg, stack, log)
	if err != nil {
		log.Error("init search backend", slog.Any("err", err))
		os.Exit(1)
	}

	p := poller.New(searcher, actions[cfg.Action], poller.Config{
		RootFolder:    cfg.RootFolder,
		PageSize:      cfg.PageSize,
		Workers:       cfg.Workers,
		MaxIterations: cfg.MaxIterations,
	}, log)

	log.Info("applier running",
		slog.String("action", cfg.Action),
		slog.String("root", cfg.RootFolder),
		slog.String("search_backend", cfg.SearchBackend),
		slog.Duration("interval", cfg.Interval),
	)

	if cfg.Interval == 0 {
		if err := runOnce(ctx, log, p); err != nil {
			os.Exit(1)
		}
		return
	}

	shutdownOps := bootstrap.ServeOps(bootstrap.OpsServer(cfg.MetricsBindAddr, stack.Repo), log)
	defer shutdownOps()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	_ = runOnce(ctx, log, p)
	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case <-ticker.C:
			_ = runOnce(ctx, log, p)
		}
	}
}

type runner interface {
	Run(ctx context.Context) (poller.Stats, error)
}

func runOnce(ctx context.Context, log *slog.Logger, p runner) error {
	stats, err := p.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		log.Info("poll run interrupted", slog.String("run_id", stats.RunID))
		return nil
	case err != nil:
		log.Warn("poll run failed (will retry on next interval)", slog.String("run_id", stats.RunID), slog.Any("err", err))
		return err
	}

	if stats.Skipped > 0 {
		log.Info("some documents were not updated, PDF renditions may still be in progress; run the applier again to complete them",
			slog.String("run_id", stats.RunID),
			slog.Int("skipped", stats.Skipped),
		)
	}
	return nil
}

func newSearcher(ctx context.Context, cfg *config.Applier, stack *bootstrap.Stack, log *slog.Logger) (poller.Searcher, error) {
	if cfg.SearchBackend != config.SearchElasticsearch {
		return stack.Repo, nil
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		return nil, err
	}
	if err := bootstrap.WaitReady(ctx, "elasticsearch", esClient, connectAttempts, connectDelay, log); err != nil {
		return nil, err
	}
	if err := esClient.Health(ctx); err != nil {
		return nil, err
	}
	log.Info("connected to elasticsearch", slog.String("index", cfg.ElasticsearchIndex))
	return esClient, nil
}
