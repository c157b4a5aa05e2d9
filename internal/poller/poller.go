package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/DeafMist/doc-enricher/internal/dedupe"
	"github.com/DeafMist/doc-enricher/internal/enrich"
	"github.com/DeafMist/doc-enricher/internal/logger"
	"github.com/DeafMist/doc-enricher/internal/metrics"
	"github.com/DeafMist/doc-enricher/internal/models"
)

// Searcher returns pages of documents that still lack a target field.
type Searcher interface {
	Search(ctx context.Context, q models.SearchQuery) (models.SearchPage, error)
}

// Config tunes a poll run.
type Config struct {
	RootFolder string
	PageSize   int
	// Workers bounds concurrent executions within a page. Defaults to PageSize.
	Workers int
	// MaxIterations caps search pages per run, 0 means unbounded.
	MaxIterations int
}

// Stats summarizes a poll run.
type Stats struct {
	RunID      string
	Iterations int
	Updated    int
	Skipped    int
	Failed     int
	Duplicates int
	Took       time.Duration
}

// Poller repeatedly searches for unprocessed documents and runs an action on them.
type Poller struct {
	search Searcher
	action enrich.Action
	cfg    Config
	log    *slog.Logger
}

// New creates a Poller.
func New(search Searcher, action enrich.Action, cfg Config, log *slog.Logger) *Poller {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = cfg.PageSize
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Poller{search: search, action: action, cfg: cfg, log: log}
}

// Run processes pages until the search reports no more items. Search errors
// abort the run; errors from a single document are logged and counted.
func (p *Poller) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	stats := Stats{RunID: uuid.NewString()}
	log := p.log.With(slog.String("run_id", stats.RunID), slog.String("action", p.action.Kind()))
	seen := dedupe.NewSet()

	query := models.SearchQuery{
		RootPath:    p.cfg.RootFolder,
		TargetField: p.action.TargetField(),
		MaxItems:    p.cfg.PageSize,
	}

	log.Info("poll run started", slog.String("root", p.cfg.RootFolder), slog.String("target_field", query.TargetField))

	for {
		if err := ctx.Err(); err != nil {
			stats.Took = time.Since(start)
			return stats, err
		}
		if p.cfg.MaxIterations > 0 && stats.Iterations >= p.cfg.MaxIterations {
			stats.Took = time.Since(start)
			log.Warn("poll run stopped at iteration limit", slog.Int("iterations", stats.Iterations))
			return stats, fmt.Errorf("after %d iterations: %w", stats.Iterations, models.ErrIterationLimit)
		}

		page, err := p.search.Search(ctx, query)
		if err != nil {
			stats.Took = time.Since(start)
			return stats, fmt.Errorf("search iteration %d: %w", stats.Iterations+1, err)
		}
		stats.Iterations++
		metrics.PollIterationsTotal.WithLabelValues(p.action.Kind()).Inc()

		log.Debug("page fetched",
			slog.Int("iteration", stats.Iterations),
			slog.Int("entries", len(page.Entries)),
			slog.Int64("total", page.TotalItems),
			slog.Bool("has_more", page.HasMoreItems),
		)

		p.processPage(ctx, log, page.Entries, seen, &stats)

		if !page.HasMoreItems {
			break
		}
	}

	stats.Took = time.Since(start)
	log.Info("poll run finished",
		slog.Int("iterations", stats.Iterations),
		slog.Int("updated", stats.Updated),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("distinct_updated", seen.Len()),
		slog.Duration("took", stats.Took),
	)
	return stats, nil
}

func (p *Poller) processPage(ctx context.Context, log *slog.Logger, entries []models.SearchEntry, seen *dedupe.Set, stats *Stats) {
	var (
		wg                       sync.WaitGroup
		updated, skipped, failed atomic.Int64
		duplicates               int
	)
	sem := make(chan struct{}, p.cfg.Workers)

	for _, entry := range entries {
		if !seen.Claim(entry.ID) {
			duplicates++
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			seen.Release(entry.ID)
			continue
		}

		wg.Add(1)
		go func(entry models.SearchEntry) {
			defer wg.Done()
			defer func() { <-sem }()

			doc := models.Document{ID: entry.ID, Name: entry.Name}
			ok, err := p.action.Execute(ctx, doc)
			switch {
			case err != nil:
				seen.Release(entry.ID)
				failed.Add(1)
				log.Error("document failed",
					slog.String("document_id", entry.ID),
					slog.String("name", entry.Name),
					slog.Any("error", err),
				)
			case ok:
				seen.MarkDone(entry.ID)
				updated.Add(1)
			default:
				seen.Release(entry.ID)
				skipped.Add(1)
			}
		}(entry)
	}
	wg.Wait()

	stats.Updated += int(updated.Load())
	stats.Skipped += int(skipped.Load())
	stats.Failed += int(failed.Load())
	stats.Duplicates += duplicates
}
