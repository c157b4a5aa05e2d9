// Package bootstrap wires gateways and actions from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DeafMist/doc-enricher/internal/config"
	"github.com/DeafMist/doc-enricher/internal/enrich"
	"github.com/DeafMist/doc-enricher/internal/genai"
	"github.com/DeafMist/doc-enricher/internal/repository"
)

// Stack holds the collaborators shared by the binaries.
type Stack struct {
	Repo *repository.Client
	Deps enrich.Deps
}

// New builds the repository client and the action dependencies around it.
func New(cfg config.Common, logger *slog.Logger) *Stack {
	repo := repository.New(repository.Config{
		BaseURL:  cfg.RepositoryURL,
		User:     cfg.RepositoryUser,
		Password: cfg.RepositoryPassword,
		Timeout:  cfg.RepositoryTimeout,
	}, logger.With(slog.String("component", "repository")))

	ai := genai.New(genai.Config{
		BaseURL:     cfg.GenAIURL,
		ReadTimeout: cfg.GenAITimeout,
		RateLimit:   cfg.GenAIRateLimit,
		RateBurst:   cfg.GenAIRateBurst,
	}, logger.With(slog.String("component", "genai")))

	return &Stack{
		Repo: repo,
		Deps: enrich.Deps{
			Repo:     repo,
			AI:       ai,
			Mappings: cfg.Mappings,
			Waiter:   enrich.NewWaiter(repo, cfg.RenditionMaxAttempts, cfg.RenditionRetryDelay, logger),
			Log:      logger,
		},
	}
}

// Actions builds one action per kind.
func (s *Stack) Actions(kinds ...string) (map[string]enrich.Action, error) {
	return enrich.NewAll(kinds, s.Deps)
}

// Pinger is anything that can report its availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WaitReady pings target until it answers, the attempts run out or ctx is done.
func WaitReady(ctx context.Context, name string, target Pinger, attempts int, delay time.Duration, logger *slog.Logger) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = target.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		logger.Warn("dependency not ready, retrying",
			slog.String("dependency", name),
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s not ready after %d attempts: %w", name, attempts, err)
}
