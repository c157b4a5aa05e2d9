package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DeafMist/doc-enricher/internal/metrics"
	"github.com/DeafMist/doc-enricher/internal/models"
)

// Waiter defaults.
const (
	DefaultMaxAttempts = 10
	DefaultRetryDelay  = 2 * time.Second
)

// Waiter blocks until a rendition is created or a fixed number of status
// polls has been spent.
type Waiter struct {
	renditions  Renditions
	maxAttempts int
	delay       time.Duration
	log         *slog.Logger
}

// NewWaiter creates a Waiter. Non-positive attempts fall back to the default.
func NewWaiter(renditions Renditions, maxAttempts int, delay time.Duration, logger *slog.Logger) *Waiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if delay < 0 {
		delay = 0
	}
	return &Waiter{renditions: renditions, maxAttempts: maxAttempts, delay: delay, log: logger}
}

// Wait returns the rendition content as soon as its status is CREATED.
// It returns a *models.RenditionTimeoutError after maxAttempts polls.
func (w *Waiter) Wait(ctx context.Context, docID, rendition string) ([]byte, error) {
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		status, err := w.renditions.RenditionStatus(ctx, docID, rendition)
		if err != nil {
			return nil, fmt.Errorf("wait rendition %s of %s: %w", rendition, docID, err)
		}
		if status == models.RenditionCreated {
			metrics.RenditionWaitAttempts.Observe(float64(attempt))
			return w.renditions.RenditionContent(ctx, docID, rendition)
		}

		w.log.Info("rendition not available, retrying",
			slog.String("document_id", docID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", w.maxAttempts),
		)
		if attempt == w.maxAttempts {
			break
		}
		if err := sleep(ctx, w.delay); err != nil {
			return nil, err
		}
	}
	return nil, &models.RenditionTimeoutError{DocumentID: docID, Attempts: w.maxAttempts}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
