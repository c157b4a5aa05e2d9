// Package dispatch routes repository change events to actions through a
// table of filter registrations.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DeafMist/doc-enricher/internal/filter"
	"github.com/DeafMist/doc-enricher/internal/logger"
	"github.com/DeafMist/doc-enricher/internal/metrics"
	"github.com/DeafMist/doc-enricher/internal/models"
)

// Handler reacts to a matching event. It reports whether a document was updated.
type Handler func(ctx context.Context, ev models.ChangeEvent) (bool, error)

// Registration binds a handler to events of one kind matching a filter.
type Registration struct {
	Name    string
	Kind    models.EventKind
	Filter  filter.Expr
	Handler Handler
}

// Dispatcher evaluates every registration against each event.
type Dispatcher struct {
	regs []Registration
	log  *slog.Logger
}

// New creates a Dispatcher.
func New(regs []Registration, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = logger.Discard()
	}
	for _, r := range regs {
		log.Debug("handler registered",
			slog.String("registration", r.Name),
			slog.String("kind", string(r.Kind)),
			slog.String("filter", r.Filter.String()),
		)
	}
	return &Dispatcher{regs: regs, log: log}
}

// Registrations returns the names of the registered handlers.
func (d *Dispatcher) Registrations() []string {
	names := make([]string, 0, len(d.regs))
	for _, r := range d.regs {
		names = append(names, r.Name)
	}
	return names
}

// Dispatch invokes every matching handler once. A failing handler does not
// prevent the others from running; all failures are returned joined.
func (d *Dispatcher) Dispatch(ctx context.Context, ev models.ChangeEvent) error {
	var errs []error
	matched := 0

	for _, r := range d.regs {
		if r.Kind != ev.Kind || !filter.Eval(r.Filter, ev) {
			continue
		}
		matched++

		log := d.log.With(
			slog.String("registration", r.Name),
			slog.String("event_id", ev.ID),
			slog.String("resource_id", ev.ResourceID),
		)
		log.Info("event matched")

		updated, err := r.Handler(ctx, ev)
		metrics.EventsTotal.WithLabelValues(r.Name, metrics.Outcome(updated, err)).Inc()
		if err != nil {
			log.Error("handler failed", slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, err))
			continue
		}
		log.Debug("handler completed", slog.Bool("updated", updated))
	}

	if matched == 0 {
		d.log.Debug("event ignored", slog.String("event_id", ev.ID), slog.String("kind", string(ev.Kind)))
	}
	return errors.Join(errs...)
}
