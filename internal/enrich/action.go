package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DeafMist/doc-enricher/internal/config"
	"github.com/DeafMist/doc-enricher/internal/logger"
	"github.com/DeafMist/doc-enricher/internal/metrics"
	"github.com/DeafMist/doc-enricher/internal/models"
)

// Action enriches a single document.
type Action interface {
	// Kind returns the action kind, e.g. "summary".
	Kind() string
	// TargetField names the property whose presence marks a document as processed.
	TargetField() string
	// Execute returns true only when the document metadata was updated.
	// A returned error is fatal for this document only.
	Execute(ctx context.Context, doc models.Document) (bool, error)
}

// Nodes reads and writes repository nodes.
type Nodes interface {
	GetNode(ctx context.Context, id string) (models.Document, error)
	UpdateNode(ctx context.Context, id string, update models.NodeUpdate) error
	CreateTag(ctx context.Context, id, tag string) error
	Content(ctx context.Context, id string) ([]byte, error)
	PrimaryParent(ctx context.Context, id string) (string, error)
}

// Renditions manages derived renderings of a node.
type Renditions interface {
	RenditionStatus(ctx context.Context, id, rendition string) (models.RenditionStatus, error)
	RenditionContent(ctx context.Context, id, rendition string) ([]byte, error)
	CreateRendition(ctx context.Context, id, rendition string) error
}

// Repository is everything actions need from the content repository.
type Repository interface {
	Nodes
	Renditions
}

// AI produces enrichment results.
type AI interface {
	Summarize(ctx context.Context, file models.File) (models.Summary, error)
	Classify(ctx context.Context, file models.File, termList string) (models.Term, error)
	Describe(ctx context.Context, file models.File) (models.Description, error)
	Prompt(ctx context.Context, file models.File, question string) (models.Answer, error)
}

// Deps holds the collaborators shared by every action.
type Deps struct {
	Repo     Repository
	AI       AI
	Mappings config.Mappings
	Waiter   *Waiter
	Log      *slog.Logger
}

// New builds the action registered under kind. The returned action records
// execution metrics.
func New(kind string, d Deps) (Action, error) {
	if d.Log == nil {
		d.Log = logger.Discard()
	}
	if d.Waiter == nil {
		d.Waiter = NewWaiter(d.Repo, DefaultMaxAttempts, DefaultRetryDelay, d.Log)
	}
	mapping, ok := d.Mappings.For(kind)
	if !ok {
		return nil, fmt.Errorf("action %q: %w", kind, models.ErrUnsupportedAction)
	}

	base := base{
		kind:    kind,
		mapping: mapping,
		repo:    d.Repo,
		ai:      d.AI,
		updater: NewUpdater(d.Repo, d.Log),
		log:     d.Log.With(slog.String("action", kind)),
	}

	var a Action
	switch kind {
	case config.ActionSummary:
		a = &Summarize{base: base}
	case config.ActionClassify:
		a = &Classify{base: base, waiter: d.Waiter}
	case config.ActionDescribe:
		a = &Describe{base: base}
	case config.ActionPrompt:
		a = &Answer{base: base}
	default:
		return nil, fmt.Errorf("action %q: %w", kind, models.ErrUnsupportedAction)
	}
	return instrumented{Action: a}, nil
}

// NewAll builds one action per kind.
func NewAll(kinds []string, d Deps) (map[string]Action, error) {
	actions := make(map[string]Action, len(kinds))
	for _, kind := range kinds {
		a, err := New(kind, d)
		if err != nil {
			return nil, err
		}
		actions[kind] = a
	}
	return actions, nil
}

type base struct {
	kind    string
	mapping config.ActionMapping
	repo    Repository
	ai      AI
	updater *Updater
	log     *slog.Logger
}

func (b base) Kind() string { return b.kind }

func (b base) TargetField() string {
	return b.mapping.Fields[config.PrimaryField(b.kind)]
}

func (b base) apply(ctx context.Context, docID string, result models.EnrichmentResult) error {
	return b.updater.Apply(ctx, docID, b.mapping, result)
}

type instrumented struct {
	Action
}

func (i instrumented) Execute(ctx context.Context, doc models.Document) (bool, error) {
	start := time.Now()
	updated, err := i.Action.Execute(ctx, doc)
	metrics.ActionDuration.WithLabelValues(i.Kind()).Observe(time.Since(start).Seconds())
	metrics.ActionsTotal.WithLabelValues(i.Kind(), metrics.Outcome(updated, err)).Inc()
	return updated, err
}

func pdfFile(doc models.Document, data []byte) models.File {
	return models.File{Name: doc.Name, ContentType: "application/pdf", Data: data}
}
