package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DeafMist/doc-enricher/internal/config"
	"github.com/DeafMist/doc-enricher/internal/enrich"
	"github.com/DeafMist/doc-enricher/internal/filter"
	"github.com/DeafMist/doc-enricher/internal/logger"
	"github.com/DeafMist/doc-enricher/internal/models"
)

// NodeReader loads repository nodes.
type NodeReader interface {
	GetNode(ctx context.Context, id string) (models.Document, error)
}

// ActionHandler runs the action on the event's resource.
func ActionHandler(action enrich.Action) Handler {
	return func(ctx context.Context, ev models.ChangeEvent) (bool, error) {
		return action.Execute(ctx, ev.Document())
	}
}

// RenditionSummaryHandler summarizes the parent of a freshly created PDF
// rendition when that parent carries the summary aspect. Rendition events
// fire for every rendition in the repository, so the parent lookup happens
// here rather than in the filter.
func RenditionSummaryHandler(nodes NodeReader, action enrich.Action, aspect string, log *slog.Logger) Handler {
	return func(ctx context.Context, ev models.ChangeEvent) (bool, error) {
		if ev.Name != models.RenditionPDF || len(ev.PrimaryHierarchy) == 0 {
			return false, nil
		}
		parentID := ev.PrimaryHierarchy[0]

		parent, err := nodes.GetNode(ctx, parentID)
		if err != nil {
			return false, fmt.Errorf("load rendition parent %s: %w", parentID, err)
		}
		if !parent.HasAspect(aspect) {
			return false, nil
		}

		log.Info("pdf rendition created, summarizing parent", slog.String("document_id", parentID))
		return action.Execute(ctx, parent)
	}
}

// DefaultRegistrations builds the registration table for the given actions.
// Kinds missing from actions are not registered.
func DefaultRegistrations(m config.Mappings, actions map[string]enrich.Action, nodes NodeReader, log *slog.Logger) []Registration {
	if log == nil {
		log = logger.Discard()
	}
	var regs []Registration

	for _, kind := range []string{config.ActionSummary, config.ActionClassify, config.ActionDescribe} {
		action, ok := actions[kind]
		if !ok {
			continue
		}
		mapping, _ := m.For(kind)
		regs = append(regs,
			Registration{
				Name:    kind + "-created",
				Kind:    models.EventNodeCreated,
				Filter:  filter.OnCreate(mapping.Aspect),
				Handler: ActionHandler(action),
			},
			Registration{
				Name:    kind + "-updated",
				Kind:    models.EventNodeUpdated,
				Filter:  filter.OnUpdate(mapping.Aspect),
				Handler: ActionHandler(action),
			},
		)
	}

	if action, ok := actions[config.ActionSummary]; ok {
		regs = append(regs, Registration{
			Name:    "summary-rendition-created",
			Kind:    models.EventNodeCreated,
			Filter:  filter.NodeType(models.NodeTypeRendition),
			Handler: RenditionSummaryHandler(nodes, action, m.Summary.Aspect, log),
		})
	}

	if action, ok := actions[config.ActionPrompt]; ok {
		regs = append(regs, Registration{
			Name:    "prompt-updated",
			Kind:    models.EventNodeUpdated,
			Filter:  filter.PropertyChanged(m.Prompt.QuestionProperty),
			Handler: ActionHandler(action),
		})
	}

	return regs
}
