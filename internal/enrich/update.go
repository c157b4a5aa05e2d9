package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/DeafMist/doc-enricher/internal/config"
	"github.com/DeafMist/doc-enricher/internal/models"
	"github.com/DeafMist/doc-enricher/internal/processing"
)

// Updater writes enrichment results back onto repository nodes.
type Updater struct {
	nodes Nodes
	log   *slog.Logger
}

// NewUpdater creates an Updater.
func NewUpdater(nodes Nodes, logger *slog.Logger) *Updater {
	return &Updater{nodes: nodes, log: logger}
}

// Apply maps every result field to its configured target. Fields mapped to
// the tag sentinel become repository tags, the rest are written as
// properties together with the aspect in a single update.
func (u *Updater) Apply(ctx context.Context, docID string, mapping config.ActionMapping, result models.EnrichmentResult) error {
	node, err := u.nodes.GetNode(ctx, docID)
	if err != nil {
		return fmt.Errorf("update %s: read aspects: %w", docID, err)
	}

	aspects := slices.Clone(node.Aspects)
	if mapping.Aspect != "" && !slices.Contains(aspects, mapping.Aspect) {
		aspects = append(aspects, mapping.Aspect)
	}

	properties := make(map[string]any)
	var tags []string
	for _, field := range result.Fields() {
		target := mapping.Fields[field.Name]
		switch target {
		case "":
			continue
		case config.TagSentinel:
			tags = append(tags, tagValues(field.Value)...)
		default:
			properties[target] = field.Value
		}
	}

	update := models.NodeUpdate{Properties: properties, AspectNames: aspects}
	if err := u.nodes.UpdateNode(ctx, docID, update); err != nil {
		return fmt.Errorf("update %s: %w", docID, err)
	}

	var errs []error
	for _, tag := range tags {
		if err := u.nodes.CreateTag(ctx, docID, tag); err != nil {
			errs = append(errs, fmt.Errorf("tag %s with %q: %w", docID, tag, err))
		}
	}

	u.log.Info("document updated",
		slog.String("document_id", docID),
		slog.Int("properties", len(properties)),
		slog.Int("tags", len(tags)),
		slog.String("model", result.ModelID()),
	)
	return errors.Join(errs...)
}

func tagValues(value any) []string {
	switch v := value.(type) {
	case []string:
		return processing.NormalizeTags(v)
	case string:
		return processing.NormalizeTags([]string{v})
	default:
		return nil
	}
}
