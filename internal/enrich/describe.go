package enrich

import (
	"context"
	"log/slog"

	"github.com/DeafMist/doc-enricher/internal/models"
)

// Describe writes a description of a picture computed from its raw bytes.
// Content and AI failures only skip the document.
type Describe struct {
	base
}

func (d *Describe) Execute(ctx context.Context, doc models.Document) (bool, error) {
	d.log.Debug("describing picture", slog.String("document_id", doc.ID))

	data, err := d.repo.Content(ctx, doc.ID)
	if err != nil {
		d.log.Error("picture content unavailable", slog.String("document_id", doc.ID), slog.Any("error", err))
		return false, nil
	}
	desc, err := d.ai.Describe(ctx, models.File{Name: doc.Name, Data: data})
	if err != nil {
		d.log.Error("describe picture failed", slog.String("document_id", doc.ID), slog.Any("error", err))
		return false, nil
	}
	if err := d.apply(ctx, doc.ID, desc); err != nil {
		return false, err
	}
	return true, nil
}
