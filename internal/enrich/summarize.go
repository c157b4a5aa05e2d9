package enrich

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DeafMist/doc-enricher/internal/models"
)

// Summarize writes a summary and tags computed from the document's PDF rendition.
// The first pass on a document without a rendition only requests one.
type Summarize struct {
	base
}

func (s *Summarize) Execute(ctx context.Context, doc models.Document) (bool, error) {
	status, err := s.repo.RenditionStatus(ctx, doc.ID, models.RenditionPDF)
	if err != nil {
		return false, fmt.Errorf("summarize %s: %w", doc.ID, err)
	}
	if status != models.RenditionCreated {
		if err := s.repo.CreateRendition(ctx, doc.ID, models.RenditionPDF); err != nil {
			return false, fmt.Errorf("summarize %s: request rendition: %w", doc.ID, err)
		}
		s.log.Info("pdf rendition requested", slog.String("document_id", doc.ID))
		return false, nil
	}

	s.log.Info("summarizing document", slog.String("document_id", doc.ID))
	data, err := s.repo.RenditionContent(ctx, doc.ID, models.RenditionPDF)
	if err != nil {
		return false, fmt.Errorf("summarize %s: %w", doc.ID, err)
	}
	summary, err := s.ai.Summarize(ctx, pdfFile(doc, data))
	if err != nil {
		return false, fmt.Errorf("summarize %s: %w", doc.ID, err)
	}
	if err := s.apply(ctx, doc.ID, summary); err != nil {
		return false, err
	}
	return true, nil
}
