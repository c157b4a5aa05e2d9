package enrich

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DeafMist/doc-enricher/internal/models"
	"github.com/DeafMist/doc-enricher/internal/processing"
)

// Answer answers the question stored on the document.
type Answer struct {
	base
}

func (a *Answer) Execute(ctx context.Context, doc models.Document) (bool, error) {
	question, err := a.question(ctx, doc)
	if err != nil {
		return false, fmt.Errorf("answer %s: %w", doc.ID, err)
	}
	if question == "" {
		a.log.Debug("no question on document", slog.String("document_id", doc.ID))
		return false, nil
	}

	data, ready, err := a.content(ctx, doc)
	if err != nil {
		a.log.Error("document content unavailable", slog.String("document_id", doc.ID), slog.Any("error", err))
		return false, nil
	}
	if !ready {
		return false, nil
	}

	a.log.Info("answering question", slog.String("document_id", doc.ID), slog.String("question", question))
	answer, err := a.ai.Prompt(ctx, pdfFile(doc, data), question)
	if err != nil {
		a.log.Error("answer question failed", slog.String("document_id", doc.ID), slog.Any("error", err))
		return false, nil
	}
	if err := a.apply(ctx, doc.ID, answer); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Answer) question(ctx context.Context, doc models.Document) (string, error) {
	props := doc.Properties
	if props == nil {
		node, err := a.repo.GetNode(ctx, doc.ID)
		if err != nil {
			return "", err
		}
		props = node.Properties
	}
	raw, ok := props[a.mapping.QuestionProperty]
	if !ok || raw == nil {
		return "", nil
	}
	return processing.CleanQuestion(fmt.Sprint(raw)), nil
}

// content returns native bytes for PDFs. Other documents go through the PDF
// rendition, which is requested when missing.
func (a *Answer) content(ctx context.Context, doc models.Document) ([]byte, bool, error) {
	if processing.IsPDF(doc.Name) {
		data, err := a.repo.Content(ctx, doc.ID)
		return data, err == nil, err
	}

	status, err := a.repo.RenditionStatus(ctx, doc.ID, models.RenditionPDF)
	if err != nil {
		return nil, false, err
	}
	if status != models.RenditionCreated {
		if err := a.repo.CreateRendition(ctx, doc.ID, models.RenditionPDF); err != nil {
			return nil, false, err
		}
		a.log.Info("pdf rendition requested", slog.String("document_id", doc.ID))
		return nil, false, nil
	}
	data, err := a.repo.RenditionContent(ctx, doc.ID, models.RenditionPDF)
	return data, err == nil, err
}
