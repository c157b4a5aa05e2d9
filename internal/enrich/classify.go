package enrich

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DeafMist/doc-enricher/internal/models"
	"github.com/DeafMist/doc-enricher/internal/processing"
)

// Classify picks a term from the list configured on the document's parent folder.
type Classify struct {
	base
	waiter *Waiter
}

func (c *Classify) Execute(ctx context.Context, doc models.Document) (bool, error) {
	terms, err := c.termList(ctx, doc)
	if err != nil {
		return false, fmt.Errorf("classify %s: %w", doc.ID, err)
	}
	if terms == "" {
		c.log.Warn("no term list on parent folder", slog.String("document_id", doc.ID))
		return false, nil
	}

	c.log.Info("classifying document", slog.String("document_id", doc.ID))
	data, err := c.content(ctx, doc)
	if err != nil {
		return false, fmt.Errorf("classify %s: %w", doc.ID, err)
	}

	term, err := c.ai.Classify(ctx, pdfFile(doc, data), terms)
	if err != nil {
		return false, fmt.Errorf("classify %s: %w", doc.ID, err)
	}
	if err := c.apply(ctx, doc.ID, term); err != nil {
		return false, err
	}
	return true, nil
}

// content returns native bytes for PDFs and waits for the PDF rendition otherwise.
func (c *Classify) content(ctx context.Context, doc models.Document) ([]byte, error) {
	if processing.IsPDF(doc.Name) {
		return c.repo.Content(ctx, doc.ID)
	}
	if err := c.repo.CreateRendition(ctx, doc.ID, models.RenditionPDF); err != nil {
		return nil, fmt.Errorf("request rendition: %w", err)
	}
	return c.waiter.Wait(ctx, doc.ID, models.RenditionPDF)
}

func (c *Classify) termList(ctx context.Context, doc models.Document) (string, error) {
	parentID := doc.ParentID
	if parentID == "" {
		var err error
		parentID, err = c.repo.PrimaryParent(ctx, doc.ID)
		if err != nil {
			return "", err
		}
	}
	parent, err := c.repo.GetNode(ctx, parentID)
	if err != nil {
		return "", fmt.Errorf("read parent %s: %w", parentID, err)
	}
	return processing.TermList(parent.Properties[c.mapping.TermsProperty]), nil
}
