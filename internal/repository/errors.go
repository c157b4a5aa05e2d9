package repository

import (
	"errors"

	"github.com/DeafMist/doc-enricher/internal/models"
)

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}

func isStatus(err error, status int) bool {
	var statusErr *models.StatusError
	return errors.As(err, &statusErr) && statusErr.Status == status
}
