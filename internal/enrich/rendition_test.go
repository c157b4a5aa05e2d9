package enrich_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/doc-enricher/internal/enrich"
	"github.com/DeafMist/doc-enricher/internal/logger"
	"github.com/DeafMist/doc-enricher/internal/models"
)

func statuses(notCreated int) []models.RenditionStatus {
	out := make([]models.RenditionStatus, 0, notCreated+1)
	for range notCreated {
		out = append(out, models.RenditionNotCreated)
	}
	return append(out, models.RenditionCreated)
}

func TestWaiterReturnsAfterKPlusOnePolls(t *testing.T) {
	for _, k := range []int{0, 1, 4, 9} {
		repo := newStubRepo()
		repo.statuses = statuses(k)
		w := enrich.NewWaiter(repo, 10, 0, logger.Discard())

		data, err := w.Wait(context.Background(), "n1", models.RenditionPDF)
		require.NoError(t, err)
		require.Equal(t, []byte("%PDF"), data)
		require.Equal(t, k+1, repo.statusCalls, "k=%d", k)
		require.Equal(t, 1, repo.renditionReads)
	}
}

func TestWaiterFailsAfterMaxAttempts(t *testing.T) {
	repo := newStubRepo()
	w := enrich.NewWaiter(repo, 5, time.Millisecond, logger.Discard())

	data, err := w.Wait(context.Background(), "n1", models.RenditionPDF)
	require.Nil(t, data)
	require.ErrorIs(t, err, models.ErrRenditionTimeout)

	var timeout *models.RenditionTimeoutError
	require.ErrorAs(t, err, &timeout)
	require.Equal(t, 5, timeout.Attempts)
	require.Equal(t, 5, repo.statusCalls)
	require.Zero(t, repo.renditionReads)
}

func TestWaiterStopsOnCancel(t *testing.T) {
	repo := newStubRepo()
	w := enrich.NewWaiter(repo, 10, time.Hour, logger.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := w.Wait(ctx, "n1", models.RenditionPDF)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, repo.statusCalls)
}
