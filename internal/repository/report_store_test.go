package repository

import (
	"context"
	"testing"
	"time"

	"HistPull/internal/domain/models"
	"HistPull/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheReportStore(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	store := NewCacheReportStore(mc, time.Hour)
	ctx := context.Background()

	_, err := store.Latest(ctx)
	assert.ErrorIs(t, err, ErrReportNotFound)

	first := models.NewBatchReport()
	first.RunID = "run-a"
	first.Add(models.TaskResult{Task: models.Task{Instrument: "NIFTY", Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}})
	require.NoError(t, store.Save(ctx, first))

	second := models.NewBatchReport()
	second.RunID = "run-b"
	second.Status = models.RunCompleted
	second.Add(models.TaskResult{
		Task: models.Task{Instrument: "BANKNIFTY", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		Err:  models.ErrNoData,
	})
	require.NoError(t, store.Save(ctx, second))

	got, err := store.Get(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Succeeded)

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-b", latest.RunID)
	assert.Equal(t, models.RunCompleted, latest.Status)
	require.Len(t, latest.Failures, 1)
	assert.Equal(t, "BANKNIFTY", latest.Failures[0].Instrument)
	assert.Equal(t, models.ErrNoData.Error(), latest.Failures[0].Message)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestCacheReportStoreRejectsEmptyRunID(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	assert.Error(t, NewCacheReportStore(mc, 0).Save(context.Background(), models.NewBatchReport()))
}
