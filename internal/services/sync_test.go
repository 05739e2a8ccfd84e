package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchtrack/internal/models"
	"watchtrack/internal/services"
)

func TestSyncSeriesMarksAllEpisodes(t *testing.T) {
	stack := newTestStack()
	ctx := context.Background()

	stack.gateway.addSeries(42, "Test Show", 40, 5, 5)
	_, err := stack.tracker.SetStatus(ctx, "u1", stack.gateway.details[42], models.StatusFinished)
	require.NoError(t, err)

	engine := services.NewSyncEngine(stack.tracker, stack.gateway, discardLogger(), 2)
	rating := 8.0
	report := engine.SyncSeries(ctx, "u1", 42, models.StatusFinished, &rating)

	assert.Equal(t, 10, report.Completed)
	assert.Empty(t, report.Failed)

	media, err := stack.store.GetMedia(ctx, 42, models.MediaTypeTV)
	require.NoError(t, err)
	tracking, err := stack.store.GetTracking(ctx, "u1", media.ID)
	require.NoError(t, err)

	for season := 1; season <= 2; season++ {
		for ep := 1; ep <= 5; ep++ {
			activity, err := stack.store.GetActivity(ctx, tracking.ID, season, ep)
			require.NoError(t, err)
			assert.Equal(t, models.StatusWatched, activity.Status)
			require.NotNil(t, activity.Rating)
			assert.Equal(t, rating, *activity.Rating)
		}
	}

	dashboard, err := stack.stats.Dashboard(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, dashboard.SeriesFinished)
	assert.Equal(t, 40*10, dashboard.TotalMinutes)
}

func TestSyncSeriesSeasonFailureSkipsAndContinues(t *testing.T) {
	stack := newTestStack()
	ctx := context.Background()

	stack.gateway.addSeries(42, "Test Show", 40, 4, 3, 4)
	stack.gateway.failSeasons[2] = true

	report := services.NewSyncEngine(stack.tracker, stack.gateway, discardLogger(), 2).
		SyncSeries(ctx, "u1", 42, models.StatusFinished, nil)

	assert.Equal(t, 8, report.Completed)
	require.Len(t, report.Failed, 3)
	for i, ref := range report.Failed {
		assert.Equal(t, 2, ref.Season)
		assert.Equal(t, i+1, ref.Episode)
	}

	media, err := stack.store.GetMedia(ctx, 42, models.MediaTypeTV)
	require.NoError(t, err)
	tracking, err := stack.store.GetTracking(ctx, "u1", media.ID)
	require.NoError(t, err)

	count, err := stack.store.CountWatched(ctx, tracking.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, count)
}

func TestSyncSeriesIdempotent(t *testing.T) {
	stack := newTestStack()
	ctx := context.Background()

	stack.gateway.addSeries(42, "Test Show", 40, 3)
	engine := services.NewSyncEngine(stack.tracker, stack.gateway, discardLogger(), 2)

	first := engine.SyncSeries(ctx, "u1", 42, models.StatusFinished, nil)
	second := engine.SyncSeries(ctx, "u1", 42, models.StatusFinished, nil)

	assert.Equal(t, first.Completed, second.Completed)

	media, err := stack.store.GetMedia(ctx, 42, models.MediaTypeTV)
	require.NoError(t, err)
	tracking, err := stack.store.GetTracking(ctx, "u1", media.ID)
	require.NoError(t, err)

	count, err := stack.store.CountWatched(ctx, tracking.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSyncSeriesNonFinishedStatusIsNoop(t *testing.T) {
	stack := newTestStack()
	stack.gateway.addSeries(42, "Test Show", 40, 3)

	report := services.NewSyncEngine(stack.tracker, stack.gateway, discardLogger(), 2).
		SyncSeries(context.Background(), "u1", 42, models.StatusWatching, nil)

	assert.Zero(t, report.Completed)
	assert.Empty(t, report.Failed)
	assert.Zero(t, stack.gateway.detailCalls)
}

func TestSyncSeriesDetailsFailureAborts(t *testing.T) {
	stack := newTestStack()
	stack.gateway.detailsErr = services.ErrCatalogUnavailable

	report := services.NewSyncEngine(stack.tracker, stack.gateway, discardLogger(), 2).
		SyncSeries(context.Background(), "u1", 42, models.StatusFinished, nil)

	assert.Zero(t, report.Completed)
	assert.Empty(t, report.Failed)
}

func TestSubmitRunsDetached(t *testing.T) {
	stack := newTestStack()
	ctx := context.Background()

	stack.gateway.addSeries(42, "Test Show", 40, 4)

	engine := services.NewSyncEngine(stack.tracker, stack.gateway, discardLogger(), 2)
	engine.Submit(services.SyncRequest{UserID: "u1", TMDBID: 42, Status: models.StatusFinished})
	engine.Close()

	media, err := stack.store.GetMedia(ctx, 42, models.MediaTypeTV)
	require.NoError(t, err)
	tracking, err := stack.store.GetTracking(ctx, "u1", media.ID)
	require.NoError(t, err)

	count, err := stack.store.CountWatched(ctx, tracking.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
