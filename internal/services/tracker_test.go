package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchtrack/internal/models"
	"watchtrack/internal/repository"
	"watchtrack/internal/services"
)

func floatPtr(f float64) *float64 { return &f }

func strPtr(s string) *string { return &s }

func TestApplyWatchCreatesFullChain(t *testing.T) {
	stack := newTestStack()
	stack.gateway.addSeries(42, "Test Show", 40, 5)
	ctx := context.Background()

	activity, err := stack.tracker.ApplyEpisodeAction(ctx, "u1", 42, models.MediaTypeTV, 1, 3, models.ActionWatch, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, activity)
	assert.Equal(t, models.StatusWatched, activity.Status)
	assert.Equal(t, 1, activity.SeasonNumber)
	assert.Equal(t, 3, activity.EpisodeNumber)

	// media row was cached from the catalog
	media, err := stack.store.GetMedia(ctx, 42, models.MediaTypeTV)
	require.NoError(t, err)
	assert.Equal(t, "Test Show", media.Title)

	// tracking row created as a side effect defaults to watching
	tracking, err := stack.store.GetTracking(ctx, "u1", media.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWatching, tracking.Status)
}

func TestApplyWatchWithoutCatalogCreatesStub(t *testing.T) {
	stack := newTestStack()
	stack.gateway.detailsErr = services.ErrCatalogUnavailable
	ctx := context.Background()

	_, err := stack.tracker.ApplyEpisodeAction(ctx, "u1", 99, models.MediaTypeTV, 1, 1, models.ActionWatch, nil, nil)
	require.NoError(t, err)

	media, err := stack.store.GetMedia(ctx, 99, models.MediaTypeTV)
	require.NoError(t, err)
	assert.Equal(t, "Series 99", media.Title)
}

func TestApplyUnwatchMissingActivityIsNoop(t *testing.T) {
	stack := newTestStack()
	stack.gateway.addSeries(42, "Test Show", 40, 5)

	activity, err := stack.tracker.ApplyEpisodeAction(context.Background(), "u1", 42, models.MediaTypeTV, 1, 1, models.ActionUnwatch, nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, activity)
}

func TestApplyWatchThenUnwatchDeletesRow(t *testing.T) {
	stack := newTestStack()
	stack.gateway.addSeries(42, "Test Show", 40, 5)
	ctx := context.Background()

	_, err := stack.tracker.ApplyEpisodeAction(ctx, "u1", 42, models.MediaTypeTV, 1, 1, models.ActionWatch, nil, nil)
	require.NoError(t, err)

	activity, err := stack.tracker.ApplyEpisodeAction(ctx, "u1", 42, models.MediaTypeTV, 1, 1, models.ActionUnwatch, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, activity)

	media, err := stack.store.GetMedia(ctx, 42, models.MediaTypeTV)
	require.NoError(t, err)
	tracking, err := stack.store.GetTracking(ctx, "u1", media.ID)
	require.NoError(t, err)
	_, err = stack.store.GetActivity(ctx, tracking.ID, 1, 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestApplyRateAndCommentTouchOnlyTheirFields(t *testing.T) {
	stack := newTestStack()
	stack.gateway.addSeries(42, "Test Show", 40, 5)
	ctx := context.Background()

	_, err := stack.tracker.ApplyEpisodeAction(ctx, "u1", 42, models.MediaTypeTV, 1, 2, models.ActionWatch, nil, nil)
	require.NoError(t, err)

	rated, err := stack.tracker.ApplyEpisodeAction(ctx, "u1", 42, models.MediaTypeTV, 1, 2, models.ActionRate, floatPtr(7.5), nil)
	require.NoError(t, err)
	require.NotNil(t, rated.Rating)
	assert.Equal(t, 7.5, *rated.Rating)
	assert.Equal(t, models.StatusWatched, rated.Status)

	commented, err := stack.tracker.ApplyEpisodeAction(ctx, "u1", 42, models.MediaTypeTV, 1, 2, models.ActionComment, nil, strPtr("great finale"))
	require.NoError(t, err)
	require.NotNil(t, commented.Comment)
	assert.Equal(t, "great finale", *commented.Comment)
	require.NotNil(t, commented.Rating)
	assert.Equal(t, 7.5, *commented.Rating)
}

func TestApplyRejectsBadInput(t *testing.T) {
	stack := newTestStack()
	ctx := context.Background()

	_, err := stack.tracker.ApplyEpisodeAction(ctx, "u1", 42, models.MediaTypeTV, 1, 1, models.EpisodeAction("binge"), nil, nil)
	assert.ErrorIs(t, err, services.ErrInvalidAction)

	_, err = stack.tracker.ApplyEpisodeAction(ctx, "u1", 42, models.MediaTypeTV, 1, 1, models.ActionRate, floatPtr(11), nil)
	assert.ErrorIs(t, err, services.ErrInvalidRating)
}

func TestApplyConcurrentWatchesSingleRow(t *testing.T) {
	stack := newTestStack()
	stack.gateway.addSeries(42, "Test Show", 40, 5)
	ctx := context.Background()

	const callers = 12
	var wg sync.WaitGroup
	errs := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := stack.tracker.ApplyEpisodeAction(ctx, "u1", 42, models.MediaTypeTV, 1, 1, models.ActionWatch, nil, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	media, err := stack.store.GetMedia(ctx, 42, models.MediaTypeTV)
	require.NoError(t, err)
	tracking, err := stack.store.GetTracking(ctx, "u1", media.ID)
	require.NoError(t, err)

	count, err := stack.store.CountWatched(ctx, tracking.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// Mixed concurrent watch/unwatch traffic on one key must linearize: every
// call either succeeds or reports exhausted retries, and the final state is a
// single row or no row, never duplicates or a torn write.
func TestApplyConcurrentWatchUnwatchLinearizes(t *testing.T) {
	stack := newTestStack()
	stack.gateway.addSeries(42, "Test Show", 40, 5)
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)

	for i := 0; i < callers; i++ {
		action := models.ActionWatch
		if i%2 == 1 {
			action = models.ActionUnwatch
		}
		wg.Add(1)
		go func(a models.EpisodeAction) {
			defer wg.Done()
			_, err := stack.tracker.ApplyEpisodeAction(ctx, "u1", 42, models.MediaTypeTV, 2, 4, a, nil, nil)
			errs <- err
		}(action)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			require.ErrorIs(t, err, services.ErrConcurrencyExhausted)
		}
	}

	media, err := stack.store.GetMedia(ctx, 42, models.MediaTypeTV)
	require.NoError(t, err)
	tracking, err := stack.store.GetTracking(ctx, "u1", media.ID)
	require.NoError(t, err)

	activity, err := stack.store.GetActivity(ctx, tracking.ID, 2, 4)
	if err != nil {
		require.ErrorIs(t, err, repository.ErrNotFound)
	} else {
		assert.Equal(t, models.StatusWatched, activity.Status)
	}
}

// alwaysConflictStore simulates a writer that loses the uniqueness race on
// every attempt.
type alwaysConflictStore struct {
	repository.TrackingStore
}

func (s *alwaysConflictStore) GetActivity(context.Context, int64, int, int) (*models.EpisodeActivity, error) {
	return nil, repository.ErrNotFound
}

func (s *alwaysConflictStore) CreateActivity(context.Context, *models.EpisodeActivity) error {
	return repository.ErrDuplicate
}

func TestApplyExhaustedRetriesSurfaceError(t *testing.T) {
	log := discardLogger()
	inner := repository.NewMemoryStore()
	store := &alwaysConflictStore{TrackingStore: inner}
	cache := services.NewCatalogCache(store, log)
	tracker := services.NewTracker(store, cache, nil, log)

	_, err := tracker.ApplyEpisodeAction(context.Background(), "u1", 42, models.MediaTypeTV, 1, 1, models.ActionWatch, nil, nil)
	assert.ErrorIs(t, err, services.ErrConcurrencyExhausted)
}

func TestRemoveCascadesEpisodeActivity(t *testing.T) {
	stack := newTestStack()
	stack.gateway.addSeries(42, "Test Show", 40, 5)
	ctx := context.Background()

	for ep := 1; ep <= 3; ep++ {
		_, err := stack.tracker.ApplyEpisodeAction(ctx, "u1", 42, models.MediaTypeTV, 1, ep, models.ActionWatch, nil, nil)
		require.NoError(t, err)
	}

	media, err := stack.store.GetMedia(ctx, 42, models.MediaTypeTV)
	require.NoError(t, err)
	tracking, err := stack.store.GetTracking(ctx, "u1", media.ID)
	require.NoError(t, err)

	removed, err := stack.tracker.Remove(ctx, "u1", 42, models.MediaTypeTV)
	require.NoError(t, err)
	assert.True(t, removed)

	count, err := stack.store.CountWatched(ctx, tracking.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	// removing again reports nothing tracked
	removed, err = stack.tracker.Remove(ctx, "u1", 42, models.MediaTypeTV)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSetStatusCreatesAndUpdates(t *testing.T) {
	stack := newTestStack()
	stack.gateway.addSeries(42, "Test Show", 40, 5)
	ctx := context.Background()

	item := stack.gateway.details[42]

	tracking, err := stack.tracker.SetStatus(ctx, "u1", item, models.StatusWatching)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWatching, tracking.Status)

	tracking, err = stack.tracker.SetStatus(ctx, "u1", item, models.StatusFinished)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, tracking.Status)

	titles, err := stack.store.ListTracking(ctx, "u1", "")
	require.NoError(t, err)
	assert.Len(t, titles, 1)
}

func TestUpdateReviewRequiresExistingTracking(t *testing.T) {
	stack := newTestStack()
	ctx := context.Background()

	_, err := stack.tracker.UpdateReview(ctx, "u1", 42, models.MediaTypeTV, models.StatusFinished, floatPtr(8), nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDetailsContextDegradesWhenCatalogDown(t *testing.T) {
	stack := newTestStack()
	stack.gateway.addSeries(42, "Test Show", 40, 5)
	ctx := context.Background()

	_, err := stack.tracker.ApplyEpisodeAction(ctx, "u1", 42, models.MediaTypeTV, 1, 1, models.ActionWatch, nil, nil)
	require.NoError(t, err)

	stack.gateway.detailsErr = services.ErrCatalogUnavailable

	details, err := stack.tracker.DetailsContext(ctx, "u1", models.MediaTypeTV, 42)
	require.NoError(t, err)
	assert.True(t, details.Degraded)
	assert.Nil(t, details.Item)
	assert.True(t, details.InList)
	require.NotNil(t, details.SeriesStats)
	assert.Equal(t, 1, details.SeriesStats.EpisodesWatched)
	assert.Equal(t, 40, details.SeriesStats.TotalMinutes)
}

func TestSeasonContextMergesActivity(t *testing.T) {
	stack := newTestStack()
	stack.gateway.addSeries(42, "Test Show", 40, 5)
	ctx := context.Background()

	_, err := stack.tracker.ApplyEpisodeAction(ctx, "u1", 42, models.MediaTypeTV, 1, 2, models.ActionWatch, nil, nil)
	require.NoError(t, err)

	season, err := stack.tracker.SeasonContext(ctx, "u1", 42, 1)
	require.NoError(t, err)
	require.Len(t, season.Episodes, 5)

	for _, ep := range season.Episodes {
		if ep.Episode.EpisodeNumber == 2 {
			require.NotNil(t, ep.Activity)
			assert.Equal(t, models.StatusWatched, ep.Activity.Status)
		} else {
			assert.Nil(t, ep.Activity)
		}
	}
}
