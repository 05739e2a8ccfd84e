package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"

	"watchtrack/internal/models"
	"watchtrack/internal/repository"
)

const (
	// attempts for the uniqueness-conflict retry protocol, total
	activityRetryAttempts = 3

	defaultEpisodeRuntime = 45
)

// Tracker owns all per-user tracking mutations: series/movie status, reviews
// and the concurrency-safe per-episode activity upserts. Mutual exclusion is
// delegated to the store's unique constraints; conflicts are retried, never
// locked around.
type Tracker struct {
	store   repository.TrackingStore
	cache   *CatalogCache
	gateway CatalogGateway
	logger  *logrus.Logger
}

// NewTracker builds a tracker. gateway may be nil, in which case media rows
// created as a side effect of episode actions are minimal stubs.
func NewTracker(store repository.TrackingStore, cache *CatalogCache, gateway CatalogGateway, logger *logrus.Logger) *Tracker {
	return &Tracker{store: store, cache: cache, gateway: gateway, logger: logger}
}

// ApplyEpisodeAction applies one action to one episode's activity row,
// creating the media and tracking rows on the way when missing. Concurrent
// calls for the same (tracking, season, episode) key are linearized by the
// store's unique constraint plus a bounded retry; after the attempts are
// exhausted the call fails with ErrConcurrencyExhausted.
//
// An unwatch of a non-existent row is a no-op returning (nil, nil), as is a
// successful unwatch.
func (t *Tracker) ApplyEpisodeAction(ctx context.Context, userID string, tmdbID int64, mediaType models.MediaType, season, episode int, action models.EpisodeAction, rating *float64, comment *string) (*models.EpisodeActivity, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if rating != nil && (*rating < 0 || *rating > 10) {
		return nil, ErrInvalidRating
	}

	media, err := t.resolveMedia(ctx, tmdbID, mediaType)
	if err != nil {
		return nil, err
	}

	tracking, err := t.ensureTracking(ctx, userID, media.ID)
	if err != nil {
		return nil, err
	}

	activity, err := retry.DoWithData(
		func() (*models.EpisodeActivity, error) {
			return t.applyActivity(ctx, tracking.ID, season, episode, action, rating, comment)
		},
		retry.Context(ctx),
		retry.Attempts(activityRetryAttempts),
		retry.RetryIf(func(err error) bool { return errors.Is(err, repository.ErrDuplicate) }),
		retry.Delay(10*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			t.logger.WithFields(logrus.Fields{
				"user_id": userID,
				"tmdb_id": tmdbID,
				"season":  season,
				"episode": episode,
			}).Error("Episode action exhausted conflict retries")
			return nil, fmt.Errorf("apply %s for S%02dE%02d: %w", action, season, episode, ErrConcurrencyExhausted)
		}
		return nil, err
	}
	return activity, nil
}

// applyActivity is one attempt of the read-mutate-write cycle. A create that
// loses the uniqueness race returns repository.ErrDuplicate for the caller's
// retry loop to re-read the now-existing row.
func (t *Tracker) applyActivity(ctx context.Context, trackingID int64, season, episode int, action models.EpisodeAction, rating *float64, comment *string) (*models.EpisodeActivity, error) {
	activity, err := t.store.GetActivity(ctx, trackingID, season, episode)

	if action == models.ActionUnwatch {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up episode activity: %w", err)
		}
		if err := t.store.DeleteActivity(ctx, activity.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to delete episode activity: %w", err)
		}
		return nil, nil
	}

	if errors.Is(err, repository.ErrNotFound) {
		activity = &models.EpisodeActivity{
			TrackingID:    trackingID,
			SeasonNumber:  season,
			EpisodeNumber: episode,
			Status:        models.StatusWatched,
		}
		applyActionFields(activity, action, rating, comment)
		if err := t.store.CreateActivity(ctx, activity); err != nil {
			return nil, err
		}
		return activity, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up episode activity: %w", err)
	}

	applyActionFields(activity, action, rating, comment)
	if err := t.store.UpdateActivity(ctx, activity); err != nil {
		// a concurrent unwatch removed the row between read and write;
		// treat it like a lost race and re-run the cycle
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("failed to update episode activity: %w", err)
	}
	return activity, nil
}

func applyActionFields(activity *models.EpisodeActivity, action models.EpisodeAction, rating *float64, comment *string) {
	switch action {
	case models.ActionRate:
		activity.Rating = rating
	case models.ActionComment:
		activity.Comment = comment
	default:
		if status, ok := action.TargetStatus(); ok {
			activity.Status = status
		}
	}
}

// resolveMedia returns the cached media row, fetching catalog details for
// first-time references. A failing catalog degrades to a stub row so episode
// actions still land.
func (t *Tracker) resolveMedia(ctx context.Context, tmdbID int64, mediaType models.MediaType) (*models.Media, error) {
	media, err := t.store.GetMedia(ctx, tmdbID, mediaType)
	if err == nil {
		return media, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up media: %w", err)
	}

	var item *models.CatalogItem
	if t.gateway != nil {
		item, err = t.gateway.GetDetails(ctx, mediaType, tmdbID)
		if err != nil {
			t.logger.WithError(err).WithFields(logrus.Fields{
				"tmdb_id":    tmdbID,
				"media_type": mediaType,
			}).Warn("Catalog details unavailable, creating stub media")
			item = nil
		}
	}

	return t.cache.GetOrCreate(ctx, tmdbID, mediaType, item)
}

// ensureTracking resolves or creates the user's tracking row for a media id.
// Rows created as a side effect of an episode action default to watching.
func (t *Tracker) ensureTracking(ctx context.Context, userID string, mediaID int64) (*models.UserTracking, error) {
	tracking, err := t.store.GetTracking(ctx, userID, mediaID)
	if err == nil {
		return tracking, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up tracking: %w", err)
	}

	tracking = &models.UserTracking{
		UserID:  userID,
		MediaID: mediaID,
		Status:  models.StatusWatching,
	}
	if err := t.store.CreateTracking(ctx, tracking); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return t.store.GetTracking(ctx, userID, mediaID)
		}
		return nil, fmt.Errorf("failed to create tracking: %w", err)
	}
	return tracking, nil
}

// SetStatus creates or updates the user's tracking row for a catalog item.
func (t *Tracker) SetStatus(ctx context.Context, userID string, item *models.CatalogItem, status models.Status) (*models.UserTracking, error) {
	media, err := t.cache.GetOrCreate(ctx, item.ID, item.MediaType, item)
	if err != nil {
		return nil, err
	}

	tracking, err := t.store.GetTracking(ctx, userID, media.ID)
	if errors.Is(err, repository.ErrNotFound) {
		tracking = &models.UserTracking{
			UserID:  userID,
			MediaID: media.ID,
			Status:  status,
		}
		if err := t.store.CreateTracking(ctx, tracking); err != nil {
			if !errors.Is(err, repository.ErrDuplicate) {
				return nil, fmt.Errorf("failed to create tracking: %w", err)
			}
			tracking, err = t.store.GetTracking(ctx, userID, media.ID)
			if err != nil {
				return nil, err
			}
		} else {
			return tracking, nil
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up tracking: %w", err)
	}

	tracking.Status = status
	if err := t.store.UpdateTracking(ctx, tracking); err != nil {
		return nil, fmt.Errorf("failed to update tracking: %w", err)
	}
	return tracking, nil
}

// UpdateReview sets status, rating and comment on an existing tracking row.
func (t *Tracker) UpdateReview(ctx context.Context, userID string, tmdbID int64, mediaType models.MediaType, status models.Status, rating *float64, comment *string) (*models.UserTracking, error) {
	if rating != nil && (*rating < 0 || *rating > 10) {
		return nil, ErrInvalidRating
	}

	media, err := t.store.GetMedia(ctx, tmdbID, mediaType)
	if err != nil {
		return nil, err
	}
	tracking, err := t.store.GetTracking(ctx, userID, media.ID)
	if err != nil {
		return nil, err
	}

	tracking.Status = status
	tracking.Rating = rating
	tracking.Comment = comment
	if err := t.store.UpdateTracking(ctx, tracking); err != nil {
		return nil, fmt.Errorf("failed to update review: %w", err)
	}
	return tracking, nil
}

// Remove deletes the user's tracking row for a title; episode activity goes
// with it via the store's cascade. Returns false when nothing was tracked.
func (t *Tracker) Remove(ctx context.Context, userID string, tmdbID int64, mediaType models.MediaType) (bool, error) {
	media, err := t.store.GetMedia(ctx, tmdbID, mediaType)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	tracking, err := t.store.GetTracking(ctx, userID, media.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := t.store.DeleteTracking(ctx, tracking.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove tracking: %w", err)
	}
	return true, nil
}

// DetailsContext merges catalog details with the user's tracking state for a
// detail view. A failing catalog yields a degraded context carrying only the
// local state instead of an error.
func (t *Tracker) DetailsContext(ctx context.Context, userID string, mediaType models.MediaType, tmdbID int64) (*models.DetailsContext, error) {
	result := &models.DetailsContext{}

	if t.gateway != nil {
		item, err := t.gateway.GetDetails(ctx, mediaType, tmdbID)
		if err != nil {
			t.logger.WithError(err).WithField("tmdb_id", tmdbID).Warn("Serving degraded details context")
			result.Degraded = true
		} else {
			result.Item = item
		}
	} else {
		result.Degraded = true
	}

	media, err := t.store.GetMedia(ctx, tmdbID, mediaType)
	if errors.Is(err, repository.ErrNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	tracking, err := t.store.GetTracking(ctx, userID, media.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if err == nil {
		result.Tracking = tracking
		result.InList = true
	}

	if mediaType == models.MediaTypeTV {
		stats, err := t.SeriesWatchStats(ctx, userID, tmdbID)
		if err != nil {
			return nil, err
		}
		result.SeriesStats = stats
	}

	return result, nil
}

// SeasonContext merges a season's episode listing with the user's activity.
func (t *Tracker) SeasonContext(ctx context.Context, userID string, tmdbID int64, season int) (*models.SeasonContext, error) {
	result := &models.SeasonContext{Season: models.SeasonDetail{SeasonNumber: season}}

	if t.gateway != nil {
		detail, err := t.gateway.GetSeasonDetails(ctx, tmdbID, season)
		if err != nil {
			t.logger.WithError(err).WithFields(logrus.Fields{
				"tmdb_id": tmdbID,
				"season":  season,
			}).Warn("Serving degraded season context")
			result.Degraded = true
		} else {
			result.Season = *detail
		}
	} else {
		result.Degraded = true
	}

	activityByEpisode := make(map[int]models.EpisodeActivity)
	media, err := t.store.GetMedia(ctx, tmdbID, models.MediaTypeTV)
	if err == nil {
		if tracking, err := t.store.GetTracking(ctx, userID, media.ID); err == nil {
			activities, err := t.store.ListSeasonActivity(ctx, tracking.ID, season)
			if err != nil {
				return nil, err
			}
			for _, a := range activities {
				activityByEpisode[a.EpisodeNumber] = a
			}
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	result.Episodes = make([]models.EpisodeContext, 0, len(result.Season.Episodes))
	for _, ep := range result.Season.Episodes {
		entry := models.EpisodeContext{Episode: ep}
		if a, ok := activityByEpisode[ep.EpisodeNumber]; ok {
			activity := a
			entry.Activity = &activity
		}
		result.Episodes = append(result.Episodes, entry)
	}

	return result, nil
}

// SeriesWatchStats sums watched time for one series. Untracked series report
// zeros rather than an error.
func (t *Tracker) SeriesWatchStats(ctx context.Context, userID string, tmdbID int64) (*models.SeriesWatchStats, error) {
	stats := &models.SeriesWatchStats{TimeStr: "0h"}

	media, err := t.store.GetMedia(ctx, tmdbID, models.MediaTypeTV)
	if errors.Is(err, repository.ErrNotFound) {
		return stats, nil
	}
	if err != nil {
		return nil, err
	}

	tracking, err := t.store.GetTracking(ctx, userID, media.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return stats, nil
	}
	if err != nil {
		return nil, err
	}

	count, err := t.store.CountWatched(ctx, tracking.ID)
	if err != nil {
		return nil, err
	}

	stats.EpisodesWatched = count
	stats.TotalMinutes = count * media.RuntimeOr(defaultEpisodeRuntime)
	stats.TimeStr = fmt.Sprintf("%.1fh", float64(stats.TotalMinutes)/60)
	return stats, nil
}
