package services

import (
	"context"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"watchtrack/internal/models"
	"watchtrack/internal/repository"
)

const defaultMovieRuntime = 120

// Series finished without any per-episode activity are estimated against
// this many episodes.
const fallbackEpisodeCount = 10

// movieWatchedStatuses includes the legacy "managed" value older rows carry.
var movieWatchedStatuses = map[models.Status]bool{
	models.StatusWatched:     true,
	models.StatusFinished:    true,
	models.Status("managed"): true,
}

// Stats derives dashboard aggregates from the store. It never mutates state.
type Stats struct {
	store  repository.TrackingStore
	logger *logrus.Logger
}

func NewStats(store repository.TrackingStore, logger *logrus.Logger) *Stats {
	return &Stats{store: store, logger: logger}
}

// Dashboard computes the user's watch statistics, optionally filtered by
// media type. Tracking rows are loaded once, joined with media; watched
// episode counts come back grouped in a single pass.
func (s *Stats) Dashboard(ctx context.Context, userID string, typeFilter models.MediaType) (*models.DashboardStats, error) {
	titles, err := s.store.ListTracking(ctx, userID, typeFilter)
	if err != nil {
		return nil, err
	}

	watchedCounts, err := s.store.WatchedCounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &models.DashboardStats{
		TotalTitles:    len(titles),
		MoviesByStatus: make(map[models.Status][]models.TrackedTitle),
		SeriesByStatus: make(map[models.Status][]models.TrackedTitle),
		Filter:         typeFilter,
	}

	for _, entry := range titles {
		tracking := entry.Tracking
		media := entry.Media

		switch media.MediaType {
		case models.MediaTypeMovie:
			if movieWatchedStatuses[tracking.Status] {
				stats.MoviesWatched++
				stats.TotalMinutes += media.RuntimeOr(defaultMovieRuntime)
			}
			stats.MoviesByStatus[tracking.Status] = append(stats.MoviesByStatus[tracking.Status], entry)

		case models.MediaTypeTV:
			if tracking.Status.Finished() {
				stats.SeriesFinished++
			}

			runtime := media.RuntimeOr(defaultEpisodeRuntime)
			if count := watchedCounts[tracking.ID]; count > 0 {
				stats.TotalMinutes += runtime * count
			} else if tracking.Status.Finished() {
				// marked finished without per-episode activity: estimate
				episodes := fallbackEpisodeCount
				if media.EpisodeCount != nil && *media.EpisodeCount > 0 {
					episodes = *media.EpisodeCount
				}
				stats.TotalMinutes += runtime * episodes
			}
			stats.SeriesByStatus[tracking.Status] = append(stats.SeriesByStatus[tracking.Status], entry)
		}
	}

	for _, group := range stats.MoviesByStatus {
		sortByUpdatedDesc(group)
	}
	for _, group := range stats.SeriesByStatus {
		sortByUpdatedDesc(group)
	}

	stats.TotalHours = stats.TotalMinutes / 60
	stats.TotalDays = math.Round(float64(stats.TotalHours)/24*10) / 10

	return stats, nil
}

func sortByUpdatedDesc(titles []models.TrackedTitle) {
	sort.Slice(titles, func(i, j int) bool {
		return titles[i].Tracking.UpdatedAt.After(titles[j].Tracking.UpdatedAt)
	})
}
