package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"watchtrack/internal/models"
)

type mediaKey struct {
	tmdbID    int64
	mediaType models.MediaType
}

type trackingKey struct {
	userID  string
	mediaID int64
}

type activityKey struct {
	trackingID int64
	season     int
	episode    int
}

// MemoryStore is an in-process TrackingStore with the same unique-key and
// cascade semantics as the Postgres store. It backs the concurrency and
// aggregation tests and works as a storage fallback in throwaway setups.
type MemoryStore struct {
	mu sync.Mutex

	users      map[string]models.AppUser
	media      map[mediaKey]*models.Media
	tracking   map[trackingKey]*models.UserTracking
	activities map[activityKey]*models.EpisodeActivity

	nextMediaID    int64
	nextTrackingID int64
	nextActivityID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]models.AppUser),
		media:      make(map[mediaKey]*models.Media),
		tracking:   make(map[trackingKey]*models.UserTracking),
		activities: make(map[activityKey]*models.EpisodeActivity),
	}
}

func (s *MemoryStore) EnsureUser(_ context.Context, id string, username *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	user, ok := s.users[id]
	if !ok {
		user = models.AppUser{ID: id, CreatedAt: now}
	}
	if username != nil {
		user.Username = username
	}
	user.UpdatedAt = now
	s.users[id] = user
	return nil
}

func (s *MemoryStore) GetMedia(_ context.Context, tmdbID int64, mediaType models.MediaType) (*models.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.media[mediaKey{tmdbID, mediaType}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) CreateMedia(_ context.Context, media *models.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := mediaKey{media.TMDBID, media.MediaType}
	if _, exists := s.media[key]; exists {
		return ErrDuplicate
	}

	s.nextMediaID++
	media.ID = s.nextMediaID
	media.CreatedAt = time.Now().UTC()
	cp := *media
	s.media[key] = &cp
	return nil
}

func (s *MemoryStore) GetTracking(_ context.Context, userID string, mediaID int64) (*models.UserTracking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tracking[trackingKey{userID, mediaID}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) CreateTracking(_ context.Context, tracking *models.UserTracking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := trackingKey{tracking.UserID, tracking.MediaID}
	if _, exists := s.tracking[key]; exists {
		return ErrDuplicate
	}

	s.nextTrackingID++
	tracking.ID = s.nextTrackingID
	now := time.Now().UTC()
	tracking.CreatedAt = now
	tracking.UpdatedAt = now
	cp := *tracking
	s.tracking[key] = &cp
	return nil
}

func (s *MemoryStore) UpdateTracking(_ context.Context, tracking *models.UserTracking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, existing := range s.tracking {
		if existing.ID == tracking.ID {
			tracking.UpdatedAt = time.Now().UTC()
			cp := *tracking
			s.tracking[key] = &cp
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) DeleteTracking(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, existing := range s.tracking {
		if existing.ID == id {
			delete(s.tracking, key)
			// mirror the Postgres cascade
			for aKey, a := range s.activities {
				if a.TrackingID == id {
					delete(s.activities, aKey)
				}
			}
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) ListTracking(_ context.Context, userID string, typeFilter models.MediaType) ([]models.TrackedTitle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var titles []models.TrackedTitle
	for key, t := range s.tracking {
		if key.userID != userID {
			continue
		}
		media := s.mediaByID(t.MediaID)
		if media == nil {
			continue
		}
		if typeFilter != "" && media.MediaType != typeFilter {
			continue
		}
		titles = append(titles, models.TrackedTitle{Tracking: *t, Media: *media})
	}

	sort.Slice(titles, func(i, j int) bool {
		return titles[i].Tracking.UpdatedAt.After(titles[j].Tracking.UpdatedAt)
	})
	return titles, nil
}

func (s *MemoryStore) mediaByID(id int64) *models.Media {
	for _, m := range s.media {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (s *MemoryStore) GetActivity(_ context.Context, trackingID int64, season, episode int) (*models.EpisodeActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.activities[activityKey{trackingID, season, episode}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) CreateActivity(_ context.Context, activity *models.EpisodeActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := activityKey{activity.TrackingID, activity.SeasonNumber, activity.EpisodeNumber}
	if _, exists := s.activities[key]; exists {
		return ErrDuplicate
	}

	s.nextActivityID++
	activity.ID = s.nextActivityID
	if activity.WatchedAt.IsZero() {
		activity.WatchedAt = time.Now().UTC()
	}
	cp := *activity
	s.activities[key] = &cp
	return nil
}

func (s *MemoryStore) UpdateActivity(_ context.Context, activity *models.EpisodeActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, existing := range s.activities {
		if existing.ID == activity.ID {
			cp := *activity
			s.activities[key] = &cp
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) DeleteActivity(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, existing := range s.activities {
		if existing.ID == id {
			delete(s.activities, key)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) ListSeasonActivity(_ context.Context, trackingID int64, season int) ([]models.EpisodeActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var activities []models.EpisodeActivity
	for _, a := range s.activities {
		if a.TrackingID == trackingID && a.SeasonNumber == season {
			activities = append(activities, *a)
		}
	}
	sort.Slice(activities, func(i, j int) bool {
		return activities[i].EpisodeNumber < activities[j].EpisodeNumber
	})
	return activities, nil
}

func (s *MemoryStore) CountWatched(_ context.Context, trackingID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, a := range s.activities {
		if a.TrackingID == trackingID && a.Status == models.StatusWatched {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) WatchedCounts(_ context.Context, userID string) (map[int64]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned := make(map[int64]bool)
	for key, t := range s.tracking {
		if key.userID == userID {
			owned[t.ID] = true
		}
	}

	counts := make(map[int64]int)
	for _, a := range s.activities {
		if owned[a.TrackingID] && a.Status == models.StatusWatched {
			counts[a.TrackingID]++
		}
	}
	return counts, nil
}
