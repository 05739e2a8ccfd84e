package repository

import (
	"context"
	"errors"

	"watchtrack/internal/models"
)

var (
	// ErrNotFound means the referenced row does not exist. Absence is a
	// missing precondition, not a race; callers usually create-if-absent.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate means a unique constraint rejected an insert because a
	// concurrent writer created the row first. The caller re-reads and
	// retries.
	ErrDuplicate = errors.New("duplicate record")
)

// TrackingStore is the persistence seam for the tracking engine. Create
// methods return ErrDuplicate on a unique-key conflict, which together with
// the constraints themselves is the only mutual exclusion the engine uses.
type TrackingStore interface {
	EnsureUser(ctx context.Context, id string, username *string) error

	GetMedia(ctx context.Context, tmdbID int64, mediaType models.MediaType) (*models.Media, error)
	CreateMedia(ctx context.Context, media *models.Media) error

	GetTracking(ctx context.Context, userID string, mediaID int64) (*models.UserTracking, error)
	CreateTracking(ctx context.Context, tracking *models.UserTracking) error
	UpdateTracking(ctx context.Context, tracking *models.UserTracking) error
	DeleteTracking(ctx context.Context, id int64) error

	// ListTracking returns the user's tracking rows joined with media,
	// optionally filtered by media type (empty string means all).
	ListTracking(ctx context.Context, userID string, typeFilter models.MediaType) ([]models.TrackedTitle, error)

	GetActivity(ctx context.Context, trackingID int64, season, episode int) (*models.EpisodeActivity, error)
	CreateActivity(ctx context.Context, activity *models.EpisodeActivity) error
	UpdateActivity(ctx context.Context, activity *models.EpisodeActivity) error
	DeleteActivity(ctx context.Context, id int64) error
	ListSeasonActivity(ctx context.Context, trackingID int64, season int) ([]models.EpisodeActivity, error)

	// CountWatched counts one tracking row's watched episodes.
	CountWatched(ctx context.Context, trackingID int64) (int, error)

	// WatchedCounts returns watched-episode counts for all of a user's
	// tracking rows in a single pass, keyed by tracking id.
	WatchedCounts(ctx context.Context, userID string) (map[int64]int, error)
}
