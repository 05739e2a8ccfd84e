package models

import "time"

type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

type Status string

const (
	StatusWatching  Status = "watching"
	StatusFinished  Status = "finished"
	StatusWatched   Status = "watched"
	StatusDropped   Status = "dropped"
	StatusAbandoned Status = "abandoned"
	StatusWishlist  Status = "wishlist"
)

// Finished reports whether a series-level status means the user is done with
// the show and every episode should be considered watched.
func (s Status) Finished() bool {
	return s == StatusFinished || s == StatusWatched
}

// EpisodeAction is the verb applied to a single episode activity row.
type EpisodeAction string

const (
	ActionWatch    EpisodeAction = "watch"
	ActionWatching EpisodeAction = "watching"
	ActionSkip     EpisodeAction = "skipped"
	ActionWishlist EpisodeAction = "wishlist"
	ActionRate     EpisodeAction = "rate"
	ActionComment  EpisodeAction = "comment"
	ActionUnwatch  EpisodeAction = "unwatch"
)

// TargetStatus returns the episode status an action sets, if it sets one.
// Rate, comment and unwatch touch other fields and return false.
func (a EpisodeAction) TargetStatus() (Status, bool) {
	switch a {
	case ActionWatch:
		return StatusWatched, true
	case ActionWatching:
		return StatusWatching, true
	case ActionSkip:
		return Status("skipped"), true
	case ActionWishlist:
		return StatusWishlist, true
	default:
		return "", false
	}
}

// Valid reports whether the action is one the updater knows how to apply.
func (a EpisodeAction) Valid() bool {
	switch a {
	case ActionWatch, ActionWatching, ActionSkip, ActionWishlist,
		ActionRate, ActionComment, ActionUnwatch:
		return true
	}
	return false
}

type AppUser struct {
	ID        string    `json:"id" db:"id"`
	Username  *string   `json:"username" db:"username"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Media is the local cache of one catalog title. Rows are shared between
// users and never deleted; (TMDBID, MediaType) is unique.
type Media struct {
	ID            int64     `json:"id" db:"id"`
	TMDBID        int64     `json:"tmdb_id" db:"tmdb_id"`
	MediaType     MediaType `json:"media_type" db:"media_type"`
	Title         string    `json:"title" db:"title"`
	PosterPath    *string   `json:"poster_path" db:"poster_path"`
	Genres        *string   `json:"genres" db:"genres"`
	OriginCountry *string   `json:"origin_country" db:"origin_country"`
	Runtime       *int      `json:"runtime" db:"runtime"`
	EpisodeCount  *int      `json:"episode_count" db:"episode_count"`
	SeasonCount   *int      `json:"season_count" db:"season_count"`
	CastNames     *string   `json:"cast_names" db:"cast_names"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// RuntimeOr returns the stored runtime, or fallback when it is missing or zero.
func (m *Media) RuntimeOr(fallback int) int {
	if m.Runtime != nil && *m.Runtime > 0 {
		return *m.Runtime
	}
	return fallback
}

// UserTracking is one user's relationship to one media item.
// (UserID, MediaID) is unique.
type UserTracking struct {
	ID        int64     `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	MediaID   int64     `json:"media_id" db:"media_id"`
	Status    Status    `json:"status" db:"status"`
	Rating    *float64  `json:"rating" db:"rating"`
	Comment   *string   `json:"comment" db:"comment"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EpisodeActivity is a user's watch state for a single episode of a tracked
// series. (TrackingID, SeasonNumber, EpisodeNumber) is unique; rows are
// removed with their owning tracking row.
type EpisodeActivity struct {
	ID            int64     `json:"id" db:"id"`
	TrackingID    int64     `json:"tracking_id" db:"tracking_id"`
	SeasonNumber  int       `json:"season_number" db:"season_number"`
	EpisodeNumber int       `json:"episode_number" db:"episode_number"`
	Status        Status    `json:"status" db:"status"`
	Rating        *float64  `json:"rating" db:"rating"`
	Comment       *string   `json:"comment" db:"comment"`
	WatchedAt     time.Time `json:"watched_at" db:"watched_at"`
}

// TrackedTitle pairs a tracking row with its cached media for read paths.
type TrackedTitle struct {
	Tracking UserTracking `json:"tracking"`
	Media    Media        `json:"media"`
}
