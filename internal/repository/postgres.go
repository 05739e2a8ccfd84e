package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"watchtrack/internal/models"
)

// Postgres unique_violation
const uniqueViolationCode = "23505"

type postgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) TrackingStore {
	return &postgresStore{db: db}
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return ErrDuplicate
	}
	return err
}

func (s *postgresStore) EnsureUser(ctx context.Context, id string, username *string) error {
	query := `
	INSERT INTO users (id, username, created_at, updated_at)
	VALUES ($1, $2, now(), now())
	ON CONFLICT (id) DO UPDATE
	SET username = COALESCE(EXCLUDED.username, users.username), updated_at = now()
	`

	if _, err := s.db.Exec(ctx, query, id, username); err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

func (s *postgresStore) GetMedia(ctx context.Context, tmdbID int64, mediaType models.MediaType) (*models.Media, error) {
	query := `
	SELECT id, tmdb_id, media_type, title, poster_path, genres, origin_country,
	       runtime, episode_count, season_count, cast_names, created_at
	FROM media
	WHERE tmdb_id = $1 AND media_type = $2
	`

	var m models.Media
	err := s.db.QueryRow(ctx, query, tmdbID, mediaType).Scan(
		&m.ID, &m.TMDBID, &m.MediaType, &m.Title, &m.PosterPath, &m.Genres,
		&m.OriginCountry, &m.Runtime, &m.EpisodeCount, &m.SeasonCount,
		&m.CastNames, &m.CreatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return &m, nil
}

func (s *postgresStore) CreateMedia(ctx context.Context, media *models.Media) error {
	query := `
	INSERT INTO media (tmdb_id, media_type, title, poster_path, genres, origin_country,
	                   runtime, episode_count, season_count, cast_names, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
	RETURNING id, created_at
	`

	err := s.db.QueryRow(ctx, query,
		media.TMDBID, media.MediaType, media.Title, media.PosterPath,
		media.Genres, media.OriginCountry, media.Runtime, media.EpisodeCount,
		media.SeasonCount, media.CastNames,
	).Scan(&media.ID, &media.CreatedAt)
	if err != nil {
		if translated := translateError(err); errors.Is(translated, ErrDuplicate) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create media: %w", err)
	}
	return nil
}

func (s *postgresStore) GetTracking(ctx context.Context, userID string, mediaID int64) (*models.UserTracking, error) {
	query := `
	SELECT id, user_id, media_id, status, rating, comment, created_at, updated_at
	FROM user_media
	WHERE user_id = $1 AND media_id = $2
	`

	var t models.UserTracking
	err := s.db.QueryRow(ctx, query, userID, mediaID).Scan(
		&t.ID, &t.UserID, &t.MediaID, &t.Status, &t.Rating, &t.Comment,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return &t, nil
}

func (s *postgresStore) CreateTracking(ctx context.Context, tracking *models.UserTracking) error {
	query := `
	INSERT INTO user_media (user_id, media_id, status, rating, comment, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, now(), now())
	RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query,
		tracking.UserID, tracking.MediaID, tracking.Status, tracking.Rating, tracking.Comment,
	).Scan(&tracking.ID, &tracking.CreatedAt, &tracking.UpdatedAt)
	if err != nil {
		if translated := translateError(err); errors.Is(translated, ErrDuplicate) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create tracking: %w", err)
	}
	return nil
}

func (s *postgresStore) UpdateTracking(ctx context.Context, tracking *models.UserTracking) error {
	query := `
	UPDATE user_media
	SET status = $2, rating = $3, comment = $4, updated_at = now()
	WHERE id = $1
	RETURNING updated_at
	`

	err := s.db.QueryRow(ctx, query,
		tracking.ID, tracking.Status, tracking.Rating, tracking.Comment,
	).Scan(&tracking.UpdatedAt)
	if err != nil {
		return translateError(err)
	}
	return nil
}

func (s *postgresStore) DeleteTracking(ctx context.Context, id int64) error {
	// episode_activity rows go with it via ON DELETE CASCADE
	tag, err := s.db.Exec(ctx, "DELETE FROM user_media WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete tracking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) ListTracking(ctx context.Context, userID string, typeFilter models.MediaType) ([]models.TrackedTitle, error) {
	query := `
	SELECT um.id, um.user_id, um.media_id, um.status, um.rating, um.comment,
	       um.created_at, um.updated_at,
	       m.id, m.tmdb_id, m.media_type, m.title, m.poster_path, m.genres,
	       m.origin_country, m.runtime, m.episode_count, m.season_count,
	       m.cast_names, m.created_at
	FROM user_media um
	JOIN media m ON um.media_id = m.id
	WHERE um.user_id = $1
	`

	args := []any{userID}
	if typeFilter != "" {
		query += " AND m.media_type = $2"
		args = append(args, typeFilter)
	}
	query += " ORDER BY um.updated_at DESC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracking rows: %w", err)
	}
	defer rows.Close()

	var titles []models.TrackedTitle
	for rows.Next() {
		var entry models.TrackedTitle
		t := &entry.Tracking
		m := &entry.Media
		err := rows.Scan(
			&t.ID, &t.UserID, &t.MediaID, &t.Status, &t.Rating, &t.Comment,
			&t.CreatedAt, &t.UpdatedAt,
			&m.ID, &m.TMDBID, &m.MediaType, &m.Title, &m.PosterPath, &m.Genres,
			&m.OriginCountry, &m.Runtime, &m.EpisodeCount, &m.SeasonCount,
			&m.CastNames, &m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tracking row: %w", err)
		}
		titles = append(titles, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tracking rows: %w", err)
	}
	return titles, nil
}

func (s *postgresStore) GetActivity(ctx context.Context, trackingID int64, season, episode int) (*models.EpisodeActivity, error) {
	query := `
	SELECT id, tracking_id, season_number, episode_number, status, rating, comment, watched_at
	FROM episode_activity
	WHERE tracking_id = $1 AND season_number = $2 AND episode_number = $3
	`

	var a models.EpisodeActivity
	err := s.db.QueryRow(ctx, query, trackingID, season, episode).Scan(
		&a.ID, &a.TrackingID, &a.SeasonNumber, &a.EpisodeNumber, &a.Status,
		&a.Rating, &a.Comment, &a.WatchedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return &a, nil
}

func (s *postgresStore) CreateActivity(ctx context.Context, activity *models.EpisodeActivity) error {
	query := `
	INSERT INTO episode_activity (tracking_id, season_number, episode_number, status, rating, comment, watched_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id
	`

	watchedAt := activity.WatchedAt
	if watchedAt.IsZero() {
		watchedAt = time.Now().UTC()
	}

	err := s.db.QueryRow(ctx, query,
		activity.TrackingID, activity.SeasonNumber, activity.EpisodeNumber,
		activity.Status, activity.Rating, activity.Comment, watchedAt,
	).Scan(&activity.ID)
	if err != nil {
		if translated := translateError(err); errors.Is(translated, ErrDuplicate) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create episode activity: %w", err)
	}
	activity.WatchedAt = watchedAt
	return nil
}

func (s *postgresStore) UpdateActivity(ctx context.Context, activity *models.EpisodeActivity) error {
	query := `
	UPDATE episode_activity
	SET status = $2, rating = $3, comment = $4
	WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, query,
		activity.ID, activity.Status, activity.Rating, activity.Comment,
	)
	if err != nil {
		return fmt.Errorf("failed to update episode activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) DeleteActivity(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM episode_activity WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete episode activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) ListSeasonActivity(ctx context.Context, trackingID int64, season int) ([]models.EpisodeActivity, error) {
	query := `
	SELECT id, tracking_id, season_number, episode_number, status, rating, comment, watched_at
	FROM episode_activity
	WHERE tracking_id = $1 AND season_number = $2
	ORDER BY episode_number
	`

	rows, err := s.db.Query(ctx, query, trackingID, season)
	if err != nil {
		return nil, fmt.Errorf("failed to query season activity: %w", err)
	}
	defer rows.Close()

	var activities []models.EpisodeActivity
	for rows.Next() {
		var a models.EpisodeActivity
		err := rows.Scan(
			&a.ID, &a.TrackingID, &a.SeasonNumber, &a.EpisodeNumber, &a.Status,
			&a.Rating, &a.Comment, &a.WatchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}
	return activities, nil
}

func (s *postgresStore) CountWatched(ctx context.Context, trackingID int64) (int, error) {
	query := `
	SELECT count(*)
	FROM episode_activity
	WHERE tracking_id = $1 AND status = 'watched'
	`

	var count int
	if err := s.db.QueryRow(ctx, query, trackingID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count watched episodes: %w", err)
	}
	return count, nil
}

func (s *postgresStore) WatchedCounts(ctx context.Context, userID string) (map[int64]int, error) {
	query := `
	SELECT ea.tracking_id, count(ea.id)
	FROM episode_activity ea
	JOIN user_media um ON ea.tracking_id = um.id
	WHERE um.user_id = $1 AND ea.status = 'watched'
	GROUP BY ea.tracking_id
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query watched counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var trackingID int64
		var count int
		if err := rows.Scan(&trackingID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan watched count: %w", err)
		}
		counts[trackingID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watched counts: %w", err)
	}
	return counts, nil
}
