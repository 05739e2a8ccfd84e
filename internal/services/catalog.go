package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"watchtrack/internal/models"
	"watchtrack/internal/repository"
)

const leadingCastLimit = 5

// CatalogCache maintains the local copy of catalog titles. Rows are created
// lazily on first reference and shared between users.
type CatalogCache struct {
	store  repository.TrackingStore
	logger *logrus.Logger
}

func NewCatalogCache(store repository.TrackingStore, logger *logrus.Logger) *CatalogCache {
	return &CatalogCache{store: store, logger: logger}
}

// GetOrCreate returns the cached media row for (tmdbID, mediaType), creating
// it from the catalog payload when absent. item may be nil when the catalog
// was unreachable; a minimal stub row is created instead. Losing the insert
// race to a concurrent creator falls back to re-reading their row.
func (c *CatalogCache) GetOrCreate(ctx context.Context, tmdbID int64, mediaType models.MediaType, item *models.CatalogItem) (*models.Media, error) {
	media, err := c.store.GetMedia(ctx, tmdbID, mediaType)
	if err == nil {
		return media, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up media: %w", err)
	}

	media = mediaFromCatalog(tmdbID, mediaType, item)

	if err := c.store.CreateMedia(ctx, media); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			c.logger.WithFields(logrus.Fields{
				"tmdb_id":    tmdbID,
				"media_type": mediaType,
			}).Debug("Lost media insert race, re-reading")
			return c.store.GetMedia(ctx, tmdbID, mediaType)
		}
		return nil, fmt.Errorf("failed to create media: %w", err)
	}

	return media, nil
}

func mediaFromCatalog(tmdbID int64, mediaType models.MediaType, item *models.CatalogItem) *models.Media {
	media := &models.Media{
		TMDBID:    tmdbID,
		MediaType: mediaType,
	}

	if item == nil {
		if mediaType == models.MediaTypeMovie {
			media.Title = fmt.Sprintf("Movie %d", tmdbID)
		} else {
			media.Title = fmt.Sprintf("Series %d", tmdbID)
		}
		return media
	}

	media.Title = item.DisplayTitle()
	media.PosterPath = optionalString(item.PosterPath)
	media.Genres = optionalString(item.GenreNames())
	media.CastNames = optionalString(item.LeadingCast(leadingCastLimit))
	if len(item.OriginCountry) > 0 {
		media.OriginCountry = optionalString(item.OriginCountry[0])
	}
	media.Runtime = optionalInt(item.Runtime)
	media.EpisodeCount = optionalInt(item.NumberOfEpisodes)
	media.SeasonCount = optionalInt(item.NumberOfSeasons)

	return media
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
