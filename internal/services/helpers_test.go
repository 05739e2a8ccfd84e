package services_test

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"watchtrack/internal/models"
	"watchtrack/internal/repository"
	"watchtrack/internal/services"
)

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fakeGateway serves canned catalog payloads and scripted failures.
type fakeGateway struct {
	details    map[int64]*models.CatalogItem
	seasons    map[int64]map[int]*models.SeasonDetail
	detailsErr error
	// season numbers whose fetch should fail
	failSeasons map[int]bool

	detailCalls int
	seasonCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		details:     make(map[int64]*models.CatalogItem),
		seasons:     make(map[int64]map[int]*models.SeasonDetail),
		failSeasons: make(map[int]bool),
	}
}

// addSeries registers a series with the given episodes per season and a
// per-episode runtime.
func (g *fakeGateway) addSeries(tmdbID int64, title string, runtime int, episodesPerSeason ...int) {
	item := &models.CatalogItem{
		ID:              tmdbID,
		Name:            title,
		Runtime:         runtime,
		NumberOfSeasons: len(episodesPerSeason),
		MediaType:       models.MediaTypeTV,
	}
	g.seasons[tmdbID] = make(map[int]*models.SeasonDetail)

	total := 0
	for i, count := range episodesPerSeason {
		seasonNumber := i + 1
		total += count
		item.Seasons = append(item.Seasons, models.SeasonRef{
			SeasonNumber: seasonNumber,
			EpisodeCount: count,
		})

		detail := &models.SeasonDetail{SeasonNumber: seasonNumber}
		for ep := 1; ep <= count; ep++ {
			detail.Episodes = append(detail.Episodes, models.EpisodeDetail{EpisodeNumber: ep})
		}
		g.seasons[tmdbID][seasonNumber] = detail
	}
	item.NumberOfEpisodes = total
	g.details[tmdbID] = item
}

func (g *fakeGateway) SearchMulti(_ context.Context, _ string, _ int) (*models.SearchResponse, error) {
	return &models.SearchResponse{}, nil
}

func (g *fakeGateway) GetDetails(_ context.Context, _ models.MediaType, tmdbID int64) (*models.CatalogItem, error) {
	g.detailCalls++
	if g.detailsErr != nil {
		return nil, g.detailsErr
	}
	item, ok := g.details[tmdbID]
	if !ok {
		return nil, services.ErrCatalogNotFound
	}
	return item, nil
}

func (g *fakeGateway) GetSeasonDetails(_ context.Context, tmdbID int64, season int) (*models.SeasonDetail, error) {
	g.seasonCalls++
	if g.failSeasons[season] {
		return nil, services.ErrCatalogUnavailable
	}
	detail, ok := g.seasons[tmdbID][season]
	if !ok {
		return &models.SeasonDetail{SeasonNumber: season}, nil
	}
	return detail, nil
}

type testStack struct {
	store   *repository.MemoryStore
	cache   *services.CatalogCache
	gateway *fakeGateway
	tracker *services.Tracker
	stats   *services.Stats
}

func newTestStack() *testStack {
	log := discardLogger()
	store := repository.NewMemoryStore()
	cache := services.NewCatalogCache(store, log)
	gateway := newFakeGateway()
	return &testStack{
		store:   store,
		cache:   cache,
		gateway: gateway,
		tracker: services.NewTracker(store, cache, gateway, log),
		stats:   services.NewStats(store, log),
	}
}
