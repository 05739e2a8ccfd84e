package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"watchtrack/internal/models"
)

const (
	tmdbAPIURL        = "https://api.themoviedb.org/3"
	tmdbImageBaseURL  = "https://image.tmdb.org/t/p"
	defaultTimeout    = 30 * time.Second
	defaultRateLimit  = 250 * time.Millisecond
	maxRequestRetries = 3
	retryDelay        = 2 * time.Second
	userAgent         = "watchtrack/1.0"

	searchCachePrefix  = "catalog:search:"
	detailsCachePrefix = "catalog:details:"
	seasonCachePrefix  = "catalog:season:"
	searchCacheTTL     = 4 * time.Hour
	detailsCacheTTL    = 24 * time.Hour
	seasonCacheTTL     = 6 * time.Hour
)

// CatalogGateway is the boundary to the external media catalog. Payloads are
// validated into typed models here; nothing downstream sees raw JSON.
type CatalogGateway interface {
	SearchMulti(ctx context.Context, query string, page int) (*models.SearchResponse, error)
	GetDetails(ctx context.Context, mediaType models.MediaType, tmdbID int64) (*models.CatalogItem, error)
	GetSeasonDetails(ctx context.Context, tmdbID int64, season int) (*models.SeasonDetail, error)
}

type TMDBClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
	redis      *redis.Client
	maxRetries int
	retryDelay time.Duration
}

type TMDBConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RateLimit  time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Logger     *logrus.Logger
	Redis      *redis.Client
}

func NewTMDBClient(config *TMDBConfig) *TMDBClient {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	if config.BaseURL == "" {
		config.BaseURL = tmdbAPIURL
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.RateLimit == 0 {
		config.RateLimit = defaultRateLimit
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = maxRequestRetries
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = retryDelay
	}

	return &TMDBClient{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:    rate.NewLimiter(rate.Every(config.RateLimit), 1),
		logger:     config.Logger,
		redis:      config.Redis,
		maxRetries: config.MaxRetries,
		retryDelay: config.RetryDelay,
	}
}

func (c *TMDBClient) SearchMulti(ctx context.Context, query string, page int) (*models.SearchResponse, error) {
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if page < 1 {
		page = 1
	}

	cacheKey := searchCachePrefix + query + ":" + strconv.Itoa(page)
	var cached models.SearchResponse
	if c.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))

	var result models.SearchResponse
	if err := c.get(ctx, "/search/multi", params, &result); err != nil {
		return nil, err
	}

	c.cacheSet(ctx, cacheKey, &result, searchCacheTTL)
	return &result, nil
}

func (c *TMDBClient) GetDetails(ctx context.Context, mediaType models.MediaType, tmdbID int64) (*models.CatalogItem, error) {
	cacheKey := detailsCachePrefix + string(mediaType) + ":" + strconv.FormatInt(tmdbID, 10)
	var cached models.CatalogItem
	if c.cacheGet(ctx, cacheKey, &cached) {
		cached.MediaType = mediaType
		return &cached, nil
	}

	params := url.Values{}
	params.Set("append_to_response", "credits")

	var item models.CatalogItem
	endpoint := fmt.Sprintf("/%s/%d", mediaType, tmdbID)
	if err := c.get(ctx, endpoint, params, &item); err != nil {
		return nil, err
	}
	item.MediaType = mediaType

	c.cacheSet(ctx, cacheKey, &item, detailsCacheTTL)
	return &item, nil
}

func (c *TMDBClient) GetSeasonDetails(ctx context.Context, tmdbID int64, season int) (*models.SeasonDetail, error) {
	cacheKey := seasonCachePrefix + strconv.FormatInt(tmdbID, 10) + ":" + strconv.Itoa(season)
	var cached models.SeasonDetail
	if c.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	var detail models.SeasonDetail
	endpoint := fmt.Sprintf("/tv/%d/season/%d", tmdbID, season)
	err := c.get(ctx, endpoint, nil, &detail)
	if errors.Is(err, ErrCatalogNotFound) {
		// seasons absent upstream (specials, stale listings) are empty, not errors
		return &models.SeasonDetail{SeasonNumber: season}, nil
	}
	if err != nil {
		return nil, err
	}

	c.cacheSet(ctx, cacheKey, &detail, seasonCacheTTL)
	return &detail, nil
}

// ImageURL builds a CDN url for a poster path; empty path yields empty url.
func (c *TMDBClient) ImageURL(path, size string) string {
	if path == "" {
		return ""
	}
	if size == "" {
		size = "w500"
	}
	return tmdbImageBaseURL + "/" + size + path
}

func (c *TMDBClient) get(ctx context.Context, endpoint string, params url.Values, v any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	params.Set("language", "en-US")

	requestURL := c.baseURL + endpoint + "?" + params.Encode()

	var rErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			rErr = err
			c.retryLogger(attempt, endpoint, err)
			c.waitForRetry(attempt)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return fmt.Errorf("%w: %s", ErrCatalogNotFound, endpoint)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			resp.Body.Close()
			rErr = fmt.Errorf("API returned status code %d", resp.StatusCode)
			c.retryLogger(attempt, endpoint, rErr)
			c.waitForRetry(attempt)
			continue
		case resp.StatusCode != http.StatusOK:
			resp.Body.Close()
			return fmt.Errorf("%w: status %d", ErrCatalogUnavailable, resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(v)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("%w: malformed response: %v", ErrCatalogUnavailable, err)
		}

		c.logger.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"attempt":  attempt,
		}).Debug("Catalog request successful")
		return nil
	}

	return fmt.Errorf("%w: failed after %d attempts: %v", ErrCatalogUnavailable, c.maxRetries, rErr)
}

func (c *TMDBClient) retryLogger(attempt int, endpoint string, err error) {
	c.logger.WithFields(logrus.Fields{
		"attempt":  attempt + 1,
		"endpoint": endpoint,
		"error":    err.Error(),
	}).Warn("Catalog request failed, retrying...")
}

func (c *TMDBClient) waitForRetry(attempt int) {
	if attempt < c.maxRetries-1 {
		delay := time.Duration(attempt+1) * c.retryDelay
		c.logger.WithField("delay", delay).Debug("waiting before retry")
		time.Sleep(delay)
	}
}

func (c *TMDBClient) cacheGet(ctx context.Context, key string, v any) bool {
	if c.redis == nil {
		return false
	}

	cached, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Warn("Failed to read from Redis")
		}
		return false
	}

	if err := json.Unmarshal([]byte(cached), v); err != nil {
		c.logger.WithError(err).Warn("Failed to unmarshal cached catalog response")
		return false
	}
	return true
}

func (c *TMDBClient) cacheSet(ctx context.Context, key string, v any, ttl time.Duration) {
	if c.redis == nil {
		return
	}

	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to marshal catalog response for caching")
		return
	}
	if err := c.redis.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Failed to write catalog response to cache")
	}
}
