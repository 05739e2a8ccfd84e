package models

import "strings"

// Typed TMDB payloads. The gateway client decodes responses into these once;
// nothing downstream re-inspects raw JSON.

type SearchResponse struct {
	Page         int            `json:"page"`
	Results      []SearchResult `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

type SearchResult struct {
	ID           int64   `json:"id"`
	MediaType    string  `json:"media_type"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	VoteAverage  float64 `json:"vote_average"`
}

// DisplayTitle resolves TMDB's movie/TV naming split.
func (r SearchResult) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type CastMember struct {
	Name      string `json:"name"`
	Character string `json:"character"`
}

type Credits struct {
	Cast []CastMember `json:"cast"`
}

// SeasonRef is the season summary embedded in series details. EpisodeCount
// lets the sync engine account for a season whose detail fetch failed.
type SeasonRef struct {
	SeasonNumber int    `json:"season_number"`
	EpisodeCount int    `json:"episode_count"`
	Name         string `json:"name"`
}

// CatalogItem is the detail payload for one movie or series.
type CatalogItem struct {
	ID               int64       `json:"id"`
	Title            string      `json:"title"`
	Name             string      `json:"name"`
	Overview         string      `json:"overview"`
	PosterPath       string      `json:"poster_path"`
	Genres           []Genre     `json:"genres"`
	OriginCountry    []string    `json:"origin_country"`
	Runtime          int         `json:"runtime"`
	NumberOfEpisodes int         `json:"number_of_episodes"`
	NumberOfSeasons  int         `json:"number_of_seasons"`
	Seasons          []SeasonRef `json:"seasons"`
	Credits          Credits     `json:"credits"`

	// Set by the gateway client; search results carry it, details do not.
	MediaType MediaType `json:"-"`
}

func (i *CatalogItem) DisplayTitle() string {
	if i.Title != "" {
		return i.Title
	}
	return i.Name
}

// GenreNames returns the genre names joined with commas, empty when none.
func (i *CatalogItem) GenreNames() string {
	if len(i.Genres) == 0 {
		return ""
	}
	names := make([]string, 0, len(i.Genres))
	for _, g := range i.Genres {
		names = append(names, g.Name)
	}
	return strings.Join(names, ",")
}

// LeadingCast returns up to max leading cast names joined with commas.
func (i *CatalogItem) LeadingCast(max int) string {
	cast := i.Credits.Cast
	if len(cast) == 0 {
		return ""
	}
	if len(cast) > max {
		cast = cast[:max]
	}
	names := make([]string, 0, len(cast))
	for _, c := range cast {
		names = append(names, c.Name)
	}
	return strings.Join(names, ",")
}

type EpisodeDetail struct {
	EpisodeNumber int    `json:"episode_number"`
	Name          string `json:"name"`
	Overview      string `json:"overview"`
	AirDate       string `json:"air_date"`
	Runtime       int    `json:"runtime"`
}

// SeasonDetail is one season's episode listing. A season missing upstream
// decodes to an empty listing rather than an error.
type SeasonDetail struct {
	SeasonNumber int             `json:"season_number"`
	Name         string          `json:"name"`
	Episodes     []EpisodeDetail `json:"episodes"`
}
