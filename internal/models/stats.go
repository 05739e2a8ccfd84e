package models

// DashboardStats is the read-only snapshot behind the dashboard views.
type DashboardStats struct {
	TotalTitles    int     `json:"total_titles"`
	MoviesWatched  int     `json:"movies_watched"`
	SeriesFinished int     `json:"series_finished"`
	TotalMinutes   int     `json:"total_minutes"`
	TotalHours     int     `json:"total_hours"`
	TotalDays      float64 `json:"total_days"`

	MoviesByStatus map[Status][]TrackedTitle `json:"movies_by_status"`
	SeriesByStatus map[Status][]TrackedTitle `json:"series_by_status"`

	Filter MediaType `json:"filter,omitempty"`
}

// SeriesWatchStats is the time-watched summary for a single series.
type SeriesWatchStats struct {
	EpisodesWatched int    `json:"episodes_watched"`
	TotalMinutes    int    `json:"total_minutes"`
	TimeStr         string `json:"time_str"`
}

// DetailsContext merges catalog details with the user's local tracking state.
// Degraded is set when the catalog was unreachable and Item is nil.
type DetailsContext struct {
	Item        *CatalogItem      `json:"item"`
	Tracking    *UserTracking     `json:"tracking"`
	InList      bool              `json:"in_list"`
	SeriesStats *SeriesWatchStats `json:"series_stats,omitempty"`
	Degraded    bool              `json:"degraded"`
}

// EpisodeContext pairs one catalog episode with the user's activity, if any.
type EpisodeContext struct {
	Episode  EpisodeDetail    `json:"episode"`
	Activity *EpisodeActivity `json:"activity"`
}

// SeasonContext is a season listing merged with the user's activity rows.
type SeasonContext struct {
	Season   SeasonDetail     `json:"season"`
	Episodes []EpisodeContext `json:"episodes"`
	Degraded bool             `json:"degraded"`
}
