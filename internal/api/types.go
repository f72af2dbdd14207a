package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// IngestResponse acknowledges a queued ingestion.
type IngestResponse struct {
	JobID    string `json:"job_id"`
	Username string `json:"username"`
	State    string `json:"state"`
}

// Job describes an ingestion job in a transport-friendly format.
type Job struct {
	JobID              string  `json:"job_id"`
	Username           string  `json:"username"`
	State              string  `json:"state"`
	ProgressPercentage float64 `json:"progress_percentage"`
	ProgressMessage    string  `json:"progress_message"`
	PagesTotal         int     `json:"pages_total"`
	PagesFetched       int     `json:"pages_fetched"`
	PagesSkipped       int     `json:"pages_skipped"`
	RecordsParsed      int     `json:"records_parsed"`
	QueuedAt           string  `json:"queued_at,omitempty"`
	StartedAt          string  `json:"started_at,omitempty"`
	CompletedAt        string  `json:"completed_at,omitempty"`
	LastHeartbeat      string  `json:"last_heartbeat,omitempty"`
	ErrorKind          string  `json:"error_kind,omitempty"`
	ErrorMessage       string  `json:"error_message,omitempty"`
}

// ProfileListItem is one synced profile.
type ProfileListItem struct {
	Username      string  `json:"username"`
	DisplayName   string  `json:"display_name,omitempty"`
	TotalFilms    int     `json:"total_films"`
	AverageRating float64 `json:"average_rating"`
	LastSyncedAt  string  `json:"last_synced_at"`
}

// ProfilesResponse wraps the synced profile list.
type ProfilesResponse struct {
	Profiles []ProfileListItem `json:"profiles"`
}

// DeleteResponse acknowledges a profile deletion.
type DeleteResponse struct {
	Deleted  bool   `json:"deleted"`
	Username string `json:"username"`
}

// FilmScore is a film with its mean rating.
type FilmScore struct {
	FilmKey     string  `json:"film_key"`
	Title       string  `json:"title"`
	Year        int     `json:"year,omitempty"`
	MeanRating  float64 `json:"mean_rating"`
	RatingCount int     `json:"rating_count"`
}

// ProfileSummary is the header of an Analysis.
type ProfileSummary struct {
	Username       string  `json:"username"`
	DisplayName    string  `json:"display_name,omitempty"`
	TotalFilms     int     `json:"total_films"`
	RatedFilms     int     `json:"rated_films"`
	LikedFilms     int     `json:"liked_films"`
	TotalReviews   int     `json:"total_reviews"`
	AverageRating  float64 `json:"average_rating"`
	WatchlistCount int     `json:"watchlist_count"`
	ListCount      int     `json:"list_count"`
	LastSyncedAt   string  `json:"last_synced_at,omitempty"`
}

// MonthBucket is one month of diary activity.
type MonthBucket struct {
	Month      string   `json:"month"`
	Watched    int      `json:"watched"`
	Rated      int      `json:"rated"`
	MeanRating *float64 `json:"mean_rating,omitempty"`
	Reviews    int      `json:"reviews"`
}

// DecadeBucket counts films by release decade.
type DecadeBucket struct {
	Decade     int      `json:"decade"`
	Films      int      `json:"films"`
	Rated      int      `json:"rated"`
	MeanRating *float64 `json:"mean_rating,omitempty"`
}

// Metrics are descriptive statistics of a profile.
type Metrics struct {
	TotalFilms    int     `json:"total_films"`
	RatedFilms    int     `json:"rated_films"`
	LikedFilms    int     `json:"liked_films"`
	TotalReviews  int     `json:"total_reviews"`
	Mean          float64 `json:"mean"`
	Median        float64 `json:"median"`
	StdDev        float64 `json:"std_dev"`
	Variance      float64 `json:"variance"`
	Skewness      float64 `json:"skewness"`
	Kurtosis      float64 `json:"kurtosis"`
	FiveStarPct   float64 `json:"five_star_pct"`
	FourPlusPct   float64 `json:"four_plus_pct"`
	ThreeMinusPct float64 `json:"three_minus_pct"`
	LikeRate      float64 `json:"like_rate"`
	ReviewRate    float64 `json:"review_rate"`
	OldestYear    int     `json:"oldest_year,omitempty"`
	NewestYear    int     `json:"newest_year,omitempty"`
	AverageYear   float64 `json:"average_year,omitempty"`
	RewatchCount  int     `json:"rewatch_count"`
	RatingStyle   string  `json:"rating_style"`

	MostCommonRating *float64       `json:"most_common_rating,omitempty"`
	ExtremesPct      float64        `json:"extremes_pct"`
	DiaryEntries     int            `json:"diary_entries"`
	ViewingSpanDays  int            `json:"viewing_span_days"`
	FilmsPerMonth    float64        `json:"films_per_month"`
	FavoriteWeekday  string         `json:"favorite_weekday,omitempty"`
	WeekdayCounts    map[string]int `json:"weekday_counts,omitempty"`
	BingeDays        int            `json:"binge_days"`
	MaxFilmsInDay    int            `json:"max_films_in_day"`
}

// Analysis is the per-profile snapshot.
type Analysis struct {
	Profile            ProfileSummary  `json:"profile"`
	RatingDistribution map[string]int  `json:"rating_distribution"`
	Monthly            []MonthBucket   `json:"monthly"`
	AverageRating      float64         `json:"average_rating"`
	Metrics            Metrics         `json:"metrics"`
	Decades            []DecadeBucket  `json:"decades"`
	TopFilms           []FilmScore     `json:"top_films"`
	BottomFilms        []FilmScore     `json:"bottom_films"`
	Watchlist          []WatchlistFilm `json:"watchlist"`
	Lists              []FilmList      `json:"lists"`
	GeneratedAt        string          `json:"generated_at"`
}

// WatchlistFilm is one film a profile intends to watch.
type WatchlistFilm struct {
	FilmKey  string `json:"film_key"`
	Title    string `json:"title"`
	Year     int    `json:"year,omitempty"`
	Position int    `json:"position"`
}

// FilmList is a custom list a profile published.
type FilmList struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	FilmCount   int    `json:"film_count"`
	URL         string `json:"url,omitempty"`
}

// MonthActivity is one month of diary entries across every profile.
type MonthActivity struct {
	Month      string   `json:"month"`
	Entries    int      `json:"entries"`
	MeanRating *float64 `json:"mean_rating,omitempty"`
}

// Trend compares this month with the previous one.
type Trend struct {
	Current  int     `json:"current"`
	Previous int     `json:"previous"`
	Change   float64 `json:"change_pct"`
	Positive bool    `json:"is_positive"`
}

// Trends holds month-over-month changes.
type Trends struct {
	Entries Trend `json:"entries"`
	Reviews Trend `json:"reviews"`
}

// System is the catalog-wide snapshot.
type System struct {
	TotalProfiles      int             `json:"total_profiles"`
	SyncedProfiles     int             `json:"synced_profiles"`
	UniqueFilms        int             `json:"unique_films"`
	TotalReviews       int             `json:"total_reviews"`
	GlobalDistribution map[string]int  `json:"global_distribution"`
	GlobalAverage      float64         `json:"global_average"`
	TopRated           []FilmScore     `json:"top_rated"`
	ActiveJobs         int             `json:"active_jobs"`
	Trends             Trends          `json:"trends"`
	Monthly            []MonthActivity `json:"monthly"`
	GeneratedAt        string          `json:"generated_at"`
}

// FilmComparison is one film both profiles logged.
type FilmComparison struct {
	FilmKey    string   `json:"film_key"`
	Title      string   `json:"title"`
	Year       int      `json:"year,omitempty"`
	RatingA    *float64 `json:"rating_a,omitempty"`
	RatingB    *float64 `json:"rating_b,omitempty"`
	Difference *float64 `json:"difference,omitempty"`
}

// Compatibility compares two profiles.
type Compatibility struct {
	UserA               string           `json:"user_a"`
	UserB               string           `json:"user_b"`
	CommonFilms         int              `json:"common_films"`
	RatedInCommon       int              `json:"rated_in_common"`
	MeanAbsDifference   float64          `json:"mean_abs_difference"`
	AgreementScore      float64          `json:"agreement_score"`
	BothLoved           int              `json:"both_loved"`
	BothDisliked        int              `json:"both_disliked"`
	StrongDisagreements int              `json:"strong_disagreements"`
	Films               []FilmComparison `json:"films"`
}

// Check mirrors one preflight result.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Health aggregates daemon runtime information for API consumers.
type Health struct {
	Status       string         `json:"status"`
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"database_path"`
	LockFilePath string         `json:"lock_file_path"`
	ActiveJobs   int            `json:"active_jobs"`
	JobCounts    map[string]int `json:"job_counts"`
	LastError    string         `json:"last_error,omitempty"`
	Checks       []Check        `json:"checks"`
}
