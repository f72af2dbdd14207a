package analysis

import (
	"time"

	"filmlog/internal/store"
)

// Rating styles derived from how a profile spreads its ratings.
const (
	StyleGenerous = "generous"
	StyleBalanced = "balanced"
	StyleCritical = "critical"
	StyleUnrated  = "unrated"
)

// ProfileSummary is the header of a Snapshot.
type ProfileSummary struct {
	Username       string
	DisplayName    string
	TotalFilms     int
	RatedFilms     int
	LikedFilms     int
	TotalReviews   int
	AverageRating  float64
	WatchlistCount int
	ListCount      int
	LastSyncedAt   time.Time
}

// MonthBucket aggregates one calendar month of diary activity.
type MonthBucket struct {
	Month      string
	Watched    int
	Rated      int
	MeanRating *float64
	Reviews    int
}

// Metrics are descriptive statistics over a profile's ratings and log.
type Metrics struct {
	TotalFilms    int
	RatedFilms    int
	LikedFilms    int
	TotalReviews  int
	Mean          float64
	Median        float64
	StdDev        float64
	Variance      float64
	Skewness      float64
	Kurtosis      float64
	FiveStarPct   float64
	FourPlusPct   float64
	ThreeMinusPct float64
	LikeRate      float64
	ReviewRate    float64
	OldestYear    int
	NewestYear    int
	AverageYear   float64
	RewatchCount  int
	RatingStyle   string

	MostCommonRating *float64
	ExtremesPct      float64
	DiaryEntries     int
	ViewingSpanDays  int
	FilmsPerMonth    float64
	FavoriteWeekday  string
	WeekdayCounts    map[string]int
	BingeDays        int
	MaxFilmsInDay    int
}

// DecadeBucket counts films by release decade.
type DecadeBucket struct {
	Decade     int
	Films      int
	Rated      int
	MeanRating *float64
}

// Snapshot is the analysis of one profile.
type Snapshot struct {
	Profile            ProfileSummary
	RatingDistribution map[string]int
	Monthly            []MonthBucket
	AverageRating      float64
	Metrics            Metrics
	Decades            []DecadeBucket
	TopFilms           []store.FilmScore
	BottomFilms        []store.FilmScore
	Watchlist          []store.WatchlistFilm
	Lists              []store.FilmList
	GeneratedAt        time.Time
}

// MonthActivity is one month of diary entries across every profile.
type MonthActivity struct {
	Month      string
	Entries    int
	MeanRating *float64
}

// Trend compares this month with the previous one.
type Trend struct {
	Current  int
	Previous int
	Change   float64
	Positive bool
}

// Trends holds month-over-month changes of logged entries and reviews.
type Trends struct {
	Entries Trend
	Reviews Trend
}

// SystemSnapshot aggregates every stored profile.
type SystemSnapshot struct {
	TotalProfiles      int
	SyncedProfiles     int
	UniqueFilms        int
	TotalReviews       int
	GlobalDistribution map[string]int
	GlobalAverage      float64
	TopRated           []store.FilmScore
	ActiveJobs         int
	Trends             Trends
	Monthly            []MonthActivity
	GeneratedAt        time.Time
}

// FilmComparison is one film both profiles logged.
type FilmComparison struct {
	FilmKey    string
	Title      string
	Year       int
	RatingA    *float64
	RatingB    *float64
	Difference *float64
}

// Compatibility compares the logs of two profiles.
type Compatibility struct {
	UserA               string
	UserB               string
	CommonFilms         int
	RatedInCommon       int
	MeanAbsDifference   float64
	AgreementScore      float64
	BothLoved           int
	BothDisliked        int
	StrongDisagreements int
	Films               []FilmComparison
}
