package store

import (
	"errors"
	"strings"
	"time"
)

// JobState represents the lifecycle of a scrape job.
type JobState string

const (
	JobPending    JobState = "pending"
	JobQueued     JobState = "queued"
	JobInProgress JobState = "in_progress"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
	JobError      JobState = "error"
)

var (
	// ErrJobActive is returned by CreateJob when the username already has a non-terminal job.
	ErrJobActive = errors.New("job already active")
	// ErrJobNotActive is returned when a transition targets a job that is missing or already terminal.
	ErrJobNotActive = errors.New("job not active")
)

var allJobStates = []JobState{JobPending, JobQueued, JobInProgress, JobCompleted, JobFailed, JobError}

// AllJobStates returns every job state in lifecycle order.
func AllJobStates() []JobState {
	return append([]JobState(nil), allJobStates...)
}

// ParseJobState converts a string into a JobState.
func ParseJobState(value string) (JobState, bool) {
	normalized := JobState(strings.ToLower(strings.TrimSpace(value)))
	for _, state := range allJobStates {
		if state == normalized {
			return state, true
		}
	}
	return "", false
}

// IsTerminal reports whether the state ends a job.
func (s JobState) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobError
}

// IsActive reports whether a job in this state blocks a new request.
func (s JobState) IsActive() bool {
	return s == JobPending || s == JobQueued || s == JobInProgress
}

func terminalStates() []any {
	return []any{JobCompleted, JobFailed, JobError}
}

func activeStates() []any {
	return []any{JobPending, JobQueued, JobInProgress}
}

// Job is the durable record of one ingestion run for a username.
type Job struct {
	JobID           string
	Username        string
	State           JobState
	ProgressMessage string
	ProgressPercent float64
	PagesTotal      int
	PagesFetched    int
	PagesSkipped    int
	RecordsParsed   int
	QueuedAt        time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	LastHeartbeat   *time.Time
	ErrorKind       string
	ErrorMessage    string
	UpdatedAt       time.Time
}

// LastActivity returns the most recent liveness signal for the job.
func (j Job) LastActivity() time.Time {
	if j.LastHeartbeat != nil {
		return *j.LastHeartbeat
	}
	if j.StartedAt != nil {
		return *j.StartedAt
	}
	return j.QueuedAt
}

// JobProgress carries the counters a running job reports.
type JobProgress struct {
	Percent       float64
	Message       string
	PagesTotal    int
	PagesFetched  int
	PagesSkipped  int
	RecordsParsed int
}

// JobTransition describes a state change for a specific job.
type JobTransition struct {
	Username     string
	JobID        string
	To           JobState
	Message      string
	ErrorKind    string
	ErrorMessage string
}

// Film is a catalog entry shared by every profile that logged it.
type Film struct {
	Key        string
	Title      string
	Year       int
	ExternalID string
	URL        string
	PosterURL  string
}

// Rating records one profile's log of a film. Rating is nil for watched but
// unrated films.
type Rating struct {
	Username    string
	FilmKey     string
	Rating      *float64
	Liked       bool
	WatchedDate string
	Rewatch     bool
	SyncID      string
}

// Review is a profile's written review of a film.
type Review struct {
	Username    string
	FilmKey     string
	Body        string
	Rating      *float64
	WatchedDate string
	ReviewDate  string
	LikeCount   int
	SyncID      string
}

// WatchlistItem is a film a profile wants to see. Position is its place on
// the watchlist as the site orders it, starting at 1.
type WatchlistItem struct {
	Username string
	FilmKey  string
	Position int
	SyncID   string
}

// FilmList is a custom list a profile published.
type FilmList struct {
	Username    string
	Slug        string
	Title       string
	Description string
	FilmCount   int
	URL         string
	SyncID      string
}

// Profile is a scraped user with counters derived from stored rows.
type Profile struct {
	Username            string
	DisplayName         string
	Bio                 string
	Location            string
	Website             string
	AvatarURL           string
	JoinDate            string
	ReportedFilmCount   int
	ReportedReviewCount int
	ReportedListCount   int
	TotalFilms          int
	RatedFilms          int
	LikedFilms          int
	AverageRating       float64
	TotalReviews        int
	WatchlistCount      int
	ListCount           int
	LastSyncedAt        *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Synced reports whether the profile has completed at least one sync.
func (p Profile) Synced() bool {
	return p.LastSyncedAt != nil
}

// ProfileInfo is metadata scraped from a profile page.
type ProfileInfo struct {
	Username            string
	DisplayName         string
	Bio                 string
	Location            string
	Website             string
	AvatarURL           string
	JoinDate            string
	ReportedFilmCount   int
	ReportedReviewCount int
	ReportedListCount   int
}

// SyncBatch is one transactional slice of a scrape run.
type SyncBatch struct {
	Username  string
	SyncID    string
	Films     []Film
	Ratings   []Rating
	Reviews   []Review
	Watchlist []WatchlistItem
	Lists     []FilmList
	// Prune removes rows from earlier runs when the final batch commits. Only
	// set it when the run saw every page.
	Prune bool
}

// Size returns the number of records in the batch.
func (b SyncBatch) Size() int {
	return len(b.Films) + len(b.Ratings) + len(b.Reviews) + len(b.Watchlist) + len(b.Lists)
}

// Entry joins a rating row with its film for aggregation.
type Entry struct {
	FilmKey     string
	Title       string
	Year        int
	Rating      *float64
	Liked       bool
	WatchedDate string
	Rewatch     bool
}

// FilmScore is a film with its mean rating across profiles.
type FilmScore struct {
	FilmKey     string
	Title       string
	Year        int
	MeanRating  float64
	RatingCount int
}

// WatchlistFilm joins a watchlist row with its film.
type WatchlistFilm struct {
	FilmKey  string
	Title    string
	Year     int
	Position int
}

// MonthActivity is one calendar month of diary entries across all profiles.
type MonthActivity struct {
	Month      string
	Entries    int
	MeanRating *float64
}

// ProfileView is everything the analysis of one profile reads, taken from a
// single read transaction so counters and rows agree.
type ProfileView struct {
	Profile   Profile
	Entries   []Entry
	Reviews   []Review
	TopFilms  []FilmScore
	Watchlist []WatchlistFilm
	Lists     []FilmList
}

// Activity counts diary entries and reviews dated within a window.
type Activity struct {
	Entries int
	Reviews int
}

// SharedEntry is a film logged by two profiles with each one's rating.
type SharedEntry struct {
	FilmKey string
	Title   string
	Year    int
	RatingA *float64
	RatingB *float64
}
