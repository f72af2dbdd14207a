package scrape

import (
	"time"

	"filmlog/internal/store"
)

// Listing identifies one paginated section of a profile.
type Listing string

const (
	ListingFilms     Listing = "films"
	ListingDiary     Listing = "diary"
	ListingReviews   Listing = "reviews"
	ListingWatchlist Listing = "watchlist"
	ListingLists     Listing = "lists"
)

// Listings is the order in which a run walks the profile.
var Listings = []Listing{ListingFilms, ListingDiary, ListingReviews, ListingWatchlist, ListingLists}

// Path returns the site path of page n of the listing for username. The
// diary and reviews live under the films section; the watchlist and lists
// hang off the profile root.
func (l Listing) Path(username string, page int) string {
	var path string
	switch l {
	case ListingFilms:
		path = "/" + username + "/films/"
	case ListingWatchlist, ListingLists:
		path = "/" + username + "/" + string(l) + "/"
	default:
		path = "/" + username + "/films/" + string(l) + "/"
	}
	if page > 1 {
		path += "page/" + itoa(page) + "/"
	}
	return path
}

// FilmRef identifies a film as rendered on any listing.
type FilmRef struct {
	Key        string
	Slug       string
	Title      string
	Year       int
	ExternalID string
	URL        string
	PosterURL  string
}

// Film converts the reference into a catalog row.
func (f FilmRef) Film() store.Film {
	return store.Film{
		Key:        f.Key,
		Title:      f.Title,
		Year:       f.Year,
		ExternalID: f.ExternalID,
		URL:        f.URL,
		PosterURL:  f.PosterURL,
	}
}

// FilmEntry is one poster on the films grid.
type FilmEntry struct {
	Film   FilmRef
	Rating *float64
	Liked  bool
}

// DiaryEntry is one row of the diary table.
type DiaryEntry struct {
	Film        FilmRef
	WatchedDate string
	Rating      *float64
	Liked       bool
	Rewatch     bool
	HasReview   bool
}

// ReviewEntry is one review from the reviews listing.
type ReviewEntry struct {
	Film       FilmRef
	Body       string
	Rating     *float64
	ReviewDate string
	LikeCount  int
}

// WatchlistEntry is one poster on the watchlist grid.
type WatchlistEntry struct {
	Film FilmRef
}

// ListEntry is one custom list from the lists index.
type ListEntry struct {
	Slug        string
	Title       string
	Description string
	FilmCount   int
	URL         string
}

// Page is the parsed content of one listing page.
type Page[T any] struct {
	Items []T
	// Dropped counts items skipped because they lacked an identity.
	Dropped int
	HasNext bool
	// LastPage is the highest page number advertised by the pagination
	// block, or 0 when the page carries none.
	LastPage int
}

// Progress is sent after every page a run attempts.
type Progress struct {
	Percent       float64
	Message       string
	Listing       Listing
	Page          int
	PagesTotal    int
	PagesFetched  int
	PagesSkipped  int
	RecordsParsed int
}

// Result summarizes a finished run.
type Result struct {
	SyncID         string
	PagesAttempted int
	PagesFetched   int
	PagesSkipped   int
	ParseFailures  int
	Films          int
	Ratings        int
	Reviews        int
	Watchlist      int
	Lists          int
	RateLimitHits  int
	Pruned         bool
	Duration       time.Duration
}

// SkipRatio returns skipped pages over attempted listing pages.
func (r Result) SkipRatio() float64 {
	if r.PagesAttempted == 0 {
		return 0
	}
	return float64(r.PagesSkipped) / float64(r.PagesAttempted)
}
