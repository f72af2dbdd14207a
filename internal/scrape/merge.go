package scrape

import (
	"filmlog/internal/store"
)

// merged accumulates everything a run learned about one film.
type merged struct {
	ref         FilmRef
	gridRating  *float64
	diaryRating *float64
	liked       bool
	watched     string
	diaryCount  int
	rewatch     bool
	review      *ReviewEntry
}

// collector merges the logged listings by film key, remembering first-seen
// order so batches are flushed in page order. The watchlist and lists are
// kept apart because they are not part of the log.
type collector struct {
	films     map[string]*merged
	order     []string
	watchlist []FilmRef
	watchSeen map[string]bool
	lists     []ListEntry
	listSeen  map[string]bool
}

func newCollector() *collector {
	return &collector{
		films:     make(map[string]*merged),
		watchSeen: make(map[string]bool),
		listSeen:  make(map[string]bool),
	}
}

func (c *collector) entry(ref FilmRef) *merged {
	m, ok := c.films[ref.Key]
	if !ok {
		m = &merged{ref: ref}
		c.films[ref.Key] = m
		c.order = append(c.order, ref.Key)
		return m
	}
	// Keep whichever sighting carries more catalog detail.
	if m.ref.ExternalID == "" && ref.ExternalID != "" {
		m.ref.ExternalID = ref.ExternalID
	}
	if m.ref.PosterURL == "" && ref.PosterURL != "" {
		m.ref.PosterURL = ref.PosterURL
	}
	if m.ref.URL == "" && ref.URL != "" {
		m.ref.URL = ref.URL
	}
	if m.ref.Year == 0 && ref.Year != 0 {
		m.ref.Year = ref.Year
	}
	return m
}

func (c *collector) addFilm(e FilmEntry) {
	m := c.entry(e.Film)
	m.gridRating = e.Rating
	m.liked = m.liked || e.Liked
}

func (c *collector) addDiary(e DiaryEntry) {
	m := c.entry(e.Film)
	m.diaryCount++
	m.rewatch = m.rewatch || e.Rewatch || m.diaryCount > 1
	m.liked = m.liked || e.Liked
	// Diary pages run newest first, so the first dated row is the latest viewing.
	if e.WatchedDate != "" && e.WatchedDate > m.watched {
		m.watched = e.WatchedDate
		if e.Rating != nil {
			m.diaryRating = e.Rating
		}
	}
	if m.diaryRating == nil && e.Rating != nil {
		m.diaryRating = e.Rating
	}
}

func (c *collector) addReview(e ReviewEntry) {
	m := c.entry(e.Film)
	if m.review == nil || e.ReviewDate > m.review.ReviewDate {
		review := e
		m.review = &review
	}
}

func (c *collector) addWatchlist(e WatchlistEntry) {
	if c.watchSeen[e.Film.Key] {
		return
	}
	c.watchSeen[e.Film.Key] = true
	c.watchlist = append(c.watchlist, e.Film)
}

func (c *collector) addList(e ListEntry) {
	if c.listSeen[e.Slug] {
		return
	}
	c.listSeen[e.Slug] = true
	c.lists = append(c.lists, e)
}

func (m *merged) rating() *float64 {
	if m.gridRating != nil {
		return m.gridRating
	}
	if m.diaryRating != nil {
		return m.diaryRating
	}
	if m.review != nil {
		return m.review.Rating
	}
	return nil
}

// batches splits the collected records into SyncBatches of at most size
// records each. The last batch is always present, even when nothing was
// collected, so the final commit can stamp the profile.
func (c *collector) batches(username, syncID string, size int, prune bool) []store.SyncBatch {
	if size <= 0 {
		size = 200
	}
	var (
		out     []store.SyncBatch
		current = store.SyncBatch{Username: username, SyncID: syncID}
	)
	reserve := func(records int) {
		if current.Size() > 0 && current.Size()+records > size {
			out = append(out, current)
			current = store.SyncBatch{Username: username, SyncID: syncID}
		}
	}
	for _, key := range c.order {
		m := c.films[key]
		records := 2
		if m.review != nil {
			records++
		}
		reserve(records)
		current.Films = append(current.Films, m.ref.Film())
		rating := m.rating()
		current.Ratings = append(current.Ratings, store.Rating{
			FilmKey:     key,
			Rating:      rating,
			Liked:       m.liked,
			WatchedDate: m.watched,
			Rewatch:     m.rewatch,
		})
		if m.review != nil {
			reviewRating := m.review.Rating
			if reviewRating == nil {
				reviewRating = rating
			}
			current.Reviews = append(current.Reviews, store.Review{
				FilmKey:     key,
				Body:        m.review.Body,
				Rating:      reviewRating,
				WatchedDate: m.watched,
				ReviewDate:  m.review.ReviewDate,
				LikeCount:   m.review.LikeCount,
			})
		}
	}
	for i, ref := range c.watchlist {
		reserve(2)
		current.Films = append(current.Films, ref.Film())
		current.Watchlist = append(current.Watchlist, store.WatchlistItem{FilmKey: ref.Key, Position: i + 1})
	}
	for _, l := range c.lists {
		reserve(1)
		current.Lists = append(current.Lists, store.FilmList{
			Slug:        l.Slug,
			Title:       l.Title,
			Description: l.Description,
			FilmCount:   l.FilmCount,
			URL:         l.URL,
		})
	}
	current.Prune = prune
	return append(out, current)
}

func (c *collector) counts() (films, reviews int) {
	for _, m := range c.films {
		films++
		if m.review != nil {
			reviews++
		}
	}
	return films, reviews
}
