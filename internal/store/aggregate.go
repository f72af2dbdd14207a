package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Entries returns every logged film for username joined with its catalog row,
// ordered by watched date then film key.
func (s *Store) Entries(ctx context.Context, username string) ([]Entry, error) {
	return queryEntries(ensureContext(ctx), s.db, username)
}

func queryEntries(ctx context.Context, q queryer, username string) ([]Entry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT r.film_key, f.title, f.year, r.rating, r.liked, r.watched_date, r.rewatch
         FROM ratings r JOIN films f ON f.film_key = r.film_key
         WHERE r.username = ?
         ORDER BY r.watched_date, r.film_key`,
		NormalizeUsername(username))
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			year    sql.NullInt64
			rating  sql.NullFloat64
			watched sql.NullString
			liked   int
			rewatch int
		)
		if err := rows.Scan(&e.FilmKey, &e.Title, &year, &rating, &liked, &watched, &rewatch); err != nil {
			return nil, err
		}
		e.Year = int(year.Int64)
		e.Rating = floatPtr(rating)
		e.Liked = liked != 0
		e.WatchedDate = watched.String
		e.Rewatch = rewatch != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// Reviews returns the reviews written by username ordered by review date.
func (s *Store) Reviews(ctx context.Context, username string) ([]Review, error) {
	return queryReviews(ensureContext(ctx), s.db, username)
}

func queryReviews(ctx context.Context, q queryer, username string) ([]Review, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT username, film_key, body, rating, watched_date, review_date, like_count, sync_id
         FROM reviews WHERE username = ? ORDER BY review_date, film_key`,
		NormalizeUsername(username))
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		var (
			r                   Review
			rating              sql.NullFloat64
			watched, reviewDate sql.NullString
		)
		if err := rows.Scan(&r.Username, &r.FilmKey, &r.Body, &rating, &watched, &reviewDate, &r.LikeCount, &r.SyncID); err != nil {
			return nil, err
		}
		r.Rating = floatPtr(rating)
		r.WatchedDate = watched.String
		r.ReviewDate = reviewDate.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Watchlist returns the films on username's watchlist in site order.
func (s *Store) Watchlist(ctx context.Context, username string) ([]WatchlistFilm, error) {
	return queryWatchlist(ensureContext(ctx), s.db, username)
}

func queryWatchlist(ctx context.Context, q queryer, username string) ([]WatchlistFilm, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT w.film_key, f.title, f.year, w.position
         FROM watchlist w JOIN films f ON f.film_key = w.film_key
         WHERE w.username = ?
         ORDER BY w.position, w.film_key`,
		NormalizeUsername(username))
	if err != nil {
		return nil, fmt.Errorf("query watchlist: %w", err)
	}
	defer rows.Close()

	var out []WatchlistFilm
	for rows.Next() {
		var (
			w    WatchlistFilm
			year sql.NullInt64
		)
		if err := rows.Scan(&w.FilmKey, &w.Title, &year, &w.Position); err != nil {
			return nil, err
		}
		w.Year = int(year.Int64)
		out = append(out, w)
	}
	return out, rows.Err()
}

// Lists returns username's custom lists ordered by title.
func (s *Store) Lists(ctx context.Context, username string) ([]FilmList, error) {
	return queryLists(ensureContext(ctx), s.db, username)
}

func queryLists(ctx context.Context, q queryer, username string) ([]FilmList, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT username, slug, title, description, film_count, url, sync_id
         FROM lists WHERE username = ? ORDER BY title, slug`,
		NormalizeUsername(username))
	if err != nil {
		return nil, fmt.Errorf("query lists: %w", err)
	}
	defer rows.Close()

	var out []FilmList
	for rows.Next() {
		var (
			l   FilmList
			url sql.NullString
		)
		if err := rows.Scan(&l.Username, &l.Slug, &l.Title, &l.Description, &l.FilmCount, &url, &l.SyncID); err != nil {
			return nil, err
		}
		l.URL = url.String
		out = append(out, l)
	}
	return out, rows.Err()
}

// ProfileView reads the profile and every row its analysis needs in one
// transaction. It returns nil when the profile does not exist.
func (s *Store) ProfileView(ctx context.Context, username string, topLimit int) (*ProfileView, error) {
	ctx = ensureContext(ctx)
	var view *ProfileView
	err := s.withReadTx(ctx, func(tx *sql.Tx) error {
		profile, err := getProfile(ctx, tx, username)
		if err != nil || profile == nil {
			return err
		}
		v := &ProfileView{Profile: *profile}
		if v.Entries, err = queryEntries(ctx, tx, profile.Username); err != nil {
			return err
		}
		if v.Reviews, err = queryReviews(ctx, tx, profile.Username); err != nil {
			return err
		}
		if v.TopFilms, err = queryTopRatedFor(ctx, tx, profile.Username, topLimit); err != nil {
			return err
		}
		if v.Watchlist, err = queryWatchlist(ctx, tx, profile.Username); err != nil {
			return err
		}
		if v.Lists, err = queryLists(ctx, tx, profile.Username); err != nil {
			return err
		}
		view = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// MonthlyActivity counts diary entries per watched month across all profiles
// for months starting at from (YYYY-MM-DD), oldest first.
func (s *Store) MonthlyActivity(ctx context.Context, from string) ([]MonthActivity, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT substr(watched_date, 1, 7) AS month, COUNT(1), AVG(rating)
         FROM ratings
         WHERE watched_date IS NOT NULL AND watched_date >= ?
         GROUP BY month
         ORDER BY month`,
		from)
	if err != nil {
		return nil, fmt.Errorf("monthly activity: %w", err)
	}
	defer rows.Close()

	var out []MonthActivity
	for rows.Next() {
		var (
			m   MonthActivity
			avg sql.NullFloat64
		)
		if err := rows.Scan(&m.Month, &m.Entries, &avg); err != nil {
			return nil, err
		}
		m.MeanRating = floatPtr(avg)
		out = append(out, m)
	}
	return out, rows.Err()
}

// RatingHistogram counts rated entries per rating value across all profiles.
func (s *Store) RatingHistogram(ctx context.Context) (map[float64]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT rating, COUNT(1) FROM ratings WHERE rating IS NOT NULL GROUP BY rating`)
	if err != nil {
		return nil, fmt.Errorf("rating histogram: %w", err)
	}
	defer rows.Close()

	hist := make(map[float64]int)
	for rows.Next() {
		var (
			value float64
			count int
		)
		if err := rows.Scan(&value, &count); err != nil {
			return nil, err
		}
		hist[value] = count
	}
	return hist, rows.Err()
}

// Totals holds catalog-wide counts.
type Totals struct {
	Profiles       int
	SyncedProfiles int
	UniqueFilms    int
	CatalogFilms   int
	Reviews        int
	RatedEntries   int
	GlobalAverage  float64
}

// Totals returns catalog-wide counts. UniqueFilms counts distinct films
// referenced by any profile's log, not every catalog row.
func (s *Store) Totals(ctx context.Context) (Totals, error) {
	var (
		t   Totals
		avg sql.NullFloat64
	)
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT
            (SELECT COUNT(1) FROM profiles),
            (SELECT COUNT(1) FROM profiles WHERE last_synced_at IS NOT NULL),
            (SELECT COUNT(DISTINCT film_key) FROM ratings),
            (SELECT COUNT(1) FROM films),
            (SELECT COUNT(1) FROM reviews),
            (SELECT COUNT(rating) FROM ratings),
            (SELECT AVG(rating) FROM ratings)`)
	if err := row.Scan(&t.Profiles, &t.SyncedProfiles, &t.UniqueFilms, &t.CatalogFilms, &t.Reviews, &t.RatedEntries, &avg); err != nil {
		return Totals{}, fmt.Errorf("totals: %w", err)
	}
	if avg.Valid {
		t.GlobalAverage = avg.Float64
	}
	return t, nil
}

// TopRated returns films ordered by mean rating then rating count, keeping
// only films rated by at least minRatings profiles.
func (s *Store) TopRated(ctx context.Context, minRatings, limit int) ([]FilmScore, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT f.film_key, f.title, f.year, AVG(r.rating) AS mean, COUNT(r.rating) AS n
         FROM ratings r JOIN films f ON f.film_key = r.film_key
         WHERE r.rating IS NOT NULL
         GROUP BY f.film_key
         HAVING n >= ?
         ORDER BY mean DESC, n DESC, f.film_key
         LIMIT ?`,
		minRatings, limit)
	if err != nil {
		return nil, fmt.Errorf("top rated: %w", err)
	}
	defer rows.Close()
	return scanFilmScores(rows)
}

// TopRatedFor returns the highest rated films of one profile.
func (s *Store) TopRatedFor(ctx context.Context, username string, limit int) ([]FilmScore, error) {
	return queryTopRatedFor(ensureContext(ctx), s.db, username, limit)
}

func queryTopRatedFor(ctx context.Context, q queryer, username string, limit int) ([]FilmScore, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT f.film_key, f.title, f.year, r.rating, 1
         FROM ratings r JOIN films f ON f.film_key = r.film_key
         WHERE r.username = ? AND r.rating IS NOT NULL
         ORDER BY r.rating DESC, r.liked DESC, f.title
         LIMIT ?`,
		NormalizeUsername(username), limit)
	if err != nil {
		return nil, fmt.Errorf("top rated for profile: %w", err)
	}
	defer rows.Close()
	return scanFilmScores(rows)
}

func scanFilmScores(rows *sql.Rows) ([]FilmScore, error) {
	var scores []FilmScore
	for rows.Next() {
		var (
			fs   FilmScore
			year sql.NullInt64
		)
		if err := rows.Scan(&fs.FilmKey, &fs.Title, &year, &fs.MeanRating, &fs.RatingCount); err != nil {
			return nil, err
		}
		fs.Year = int(year.Int64)
		scores = append(scores, fs)
	}
	return scores, rows.Err()
}

// ActivityBetween counts diary entries watched and reviews written with dates
// in [from, to). Dates are compared as YYYY-MM-DD text.
func (s *Store) ActivityBetween(ctx context.Context, from, to string) (Activity, error) {
	var a Activity
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT
            (SELECT COUNT(1) FROM ratings WHERE watched_date >= ? AND watched_date < ?),
            (SELECT COUNT(1) FROM reviews WHERE review_date >= ? AND review_date < ?)`,
		from, to, from, to)
	if err := row.Scan(&a.Entries, &a.Reviews); err != nil {
		return Activity{}, fmt.Errorf("activity between %s and %s: %w", from, to, err)
	}
	return a, nil
}

// SharedEntries returns films logged by both profiles.
func (s *Store) SharedEntries(ctx context.Context, a, b string) ([]SharedEntry, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT f.film_key, f.title, f.year, ra.rating, rb.rating
         FROM ratings ra
         JOIN ratings rb ON rb.film_key = ra.film_key AND rb.username = ?
         JOIN films f ON f.film_key = ra.film_key
         WHERE ra.username = ?
         ORDER BY f.title, f.film_key`,
		NormalizeUsername(b), NormalizeUsername(a))
	if err != nil {
		return nil, fmt.Errorf("shared entries: %w", err)
	}
	defer rows.Close()

	var shared []SharedEntry
	for rows.Next() {
		var (
			e      SharedEntry
			year   sql.NullInt64
			ra, rb sql.NullFloat64
		)
		if err := rows.Scan(&e.FilmKey, &e.Title, &year, &ra, &rb); err != nil {
			return nil, err
		}
		e.Year = int(year.Int64)
		e.RatingA = floatPtr(ra)
		e.RatingB = floatPtr(rb)
		shared = append(shared, e)
	}
	return shared, rows.Err()
}
