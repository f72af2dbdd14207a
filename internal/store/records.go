package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const upsertFilmSQL = `INSERT INTO films (film_key, title, year, external_id, url, poster_url, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(film_key) DO UPDATE SET
    title = excluded.title,
    year = COALESCE(excluded.year, films.year),
    external_id = COALESCE(excluded.external_id, films.external_id),
    url = COALESCE(excluded.url, films.url),
    poster_url = COALESCE(excluded.poster_url, films.poster_url),
    updated_at = excluded.updated_at`

// recordTable describes a per-profile table and its staged twin. Rows are
// keyed by key within the live table and by key plus sync_id while staged.
type recordTable struct {
	name    string
	columns []string
	key     []string

	upsert      string
	stage       string
	promote     string
	clearStaged string
}

func newRecordTable(name string, key []string, columns ...string) recordTable {
	t := recordTable{name: name, columns: columns, key: key}
	cols := strings.Join(columns, ", ")
	t.upsert = t.upsertInto(name, key)
	t.stage = t.upsertInto("staged_"+name, append(slices.Clone(key), "sync_id"))
	t.promote = `INSERT INTO ` + name + ` (` + cols + `)
SELECT ` + cols + ` FROM staged_` + name + ` WHERE username = ? AND sync_id = ?
ON CONFLICT(` + strings.Join(key, ", ") + `) DO UPDATE SET ` + t.assignments(key)
	t.clearStaged = `DELETE FROM staged_` + name + ` WHERE username = ?`
	return t
}

func (t recordTable) upsertInto(table string, conflict []string) string {
	return `INSERT INTO ` + table + ` (` + strings.Join(t.columns, ", ") + `)
VALUES (` + makePlaceholders(len(t.columns)) + `)
ON CONFLICT(` + strings.Join(conflict, ", ") + `) DO UPDATE SET ` + t.assignments(conflict)
}

func (t recordTable) assignments(conflict []string) string {
	set := make([]string, 0, len(t.columns))
	for _, col := range t.columns {
		if !slices.Contains(conflict, col) {
			set = append(set, col+" = excluded."+col)
		}
	}
	return strings.Join(set, ", ")
}

// write upserts one row into the live table, or into the staged table when
// staged is set.
func (t recordTable) write(ctx context.Context, x execer, staged bool, args ...any) error {
	query := t.upsert
	if staged {
		query = t.stage
	}
	_, err := x.ExecContext(ctx, query, args...)
	return err
}

var (
	ratingsTable = newRecordTable("ratings", []string{"username", "film_key"},
		"username", "film_key", "rating", "liked", "watched_date", "rewatch", "sync_id", "updated_at")
	reviewsTable = newRecordTable("reviews", []string{"username", "film_key"},
		"username", "film_key", "body", "rating", "watched_date", "review_date", "like_count", "sync_id", "updated_at")
	watchlistTable = newRecordTable("watchlist", []string{"username", "film_key"},
		"username", "film_key", "position", "sync_id", "updated_at")
	listsTable = newRecordTable("lists", []string{"username", "slug"},
		"username", "slug", "title", "description", "film_count", "url", "sync_id", "updated_at")

	// recordTables are the per-profile tables a sync replaces.
	recordTables = []recordTable{ratingsTable, reviewsTable, watchlistTable, listsTable}
)

func validateFilm(f Film) error {
	if f.Key == "" {
		return errors.New("film key is empty")
	}
	if f.Title == "" {
		return fmt.Errorf("film %s: title is empty", f.Key)
	}
	return nil
}

func validateRating(r Rating) error {
	if r.Username == "" || r.FilmKey == "" {
		return errors.New("rating requires username and film key")
	}
	if r.Rating != nil && (*r.Rating < 0.5 || *r.Rating > 5.0) {
		return fmt.Errorf("rating %.1f for %s out of range", *r.Rating, r.FilmKey)
	}
	return nil
}

func upsertFilm(ctx context.Context, x execer, f Film, ts string) error {
	if err := validateFilm(f); err != nil {
		return err
	}
	_, err := x.ExecContext(ctx, upsertFilmSQL,
		f.Key, f.Title, nullableInt(f.Year), nullableString(f.ExternalID),
		nullableString(f.URL), nullableString(f.PosterURL), ts, ts)
	if err != nil {
		return fmt.Errorf("upsert film %s: %w", f.Key, err)
	}
	return nil
}

func upsertRating(ctx context.Context, x execer, r Rating, ts string, staged bool) error {
	if err := validateRating(r); err != nil {
		return err
	}
	err := ratingsTable.write(ctx, x, staged,
		r.Username, r.FilmKey, nullableFloat(r.Rating), boolToInt(r.Liked),
		nullableString(r.WatchedDate), boolToInt(r.Rewatch), r.SyncID, ts)
	if err != nil {
		return fmt.Errorf("upsert rating %s/%s: %w", r.Username, r.FilmKey, err)
	}
	return nil
}

func upsertReview(ctx context.Context, x execer, r Review, ts string, staged bool) error {
	if r.Username == "" || r.FilmKey == "" {
		return errors.New("review requires username and film key")
	}
	err := reviewsTable.write(ctx, x, staged,
		r.Username, r.FilmKey, r.Body, nullableFloat(r.Rating),
		nullableString(r.WatchedDate), nullableString(r.ReviewDate), r.LikeCount, r.SyncID, ts)
	if err != nil {
		return fmt.Errorf("upsert review %s/%s: %w", r.Username, r.FilmKey, err)
	}
	return nil
}

func upsertWatchlistItem(ctx context.Context, x execer, w WatchlistItem, ts string, staged bool) error {
	if w.Username == "" || w.FilmKey == "" {
		return errors.New("watchlist item requires username and film key")
	}
	if err := watchlistTable.write(ctx, x, staged, w.Username, w.FilmKey, w.Position, w.SyncID, ts); err != nil {
		return fmt.Errorf("upsert watchlist item %s/%s: %w", w.Username, w.FilmKey, err)
	}
	return nil
}

func upsertFilmList(ctx context.Context, x execer, l FilmList, ts string, staged bool) error {
	if l.Username == "" || l.Slug == "" {
		return errors.New("list requires username and slug")
	}
	if l.Title == "" {
		return fmt.Errorf("list %s: title is empty", l.Slug)
	}
	err := listsTable.write(ctx, x, staged,
		l.Username, l.Slug, l.Title, l.Description, l.FilmCount, nullableString(l.URL), l.SyncID, ts)
	if err != nil {
		return fmt.Errorf("upsert list %s/%s: %w", l.Username, l.Slug, err)
	}
	return nil
}

// UpsertFilm inserts or overwrites a catalog film. Optional fields that are
// empty in f keep their stored values.
func (s *Store) UpsertFilm(ctx context.Context, f Film) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertFilm(ctx, tx, f, s.timestamp())
	})
}

// UpsertRating inserts or overwrites the (username, film) rating row.
func (s *Store) UpsertRating(ctx context.Context, r Rating) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertRating(ctx, tx, r, s.timestamp(), false)
	})
}

// UpsertReview inserts or overwrites the (username, film) review row.
func (s *Store) UpsertReview(ctx context.Context, r Review) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertReview(ctx, tx, r, s.timestamp(), false)
	})
}

// GetFilm returns the catalog film or nil when absent.
func (s *Store) GetFilm(ctx context.Context, key string) (*Film, error) {
	var (
		f                          Film
		year                       sql.NullInt64
		externalID, url, posterURL sql.NullString
	)
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT film_key, title, year, external_id, url, poster_url FROM films WHERE film_key = ?`, key,
	).Scan(&f.Key, &f.Title, &year, &externalID, &url, &posterURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get film: %w", err)
	}
	f.Year = int(year.Int64)
	f.ExternalID = externalID.String
	f.URL = url.String
	f.PosterURL = posterURL.String
	return &f, nil
}
