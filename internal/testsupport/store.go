package testsupport

import (
	"context"
	"testing"

	"filmlog/internal/config"
	"filmlog/internal/store"
	"filmlog/internal/textutil"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedFilm describes one logged film written by SeedProfile. A zero Rating
// means watched but unrated.
type SeedFilm struct {
	Slug        string
	Title       string
	Year        int
	Rating      float64
	Liked       bool
	WatchedDate string
	Rewatch     bool
	Review      string
	ReviewDate  string
}

// Key returns the film key SeedProfile stores the film under.
func (f SeedFilm) Key() string {
	return textutil.FilmKey(f.Slug, f.Title, f.Year)
}

// SeedProfile writes a completed sync for username directly through the store.
func SeedProfile(t testing.TB, st *store.Store, username string, films ...SeedFilm) {
	t.Helper()

	ctx := context.Background()
	if _, err := st.EnsureProfile(ctx, username); err != nil {
		t.Fatalf("EnsureProfile(%s): %v", username, err)
	}
	batch := store.SyncBatch{Username: username, SyncID: "seed-" + username, Prune: true}
	for _, f := range films {
		key := f.Key()
		batch.Films = append(batch.Films, store.Film{Key: key, Title: f.Title, Year: f.Year})
		rating := store.Rating{FilmKey: key, Liked: f.Liked, WatchedDate: f.WatchedDate, Rewatch: f.Rewatch}
		if f.Rating > 0 {
			v := f.Rating
			rating.Rating = &v
		}
		batch.Ratings = append(batch.Ratings, rating)
		if f.Review != "" {
			batch.Reviews = append(batch.Reviews, store.Review{
				FilmKey:     key,
				Body:        f.Review,
				Rating:      rating.Rating,
				WatchedDate: f.WatchedDate,
				ReviewDate:  f.ReviewDate,
			})
		}
	}
	if err := st.ApplySync(ctx, batch, true); err != nil {
		t.Fatalf("ApplySync(%s): %v", username, err)
	}
}
