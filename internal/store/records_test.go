package store_test

import (
	"context"
	"testing"

	"filmlog/internal/store"
	"filmlog/internal/testsupport"
)

func rating(v float64) *float64 { return &v }

func TestUpsertFilmIsIdempotentAndKeepsDetail(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	full := store.Film{Key: "alien", Title: "Alien", Year: 1979, ExternalID: "51", PosterURL: "https://img.example/alien.jpg"}
	for i := 0; i < 2; i++ {
		if err := st.UpsertFilm(ctx, full); err != nil {
			t.Fatalf("UpsertFilm: %v", err)
		}
	}
	if err := st.UpsertFilm(ctx, store.Film{Key: "alien", Title: "Alien"}); err != nil {
		t.Fatalf("UpsertFilm sparse: %v", err)
	}

	got, err := st.GetFilm(ctx, "alien")
	if err != nil {
		t.Fatalf("GetFilm: %v", err)
	}
	if *got != (store.Film{Key: "alien", Title: "Alien", Year: 1979, ExternalID: "51", PosterURL: "https://img.example/alien.jpg"}) {
		t.Fatalf("expected sparse upsert to keep detail, got %+v", got)
	}
	totals, err := st.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals.CatalogFilms != 1 {
		t.Fatalf("expected one catalog row, got %d", totals.CatalogFilms)
	}
	if missing, err := st.GetFilm(ctx, "nope"); err != nil || missing != nil {
		t.Fatalf("expected nil for missing film, got %v %v", missing, err)
	}
}

func TestUpsertRatingOverwritesRow(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if _, err := st.EnsureProfile(ctx, "alice"); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if err := st.UpsertFilm(ctx, store.Film{Key: "heat-1995", Title: "Heat", Year: 1995}); err != nil {
		t.Fatalf("UpsertFilm: %v", err)
	}

	first := store.Rating{Username: "alice", FilmKey: "heat-1995", Rating: rating(3), WatchedDate: "2024-01-01"}
	second := store.Rating{Username: "alice", FilmKey: "heat-1995", Rating: rating(4.5), Liked: true, WatchedDate: "2024-03-01", Rewatch: true}
	for _, r := range []store.Rating{first, second, second} {
		if err := st.UpsertRating(ctx, r); err != nil {
			t.Fatalf("UpsertRating: %v", err)
		}
	}

	entries, err := st.Entries(ctx, "alice")
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one row per (profile, film), got %d", len(entries))
	}
	e := entries[0]
	if *e.Rating != 4.5 || !e.Liked || !e.Rewatch || e.WatchedDate != "2024-03-01" || e.Title != "Heat" {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestUpsertRatingRejectsOutOfRange(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.SeedProfile(t, st, "alice", testsupport.SeedFilm{Slug: "alien", Title: "Alien", Year: 1979})

	for _, v := range []float64{0, 5.5, -1} {
		err := st.UpsertRating(ctx, store.Rating{Username: "alice", FilmKey: "alien", Rating: rating(v)})
		if err == nil {
			t.Fatalf("expected rating %.1f to be rejected", v)
		}
	}
}

func TestUpsertRatingRequiresProfile(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if err := st.UpsertFilm(ctx, store.Film{Key: "alien", Title: "Alien"}); err != nil {
		t.Fatalf("UpsertFilm: %v", err)
	}
	if err := st.UpsertRating(ctx, store.Rating{Username: "ghost", FilmKey: "alien"}); err == nil {
		t.Fatal("expected foreign key failure for unknown profile")
	}
}

func TestUpsertReview(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.SeedProfile(t, st, "alice", testsupport.SeedFilm{Slug: "alien", Title: "Alien", Year: 1979})

	for _, body := range []string{"Draft.", "Perfect."} {
		if err := st.UpsertReview(ctx, store.Review{Username: "alice", FilmKey: "alien", Body: body, ReviewDate: "2024-01-06", LikeCount: 3}); err != nil {
			t.Fatalf("UpsertReview: %v", err)
		}
	}
	reviews, err := st.Reviews(ctx, "alice")
	if err != nil {
		t.Fatalf("Reviews: %v", err)
	}
	if len(reviews) != 1 || reviews[0].Body != "Perfect." || reviews[0].LikeCount != 3 {
		t.Fatalf("unexpected reviews %+v", reviews)
	}
}
