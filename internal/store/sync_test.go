package store_test

import (
	"context"
	"testing"

	"filmlog/internal/store"
	"filmlog/internal/testsupport"
)

func TestApplySyncFinalBatchStampsProfile(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if _, err := st.EnsureProfile(ctx, "alice"); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}

	first := store.SyncBatch{
		Username: "alice",
		SyncID:   "run-1",
		Films:    []store.Film{{Key: "alien", Title: "Alien", Year: 1979}},
		Ratings:  []store.Rating{{FilmKey: "alien", Rating: rating(5), Liked: true}},
	}
	if err := st.ApplySync(ctx, first, false); err != nil {
		t.Fatalf("ApplySync: %v", err)
	}
	profile, _ := st.GetProfile(ctx, "alice")
	if profile.Synced() || profile.TotalFilms != 0 {
		t.Fatalf("expected intermediate batch not to touch counters, got %+v", profile)
	}

	last := store.SyncBatch{
		Username: "alice",
		SyncID:   "run-1",
		Films:    []store.Film{{Key: "tenet", Title: "Tenet", Year: 2020}},
		Ratings:  []store.Rating{{FilmKey: "tenet"}},
		Reviews:  []store.Review{{FilmKey: "alien", Body: "Perfect."}},
		Prune:    true,
	}
	if err := st.ApplySync(ctx, last, true); err != nil {
		t.Fatalf("ApplySync final: %v", err)
	}
	profile, _ = st.GetProfile(ctx, "alice")
	if !profile.Synced() {
		t.Fatal("expected final batch to stamp last_synced_at")
	}
	if profile.TotalFilms != 2 || profile.RatedFilms != 1 || profile.LikedFilms != 1 || profile.TotalReviews != 1 || profile.AverageRating != 5 {
		t.Fatalf("unexpected counters %+v", profile)
	}
}

func TestApplySyncPrunesOnlyWhenAsked(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.SeedProfile(t, st, "alice",
		testsupport.SeedFilm{Slug: "alien", Title: "Alien", Year: 1979, Rating: 4},
		testsupport.SeedFilm{Slug: "heat-1995", Title: "Heat", Year: 1995, Review: "Long."},
	)

	partial := store.SyncBatch{
		Username: "alice",
		SyncID:   "run-2",
		Films:    []store.Film{{Key: "alien", Title: "Alien", Year: 1979}},
		Ratings:  []store.Rating{{FilmKey: "alien", Rating: rating(4.5)}},
	}
	if err := st.ApplySync(ctx, partial, true); err != nil {
		t.Fatalf("ApplySync: %v", err)
	}
	if entries, _ := st.Entries(ctx, "alice"); len(entries) != 2 {
		t.Fatalf("expected unpruned run to keep earlier rows, got %d", len(entries))
	}

	partial.SyncID = "run-3"
	partial.Prune = true
	if err := st.ApplySync(ctx, partial, true); err != nil {
		t.Fatalf("ApplySync prune: %v", err)
	}
	entries, _ := st.Entries(ctx, "alice")
	if len(entries) != 1 || entries[0].FilmKey != "alien" {
		t.Fatalf("expected only alien after prune, got %+v", entries)
	}
	if reviews, _ := st.Reviews(ctx, "alice"); len(reviews) != 0 {
		t.Fatalf("expected stale review pruned, got %+v", reviews)
	}
	if film, _ := st.GetFilm(ctx, "heat-1995"); film == nil {
		t.Fatal("expected catalog film to survive prune")
	}
}

func TestApplySyncRollsBackInvalidBatch(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if _, err := st.EnsureProfile(ctx, "alice"); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}

	bad := store.SyncBatch{
		Username: "alice",
		SyncID:   "run-1",
		Films:    []store.Film{{Key: "alien", Title: "Alien"}},
		Ratings:  []store.Rating{{FilmKey: "alien", Rating: rating(7)}},
	}
	if err := st.ApplySync(ctx, bad, true); err == nil {
		t.Fatal("expected invalid rating to fail the batch")
	}
	if film, _ := st.GetFilm(ctx, "alien"); film != nil {
		t.Fatalf("expected film insert rolled back, got %+v", film)
	}
	if profile, _ := st.GetProfile(ctx, "alice"); profile.Synced() {
		t.Fatal("expected failed batch not to stamp the profile")
	}
}

func TestApplySyncRequiresProfile(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	err := st.ApplySync(context.Background(), store.SyncBatch{Username: "ghost", SyncID: "x"}, true)
	if err == nil {
		t.Fatal("expected missing profile to fail")
	}
}

func TestApplySyncStagesUntilFinalBatch(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.SeedProfile(t, st, "alice",
		testsupport.SeedFilm{Slug: "alien", Title: "Alien", Year: 1979, Rating: 4},
		testsupport.SeedFilm{Slug: "heat", Title: "Heat", Year: 1995, Rating: 3},
		testsupport.SeedFilm{Slug: "jaws", Title: "Jaws", Year: 1975, Rating: 5},
	)

	partial := store.SyncBatch{
		Username: "alice",
		SyncID:   "run-2",
		Films:    []store.Film{{Key: "alien", Title: "Alien", Year: 1979}, {Key: "tenet", Title: "Tenet", Year: 2020}},
		Ratings:  []store.Rating{{FilmKey: "alien", Rating: rating(1)}, {FilmKey: "tenet", Rating: rating(2.5)}},
	}
	if err := st.ApplySync(ctx, partial, false); err != nil {
		t.Fatalf("ApplySync: %v", err)
	}

	view, err := st.ProfileView(ctx, "alice", 10)
	if err != nil || view == nil {
		t.Fatalf("ProfileView: %v %v", view, err)
	}
	rated := 0
	for _, e := range view.Entries {
		if e.Rating != nil {
			rated++
		}
		if e.FilmKey == "alien" && *e.Rating != 4 {
			t.Fatalf("expected staged rating hidden, got %v", *e.Rating)
		}
	}
	if len(view.Entries) != 3 || rated != view.Profile.RatedFilms {
		t.Fatalf("rows and counters disagree mid-sync: %d entries, %d rated, counter %d", len(view.Entries), rated, view.Profile.RatedFilms)
	}

	last := store.SyncBatch{
		Username: "alice",
		SyncID:   "run-2",
		Films:    []store.Film{{Key: "heat", Title: "Heat", Year: 1995}},
		Ratings:  []store.Rating{{FilmKey: "heat", Rating: rating(3)}},
		Prune:    true,
	}
	if err := st.ApplySync(ctx, last, true); err != nil {
		t.Fatalf("ApplySync final: %v", err)
	}
	view, err = st.ProfileView(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("ProfileView: %v", err)
	}
	keys := map[string]float64{}
	for _, e := range view.Entries {
		keys[e.FilmKey] = *e.Rating
	}
	if len(keys) != 3 || keys["alien"] != 1 || keys["tenet"] != 2.5 || keys["heat"] != 3 {
		t.Fatalf("unexpected entries after final batch %v", keys)
	}
	if view.Profile.RatedFilms != 3 || view.Profile.TotalFilms != 3 {
		t.Fatalf("unexpected counters %+v", view.Profile)
	}
}

func TestApplySyncDropsAbandonedStage(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if _, err := st.EnsureProfile(ctx, "alice"); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}

	abandoned := store.SyncBatch{
		Username: "alice",
		SyncID:   "run-1",
		Films:    []store.Film{{Key: "alien", Title: "Alien", Year: 1979}},
		Ratings:  []store.Rating{{FilmKey: "alien", Rating: rating(5)}},
	}
	if err := st.ApplySync(ctx, abandoned, false); err != nil {
		t.Fatalf("ApplySync: %v", err)
	}
	next := store.SyncBatch{
		Username: "alice",
		SyncID:   "run-2",
		Films:    []store.Film{{Key: "heat", Title: "Heat", Year: 1995}},
		Ratings:  []store.Rating{{FilmKey: "heat"}},
		Prune:    true,
	}
	if err := st.ApplySync(ctx, next, true); err != nil {
		t.Fatalf("ApplySync final: %v", err)
	}
	entries, _ := st.Entries(ctx, "alice")
	if len(entries) != 1 || entries[0].FilmKey != "heat" {
		t.Fatalf("expected only the completed run's rows, got %+v", entries)
	}
}

func TestApplySyncWatchlistAndLists(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if _, err := st.EnsureProfile(ctx, "alice"); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}

	batch := store.SyncBatch{
		Username: "alice",
		SyncID:   "run-1",
		Films:    []store.Film{{Key: "dune", Title: "Dune", Year: 2021}, {Key: "heat", Title: "Heat", Year: 1995}},
		Watchlist: []store.WatchlistItem{
			{FilmKey: "heat", Position: 2},
			{FilmKey: "dune", Position: 1},
		},
		Lists: []store.FilmList{{Slug: "best-of-1995", Title: "Best of 1995", Description: "Heat first.", FilmCount: 12}},
		Prune: true,
	}
	if err := st.ApplySync(ctx, batch, true); err != nil {
		t.Fatalf("ApplySync: %v", err)
	}
	view, err := st.ProfileView(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("ProfileView: %v", err)
	}
	if view.Profile.WatchlistCount != 2 || view.Profile.ListCount != 1 {
		t.Fatalf("unexpected counters %+v", view.Profile)
	}
	if len(view.Watchlist) != 2 || view.Watchlist[0].FilmKey != "dune" || view.Watchlist[1].Title != "Heat" {
		t.Fatalf("unexpected watchlist %+v", view.Watchlist)
	}
	if len(view.Lists) != 1 || view.Lists[0].FilmCount != 12 || view.Lists[0].Description != "Heat first." {
		t.Fatalf("unexpected lists %+v", view.Lists)
	}

	rerun := store.SyncBatch{
		Username:  "alice",
		SyncID:    "run-2",
		Watchlist: []store.WatchlistItem{{FilmKey: "dune", Position: 1}},
		Prune:     true,
	}
	if err := st.ApplySync(ctx, rerun, true); err != nil {
		t.Fatalf("ApplySync rerun: %v", err)
	}
	watch, _ := st.Watchlist(ctx, "alice")
	lists, _ := st.Lists(ctx, "alice")
	if len(watch) != 1 || len(lists) != 0 {
		t.Fatalf("expected pruned watchlist and lists, got %+v %+v", watch, lists)
	}
	if deleted, err := st.DeleteProfile(ctx, "alice"); err != nil || !deleted {
		t.Fatalf("DeleteProfile: %v %v", deleted, err)
	}
	if watch, _ := st.Watchlist(ctx, "alice"); len(watch) != 0 {
		t.Fatalf("expected watchlist removed with profile, got %+v", watch)
	}
}

func TestProfileViewMissingProfile(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	view, err := st.ProfileView(context.Background(), "ghost", 5)
	if err != nil || view != nil {
		t.Fatalf("expected nil view for unknown profile, got %+v %v", view, err)
	}
}
