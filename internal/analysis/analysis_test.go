package analysis_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"filmlog/internal/analysis"
	"filmlog/internal/logging"
	"filmlog/internal/services"
	"filmlog/internal/store"
	"filmlog/internal/testsupport"
)

var clock = time.Date(2024, 2, 15, 12, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) (*analysis.Engine, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	engine := analysis.New(cfg, st, logging.NewNop(), analysis.WithClock(func() time.Time { return clock }))
	return engine, st
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func seedAlice(t *testing.T, st *store.Store) {
	t.Helper()
	testsupport.SeedProfile(t, st, "alice",
		testsupport.SeedFilm{Slug: "alien", Title: "Alien", Year: 1979, Rating: 5, Liked: true, WatchedDate: "2024-01-05", Review: "Perfect.", ReviewDate: "2024-01-06"},
		testsupport.SeedFilm{Slug: "heat", Title: "Heat", Year: 1995, Rating: 3, WatchedDate: "2024-01-20"},
		testsupport.SeedFilm{Slug: "tenet", Title: "Tenet", Year: 2020, WatchedDate: "2024-02-02", Rewatch: true},
		testsupport.SeedFilm{Slug: "jaws", Title: "Jaws", Year: 1975, Rating: 4, Liked: true, WatchedDate: "2024-02-10"},
	)
}

func seedBob(t *testing.T, st *store.Store) {
	t.Helper()
	testsupport.SeedProfile(t, st, "bob",
		testsupport.SeedFilm{Slug: "alien", Title: "Alien", Year: 1979, Rating: 4, WatchedDate: "2024-02-11", Review: "Classic.", ReviewDate: "2024-02-12"},
		testsupport.SeedFilm{Slug: "heat", Title: "Heat", Year: 1995, Rating: 4, WatchedDate: "2023-12-01"},
	)
}

func TestAnalyzeUnknownProfile(t *testing.T) {
	engine, _ := newEngine(t)
	_, err := engine.Analyze(context.Background(), "nobody")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAnalyzeRequiresCompletedSync(t *testing.T) {
	engine, st := newEngine(t)
	if _, err := st.EnsureProfile(context.Background(), "pending"); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	_, err := engine.Analyze(context.Background(), "pending")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found before first sync, got %v", err)
	}
}

func TestAnalyzeSnapshot(t *testing.T) {
	engine, st := newEngine(t)
	seedAlice(t, st)

	snap, err := engine.Analyze(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if snap.Profile.Username != "alice" || snap.Profile.TotalFilms != 4 || snap.Profile.RatedFilms != 3 {
		t.Fatalf("unexpected profile summary: %+v", snap.Profile)
	}
	if snap.Profile.LastSyncedAt.IsZero() {
		t.Fatal("expected last sync time")
	}

	sum := 0
	for _, n := range snap.RatingDistribution {
		sum += n
	}
	if sum != snap.Profile.RatedFilms {
		t.Fatalf("distribution sums to %d, want %d", sum, snap.Profile.RatedFilms)
	}
	for _, key := range []string{"5.0", "4.0", "3.0"} {
		if snap.RatingDistribution[key] != 1 {
			t.Fatalf("expected one rating at %s, got %v", key, snap.RatingDistribution)
		}
	}
	if _, ok := snap.RatingDistribution["0.5"]; ok {
		t.Fatal("empty buckets should be omitted")
	}

	if len(snap.Monthly) != 2 {
		t.Fatalf("expected two months, got %+v", snap.Monthly)
	}
	jan, feb := snap.Monthly[0], snap.Monthly[1]
	if jan.Month != "2024-01" || jan.Watched != 2 || jan.Rated != 2 || jan.Reviews != 1 {
		t.Fatalf("unexpected january bucket: %+v", jan)
	}
	if jan.MeanRating == nil || !near(*jan.MeanRating, 4) {
		t.Fatalf("unexpected january mean: %v", jan.MeanRating)
	}
	if feb.Month != "2024-02" || feb.Watched != 2 || feb.Rated != 1 || feb.Reviews != 0 {
		t.Fatalf("unexpected february bucket: %+v", feb)
	}

	if !near(snap.AverageRating, 4) {
		t.Fatalf("average rating = %v, want 4", snap.AverageRating)
	}

	m := snap.Metrics
	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"median", m.Median, 4},
		{"variance", m.Variance, 1},
		{"stddev", m.StdDev, 1},
		{"skewness", m.Skewness, 0},
		{"kurtosis", m.Kurtosis, -1.5},
		{"five star pct", m.FiveStarPct, 33.33},
		{"four plus pct", m.FourPlusPct, 66.67},
		{"three minus pct", m.ThreeMinusPct, 33.33},
		{"like rate", m.LikeRate, 50},
		{"review rate", m.ReviewRate, 33.33},
		{"average year", m.AverageYear, 1992.25},
	}
	for _, c := range checks {
		if !near(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if m.OldestYear != 1975 || m.NewestYear != 2020 || m.RewatchCount != 1 || m.LikedFilms != 2 || m.TotalReviews != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if m.RatingStyle != analysis.StyleGenerous {
		t.Fatalf("rating style = %s, want generous", m.RatingStyle)
	}

	if len(snap.Decades) != 3 {
		t.Fatalf("expected three decades, got %+v", snap.Decades)
	}
	seventies := snap.Decades[0]
	if seventies.Decade != 1970 || seventies.Films != 2 || seventies.MeanRating == nil || !near(*seventies.MeanRating, 4.5) {
		t.Fatalf("unexpected 1970s bucket: %+v", seventies)
	}
	if last := snap.Decades[2]; last.Decade != 2020 || last.MeanRating != nil {
		t.Fatalf("unrated decade should have no mean: %+v", last)
	}

	if len(snap.TopFilms) != 3 || snap.TopFilms[0].Title != "Alien" {
		t.Fatalf("unexpected top films: %+v", snap.TopFilms)
	}

	// Ratings 5, 3, 4 tie on frequency; the lowest wins.
	if m.MostCommonRating == nil || *m.MostCommonRating != 3 || !near(m.ExtremesPct, 33.33) {
		t.Fatalf("unexpected rating patterns: common=%v extremes=%v", m.MostCommonRating, m.ExtremesPct)
	}
	if m.DiaryEntries != 4 || m.ViewingSpanDays != 36 || !near(m.FilmsPerMonth, 3.33) {
		t.Fatalf("unexpected viewing pace: %+v", m)
	}
	if m.FavoriteWeekday != "Friday" || m.WeekdayCounts["Saturday"] != 2 || m.BingeDays != 0 || m.MaxFilmsInDay != 1 {
		t.Fatalf("unexpected weekday patterns: %+v", m)
	}
	if len(snap.BottomFilms) != 0 || len(snap.Watchlist) != 0 || len(snap.Lists) != 0 {
		t.Fatalf("expected no bottom films, watchlist, or lists: %+v", snap)
	}
}

func TestAnalyzeViewingPatterns(t *testing.T) {
	engine, st := newEngine(t)
	testsupport.SeedProfile(t, st, "binger",
		testsupport.SeedFilm{Slug: "cats", Title: "Cats", Year: 2019, Rating: 1, WatchedDate: "2024-03-01"},
		testsupport.SeedFilm{Slug: "morbius", Title: "Morbius", Year: 2022, Rating: 2, WatchedDate: "2024-03-01"},
		testsupport.SeedFilm{Slug: "alien", Title: "Alien", Year: 1979, Rating: 4.5, WatchedDate: "2024-03-01"},
		testsupport.SeedFilm{Slug: "madame-web", Title: "Madame Web", Year: 2024, Rating: 2, WatchedDate: "2024-03-03"},
	)

	snap, err := engine.Analyze(context.Background(), "binger")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	m := snap.Metrics
	if m.MostCommonRating == nil || *m.MostCommonRating != 2 || !near(m.ExtremesPct, 50) {
		t.Fatalf("unexpected rating patterns: common=%v extremes=%v", m.MostCommonRating, m.ExtremesPct)
	}
	if m.BingeDays != 1 || m.MaxFilmsInDay != 3 || m.ViewingSpanDays != 2 || !near(m.FilmsPerMonth, 60) {
		t.Fatalf("unexpected viewing patterns: %+v", m)
	}
	if m.FavoriteWeekday != "Friday" || m.WeekdayCounts["Sunday"] != 1 {
		t.Fatalf("unexpected weekday spread: %v (%s)", m.WeekdayCounts, m.FavoriteWeekday)
	}
	var titles []string
	for _, f := range snap.BottomFilms {
		titles = append(titles, f.Title)
	}
	if len(titles) != 3 || titles[0] != "Cats" || titles[1] != "Madame Web" || titles[2] != "Morbius" {
		t.Fatalf("unexpected bottom films: %v", titles)
	}
}

func TestAnalyzeIgnoresUnfinishedSync(t *testing.T) {
	engine, st := newEngine(t)
	seedAlice(t, st)
	ctx := context.Background()

	rated := 2.5
	partial := store.SyncBatch{
		Username: "alice",
		SyncID:   "run-2",
		Films:    []store.Film{{Key: "dune", Title: "Dune", Year: 2021}},
		Ratings:  []store.Rating{{FilmKey: "dune", Rating: &rated, WatchedDate: "2024-02-12"}},
	}
	if err := st.ApplySync(ctx, partial, false); err != nil {
		t.Fatalf("ApplySync: %v", err)
	}

	snap, err := engine.Analyze(ctx, "alice")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	sum := 0
	for _, n := range snap.RatingDistribution {
		sum += n
	}
	if sum != 3 || snap.Profile.RatedFilms != 3 || snap.Metrics.RatedFilms != 3 {
		t.Fatalf("snapshot disagrees with itself mid-sync: dist=%d profile=%d metrics=%d",
			sum, snap.Profile.RatedFilms, snap.Metrics.RatedFilms)
	}

	last := store.SyncBatch{
		Username:  "alice",
		SyncID:    "run-2",
		Films:     []store.Film{{Key: "past-lives", Title: "Past Lives", Year: 2023}},
		Watchlist: []store.WatchlistItem{{FilmKey: "past-lives", Position: 1}},
		Lists:     []store.FilmList{{Slug: "comfort", Title: "Comfort", FilmCount: 3}},
	}
	if err := st.ApplySync(ctx, last, true); err != nil {
		t.Fatalf("ApplySync final: %v", err)
	}
	snap, err = engine.Analyze(ctx, "alice")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if snap.Profile.RatedFilms != 4 || snap.Metrics.RatedFilms != 4 || snap.RatingDistribution["2.5"] != 1 {
		t.Fatalf("expected committed sync to be visible: %+v", snap.Profile)
	}
	if snap.Profile.WatchlistCount != 1 || len(snap.Watchlist) != 1 || snap.Watchlist[0].Title != "Past Lives" {
		t.Fatalf("unexpected watchlist: %+v", snap.Watchlist)
	}
	if snap.Profile.ListCount != 1 || len(snap.Lists) != 1 || snap.Lists[0].Title != "Comfort" {
		t.Fatalf("unexpected lists: %+v", snap.Lists)
	}
}

func TestAnalyzeRatingStyles(t *testing.T) {
	engine, st := newEngine(t)
	films := func(ratings ...float64) []testsupport.SeedFilm {
		out := make([]testsupport.SeedFilm, len(ratings))
		for i, r := range ratings {
			slug := string(rune('a'+i)) + "-film"
			out[i] = testsupport.SeedFilm{Slug: slug, Title: slug, Year: 2000 + i, Rating: r, WatchedDate: "2024-01-01"}
		}
		return out
	}
	cases := []struct {
		username string
		ratings  []float64
		want     string
	}{
		{"harsh", []float64{1, 2, 3}, analysis.StyleCritical},
		{"middle", []float64{3, 3, 4}, analysis.StyleBalanced},
		{"kind", []float64{4.5, 5, 3}, analysis.StyleGenerous},
		{"silent", nil, analysis.StyleUnrated},
	}
	for _, tc := range cases {
		t.Run(tc.username, func(t *testing.T) {
			seed := films(tc.ratings...)
			if tc.ratings == nil {
				seed = []testsupport.SeedFilm{{Slug: "x-film", Title: "X", Year: 2001}}
			}
			testsupport.SeedProfile(t, st, tc.username, seed...)
			snap, err := engine.Analyze(context.Background(), tc.username)
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if snap.Metrics.RatingStyle != tc.want {
				t.Fatalf("style = %s, want %s", snap.Metrics.RatingStyle, tc.want)
			}
			if tc.ratings == nil && (snap.AverageRating != 0 || len(snap.RatingDistribution) != 0) {
				t.Fatalf("unrated profile should have empty stats: %+v", snap)
			}
		})
	}
}

func TestSystemSnapshot(t *testing.T) {
	engine, st := newEngine(t)
	seedAlice(t, st)
	seedBob(t, st)
	if _, err := st.CreateJob(context.Background(), "alice", "job-1"); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	snap, err := engine.System(context.Background())
	if err != nil {
		t.Fatalf("System: %v", err)
	}
	if snap.TotalProfiles != 2 || snap.SyncedProfiles != 2 || snap.TotalReviews != 2 {
		t.Fatalf("unexpected totals: %+v", snap)
	}
	if snap.UniqueFilms != 4 || snap.UniqueFilms > 4+2 {
		t.Fatalf("unique films = %d, want 4", snap.UniqueFilms)
	}
	if snap.GlobalDistribution["4.0"] != 3 || snap.GlobalDistribution["5.0"] != 1 || snap.GlobalDistribution["3.0"] != 1 {
		t.Fatalf("unexpected global distribution: %v", snap.GlobalDistribution)
	}
	if !near(snap.GlobalAverage, 4) {
		t.Fatalf("global average = %v, want 4", snap.GlobalAverage)
	}
	if len(snap.TopRated) != 2 || snap.TopRated[0].Title != "Alien" || !near(snap.TopRated[0].MeanRating, 4.5) {
		t.Fatalf("unexpected top rated: %+v", snap.TopRated)
	}
	if snap.ActiveJobs != 1 {
		t.Fatalf("active jobs = %d, want 1", snap.ActiveJobs)
	}

	entries := snap.Trends.Entries
	if entries.Current != 3 || entries.Previous != 2 || !near(entries.Change, 50) || !entries.Positive {
		t.Fatalf("unexpected entry trend: %+v", entries)
	}
	reviews := snap.Trends.Reviews
	if reviews.Current != 1 || reviews.Previous != 1 || reviews.Change != 0 {
		t.Fatalf("unexpected review trend: %+v", reviews)
	}

	if len(snap.Monthly) != 3 || snap.Monthly[0].Month != "2023-12" || snap.Monthly[2].Month != "2024-02" {
		t.Fatalf("unexpected monthly activity: %+v", snap.Monthly)
	}
	if feb := snap.Monthly[2]; feb.Entries != 3 || feb.MeanRating == nil || !near(*feb.MeanRating, 4) {
		t.Fatalf("unexpected february activity: %+v", feb)
	}
}

func TestSystemSnapshotEmptyStore(t *testing.T) {
	engine, _ := newEngine(t)
	snap, err := engine.System(context.Background())
	if err != nil {
		t.Fatalf("System: %v", err)
	}
	if snap.TotalProfiles != 0 || snap.GlobalAverage != 0 || len(snap.GlobalDistribution) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
	if snap.Trends.Entries.Change != 0 {
		t.Fatalf("expected no change on empty store, got %+v", snap.Trends.Entries)
	}
}

func TestCompare(t *testing.T) {
	engine, st := newEngine(t)
	seedAlice(t, st)
	seedBob(t, st)
	testsupport.SeedProfile(t, st, "carol",
		testsupport.SeedFilm{Slug: "alien", Title: "Alien", Year: 1979, Rating: 1},
		testsupport.SeedFilm{Slug: "heat", Title: "Heat", Year: 1995, Rating: 4},
		testsupport.SeedFilm{Slug: "tenet", Title: "Tenet", Year: 2020, Rating: 3},
	)

	ab, err := engine.Compare(context.Background(), "alice", "bob")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if ab.CommonFilms != 2 || ab.RatedInCommon != 2 || ab.BothLoved != 1 || ab.StrongDisagreements != 0 {
		t.Fatalf("unexpected alice/bob comparison: %+v", ab)
	}
	if !near(ab.MeanAbsDifference, 1) || !near(ab.AgreementScore, 80) {
		t.Fatalf("unexpected alice/bob score: %+v", ab)
	}

	ac, err := engine.Compare(context.Background(), "alice", "carol")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if ac.CommonFilms != 3 || ac.RatedInCommon != 2 || ac.StrongDisagreements != 1 {
		t.Fatalf("unexpected alice/carol comparison: %+v", ac)
	}
	if !near(ac.AgreementScore, 50) {
		t.Fatalf("agreement = %v, want 50", ac.AgreementScore)
	}
	for _, film := range ac.Films {
		if film.Title == "Tenet" && film.Difference != nil {
			t.Fatalf("unrated shared film should have no difference: %+v", film)
		}
	}
}

func TestCompareErrors(t *testing.T) {
	engine, st := newEngine(t)
	seedAlice(t, st)
	testsupport.SeedProfile(t, st, "stranger",
		testsupport.SeedFilm{Slug: "brazil", Title: "Brazil", Year: 1985, Rating: 2},
	)

	if _, err := engine.Compare(context.Background(), "alice", "ALICE"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := engine.Compare(context.Background(), "alice", "ghost"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	none, err := engine.Compare(context.Background(), "alice", "stranger")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if none.CommonFilms != 0 || none.AgreementScore != 0 {
		t.Fatalf("expected no overlap, got %+v", none)
	}
}
