package store_test

import (
	"context"
	"testing"

	"filmlog/internal/testsupport"
)

func TestAggregateQueries(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	alien := testsupport.SeedFilm{Slug: "alien", Title: "Alien", Year: 1979}
	heat := testsupport.SeedFilm{Slug: "heat-1995", Title: "Heat", Year: 1995}

	a1, h1 := alien, heat
	a1.Rating, a1.WatchedDate, a1.Review, a1.ReviewDate = 5, "2024-01-05", "Perfect.", "2024-01-06"
	h1.Rating, h1.WatchedDate = 3, "2024-02-10"
	testsupport.SeedProfile(t, st, "alice", a1, h1, testsupport.SeedFilm{Slug: "tenet", Title: "Tenet", Year: 2020})

	a2, h2 := alien, heat
	a2.Rating, a2.WatchedDate = 4, "2024-01-20"
	h2.Rating = 4
	testsupport.SeedProfile(t, st, "bob", a2, h2)

	totals, err := st.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals.Profiles != 2 || totals.SyncedProfiles != 2 || totals.UniqueFilms != 3 || totals.Reviews != 1 || totals.RatedEntries != 4 {
		t.Fatalf("unexpected totals %+v", totals)
	}
	if totals.GlobalAverage != 4 {
		t.Fatalf("expected global average 4, got %v", totals.GlobalAverage)
	}

	hist, err := st.RatingHistogram(ctx)
	if err != nil {
		t.Fatalf("RatingHistogram: %v", err)
	}
	if hist[5] != 1 || hist[4] != 2 || hist[3] != 1 {
		t.Fatalf("unexpected histogram %v", hist)
	}

	top, err := st.TopRated(ctx, 2, 10)
	if err != nil {
		t.Fatalf("TopRated: %v", err)
	}
	if len(top) != 2 || top[0].FilmKey != "alien" || top[0].MeanRating != 4.5 || top[0].RatingCount != 2 {
		t.Fatalf("unexpected top rated %+v", top)
	}
	mine, err := st.TopRatedFor(ctx, "alice", 1)
	if err != nil || len(mine) != 1 || mine[0].FilmKey != "alien" {
		t.Fatalf("TopRatedFor: %+v %v", mine, err)
	}

	activity, err := st.ActivityBetween(ctx, "2024-01-01", "2024-02-01")
	if err != nil {
		t.Fatalf("ActivityBetween: %v", err)
	}
	if activity.Entries != 2 || activity.Reviews != 1 {
		t.Fatalf("unexpected activity %+v", activity)
	}

	monthly, err := st.MonthlyActivity(ctx, "2024-01-01")
	if err != nil {
		t.Fatalf("MonthlyActivity: %v", err)
	}
	if len(monthly) != 2 || monthly[0].Month != "2024-01" || monthly[0].Entries != 2 || *monthly[0].MeanRating != 4.5 {
		t.Fatalf("unexpected monthly activity %+v", monthly)
	}
	if monthly[1].Month != "2024-02" || monthly[1].Entries != 1 || *monthly[1].MeanRating != 3 {
		t.Fatalf("unexpected february activity %+v", monthly[1])
	}
	if recent, _ := st.MonthlyActivity(ctx, "2024-02-01"); len(recent) != 1 {
		t.Fatalf("expected cutoff to drop january, got %+v", recent)
	}

	shared, err := st.SharedEntries(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("SharedEntries: %v", err)
	}
	if len(shared) != 2 || shared[0].FilmKey != "alien" || *shared[0].RatingA != 5 || *shared[0].RatingB != 4 {
		t.Fatalf("unexpected shared entries %+v", shared)
	}
}
