package analysis

import (
	"context"
	"time"

	"filmlog/internal/services"
)

// System builds the catalog-wide SystemSnapshot.
func (e *Engine) System(ctx context.Context) (*SystemSnapshot, error) {
	totals, err := e.store.Totals(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "analysis", "system", "read totals", err)
	}
	hist, err := e.store.RatingHistogram(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "analysis", "system", "read rating histogram", err)
	}
	top, err := e.store.TopRated(ctx, e.cfg.Analysis.TopRatedMinRatings, e.cfg.Analysis.TopRatedLimit)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "analysis", "system", "read top rated", err)
	}
	stats, err := e.store.JobStats(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "analysis", "system", "read job stats", err)
	}
	trends, err := e.trends(ctx)
	if err != nil {
		return nil, err
	}
	monthly, err := e.systemMonthly(ctx)
	if err != nil {
		return nil, err
	}

	snap := &SystemSnapshot{
		TotalProfiles:      totals.Profiles,
		SyncedProfiles:     totals.SyncedProfiles,
		UniqueFilms:        totals.UniqueFilms,
		TotalReviews:       totals.Reviews,
		GlobalDistribution: make(map[string]int, len(hist)),
		GlobalAverage:      round2(totals.GlobalAverage),
		TopRated:           top,
		Trends:             trends,
		Monthly:            monthly,
		GeneratedAt:        e.now().UTC(),
	}
	for value, count := range hist {
		snap.GlobalDistribution[ratingKey(value)] += count
	}
	for state, count := range stats {
		if state.IsActive() {
			snap.ActiveJobs += count
		}
	}
	return snap, nil
}

// trends compares the current calendar month (UTC) with the previous one.
func (e *Engine) trends(ctx context.Context) (Trends, error) {
	now := e.now().UTC()
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	nextMonth := thisMonth.AddDate(0, 1, 0)
	lastMonth := thisMonth.AddDate(0, -1, 0)

	const layout = "2006-01-02"
	current, err := e.store.ActivityBetween(ctx, thisMonth.Format(layout), nextMonth.Format(layout))
	if err != nil {
		return Trends{}, services.Wrap(services.ErrPersistence, "analysis", "system", "read current activity", err)
	}
	previous, err := e.store.ActivityBetween(ctx, lastMonth.Format(layout), thisMonth.Format(layout))
	if err != nil {
		return Trends{}, services.Wrap(services.ErrPersistence, "analysis", "system", "read previous activity", err)
	}
	return Trends{
		Entries: newTrend(current.Entries, previous.Entries),
		Reviews: newTrend(current.Reviews, previous.Reviews),
	}, nil
}

// systemMonthly returns diary activity across every profile for the twelve
// months before the current one plus the current month so far.
func (e *Engine) systemMonthly(ctx context.Context) ([]MonthActivity, error) {
	now := e.now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(-1, 0, 0)
	rows, err := e.store.MonthlyActivity(ctx, from.Format("2006-01-02"))
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "analysis", "system", "read monthly activity", err)
	}
	out := make([]MonthActivity, 0, len(rows))
	for _, row := range rows {
		m := MonthActivity{Month: row.Month, Entries: row.Entries}
		if row.MeanRating != nil {
			m.MeanRating = ptr(round2(*row.MeanRating))
		}
		out = append(out, m)
	}
	return out, nil
}

func newTrend(current, previous int) Trend {
	change := round2(percentChange(current, previous))
	return Trend{Current: current, Previous: previous, Change: change, Positive: change >= 0}
}
