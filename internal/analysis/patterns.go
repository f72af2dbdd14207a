package analysis

import (
	"slices"
	"strings"
	"time"

	"filmlog/internal/store"
)

// bottomRatingCeiling is the highest rating that still counts as a dislike.
const bottomRatingCeiling = 2.0

// daysPerMonth converts a viewing span into months for the films-per-month
// rate.
const daysPerMonth = 30.0

// applyRatingPatterns fills the fields that describe how values spread.
func applyRatingPatterns(m *Metrics, values []float64) {
	if len(values) == 0 {
		return
	}
	counts := make(map[float64]int)
	var extremes int
	for _, v := range values {
		counts[v]++
		if v <= 1 || v >= 4.5 {
			extremes++
		}
	}
	var (
		best      float64
		bestCount int
	)
	for v, n := range counts {
		// Ties go to the lower rating so the result does not depend on map order.
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}
	m.MostCommonRating = ptr(best)
	m.ExtremesPct = round2(percent(extremes, len(values)))
}

// applyViewingPatterns fills the diary-date fields: span, pace, weekday
// spread, and days with more than one film.
func applyViewingPatterns(m *Metrics, entries []store.Entry) {
	perDay := make(map[string]int)
	var first, last time.Time
	for _, entry := range entries {
		if monthKey(entry.WatchedDate) == "" {
			continue
		}
		day, err := time.Parse("2006-01-02", entry.WatchedDate[:10])
		if err != nil {
			continue
		}
		m.DiaryEntries++
		perDay[entry.WatchedDate[:10]]++
		if m.WeekdayCounts == nil {
			m.WeekdayCounts = make(map[string]int)
		}
		m.WeekdayCounts[day.Weekday().String()]++
		if first.IsZero() || day.Before(first) {
			first = day
		}
		if day.After(last) {
			last = day
		}
	}
	if m.DiaryEntries == 0 {
		return
	}
	m.ViewingSpanDays = int(last.Sub(first).Hours() / 24)
	if m.ViewingSpanDays > 0 {
		m.FilmsPerMonth = round2(float64(m.DiaryEntries) / (float64(m.ViewingSpanDays) / daysPerMonth))
	}
	for _, n := range perDay {
		if n > 1 {
			m.BingeDays++
		}
		m.MaxFilmsInDay = max(m.MaxFilmsInDay, n)
	}
	bestCount := 0
	for day := time.Sunday; day <= time.Saturday; day++ {
		if n := m.WeekdayCounts[day.String()]; n > bestCount {
			m.FavoriteWeekday, bestCount = day.String(), n
		}
	}
}

// bottomFilms returns up to limit rated films at or below the dislike
// ceiling, lowest first.
func bottomFilms(entries []store.Entry, limit int) []store.FilmScore {
	var out []store.FilmScore
	for _, entry := range entries {
		if entry.Rating == nil || *entry.Rating > bottomRatingCeiling {
			continue
		}
		out = append(out, store.FilmScore{
			FilmKey:     entry.FilmKey,
			Title:       entry.Title,
			Year:        entry.Year,
			MeanRating:  *entry.Rating,
			RatingCount: 1,
		})
	}
	slices.SortFunc(out, func(a, b store.FilmScore) int {
		switch {
		case a.MeanRating < b.MeanRating:
			return -1
		case a.MeanRating > b.MeanRating:
			return 1
		}
		return strings.Compare(a.Title, b.Title)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
