package analysis

import (
	"context"
	"slices"
	"time"

	"filmlog/internal/logging"
	"filmlog/internal/services"
	"filmlog/internal/store"
)

// Analyze builds the Snapshot for username. The profile counters and every
// row behind the snapshot come from one read transaction.
func (e *Engine) Analyze(ctx context.Context, username string) (*Snapshot, error) {
	view, err := e.store.ProfileView(ctx, username, e.cfg.Analysis.TopFilmsLimit)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "analysis", "analyze", "read profile", err)
	}
	var found *store.Profile
	if view != nil {
		found = &view.Profile
	}
	profile, err := requireSynced("analyze", username, found)
	if err != nil {
		return nil, err
	}
	entries, reviews := view.Entries, view.Reviews

	metrics := computeMetrics(entries, len(reviews))
	snap := &Snapshot{
		Profile: ProfileSummary{
			Username:       profile.Username,
			DisplayName:    profile.DisplayName,
			TotalFilms:     profile.TotalFilms,
			RatedFilms:     profile.RatedFilms,
			LikedFilms:     profile.LikedFilms,
			TotalReviews:   profile.TotalReviews,
			AverageRating:  profile.AverageRating,
			WatchlistCount: profile.WatchlistCount,
			ListCount:      profile.ListCount,
		},
		RatingDistribution: distribution(entries),
		Monthly:            monthly(entries, reviews),
		AverageRating:      metrics.Mean,
		Metrics:            metrics,
		Decades:            decades(entries),
		TopFilms:           view.TopFilms,
		BottomFilms:        bottomFilms(entries, e.cfg.Analysis.TopFilmsLimit),
		Watchlist:          view.Watchlist,
		Lists:              view.Lists,
		GeneratedAt:        e.now().UTC(),
	}
	if profile.LastSyncedAt != nil {
		snap.Profile.LastSyncedAt = *profile.LastSyncedAt
	}

	e.logger.Debug("profile analyzed",
		logging.String(logging.FieldUsername, profile.Username),
		logging.Int("entries", len(entries)),
		logging.Int("reviews", len(reviews)),
		logging.Int("watchlist", len(view.Watchlist)),
		logging.Float64("average_rating", snap.AverageRating),
	)
	return snap, nil
}

func ratings(entries []store.Entry) []float64 {
	values := make([]float64, 0, len(entries))
	for _, entry := range entries {
		if entry.Rating != nil {
			values = append(values, *entry.Rating)
		}
	}
	return values
}

func distribution(entries []store.Entry) map[string]int {
	dist := make(map[string]int)
	for _, entry := range entries {
		if entry.Rating != nil {
			dist[ratingKey(*entry.Rating)]++
		}
	}
	return dist
}

// monthKey returns the YYYY-MM prefix of a YYYY-MM-DD date, or "" when the
// date is missing or malformed.
func monthKey(date string) string {
	if len(date) < 10 {
		return ""
	}
	if _, err := time.Parse("2006-01-02", date[:10]); err != nil {
		return ""
	}
	return date[:7]
}

func monthly(entries []store.Entry, reviews []store.Review) []MonthBucket {
	type acc struct {
		bucket MonthBucket
		sum    float64
	}
	months := make(map[string]*acc)
	get := func(key string) *acc {
		a, ok := months[key]
		if !ok {
			a = &acc{bucket: MonthBucket{Month: key}}
			months[key] = a
		}
		return a
	}

	for _, entry := range entries {
		key := monthKey(entry.WatchedDate)
		if key == "" {
			continue
		}
		a := get(key)
		a.bucket.Watched++
		if entry.Rating != nil {
			a.bucket.Rated++
			a.sum += *entry.Rating
		}
	}
	for _, review := range reviews {
		date := review.ReviewDate
		if date == "" {
			date = review.WatchedDate
		}
		key := monthKey(date)
		if key == "" {
			continue
		}
		get(key).bucket.Reviews++
	}

	out := make([]MonthBucket, 0, len(months))
	for _, a := range months {
		if a.bucket.Rated > 0 {
			a.bucket.MeanRating = ptr(round2(a.sum / float64(a.bucket.Rated)))
		}
		out = append(out, a.bucket)
	}
	slices.SortFunc(out, func(x, y MonthBucket) int {
		switch {
		case x.Month < y.Month:
			return -1
		case x.Month > y.Month:
			return 1
		}
		return 0
	})
	return out
}

func decades(entries []store.Entry) []DecadeBucket {
	type acc struct {
		bucket DecadeBucket
		sum    float64
	}
	byDecade := make(map[int]*acc)
	for _, entry := range entries {
		if entry.Year <= 0 {
			continue
		}
		decade := entry.Year / 10 * 10
		a, ok := byDecade[decade]
		if !ok {
			a = &acc{bucket: DecadeBucket{Decade: decade}}
			byDecade[decade] = a
		}
		a.bucket.Films++
		if entry.Rating != nil {
			a.bucket.Rated++
			a.sum += *entry.Rating
		}
	}
	out := make([]DecadeBucket, 0, len(byDecade))
	for _, a := range byDecade {
		if a.bucket.Rated > 0 {
			a.bucket.MeanRating = ptr(round2(a.sum / float64(a.bucket.Rated)))
		}
		out = append(out, a.bucket)
	}
	slices.SortFunc(out, func(x, y DecadeBucket) int { return x.Decade - y.Decade })
	return out
}

func computeMetrics(entries []store.Entry, reviewCount int) Metrics {
	values := ratings(entries)
	m := Metrics{
		TotalFilms:   len(entries),
		RatedFilms:   len(values),
		TotalReviews: reviewCount,
	}

	var yearSum, yearCount int
	for _, entry := range entries {
		if entry.Liked {
			m.LikedFilms++
		}
		if entry.Rewatch {
			m.RewatchCount++
		}
		if entry.Year > 0 {
			if m.OldestYear == 0 || entry.Year < m.OldestYear {
				m.OldestYear = entry.Year
			}
			if entry.Year > m.NewestYear {
				m.NewestYear = entry.Year
			}
			yearSum += entry.Year
			yearCount++
		}
	}
	if yearCount > 0 {
		m.AverageYear = round2(float64(yearSum) / float64(yearCount))
	}
	m.LikeRate = round2(percent(m.LikedFilms, m.TotalFilms))
	m.ReviewRate = round2(percent(reviewCount, m.RatedFilms))
	applyViewingPatterns(&m, entries)
	applyRatingPatterns(&m, values)

	if len(values) == 0 {
		m.RatingStyle = StyleUnrated
		return m
	}

	var five, fourPlus, threeMinus, harsh, generous int
	for _, v := range values {
		if v == 5 {
			five++
		}
		if v >= 4 {
			fourPlus++
			generous++
		}
		if v <= 3 {
			threeMinus++
		}
		if v <= 2 {
			harsh++
		}
	}
	n := len(values)
	variance, skew, kurt := moments(values)
	m.Mean = round2(mean(values))
	m.Median = median(values)
	m.Variance = round2(variance)
	m.StdDev = round2(sqrt(variance))
	m.Skewness = round2(skew)
	m.Kurtosis = round2(kurt)
	m.FiveStarPct = round2(percent(five, n))
	m.FourPlusPct = round2(percent(fourPlus, n))
	m.ThreeMinusPct = round2(percent(threeMinus, n))
	m.RatingStyle = ratingStyle(harsh, generous, n)
	return m
}

func ratingStyle(harsh, generous, rated int) string {
	if rated == 0 {
		return StyleUnrated
	}
	switch {
	case float64(harsh)/float64(rated) > 0.25:
		return StyleCritical
	case float64(generous)/float64(rated) > 0.4:
		return StyleGenerous
	default:
		return StyleBalanced
	}
}
