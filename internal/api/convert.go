package api

import (
	"time"

	"filmlog/internal/analysis"
	"filmlog/internal/preflight"
	"filmlog/internal/store"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// FromJob converts a job record to its API representation.
func FromJob(job *store.Job) Job {
	if job == nil {
		return Job{}
	}
	return Job{
		JobID:              job.JobID,
		Username:           job.Username,
		State:              string(job.State),
		ProgressPercentage: job.ProgressPercent,
		ProgressMessage:    job.ProgressMessage,
		PagesTotal:         job.PagesTotal,
		PagesFetched:       job.PagesFetched,
		PagesSkipped:       job.PagesSkipped,
		RecordsParsed:      job.RecordsParsed,
		QueuedAt:           formatTime(job.QueuedAt),
		StartedAt:          formatTimePtr(job.StartedAt),
		CompletedAt:        formatTimePtr(job.CompletedAt),
		LastHeartbeat:      formatTimePtr(job.LastHeartbeat),
		ErrorKind:          job.ErrorKind,
		ErrorMessage:       job.ErrorMessage,
	}
}

// FromProfiles converts synced profiles into list items. Profiles that never
// synced are skipped.
func FromProfiles(profiles []store.Profile) []ProfileListItem {
	out := make([]ProfileListItem, 0, len(profiles))
	for _, p := range profiles {
		if !p.Synced() {
			continue
		}
		out = append(out, ProfileListItem{
			Username:      p.Username,
			DisplayName:   p.DisplayName,
			TotalFilms:    p.TotalFilms,
			AverageRating: p.AverageRating,
			LastSyncedAt:  formatTimePtr(p.LastSyncedAt),
		})
	}
	return out
}

// FromFilmScores converts ranked films.
func FromFilmScores(scores []store.FilmScore) []FilmScore {
	out := make([]FilmScore, 0, len(scores))
	for _, s := range scores {
		out = append(out, FilmScore{
			FilmKey:     s.FilmKey,
			Title:       s.Title,
			Year:        s.Year,
			MeanRating:  s.MeanRating,
			RatingCount: s.RatingCount,
		})
	}
	return out
}

// FromSnapshot converts a per-profile analysis.
func FromSnapshot(snap *analysis.Snapshot) Analysis {
	if snap == nil {
		return Analysis{}
	}
	dto := Analysis{
		Profile: ProfileSummary{
			Username:       snap.Profile.Username,
			DisplayName:    snap.Profile.DisplayName,
			TotalFilms:     snap.Profile.TotalFilms,
			RatedFilms:     snap.Profile.RatedFilms,
			LikedFilms:     snap.Profile.LikedFilms,
			TotalReviews:   snap.Profile.TotalReviews,
			AverageRating:  snap.Profile.AverageRating,
			WatchlistCount: snap.Profile.WatchlistCount,
			ListCount:      snap.Profile.ListCount,
			LastSyncedAt:   formatTime(snap.Profile.LastSyncedAt),
		},
		RatingDistribution: snap.RatingDistribution,
		Monthly:            make([]MonthBucket, 0, len(snap.Monthly)),
		AverageRating:      snap.AverageRating,
		Metrics:            Metrics(snap.Metrics),
		Decades:            make([]DecadeBucket, 0, len(snap.Decades)),
		TopFilms:           FromFilmScores(snap.TopFilms),
		BottomFilms:        FromFilmScores(snap.BottomFilms),
		Watchlist:          make([]WatchlistFilm, 0, len(snap.Watchlist)),
		Lists:              make([]FilmList, 0, len(snap.Lists)),
		GeneratedAt:        formatTime(snap.GeneratedAt),
	}
	for _, w := range snap.Watchlist {
		dto.Watchlist = append(dto.Watchlist, WatchlistFilm(w))
	}
	for _, l := range snap.Lists {
		dto.Lists = append(dto.Lists, FilmList{
			Slug:        l.Slug,
			Title:       l.Title,
			Description: l.Description,
			FilmCount:   l.FilmCount,
			URL:         l.URL,
		})
	}
	for _, m := range snap.Monthly {
		dto.Monthly = append(dto.Monthly, MonthBucket(m))
	}
	for _, d := range snap.Decades {
		dto.Decades = append(dto.Decades, DecadeBucket(d))
	}
	return dto
}

// FromSystem converts the catalog-wide snapshot.
func FromSystem(snap *analysis.SystemSnapshot) System {
	if snap == nil {
		return System{}
	}
	dto := System{
		TotalProfiles:      snap.TotalProfiles,
		SyncedProfiles:     snap.SyncedProfiles,
		UniqueFilms:        snap.UniqueFilms,
		TotalReviews:       snap.TotalReviews,
		GlobalDistribution: snap.GlobalDistribution,
		GlobalAverage:      snap.GlobalAverage,
		TopRated:           FromFilmScores(snap.TopRated),
		ActiveJobs:         snap.ActiveJobs,
		Trends: Trends{
			Entries: Trend(snap.Trends.Entries),
			Reviews: Trend(snap.Trends.Reviews),
		},
		Monthly:     make([]MonthActivity, 0, len(snap.Monthly)),
		GeneratedAt: formatTime(snap.GeneratedAt),
	}
	for _, m := range snap.Monthly {
		dto.Monthly = append(dto.Monthly, MonthActivity(m))
	}
	return dto
}

// FromCompatibility converts a two-profile comparison.
func FromCompatibility(c *analysis.Compatibility) Compatibility {
	if c == nil {
		return Compatibility{}
	}
	dto := Compatibility{
		UserA:               c.UserA,
		UserB:               c.UserB,
		CommonFilms:         c.CommonFilms,
		RatedInCommon:       c.RatedInCommon,
		MeanAbsDifference:   c.MeanAbsDifference,
		AgreementScore:      c.AgreementScore,
		BothLoved:           c.BothLoved,
		BothDisliked:        c.BothDisliked,
		StrongDisagreements: c.StrongDisagreements,
		Films:               make([]FilmComparison, 0, len(c.Films)),
	}
	for _, f := range c.Films {
		dto.Films = append(dto.Films, FilmComparison(f))
	}
	return dto
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []Check {
	out := make([]Check, 0, len(results))
	for _, r := range results {
		out = append(out, Check(r))
	}
	return out
}

// JobCounts renders per-state job counts with every state present.
func JobCounts(counts map[store.JobState]int) map[string]int {
	out := make(map[string]int, len(store.AllJobStates()))
	for _, state := range store.AllJobStates() {
		out[string(state)] = counts[state]
	}
	return out
}
