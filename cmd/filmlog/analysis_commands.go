package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"filmlog/internal/api"
)

// ratingKeys lists distribution buckets in display order.
var ratingKeys = []string{"0.5", "1.0", "1.5", "2.0", "2.5", "3.0", "3.5", "4.0", "4.5", "5.0"}

const histogramWidth = 30

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var output *outputFlags
	var months int

	cmd := &cobra.Command{
		Use:   "analyze <username>",
		Short: "Show rating statistics for a synced profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				snap, err := client.Analysis(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return output.emit(cmd, snap, func(out io.Writer, colorize bool) {
					renderAnalysis(out, snap, months, colorize)
				})
			})
		},
	}
	output = addOutputFlags(cmd)
	cmd.Flags().IntVar(&months, "months", 12, "Number of recent months to show")
	return cmd
}

func renderAnalysis(out io.Writer, snap api.Analysis, months int, colorize bool) {
	p := snap.Profile
	title := p.Username
	if p.DisplayName != "" && p.DisplayName != p.Username {
		title = fmt.Sprintf("%s (%s)", p.DisplayName, p.Username)
	}
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}
	m := snap.Metrics
	fmt.Fprintln(out, renderField("Films", fmt.Sprintf("%d logged, %d rated, %d liked", m.TotalFilms, m.RatedFilms, m.LikedFilms)))
	fmt.Fprintln(out, renderField("Reviews", fmt.Sprintf("%d (%.1f%% of rated)", m.TotalReviews, m.ReviewRate)))
	fmt.Fprintln(out, renderField("Average rating", formatRating(snap.AverageRating)))
	fmt.Fprintln(out, renderField("Rating style", m.RatingStyle))
	fmt.Fprintln(out, renderField("Watchlist", fmt.Sprintf("%d films, %d lists", p.WatchlistCount, p.ListCount)))
	fmt.Fprintln(out, renderField("Last synced", p.LastSyncedAt))
	fmt.Fprintln(out)

	if m.RatedFilms > 0 {
		fmt.Fprintln(out, renderTable(tableSpec{
			Title:   "Metrics",
			Headers: []string{"Metric", "Value"},
			Rows: [][]string{
				{"Mean", fmt.Sprintf("%.2f", m.Mean)},
				{"Median", fmt.Sprintf("%.1f", m.Median)},
				{"Std dev", fmt.Sprintf("%.2f", m.StdDev)},
				{"Skewness", fmt.Sprintf("%.2f", m.Skewness)},
				{"Kurtosis", fmt.Sprintf("%.2f", m.Kurtosis)},
				{"5 stars", fmt.Sprintf("%.1f%%", m.FiveStarPct)},
				{"4+ stars", fmt.Sprintf("%.1f%%", m.FourPlusPct)},
				{"3 or less", fmt.Sprintf("%.1f%%", m.ThreeMinusPct)},
				{"Liked", fmt.Sprintf("%.1f%%", m.LikeRate)},
				{"Most common", formatMean(m.MostCommonRating)},
				{"Extremes", fmt.Sprintf("%.1f%%", m.ExtremesPct)},
				{"Rewatches", strconv.Itoa(m.RewatchCount)},
			},
			Aligns: []columnAlignment{alignLeft, alignRight},
		}, colorize))
		fmt.Fprintln(out)
		fmt.Fprint(out, renderHistogram(snap.RatingDistribution))
		fmt.Fprintln(out)
	}

	if m.DiaryEntries > 0 {
		fmt.Fprintln(out, renderTable(tableSpec{
			Title:   "Viewing patterns",
			Headers: []string{"Pattern", "Value"},
			Rows: [][]string{
				{"Diary entries", strconv.Itoa(m.DiaryEntries)},
				{"Span", fmt.Sprintf("%d days", m.ViewingSpanDays)},
				{"Films per month", fmt.Sprintf("%.2f", m.FilmsPerMonth)},
				{"Favorite day", fmt.Sprintf("%s (%d)", m.FavoriteWeekday, m.WeekdayCounts[m.FavoriteWeekday])},
				{"Binge days", strconv.Itoa(m.BingeDays)},
				{"Most in one day", strconv.Itoa(m.MaxFilmsInDay)},
			},
			Aligns: []columnAlignment{alignLeft, alignRight},
		}, colorize))
	}

	if len(snap.Monthly) > 0 {
		recent := snap.Monthly
		if months > 0 && len(recent) > months {
			recent = recent[len(recent)-months:]
		}
		rows := make([][]string, 0, len(recent))
		for _, b := range recent {
			rows = append(rows, []string{b.Month, strconv.Itoa(b.Watched), strconv.Itoa(b.Rated), formatMean(b.MeanRating), strconv.Itoa(b.Reviews)})
		}
		fmt.Fprintln(out, renderTable(tableSpec{
			Title:   "Monthly",
			Headers: []string{"Month", "Watched", "Rated", "Mean", "Reviews"},
			Rows:    rows,
			Aligns:  []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
		}, colorize))
	}

	if len(snap.Decades) > 0 {
		rows := make([][]string, 0, len(snap.Decades))
		for _, d := range snap.Decades {
			rows = append(rows, []string{fmt.Sprintf("%ds", d.Decade), strconv.Itoa(d.Films), formatMean(d.MeanRating)})
		}
		fmt.Fprintln(out, renderTable(tableSpec{
			Title:   "Decades",
			Headers: []string{"Decade", "Films", "Mean"},
			Rows:    rows,
			Aligns:  []columnAlignment{alignLeft, alignRight, alignRight},
		}, colorize))
	}

	if len(snap.TopFilms) > 0 {
		fmt.Fprintln(out, renderFilmScores("Top films", snap.TopFilms, false, colorize))
	}
	if len(snap.BottomFilms) > 0 {
		fmt.Fprintln(out, renderFilmScores("Bottom films", snap.BottomFilms, false, colorize))
	}
	if len(snap.Lists) > 0 {
		rows := make([][]string, 0, len(snap.Lists))
		for _, l := range snap.Lists {
			rows = append(rows, []string{l.Title, strconv.Itoa(l.FilmCount)})
		}
		fmt.Fprintln(out, renderTable(tableSpec{
			Title:   "Lists",
			Headers: []string{"List", "Films"},
			Rows:    rows,
			Aligns:  []columnAlignment{alignLeft, alignRight},
		}, colorize))
	}
}

// renderHistogram draws one bar per half-star bucket.
func renderHistogram(dist map[string]int) string {
	peak := 0
	for _, n := range dist {
		peak = max(peak, n)
	}
	if peak == 0 {
		return ""
	}
	var b strings.Builder
	for _, key := range ratingKeys {
		n := dist[key]
		width := n * histogramWidth / peak
		if n > 0 && width == 0 {
			width = 1
		}
		fmt.Fprintf(&b, "%s%s %-*s %d\n", statusIndent, key, histogramWidth, strings.Repeat("█", width), n)
	}
	return b.String()
}

func formatMean(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func renderFilmScores(title string, scores []api.FilmScore, withCount bool, colorize bool) string {
	headers := []string{"#", "Film", "Year", "Rating"}
	aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignRight}
	if withCount {
		headers = append(headers, "Raters")
		aligns = append(aligns, alignRight)
	}
	rows := make([][]string, 0, len(scores))
	for i, s := range scores {
		year := ""
		if s.Year > 0 {
			year = strconv.Itoa(s.Year)
		}
		row := []string{strconv.Itoa(i + 1), s.Title, year, fmt.Sprintf("%.2f", s.MeanRating)}
		if withCount {
			row = append(row, strconv.Itoa(s.RatingCount))
		}
		rows = append(rows, row)
	}
	return renderTable(tableSpec{Title: title, Headers: headers, Rows: rows, Aligns: aligns}, colorize)
}

func newSystemCommand(ctx *commandContext) *cobra.Command {
	var output *outputFlags

	cmd := &cobra.Command{
		Use:   "system",
		Short: "Show statistics across every stored profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				snap, err := client.System(cmd.Context())
				if err != nil {
					return err
				}
				return output.emit(cmd, snap, func(out io.Writer, colorize bool) {
					renderSystem(out, snap, colorize)
				})
			})
		},
	}
	output = addOutputFlags(cmd)
	return cmd
}

func renderSystem(out io.Writer, snap api.System, colorize bool) {
	for _, line := range renderSectionHeader("System", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderField("Profiles", fmt.Sprintf("%d (%d synced)", snap.TotalProfiles, snap.SyncedProfiles)))
	fmt.Fprintln(out, renderField("Unique films", strconv.Itoa(snap.UniqueFilms)))
	fmt.Fprintln(out, renderField("Reviews", strconv.Itoa(snap.TotalReviews)))
	fmt.Fprintln(out, renderField("Average rating", formatRating(snap.GlobalAverage)))
	fmt.Fprintln(out, renderField("Active jobs", strconv.Itoa(snap.ActiveJobs)))
	fmt.Fprintln(out, renderTrend("Entries trend", snap.Trends.Entries, colorize))
	fmt.Fprintln(out, renderTrend("Reviews trend", snap.Trends.Reviews, colorize))
	fmt.Fprintln(out)
	if hist := renderHistogram(snap.GlobalDistribution); hist != "" {
		fmt.Fprint(out, hist)
		fmt.Fprintln(out)
	}
	if len(snap.TopRated) > 0 {
		fmt.Fprintln(out, renderFilmScores("Top rated", snap.TopRated, true, colorize))
	}
	if len(snap.Monthly) > 0 {
		rows := make([][]string, 0, len(snap.Monthly))
		for _, a := range snap.Monthly {
			rows = append(rows, []string{a.Month, strconv.Itoa(a.Entries), formatMean(a.MeanRating)})
		}
		fmt.Fprintln(out, renderTable(tableSpec{
			Title:   "Monthly activity",
			Headers: []string{"Month", "Entries", "Mean"},
			Rows:    rows,
			Aligns:  []columnAlignment{alignLeft, alignRight, alignRight},
		}, colorize))
	}
}

func renderTrend(label string, t api.Trend, colorize bool) string {
	kind := statusOK
	sign := "+"
	if !t.Positive {
		kind, sign = statusWarn, ""
	}
	return renderStatusLine(label, kind, fmt.Sprintf("%s%.1f%% (%d this month, %d last month)", sign, t.Change, t.Current, t.Previous), colorize)
}

func newCompareCommand(ctx *commandContext) *cobra.Command {
	var output *outputFlags
	var limit int

	cmd := &cobra.Command{
		Use:   "compare <username> <username>",
		Short: "Compare the ratings of two synced profiles",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				result, err := client.Compare(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return output.emit(cmd, result, func(out io.Writer, colorize bool) {
					renderCompatibility(out, result, limit, colorize)
				})
			})
		},
	}
	output = addOutputFlags(cmd)
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of shared films to list, largest disagreement first")
	return cmd
}

func renderCompatibility(out io.Writer, c api.Compatibility, limit int, colorize bool) {
	for _, line := range renderSectionHeader(c.UserA+" vs "+c.UserB, colorize) {
		fmt.Fprintln(out, line)
	}
	kind := statusWarn
	if c.AgreementScore >= 70 {
		kind = statusOK
	}
	fmt.Fprintln(out, renderStatusLine("Agreement", kind, fmt.Sprintf("%.1f / 100", c.AgreementScore), colorize))
	fmt.Fprintln(out, renderField("Films in common", fmt.Sprintf("%d (%d rated by both)", c.CommonFilms, c.RatedInCommon)))
	fmt.Fprintln(out, renderField("Mean difference", fmt.Sprintf("%.2f stars", c.MeanAbsDifference)))
	fmt.Fprintln(out, renderField("Both loved", strconv.Itoa(c.BothLoved)))
	fmt.Fprintln(out, renderField("Both disliked", strconv.Itoa(c.BothDisliked)))
	fmt.Fprintln(out, renderField("Disagreements", strconv.Itoa(c.StrongDisagreements)))

	films := slices.Clone(c.Films)
	slices.SortStableFunc(films, func(a, b api.FilmComparison) int {
		return compareDiff(b.Difference, a.Difference)
	})
	if limit > 0 && len(films) > limit {
		films = films[:limit]
	}
	if len(films) == 0 {
		return
	}
	rows := make([][]string, 0, len(films))
	for _, f := range films {
		rows = append(rows, []string{f.Title, formatMean(f.RatingA), formatMean(f.RatingB), formatMean(f.Difference)})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable(tableSpec{
		Headers: []string{"Film", c.UserA, c.UserB, "Diff"},
		Rows:    rows,
		Aligns:  []columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	}, colorize))
}

// compareDiff ranks a nil difference below every rated one.
func compareDiff(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}
