package analysis

import (
	"context"
	"math"

	"filmlog/internal/services"
	"filmlog/internal/store"
)

const (
	lovedThreshold       = 4.0
	dislikedThreshold    = 2.0
	disagreementDistance = 2.0
)

// Compare reports how closely two profiles agree on the films both logged.
// Only films rated by both contribute to the agreement score; with none in
// common the score is 0.
func (e *Engine) Compare(ctx context.Context, a, b string) (*Compatibility, error) {
	if store.NormalizeUsername(a) == store.NormalizeUsername(b) {
		return nil, services.Wrap(services.ErrValidation, "analysis", "compare", "cannot compare a profile with itself", nil)
	}
	pa, err := e.syncedProfile(ctx, "compare", a)
	if err != nil {
		return nil, err
	}
	pb, err := e.syncedProfile(ctx, "compare", b)
	if err != nil {
		return nil, err
	}
	shared, err := e.store.SharedEntries(ctx, pa.Username, pb.Username)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "analysis", "compare", "read shared films", err)
	}

	result := &Compatibility{
		UserA:       pa.Username,
		UserB:       pb.Username,
		CommonFilms: len(shared),
		Films:       make([]FilmComparison, 0, len(shared)),
	}
	var diffSum float64
	for _, entry := range shared {
		film := FilmComparison{
			FilmKey: entry.FilmKey,
			Title:   entry.Title,
			Year:    entry.Year,
			RatingA: entry.RatingA,
			RatingB: entry.RatingB,
		}
		if entry.RatingA != nil && entry.RatingB != nil {
			ra, rb := *entry.RatingA, *entry.RatingB
			diff := math.Abs(ra - rb)
			film.Difference = ptr(diff)
			result.RatedInCommon++
			diffSum += diff
			if ra >= lovedThreshold && rb >= lovedThreshold {
				result.BothLoved++
			}
			if ra <= dislikedThreshold && rb <= dislikedThreshold {
				result.BothDisliked++
			}
			if diff >= disagreementDistance {
				result.StrongDisagreements++
			}
		}
		result.Films = append(result.Films, film)
	}
	if result.RatedInCommon > 0 {
		result.MeanAbsDifference = round2(diffSum / float64(result.RatedInCommon))
		result.AgreementScore = agreementScore(diffSum / float64(result.RatedInCommon))
	}
	return result, nil
}

func agreementScore(meanAbsDiff float64) float64 {
	return round2(math.Max(0, math.Min(100, 100-meanAbsDiff*20)))
}
