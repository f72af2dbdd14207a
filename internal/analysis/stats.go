package analysis

import (
	"math"
	"slices"
	"strconv"
)

// ratingKey renders a half-star value as a distribution key ("0.5".."5.0").
func ratingKey(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// moments returns the sample variance plus the population skewness and
// excess kurtosis. Degenerate inputs yield zeros.
func moments(values []float64) (variance, skewness, kurtosis float64) {
	n := float64(len(values))
	if n < 2 {
		return 0, 0, 0
	}
	mu := mean(values)
	var m2, m3, m4 float64
	for _, v := range values {
		d := v - mu
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	variance = m2 / (n - 1)
	m2, m3, m4 = m2/n, m3/n, m4/n
	if m2 == 0 {
		return variance, 0, 0
	}
	return variance, m3 / math.Pow(m2, 1.5), m4/(m2*m2) - 3
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// percentChange is the month-over-month change; a zero baseline reports 100
// when anything happened this month.
func percentChange(current, previous int) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}

func ptr(v float64) *float64 {
	return &v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sqrt(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
