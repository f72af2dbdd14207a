package logging

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"filmlog/internal/services"
)

func isRatingKey(key string) bool {
	return key == FieldRating || strings.HasSuffix(key, "_rating")
}

func isPercentKey(key string) bool {
	return key == FieldProgress || strings.HasSuffix(key, "_percent") || strings.HasSuffix(key, "_pct")
}

func number(v slog.Value) (float64, bool) {
	switch v.Kind() {
	case slog.KindFloat64:
		return v.Float64(), true
	case slog.KindInt64:
		return float64(v.Int64()), true
	case slog.KindUint64:
		return float64(v.Uint64()), true
	}
	return 0, false
}

// domainValue rounds quantities to the precision filmlog displays them at.
// A single rating snaps to the half-star grid, means keep two decimals,
// percentages one, and durations drop sub-millisecond noise.
func domainValue(key string, v slog.Value) slog.Value {
	v = v.Resolve()
	if v.Kind() == slog.KindDuration {
		return slog.DurationValue(v.Duration().Round(time.Millisecond))
	}
	f, ok := number(v)
	if !ok {
		return v
	}
	switch {
	case key == FieldRating:
		return slog.Float64Value(math.Round(f*2) / 2)
	case isRatingKey(key):
		return slog.Float64Value(math.Round(f*100) / 100)
	case isPercentKey(key):
		return slog.Float64Value(math.Round(f*10) / 10)
	}
	return v
}

// errorText prefixes classified errors with their kind, e.g. "[not_found] ...".
func errorText(err error) string {
	kind := services.Kind(err)
	if kind == "internal" {
		return err.Error()
	}
	return "[" + kind + "] " + err.Error()
}

func attrString(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return formatValue("", v)
	}
}

// formatValue renders one console field value.
func formatValue(key string, v slog.Value) string {
	v = domainValue(key, v)
	if f, ok := number(v); ok {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		switch {
		case isRatingKey(key):
			return s + "/5"
		case isPercentKey(key):
			return s + "%"
		}
		return s
	}
	var s string
	switch v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = errorText(err)
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if needsQuotes(s) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuotes(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r < ' ' || r == '=' || r == '"' {
			return true
		}
	}
	return false
}
