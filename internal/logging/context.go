package logging

import (
	"context"
	"log/slog"

	"filmlog/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID identifies a scrape job.
	FieldJobID = "job_id"
	// FieldUsername identifies the profile being ingested or analyzed.
	FieldUsername = "username"
	// FieldListing names the paginated listing (films, diary, reviews, watchlist, lists).
	FieldListing = "listing"
	// FieldPage is the 1-based page number within a listing.
	FieldPage = "page"
	// FieldRating carries a single half-star rating.
	FieldRating = "rating"
	// FieldProgress is a job's completion percentage.
	FieldProgress = "progress_percent"
	// FieldEventType classifies notable log lines for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries the classified error kind.
	FieldErrorKind = "error_kind"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobID, id))
	}
	if username, ok := services.UsernameFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldUsername, username))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
