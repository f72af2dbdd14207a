package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"filmlog/internal/store"
)

var (
	ErrConflict    = errors.New("conflict")
	ErrNotFound    = errors.New("not found")
	ErrNetwork     = errors.New("network error")
	ErrParse       = errors.New("parse error")
	ErrRateLimited = errors.New("rate limited")
	ErrPersistence = errors.New("persistence error")
	ErrValidation  = errors.New("validation error")
)

// kinds lists markers in classification priority order. The first match wins
// so a persistence failure wrapped inside a network error reports persistence.
var kinds = []struct {
	marker error
	kind   string
	status int
}{
	{ErrValidation, "validation", http.StatusBadRequest},
	{ErrConflict, "conflict", http.StatusConflict},
	{ErrNotFound, "not_found", http.StatusNotFound},
	{ErrPersistence, "persistence", http.StatusInternalServerError},
	{ErrRateLimited, "rate_limited", http.StatusServiceUnavailable},
	{ErrParse, "parse", http.StatusUnprocessableEntity},
	{ErrNetwork, "network", http.StatusBadGateway},
}

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrPersistence
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns the short classification label for err ("internal" when unmarked).
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.marker) {
			return k.kind
		}
	}
	return "internal"
}

// HTTPStatus maps err to the status code the API responds with.
func HTTPStatus(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.marker) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// FailureState maps a job error to the terminal state the orchestrator
// persists. Bad input and unreachable targets are "failed"; everything that
// points at a systemic problem (markup drift, storage, throttling) is "error".
func FailureState(err error) store.JobState {
	switch {
	case errors.Is(err, ErrPersistence), errors.Is(err, ErrParse), errors.Is(err, ErrRateLimited):
		return store.JobError
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrValidation), errors.Is(err, ErrNetwork):
		return store.JobFailed
	default:
		return store.JobError
	}
}

// Message returns a display string without the leading marker text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, k := range kinds {
		prefix := k.marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
