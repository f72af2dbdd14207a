package services_test

import (
	"context"
	"testing"

	"filmlog/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "job-42")
	ctx = services.WithUsername(ctx, "alice")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-42" {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if user, ok := services.UsernameFromContext(ctx); !ok || user != "alice" {
		t.Fatalf("unexpected username: %v %v", user, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithUsername(ctx, "")
	ctx = services.WithJobID(ctx, "")
	if _, ok := services.UsernameFromContext(ctx); ok {
		t.Fatal("expected no username value")
	}
	if _, ok := services.JobIDFromContext(ctx); ok {
		t.Fatal("expected no job id value")
	}
}
