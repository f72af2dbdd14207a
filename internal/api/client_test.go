package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"filmlog/internal/api"
)

func TestNewClientEmptyBind(t *testing.T) {
	client, err := api.NewClient("", "")
	if !errors.Is(err, api.ErrAPIUnavailable) {
		t.Fatalf("expected ErrAPIUnavailable, got %v", err)
	}
	if client != nil {
		t.Fatal("expected nil client for empty bind")
	}
}

func TestClientSendsTokenAndDecodes(t *testing.T) {
	var gotAuth, gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.EscapedPath()
		gotMethod = r.Method
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(api.IngestResponse{JobID: "job-1", Username: "alice", State: "queued"})
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, "secret")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := client.Ingest(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if resp.JobID != "job-1" || resp.State != "queued" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotAuth != "Bearer secret" || gotPath != "/api/ingest/alice" || gotMethod != http.MethodPost {
		t.Fatalf("unexpected request: %s %s auth=%q", gotMethod, gotPath, gotAuth)
	}
}

func TestClientDecodesErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "already running", Kind: "conflict"})
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Ingest(context.Background(), "alice")
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *api.Error, got %v", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Message != "already running" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if !api.IsKind(err, "conflict") || api.IsKind(err, "not_found") {
		t.Fatal("IsKind mismatch")
	}
}

func TestClientErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, _ := api.NewClient(srv.URL, "")
	_, err := client.System(context.Background())
	if err == nil || err.Error() != "daemon returned status 502" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIsAPIUnavailable(t *testing.T) {
	if !api.IsAPIUnavailable(api.ErrAPIUnavailable) {
		t.Fatal("expected ErrAPIUnavailable to be unavailable")
	}
	if api.IsAPIUnavailable(errors.New("other")) {
		t.Fatal("did not expect generic error to be unavailable")
	}

	srv := httptest.NewServer(http.NotFoundHandler())
	bind := srv.Listener.Addr().String()
	srv.Close()
	client, err := api.NewClient(bind, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Health(context.Background()); !api.IsAPIUnavailable(err) {
		t.Fatalf("expected unavailable error for closed server, got %v", err)
	}
}
