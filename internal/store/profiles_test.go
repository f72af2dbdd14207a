package store_test

import (
	"context"
	"testing"
	"time"

	"filmlog/internal/store"
	"filmlog/internal/testsupport"
)

func TestEnsureProfileNormalizesAndIsIdempotent(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first, err := st.EnsureProfile(ctx, "  Alice ")
	if err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if first.Username != "alice" || first.Synced() {
		t.Fatalf("unexpected new profile %+v", first)
	}
	if _, err := st.EnsureProfile(ctx, "ALICE"); err != nil {
		t.Fatalf("EnsureProfile again: %v", err)
	}
	profiles, err := st.ListProfiles(ctx)
	if err != nil {
		t.Fatalf("ListProfiles: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("expected one profile, got %d", len(profiles))
	}
	if _, err := st.EnsureProfile(ctx, "   "); err == nil {
		t.Fatal("expected empty username to be rejected")
	}
}

func TestUpdateProfileInfo(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	info := store.ProfileInfo{Username: "alice", DisplayName: "Alice Liddell", Location: "Oxford", ReportedFilmCount: 1234}
	if err := st.UpdateProfileInfo(ctx, info); err == nil {
		t.Fatal("expected update of unknown profile to fail")
	}
	if _, err := st.EnsureProfile(ctx, "alice"); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if err := st.UpdateProfileInfo(ctx, info); err != nil {
		t.Fatalf("UpdateProfileInfo: %v", err)
	}
	profile, _ := st.GetProfile(ctx, "alice")
	if profile.DisplayName != "Alice Liddell" || profile.Location != "Oxford" || profile.ReportedFilmCount != 1234 {
		t.Fatalf("unexpected profile %+v", profile)
	}
}

func TestDeleteProfileCascadesButKeepsSharedFilms(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	shared := testsupport.SeedFilm{Slug: "alien", Title: "Alien", Year: 1979, Rating: 4, Review: "Great."}
	testsupport.SeedProfile(t, st, "carol", shared, testsupport.SeedFilm{Slug: "tenet", Title: "Tenet", Year: 2020})
	testsupport.SeedProfile(t, st, "dave", shared)
	if _, err := st.CreateJob(ctx, "carol", "job-1"); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	deleted, err := st.DeleteProfile(ctx, "Carol")
	if err != nil || !deleted {
		t.Fatalf("DeleteProfile: %v %v", deleted, err)
	}
	if again, _ := st.DeleteProfile(ctx, "carol"); again {
		t.Fatal("expected second delete to report nothing removed")
	}

	if profile, _ := st.GetProfile(ctx, "carol"); profile != nil {
		t.Fatalf("expected carol gone, got %+v", profile)
	}
	if entries, _ := st.Entries(ctx, "carol"); len(entries) != 0 {
		t.Fatalf("expected carol's ratings removed, got %d", len(entries))
	}
	if reviews, _ := st.Reviews(ctx, "carol"); len(reviews) != 0 {
		t.Fatalf("expected carol's reviews removed, got %d", len(reviews))
	}
	if job, _ := st.GetJob(ctx, "carol"); job != nil {
		t.Fatalf("expected carol's job removed, got %+v", job)
	}
	if entries, _ := st.Entries(ctx, "dave"); len(entries) != 1 {
		t.Fatalf("expected dave untouched, got %d entries", len(entries))
	}
	for _, key := range []string{"alien", "tenet"} {
		if film, _ := st.GetFilm(ctx, key); film == nil {
			t.Fatalf("expected catalog film %s to remain", key)
		}
	}
}

func TestProfilesSyncedBefore(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.SeedProfile(t, st, "alice")
	if _, err := st.EnsureProfile(ctx, "bob"); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}

	due, err := st.ProfilesSyncedBefore(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ProfilesSyncedBefore: %v", err)
	}
	if len(due) != 1 || due[0] != "alice" {
		t.Fatalf("expected only synced alice, got %v", due)
	}
	if due, _ := st.ProfilesSyncedBefore(ctx, time.Now().Add(-time.Hour)); len(due) != 0 {
		t.Fatalf("expected nothing synced an hour ago, got %v", due)
	}
	synced, err := st.ListSyncedProfiles(ctx)
	if err != nil || len(synced) != 1 {
		t.Fatalf("ListSyncedProfiles: %v %v", synced, err)
	}
}
