package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const profileColumns = `username, display_name, bio, location, website, avatar_url, join_date,
    reported_film_count, reported_review_count, reported_list_count,
    total_films, rated_films, liked_films, average_rating, total_reviews,
    watchlist_count, list_count, last_synced_at, created_at, updated_at`

func scanProfile(scanner interface{ Scan(dest ...any) error }) (*Profile, error) {
	var (
		p                                           Profile
		displayName, bio, location, website, avatar sql.NullString
		joinDate, lastSynced                        sql.NullString
		createdRaw, updatedRaw                      string
	)
	if err := scanner.Scan(
		&p.Username, &displayName, &bio, &location, &website, &avatar, &joinDate,
		&p.ReportedFilmCount, &p.ReportedReviewCount, &p.ReportedListCount,
		&p.TotalFilms, &p.RatedFilms, &p.LikedFilms, &p.AverageRating, &p.TotalReviews,
		&p.WatchlistCount, &p.ListCount, &lastSynced, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	p.DisplayName = displayName.String
	p.Bio = bio.String
	p.Location = location.String
	p.Website = website.String
	p.AvatarURL = avatar.String
	p.JoinDate = joinDate.String
	p.LastSyncedAt = nullTimePtr(lastSynced)
	if created, err := parseTimeString(createdRaw); err == nil {
		p.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		p.UpdatedAt = updated
	}
	return &p, nil
}

// NormalizeUsername lower-cases and trims a username for use as a key.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// EnsureProfile creates the profile row on first use and returns it.
func (s *Store) EnsureProfile(ctx context.Context, username string) (*Profile, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return nil, errors.New("username is empty")
	}
	ts := s.timestamp()
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO profiles (username, created_at, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(username) DO NOTHING`,
		username, ts, ts,
	); err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return s.GetProfile(ctx, username)
}

// UpdateProfileInfo stores metadata scraped from the profile page.
func (s *Store) UpdateProfileInfo(ctx context.Context, info ProfileInfo) error {
	username := NormalizeUsername(info.Username)
	res, err := s.execWithRetry(ctx,
		`UPDATE profiles SET display_name = ?, bio = ?, location = ?, website = ?, avatar_url = ?,
            join_date = ?, reported_film_count = ?, reported_review_count = ?, reported_list_count = ?,
            updated_at = ?
         WHERE username = ?`,
		nullableString(info.DisplayName), nullableString(info.Bio), nullableString(info.Location),
		nullableString(info.Website), nullableString(info.AvatarURL), nullableString(info.JoinDate),
		info.ReportedFilmCount, info.ReportedReviewCount, info.ReportedListCount,
		s.timestamp(), username,
	)
	if err != nil {
		return fmt.Errorf("update profile info: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("profile %s does not exist", username)
	}
	return nil
}

// GetProfile returns the profile or nil when it does not exist.
func (s *Store) GetProfile(ctx context.Context, username string) (*Profile, error) {
	return getProfile(ensureContext(ctx), s.db, username)
}

func getProfile(ctx context.Context, q queryer, username string) (*Profile, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE username = ?`, NormalizeUsername(username))
	profile, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

// ListProfiles returns every known profile ordered by username.
func (s *Store) ListProfiles(ctx context.Context) ([]Profile, error) {
	return s.queryProfiles(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY username`)
}

// ListSyncedProfiles returns profiles with at least one completed sync.
func (s *Store) ListSyncedProfiles(ctx context.Context) ([]Profile, error) {
	return s.queryProfiles(ctx, `SELECT `+profileColumns+` FROM profiles WHERE last_synced_at IS NOT NULL ORDER BY username`)
}

// ProfilesSyncedBefore returns synced usernames whose last sync is older than cutoff.
func (s *Store) ProfilesSyncedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT username FROM profiles WHERE last_synced_at IS NOT NULL AND last_synced_at < ? ORDER BY last_synced_at`,
		formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("query profiles synced before: %w", err)
	}
	defer rows.Close()
	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, err
		}
		usernames = append(usernames, username)
	}
	return usernames, rows.Err()
}

func (s *Store) queryProfiles(ctx context.Context, query string, args ...any) ([]Profile, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *profile)
	}
	return profiles, rows.Err()
}

// DeleteProfile removes the profile with its ratings, reviews, watchlist,
// lists, staged rows, and job row.
// Film rows stay because other profiles may reference them. It reports
// whether a profile was removed.
func (s *Store) DeleteProfile(ctx context.Context, username string) (bool, error) {
	var deleted bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE username = ?`, NormalizeUsername(username))
		if err != nil {
			return fmt.Errorf("delete profile: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}
