package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ApplySync writes a batch of scraped records in one transaction. Catalog
// films are written immediately. Per-profile rows of a non-final batch are
// staged under the batch's sync id and stay invisible to readers. The final
// batch promotes everything staged for its sync id, writes its own rows,
// prunes rows from earlier runs when batch.Prune is set, recomputes the
// profile counters, and stamps last_synced_at, all in the same transaction.
// Readers therefore observe either the previous sync or the complete new one.
func (s *Store) ApplySync(ctx context.Context, batch SyncBatch, final bool) error {
	if batch.Username == "" {
		return errors.New("sync batch username is empty")
	}
	if batch.SyncID == "" {
		return errors.New("sync batch sync id is empty")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		ts := s.timestamp()
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM profiles WHERE username = ?`, batch.Username).Scan(&exists); err != nil {
			return fmt.Errorf("check profile: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("profile %s does not exist", batch.Username)
		}
		if !final {
			// Leftovers of an abandoned run would otherwise linger until the
			// next final batch.
			if err := clearStaged(ctx, tx, batch.Username, batch.SyncID); err != nil {
				return err
			}
		}
		if err := writeBatch(ctx, tx, batch, ts, !final); err != nil {
			return err
		}
		if !final {
			return nil
		}
		for _, table := range recordTables {
			if _, err := tx.ExecContext(ctx, table.promote, batch.Username, batch.SyncID); err != nil {
				return fmt.Errorf("promote staged %s: %w", table.name, err)
			}
		}
		if err := clearStaged(ctx, tx, batch.Username, ""); err != nil {
			return err
		}
		if batch.Prune {
			if err := pruneStale(ctx, tx, batch.Username, batch.SyncID); err != nil {
				return err
			}
		}
		return refreshCounters(ctx, tx, batch.Username, ts, true)
	})
}

func writeBatch(ctx context.Context, tx *sql.Tx, batch SyncBatch, ts string, staged bool) error {
	for _, film := range batch.Films {
		if err := upsertFilm(ctx, tx, film, ts); err != nil {
			return err
		}
	}
	for _, rating := range batch.Ratings {
		rating.Username = batch.Username
		rating.SyncID = batch.SyncID
		if err := upsertRating(ctx, tx, rating, ts, staged); err != nil {
			return err
		}
	}
	for _, review := range batch.Reviews {
		review.Username = batch.Username
		review.SyncID = batch.SyncID
		if err := upsertReview(ctx, tx, review, ts, staged); err != nil {
			return err
		}
	}
	for _, item := range batch.Watchlist {
		item.Username = batch.Username
		item.SyncID = batch.SyncID
		if err := upsertWatchlistItem(ctx, tx, item, ts, staged); err != nil {
			return err
		}
	}
	for _, list := range batch.Lists {
		list.Username = batch.Username
		list.SyncID = batch.SyncID
		if err := upsertFilmList(ctx, tx, list, ts, staged); err != nil {
			return err
		}
	}
	return nil
}

// clearStaged drops staged rows of username, keeping those of keepSyncID
// when it is set.
func clearStaged(ctx context.Context, tx *sql.Tx, username, keepSyncID string) error {
	for _, table := range recordTables {
		query, args := table.clearStaged, []any{username}
		if keepSyncID != "" {
			query += ` AND sync_id <> ?`
			args = append(args, keepSyncID)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("clear staged %s: %w", table.name, err)
		}
	}
	return nil
}

func pruneStale(ctx context.Context, tx *sql.Tx, username, syncID string) error {
	for _, table := range recordTables {
		query := `DELETE FROM ` + table.name + ` WHERE username = ? AND sync_id <> ?`
		if _, err := tx.ExecContext(ctx, query, username, syncID); err != nil {
			return fmt.Errorf("prune %s: %w", table.name, err)
		}
	}
	return nil
}

// refreshCounters derives the profile counters from its rows.
func refreshCounters(ctx context.Context, tx *sql.Tx, username, ts string, markSynced bool) error {
	var (
		total, rated, liked, reviews, watchlist, lists int
		avg                                            sql.NullFloat64
	)
	row := tx.QueryRowContext(ctx, `SELECT
            COUNT(1),
            COUNT(rating),
            COALESCE(SUM(liked), 0),
            AVG(rating),
            (SELECT COUNT(1) FROM reviews WHERE username = ?),
            (SELECT COUNT(1) FROM watchlist WHERE username = ?),
            (SELECT COUNT(1) FROM lists WHERE username = ?)
        FROM ratings WHERE username = ?`, username, username, username, username)
	if err := row.Scan(&total, &rated, &liked, &avg, &reviews, &watchlist, &lists); err != nil {
		return fmt.Errorf("compute counters: %w", err)
	}
	average := 0.0
	if avg.Valid {
		average = avg.Float64
	}

	query := `UPDATE profiles SET total_films = ?, rated_films = ?, liked_films = ?,
            average_rating = ?, total_reviews = ?, watchlist_count = ?, list_count = ?, updated_at = ?`
	args := []any{total, rated, liked, average, reviews, watchlist, lists, ts}
	if markSynced {
		query += `, last_synced_at = ?`
		args = append(args, ts)
	}
	query += ` WHERE username = ?`
	args = append(args, username)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update counters: %w", err)
	}
	return nil
}
