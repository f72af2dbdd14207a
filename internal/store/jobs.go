package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const jobColumns = `username, job_id, state, progress_message, progress_percent,
    pages_total, pages_fetched, pages_skipped, records_parsed,
    queued_at, started_at, completed_at, last_heartbeat, error_kind, error_message, updated_at`

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job                                    Job
		state                                  string
		message, errorKind, errorMessage       sql.NullString
		queuedRaw, updatedRaw                  string
		startedRaw, completedRaw, heartbeatRaw sql.NullString
	)
	if err := scanner.Scan(
		&job.Username, &job.JobID, &state, &message, &job.ProgressPercent,
		&job.PagesTotal, &job.PagesFetched, &job.PagesSkipped, &job.RecordsParsed,
		&queuedRaw, &startedRaw, &completedRaw, &heartbeatRaw, &errorKind, &errorMessage, &updatedRaw,
	); err != nil {
		return nil, err
	}
	job.State = JobState(state)
	job.ProgressMessage = message.String
	job.ErrorKind = errorKind.String
	job.ErrorMessage = errorMessage.String
	if queued, err := parseTimeString(queuedRaw); err == nil {
		job.QueuedAt = queued
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	job.StartedAt = nullTimePtr(startedRaw)
	job.CompletedAt = nullTimePtr(completedRaw)
	job.LastHeartbeat = nullTimePtr(heartbeatRaw)
	return &job, nil
}

// CreateJob writes a pending job row for username. An existing terminal row
// is replaced; an existing active row makes the call fail with ErrJobActive.
func (s *Store) CreateJob(ctx context.Context, username, jobID string) (*Job, error) {
	username = NormalizeUsername(username)
	if username == "" || jobID == "" {
		return nil, errors.New("create job requires username and job id")
	}
	ts := s.timestamp()
	args := []any{username, jobID, JobPending, "Waiting to start", ts, ts, ts}
	args = append(args, terminalStates()...)
	res, err := s.execWithRetry(ctx,
		`INSERT INTO scrape_jobs (username, job_id, state, progress_message, queued_at, last_heartbeat, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(username) DO UPDATE SET
             job_id = excluded.job_id,
             state = excluded.state,
             progress_message = excluded.progress_message,
             progress_percent = 0,
             pages_total = 0, pages_fetched = 0, pages_skipped = 0, records_parsed = 0,
             queued_at = excluded.queued_at,
             started_at = NULL,
             completed_at = NULL,
             last_heartbeat = excluded.last_heartbeat,
             error_kind = NULL,
             error_message = NULL,
             updated_at = excluded.updated_at
         WHERE scrape_jobs.state IN (?, ?, ?)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrJobActive
	}
	return s.GetJob(ctx, username)
}

// GetJob returns the job row for username or nil when none exists.
func (s *Store) GetJob(ctx context.Context, username string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+jobColumns+` FROM scrape_jobs WHERE username = ?`, NormalizeUsername(username))
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// TransitionJob moves an active job to a new state. Entering in_progress
// stamps started_at; entering a terminal state stamps completed_at and
// completion sets progress to 100. The call fails with ErrJobNotActive when
// the job is missing, replaced by a newer job, or already terminal.
func (s *Store) TransitionJob(ctx context.Context, tr JobTransition) error {
	if _, ok := ParseJobState(string(tr.To)); !ok {
		return fmt.Errorf("unknown job state %q", tr.To)
	}
	ts := s.timestamp()
	query := `UPDATE scrape_jobs SET state = ?, updated_at = ?, last_heartbeat = ?`
	args := []any{tr.To, ts, ts}
	if tr.Message != "" {
		query += `, progress_message = ?`
		args = append(args, tr.Message)
	}
	switch {
	case tr.To == JobInProgress:
		query += `, started_at = COALESCE(started_at, ?)`
		args = append(args, ts)
	case tr.To == JobCompleted:
		query += `, completed_at = ?, progress_percent = 100, error_kind = NULL, error_message = NULL`
		args = append(args, ts)
	case tr.To.IsTerminal():
		query += `, completed_at = ?, error_kind = ?, error_message = ?`
		args = append(args, ts, nullableString(tr.ErrorKind), nullableString(tr.ErrorMessage))
	}
	query += ` WHERE username = ? AND job_id = ? AND state IN (?, ?, ?)`
	args = append(args, NormalizeUsername(tr.Username), tr.JobID)
	args = append(args, activeStates()...)

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition job to %s: %w", tr.To, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotActive
	}
	return nil
}

// UpdateJobProgress stores progress counters for an active job. The stored
// percent never decreases.
func (s *Store) UpdateJobProgress(ctx context.Context, username, jobID string, p JobProgress) error {
	ts := s.timestamp()
	args := []any{p.Percent, nullableString(p.Message), p.PagesTotal, p.PagesFetched, p.PagesSkipped, p.RecordsParsed, ts, ts,
		NormalizeUsername(username), jobID}
	args = append(args, activeStates()...)
	res, err := s.execWithRetry(ctx,
		`UPDATE scrape_jobs SET
             progress_percent = MAX(progress_percent, ?),
             progress_message = COALESCE(?, progress_message),
             pages_total = MAX(pages_total, ?),
             pages_fetched = MAX(pages_fetched, ?),
             pages_skipped = MAX(pages_skipped, ?),
             records_parsed = MAX(records_parsed, ?),
             last_heartbeat = ?,
             updated_at = ?
         WHERE username = ? AND job_id = ? AND state IN (?, ?, ?)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotActive
	}
	return nil
}

// UpdateHeartbeat refreshes the liveness timestamp for an active job.
func (s *Store) UpdateHeartbeat(ctx context.Context, username, jobID string) error {
	ts := s.timestamp()
	args := []any{ts, ts, NormalizeUsername(username), jobID}
	args = append(args, activeStates()...)
	if _, err := s.execWithRetry(ctx,
		`UPDATE scrape_jobs SET last_heartbeat = ?, updated_at = ?
         WHERE username = ? AND job_id = ? AND state IN (?, ?, ?)`,
		args...,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// StaleJobs returns active jobs whose last heartbeat is older than cutoff.
func (s *Store) StaleJobs(ctx context.Context, cutoff time.Time) ([]Job, error) {
	args := append(activeStates(), formatTime(cutoff))
	return s.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM scrape_jobs
         WHERE state IN (?, ?, ?) AND COALESCE(last_heartbeat, started_at, queued_at) < ?
         ORDER BY queued_at`,
		args...)
}

// MarkJobStale marks a single job as error when it is still active and its
// heartbeat is older than cutoff. It reports whether the row changed.
func (s *Store) MarkJobStale(ctx context.Context, username, jobID string, cutoff time.Time, message string) (bool, error) {
	ts := s.timestamp()
	args := []any{JobError, ts, "stalled", message, ts, NormalizeUsername(username), jobID}
	args = append(args, activeStates()...)
	args = append(args, formatTime(cutoff))
	res, err := s.execWithRetry(ctx,
		`UPDATE scrape_jobs SET state = ?, completed_at = ?, error_kind = ?, error_message = ?, updated_at = ?
         WHERE username = ? AND job_id = ? AND state IN (?, ?, ?)
           AND COALESCE(last_heartbeat, started_at, queued_at) < ?`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("mark job stale: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkStaleJobs marks every stale active job as error and returns the count.
func (s *Store) MarkStaleJobs(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	ts := s.timestamp()
	args := []any{JobError, ts, "stalled", message, ts}
	args = append(args, activeStates()...)
	args = append(args, formatTime(cutoff))
	res, err := s.execWithRetry(ctx,
		`UPDATE scrape_jobs SET state = ?, completed_at = ?, error_kind = ?, error_message = ?, updated_at = ?
         WHERE state IN (?, ?, ?) AND COALESCE(last_heartbeat, started_at, queued_at) < ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("mark stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// ActiveJobs returns all non-terminal jobs ordered by queue time.
func (s *Store) ActiveJobs(ctx context.Context) ([]Job, error) {
	return s.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM scrape_jobs WHERE state IN (?, ?, ?) ORDER BY queued_at`,
		activeStates()...)
}

// JobStats returns a count of jobs grouped by state.
func (s *Store) JobStats(ctx context.Context) (map[JobState]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT state, COUNT(1) FROM scrape_jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[JobState]int)
	for rows.Next() {
		var (
			state string
			count int
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[JobState(state)] = count
	}
	return stats, rows.Err()
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]Job, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}
