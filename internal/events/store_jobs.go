package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"blackbox/internal/services"
)

const jobColumns = "id, event_id, camera_id, path, thumbnail, state, started_at, finished_at, expected_seconds, size_bytes, error_kind, error_message, important"

// ErrJobNotFound is returned when a job id matches no row.
var ErrJobNotFound = errors.New("recording job not found")

func scanJob(scanner interface{ Scan(dest ...any) error }) (Job, error) {
	var (
		job        Job
		path       sql.NullString
		thumbnail  sql.NullString
		state      string
		started    sql.NullString
		finished   sql.NullString
		errorKind  sql.NullString
		errorMsg   sql.NullString
		importantN int
	)
	if err := scanner.Scan(&job.ID, &job.EventID, &job.CameraID, &path, &thumbnail, &state, &started, &finished,
		&job.ExpectedSeconds, &job.SizeBytes, &errorKind, &errorMsg, &importantN); err != nil {
		return Job{}, err
	}
	job.Path = path.String
	job.Thumbnail = thumbnail.String
	job.State = JobState(state)
	job.StartedAt = parseTime(started)
	job.FinishedAt = parseTime(finished)
	job.ErrorKind = errorKind.String
	job.ErrorMessage = errorMsg.String
	job.Important = importantN != 0
	return job, nil
}

// CreateJob inserts a pending job for eventID.
func (s *Store) CreateJob(ctx context.Context, eventID string, cameraID int, path string, startedAt time.Time, expected time.Duration) (Job, error) {
	if strings.TrimSpace(eventID) == "" {
		return Job{}, errors.New("events: event id required")
	}
	job := Job{
		ID:              uuid.NewString(),
		EventID:         eventID,
		CameraID:        cameraID,
		Path:            path,
		State:           JobPending,
		StartedAt:       startedAt,
		ExpectedSeconds: int(expected.Round(time.Second) / time.Second),
	}
	_, err := s.exec(ctx,
		`INSERT INTO recording_jobs (id, event_id, camera_id, path, state, started_at, expected_seconds) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.EventID, job.CameraID, nullString(job.Path), string(job.State), formatTime(job.StartedAt), job.ExpectedSeconds,
	)
	if err != nil {
		return Job{}, fmt.Errorf("insert recording job: %w", err)
	}
	return job, nil
}

// CompleteJob marks a job succeeded with its final path and size.
func (s *Store) CompleteJob(ctx context.Context, id, path, thumbnail string, size int64, finishedAt time.Time) error {
	res, err := s.exec(ctx,
		`UPDATE recording_jobs SET state = ?, path = ?, thumbnail = ?, size_bytes = ?, finished_at = ?, error_kind = NULL, error_message = NULL WHERE id = ?`,
		string(JobSucceeded), path, nullString(thumbnail), size, formatTime(finishedAt), id,
	)
	if err != nil {
		return fmt.Errorf("complete recording job: %w", err)
	}
	return requireRow(res, id)
}

// FailJob marks a job failed, storing the error classification.
func (s *Store) FailJob(ctx context.Context, id string, cause error, finishedAt time.Time) error {
	kind, msg := "", ""
	if cause != nil {
		kind = services.Kind(cause)
		msg = cause.Error()
	}
	res, err := s.exec(ctx,
		`UPDATE recording_jobs SET state = ?, finished_at = ?, error_kind = ?, error_message = ? WHERE id = ?`,
		string(JobFailed), formatTime(finishedAt), nullString(kind), nullString(msg), id,
	)
	if err != nil {
		return fmt.Errorf("fail recording job: %w", err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return nil
}

// GetJob fetches one job by id.
func (s *Store) GetJob(ctx context.Context, id string) (Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM recording_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return Job{}, fmt.Errorf("get recording job: %w", err)
	}
	return job, nil
}

// ListJobs returns the newest jobs first, optionally filtered by state.
func (s *Store) ListJobs(ctx context.Context, limit int, states ...JobState) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM recording_jobs`
	var args []any
	if len(states) > 0 {
		placeholders := make([]string, len(states))
		for i, state := range states {
			placeholders[i] = "?"
			args = append(args, string(state))
		}
		query += ` WHERE state IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY started_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recording jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recording job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// JobStats counts events and jobs.
func (s *Store) JobStats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	stats := Stats{Events: map[EventStatus]int{}, Jobs: map[JobState]int{}}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM motion_events GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("count motion events: %w", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return Stats{}, err
		}
		stats.Events[EventStatus(status)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT state, COUNT(1), COALESCE(SUM(size_bytes), 0) FROM recording_jobs GROUP BY state`)
	if err != nil {
		return Stats{}, fmt.Errorf("count recording jobs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var state string
		var n int
		var bytes int64
		if err := rows.Scan(&state, &n, &bytes); err != nil {
			return Stats{}, err
		}
		stats.Jobs[JobState(state)] = n
		if JobState(state) == JobSucceeded {
			stats.TotalBytes = bytes
		}
	}
	return stats, rows.Err()
}

// ReconcileInFlight fails every job still pending. It runs at startup, when
// no recording can be in progress.
func (s *Store) ReconcileInFlight(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.exec(ctx,
		`UPDATE recording_jobs SET state = ?, finished_at = ?, error_kind = ?, error_message = ? WHERE state = ?`,
		string(JobFailed), formatTime(now), ReasonInterrupted, "daemon stopped before the recording finished", string(JobPending),
	)
	if err != nil {
		return 0, fmt.Errorf("reconcile pending jobs: %w", err)
	}
	return res.RowsAffected()
}

// MarkImportant flags or clears the important bit on the job that produced
// path.
func (s *Store) MarkImportant(ctx context.Context, path string, important bool) error {
	flag := 0
	if important {
		flag = 1
	}
	res, err := s.exec(ctx, `UPDATE recording_jobs SET important = ? WHERE path = ?`, flag, path)
	if err != nil {
		return fmt.Errorf("mark important: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return services.Wrap(services.ErrNotFound, "events", "mark important", "no recording with path "+path, nil)
	}
	return nil
}

// ImportantPaths returns the set of clip paths flagged important.
func (s *Store) ImportantPaths(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT path FROM recording_jobs WHERE important = 1 AND path IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("list important paths: %w", err)
	}
	defer rows.Close()
	paths := make(map[string]struct{})
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths[path] = struct{}{}
	}
	return paths, rows.Err()
}
