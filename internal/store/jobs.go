package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus is the lifecycle state of a compile job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusCompiling JobStatus = "compiling"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusStale     JobStatus = "stale"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusStale
}

var (
	// ErrJobNotFound is returned when a job id is unknown.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists is returned when creating a job whose id is taken.
	ErrJobExists = errors.New("job already exists")
)

// StatusConflictError is returned when a transition's expected status does
// not match the stored one.
type StatusConflictError struct {
	JobID    string
	Expected JobStatus
	Actual   JobStatus
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("job %s is %s, expected %s", e.JobID, e.Actual, e.Expected)
}

// Job is one durable compile job descriptor.
type Job struct {
	ID         string
	Status     JobStatus
	OutputPath string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Error      string
	Items      []JobItem
}

// JobItem is one compile request of a job.
type JobItem struct {
	Seq        int
	ClassName  string
	SourcePath string
	Result     *string // nil until phase 2 has run
	ProgramID  string
}

// ItemResult is the phase 2 outcome of one item.
type ItemResult struct {
	Seq       int
	Result    string
	ProgramID string // empty for failed compiles
}

// CreateJob persists a job and its items in one transaction.
// Returns ErrJobExists if the id is already taken.
func (s *Store) CreateJob(ctx context.Context, job Job) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create job: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO jobs (id, status, output_path, created_at, updated_at, error)
		VALUES (?, ?, ?, ?, ?, NULL)
		ON CONFLICT(id) DO NOTHING
	`,
		job.ID,
		string(job.Status),
		job.OutputPath,
		job.CreatedAt.UnixNano(),
		job.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("create job: %w", err)
	} else if n == 0 {
		return fmt.Errorf("create job %s: %w", job.ID, ErrJobExists)
	}

	for _, item := range job.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO job_items (job_id, seq, class_name, source_path)
			VALUES (?, ?, ?, ?)
		`, job.ID, item.Seq, item.ClassName, item.SourcePath)
		if err != nil {
			return fmt.Errorf("create job: item %d: %w", item.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create job: commit: %w", err)
	}
	return nil
}

// GetJob loads a job with its items.
func (s *Store) GetJob(ctx context.Context, id string) (Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, output_path, created_at, updated_at, error
		FROM jobs
		WHERE id = ?
	`, id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("get job %s: %w", id, ErrJobNotFound)
	}
	if err != nil {
		return Job{}, fmt.Errorf("get job %s: %w", id, err)
	}

	items, err := s.jobItems(ctx, id)
	if err != nil {
		return Job{}, fmt.Errorf("get job %s: %w", id, err)
	}
	job.Items = items
	return job, nil
}

// ListJobs returns jobs in creation order, optionally filtered by status.
// Items are loaded for every job.
func (s *Store) ListJobs(ctx context.Context, statuses ...JobStatus) ([]Job, error) {
	query := `
		SELECT id, status, output_path, created_at, updated_at, error
		FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY created_at ASC, id ASC COLLATE BINARY"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("list jobs: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	rows.Close()

	// Items are loaded after the job cursor is closed; the pool has one connection.
	for i := range jobs {
		items, err := s.jobItems(ctx, jobs[i].ID)
		if err != nil {
			return nil, fmt.Errorf("list jobs: %w", err)
		}
		jobs[i].Items = items
	}
	return jobs, nil
}

// TransitionJob moves a job from one status to another.
// Returns ErrJobNotFound or a *StatusConflictError when the job is not in
// the expected status. errMsg is stored as the job error when non-empty.
func (s *Store) TransitionJob(ctx context.Context, id string, from, to JobStatus, now time.Time, errMsg string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, updated_at = ?, error = COALESCE(NULLIF(?, ''), error)
		WHERE id = ? AND status = ?
	`, string(to), now.UnixNano(), errMsg, id, string(from))
	if err != nil {
		return fmt.Errorf("transition job %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition job %s: %w", id, err)
	}
	if n == 1 {
		return nil
	}
	return s.conflict(ctx, id, from)
}

// CompleteJob records item results and marks a compiling job completed in
// one transaction.
func (s *Store) CompleteJob(ctx context.Context, id string, results []ItemResult, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("complete job %s: begin tx: %w", id, err)
	}
	defer tx.Rollback() // No-op if committed

	for _, r := range results {
		res, err := tx.ExecContext(ctx, `
			UPDATE job_items
			SET result = ?, program_id = NULLIF(?, '')
			WHERE job_id = ? AND seq = ?
		`, r.Result, r.ProgramID, id, r.Seq)
		if err != nil {
			return fmt.Errorf("complete job %s: item %d: %w", id, r.Seq, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("complete job %s: item %d does not exist", id, r.Seq)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(StatusCompleted), now.UnixNano(), id, string(StatusCompiling))
	if err != nil {
		return fmt.Errorf("complete job %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return s.conflict(ctx, id, StatusCompiling)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("complete job %s: commit: %w", id, err)
	}
	return nil
}

// PendingBefore returns pending jobs created strictly before cutoff.
func (s *Store) PendingBefore(ctx context.Context, cutoff time.Time) ([]Job, error) {
	jobs, err := s.ListJobs(ctx, StatusPending)
	if err != nil {
		return nil, err
	}
	var stale []Job
	for _, job := range jobs {
		if job.CreatedAt.Before(cutoff) {
			stale = append(stale, job)
		}
	}
	return stale, nil
}

// CompilingBefore returns compiling jobs last updated strictly before cutoff.
func (s *Store) CompilingBefore(ctx context.Context, cutoff time.Time) ([]Job, error) {
	jobs, err := s.ListJobs(ctx, StatusCompiling)
	if err != nil {
		return nil, err
	}
	var stuck []Job
	for _, job := range jobs {
		if job.UpdatedAt.Before(cutoff) {
			stuck = append(stuck, job)
		}
	}
	return stuck, nil
}

// conflict builds the error for a transition that matched no row.
func (s *Store) conflict(ctx context.Context, id string, expected JobStatus) error {
	var actual string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, id).Scan(&actual)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}
	if err != nil {
		return fmt.Errorf("job %s: %w", id, err)
	}
	return &StatusConflictError{JobID: id, Expected: expected, Actual: JobStatus(actual)}
}

func (s *Store) jobItems(ctx context.Context, jobID string) ([]JobItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, class_name, source_path, result, program_id
		FROM job_items
		WHERE job_id = ?
		ORDER BY seq ASC
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []JobItem
	for rows.Next() {
		var (
			item      JobItem
			result    sql.NullString
			programID sql.NullString
		)
		if err := rows.Scan(&item.Seq, &item.ClassName, &item.SourcePath, &result, &programID); err != nil {
			return nil, err
		}
		if result.Valid {
			r := result.String
			item.Result = &r
		}
		item.ProgramID = programID.String
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var (
		job       Job
		status    string
		createdAt int64
		updatedAt int64
		errMsg    sql.NullString
	)
	if err := row.Scan(&job.ID, &status, &job.OutputPath, &createdAt, &updatedAt, &errMsg); err != nil {
		return Job{}, err
	}
	job.Status = JobStatus(status)
	job.CreatedAt = time.Unix(0, createdAt).UTC()
	job.UpdatedAt = time.Unix(0, updatedAt).UTC()
	job.Error = errMsg.String
	return job, nil
}
