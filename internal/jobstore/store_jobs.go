package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested job does not exist.
var ErrNotFound = errors.New("job not found")

const jobColumns = `id, run_id, kind, source_path, collection, collection_seq,
	job_name, file_count, state, detail, created_at, updated_at`

// NewJob inserts a submitted job and returns the stored row.
func (s *Store) NewJob(ctx context.Context, kind Kind, sourcePath, collection string, collectionSeq int, jobName string, fileCount int) (*Job, error) {
	ctx = ensureContext(ctx)
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(ctx,
		`INSERT INTO ingest_jobs (
			run_id, kind, source_path, collection, collection_seq,
			job_name, file_count, state, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		string(kind),
		sourcePath,
		collection,
		collectionSeq,
		jobName,
		fileCount,
		string(StateSubmitted),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// SetJobName records the cluster job name once it is derived from the
// ledger row ID.
func (s *Store) SetJobName(ctx context.Context, id int64, jobName string) error {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx,
		`UPDATE ingest_jobs SET job_name = ?, updated_at = ? WHERE id = ?`,
		jobName,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update job name: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

// SetState transitions a job to a new state with an optional detail note.
func (s *Store) SetState(ctx context.Context, id int64, state State, detail string) error {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx,
		`UPDATE ingest_jobs SET state = ?, detail = ?, updated_at = ? WHERE id = ?`,
		string(state),
		nullableString(detail),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update job state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

// GetByID fetches one job.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM ingest_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return job, err
}

// List returns recent jobs, newest first. limit <= 0 returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]*Job, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + jobColumns + ` FROM ingest_jobs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CountByState reports how many jobs sit in each state.
func (s *Store) CountByState(ctx context.Context) (map[State]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT state, COUNT(1) FROM ingest_jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[State]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[State(state)] = count
	}
	return counts, rows.Err()
}

// NextCollectionSeq returns one past the highest collection sequence ever
// recorded. Sequence numbers survive restarts so collection names never
// collide with earlier runs.
func (s *Store) NextCollectionSeq(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(collection_seq) FROM ingest_jobs`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max collection seq: %w", err)
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job       Job
		kind      string
		state     string
		detail    sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(
		&job.ID, &job.RunID, &kind, &job.SourcePath, &job.Collection,
		&job.CollectionSeq, &job.JobName, &job.FileCount, &state,
		&detail, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Kind = Kind(kind)
	job.State = State(state)
	job.Detail = detail.String
	job.CreatedAt = parseTimestamp(createdAt)
	job.UpdatedAt = parseTimestamp(updatedAt)
	return &job, nil
}

func parseTimestamp(value string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
