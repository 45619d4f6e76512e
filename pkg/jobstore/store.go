// Package jobstore persists job records in a shared SQLite database.
//
// The jobs table is the single source of truth for job status across
// process boundaries: every jobmill process that touches a job reads and
// writes status through this package. No atomicity beyond single-row
// UPDATE is assumed by callers.
package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when no job row matches the requested id.
var ErrNotFound = errors.New("job not found")

// Record is one row of the shared jobs table.
//
// ParentID and MasterID are plain identifiers (0 = unset); the dependency
// graph is resolved through the store on demand rather than held as object
// references.
type Record struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Project      string     `json:"project"`
	JobType      string     `json:"job_type"`
	Status       string     `json:"status"`
	RunMode      string     `json:"run_mode"`
	QueueID      string     `json:"queue_id,omitempty"`
	ParentID     int64      `json:"parent_id,omitempty"`
	MasterID     int64      `json:"master_id,omitempty"`
	WorkingDir   string     `json:"working_dir,omitempty"`
	TimeStart    *time.Time `json:"time_start,omitempty"`
	TimeStop     *time.Time `json:"time_stop,omitempty"`
	TotalCPUSecs int64      `json:"total_cpu_secs,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Store is a thin accessor over the shared jobs table.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// Insert persists a new record and returns the assigned job id.
// Ids are never reused; a removed and re-created job receives a fresh id.
func (s *Store) Insert(ctx context.Context, rec *Record) (int64, error) {
	if rec == nil {
		return 0, errors.New("record is nil")
	}
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		return 0, errors.New("job name is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs
		 (name, project, job_type, status, run_mode, queue_id, parent_id, master_id, working_dir, time_start, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		name, rec.Project, rec.JobType, rec.Status, rec.RunMode,
		nullString(rec.QueueID), nullID(rec.ParentID), nullID(rec.MasterID),
		nullString(rec.WorkingDir), nullTime(rec.TimeStart), rec.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read job id: %w", err)
	}
	rec.ID = id
	return id, nil
}

// Get retrieves a single record by id.
func (s *Store) Get(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, project, job_type, status, run_mode, queue_id, parent_id, master_id,
		        working_dir, time_start, time_stop, total_cpu_secs, created_at
		 FROM jobs WHERE id = ?`, id)
	return scanRecord(row)
}

// GetByName retrieves a record by its project-unique name.
func (s *Store) GetByName(ctx context.Context, project, name string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, project, job_type, status, run_mode, queue_id, parent_id, master_id,
		        working_dir, time_start, time_stop, total_cpu_secs, created_at
		 FROM jobs WHERE project = ? AND name = ?`, project, name)
	return scanRecord(row)
}

// GetStatus reads the persisted status for a job.
func (s *Store) GetStatus(ctx context.Context, id int64) (string, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get status: %w", err)
	}
	return status, nil
}

// SetStatus overwrites the persisted status for a job.
func (s *Store) SetStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return requireRow(res)
}

// SetQueueID records the external scheduler identifier after queue submission.
func (s *Store) SetQueueID(ctx context.Context, id int64, queueID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET queue_id = ? WHERE id = ?`, queueID, id)
	if err != nil {
		return fmt.Errorf("set queue id: %w", err)
	}
	return requireRow(res)
}

// SetTimeStart marks the beginning of active execution.
func (s *Store) SetTimeStart(ctx context.Context, id int64, t time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET time_start = ? WHERE id = ?`,
		t.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("set time start: %w", err)
	}
	return requireRow(res)
}

// FinishRuntime records the stop time and total elapsed compute seconds,
// computed from the persisted start time.
func (s *Store) FinishRuntime(ctx context.Context, id int64, stop time.Time) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	var elapsed int64
	if rec.TimeStart != nil {
		elapsed = int64(stop.Sub(*rec.TimeStart).Seconds())
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET time_stop = ?, total_cpu_secs = ? WHERE id = ?`,
		stop.UTC().Format(time.RFC3339Nano), elapsed, id)
	if err != nil {
		return fmt.Errorf("finish runtime: %w", err)
	}
	return requireRow(res)
}

// GetChildren returns the ids of all jobs whose parent_id equals the given
// id, in ascending id order. Successor wake-up relies on this ordering.
func (s *Store) GetChildren(ctx context.Context, parentID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM jobs WHERE parent_id = ? ORDER BY id ASC`, parentID)
	if err != nil {
		return nil, fmt.Errorf("get children: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan child id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// List returns all job records, newest first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	return s.list(ctx,
		`SELECT id, name, project, job_type, status, run_mode, queue_id, parent_id, master_id,
		        working_dir, time_start, time_stop, total_cpu_secs, created_at
		 FROM jobs ORDER BY id DESC`)
}

// ListByStatus returns all records currently in one of the given statuses,
// ascending by id. Used by the queue reconciliation sweep.
func (s *Store) ListByStatus(ctx context.Context, statuses ...string) ([]Record, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(statuses))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = st
	}
	return s.list(ctx,
		`SELECT id, name, project, job_type, status, run_mode, queue_id, parent_id, master_id,
		        working_dir, time_start, time_stop, total_cpu_secs, created_at
		 FROM jobs WHERE status IN (`+placeholders+`) ORDER BY id ASC`, args...)
}

// Delete removes a job record. The id is not reused.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row *sql.Row) (*Record, error) {
	rec, err := scanRecordRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func scanRecordRows(row rowScanner) (*Record, error) {
	var (
		rec       Record
		queueID   sql.NullString
		parentID  sql.NullInt64
		masterID  sql.NullInt64
		workDir   sql.NullString
		timeStart sql.NullString
		timeStop  sql.NullString
		cpuSecs   sql.NullInt64
		createdAt string
	)
	err := row.Scan(&rec.ID, &rec.Name, &rec.Project, &rec.JobType, &rec.Status, &rec.RunMode,
		&queueID, &parentID, &masterID, &workDir, &timeStart, &timeStop, &cpuSecs, &createdAt)
	if err != nil {
		return nil, err
	}

	rec.QueueID = queueID.String
	rec.ParentID = parentID.Int64
	rec.MasterID = masterID.Int64
	rec.WorkingDir = workDir.String
	rec.TotalCPUSecs = cpuSecs.Int64
	if t, err := parseTime(timeStart); err == nil {
		rec.TimeStart = t
	}
	if t, err := parseTime(timeStop); err == nil {
		rec.TimeStop = t
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}

func parseTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullID(v int64) any {
	if v <= 0 {
		return nil
	}
	return v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
