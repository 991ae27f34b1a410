package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createSchemaSQL = `CREATE TABLE IF NOT EXISTS kv_state (
        key        TEXT PRIMARY KEY,
        value      JSONB NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    CREATE TABLE IF NOT EXISTS pipeline_snapshots (
        checked_at     TIMESTAMPTZ PRIMARY KEY,
        closed_revenue NUMERIC NOT NULL,
        open_pipeline  NUMERIC NOT NULL,
        valid_count    INTEGER NOT NULL,
        alert_count    INTEGER NOT NULL,
        created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	getStateSQL = `SELECT value FROM kv_state WHERE key = $1;`

	setStateSQL = `INSERT INTO kv_state (key, value, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (key) DO UPDATE
    SET value = EXCLUDED.value,
        updated_at = now();`

	upsertSnapshotSQL = `INSERT INTO pipeline_snapshots (
        checked_at,
        closed_revenue,
        open_pipeline,
        valid_count,
        alert_count
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (checked_at) DO UPDATE
    SET closed_revenue = EXCLUDED.closed_revenue,
        open_pipeline  = EXCLUDED.open_pipeline,
        valid_count    = EXCLUDED.valid_count,
        alert_count    = EXCLUDED.alert_count;`

	listSnapshotsBetweenSQL = `SELECT
        checked_at,
        closed_revenue,
        open_pipeline,
        valid_count,
        alert_count,
        created_at
    FROM pipeline_snapshots
    WHERE checked_at >= $1
      AND checked_at < $2
    ORDER BY checked_at;`

	listRecentSnapshotsSQL = `SELECT
        checked_at,
        closed_revenue,
        open_pipeline,
        valid_count,
        alert_count,
        created_at
    FROM pipeline_snapshots
    ORDER BY checked_at DESC
    LIMIT $1;`

	countSnapshotsSQL = `SELECT COUNT(*) FROM pipeline_snapshots;`

	deleteSnapshotsBeforeSQL = `DELETE FROM pipeline_snapshots WHERE checked_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SnapshotStore defines operations for pipeline snapshot auditing.
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, snapshot PipelineSnapshot) error
	ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]PipelineSnapshot, error)
	ListRecentSnapshots(ctx context.Context, limit int) ([]PipelineSnapshot, error)
	CountSnapshots(ctx context.Context) (int64, error)
	DeleteSnapshotsBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to engine state and pipeline snapshots.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the state and snapshot tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, createSchemaSQL); execErr != nil {
		return fmt.Errorf("ensure schema: %w", execErr)
	}
	return nil
}

// Get fetches a raw state value. Missing keys return (nil, nil).
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var value []byte
	if scanErr := pool.QueryRow(ctx, getStateSQL, key).Scan(&value); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get state %q: %w", key, scanErr)
	}
	return value, nil
}

// Set writes a raw state value.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, setStateSQL, key, value); execErr != nil {
		return fmt.Errorf("set state %q: %w", key, execErr)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the lock is released anyway when the conn closes
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertSnapshot persists or updates a pipeline snapshot.
func (s *Store) UpsertSnapshot(ctx context.Context, snapshot PipelineSnapshot) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertSnapshotSQL,
		snapshot.CheckedAt,
		snapshot.ClosedRevenue.String(),
		snapshot.OpenPipeline.String(),
		snapshot.ValidCount,
		snapshot.AlertCount,
	)
	if execErr != nil {
		return fmt.Errorf("upsert snapshot: %w", execErr)
	}
	return nil
}

// ListSnapshotsBetween lists snapshots within a time window.
func (s *Store) ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]PipelineSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSnapshotsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots between: %w", queryErr)
	}
	defer rows.Close()

	return collectSnapshots(rows, 0)
}

// ListRecentSnapshots lists the most recent snapshots, newest first.
func (s *Store) ListRecentSnapshots(ctx context.Context, limit int) ([]PipelineSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSnapshotsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent snapshots: %w", queryErr)
	}
	defer rows.Close()

	return collectSnapshots(rows, limit)
}

// CountSnapshots counts stored snapshots.
func (s *Store) CountSnapshots(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSnapshotsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count snapshots: %w", scanErr)
	}
	return count, nil
}

// DeleteSnapshotsBefore removes historical snapshots and reports how many
// rows were deleted.
func (s *Store) DeleteSnapshotsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	cmdTag, execErr := pool.Exec(ctx, deleteSnapshotsBeforeSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("delete snapshots before: %w", execErr)
	}
	return cmdTag.RowsAffected(), nil
}

func collectSnapshots(rows pgx.Rows, sizeHint int) ([]PipelineSnapshot, error) {
	snapshots := make([]PipelineSnapshot, 0, sizeHint)
	for rows.Next() {
		snapshot, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		snapshots = append(snapshots, snapshot)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snapshots, nil
}

func scanSnapshot(rows pgx.Rows) (PipelineSnapshot, error) {
	var (
		checkedAt  time.Time
		closedStr  string
		openStr    string
		validCount int
		alertCount int
		createdAt  time.Time
	)

	if err := rows.Scan(
		&checkedAt,
		&closedStr,
		&openStr,
		&validCount,
		&alertCount,
		&createdAt,
	); err != nil {
		return PipelineSnapshot{}, err
	}

	closed, err := decimal.NewFromString(closedStr)
	if err != nil {
		return PipelineSnapshot{}, fmt.Errorf("parse closed revenue: %w", err)
	}
	open, err := decimal.NewFromString(openStr)
	if err != nil {
		return PipelineSnapshot{}, fmt.Errorf("parse open pipeline: %w", err)
	}

	return PipelineSnapshot{
		CheckedAt:     checkedAt,
		ClosedRevenue: closed,
		OpenPipeline:  open,
		ValidCount:    validCount,
		AlertCount:    alertCount,
		CreatedAt:     createdAt,
	}, nil
}

var (
	_ KV             = (*Store)(nil)
	_ SnapshotStore  = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
