package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/ccsimage/ccs-install/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// SQLiteStore is the run journal. It implements engine.Journal.
type SQLiteStore struct {
	db          *sql.DB
	path        string
	busyTimeout time.Duration
	now         func() time.Time
}

var _ engine.Journal = (*SQLiteStore)(nil)

// DefaultBusyTimeout is used when Config.BusyTimeout is zero.
const DefaultBusyTimeout = 5 * time.Second

// Config holds SQLite store configuration
type Config struct {
	Path string

	// BusyTimeout is how long a statement waits on a locked database.
	BusyTimeout time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	busyTimeout := cfg.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = DefaultBusyTimeout
	}
	return &SQLiteStore{
		path:        cfg.Path,
		busyTimeout: busyTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Open creates, initializes and migrates a store in one step.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	store, err := NewSQLiteStore(Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Init opens the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	if s.path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_time_format=sqlite",
		s.path, s.busyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// A single writer process; one connection also keeps ":memory:"
	// databases from being split across connections.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// StartRun records the beginning of a run.
func (s *SQLiteStore) StartRun(ctx context.Context, runID string, req engine.Request) error {
	return s.CreateRun(ctx, &Run{
		ID:        runID,
		Status:    RunStatusRunning,
		Install:   req.Install,
		Uninstall: req.Uninstall,
		DryRun:    req.DryRun,
		StartedAt: s.now(),
	})
}

// RecordAction records the outcome of one executed action.
func (s *SQLiteStore) RecordAction(ctx context.Context, runID string, seq int, action engine.Action, started time.Time, err error) error {
	record := &ActionRecord{
		RunID:       runID,
		Seq:         seq,
		Unit:        action.Unit.String(),
		Direction:   string(action.Direction),
		Reason:      string(action.Reason),
		Status:      ActionStatusSucceeded,
		StartedAt:   started.UTC(),
		CompletedAt: s.now(),
	}
	if err != nil {
		msg := err.Error()
		record.Status = ActionStatusFailed
		record.Error = &msg
	}
	return s.CreateAction(ctx, record)
}

// FinishRun records the end of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, err error) error {
	if err != nil {
		msg := err.Error()
		return s.UpdateRunStatus(ctx, runID, RunStatusFailed, &msg)
	}
	return s.UpdateRunStatus(ctx, runID, RunStatusCompleted, nil)
}

// CreateRun creates a new run record
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	install, err := marshalList(run.Install)
	if err != nil {
		return err
	}
	uninstall, err := marshalList(run.Uninstall)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO runs (id, status, install_request, uninstall_request, dry_run, started_at, completed_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		run.ID,
		run.Status,
		install,
		uninstall,
		run.DryRun,
		run.StartedAt,
		run.CompletedAt,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, status, install_request, uninstall_request, dry_run, started_at, completed_at, error
		FROM runs
		WHERE id = ?
	`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// UpdateRunStatus sets the final status of a run.
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, id string, status RunStatus, errMsg *string) error {
	query := `
		UPDATE runs
		SET status = ?, completed_at = ?, error = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query, status, s.now(), errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	return nil
}

// ListRuns returns runs, most recent first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	query := `
		SELECT id, status, install_request, uninstall_request, dry_run, started_at, completed_at, error
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// DeleteRunsBefore removes runs started before t together with their
// actions and returns how many runs were removed.
func (s *SQLiteStore) DeleteRunsBefore(ctx context.Context, t time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", t.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	return result.RowsAffected()
}

// CreateAction inserts an action record and sets its ID.
func (s *SQLiteStore) CreateAction(ctx context.Context, action *ActionRecord) error {
	query := `
		INSERT INTO actions (run_id, seq, unit, direction, reason, status, started_at, completed_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		action.RunID,
		action.Seq,
		action.Unit,
		action.Direction,
		action.Reason,
		action.Status,
		action.StartedAt,
		action.CompletedAt,
		action.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to create action: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get action id: %w", err)
	}
	action.ID = id

	return nil
}

// ListActions returns the actions of a run in execution order.
func (s *SQLiteStore) ListActions(ctx context.Context, runID string) ([]*ActionRecord, error) {
	query := `
		SELECT id, run_id, seq, unit, direction, reason, status, started_at, completed_at, error
		FROM actions
		WHERE run_id = ?
		ORDER BY seq
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	var actions []*ActionRecord
	for rows.Next() {
		a := &ActionRecord{}
		var errMsg sql.NullString
		if err := rows.Scan(
			&a.ID,
			&a.RunID,
			&a.Seq,
			&a.Unit,
			&a.Direction,
			&a.Reason,
			&a.Status,
			&a.StartedAt,
			&a.CompletedAt,
			&errMsg,
		); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		if errMsg.Valid {
			a.Error = &errMsg.String
		}
		actions = append(actions, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating actions: %w", err)
	}

	return actions, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var (
		install, uninstall string
		completedAt        sql.NullTime
		errMsg             sql.NullString
	)
	if err := row.Scan(
		&run.ID,
		&run.Status,
		&install,
		&uninstall,
		&run.DryRun,
		&run.StartedAt,
		&completedAt,
		&errMsg,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(install), &run.Install); err != nil {
		return nil, fmt.Errorf("failed to decode install request: %w", err)
	}
	if err := json.Unmarshal([]byte(uninstall), &run.Uninstall); err != nil {
		return nil, fmt.Errorf("failed to decode uninstall request: %w", err)
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		run.Error = &errMsg.String
	}
	return run, nil
}

func marshalList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}
	return string(data), nil
}
