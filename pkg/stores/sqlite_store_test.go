package stores

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ccsimage/ccs-install/pkg/engine"
	"github.com/ccsimage/ccs-install/pkg/iu"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Error("health check should fail before Init")
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

// TestStoreMigrationsIdempotent runs migrations twice on a file database
func TestBusyTimeoutPragma(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    int64
	}{
		{"default", 0, 5000},
		{"configured", 1500 * time.Millisecond, 1500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewSQLiteStore(Config{Path: ":memory:", BusyTimeout: tt.timeout})
			if err != nil {
				t.Fatal(err)
			}
			if err := store.Init(context.Background()); err != nil {
				t.Fatal(err)
			}
			defer store.Close()

			var got int64
			if err := store.db.QueryRow("PRAGMA busy_timeout").Scan(&got); err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("busy_timeout = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStoreMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "runs.db")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		store, err := Open(ctx, path)
		if err != nil {
			t.Fatalf("Open #%d: %v", i, err)
		}
		if err := store.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestJournalRecordsRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	req := engine.Request{Install: []string{"A/18.12.4"}, Uninstall: []string{"B/1.0"}}
	if err := store.StartRun(ctx, "run-1", req); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	run, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != RunStatusRunning || run.CompletedAt != nil {
		t.Errorf("run = %+v, want running without completion time", run)
	}
	if !reflect.DeepEqual(run.Install, req.Install) || !reflect.DeepEqual(run.Uninstall, req.Uninstall) {
		t.Errorf("requests = %v / %v", run.Install, run.Uninstall)
	}

	started := time.Now()
	actions := []engine.Action{
		{Unit: iu.MustParse("A/18.12.3"), Direction: engine.DirectionUninstall, Reason: engine.ReasonConflict},
		{Unit: iu.MustParse("A/18.12.4"), Direction: engine.DirectionInstall, Reason: engine.ReasonRequested},
	}
	if err := store.RecordAction(ctx, "run-1", 0, actions[0], started, nil); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordAction(ctx, "run-1", 1, actions[1], started, errors.New("exit status 13")); err != nil {
		t.Fatal(err)
	}

	if err := store.FinishRun(ctx, "run-1", errors.New("[action_execution] install failed")); err != nil {
		t.Fatal(err)
	}

	run, err = store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != RunStatusFailed || run.CompletedAt == nil || run.Error == nil {
		t.Errorf("finished run = %+v", run)
	}

	records, err := store.ListActions(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d actions, want 2", len(records))
	}
	if records[0].Unit != "A/18.12.3" || records[0].Direction != "uninstall" || records[0].Reason != "conflict" || records[0].Status != ActionStatusSucceeded {
		t.Errorf("first action = %+v", records[0])
	}
	if records[1].Status != ActionStatusFailed || records[1].Error == nil || *records[1].Error != "exit status 13" {
		t.Errorf("second action = %+v", records[1])
	}
}

func TestJournalRejectsDuplicateSeq(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.StartRun(ctx, "run-1", engine.Request{}); err != nil {
		t.Fatal(err)
	}
	action := engine.Action{Unit: iu.MustParse("a/1"), Direction: engine.DirectionInstall, Reason: engine.ReasonRequested}
	if err := store.RecordAction(ctx, "run-1", 0, action, time.Now(), nil); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordAction(ctx, "run-1", 0, action, time.Now(), nil); err == nil {
		t.Error("expected error for duplicate sequence number")
	}
}

func TestRecordActionUnknownRun(t *testing.T) {
	store := setupTestStore(t)
	action := engine.Action{Unit: iu.MustParse("a/1"), Direction: engine.DirectionInstall, Reason: engine.ReasonRequested}
	if err := store.RecordAction(context.Background(), "missing", 0, action, time.Now(), nil); err == nil {
		t.Error("expected foreign key violation")
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := setupTestStore(t)
	if _, err := store.GetRun(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("error = %v, want ErrRunNotFound", err)
	}
	if err := store.FinishRun(context.Background(), "missing", nil); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("FinishRun error = %v, want ErrRunNotFound", err)
	}
}

func TestListRunsMostRecentFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "middle", "new"} {
		ts := base.Add(time.Duration(i) * time.Hour)
		store.now = func() time.Time { return ts }
		if err := store.StartRun(ctx, id, engine.Request{DryRun: i == 1}); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := store.ListRuns(ctx, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || runs[1].ID != "middle" {
		t.Fatalf("runs = %v", runIDs(runs))
	}
	if !runs[1].DryRun || runs[0].DryRun {
		t.Error("dry run flag not persisted")
	}
	if !runs[0].StartedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("StartedAt = %v", runs[0].StartedAt)
	}

	runs, err = store.ListRuns(ctx, 10, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != "old" {
		t.Errorf("offset runs = %v", runIDs(runs))
	}
}

func TestDeleteRunsBefore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	if err := store.StartRun(ctx, "old", engine.Request{}); err != nil {
		t.Fatal(err)
	}
	action := engine.Action{Unit: iu.MustParse("a/1"), Direction: engine.DirectionInstall, Reason: engine.ReasonRequested}
	if err := store.RecordAction(ctx, "old", 0, action, base, nil); err != nil {
		t.Fatal(err)
	}
	store.now = func() time.Time { return base.Add(48 * time.Hour) }
	if err := store.StartRun(ctx, "new", engine.Request{}); err != nil {
		t.Fatal(err)
	}

	n, err := store.DeleteRunsBefore(ctx, base.Add(24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("DeleteRunsBefore = %d, %v", n, err)
	}
	if _, err := store.GetRun(ctx, "old"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("old run still present: %v", err)
	}
	actions, err := store.ListActions(ctx, "old")
	if err != nil || len(actions) != 0 {
		t.Errorf("actions of deleted run = %v, %v", actions, err)
	}
}

func runIDs(runs []*Run) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}
