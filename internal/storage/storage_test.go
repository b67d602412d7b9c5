package storage

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func setupTestDB(t *testing.T) (*DB, string) {
	t.Helper()
	tmpDir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := Open(filepath.Join(tmpDir, "gitpack", "history.db"), logger)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})
	return db, tmpDir
}

func sampleRun(id, sandbox string, started time.Time, ok bool) *Run {
	run := &Run{
		RunID:      id,
		Sandbox:    sandbox,
		Policy:     "collect-and-raise",
		OK:         ok,
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Targets: []TargetResult{
			{Target: "compilation", State: "COMPILED_OK", OK: true, Output: "/pack/log/_.1", Took: 60 * time.Second},
			{Target: "masterodb", State: "COMPILED_OK", OK: true, Output: "/pack/log/masterodb.1", Took: 20 * time.Second},
		},
	}
	if !ok {
		run.Error = "build failed for bator"
		run.Targets = append(run.Targets, TargetResult{Target: "bator", State: "COMPILED_FAILED", Output: "/pack/log/bator.1", Took: 10 * time.Second})
	}
	return run
}

func TestDatabaseInitialization(t *testing.T) {
	db, tmpDir := setupTestDB(t)

	dbPath := filepath.Join(tmpDir, "gitpack", "history.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatalf("Database file was not created at %s", dbPath)
	}
	if db.Path() != dbPath {
		t.Errorf("Path() = %s", db.Path())
	}

	version, err := db.getSchemaVersion()
	if err != nil {
		t.Fatalf("Failed to get schema version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("Expected schema version %d, got %d", currentSchemaVersion, version)
	}
}

func TestDatabaseReopen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "history.db")

	db, err := Open(path, logger)
	if err != nil {
		t.Fatal(err)
	}
	if err := NewHistory(db).Record(sampleRun("r1", "sb", time.Now(), true)); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = Open(path, logger)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer db.Close()
	run, err := NewHistory(db).Get("r1")
	if err != nil || run == nil {
		t.Fatalf("run lost across reopen: %v, %v", run, err)
	}
}

func TestHistory_RecordAndGet(t *testing.T) {
	db, _ := setupTestDB(t)
	h := NewHistory(db)

	started := time.Date(2024, 3, 1, 12, 0, 0, 500, time.UTC)
	want := sampleRun("run-1", "mary_dev.IMPIFC.2y", started, false)
	if err := h.Record(want); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := h.Get("run-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("run mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"bator"}, got.Failed()); diff != "" {
		t.Errorf("Failed mismatch (-want +got):\n%s", diff)
	}

	missing, err := h.Get("nope")
	if err != nil || missing != nil {
		t.Errorf("Get(missing) = %v, %v", missing, err)
	}

	if err := h.Record(want); err == nil {
		t.Error("recording the same run twice should fail")
	}
}

func TestHistory_List(t *testing.T) {
	db, _ := setupTestDB(t)
	h := NewHistory(db)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []*Run{
		sampleRun("a", "sb1", base, true),
		sampleRun("b", "sb1", base.Add(time.Hour), false),
		sampleRun("c", "sb2", base.Add(2*time.Hour), false),
		sampleRun("d", "sb1", base.Add(3*time.Hour+time.Millisecond), true),
	}
	for _, r := range runs {
		if err := h.Record(r); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter ListFilter
		want   []string
	}{
		{"all", ListFilter{}, []string{"d", "c", "b", "a"}},
		{"sandbox", ListFilter{Sandbox: "sb1"}, []string{"d", "b", "a"}},
		{"failed", ListFilter{FailedOnly: true}, []string{"c", "b"}},
		{"failed in sandbox", ListFilter{Sandbox: "sb1", FailedOnly: true}, []string{"b"}},
		{"limit", ListFilter{Limit: 2}, []string{"d", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.List(tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			var ids []string
			for _, r := range got {
				ids = append(ids, r.RunID)
			}
			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHistory_DeleteSandbox(t *testing.T) {
	db, _ := setupTestDB(t)
	h := NewHistory(db)

	base := time.Now()
	for _, r := range []*Run{sampleRun("a", "sb1", base, true), sampleRun("b", "sb1", base, false), sampleRun("c", "sb2", base, true)} {
		if err := h.Record(r); err != nil {
			t.Fatal(err)
		}
	}

	n, err := h.DeleteSandbox("sb1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("deleted %d runs, want 2", n)
	}

	var targets int
	if err := db.QueryRow("SELECT COUNT(*) FROM build_targets").Scan(&targets); err != nil {
		t.Fatal(err)
	}
	if targets != 2 {
		t.Errorf("targets of deleted runs should cascade, %d left", targets)
	}
}
