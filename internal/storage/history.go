package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// timeLayout sorts lexically in time order
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Run is one recorded build run
type Run struct {
	RunID      string         `json:"runId" yaml:"runId"`
	Sandbox    string         `json:"sandbox" yaml:"sandbox"`
	Policy     string         `json:"policy" yaml:"policy"`
	OK         bool           `json:"ok" yaml:"ok"`
	Error      string         `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time      `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt" yaml:"finishedAt"`
	Targets    []TargetResult `json:"targets" yaml:"targets"`
}

// TargetResult is the recorded outcome of one target
type TargetResult struct {
	Target string        `json:"target" yaml:"target"`
	State  string        `json:"state" yaml:"state"`
	OK     bool          `json:"ok" yaml:"ok"`
	Output string        `json:"output" yaml:"output"`
	Took   time.Duration `json:"took" yaml:"took"`
}

// Failed lists the targets of r that did not build
func (r *Run) Failed() []string {
	var names []string
	for _, t := range r.Targets {
		if !t.OK {
			names = append(names, t.Target)
		}
	}
	return names
}

// ListFilter narrows History.List
type ListFilter struct {
	Sandbox    string
	FailedOnly bool
	// Limit of 0 lists everything
	Limit int
}

// History provides access to recorded build runs
type History struct {
	db *DB
}

// NewHistory creates a new build history repository
func NewHistory(db *DB) *History {
	return &History{db: db}
}

// Record stores run and its targets
func (h *History) Record(run *Run) error {
	return h.db.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO build_runs (run_id, sandbox, policy, ok, error, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			run.RunID,
			run.Sandbox,
			run.Policy,
			run.OK,
			nullString(run.Error),
			run.StartedAt.UTC().Format(timeLayout),
			run.FinishedAt.UTC().Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("failed to record build run: %w", err)
		}

		for i, t := range run.Targets {
			_, err := tx.Exec(`
				INSERT INTO build_targets (run_id, position, target, state, ok, output, took_ms)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, run.RunID, i, t.Target, t.State, t.OK, t.Output, t.Took.Milliseconds())
			if err != nil {
				return fmt.Errorf("failed to record target %s: %w", t.Target, err)
			}
		}
		return nil
	})
}

// Get returns the run with runID, or nil when there is none
func (h *History) Get(runID string) (*Run, error) {
	var run Run
	var errText sql.NullString
	var startedAt, finishedAt string

	err := h.db.QueryRow(`
		SELECT run_id, sandbox, policy, ok, error, started_at, finished_at
		FROM build_runs
		WHERE run_id = ?
	`, runID).Scan(&run.RunID, &run.Sandbox, &run.Policy, &run.OK, &errText, &startedAt, &finishedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get build run: %w", err)
	}
	if err := fillRun(&run, errText, startedAt, finishedAt); err != nil {
		return nil, err
	}
	if run.Targets, err = h.targets(run.RunID); err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns runs, most recent first
func (h *History) List(filter ListFilter) ([]*Run, error) {
	var where []string
	var args []interface{}
	if filter.Sandbox != "" {
		where = append(where, "sandbox = ?")
		args = append(args, filter.Sandbox)
	}
	if filter.FailedOnly {
		where = append(where, "ok = 0")
	}

	query := `SELECT run_id, sandbox, policy, ok, error, started_at, finished_at FROM build_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list build runs: %w", err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}

	for _, run := range runs {
		if run.Targets, err = h.targets(run.RunID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// DeleteSandbox forgets every run of sandbox and returns how many went
func (h *History) DeleteSandbox(sandbox string) (int64, error) {
	result, err := h.db.Exec("DELETE FROM build_runs WHERE sandbox = ?", sandbox)
	if err != nil {
		return 0, fmt.Errorf("failed to delete build runs: %w", err)
	}
	return result.RowsAffected()
}

func (h *History) targets(runID string) ([]TargetResult, error) {
	rows, err := h.db.Query(`
		SELECT target, state, ok, output, took_ms
		FROM build_targets
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get build targets: %w", err)
	}
	defer rows.Close()

	var targets []TargetResult
	for rows.Next() {
		var t TargetResult
		var tookMs int64
		if err := rows.Scan(&t.Target, &t.State, &t.OK, &t.Output, &tookMs); err != nil {
			return nil, fmt.Errorf("failed to scan build target: %w", err)
		}
		t.Took = time.Duration(tookMs) * time.Millisecond
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating build targets: %w", err)
	}
	return targets, nil
}

func scanRuns(rows *sql.Rows) ([]*Run, error) {
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var errText sql.NullString
		var startedAt, finishedAt string
		if err := rows.Scan(&run.RunID, &run.Sandbox, &run.Policy, &run.OK, &errText, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan build run: %w", err)
		}
		if err := fillRun(&run, errText, startedAt, finishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating build runs: %w", err)
	}
	return runs, nil
}

func fillRun(run *Run, errText sql.NullString, startedAt, finishedAt string) error {
	var err error
	run.Error = errText.String
	if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return fmt.Errorf("invalid started_at format: %w", err)
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finishedAt); err != nil {
		return fmt.Errorf("invalid finished_at format: %w", err)
	}
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
