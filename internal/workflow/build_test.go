package workflow

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"gitpack/internal/command"
	"gitpack/internal/errors"
	"gitpack/internal/sandbox"
	"gitpack/internal/storage"
)

const buildScript = `#!/bin/bash
export GMK_THREADS=1
Ofrt=4
export ICS_ICFMODE=full
export ICS_UPDLIBS=full
cat <<end_of_ignored_files> $GMKWRKDIR/.ignored_files
end_of_ignored_files
`

// scriptsFor queues one mocked gmkpack run per program, each producing
// the build script of that program
func scriptsFor(f *fixture, sb *sandbox.Sandbox, programs ...string) {
	for _, p := range programs {
		p := p
		f.runner.On("gmkpack", command.MockResult{Do: func(command.Spec) error {
			return afero.WriteFile(f.fs, sb.ScriptPath(p), []byte(buildScript), 0o755)
		}})
	}
}

// links makes a mocked build script produce the executable of program
func links(f *fixture, sb *sandbox.Sandbox, program string) command.MockResult {
	return command.MockResult{Do: func(command.Spec) error {
		if err := f.fs.MkdirAll(sb.BinDir(), 0o755); err != nil {
			return err
		}
		return afero.WriteFile(f.fs, filepath.Join(sb.BinDir(), strings.ToUpper(program)), nil, 0o755)
	}}
}

func TestBuild(t *testing.T) {
	f := newFixture(t)
	f.cfg.History.Enabled = true
	f.cfg.History.Path = filepath.Join(t.TempDir(), "history.db")
	f.cfg.Build.ReportFile = "build_report.json"
	f.cfg.Build.Policy = "tolerant"

	const name = "mary_dev.IMPIFC.2y"
	sb := f.sandboxAt(t, name, "gmkpack -r 48 -b dev -v 02 -l IMPIFC -o 2y -h /home/pack -u mary_dev.IMPIFC.2y -g CY")
	scriptsFor(f, sb, "", "masterodb", "bator")
	f.runner.On("cleanpack -f", command.MockResult{})
	f.runner.On(sb.ScriptPath(""), command.MockResult{})
	f.runner.On(sb.ScriptPath("masterodb"), links(f, sb, "masterodb"))
	f.runner.On(sb.ScriptPath("bator"), command.MockResult{ExitCode: 1})

	result, err := f.svc.Build(context.Background(), BuildOptions{Sandbox: name, Programs: []string{"masterodb", "bator"}})
	if err != nil {
		t.Fatalf("tolerant build should not fail: %v", err)
	}

	if diff := cmp.Diff([]string{"bator"}, result.Report.Failed()); diff != "" {
		t.Errorf("failed mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{CompilationTarget, "masterodb"}, result.Report.Succeeded()); diff != "" {
		t.Errorf("succeeded mismatch (-want +got):\n%s", diff)
	}
	if f.runner.Count("cleanpack") != 1 {
		t.Errorf("the sandbox should be cleaned once, calls: %v", f.runner.CallLines())
	}

	wantReport := filepath.Join(home, name, "build_report.json")
	if result.ReportFile != wantReport {
		t.Errorf("ReportFile = %s, want %s", result.ReportFile, wantReport)
	}
	if got := f.read(t, wantReport); !strings.Contains(got, `"bator": {`) || !strings.Contains(got, `"Output": "Build of bator failed."`) {
		t.Errorf("report file = %s", got)
	}

	if !result.Recorded {
		t.Fatal("run should be recorded")
	}
	runs, err := f.svc.History(storage.ListFilter{Sandbox: name})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(runs) != 1 || runs[0].OK || len(runs[0].Targets) != 3 || runs[0].RunID != result.Report.RunID {
		t.Errorf("history = %+v", runs)
	}
}

func TestBuild_CollectAndRaise(t *testing.T) {
	f := newFixture(t)
	f.cfg.Build.CleanFirst = false

	const name = "CY48_main.00.IMPIFC.2y"
	sb := f.sandboxAt(t, name, "gmkpack -r 48 -b main -n 00 -l IMPIFC -o 2y -h /home/pack -g CY -a -K")
	scriptsFor(f, sb, "", "bator", "pgd")
	f.runner.On(sb.ScriptPath(""), command.MockResult{})
	f.runner.On(sb.ScriptPath("bator"), command.MockResult{ExitCode: 2})
	f.runner.On(sb.ScriptPath("pgd"), links(f, sb, "pgd"))

	result, err := f.svc.Build(context.Background(), BuildOptions{
		Sandbox:  name,
		Programs: []string{"bator", "pgd"},
		Policy:   "collect_and_raise",
	})
	if !errors.IsCode(err, errors.AggregateBuildFailure) {
		t.Fatalf("expected AGGREGATE_BUILD_FAILURE, got %v", err)
	}
	if result == nil || len(result.Report.Entries()) != 3 || result.Recorded {
		t.Fatalf("result = %+v", result)
	}

	script := f.read(t, sb.ScriptPath("pgd"))
	for _, line := range []string{"export ICS_ICFMODE=off", "export ICS_UPDLIBS=off", "export GMK_THREADS=32"} {
		if !strings.Contains(script, line) {
			t.Errorf("pgd script misses %q:\n%s", line, script)
		}
	}
	if strings.Contains(f.read(t, sb.ScriptPath("")), "ICS_ICFMODE=off") {
		t.Error("the compilation target must compile")
	}
}

func TestBuild_Refusals(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Build(context.Background(), BuildOptions{Sandbox: "nope"}); !errors.IsCode(err, errors.SandboxNotFound) {
		t.Errorf("expected SANDBOX_NOT_FOUND, got %v", err)
	}
	if _, err := f.svc.Build(context.Background(), BuildOptions{Sandbox: "nope", Policy: "sometimes"}); !errors.IsCode(err, errors.InvalidArgument) {
		t.Errorf("expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestArchiveExtractDelete(t *testing.T) {
	f := newFixture(t)
	f.cfg.History.Enabled = true
	f.cfg.History.Path = filepath.Join(t.TempDir(), "history.db")

	from := f.sandboxAt(t, "a.IMPIFC.2y", "gmkpack -r 48 -l IMPIFC -o 2y -h /home/pack -u a.IMPIFC.2y -g CY")
	to := f.sandboxAt(t, "b.IMPIFC.2y", "gmkpack -r 48 -l IMPIFC -o 2y -h /home/pack -u b.IMPIFC.2y -g CY")
	f.write(t, filepath.Join(from.LocalDir(), "arpifs", "a.F90"), "A")
	f.write(t, filepath.Join(from.LocalDir(), "surfex", "b.F90"), "B")

	var buf bytes.Buffer
	archived, err := f.svc.Archive("a.IMPIFC.2y", &buf)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	extracted, err := f.svc.Extract("b.IMPIFC.2y", &buf)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if diff := cmp.Diff(archived, extracted); diff != "" {
		t.Errorf("extracted mismatch (-want +got):\n%s", diff)
	}
	if got := f.read(t, filepath.Join(to.LocalDir(), "surfex", "b.F90")); got != "B" {
		t.Errorf("extracted content = %q", got)
	}

	db, err := storage.Open(f.cfg.History.Path, f.svc.logger)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	err = storage.NewHistory(db).Record(&storage.Run{RunID: "r1", Sandbox: "a.IMPIFC.2y", Policy: "immediate", OK: true, StartedAt: now, FinishedAt: now})
	db.Close()
	if err != nil {
		t.Fatal(err)
	}

	deleted, err := f.svc.Delete("a.IMPIFC.2y")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted.Runs != 1 {
		t.Errorf("Runs = %d, want 1", deleted.Runs)
	}
	if sandbox.Exists(f.fs, home, "a.IMPIFC.2y") {
		t.Error("sandbox still exists")
	}
	if _, err := f.svc.Delete("a.IMPIFC.2y"); !errors.IsCode(err, errors.SandboxNotFound) {
		t.Errorf("expected SANDBOX_NOT_FOUND, got %v", err)
	}
}
