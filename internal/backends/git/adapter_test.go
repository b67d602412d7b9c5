package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gitpack/internal/command"
	"gitpack/internal/config"
	"gitpack/internal/errors"
	"gitpack/internal/slogutil"
)

// setupMockAdapter creates an adapter over a scripted runner
func setupMockAdapter(t *testing.T) (*GitAdapter, *command.MockRunner) {
	t.Helper()

	m := command.NewMockRunner()
	m.Stdout("git rev-parse --git-dir", ".git\n")

	cfg := config.DefaultConfig()
	cfg.RepoRoot = "/repo"

	adapter, err := NewGitAdapter(context.Background(), cfg, m, slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}
	return adapter, m
}

func TestNewGitAdapter_NotARepo(t *testing.T) {
	m := command.NewMockRunner()
	m.On("git rev-parse --git-dir", command.MockResult{ExitCode: 128})

	cfg := config.DefaultConfig()
	cfg.RepoRoot = "/tmp"
	_, err := NewGitAdapter(context.Background(), cfg, m, slogutil.NewDiscardLogger())
	if errors.CodeOf(err) != errors.InvalidArgument {
		t.Errorf("expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestGitAdapter_ID(t *testing.T) {
	adapter, _ := setupMockAdapter(t)

	if adapter.ID() != BackendID {
		t.Errorf("Expected ID %s, got %s", BackendID, adapter.ID())
	}
}

func TestGitAdapter_CurrentBranch(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"branch", "mary_CY49_dev\n", "mary_CY49_dev"},
		{"detached", "HEAD\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, m := setupMockAdapter(t)
			m.Stdout("git rev-parse --abbrev-ref HEAD", tt.output)

			got, err := adapter.CurrentBranch(context.Background())
			if err != nil {
				t.Fatalf("CurrentBranch: %v", err)
			}
			if got != tt.want {
				t.Errorf("CurrentBranch = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGitAdapter_IsClean(t *testing.T) {
	adapter, m := setupMockAdapter(t)
	m.Stdout("git status --porcelain --untracked-files=all", "?? new.F90\n")
	m.Stdout("git status --porcelain --untracked-files=all", "")

	clean, _ := adapter.IsClean(context.Background())
	if clean {
		t.Error("untracked file should make the tree dirty")
	}
	clean, _ = adapter.IsClean(context.Background())
	if !clean {
		t.Error("expected clean tree")
	}
}

func TestParseDecorations(t *testing.T) {
	// newest first, as git log prints them
	lines := []string{
		"c3\tHEAD -> mary_dev, origin/mary_dev",
		"c2\ttag: CY48T1_op1.02, tag: CY48T1",
		"c1\ttag: CY48, origin/main",
		"c0\t",
	}

	got := parseDecorations(lines)
	want := []TagGroup{
		{Commit: "c1", Tags: []string{"CY48"}},
		{Commit: "c2", Tags: []string{"CY48T1", "CY48T1_op1.02"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseDecorations mismatch (-want +got):\n%s", diff)
	}
}

func TestGitAdapter_DecoratedTags(t *testing.T) {
	adapter, m := setupMockAdapter(t)
	m.Stdout("git log --simplify-by-decoration --format=%H%x09%D CY38...mary_dev",
		"c2\ttag: CY48_dev.1\nc1\ttag: CY48\n")

	got, err := adapter.DecoratedTags(context.Background(), "CY38", "mary_dev")
	if err != nil {
		t.Fatalf("DecoratedTags: %v", err)
	}
	if len(got) != 2 || got[0].Tags[0] != "CY48" || got[1].Tags[0] != "CY48_dev.1" {
		t.Errorf("DecoratedTags = %+v", got)
	}

	m.On("git log --simplify-by-decoration --format=%H%x09%D CY38...nowhere", command.MockResult{ExitCode: 128})
	if _, err := adapter.DecoratedTags(context.Background(), "CY38", "nowhere"); errors.CodeOf(err) != errors.RefNotFound {
		t.Errorf("expected REF_NOT_FOUND, got %v", err)
	}
}

func TestGitAdapter_TrackedFiles(t *testing.T) {
	adapter, m := setupMockAdapter(t)
	m.Stdout("git ls-files", "arpifs/module/yomcst.F90\nsurfex/init.F90\n")

	got, err := adapter.TrackedFiles(context.Background())
	if err != nil {
		t.Fatalf("TrackedFiles: %v", err)
	}
	want := []string{"arpifs/module/yomcst.F90", "surfex/init.F90"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("TrackedFiles mismatch (-want +got):\n%s", diff)
	}
}

func TestGitAdapter_Lookup(t *testing.T) {
	adapter, m := setupMockAdapter(t)
	m.Stdout("git show-ref --heads", "aaa refs/heads/main\nbbb refs/heads/mary_dev\n")
	m.Stdout("git show-ref --tags -d",
		"t01 refs/tags/CY48\nc01 refs/tags/CY48^{}\nc02 refs/tags/CY48T1\n")
	m.Stdout("git show-ref", "aaa refs/heads/main\nddd refs/remotes/origin/joe_dev\neee refs/remotes/origin/HEAD\n")
	m.Stdout("git rev-parse --verify --quiet 0123abc^{commit}", "0123abcdef\n")
	m.On("git rev-parse --verify --quiet nothing^{commit}", command.MockResult{ExitCode: 1})

	tests := []struct {
		name    string
		want    Reference
		wantErr errors.ErrorCode
	}{
		{"mary_dev", Reference{Name: "mary_dev", Commit: "bbb", Kind: KindBranch}, ""},
		{"CY48", Reference{Name: "CY48", Commit: "c01", Kind: KindTag}, ""},
		{"CY48T1", Reference{Name: "CY48T1", Commit: "c02", Kind: KindTag}, ""},
		{"joe_dev", Reference{Name: "joe_dev", Commit: "ddd", Kind: KindBranch, Remote: "origin"}, ""},
		{"0123abc", Reference{Name: "0123abc", Commit: "0123abcdef", Kind: KindCommit}, ""},
		{"nothing", Reference{}, errors.RefNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := adapter.Lookup(context.Background(), tt.name, "origin")
			if tt.wantErr != "" {
				if errors.CodeOf(err) != tt.wantErr {
					t.Fatalf("expected %s, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Lookup mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGitAdapter_ShowRefsNoMatch(t *testing.T) {
	adapter, m := setupMockAdapter(t)
	m.On("git show-ref --heads", command.MockResult{ExitCode: 1})

	branches, err := adapter.LocalBranches(context.Background())
	if err != nil {
		t.Fatalf("exit status 1 should mean no refs, got %v", err)
	}
	if len(branches) != 0 {
		t.Errorf("LocalBranches = %v, want empty", branches)
	}
}

func TestGitAdapter_Mutations(t *testing.T) {
	adapter, m := setupMockAdapter(t)
	m.Stdout("git", "")
	ctx := context.Background()

	if err := adapter.CheckoutNewBranch(ctx, "mary_CY48_dev", "CY48"); err != nil {
		t.Fatal(err)
	}
	if err := adapter.Stage(ctx); err != nil {
		t.Fatal(err)
	}
	if err := adapter.Remove(ctx, "arpifs/old.F90"); err != nil {
		t.Fatal(err)
	}
	if err := adapter.Commit(ctx, "Contribution"); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"git rev-parse --git-dir",
		"git checkout -b mary_CY48_dev CY48",
		"git rm --quiet -- arpifs/old.F90",
		"git commit -m Contribution",
	}
	if diff := cmp.Diff(want, m.CallLines()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	for _, c := range m.Calls()[1:] {
		if c.Timeout != 0 {
			t.Errorf("%s should not carry a timeout", c)
		}
		if c.Dir != "/repo" {
			t.Errorf("%s ran in %q", c, c.Dir)
		}
	}
}

// initRepo creates a throwaway repository with a tagged history
func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	write := func(name, content string) {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	run("init", "-q", "-b", "main")
	write("arpifs/a.F90", "a\n")
	run("add", ".")
	run("commit", "-q", "-m", "base")
	run("tag", "CY48")
	write("arpifs/b.F90", "b\n")
	run("add", ".")
	run("commit", "-q", "-m", "branch point")
	run("tag", "CY48_dev.1")
	run("checkout", "-q", "-b", "mary_dev")
	write("arpifs/a.F90", "a2\n")
	run("commit", "-q", "-am", "work")
	return dir
}

func TestGitAdapter_Integration(t *testing.T) {
	dir := initRepo(t)
	ctx := context.Background()

	cfg := config.DefaultConfig()
	cfg.RepoRoot = dir
	logger := slogutil.NewDiscardLogger()
	adapter, err := NewGitAdapter(ctx, cfg, command.NewExecRunner(logger), logger)
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}

	branch, err := adapter.CurrentBranch(ctx)
	if err != nil || branch != "mary_dev" {
		t.Errorf("CurrentBranch = %q, %v", branch, err)
	}

	groups, err := adapter.DecoratedTags(ctx, "", "mary_dev")
	if err != nil {
		t.Fatalf("DecoratedTags: %v", err)
	}
	var tags []string
	for _, g := range groups {
		tags = append(tags, g.Tags...)
	}
	if diff := cmp.Diff([]string{"CY48", "CY48_dev.1"}, tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}

	lines, err := adapter.NameStatus(ctx, "CY48", "mary_dev")
	if err != nil {
		t.Fatalf("NameStatus: %v", err)
	}
	if diff := cmp.Diff([]string{"M\tarpifs/a.F90", "A\tarpifs/b.F90"}, lines); diff != "" {
		t.Errorf("NameStatus mismatch (-want +got):\n%s", diff)
	}

	ref, err := adapter.Lookup(ctx, "CY48_dev.1", "origin")
	if err != nil || ref.Kind != KindTag {
		t.Errorf("Lookup = %+v, %v", ref, err)
	}

	clean, err := adapter.IsClean(ctx)
	if err != nil || !clean {
		t.Errorf("IsClean = %v, %v", clean, err)
	}

	if err := adapter.Checkout(ctx, "CY48"); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	state, err := adapter.State(ctx)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if !state.Detached() {
		t.Error("expected detached HEAD after checking out a tag")
	}
}

func TestGitAdapter_UntrackedDirectory(t *testing.T) {
	dir := initRepo(t)
	ctx := context.Background()
	path := filepath.Join(dir, "arpifs", "newdir", "x.F90")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.RepoRoot = dir
	logger := slogutil.NewDiscardLogger()
	adapter, err := NewGitAdapter(ctx, cfg, command.NewExecRunner(logger), logger)
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}

	lines, err := adapter.StatusPorcelain(ctx)
	if err != nil {
		t.Fatalf("StatusPorcelain: %v", err)
	}
	if diff := cmp.Diff([]string{"?? arpifs/newdir/x.F90"}, lines); diff != "" {
		t.Errorf("porcelain mismatch (-want +got):\n%s", diff)
	}
}
