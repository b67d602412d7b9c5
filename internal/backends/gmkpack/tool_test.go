package gmkpack

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"gitpack/internal/build"
	"gitpack/internal/command"
	"gitpack/internal/config"
	"gitpack/internal/errors"
	"gitpack/internal/refs"
	"gitpack/internal/sandbox"
	"gitpack/internal/slogutil"
)

const (
	home    = "/home/pack"
	sbName  = "mary_dev.IMPIFC.2y"
	genesis = "gmkpack -r 48 -b dev -v 02 -l IMPIFC -o 2y -h /home/pack -u mary_dev.IMPIFC.2y -f /rootpack -g CY\n"
)

const baseScript = `#!/bin/bash
#SBATCH -p normal256
export GMK_THREADS=8
Ofrt=2
export ICS_ICFMODE=full
export ICS_UPDLIBS=full
cat <<end_of_ignored_files> $GMKWRKDIR/.ignored_files
end_of_ignored_files
$GMK_SUPPORT/wrapper/$GMK_BINARY
`

func newSandbox(t *testing.T, fs afero.Fs) *sandbox.Sandbox {
	t.Helper()
	root := filepath.Join(home, sbName)
	if err := fs.MkdirAll(filepath.Join(root, "src", "local"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, filepath.Join(root, sandbox.GenesisFile), []byte(genesis), 0o644); err != nil {
		t.Fatal(err)
	}
	sb, err := sandbox.Open(fs, home, sbName)
	if err != nil {
		t.Fatal(err)
	}
	return sb
}

func newTool(t *testing.T) (*Tool, *command.MockRunner, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	m := command.NewMockRunner()
	tool := NewTool(newSandbox(t, fs), m, config.DefaultConfig().Sandbox, slogutil.NewDiscardLogger())
	tool.stdout = &bytes.Buffer{}
	tool.stderr = &bytes.Buffer{}
	tool.now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC) }
	return tool, m, fs
}

// writesScript makes the mocked gmkpack produce the script of program
func writesScript(fs afero.Fs, sb *sandbox.Sandbox, program string) command.MockResult {
	return command.MockResult{Do: func(command.Spec) error {
		return afero.WriteFile(fs, sb.ScriptPath(program), []byte(baseScript), 0o755)
	}}
}

func TestCreateOptions(t *testing.T) {
	tests := []struct {
		name     string
		opts     CreateOptions
		wantName string
		wantArgs string
	}{
		{
			name: "incremental on a branch",
			opts: CreateOptions{
				Ref: "mary_dev", Ancestor: refs.MustParse("CY48_dev.02"),
				Label: "IMPIFC", Flag: "2y", Home: home, RootPack: "/rootpack",
			},
			wantName: "mary_dev.IMPIFC.2y",
			wantArgs: "-r 48 -b dev -v 02 -l IMPIFC -o 2y -h /home/pack -u mary_dev.IMPIFC.2y -f /rootpack -g CY",
		},
		{
			name: "incremental on a release",
			opts: CreateOptions{
				Ref: "CY48T1", Ancestor: refs.MustParse("CY48T1"),
				Label: "IMPIFC", Flag: "2y", Home: home,
			},
			wantName: "CY48T1.IMPIFC.2y",
			wantArgs: "-r 48T1 -l IMPIFC -o 2y -h /home/pack -u CY48T1.IMPIFC.2y -g CY",
		},
		{
			name: "main from a release",
			opts: CreateOptions{
				Ancestor: refs.MustParse("CY48"),
				Label:    "IMPIFC", Flag: "2y", Home: home, Main: true,
			},
			wantName: "CY48_main.00.IMPIFC.2y",
			wantArgs: "-r 48 -b main -n 00 -l IMPIFC -o 2y -h /home/pack -g CY -a -K",
		},
		{
			name: "main from a branch tag",
			opts: CreateOptions{
				Ancestor: refs.MustParse("CY48_dev.02"),
				Label:    "IMPIFC", Flag: "2y", Home: home, Main: true,
			},
			wantName: "CY48_dev.02.IMPIFC.2y",
			wantArgs: "-r 48 -b dev -n 02 -l IMPIFC -o 2y -h /home/pack -g CY -a -K",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.Name(); got != tt.wantName {
				t.Errorf("Name() = %q, want %q", got, tt.wantName)
			}
			if got := strings.Join(tt.opts.Args(), " "); got != tt.wantArgs {
				t.Errorf("Args() = %q\nwant     %q", got, tt.wantArgs)
			}
		})
	}
}

func TestCreate(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := command.NewMockRunner()
	root := filepath.Join(home, sbName)
	m.On("gmkpack", command.MockResult{Do: func(command.Spec) error {
		if err := fs.MkdirAll(root, 0o755); err != nil {
			return err
		}
		if err := afero.WriteFile(fs, filepath.Join(root, sandbox.GenesisFile), []byte(genesis), 0o644); err != nil {
			return err
		}
		return afero.WriteFile(fs, filepath.Join(root, "ics_"), []byte(baseScript), 0o755)
	}})

	opts := CreateOptions{
		Ref: "mary_dev", Ancestor: refs.MustParse("CY48_dev.02"),
		Label: "IMPIFC", Flag: "2y", Home: home, RootPack: "/rootpack",
	}
	tool, err := Create(context.Background(), fs, m, config.DefaultConfig().Sandbox, opts, slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	sb := tool.Sandbox()
	if sb.Name() != sbName || sb.Options().Release != "CY48" || sb.Options().Branch != "dev" {
		t.Errorf("sandbox = %s %+v", sb.Name(), sb.Options())
	}
	if sb.HasScript("") {
		t.Error("the compile-only script should be removed after creation")
	}

	call := m.Calls()[0]
	if call.Dir != home {
		t.Errorf("gmkpack ran in %q", call.Dir)
	}
	if diff := cmp.Diff([]string{"GMK_RELEASE_CASE_SENSITIVE=1"}, call.Env); diff != "" {
		t.Errorf("env mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"GMK_USER_PACKNAME_STYLE", "PACK_EXT", "PACK_PREFIX"}, call.Unset); diff != "" {
		t.Errorf("unset mismatch (-want +got):\n%s", diff)
	}
}

func TestCreate_Refusals(t *testing.T) {
	fs := afero.NewMemMapFs()
	newSandbox(t, fs)
	m := command.NewMockRunner()
	logger := slogutil.NewDiscardLogger()

	exists := CreateOptions{Ref: "mary_dev", Ancestor: refs.MustParse("CY48_dev.02"), Label: "IMPIFC", Flag: "2y", Home: home}
	_, err := Create(context.Background(), fs, m, config.SandboxConfig{}, exists, logger)
	if errors.CodeOf(err) != errors.SandboxExists {
		t.Errorf("expected SANDBOX_EXISTS, got %v", err)
	}

	noLabel := exists
	noLabel.Ref, noLabel.Label = "other", ""
	_, err = Create(context.Background(), fs, m, config.SandboxConfig{}, noLabel, logger)
	if errors.CodeOf(err) != errors.InvalidArgument {
		t.Errorf("expected INVALID_ARGUMENT, got %v", err)
	}

	if n := len(m.Calls()); n != 0 {
		t.Errorf("gmkpack must not run, got %d calls", n)
	}
}

func TestGenerateBuildScript(t *testing.T) {
	tool, m, fs := newTool(t)
	sb := tool.Sandbox()
	if err := sb.WriteIgnored([]string{"arpifs/old.F90"}); err != nil {
		t.Fatal(err)
	}
	m.On("gmkpack", writesScript(fs, sb, "masterodb"))

	opts := build.ScriptOptions{Threads: 16, OptLevel: 4, Partition: "normal", NoCompilation: true, NoLibsUpdate: true}
	if err := tool.GenerateBuildScript(context.Background(), "MASTERODB", opts); err != nil {
		t.Fatalf("GenerateBuildScript() error = %v", err)
	}

	wantArgs := "gmkpack -r 48 -b dev -v 02 -l IMPIFC -o 2y -h /home/pack -u mary_dev.IMPIFC.2y -f /rootpack -g CY -p masterodb"
	if diff := cmp.Diff([]string{wantArgs}, m.CallLines()); diff != "" {
		t.Errorf("command mismatch (-want +got):\n%s", diff)
	}

	got, _ := afero.ReadFile(fs, sb.ScriptPath("masterodb"))
	want := `#!/bin/bash
#SBATCH -p normal
export GMK_THREADS=16
Ofrt=4
export ICS_ICFMODE=off
export ICS_UPDLIBS=off
cat <<end_of_ignored_files> $GMKWRKDIR/.ignored_files
end_of_ignored_files
cat /home/pack/mary_dev.IMPIFC.2y/gitpack.ignore4compile >> $GMKWRKDIR/.ignored_files
$GMK_SUPPORT/wrapper/$GMK_BINARY
`
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("script mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateBuildScript_KeepsDefaults(t *testing.T) {
	tool, m, fs := newTool(t)
	sb := tool.Sandbox()
	m.On("gmkpack", writesScript(fs, sb, ""))

	if err := tool.GenerateBuildScript(context.Background(), "", build.ScriptOptions{}); err != nil {
		t.Fatal(err)
	}
	got, _ := afero.ReadFile(fs, sb.ScriptPath(""))
	if string(got) != baseScript {
		t.Errorf("script should be untouched, got:\n%s", got)
	}
}

func TestGenerateBuildScript_Failures(t *testing.T) {
	t.Run("tool fails", func(t *testing.T) {
		tool, m, _ := newTool(t)
		m.On("gmkpack", command.MockResult{ExitCode: 1, Stderr: "no such release"})
		err := tool.GenerateBuildScript(context.Background(), "bator", build.ScriptOptions{})
		if errors.CodeOf(err) != errors.CommandFailed {
			t.Errorf("expected COMMAND_FAILED, got %v", err)
		}
	})

	t.Run("no script produced", func(t *testing.T) {
		tool, m, _ := newTool(t)
		m.On("gmkpack", command.MockResult{})
		err := tool.GenerateBuildScript(context.Background(), "bator", build.ScriptOptions{})
		if errors.CodeOf(err) != errors.ScriptGenerationFailed {
			t.Errorf("expected SCRIPT_GENERATION_FAILED, got %v", err)
		}
	})

	t.Run("strict tuning", func(t *testing.T) {
		tool, m, fs := newTool(t)
		tool.Strict = true
		sb := tool.Sandbox()
		m.On("gmkpack", command.MockResult{Do: func(command.Spec) error {
			return afero.WriteFile(fs, sb.ScriptPath("bator"), []byte("#!/bin/bash\n"), 0o755)
		}})
		err := tool.GenerateBuildScript(context.Background(), "bator", build.ScriptOptions{Threads: 4})
		if errors.CodeOf(err) != errors.UnmatchedPattern {
			t.Errorf("expected UNMATCHED_PATTERN, got %v", err)
		}
	})
}

func TestRunBuildScript(t *testing.T) {
	tests := []struct {
		name       string
		program    string
		exitCode   int
		executable string
		silent     bool
		wantOK     bool
		wantOutput string
	}{
		{"compile only", "", 0, "", true, true, "/home/pack/mary_dev.IMPIFC.2y/log/_.20240301T123000"},
		{"silent program built", "masterodb", 0, "MASTERODB", true, true, "/home/pack/mary_dev.IMPIFC.2y/log/masterodb.20240301T123000"},
		{"silent failure", "bator", 2, "", true, false, "/home/pack/mary_dev.IMPIFC.2y/log/bator.20240301T123000"},
		{"executable missing", "bator", 0, "", false, false, "Build of bator failed."},
		{"loud compile failure", "", 1, "", false, false, "Compilation failed."},
		{"loud success", "pgd", 0, "pgd", false, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool, m, fs := newTool(t)
			sb := tool.Sandbox()
			_ = afero.WriteFile(fs, sb.ScriptPath(tt.program), []byte(baseScript), 0o755)
			if tt.executable != "" {
				_ = afero.WriteFile(fs, filepath.Join(sb.BinDir(), tt.executable), nil, 0o755)
			}
			m.On(sb.ScriptPath(tt.program), command.MockResult{Stdout: "compiling\n", ExitCode: tt.exitCode})

			outcome, err := tool.RunBuildScript(context.Background(), tt.program, tt.silent)
			if err != nil {
				t.Fatalf("RunBuildScript() error = %v", err)
			}
			if outcome.OK != tt.wantOK || outcome.Output != tt.wantOutput {
				t.Errorf("outcome = %+v, want ok=%v output=%q", outcome, tt.wantOK, tt.wantOutput)
			}
			if tt.silent {
				log, _ := afero.ReadFile(fs, tt.wantOutput)
				if string(log) != "compiling\n" {
					t.Errorf("log = %q", log)
				}
			}
			if call := m.Calls()[0]; call.Dir != sb.Root() {
				t.Errorf("script ran in %q", call.Dir)
			}
		})
	}
}

func TestRunBuildScript_Missing(t *testing.T) {
	tool, m, _ := newTool(t)
	_, err := tool.RunBuildScript(context.Background(), "oovar", false)
	if errors.CodeOf(err) != errors.ScriptGenerationFailed {
		t.Errorf("expected SCRIPT_GENERATION_FAILED, got %v", err)
	}
	if len(m.Calls()) != 0 {
		t.Errorf("nothing should run, got %v", m.CallLines())
	}
}

func TestScanAndClean(t *testing.T) {
	tool, m, _ := newTool(t)
	sb := tool.Sandbox()
	m.Stdout("scanpack", "arpifs/module/yomhook.F90\n  surfex/init.F90\n\n")
	m.On("cleanpack -f", command.MockResult{})

	files, err := tool.ListChangedFiles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"arpifs/module/yomhook.F90", "surfex/init.F90"}, files); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
	if err := tool.Clean(context.Background()); err != nil {
		t.Fatal(err)
	}

	calls := m.Calls()
	if calls[0].Dir != sb.LocalDir() || calls[1].Dir != sb.Root() {
		t.Errorf("dirs = %q, %q", calls[0].Dir, calls[1].Dir)
	}
}

func TestToolIsACompiler(t *testing.T) {
	var _ build.Compiler = (*Tool)(nil)
}
