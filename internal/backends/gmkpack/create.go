package gmkpack

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/afero"

	"gitpack/internal/command"
	"gitpack/internal/config"
	"gitpack/internal/errors"
	"gitpack/internal/refs"
	"gitpack/internal/sandbox"
)

// DefaultPrefix is the release prefix recorded by gmkpack
const DefaultPrefix = "CY"

// defaultMainVersion numbers a main sandbox made from a release tag
const defaultMainVersion = "00"

// CreateOptions describe a new sandbox.
type CreateOptions struct {
	// Ref is the git reference the sandbox is made for; it names
	// incremental sandboxes.
	Ref string
	// Ancestor is the most specific official tag below Ref
	Ancestor refs.Tag
	Label    string
	Flag     string
	Home     string
	RootPack string
	// Main creates a standalone sandbox instead of an incremental one
	Main bool
}

// SandboxName is the conventional name of an incremental sandbox.
func SandboxName(ref, label, flag string) string {
	return strings.Join([]string{ref, label, flag}, ".")
}

// Name returns the directory gmkpack will create for o.
func (o CreateOptions) Name() string {
	if !o.Main {
		return SandboxName(o.Ref, o.Label, o.Flag)
	}
	branch, version := o.mainBranch()
	return DefaultPrefix + o.Ancestor.ReleaseNumber() + "_" + branch + "." + version + "." + o.Label + "." + o.Flag
}

func (o CreateOptions) mainBranch() (string, string) {
	if o.Ancestor.Branch == "" {
		return refs.DefaultBranch, defaultMainVersion
	}
	return o.Ancestor.Branch, o.Ancestor.Version
}

// Args renders the gmkpack command line for o.
func (o CreateOptions) Args() []string {
	args := []string{"-r", o.Ancestor.ReleaseNumber()}
	if o.Main {
		branch, version := o.mainBranch()
		args = append(args, "-b", branch, "-n", version)
	} else if o.Ancestor.Branch != "" {
		args = append(args, "-b", o.Ancestor.Branch, "-v", o.Ancestor.Version)
	}
	args = append(args, "-l", o.Label, "-o", o.Flag, "-h", o.Home)
	if !o.Main {
		args = append(args, "-u", o.Name())
		if o.RootPack != "" {
			args = append(args, "-f", o.RootPack)
		}
	}
	args = append(args, "-g", DefaultPrefix)
	if o.Main {
		args = append(args, "-a", "-K")
	}
	return args
}

func (o CreateOptions) validate() error {
	switch {
	case o.Ancestor.Release == "":
		return errors.Errorf(errors.InvalidArgument, "a sandbox needs an official ancestor tag")
	case o.Label == "":
		return errors.Errorf(errors.InvalidArgument, "a sandbox needs a compiler label (sandbox.compilerLabel)")
	case o.Flag == "":
		return errors.Errorf(errors.InvalidArgument, "a sandbox needs a compiler flag (sandbox.compilerFlag or $GMK_OPT)")
	case o.Home == "":
		return errors.Errorf(errors.InvalidArgument, "a sandbox needs a home directory")
	case !o.Main && o.Ref == "":
		return errors.Errorf(errors.InvalidArgument, "an incremental sandbox needs a reference to be named after")
	}
	return nil
}

// Create runs gmkpack to make a new sandbox and opens it. The compile-only
// script gmkpack leaves behind is removed so that the next build generates
// it with the proper options.
func Create(ctx context.Context, fs afero.Fs, runner command.Runner, cfg config.SandboxConfig, opts CreateOptions, logger *slog.Logger) (*Tool, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	name := opts.Name()
	if sandbox.Exists(fs, opts.Home, name) {
		return nil, errors.NewPackError(
			errors.SandboxExists,
			"Sandbox already exists: "+name,
			nil,
			errors.GetSuggestedFixes(errors.SandboxExists),
		)
	}
	if err := fs.MkdirAll(opts.Home, 0o755); err != nil {
		return nil, errors.Wrap(errors.InternalError, "Failed to create "+opts.Home, err)
	}

	exe := orDefault(cfg.Tool, "gmkpack")
	logger.Info("Creating sandbox",
		"name", name,
		"ancestor", opts.Ancestor.Name,
		"main", opts.Main,
	)
	if _, err := runner.Run(ctx, command.Spec{
		Dir:   opts.Home,
		Name:  exe,
		Args:  opts.Args(),
		Env:   toolEnv,
		Unset: toolUnset,
	}); err != nil {
		return nil, err
	}

	sb, err := sandbox.Open(fs, opts.Home, name)
	if err != nil {
		return nil, err
	}
	if err := sb.RemoveScript(""); err != nil {
		return nil, err
	}
	return NewTool(sb, runner, cfg, logger), nil
}
