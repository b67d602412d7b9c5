package sandbox

import (
	"strings"

	"gitpack/internal/errors"
	"gitpack/internal/refs"
)

// Flag is one creation flag. Value is empty for bare options such as -a.
type Flag struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// IsOption reports whether the flag takes no value.
func (f Flag) IsOption() bool {
	return f.Value == ""
}

// Options is the creation context of a sandbox, as recorded in its genesis
// line. It is read-only once parsed.
type Options struct {
	Release       string `json:"release"`
	Branch        string `json:"branch"`
	BranchVersion string `json:"branchVersion,omitempty"`
	Home          string `json:"home,omitempty"`
	Incremental   bool   `json:"incremental"`
	flags         []Flag
}

// ParseGenesis parses a genesis line: the creation command followed by
// its flags. A flag followed by a token not starting with '-' takes that
// token as value.
func ParseGenesis(line string) (Options, error) {
	tokens := strings.Fields(line)
	if len(tokens) < 2 {
		return Options{}, errors.Errorf(errors.InvalidArgument, "empty genesis line %q", line)
	}
	tokens = tokens[1:]

	var flags []Flag
	for i, tok := range tokens {
		if !strings.HasPrefix(tok, "-") {
			continue
		}
		if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") {
			flags = append(flags, Flag{Name: tok, Value: tokens[i+1]})
		} else {
			flags = append(flags, Flag{Name: tok})
		}
	}

	o := Options{flags: flags}
	release, ok := o.Arg("-r")
	if !ok {
		return Options{}, errors.Errorf(errors.InvalidArgument, "genesis line has no release (-r): %q", line)
	}
	// the release may be recorded with the -g prefix glued
	if prefix, ok := o.Arg("-g"); ok {
		release = strings.TrimPrefix(release, prefix)
	}
	o.Release = "CY" + strings.ReplaceAll(strings.ToUpper(release), "CY", "")

	o.Branch = refs.DefaultBranch
	if b, ok := o.Arg("-b"); ok {
		o.Branch = b
	}
	// incremental sandboxes record the branch version with -v, main ones
	// with -n
	if v, ok := o.Arg("-v"); ok {
		o.BranchVersion = v
	} else if !o.IsMainBranch() {
		o.BranchVersion, _ = o.Arg("-n")
	}
	o.Home, _ = o.Arg("-h")
	o.Incremental = !o.HasOption("-a")
	return o, nil
}

// Flags returns a copy of the flags in recorded order.
func (o Options) Flags() []Flag {
	return append([]Flag(nil), o.flags...)
}

// Arg returns the value of the first flag named name.
func (o Options) Arg(name string) (string, bool) {
	for _, f := range o.flags {
		if f.Name == name && !f.IsOption() {
			return f.Value, true
		}
	}
	return "", false
}

// HasOption reports whether the bare option name was given.
func (o Options) HasOption(name string) bool {
	for _, f := range o.flags {
		if f.Name == name && f.IsOption() {
			return true
		}
	}
	return false
}

// WithArg returns a copy of o with name set to value, replacing an
// existing value or appending the flag.
func (o Options) WithArg(name, value string) Options {
	flags := o.Flags()
	replaced := false
	for i := range flags {
		if flags[i].Name == name && !flags[i].IsOption() {
			flags[i].Value = value
			replaced = true
			break
		}
	}
	if !replaced {
		flags = append(flags, Flag{Name: name, Value: value})
	}
	o.flags = flags
	if name == "-h" {
		o.Home = value
	}
	return o
}

// IsMainBranch reports whether the sandbox sits on no official branch.
func (o Options) IsMainBranch() bool {
	return o.Branch == refs.DefaultBranch
}

// AncestorTag is the official tag the sandbox was created from.
func (o Options) AncestorTag() string {
	if o.IsMainBranch() {
		return o.Release
	}
	return o.Release + "_" + o.Branch + "." + o.BranchVersion
}

// Args renders the flags back as command-line arguments.
func (o Options) Args() []string {
	var args []string
	for _, f := range o.flags {
		args = append(args, f.Name)
		if !f.IsOption() {
			args = append(args, f.Value)
		}
	}
	return args
}
