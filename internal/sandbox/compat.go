package sandbox

import (
	"gitpack/internal/errors"
	"gitpack/internal/refs"
)

// CheckCompatible verifies that a sandbox created with opts can receive the
// changes of a reference with the given ancestry: same main release, and
// same official branch and version (or the default branch when the
// reference sits on none).
func CheckCompatible(opts Options, ancestry *refs.Ancestry) error {
	main, err := ancestry.MainRelease()
	if err != nil {
		return err
	}

	mismatch := func(field, sandboxValue, refValue string) error {
		return errors.Errorf(errors.CompatibilityMismatch,
			"%s mismatch: sandbox has %q, %s descends from %q", field, sandboxValue, ancestry.Ref, refValue,
		).WithDetails(map[string]interface{}{
			"field":   field,
			"sandbox": sandboxValue,
			"ref":     refValue,
			"latest":  ancestry.Latest().Name,
		})
	}

	if opts.Release != main.Release {
		return mismatch("release", opts.Release, main.Release)
	}

	official, ok := ancestry.OfficialBranch()
	if !ok {
		if !opts.IsMainBranch() {
			return mismatch("branch", opts.Branch, refs.DefaultBranch)
		}
		return nil
	}
	if opts.Branch != official.Branch {
		return mismatch("branch", opts.Branch, official.Branch)
	}
	if opts.BranchVersion != official.Version {
		return mismatch("branch version", opts.BranchVersion, official.Version)
	}
	return nil
}
