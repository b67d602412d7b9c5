// Package refs recognizes official release tags and resolves which of them
// an arbitrary reference descends from.
package refs

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultBranch stands for "no official branch" in sandbox records.
const DefaultBranch = "main"

var (
	officialTagPattern = regexp.MustCompile(`^(CY\d{2}([TR]\d)?)(_(.+)\.(\d+))?$`)
	userBranchPattern  = regexp.MustCompile(`^(\w+?)_(CY\d{2}([TR]\d)?)_(.+)$`)
)

// Tag is an official tag split into its grammar groups.
type Tag struct {
	Name    string `json:"name"`
	Release string `json:"release"`
	// Branch and Version are both set or both empty
	Branch  string `json:"branch,omitempty"`
	Version string `json:"version,omitempty"`
}

// Parse matches name against the official tag grammar.
func Parse(name string) (Tag, bool) {
	m := officialTagPattern.FindStringSubmatch(name)
	if m == nil {
		return Tag{}, false
	}
	return Tag{Name: name, Release: m[1], Branch: m[4], Version: m[5]}, true
}

// MustParse is Parse for literals known to be valid.
func MustParse(name string) Tag {
	t, ok := Parse(name)
	if !ok {
		panic(fmt.Sprintf("refs: %q is not an official tag", name))
	}
	return t
}

// IsMainRelease reports whether the tag carries no branch.
func (t Tag) IsMainRelease() bool {
	return t.Branch == ""
}

// ReleaseNumber is the release without its CY prefix, e.g. "48T1".
func (t Tag) ReleaseNumber() string {
	return strings.TrimPrefix(t.Release, "CY")
}

// BranchOrDefault returns the branch, or DefaultBranch for a main release.
func (t Tag) BranchOrDefault() string {
	if t.IsMainRelease() {
		return DefaultBranch
	}
	return t.Branch
}

func (t Tag) String() string {
	return t.Name
}

// UserBranch is a contribution branch named <user>_<release>_<name>.
type UserBranch struct {
	User    string
	Release string
	Name    string
}

// ParseUserBranch splits a contribution branch name.
func ParseUserBranch(name string) (UserBranch, bool) {
	m := userBranchPattern.FindStringSubmatch(name)
	if m == nil {
		return UserBranch{}, false
	}
	return UserBranch{User: m[1], Release: m[2], Name: m[4]}, true
}

func (b UserBranch) String() string {
	return b.User + "_" + b.Release + "_" + b.Name
}
