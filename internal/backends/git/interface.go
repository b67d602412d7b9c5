package git

// RefKind classifies a git reference
type RefKind string

const (
	// KindCommit is a bare commit id (or HEAD)
	KindCommit RefKind = "commit"
	// KindBranch is a local or remote-tracking branch
	KindBranch RefKind = "branch"
	// KindTag is a tag
	KindTag RefKind = "tag"
)

// Reference is a name resolved to a commit
type Reference struct {
	Name   string  `json:"name"`
	Commit string  `json:"commit"`
	Kind   RefKind `json:"kind"`
	// Remote is set for remote-tracking branches
	Remote string `json:"remote,omitempty"`
}

// IsLocalBranch reports whether r is a branch with no remote.
func (r Reference) IsLocalBranch() bool {
	return r.Kind == KindBranch && r.Remote == ""
}
