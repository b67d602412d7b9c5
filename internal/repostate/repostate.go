package repostate

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"gitpack/internal/command"
	"gitpack/internal/errors"
)

const (
	// EmptyHash represents an empty diff/list hash
	EmptyHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

// RepoState is a snapshot of what a clone currently has checked out.
type RepoState struct {
	RepoStateID string `json:"repoStateId"`
	HeadCommit  string `json:"headCommit"`
	// Branch is empty when HEAD is detached
	Branch              string `json:"branch,omitempty"`
	StagedDiffHash      string `json:"stagedDiffHash"`
	WorkingTreeDiffHash string `json:"workingTreeDiffHash"`
	UntrackedListHash   string `json:"untrackedListHash"`
	Dirty               bool   `json:"dirty"`
	ComputedAt          string `json:"computedAt"`
}

// Detached reports whether HEAD pointed at a commit rather than a branch.
func (s *RepoState) Detached() bool {
	return s.Branch == ""
}

// CheckedOut returns the branch name, or the commit id when detached.
func (s *RepoState) CheckedOut() string {
	if s.Detached() {
		return s.HeadCommit
	}
	return s.Branch
}

type gitRunner struct {
	runner command.Runner
	git    string
	root   string
}

func (g gitRunner) run(ctx context.Context, args ...string) (string, error) {
	res, err := g.runner.Run(ctx, command.Spec{Dir: g.root, Name: g.git, Args: args})
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// ComputeRepoState computes the current repository state using git commands
func ComputeRepoState(ctx context.Context, runner command.Runner, gitExe, repoRoot string) (*RepoState, error) {
	g := gitRunner{runner: runner, git: gitExe, root: repoRoot}

	headCommit, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return nil, errors.NewPackError(
			errors.InternalError,
			"Failed to get HEAD commit",
			err,
			[]errors.FixAction{
				{
					Type:        errors.RunCommand,
					Command:     "git status",
					Safe:        true,
					Description: "Check if you're in a valid git repository",
				},
			},
		)
	}

	branch, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, errors.Wrap(errors.InternalError, "Failed to get current branch", err)
	}
	branch = strings.TrimSpace(branch)
	if branch == "HEAD" {
		branch = ""
	}

	stagedDiff, err := g.run(ctx, "diff", "--cached")
	if err != nil {
		return nil, errors.Wrap(errors.InternalError, "Failed to get staged diff", err)
	}
	workingDiff, err := g.run(ctx, "diff")
	if err != nil {
		return nil, errors.Wrap(errors.InternalError, "Failed to get working tree diff", err)
	}
	untracked, err := g.run(ctx, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, errors.Wrap(errors.InternalError, "Failed to get untracked files", err)
	}

	stagedDiffHash := hashString(stagedDiff)
	workingTreeDiffHash := hashString(workingDiff)
	untrackedListHash := hashString(untracked)
	head := strings.TrimSpace(headCommit)

	return &RepoState{
		RepoStateID:         computeRepoStateID(head, stagedDiffHash, workingTreeDiffHash, untrackedListHash),
		HeadCommit:          head,
		Branch:              branch,
		StagedDiffHash:      stagedDiffHash,
		WorkingTreeDiffHash: workingTreeDiffHash,
		UntrackedListHash:   untrackedListHash,
		Dirty: stagedDiffHash != EmptyHash ||
			workingTreeDiffHash != EmptyHash ||
			untrackedListHash != EmptyHash,
		ComputedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func hashString(s string) string {
	if s == "" {
		return EmptyHash
	}
	h := sha256.New()
	h.Write([]byte(s))
	return fmt.Sprintf("%x", h.Sum(nil))
}

func computeRepoStateID(headCommit, stagedHash, workingHash, untrackedHash string) string {
	composite := fmt.Sprintf("%s:%s:%s:%s", headCommit, stagedHash, workingHash, untrackedHash)
	return hashString(composite)
}

// IsGitRepository checks if the given path is inside a git work tree
func IsGitRepository(ctx context.Context, runner command.Runner, gitExe, path string) bool {
	_, err := runner.Run(ctx, command.Spec{Dir: path, Name: gitExe, Args: []string{"rev-parse", "--git-dir"}})
	return err == nil
}

// GetRepoRoot finds the git repository root from the given directory
func GetRepoRoot(ctx context.Context, runner command.Runner, gitExe, startPath string) (string, error) {
	res, err := runner.Run(ctx, command.Spec{Dir: startPath, Name: gitExe, Args: []string{"rev-parse", "--show-toplevel"}})
	if err != nil {
		return "", errors.NewPackError(
			errors.InvalidArgument,
			"Not a git repository",
			err,
			[]errors.FixAction{
				{
					Type:        errors.RunCommand,
					Command:     "git init",
					Safe:        false,
					Description: "Initialize a git repository",
				},
			},
		)
	}
	return strings.TrimSpace(res.Stdout), nil
}
