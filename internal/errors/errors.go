package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// RefNotFound indicates no official tag could be matched in the ref's history
	RefNotFound ErrorCode = "REF_NOT_FOUND"
	// UnknownChangeStatus indicates a diff produced a status code that cannot be synced
	UnknownChangeStatus ErrorCode = "UNKNOWN_CHANGE_STATUS"
	// CompatibilityMismatch indicates the sandbox and the ref descend from different anchors
	CompatibilityMismatch ErrorCode = "COMPATIBILITY_MISMATCH"
	// DirtyTree indicates uncommitted changes block a checkout
	DirtyTree ErrorCode = "DIRTY_TREE"
	// UnmatchedPattern indicates a script patch found no line to act on (strict mode only)
	UnmatchedPattern ErrorCode = "UNMATCHED_PATTERN"
	// ScriptGenerationFailed indicates the sandbox tool could not produce a build script
	ScriptGenerationFailed ErrorCode = "SCRIPT_GENERATION_FAILED"
	// BuildFailure indicates a single target failed to compile
	BuildFailure ErrorCode = "BUILD_FAILURE"
	// AggregateBuildFailure indicates one or more targets failed under collect-and-raise
	AggregateBuildFailure ErrorCode = "AGGREGATE_BUILD_FAILURE"
	// SandboxNotFound indicates the sandbox directory or its genesis record is missing
	SandboxNotFound ErrorCode = "SANDBOX_NOT_FOUND"
	// SandboxExists indicates a sandbox with this name already exists
	SandboxExists ErrorCode = "SANDBOX_EXISTS"
	// CommandFailed indicates an external command exited unsuccessfully
	CommandFailed ErrorCode = "COMMAND_FAILED"
	// Timeout indicates an external command timed out
	Timeout ErrorCode = "TIMEOUT"
	// InvalidArgument indicates a caller passed an unusable value
	InvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
}

// PackError represents a gitpack error with code, message, and suggestions
type PackError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error
}

// NewPackError creates a new PackError
func NewPackError(code ErrorCode, message string, cause error, suggestedFixes []FixAction) *PackError {
	return &PackError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes,
	}
}

// Wrap creates a PackError carrying the default fixes registered for code.
func Wrap(code ErrorCode, message string, cause error) *PackError {
	return NewPackError(code, message, cause, GetSuggestedFixes(code))
}

// Errorf is Wrap without a cause and with a formatted message.
func Errorf(code ErrorCode, format string, args ...interface{}) *PackError {
	return Wrap(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *PackError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *PackError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *PackError) WithDetails(details interface{}) *PackError {
	e.Details = details
	return e
}

// CodeOf returns the code of the outermost PackError in err's chain,
// or an empty code when there is none.
func CodeOf(err error) ErrorCode {
	var pe *PackError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsCode reports whether any PackError in err's chain carries code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var pe *PackError
		if !stderrors.As(err, &pe) {
			return false
		}
		if pe.Code == code {
			return true
		}
		err = pe.cause
	}
	return false
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	RefNotFound: {
		{
			Type:        RunCommand,
			Command:     "git fetch --tags",
			Safe:        true,
			Description: "Fetch official tags from the remote",
		},
	},
	DirtyTree: {
		{
			Type:        RunCommand,
			Command:     "git stash",
			Safe:        true,
			Description: "Stash local changes before switching refs",
		},
		{
			Type:        RunCommand,
			Command:     "git status",
			Safe:        true,
			Description: "Inspect uncommitted changes",
		},
	},
	CompatibilityMismatch: {
		{
			Type:        RunCommand,
			Command:     "gitpack ancestors ${ref}",
			Safe:        true,
			Description: "Show which official release the ref descends from",
		},
	},
	SandboxExists: {
		{
			Type:        RunCommand,
			Command:     "gitpack delete ${sandbox}",
			Safe:        false,
			Description: "Delete the existing sandbox first",
		},
	},
	SandboxNotFound: {
		{
			Type:        RunCommand,
			Command:     "gitpack export ${ref}",
			Safe:        true,
			Description: "Create the sandbox from a git ref",
		},
	},
	AggregateBuildFailure: {
		{
			Type:        RunCommand,
			Command:     "gitpack history --failed",
			Safe:        true,
			Description: "List the failed targets and their log files",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
