// Package backends holds what the external tool adapters have in common.
package backends

import (
	"context"

	"gitpack/internal/version"
)

// Backend is an external tool gitpack drives
type Backend interface {
	// ID returns the unique identifier for this backend
	ID() string

	// IsAvailable checks if the tool can be run
	IsAvailable(ctx context.Context) bool

	// Installed locates the tool and reads its version
	Installed(ctx context.Context) version.Tool
}
