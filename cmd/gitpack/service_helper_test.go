package main

import (
	"context"
	"testing"

	"gitpack/internal/command"
)

func TestFindRepoRoot(t *testing.T) {
	tests := []struct {
		name   string
		result command.MockResult
		want   string
	}{
		{"subdirectory of a clone", command.MockResult{Stdout: "/home/mary/repositories/IAL\n"}, "/home/mary/repositories/IAL"},
		{"outside of a clone", command.MockResult{ExitCode: 128}, "/home/mary/repositories/IAL/arpifs/adiab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := command.NewMockRunner().On("git rev-parse --show-toplevel", tt.result)
			got := findRepoRoot(context.Background(), runner, "/home/mary/repositories/IAL/arpifs/adiab")
			if got != tt.want {
				t.Errorf("findRepoRoot = %q, want %q", got, tt.want)
			}
			calls := runner.CallLines()
			if len(calls) != 1 || calls[0] != "git rev-parse --show-toplevel" {
				t.Errorf("calls = %v", calls)
			}
		})
	}
}
