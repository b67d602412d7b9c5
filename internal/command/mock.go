package command

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"gitpack/internal/errors"
)

// MockResult is the scripted outcome of one command.
type MockResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Err, when set, is returned as is.
	Err error
	// Do runs before the result is returned, e.g. to create files the real
	// tool would have produced.
	Do func(spec Spec) error
}

// MockRunner implements Runner for testing.
type MockRunner struct {
	mu       sync.Mutex
	lookPath map[string]string
	commands map[string][]MockResult
	calls    []Spec
}

// NewMockRunner creates a new mock runner.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		lookPath: make(map[string]string),
		commands: make(map[string][]MockResult),
	}
}

// SetLookPath configures the mock to return a path for the given name.
func (m *MockRunner) SetLookPath(name, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookPath[name] = path
}

// On scripts the result for key, either a bare command name or the full
// command line ("git rev-parse HEAD"). Results queued for the same key are
// consumed in order; the last one repeats.
func (m *MockRunner) On(key string, result MockResult) *MockRunner {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[key] = append(m.commands[key], result)
	return m
}

// Stdout is a shorthand for a successful command printing out.
func (m *MockRunner) Stdout(key, out string) *MockRunner {
	return m.On(key, MockResult{Stdout: out})
}

// LookPath implements Runner.
func (m *MockRunner) LookPath(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if path, ok := m.lookPath[name]; ok {
		return path, nil
	}
	return "", exec.ErrNotFound
}

// Run implements Runner. Unscripted commands fail.
func (m *MockRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, spec)
	result, ok := m.next(spec.String())
	if !ok {
		result, ok = m.next(spec.Name)
	}
	m.mu.Unlock()

	if !ok {
		return Result{ExitCode: -1}, fmt.Errorf("mock: unexpected command %q", spec.String())
	}
	if result.Do != nil {
		if err := result.Do(spec); err != nil {
			return Result{ExitCode: -1}, err
		}
	}

	res := Result{Stdout: result.Stdout, Stderr: result.Stderr, ExitCode: result.ExitCode}
	if spec.Stdout != nil {
		_, _ = io.WriteString(spec.Stdout, result.Stdout)
		res.Stdout = ""
	}
	if spec.Stderr != nil {
		_, _ = io.WriteString(spec.Stderr, result.Stderr)
		res.Stderr = ""
	}
	if result.Err != nil {
		return res, result.Err
	}
	if result.ExitCode != 0 {
		return res, Failed(spec, res, errors.Errorf(errors.CommandFailed, "exit status %d", result.ExitCode))
	}
	return res, nil
}

func (m *MockRunner) next(key string) (MockResult, bool) {
	queue, ok := m.commands[key]
	if !ok || len(queue) == 0 {
		return MockResult{}, false
	}
	if len(queue) > 1 {
		m.commands[key] = queue[1:]
	}
	return queue[0], true
}

// Calls returns every recorded invocation in order.
func (m *MockRunner) Calls() []Spec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Spec(nil), m.calls...)
}

// CallLines returns the recorded command lines.
func (m *MockRunner) CallLines() []string {
	calls := m.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.String()
	}
	return lines
}

// Count returns how many recorded command lines start with prefix.
func (m *MockRunner) Count(prefix string) int {
	n := 0
	for _, line := range m.CallLines() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}
