package cmdexec

import (
	"context"
	"strings"
	"sync"
)

// Result is a canned reply for FakeRunner.
type Result struct {
	Output []byte
	Err    error
}

// FakeRunner replays canned results keyed by the full command line
// ("name arg1 arg2"). Unknown commands fail with ErrNotFound.
type FakeRunner struct {
	mu      sync.Mutex
	Results map[string]Result
	Calls   []string
}

// ErrNotFound is returned by FakeRunner for commands without a canned result.
var ErrNotFound = &ExitError{Command: "fake", ExitCode: 127, Stderr: "command not found"}

// Run implements Runner.
func (f *FakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	line := strings.Join(append([]string{name}, args...), " ")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, line)
	r, ok := f.Results[line]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Output, r.Err
}

var _ Runner = OSRunner{}
var _ Runner = &FakeRunner{}
