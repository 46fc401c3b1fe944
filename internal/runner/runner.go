// Package runner executes external commands to completion, capturing
// both output streams. A process that cannot be spawned at all (missing
// binary, permission denied) is reported as an error, distinct from a
// process that runs and exits unsuccessfully.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Result holds the outcome of a completed process invocation. Both
// streams are fully drained before the exit status is inspected.
type Result struct {
	ExitSuccess bool
	ExitCode    int
	Stdout      []byte
	Stderr      []byte
}

// Runner abstracts command execution so the control loop can be tested
// without spawning real processes.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (*Result, error)
}

// ExecRunner implements Runner by spawning the command via os/exec.
type ExecRunner struct{}

// New returns a Runner backed by os/exec.
func New() *ExecRunner {
	return &ExecRunner{}
}

// Run spawns name with args in dir and blocks until the child exits.
// A non-zero exit status yields a Result with ExitSuccess false and a
// nil error; a nil error with ExitSuccess true means the child exited
// zero. A non-nil error means the process could not be spawned.
func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := &Result{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if err == nil {
		res.ExitSuccess = true
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	return nil, fmt.Errorf("spawning %q: %w", name, err)
}
