// Package runner executes external commands (compilers and game
// servers) with a working directory and captured output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	appErr "botarena/pkg/errors"
)

// Output is the captured result of one process execution.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner runs external processes synchronously. A zero Timeout means
// no wall-clock bound; untrusted code should always get one.
type Runner struct {
	Timeout time.Duration
}

// New creates a runner with the given wall-clock timeout per process.
func New(timeout time.Duration) *Runner {
	return &Runner{Timeout: timeout}
}

// Run executes argv inside workDir and waits for it to finish.
//
// A non-zero exit is reported as a ProcessFailed error with the
// captured output attached; failure to even start the process (bad
// binary, missing workDir) is reported the same way so callers treat
// both as "the external program did not do its job". The returned
// Output is valid in every case.
func (r *Runner) Run(ctx context.Context, workDir string, argv []string) (Output, error) {
	if len(argv) == 0 {
		return Output{}, appErr.New(appErr.CommandInvalid).WithMessage("empty command")
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err == nil {
		return out, nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		return out, appErr.Newf(appErr.ProcessTimeout, "%s timed out after %s", argv[0], r.Timeout).
			WithDetail("stderr", tail(out.Stderr))
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, appErr.Newf(appErr.ProcessFailed, "%s exited with code %d", argv[0], out.ExitCode).
			WithDetail("stderr", tail(out.Stderr)).
			WithDetail("stdout", tail(out.Stdout))
	}
	return out, appErr.Wrapf(err, appErr.ProcessFailed, "start %s failed: %v", argv[0], err)
}

// tail keeps error details readable when a process dumps megabytes.
func tail(s string) string {
	const max = 4096
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
