package convert

import (
	"context"
	"errors"
	"os/exec"
	"time"
)

// commandContext is swapped out by tests to stub subprocess invocations.
var commandContext = exec.CommandContext

type cmdOutcome int

const (
	cmdOK cmdOutcome = iota
	cmdExitError
	cmdTimeout
	cmdStartError
)

// cmdResult is the tagged outcome of a bounded subprocess invocation.
type cmdResult struct {
	Outcome  cmdOutcome
	ExitCode int
	Output   []byte // combined stdout and stderr
	Err      error
}

// runCommand runs an external program, blocking until it finishes or the
// timeout converts a hang into a reported failure. There is no retry: a
// timeout is a hard cutoff.
func runCommand(ctx context.Context, timeout time.Duration, name string, args ...string) cmdResult {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := commandContext(runCtx, name, args...)
	output, err := cmd.CombinedOutput()

	if runCtx.Err() == context.DeadlineExceeded {
		return cmdResult{Outcome: cmdTimeout, Output: output, Err: runCtx.Err()}
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return cmdResult{Outcome: cmdExitError, ExitCode: exitErr.ExitCode(), Output: output, Err: err}
		}
		return cmdResult{Outcome: cmdStartError, Output: output, Err: err}
	}
	return cmdResult{Outcome: cmdOK, Output: output}
}
