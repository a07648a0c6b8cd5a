package verify

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shyim/kvprobe/internal/executor"
)

var ErrAssertionFailed = errors.New("assertion failed")

type Result struct {
	Passed bool
	// Notice is set when an observed command got a non-200 status. The
	// command still passes.
	Notice bool
	Mode   Mode
	Detail string
}

// Validate checks the status of one outcome against the mode the policy
// gives its command kind.
func Validate(outcome *executor.Outcome, policy Policy) Result {
	mode := policy.ModeFor(outcome.Command.Kind())
	status := outcome.StatusCode

	if mode == ModeObserve {
		if status != http.StatusOK {
			return Result{Passed: true, Notice: true, Mode: mode, Detail: fmt.Sprintf("status %d observed, not asserted", status)}
		}

		return Result{Passed: true, Mode: mode, Detail: "status 200"}
	}

	if status != http.StatusOK {
		return Result{Passed: false, Mode: mode, Detail: fmt.Sprintf("expected status 200, got %d", status)}
	}

	return Result{Passed: true, Mode: mode, Detail: "status 200"}
}

// Err returns ErrAssertionFailed for a failed result, nil otherwise.
func (r Result) Err() error {
	if r.Passed {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrAssertionFailed, r.Detail)
}
