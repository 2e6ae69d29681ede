package deploy

import (
	"errors"
	"fmt"
)

// Status is the verdict of a single task.
type Status int

const (
	// StatusUnknown is the zero value; an outcome nobody filled in counts as a failure.
	StatusUnknown Status = iota
	// StatusSuccess marks a task that reached its goal.
	StatusSuccess
	// StatusFailure marks a task that failed for any reason.
	StatusFailure
)

// String returns a lower-case label for the status.
func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the classified result of one task. It is immutable once produced.
type Outcome struct {
	// Target is the device the task ran against.
	Target Target
	// Status is the verdict.
	Status Status
	// Detail is the human-readable diagnostic.
	Detail string
}

// Success builds a successful Outcome.
func Success(target Target, detail string) Outcome {
	return Outcome{Target: target, Status: StatusSuccess, Detail: detail}
}

// Failure builds a failed Outcome.
func Failure(target Target, detail string) Outcome {
	return Outcome{Target: target, Status: StatusFailure, Detail: detail}
}

// Succeeded reports whether the outcome is a success.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// Result is the aggregate verdict of a run.
type Result int

const (
	// AllSucceeded means every task succeeded.
	AllSucceeded Result = iota
	// AtLeastOneFailed means one or more tasks failed.
	AtLeastOneFailed
)

// Exit codes returned by the process.
const (
	ExitCodeSuccess = 0
	ExitCodeFailure = 1
)

// ErrDeploymentFailed is returned by commands when at least one task failed.
var ErrDeploymentFailed = errors.New("deployment failed on at least one device")

// String returns a lower-case label for the result.
func (r Result) String() string {
	if r == AllSucceeded {
		return "all succeeded"
	}

	return "at least one failed"
}

// ExitCode maps the result to the process exit code.
func (r Result) ExitCode() int {
	if r == AllSucceeded {
		return ExitCodeSuccess
	}

	return ExitCodeFailure
}

// Aggregate reduces the outcomes of a run to a single Result.
// It depends only on the multiset of statuses, not on their order.
func Aggregate(outcomes []Outcome) Result {
	for _, o := range outcomes {
		if !o.Succeeded() {
			return AtLeastOneFailed
		}
	}

	return AllSucceeded
}

// Count returns the number of successful and failed outcomes.
func Count(outcomes []Outcome) (succeeded, failed int) {
	for _, o := range outcomes {
		if o.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}

	return succeeded, failed
}
