// Package harness launches TLS toolkit processes whose combined output is
// captured to a dedicated log file, and awaits them with explicit outcomes.
package harness

import (
	"fmt"
	"time"
)

// State tells how an Await call ended.
type State int

const (
	// StateExited means the process finished before the deadline.
	StateExited State = iota
	// StateTimedOut means the deadline passed while the process was running.
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateExited:
		return "exited"
	case StateTimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome is the result of awaiting one process. Callers must handle both
// states: an exited process has flushed its log file, a timed-out one is
// still running and owns its log file until it is killed.
type Outcome struct {
	State   State
	Err     error
	Timeout time.Duration
	Elapsed time.Duration
}

// TimedOut reports whether the deadline passed before the process exited.
func (o Outcome) TimedOut() bool {
	return o.State == StateTimedOut
}

// Failed reports whether the process exited with an error.
func (o Outcome) Failed() bool {
	return o.State == StateExited && o.Err != nil
}
