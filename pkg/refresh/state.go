// Package refresh coordinates single-flight credential refresh for a client instance.
package refresh

import "time"

// Status is the outcome of the most recent refresh run.
type Status int

const (
	StatusUnknown Status = iota
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a read-only snapshot of the coordinator state.
type State struct {
	InProgress bool
	Last       Status
	SettledAt  time.Time
	Pending    int
}

// Result carries the outcome of a replayed or deferred request.
type Result[T any] struct {
	Value T
	Err   error
}
