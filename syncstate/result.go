package syncstate

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingGroupID is the cause of every MissingGroupID failure.
var ErrMissingGroupID = errors.New("group id is unset or not a valid identifier")

// Reason classifies why a refresh did not fully succeed.
type Reason uint8

const (
	// MissingGroupID means configuration did not resolve to a group. The
	// refresh was a no-op.
	MissingGroupID Reason = iota + 1
	// RegistryUnavailable means the registry call failed. The collection
	// kept its previous contents.
	RegistryUnavailable
	// SignalDecodeFailure means at least one signal could not be decoded
	// and was replaced by the invalid-signal marker. The collection was
	// still replaced.
	SignalDecodeFailure
)

func (r Reason) String() string {
	switch r {
	case MissingGroupID:
		return "missing_group_id"
	case RegistryUnavailable:
		return "registry_unavailable"
	case SignalDecodeFailure:
		return "signal_decode_failure"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(r))
	}
}

// Failure is a structured, recovered condition. It is returned as data and
// never raised.
type Failure struct {
	Reason Reason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Reason.String()
	}
	return fmt.Sprintf("%s: %v", f.Reason, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Result is the outcome of a refresh. Items holds the collection as it
// stands after the refresh: the new snapshot on success, the untouched
// previous contents on failure.
type Result[T any] struct {
	Items []T
	// Updated is true if the collection was replaced.
	Updated bool
	// Failure is nil if the refresh succeeded without incident.
	Failure *Failure
	// DecodeFailures counts records replaced by the invalid-signal marker.
	DecodeFailures int
}

// Err returns the failure as an error, or nil.
func (r Result[T]) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

// Status describes the refresh history of one collection, letting a UI
// tell an empty registry apart from a collection that was never loaded.
type Status struct {
	// Refreshed is true once any refresh has replaced the collection.
	Refreshed   bool
	LastRefresh time.Time
	// LastFailure is the failure of the most recent refresh, or nil if it
	// succeeded.
	LastFailure *Failure
}
