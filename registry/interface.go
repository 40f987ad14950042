package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmwaters/groupsync/config"
	"github.com/cmwaters/groupsync/pkg/group"
)

// ErrUnavailable is wrapped by every error a Client returns: transport
// failures, malformed responses and targets the registry cannot serve.
var ErrUnavailable = errors.New("registry unavailable")

type (
	// Client reads group state from a remote registry. Implementations
	// hold no state between calls and never mutate anything locally; the
	// caller decides what to do with the records.
	//
	// Both methods require target.GroupID to be set.
	Client interface {
		// Members returns the current member list of the group in
		// registry order.
		Members(ctx context.Context, target config.Target) ([]group.Member, error)

		// VerifiedSignals returns the signals whose proofs were verified
		// against the group, in the order the registry recorded them.
		VerifiedSignals(ctx context.Context, target config.Target) ([]VerifiedSignal, error)
	}

	// VerifiedSignal is a signal that passed proof verification. Only
	// Signal is guaranteed; the rest is whatever the registry recorded.
	VerifiedSignal struct {
		// Signal is the uint256 payload, decimal or 0x-prefixed hex.
		Signal string `json:"signal"`

		MerkleTreeRoot    string `json:"merkle_tree_root,omitempty"`
		ExternalNullifier string `json:"external_nullifier,omitempty"`
		NullifierHash     string `json:"nullifier_hash,omitempty"`
		BlockNumber       uint64 `json:"block_number,omitempty"`
	}
)

// Validate checks that the record carries a signal.
func (s VerifiedSignal) Validate() error {
	if s.Signal == "" {
		return errors.New("verified signal has no payload")
	}
	return nil
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}

// wrap annotates err so that it matches both itself and ErrUnavailable.
func wrap(err error, msg string) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, msg, err)
}

func checkTarget(target config.Target) error {
	if !target.HasGroup() {
		return unavailable("no group id")
	}
	return nil
}
