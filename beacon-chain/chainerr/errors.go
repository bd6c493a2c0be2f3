// Package chainerr defines the sentinel error taxonomy used across the
// beacon-chain consensus core (spec taxonomy, not a type hierarchy). Each
// sentinel is wrapped with github.com/pkg/errors at its call site so that
// errors.Cause can recover the taxonomy kind while the wrapped message still
// carries call-specific detail, matching the pkg/errors idiom used throughout
// the wider Prysm stack (operations/slashings, sync/pending_blocks_queue).
package chainerr

import "github.com/pkg/errors"

// Sentinel errors an orchestrator or component caller switches on via
// errors.Cause. Component-internal detail belongs in the wrapped message, not
// in a new sentinel.
var (
	// ErrInvalidConfiguration is fatal at startup; the node must not start.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrStoreUninitialized means the store has not yet been created from
	// genesis or loaded from storage; most operations are a no-op pre-genesis.
	ErrStoreUninitialized = errors.New("fork choice store uninitialized")

	// ErrTransactionCommitFailed means the storage sink rejected a commit and
	// the prior store stays installed. No caller in this module shuts the
	// node down on it; the tick handler logs it and skips the rest of the tick.
	ErrTransactionCommitFailed = errors.New("store transaction commit failed")

	// ErrBlockInvalid is a permanent rejection of a block.
	ErrBlockInvalid = errors.New("block invalid")

	// ErrAttestationInvalid is a permanent rejection of an attestation.
	ErrAttestationInvalid = errors.New("attestation invalid")

	// ErrParentUnknown means the block/attestation's referenced root is not
	// yet in the store; callers route the item to a pending bucket. Benign.
	ErrParentUnknown = errors.New("parent block unknown")

	// ErrFutureSlot means the item is only valid at a future slot; callers
	// route it to a future bucket. Benign.
	ErrFutureSlot = errors.New("slot in the future")

	// ErrAlreadyInitialized is a hard error raised when a caller attempts to
	// set a genesis state on a store that already exists.
	ErrAlreadyInitialized = errors.New("store already initialized")

	// ErrSlotsMissed is a warning surfaced when the node jumps node_slot
	// forward to recover from drift; never fatal.
	ErrSlotsMissed = errors.New("slots missed")

	// ErrPeerTimeout means a peer request timed out; retried with backoff,
	// never fatal.
	ErrPeerTimeout = errors.New("peer request timed out")
)

// Is reports whether err (or any error it wraps) is the given sentinel. Thin
// wrapper over errors.Is kept here so callers import one package for both the
// sentinels and the comparison helper.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
