// Package types defines the value types shared by every package in the
// beacon-chain consensus core: slots, epochs, checkpoints, and the minimal
// block/state accessor interfaces the orchestrator needs. Concrete SSZ-backed
// block and state implementations, along with the state-transition function
// itself, live outside this module and are supplied by the host application
// through the interfaces declared here.
package types

import "fmt"

// Slot is a non-negative slot counter.
type Slot uint64

// Epoch is a non-negative epoch counter.
type Epoch uint64

// Root is a 32-byte SSZ hash tree root.
type Root [32]byte

// String implements fmt.Stringer for debug logging.
func (r Root) String() string {
	return fmt.Sprintf("%#x", [32]byte(r))
}

// Checkpoint identifies the first block of an epoch, or an earlier block if
// the epoch boundary slot was empty. Checkpoint is a comparable value so it
// can be used directly as a map key, matching the store's
// checkpoint_states map semantics.
type Checkpoint struct {
	Epoch Epoch
	Root  Root
}

// String implements fmt.Stringer for debug logging.
func (c Checkpoint) String() string {
	return fmt.Sprintf("(epoch=%d root=%s)", c.Epoch, c.Root)
}

// SignedBlock is the minimal accessor surface the consensus core needs from a
// signed beacon block. Concrete SSZ-backed types implement this.
type SignedBlock interface {
	Slot() Slot
	ParentRoot() Root
	StateRoot() Root
	Root() (Root, error)
	AttestationCount() int
	AttesterSlashings() []AttesterSlashing
	ProposerSlashings() []ProposerSlashing
	VoluntaryExits() []VoluntaryExit
	Attestations() []Attestation
}

// BeaconState is the minimal accessor surface the consensus core needs from a
// post-state. Concrete SSZ-backed types implement this.
type BeaconState interface {
	Slot() Slot
	GenesisTime() uint64
	CurrentJustifiedCheckpoint() Checkpoint
	FinalizedCheckpoint() Checkpoint
	Copy() BeaconState
}

// Attestation is a validator's vote for a head/target/source triple. Only the
// fields the fork-choice engine and operation pools need are exposed.
type Attestation interface {
	Slot() Slot
	CommitteeIndex() uint64
	BeaconBlockRoot() Root
	TargetCheckpoint() Checkpoint
	SourceCheckpoint() Checkpoint
	AttestingIndices() []uint64
	DataRoot() (Root, error)
}

// AttesterSlashing names the two conflicting attestations and the validator
// indices they jointly slash.
type AttesterSlashing interface {
	SlashedIndices() []uint64
}

// ProposerSlashing names the slashed proposer.
type ProposerSlashing interface {
	ProposerIndex() uint64
}

// VoluntaryExit names the exiting validator and its exit epoch.
type VoluntaryExit interface {
	ValidatorIndex() uint64
	Epoch() Epoch
}

// TransitionFn executes the state-transition function against a pre-state and
// a signed block, returning the resulting post-state. The consensus core
// treats this as a pure, injected collaborator: its internals (operation
// processing, signature verification, epoch processing) are out of scope.
type TransitionFn func(preState BeaconState, block SignedBlock) (BeaconState, error)

// ProcessSlotsFn advances a state to the given slot without applying a block,
// used by the fork-choice engine to materialize checkpoint states.
type ProcessSlotsFn func(state BeaconState, slot Slot) (BeaconState, error)
