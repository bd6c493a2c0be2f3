// Package forkchoice implements the recent-chain store: the single
// in-memory authoritative fork-choice view, its transactional mutation
// protocol, and the on_tick/on_block/on_attestation/process_head operations
// that drive it. Adapted from the Store type in the older
// beacon-chain/blockchain/forkchoice package (OnTick/OnBlock/OnAttestation/
// Head/Ancestor/LatestAttestingBalance operating directly against a db
// handle), generalized into the spec's transactional commit protocol backed
// by an injected StorageSink instead of a direct *db.BeaconDB dependency.
package forkchoice

import (
	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
)

// LatestMessage is a validator's most recent attestation vote, keyed by
// validator index in Store.latestMessages.
type LatestMessage struct {
	Epoch types.Epoch
	Root  types.Root
}

// Store is the fork-choice memory described in spec section 3. It is
// immutable once published: a StoreTransaction never mutates a live Store in
// place, it builds a new one from a copy-on-write of the prior maps and hands
// it to Service.swap, which atomically replaces the pointer readers see.
// Because a published Store is never mutated, its accessor methods need no
// locking of their own.
type Store struct {
	spec *params.ChainSpec

	genesisTime uint64
	time        uint64

	justified     types.Checkpoint
	bestJustified types.Checkpoint
	finalized     types.Checkpoint

	blocks           map[types.Root]types.SignedBlock
	blockStates      map[types.Root]types.BeaconState
	checkpointStates map[types.Checkpoint]types.BeaconState

	latestMessages map[uint64]LatestMessage
}

// NewGenesisStore synthesizes a store from an initial (genesis or interop)
// state and its corresponding genesis block, matching get_genesis_store in
// spec section 4.1.
func NewGenesisStore(spec *params.ChainSpec, genesisBlock types.SignedBlock, genesisState types.BeaconState) (*Store, error) {
	root, err := genesisBlock.Root()
	if err != nil {
		return nil, err
	}
	cp := types.Checkpoint{Epoch: types.Epoch(spec.GenesisEpoch), Root: root}
	s := &Store{
		spec:             spec,
		genesisTime:      genesisState.GenesisTime(),
		time:             genesisState.GenesisTime(),
		justified:        cp,
		bestJustified:    cp,
		finalized:        cp,
		blocks:           map[types.Root]types.SignedBlock{root: genesisBlock},
		blockStates:      map[types.Root]types.BeaconState{root: genesisState},
		checkpointStates: map[types.Checkpoint]types.BeaconState{cp: genesisState},
		latestMessages:   make(map[uint64]LatestMessage),
	}
	return s, nil
}

// RestoreStore reconstructs a Store from a previously persisted finalized
// checkpoint, its block and state, and the store's last-known clock and
// justification fields. Used by a StorageSink's LoadStore on restart; unlike
// NewGenesisStore it does not assume time == genesisTime, since the node may
// have been stopped and restarted long after genesis.
func RestoreStore(
	spec *params.ChainSpec,
	genesisTime, currentTime uint64,
	finalizedBlock types.SignedBlock,
	finalizedState types.BeaconState,
	justified, bestJustified, finalized types.Checkpoint,
) (*Store, error) {
	root, err := finalizedBlock.Root()
	if err != nil {
		return nil, err
	}
	return &Store{
		spec:             spec,
		genesisTime:      genesisTime,
		time:             currentTime,
		justified:        justified,
		bestJustified:    bestJustified,
		finalized:        finalized,
		blocks:           map[types.Root]types.SignedBlock{root: finalizedBlock},
		blockStates:      map[types.Root]types.BeaconState{root: finalizedState},
		checkpointStates: map[types.Checkpoint]types.BeaconState{finalized: finalizedState},
		latestMessages:   make(map[uint64]LatestMessage),
	}, nil
}

// copyOnWrite returns a new Store sharing the receiver's maps by reference.
// A StoreTransaction clones any map it intends to mutate before writing to
// it (see transaction.go), so the receiver is never touched after this call
// returns.
func (s *Store) copyOnWrite() *Store {
	cp := *s
	return &cp
}

// Time returns the store's current wall-clock second.
func (s *Store) Time() uint64 { return s.time }

// GenesisTime returns the store's genesis wall-clock second.
func (s *Store) GenesisTime() uint64 { return s.genesisTime }

// JustifiedCheckpoint returns the current justified checkpoint.
func (s *Store) JustifiedCheckpoint() types.Checkpoint { return s.justified }

// BestJustifiedCheckpoint returns the current best-justified checkpoint.
func (s *Store) BestJustifiedCheckpoint() types.Checkpoint { return s.bestJustified }

// FinalizedCheckpoint returns the current finalized checkpoint.
func (s *Store) FinalizedCheckpoint() types.Checkpoint { return s.finalized }

// HasBlock reports whether root is present (not pruned) in the store.
func (s *Store) HasBlock(root types.Root) bool {
	_, ok := s.blocks[root]
	return ok
}

// Block returns the block for root, if present.
func (s *Store) Block(root types.Root) (types.SignedBlock, bool) {
	b, ok := s.blocks[root]
	return b, ok
}

// State returns the post-state for root, if present and still hot.
func (s *Store) State(root types.Root) (types.BeaconState, bool) {
	st, ok := s.blockStates[root]
	return st, ok
}

// CheckpointState returns the state materialized at checkpoint cp, if any.
func (s *Store) CheckpointState(cp types.Checkpoint) (types.BeaconState, bool) {
	st, ok := s.checkpointStates[cp]
	return st, ok
}

// LatestMessage returns validator idx's latest attestation vote, if any.
func (s *Store) LatestMessage(idx uint64) (LatestMessage, bool) {
	m, ok := s.latestMessages[idx]
	return m, ok
}

// NumBlocks returns the number of non-pruned blocks, exposed for metrics and
// tests.
func (s *Store) NumBlocks() int { return len(s.blocks) }

// ReorgEvent is published whenever a commit changes the chosen head to a
// block that is not a descendant of the previous head.
type ReorgEvent struct {
	OldHead            types.Root
	NewHead            types.Root
	CommonAncestorSlot types.Slot
}
