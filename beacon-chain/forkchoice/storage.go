package forkchoice

import (
	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
)

// StorageUpdate bundles everything a committed StoreTransaction needs
// durably persisted before the in-memory swap is allowed to take effect.
// Pruned entries are listed so the sink can drop them from its hot keyspace
// in the same write.
type StorageUpdate struct {
	Blocks           map[types.Root]types.SignedBlock
	BlockStates      map[types.Root]types.BeaconState
	CheckpointStates map[types.Checkpoint]types.BeaconState

	Justified     *types.Checkpoint
	BestJustified *types.Checkpoint
	Finalized     *types.Checkpoint

	PrunedBlocks           []types.Root
	PrunedCheckpointStates []types.Checkpoint
}

// StorageSink is the durability boundary a StoreTransaction commits through.
// The concrete implementation (a bbolt-backed KV store, see beacon-chain/db)
// is injected so this package never depends on a database engine directly —
// it only needs something that can persist an update and later replay the
// store back out on restart.
type StorageSink interface {
	// WriteUpdate durably applies u. It must not return until the write is
	// safe to consider committed; StoreTransaction.Commit will not swap the
	// in-memory store until this returns nil.
	WriteUpdate(u *StorageUpdate) error

	// LoadStore reconstructs the most recently persisted Store, if any. ok is
	// false when the sink has never been written to (first run).
	LoadStore(spec *params.ChainSpec) (store *Store, ok bool, err error)
}
