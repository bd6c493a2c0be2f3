package kv

import (
	"sync"

	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
	"github.com/prysmaticlabs/prysm/beacon-chain/forkchoice"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
)

// MemoryStore is a forkchoice.StorageSink that keeps every write in process
// memory rather than on disk. It never has a finalized checkpoint to restore
// from, so LoadStore always reports ok=false. Used for interop/demo runs and
// tests, where standing up a bbolt file plus a concrete Codec is unwanted
// ceremony; a restart-persistent node registers Store from kv.go instead.
type MemoryStore struct {
	mu               sync.RWMutex
	blocks           map[types.Root]types.SignedBlock
	blockStates      map[types.Root]types.BeaconState
	checkpointStates map[types.Checkpoint]types.BeaconState
}

var _ forkchoice.StorageSink = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory sink.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blocks:           make(map[types.Root]types.SignedBlock),
		blockStates:      make(map[types.Root]types.BeaconState),
		checkpointStates: make(map[types.Checkpoint]types.BeaconState),
	}
}

// WriteUpdate applies u directly to the in-memory maps.
func (m *MemoryStore) WriteUpdate(u *forkchoice.StorageUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for root, block := range u.Blocks {
		m.blocks[root] = block
	}
	for root, state := range u.BlockStates {
		m.blockStates[root] = state
	}
	for cp, state := range u.CheckpointStates {
		m.checkpointStates[cp] = state
	}
	for _, root := range u.PrunedBlocks {
		delete(m.blocks, root)
		delete(m.blockStates, root)
	}
	for _, cp := range u.PrunedCheckpointStates {
		delete(m.checkpointStates, cp)
	}
	return nil
}

// LoadStore always reports ok=false: an in-memory sink has nothing to
// restore across a restart.
func (m *MemoryStore) LoadStore(spec *params.ChainSpec) (*forkchoice.Store, bool, error) {
	return nil, false, nil
}
