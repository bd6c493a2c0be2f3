package kv

import (
	"fmt"
	"sync"

	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
)

type fakeBlock struct {
	root       types.Root
	slot       types.Slot
	parentRoot types.Root
}

func (b *fakeBlock) Slot() types.Slot                            { return b.slot }
func (b *fakeBlock) ParentRoot() types.Root                      { return b.parentRoot }
func (b *fakeBlock) StateRoot() types.Root                        { return types.Root{} }
func (b *fakeBlock) Root() (types.Root, error)                    { return b.root, nil }
func (b *fakeBlock) AttestationCount() int                        { return 0 }
func (b *fakeBlock) AttesterSlashings() []types.AttesterSlashing  { return nil }
func (b *fakeBlock) ProposerSlashings() []types.ProposerSlashing  { return nil }
func (b *fakeBlock) VoluntaryExits() []types.VoluntaryExit        { return nil }
func (b *fakeBlock) Attestations() []types.Attestation            { return nil }

type fakeState struct {
	slot        types.Slot
	genesisTime uint64
	justified   types.Checkpoint
	finalized   types.Checkpoint
}

func (s *fakeState) Slot() types.Slot                             { return s.slot }
func (s *fakeState) GenesisTime() uint64                          { return s.genesisTime }
func (s *fakeState) CurrentJustifiedCheckpoint() types.Checkpoint { return s.justified }
func (s *fakeState) FinalizedCheckpoint() types.Checkpoint        { return s.finalized }
func (s *fakeState) Copy() types.BeaconState {
	cp := *s
	return &cp
}

// fakeCodec stands in for a concrete SSZ codec: it "encodes" a value as an
// opaque handle into an in-process registry rather than marshaling real
// bytes, since no concrete block/state implementation exists in this module
// for a real codec to round-trip.
type fakeCodec struct {
	mu     sync.Mutex
	nextID uint64
	blocks map[string]types.SignedBlock
	states map[string]types.BeaconState
}

func newFakeCodec() *fakeCodec {
	return &fakeCodec{
		blocks: make(map[string]types.SignedBlock),
		states: make(map[string]types.BeaconState),
	}
}

func (c *fakeCodec) EncodeBlock(b types.SignedBlock) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	key := fmt.Sprintf("blk%d", c.nextID)
	c.blocks[key] = b
	return []byte(key), nil
}

func (c *fakeCodec) DecodeBlock(data []byte) (types.SignedBlock, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocks[string(data)], nil
}

func (c *fakeCodec) EncodeState(s types.BeaconState) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	key := fmt.Sprintf("st%d", c.nextID)
	c.states[key] = s
	return []byte(key), nil
}

func (c *fakeCodec) DecodeState(data []byte) (types.BeaconState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[string(data)], nil
}
