package blockchain

import (
	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
	"github.com/prysmaticlabs/prysm/beacon-chain/forkchoice"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
)

type fakeBlock struct {
	root types.Root
}

func (b *fakeBlock) Slot() types.Slot                            { return 0 }
func (b *fakeBlock) ParentRoot() types.Root                      { return types.Root{} }
func (b *fakeBlock) StateRoot() types.Root                       { return types.Root{} }
func (b *fakeBlock) Root() (types.Root, error)                   { return b.root, nil }
func (b *fakeBlock) AttestationCount() int                       { return 0 }
func (b *fakeBlock) AttesterSlashings() []types.AttesterSlashing { return nil }
func (b *fakeBlock) ProposerSlashings() []types.ProposerSlashing { return nil }
func (b *fakeBlock) VoluntaryExits() []types.VoluntaryExit       { return nil }
func (b *fakeBlock) Attestations() []types.Attestation           { return nil }

type fakeState struct {
	genesisTime uint64
}

func (s *fakeState) Slot() types.Slot                             { return 0 }
func (s *fakeState) GenesisTime() uint64                          { return s.genesisTime }
func (s *fakeState) CurrentJustifiedCheckpoint() types.Checkpoint { return types.Checkpoint{} }
func (s *fakeState) FinalizedCheckpoint() types.Checkpoint        { return types.Checkpoint{} }
func (s *fakeState) Copy() types.BeaconState {
	cp := *s
	return &cp
}

type memSink struct{}

func (memSink) WriteUpdate(u *forkchoice.StorageUpdate) error { return nil }
func (memSink) LoadStore(spec *params.ChainSpec) (*forkchoice.Store, bool, error) {
	return nil, false, nil
}

func newTestStore(genesisTime uint64) *forkchoice.Service {
	spec := params.MinimalConfig()
	svc := forkchoice.NewService(spec, memSink{})
	if err := svc.InitializeFromGenesis(&fakeBlock{root: types.Root{1}}, &fakeState{genesisTime: genesisTime}); err != nil {
		panic(err)
	}
	return svc
}

type fakeSync struct{ syncing bool }

func (f *fakeSync) Syncing() bool { return f.syncing }

type fakePeers struct{ count int }

func (f *fakePeers) PeerCount() int { return f.count }

type fakeGossip struct {
	attestations []types.Slot
	aggregates   []types.Slot
}

func (g *fakeGossip) BroadcastAttestation(headRoot types.Root, slot types.Slot) {
	g.attestations = append(g.attestations, slot)
}

func (g *fakeGossip) BroadcastAggregates(slot types.Slot) {
	g.aggregates = append(g.aggregates, slot)
}
