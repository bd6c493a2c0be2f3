package attestations

import (
	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
	"github.com/prysmaticlabs/prysm/beacon-chain/forkchoice"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
)

type fakeBlock struct {
	root types.Root
	slot types.Slot
}

func (b *fakeBlock) Slot() types.Slot                            { return b.slot }
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

type fakeAttestation struct {
	slot       types.Slot
	beaconRoot types.Root
	target     types.Checkpoint
	source     types.Checkpoint
	indices    []uint64
	dataRoot   types.Root
}

func (a *fakeAttestation) Slot() types.Slot                  { return a.slot }
func (a *fakeAttestation) CommitteeIndex() uint64            { return 0 }
func (a *fakeAttestation) BeaconBlockRoot() types.Root       { return a.beaconRoot }
func (a *fakeAttestation) TargetCheckpoint() types.Checkpoint { return a.target }
func (a *fakeAttestation) SourceCheckpoint() types.Checkpoint { return a.source }
func (a *fakeAttestation) AttestingIndices() []uint64         { return a.indices }
func (a *fakeAttestation) DataRoot() (types.Root, error)      { return a.dataRoot, nil }

// memSink is a no-op forkchoice.StorageSink, enough to drive a Service
// through genesis without a bbolt-backed db/kv.Store.
type memSink struct{}

func (memSink) WriteUpdate(u *forkchoice.StorageUpdate) error { return nil }
func (memSink) LoadStore(spec *params.ChainSpec) (*forkchoice.Store, bool, error) {
	return nil, false, nil
}

func newTestStore() (*forkchoice.Service, types.Root) {
	spec := params.MinimalConfig()
	genesisRoot := types.Root{1}
	svc := forkchoice.NewService(spec, memSink{})
	if err := svc.InitializeFromGenesis(&fakeBlock{root: genesisRoot}, &fakeState{}); err != nil {
		panic(err)
	}
	return svc, genesisRoot
}
