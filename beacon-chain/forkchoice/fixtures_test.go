package forkchoice

import (
	"errors"

	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
)

var errWriteFailed = errors.New("write failed")

// fakeBlock is the narrowest possible types.SignedBlock: no concrete SSZ
// implementation exists in this module, so tests build their chains out of
// these directly rather than mocking a marshaling layer nothing here needs.
type fakeBlock struct {
	root       types.Root
	slot       types.Slot
	parentRoot types.Root
	stateRoot  types.Root
}

func (b *fakeBlock) Slot() types.Slot                             { return b.slot }
func (b *fakeBlock) ParentRoot() types.Root                       { return b.parentRoot }
func (b *fakeBlock) StateRoot() types.Root                        { return b.stateRoot }
func (b *fakeBlock) Root() (types.Root, error)                    { return b.root, nil }
func (b *fakeBlock) AttestationCount() int                        { return 0 }
func (b *fakeBlock) AttesterSlashings() []types.AttesterSlashing  { return nil }
func (b *fakeBlock) ProposerSlashings() []types.ProposerSlashing  { return nil }
func (b *fakeBlock) VoluntaryExits() []types.VoluntaryExit        { return nil }
func (b *fakeBlock) Attestations() []types.Attestation            { return nil }

// fakeState is the narrowest possible types.BeaconState.
type fakeState struct {
	slot        types.Slot
	genesisTime uint64
	justified   types.Checkpoint
	finalized   types.Checkpoint
}

func (s *fakeState) Slot() types.Slot                               { return s.slot }
func (s *fakeState) GenesisTime() uint64                            { return s.genesisTime }
func (s *fakeState) CurrentJustifiedCheckpoint() types.Checkpoint   { return s.justified }
func (s *fakeState) FinalizedCheckpoint() types.Checkpoint          { return s.finalized }
func (s *fakeState) Copy() types.BeaconState {
	cp := *s
	return &cp
}

// fakeAttestation is the narrowest possible types.Attestation.
type fakeAttestation struct {
	slot       types.Slot
	beaconRoot types.Root
	target     types.Checkpoint
	source     types.Checkpoint
	indices    []uint64
}

func (a *fakeAttestation) Slot() types.Slot                  { return a.slot }
func (a *fakeAttestation) CommitteeIndex() uint64             { return 0 }
func (a *fakeAttestation) BeaconBlockRoot() types.Root        { return a.beaconRoot }
func (a *fakeAttestation) TargetCheckpoint() types.Checkpoint { return a.target }
func (a *fakeAttestation) SourceCheckpoint() types.Checkpoint { return a.source }
func (a *fakeAttestation) AttestingIndices() []uint64         { return a.indices }
func (a *fakeAttestation) DataRoot() (types.Root, error)      { return types.Root{}, nil }

// identityTransition is a types.TransitionFn stand-in: it advances the state
// to the block's slot and otherwise leaves it untouched, mirroring the
// "processing itself is out of scope" stance the package takes toward the
// injected collaborator.
func identityTransition(preState types.BeaconState, block types.SignedBlock) (types.BeaconState, error) {
	next := preState.Copy().(*fakeState)
	next.slot = block.Slot()
	return next, nil
}

// memSink is an in-memory StorageSink stub, used so transaction tests never
// need the bbolt-backed implementation in beacon-chain/db/kv.
type memSink struct {
	loaded  *Store
	writes  int
	failNextWrite bool
}

func (m *memSink) WriteUpdate(u *StorageUpdate) error {
	if m.failNextWrite {
		m.failNextWrite = false
		return errWriteFailed
	}
	m.writes++
	return nil
}

func (m *memSink) LoadStore(spec *params.ChainSpec) (*Store, bool, error) {
	if m.loaded == nil {
		return nil, false, nil
	}
	return m.loaded, true, nil
}
