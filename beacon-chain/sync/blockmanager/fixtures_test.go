package blockmanager

import (
	"context"
	"sync"

	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
	"github.com/prysmaticlabs/prysm/beacon-chain/forkchoice"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
)

type fakeBlock struct {
	root       types.Root
	parentRoot types.Root
	slot       types.Slot
}

func (b *fakeBlock) Slot() types.Slot                            { return b.slot }
func (b *fakeBlock) ParentRoot() types.Root                      { return b.parentRoot }
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

func newTestStore() (*forkchoice.Service, types.Root) {
	spec := params.MinimalConfig()
	genesisRoot := types.Root{1}
	svc := forkchoice.NewService(spec, memSink{})
	if err := svc.InitializeFromGenesis(&fakeBlock{root: genesisRoot}, &fakeState{}); err != nil {
		panic(err)
	}
	return svc, genesisRoot
}

// fakeImporter records every block handed to ImportBlock and optionally
// rejects a configured set of roots with chainerr.ErrParentUnknown, to
// exercise the future-sweep's re-deferral path.
type fakeImporter struct {
	mu        sync.Mutex
	imported  []types.Root
	rejectErr map[types.Root]error
}

func newFakeImporter() *fakeImporter {
	return &fakeImporter{rejectErr: make(map[types.Root]error)}
}

func (f *fakeImporter) ImportBlock(ctx context.Context, block types.SignedBlock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	root, _ := block.Root()
	if err, ok := f.rejectErr[root]; ok {
		return err
	}
	f.imported = append(f.imported, root)
	return nil
}

func (f *fakeImporter) importedRoots() []types.Root {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Root, len(f.imported))
	copy(out, f.imported)
	return out
}

// fakePeerFetcher records every requested root and reports a fixed peer set.
type fakePeerFetcher struct {
	mu        sync.Mutex
	peerIDs   []string
	requested []types.Root
}

func (f *fakePeerFetcher) Peers() []string { return f.peerIDs }

func (f *fakePeerFetcher) RequestBlockByRoot(ctx context.Context, peer string, root types.Root) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, root)
	return nil
}

func (f *fakePeerFetcher) requestedRoots() []types.Root {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Root, len(f.requested))
	copy(out, f.requested)
	return out
}
