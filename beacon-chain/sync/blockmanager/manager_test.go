package blockmanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prysmaticlabs/prysm/beacon-chain/chainerr"
	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
)

func newTestManager(t *testing.T) (*Manager, *fakeImporter, *fakePeerFetcher, types.Root) {
	t.Helper()
	store, genesisRoot := newTestStore()
	spec := params.MinimalConfig()
	importer := newFakeImporter()
	peers := &fakePeerFetcher{}
	mgr := NewManager(spec, store, peers, importer)
	return mgr, importer, peers, genesisRoot
}

func TestManager_AddPending_DedupsByRoot(t *testing.T) {
	mgr, _, _, genesisRoot := newTestManager(t)
	b := &fakeBlock{root: types.Root{2}, parentRoot: genesisRoot, slot: 1}
	mgr.AddPending(b)
	mgr.AddPending(b)
	require.Equal(t, 1, mgr.NumPending())
}

func TestManager_AddFuture_CountsEveryBlock(t *testing.T) {
	mgr, _, _, genesisRoot := newTestManager(t)
	mgr.AddFuture(&fakeBlock{root: types.Root{2}, parentRoot: genesisRoot, slot: 10})
	mgr.AddFuture(&fakeBlock{root: types.Root{3}, parentRoot: genesisRoot, slot: 10})
	require.Equal(t, 2, mgr.NumFuture())
}

func TestManager_SweepFuture_ImportsArrivedSlot(t *testing.T) {
	mgr, importer, _, genesisRoot := newTestManager(t)

	block := &fakeBlock{root: types.Root{2}, parentRoot: genesisRoot, slot: 5}
	mgr.AddFuture(block)

	tx, err := mgr.store.StartTransaction()
	require.NoError(t, err)
	require.NoError(t, tx.OnTick(60)) // MinimalConfig: 12s/slot, slot 60/12 = 5
	_, err = tx.Commit()
	require.NoError(t, err)

	mgr.sweepFuture(context.Background())

	require.Equal(t, 0, mgr.NumFuture())
	require.Equal(t, []types.Root{block.root}, importer.importedRoots())
}

func TestManager_SweepFuture_LeavesNotYetArrivedSlotAlone(t *testing.T) {
	mgr, importer, _, genesisRoot := newTestManager(t)
	mgr.AddFuture(&fakeBlock{root: types.Root{2}, parentRoot: genesisRoot, slot: 1000})

	mgr.sweepFuture(context.Background())

	require.Equal(t, 1, mgr.NumFuture())
	require.Empty(t, importer.importedRoots())
}

func TestManager_SweepFuture_RedefersToPendingOnParentUnknown(t *testing.T) {
	mgr, importer, _, genesisRoot := newTestManager(t)
	block := &fakeBlock{root: types.Root{2}, parentRoot: genesisRoot, slot: 0}
	importer.rejectErr[block.root] = chainerr.ErrParentUnknown
	mgr.AddFuture(block)

	mgr.sweepFuture(context.Background())

	require.Equal(t, 0, mgr.NumFuture())
	require.Equal(t, 1, mgr.NumPending())
}

func TestManager_SweepPending_ImportsOnceParentKnown(t *testing.T) {
	mgr, importer, peers, genesisRoot := newTestManager(t)
	child := &fakeBlock{root: types.Root{2}, parentRoot: genesisRoot, slot: 1}
	mgr.AddPending(child)
	peers.peerIDs = []string{"peer-a"}

	mgr.sweepPending(context.Background())

	require.Equal(t, []types.Root{child.root}, importer.importedRoots())
	require.Equal(t, 0, mgr.NumPending())
}

func TestManager_SweepPending_FetchesFromPeerWhenParentMissing(t *testing.T) {
	mgr, _, peers, _ := newTestManager(t)
	missingParent := types.Root{0xaa}
	child := &fakeBlock{root: types.Root{3}, parentRoot: missingParent, slot: 1}
	mgr.AddPending(child)
	peers.peerIDs = []string{"peer-a", "peer-b"}

	mgr.sweepPending(context.Background())

	require.Equal(t, 1, mgr.NumPending())
	require.Equal(t, []types.Root{missingParent}, peers.requestedRoots())
}

func TestManager_SweepPending_DropsOnlyStaleSiblingsSharingAParent(t *testing.T) {
	mgr, importer, peers, genesisRoot := newTestManager(t)
	_ = genesisRoot

	missingParent := types.Root{0xcc}
	// Two siblings on the same missing parent root, one slot finalized past
	// and one still above finality: only the stale one should be dropped.
	stale := &fakeBlock{root: types.Root{5}, parentRoot: missingParent, slot: 0}
	fresh := &fakeBlock{root: types.Root{6}, parentRoot: missingParent, slot: 200}
	mgr.AddPending(stale)
	mgr.AddPending(fresh)

	tx, err := mgr.store.StartTransaction()
	require.NoError(t, err)
	tx.SetFinalized(types.Checkpoint{Epoch: 5, Root: genesisRoot})
	_, err = tx.Commit()
	require.NoError(t, err)

	peers.peerIDs = []string{"peer-a"}
	mgr.sweepPending(context.Background())

	require.Equal(t, 1, mgr.NumPending())
	require.Empty(t, importer.importedRoots())
	require.Equal(t, []types.Root{missingParent}, peers.requestedRoots())
}

func TestManager_SweepPending_DropsChildrenBelowFinalizedEpoch(t *testing.T) {
	mgr, importer, peers, genesisRoot := newTestManager(t)
	_ = genesisRoot

	missingParent := types.Root{0xbb}
	child := &fakeBlock{root: types.Root{4}, parentRoot: missingParent, slot: 0}
	mgr.AddPending(child)

	tx, err := mgr.store.StartTransaction()
	require.NoError(t, err)
	tx.SetFinalized(types.Checkpoint{Epoch: 5, Root: genesisRoot})
	_, err = tx.Commit()
	require.NoError(t, err)

	mgr.sweepPending(context.Background())

	require.Equal(t, 0, mgr.NumPending())
	require.Empty(t, importer.importedRoots())
	require.Empty(t, peers.requestedRoots())
}
