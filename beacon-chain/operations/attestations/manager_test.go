package attestations

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
	"github.com/prysmaticlabs/prysm/beacon-chain/forkchoice"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
)

type testRig struct {
	svc         *forkchoice.Service
	genesisRoot types.Root
}

func newTestManager(t *testing.T) (*Manager, *testRig) {
	t.Helper()
	svc, genesisRoot := newTestStore()
	mgr, err := NewManager(params.MinimalConfig(), svc)
	require.NoError(t, err)
	return mgr, &testRig{svc: svc, genesisRoot: genesisRoot}
}

func TestManager_Process_AcceptsKnownTargetAttestation(t *testing.T) {
	mgr, rig := newTestManager(t)
	genesisCP := rig.svc.GetStore().FinalizedCheckpoint()

	tx, err := rig.svc.StartTransaction()
	require.NoError(t, err)

	att := &fakeAttestation{beaconRoot: rig.genesisRoot, target: genesisCP, indices: []uint64{1, 2}, dataRoot: types.Root{0xaa}}
	outcome, err := mgr.Process(tx, att)
	require.NoError(t, err)
	require.Equal(t, Accept, outcome)

	idxs := mgr.Pool().AttestingIndices(att)
	require.ElementsMatch(t, []uint64{1, 2}, idxs)
}

func TestManager_Process_DedupsBySeenDataRoot(t *testing.T) {
	mgr, rig := newTestManager(t)
	genesisCP := rig.svc.GetStore().FinalizedCheckpoint()
	tx, err := rig.svc.StartTransaction()
	require.NoError(t, err)

	att := &fakeAttestation{beaconRoot: rig.genesisRoot, target: genesisCP, indices: []uint64{1}, dataRoot: types.Root{0xbb}}
	outcome, err := mgr.Process(tx, att)
	require.NoError(t, err)
	require.Equal(t, Accept, outcome)

	outcome, err = mgr.Process(tx, att)
	require.NoError(t, err)
	require.Equal(t, Accept, outcome)
}

func TestManager_Process_DeferredPendingOnUnknownTarget(t *testing.T) {
	mgr, rig := newTestManager(t)
	tx, err := rig.svc.StartTransaction()
	require.NoError(t, err)

	blockRoot := types.Root{2}
	att := &fakeAttestation{
		beaconRoot: blockRoot,
		target:     types.Checkpoint{Epoch: 9, Root: blockRoot},
		indices:    []uint64{1},
		dataRoot:   types.Root{0xcc},
	}
	outcome, err := mgr.Process(tx, att)
	require.NoError(t, err)
	require.Equal(t, DeferredPending, outcome)
	require.Len(t, mgr.pendingByRoot[blockRoot], 1)
}

func TestManager_Process_DeferredFutureOnFutureSlot(t *testing.T) {
	mgr, rig := newTestManager(t)
	genesisCP := rig.svc.GetStore().FinalizedCheckpoint()
	tx, err := rig.svc.StartTransaction()
	require.NoError(t, err)

	att := &fakeAttestation{
		slot:       10000,
		beaconRoot: rig.genesisRoot,
		target:     genesisCP,
		indices:    []uint64{1},
		dataRoot:   types.Root{0xdd},
	}
	outcome, err := mgr.Process(tx, att)
	require.NoError(t, err)
	require.Equal(t, DeferredFuture, outcome)
	require.Len(t, mgr.futureBySlot[10000], 1)
}

func TestManager_FlushForBlock_ReprocessesOnceTargetKnown(t *testing.T) {
	mgr, rig := newTestManager(t)

	blockRoot := types.Root{3}
	targetCP := types.Checkpoint{Epoch: 1, Root: blockRoot}
	att := &fakeAttestation{beaconRoot: blockRoot, target: targetCP, indices: []uint64{7}, dataRoot: types.Root{0xee}}

	tx1, err := rig.svc.StartTransaction()
	require.NoError(t, err)
	outcome, err := mgr.Process(tx1, att)
	require.NoError(t, err)
	require.Equal(t, DeferredPending, outcome)

	tx2, err := rig.svc.StartTransaction()
	require.NoError(t, err)
	tx2.PutCheckpointState(targetCP, &fakeState{})
	mgr.FlushForBlock(tx2, blockRoot)
	_, err = tx2.Commit()
	require.NoError(t, err)

	require.Empty(t, mgr.pendingByRoot[blockRoot])
	idxs := mgr.Pool().AttestingIndices(att)
	require.ElementsMatch(t, []uint64{7}, idxs)
}

func TestManager_OnSlot_FlushesFutureAndPrunesStalePending(t *testing.T) {
	mgr, rig := newTestManager(t)
	genesisCP := rig.svc.GetStore().FinalizedCheckpoint()

	tx, err := rig.svc.StartTransaction()
	require.NoError(t, err)

	future := &fakeAttestation{slot: 5, beaconRoot: rig.genesisRoot, target: genesisCP, indices: []uint64{1}, dataRoot: types.Root{0xf1}}
	outcome, err := mgr.Process(tx, future)
	require.NoError(t, err)
	require.Equal(t, DeferredFuture, outcome)

	stalePendingRoot := types.Root{4}
	stalePending := &fakeAttestation{
		beaconRoot: stalePendingRoot,
		target:     types.Checkpoint{Epoch: 0, Root: stalePendingRoot},
		indices:    []uint64{2},
		dataRoot:   types.Root{0xf2},
	}
	outcome, err = mgr.Process(tx, stalePending)
	require.NoError(t, err)
	require.Equal(t, DeferredPending, outcome)

	require.NoError(t, tx.OnTick(60))
	mgr.OnSlot(tx, 5, types.Epoch(1))

	require.Empty(t, mgr.futureBySlot[5])
	require.Empty(t, mgr.pendingByRoot[stalePendingRoot])
}
