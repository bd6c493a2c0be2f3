package voluntaryexits

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
)

type fakeExit struct {
	index uint64
	epoch types.Epoch
}

func (f fakeExit) ValidatorIndex() uint64 { return f.index }
func (f fakeExit) Epoch() types.Epoch     { return f.epoch }

func TestPool_InsertVoluntaryExit_DedupsAndOrders(t *testing.T) {
	p := NewPool()
	p.InsertVoluntaryExit(fakeExit{index: 9})
	p.InsertVoluntaryExit(fakeExit{index: 3})
	p.InsertVoluntaryExit(fakeExit{index: 9})

	spec := params.MainnetConfig()
	pending := p.PendingExits(spec)
	require.Len(t, pending, 2)
	require.Equal(t, uint64(3), pending[0].ValidatorIndex())
	require.Equal(t, uint64(9), pending[1].ValidatorIndex())
}

func TestPool_MarkIncluded_RemovesAndBlocksReinsertion(t *testing.T) {
	p := NewPool()
	p.InsertVoluntaryExit(fakeExit{index: 4})
	p.MarkIncluded(fakeExit{index: 4})

	spec := params.MainnetConfig()
	require.Empty(t, p.PendingExits(spec))

	p.InsertVoluntaryExit(fakeExit{index: 4})
	require.Empty(t, p.PendingExits(spec))
}

func TestPool_PendingExits_RespectsMax(t *testing.T) {
	p := NewPool()
	for i := uint64(0); i < 20; i++ {
		p.InsertVoluntaryExit(fakeExit{index: i})
	}
	spec := params.MainnetConfig()
	pending := p.PendingExits(spec)
	require.LessOrEqual(t, uint64(len(pending)), spec.MaxVoluntaryExits)
}
