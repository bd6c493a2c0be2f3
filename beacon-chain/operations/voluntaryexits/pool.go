// Package voluntaryexits implements the voluntary-exit pool: a dedup set of
// validator exits waiting to be included in a proposed block, purged once a
// block carrying them has been imported. Same sorted-slice, binary-search
// dedup idiom as operations/slashings, applied to the single-index voluntary
// exit object instead of a pair of conflicting attestations.
package voluntaryexits

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
)

var numPendingExits = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "pending_voluntary_exits",
	Help: "Number of voluntary exits in the operation pool awaiting inclusion",
})

// PoolManager maintains the pending voluntary exit set used when assembling
// a block proposal.
type PoolManager interface {
	InsertVoluntaryExit(exit types.VoluntaryExit)
	PendingExits(spec *params.ChainSpec) []types.VoluntaryExit
	MarkIncluded(exit types.VoluntaryExit)
}

// Pool is the concrete PoolManager implementation.
type Pool struct {
	lock     sync.RWMutex
	pending  []types.VoluntaryExit
	included map[uint64]bool
}

// NewPool returns an empty voluntary exit pool.
func NewPool() *Pool {
	return &Pool{
		pending:  make([]types.VoluntaryExit, 0),
		included: make(map[uint64]bool),
	}
}

// InsertVoluntaryExit inserts exit into the pool unless its validator index
// has already been marked included or already has a pending exit.
func (p *Pool) InsertVoluntaryExit(exit types.VoluntaryExit) {
	p.lock.Lock()
	defer p.lock.Unlock()

	idx := exit.ValidatorIndex()
	if p.included[idx] {
		return
	}
	found := sort.Search(len(p.pending), func(i int) bool {
		return p.pending[i].ValidatorIndex() >= idx
	})
	if found != len(p.pending) && p.pending[found].ValidatorIndex() == idx {
		return
	}
	p.pending = append(p.pending, exit)
	sort.Slice(p.pending, func(i, j int) bool { return p.pending[i].ValidatorIndex() < p.pending[j].ValidatorIndex() })
	numPendingExits.Set(float64(len(p.pending)))
}

// PendingExits returns up to spec.MaxVoluntaryExits pending exits.
func (p *Pool) PendingExits(spec *params.ChainSpec) []types.VoluntaryExit {
	p.lock.RLock()
	defer p.lock.RUnlock()

	n := uint64(len(p.pending))
	if n > spec.MaxVoluntaryExits {
		n = spec.MaxVoluntaryExits
	}
	out := make([]types.VoluntaryExit, n)
	copy(out, p.pending[:n])
	return out
}

// MarkIncluded purges exit's validator index from the pending set once a
// block carrying it has been imported.
func (p *Pool) MarkIncluded(exit types.VoluntaryExit) {
	p.lock.Lock()
	defer p.lock.Unlock()
	idx := exit.ValidatorIndex()
	i := sort.Search(len(p.pending), func(i int) bool { return p.pending[i].ValidatorIndex() >= idx })
	if i != len(p.pending) && p.pending[i].ValidatorIndex() == idx {
		p.pending = append(p.pending[:i], p.pending[i+1:]...)
	}
	p.included[idx] = true
}

// Clear discards every pending exit, used to drain the pool on orderly
// shutdown rather than carry stale entries into the next process.
func (p *Pool) Clear() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.pending = p.pending[:0]
	numPendingExits.Set(0)
}
