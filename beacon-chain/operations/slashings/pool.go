// Package slashings implements the attester- and proposer-slashing pools: a
// dedup set of slashings waiting to be included in a proposed block, capped
// at the chain spec's per-block maximum and purged once a block carrying them
// has been imported. Adapted from the older operations/slashings Pool, which
// held the same two sorted slices and binary-search dedup against a live
// BeaconState; that state-dependent precondition check (exited/already
// slashed) is state-transition territory out of this package's scope, so the
// pool here dedups purely against what it has already accepted or marked
// included.
package slashings

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
)

var (
	numPendingAttesterSlashings = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pending_attester_slashings",
		Help: "Number of attester slashings in the operation pool awaiting inclusion",
	})
	numPendingProposerSlashings = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pending_proposer_slashings",
		Help: "Number of proposer slashings in the operation pool awaiting inclusion",
	})
	numAttesterSlashingsIncluded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attester_slashings_included_total",
		Help: "Count of attester slashings marked included after block import",
	})
	numProposerSlashingsIncluded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposer_slashings_included_total",
		Help: "Count of proposer slashings marked included after block import",
	})
)

// pendingAttesterSlashing pairs a slashing with the validator index it
// targets, the key the pool sorts and binary-searches on.
type pendingAttesterSlashing struct {
	slashing types.AttesterSlashing
	index    uint64
}

// PoolManager maintains the pending and recently included attester and
// proposer slashing sets used when assembling a block proposal.
type PoolManager interface {
	InsertAttesterSlashing(slashing types.AttesterSlashing) error
	InsertProposerSlashing(slashing types.ProposerSlashing) error
	PendingAttesterSlashings(spec *params.ChainSpec) []types.AttesterSlashing
	PendingProposerSlashings(spec *params.ChainSpec) []types.ProposerSlashing
	MarkIncludedAttesterSlashing(slashing types.AttesterSlashing)
	MarkIncludedProposerSlashing(slashing types.ProposerSlashing)
}

// Pool is the concrete PoolManager implementation.
type Pool struct {
	lock      sync.RWMutex
	attester  []*pendingAttesterSlashing
	proposer  []types.ProposerSlashing
	included  map[uint64]bool
}

// NewPool returns an empty attester- and proposer-slashing pool.
func NewPool() *Pool {
	return &Pool{
		attester: make([]*pendingAttesterSlashing, 0),
		proposer: make([]types.ProposerSlashing, 0),
		included: make(map[uint64]bool),
	}
}

// InsertAttesterSlashing inserts slashing into the pool, once per slashed
// validator index, unless that index has already been marked included.
func (p *Pool) InsertAttesterSlashing(slashing types.AttesterSlashing) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	for _, idx := range slashing.SlashedIndices() {
		if p.included[idx] {
			continue
		}
		found := sort.Search(len(p.attester), func(i int) bool {
			return p.attester[i].index >= idx
		})
		if found != len(p.attester) && p.attester[found].index == idx {
			continue
		}
		p.attester = append(p.attester, &pendingAttesterSlashing{slashing: slashing, index: idx})
		sort.Slice(p.attester, func(i, j int) bool { return p.attester[i].index < p.attester[j].index })
	}
	numPendingAttesterSlashings.Set(float64(len(p.attester)))
	return nil
}

// InsertProposerSlashing inserts slashing into the pool unless the proposer
// has already been marked included.
func (p *Pool) InsertProposerSlashing(slashing types.ProposerSlashing) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	idx := slashing.ProposerIndex()
	if p.included[idx] {
		return nil
	}
	found := sort.Search(len(p.proposer), func(i int) bool {
		return p.proposer[i].ProposerIndex() >= idx
	})
	if found != len(p.proposer) && p.proposer[found].ProposerIndex() == idx {
		return nil
	}
	p.proposer = append(p.proposer, slashing)
	sort.Slice(p.proposer, func(i, j int) bool { return p.proposer[i].ProposerIndex() < p.proposer[j].ProposerIndex() })
	numPendingProposerSlashings.Set(float64(len(p.proposer)))
	return nil
}

// PendingAttesterSlashings returns up to spec.MaxAttesterSlashings pending
// attester slashings, one per distinct slashing object even if it targets
// several of the already-returned validator indices.
func (p *Pool) PendingAttesterSlashings(spec *params.ChainSpec) []types.AttesterSlashing {
	p.lock.RLock()
	defer p.lock.RUnlock()

	seen := make(map[types.AttesterSlashing]bool)
	out := make([]types.AttesterSlashing, 0, spec.MaxAttesterSlashings)
	for _, pending := range p.attester {
		if uint64(len(out)) >= spec.MaxAttesterSlashings {
			break
		}
		if seen[pending.slashing] {
			continue
		}
		seen[pending.slashing] = true
		out = append(out, pending.slashing)
	}
	return out
}

// PendingProposerSlashings returns up to spec.MaxProposerSlashings pending
// proposer slashings.
func (p *Pool) PendingProposerSlashings(spec *params.ChainSpec) []types.ProposerSlashing {
	p.lock.RLock()
	defer p.lock.RUnlock()

	n := uint64(len(p.proposer))
	if n > spec.MaxProposerSlashings {
		n = spec.MaxProposerSlashings
	}
	out := make([]types.ProposerSlashing, n)
	copy(out, p.proposer[:n])
	return out
}

// MarkIncludedAttesterSlashing purges slashing's targeted validator indices
// from the pending set once a block carrying it has been imported.
func (p *Pool) MarkIncludedAttesterSlashing(slashing types.AttesterSlashing) {
	p.lock.Lock()
	defer p.lock.Unlock()
	for _, idx := range slashing.SlashedIndices() {
		i := sort.Search(len(p.attester), func(i int) bool { return p.attester[i].index >= idx })
		if i != len(p.attester) && p.attester[i].index == idx {
			p.attester = append(p.attester[:i], p.attester[i+1:]...)
		}
		p.included[idx] = true
	}
	numAttesterSlashingsIncluded.Inc()
}

// MarkIncludedProposerSlashing purges slashing from the pending set once a
// block carrying it has been imported.
func (p *Pool) MarkIncludedProposerSlashing(slashing types.ProposerSlashing) {
	p.lock.Lock()
	defer p.lock.Unlock()
	idx := slashing.ProposerIndex()
	i := sort.Search(len(p.proposer), func(i int) bool { return p.proposer[i].ProposerIndex() >= idx })
	if i != len(p.proposer) && p.proposer[i].ProposerIndex() == idx {
		p.proposer = append(p.proposer[:i], p.proposer[i+1:]...)
	}
	p.included[idx] = true
	numProposerSlashingsIncluded.Inc()
}

// Clear discards every pending slashing, used to drain the pool on orderly
// shutdown rather than carry stale entries into the next process.
func (p *Pool) Clear() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.attester = p.attester[:0]
	p.proposer = p.proposer[:0]
	numPendingAttesterSlashings.Set(0)
	numPendingProposerSlashings.Set(0)
}
