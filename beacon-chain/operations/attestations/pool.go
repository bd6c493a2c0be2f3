package attestations

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
)

var numAggregated = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "aggregated_attestations",
	Help: "Number of distinct (slot, committee, data) groups in the aggregating pool",
})

// entry groups every attestation sharing one data root, tracking the union
// of attesting indices seen across all of them. Signature aggregation
// itself is a cryptographic operation out of this package's scope; an entry
// records which validators have attested, which is what a proposer needs to
// decide whether a new attestation adds coverage worth including.
type entry struct {
	first   types.Attestation
	indices map[uint64]bool
}

// AggregatingPool groups attestations sharing (slot, committee, data),
// combining their attesting-index sets as new contributions arrive, per
// spec section 4.6. Adapted from batchForkChoiceAtts/
// aggregateAndSaveForkChoiceAtts, which grouped by SSZ data-root hash and
// called a signature-aggregation helper; this pool performs the same
// grouping without the signature half, which belongs to the SSZ/crypto
// layer this module does not implement.
type AggregatingPool struct {
	mu      sync.RWMutex
	byRoot  map[types.Root]*entry
}

// NewAggregatingPool returns an empty aggregating pool.
func NewAggregatingPool() *AggregatingPool {
	return &AggregatingPool{byRoot: make(map[types.Root]*entry)}
}

// Add folds att into its data-root group, creating the group if this is its
// first contribution.
func (p *AggregatingPool) Add(att types.Attestation) {
	root, err := att.DataRoot()
	if err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.byRoot[root]
	if !ok {
		e = &entry{first: att, indices: make(map[uint64]bool)}
		p.byRoot[root] = e
	}
	for _, idx := range att.AttestingIndices() {
		e.indices[idx] = true
	}
}

// Compact updates the aggregated-group gauge. Exposed as its own step
// (rather than folded into Add) so the periodic sweep in Run can report pool
// size on the same cadence the original prepareForkChoiceAtts loop did,
// without forcing every Add call to touch the metric.
func (p *AggregatingPool) Compact() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	numAggregated.Set(float64(len(p.byRoot)))
}

// ForSlot returns every aggregated group whose attestation slot matches
// slot, for a proposer assembling a block.
func (p *AggregatingPool) ForSlot(slot types.Slot) []types.Attestation {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []types.Attestation
	for _, e := range p.byRoot {
		if e.first.Slot() == slot {
			out = append(out, e.first)
		}
	}
	return out
}

// AttestingIndices returns the union of attesting indices folded into att's
// data-root group so far.
func (p *AggregatingPool) AttestingIndices(att types.Attestation) []uint64 {
	root, err := att.DataRoot()
	if err != nil {
		return att.AttestingIndices()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byRoot[root]
	if !ok {
		return att.AttestingIndices()
	}
	out := make([]uint64, 0, len(e.indices))
	for idx := range e.indices {
		out = append(out, idx)
	}
	return out
}

// DeleteForSlot drops every group for slot, called once a block proposal
// for that slot has consumed them.
func (p *AggregatingPool) DeleteForSlot(slot types.Slot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for root, e := range p.byRoot {
		if e.first.Slot() == slot {
			delete(p.byRoot, root)
		}
	}
}
