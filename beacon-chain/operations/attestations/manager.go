// Package attestations implements the attestation ingestion pipeline
// (pending/future/processed buckets gated on fork-choice readiness) and the
// aggregating pool proposers draw from when assembling a block. Adapted from
// prepare_forkchoice.go's ticker-driven batching of the unaggregated/
// aggregated/block-attestation caches into fork-choice-ready aggregates, and
// from sync's pending_blocks_queue.go for the pending/future bucket shape
// applied here to attestations instead of blocks.
package attestations

import (
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/prysmaticlabs/prysm/beacon-chain/chainerr"
	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
	"github.com/prysmaticlabs/prysm/beacon-chain/forkchoice"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
	"github.com/prysmaticlabs/prysm/shared/asyncutil"
)

var log = logrus.WithField("prefix", "attestations")

// Outcome is the result of running an attestation through Manager.Process.
type Outcome int

const (
	// Accept means the attestation was handed to on_attestation and the
	// aggregating pool, and the processed-attestation subscription fired. It
	// is also returned, with none of those steps repeated, for an attestation
	// whose data root was already seen.
	Accept Outcome = iota
	// DeferredPending means the attestation's beacon block root is not yet
	// known; it has been filed in the pending bucket.
	DeferredPending
	// DeferredFuture means the attestation's slot has not arrived yet; it
	// has been filed in the future bucket.
	DeferredFuture
	// Rejected means the attestation is permanently invalid.
	Rejected
)

// Manager holds the pending and future attestation buckets and the
// aggregating pool, and drives admission through a fork-choice transaction.
type Manager struct {
	spec  *params.ChainSpec
	store *forkchoice.Service
	pool  *AggregatingPool

	mu           sync.Mutex
	pendingByRoot map[types.Root][]types.Attestation
	futureBySlot  map[types.Slot][]types.Attestation

	seen *ristretto.Cache

	processedFeed event.Feed
}

// NewManager constructs a Manager with empty buckets and a fresh aggregating
// pool.
func NewManager(spec *params.ChainSpec, store *forkchoice.Service) (*Manager, error) {
	seen, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Manager{
		spec:          spec,
		store:         store,
		pool:          NewAggregatingPool(),
		pendingByRoot: make(map[types.Root][]types.Attestation),
		futureBySlot:  make(map[types.Slot][]types.Attestation),
		seen:          seen,
	}, nil
}

// Pool returns the manager's aggregating pool.
func (m *Manager) Pool() *AggregatingPool { return m.pool }

// SubscribeProcessed registers ch to receive every attestation that clears
// on_attestation successfully, exactly once.
func (m *Manager) SubscribeProcessed(ch chan<- types.Attestation) event.Subscription {
	return m.processedFeed.Subscribe(ch)
}

// Process runs att through on_attestation inside tx, bucketing it on a
// benign deferral and discarding it on a permanent rejection. Called both
// from gossip ingestion (one attestation at a time) and from block import
// (once per attestation carried by the imported block).
func (m *Manager) Process(tx *forkchoice.StoreTransaction, att types.Attestation) (Outcome, error) {
	root, err := att.DataRoot()
	if err == nil {
		if _, ok := m.seen.Get(string(root[:])); ok {
			return Accept, nil
		}
	}

	err = tx.OnAttestation(att)
	switch {
	case err == nil:
		if root, rerr := att.DataRoot(); rerr == nil {
			m.seen.Set(string(root[:]), true, 1)
		}
		m.pool.Add(att)
		m.processedFeed.Send(att)
		return Accept, nil
	case chainerr.Is(err, chainerr.ErrParentUnknown):
		m.addPending(att)
		return DeferredPending, nil
	case chainerr.Is(err, chainerr.ErrFutureSlot):
		m.addFuture(att)
		return DeferredFuture, nil
	case chainerr.Is(err, chainerr.ErrAttestationInvalid):
		return Rejected, err
	default:
		return Rejected, err
	}
}

func (m *Manager) addPending(att types.Attestation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	root := att.BeaconBlockRoot()
	m.pendingByRoot[root] = append(m.pendingByRoot[root], att)
}

func (m *Manager) addFuture(att types.Attestation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.futureBySlot[att.Slot()] = append(m.futureBySlot[att.Slot()], att)
}

// FlushForBlock re-processes every attestation pending on root, once a block
// with that root has just been imported. Called by the block-import
// coordinator immediately after a successful import.
func (m *Manager) FlushForBlock(tx *forkchoice.StoreTransaction, root types.Root) {
	m.mu.Lock()
	pending := m.pendingByRoot[root]
	delete(m.pendingByRoot, root)
	m.mu.Unlock()

	for _, att := range pending {
		if _, err := m.Process(tx, att); err != nil {
			log.WithError(err).Debug("pending attestation re-processing failed")
		}
	}
}

// OnSlot flushes every future attestation whose slot has now arrived and
// prunes pending attestations whose target epoch has fallen behind the
// newly finalized checkpoint. Called once per on_slot, matching the manager
// contract in spec section 4.4.
func (m *Manager) OnSlot(tx *forkchoice.StoreTransaction, nodeSlot types.Slot, finalizedEpoch types.Epoch) {
	m.mu.Lock()
	var ready []types.Attestation
	for slot, atts := range m.futureBySlot {
		if slot > nodeSlot {
			continue
		}
		ready = append(ready, atts...)
		delete(m.futureBySlot, slot)
	}
	for root, atts := range m.pendingByRoot {
		kept := atts[:0]
		for _, a := range atts {
			if a.TargetCheckpoint().Epoch < finalizedEpoch {
				continue
			}
			kept = append(kept, a)
		}
		if len(kept) == 0 {
			delete(m.pendingByRoot, root)
		} else {
			m.pendingByRoot[root] = kept
		}
	}
	m.mu.Unlock()

	for _, att := range ready {
		if _, err := m.Process(tx, att); err != nil {
			log.WithError(err).Debug("previously-future attestation re-processing failed")
		}
	}
}

// Run starts the periodic pool sweep (one third of a slot, matching
// prepareForkChoiceAttsPeriod), which calls the aggregating pool's Compact.
// Attestations are merged into the pool's combined entries when they are
// added, not by this sweep.
func (m *Manager) Run(ctx context.Context, runner *asyncutil.Runner) {
	period := time.Duration(m.spec.SecondsPerSlot/3) * time.Second
	runner.SchedulePeriodic(period, func(ctx context.Context) error {
		_, span := trace.StartSpan(ctx, "attestations.compactPool")
		defer span.End()
		m.pool.Compact()
		return nil
	})
}
