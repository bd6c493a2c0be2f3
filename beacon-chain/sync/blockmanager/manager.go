// Package blockmanager implements the two block-admission holding buckets
// named in the ingestion pipeline: blocks whose parent is not yet known
// (pending, keyed by the missing parent root) and blocks whose slot has not
// arrived yet (future, keyed by slot). A periodic sweep retries each bucket
// against the fork-choice store, fetching a missing parent from a connected
// peer when one is available.
//
// Adapted from sync's pending_blocks_queue.go (slotToPendingBlocks/
// seenPendingBlocks maps drained by a ticker-driven processPendingBlocks
// loop that requests missing parents with bounded, randomized peer
// selection); generalized into a standalone, store-agnostic component and
// split in two instead of one queue so a future-slot block doesn't need a
// parent-fetch round trip it will never use.
package blockmanager

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"
	"golang.org/x/exp/rand"

	"github.com/prysmaticlabs/prysm/beacon-chain/chainerr"
	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
	"github.com/prysmaticlabs/prysm/beacon-chain/forkchoice"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
	"github.com/prysmaticlabs/prysm/shared/asyncutil"
)

var log = logrus.WithField("prefix", "blockmanager")

// PeerFetcher requests a block identified by root from a connected peer.
// Implemented by the p2p request/response layer, which is out of scope here.
type PeerFetcher interface {
	// Peers returns the currently connected peer IDs able to serve blocks.
	Peers() []string
	// RequestBlockByRoot asks peer for the block with the given root. The
	// fetched block, if any, arrives back through the normal gossip/receive
	// path and is handed to Manager.AddPending or admitted directly.
	RequestBlockByRoot(ctx context.Context, peer string, root types.Root) error
}

// Importer admits a block that is now known to have its parent available.
type Importer interface {
	ImportBlock(ctx context.Context, block types.SignedBlock) error
}

// Manager holds the pending and future block buckets and periodically
// retries each against the fork-choice store.
type Manager struct {
	spec   *params.ChainSpec
	store  *forkchoice.Service
	peers  PeerFetcher
	import_ Importer

	mu sync.RWMutex
	// pendingByParent indexes blocks awaiting a parent, keyed by the missing
	// parent root so multiple children of the same missing parent share one
	// fetch.
	pendingByParent map[types.Root][]types.SignedBlock
	seenPending     map[types.Root]bool

	// futureBySlot indexes blocks whose slot has not arrived yet.
	futureBySlot map[types.Slot][]types.SignedBlock
}

// NewManager constructs a Manager with empty buckets.
func NewManager(spec *params.ChainSpec, store *forkchoice.Service, peers PeerFetcher, importer Importer) *Manager {
	return &Manager{
		spec:            spec,
		store:           store,
		peers:           peers,
		import_:         importer,
		pendingByParent: make(map[types.Root][]types.SignedBlock),
		seenPending:     make(map[types.Root]bool),
		futureBySlot:    make(map[types.Slot][]types.SignedBlock),
	}
}

// AddPending files block under its missing parent root.
func (m *Manager) AddPending(block types.SignedBlock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	root, err := block.Root()
	if err != nil {
		return
	}
	if m.seenPending[root] {
		return
	}
	m.seenPending[root] = true
	parent := block.ParentRoot()
	m.pendingByParent[parent] = append(m.pendingByParent[parent], block)
}

// AddFuture files block under its not-yet-arrived slot.
func (m *Manager) AddFuture(block types.SignedBlock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.futureBySlot[block.Slot()] = append(m.futureBySlot[block.Slot()], block)
}

// Run starts the periodic sweep of both buckets, stopping when ctx is
// cancelled.
func (m *Manager) Run(ctx context.Context, runner *asyncutil.Runner) {
	runner.SchedulePeriodic(asyncSweepPeriod(m.spec), func(ctx context.Context) error {
		m.sweepFuture(ctx)
		m.sweepPending(ctx)
		return nil
	})
}

func asyncSweepPeriod(spec *params.ChainSpec) time.Duration {
	return time.Duration(spec.SecondsPerSlot/3) * time.Second
}

// sweepFuture admits any future block whose slot has now arrived.
func (m *Manager) sweepFuture(ctx context.Context) {
	ctx, span := trace.StartSpan(ctx, "blockmanager.sweepFuture")
	defer span.End()

	store := m.store.GetStore()
	if store == nil {
		return
	}
	currentSlot := types.Slot((store.Time() - store.GenesisTime()) / m.spec.SecondsPerSlot)

	m.mu.Lock()
	var ready []types.SignedBlock
	for slot, blocks := range m.futureBySlot {
		if slot > currentSlot {
			continue
		}
		ready = append(ready, blocks...)
		delete(m.futureBySlot, slot)
	}
	m.mu.Unlock()

	for _, b := range ready {
		if err := m.import_.ImportBlock(ctx, b); err != nil && chainerr.Is(err, chainerr.ErrParentUnknown) {
			m.AddPending(b)
		} else if err != nil {
			log.WithError(err).Warn("failed to import previously-future block")
		}
	}
}

// sweepPending retries every pending root against the store: blocks whose
// parent has since arrived are imported (and removed), the rest trigger a
// bounded parent fetch from a random connected peer. Roots at or below the
// finalized checkpoint are dropped, matching removeAllDescendants in the
// original queue: a parent that can never arrive must not hold its children
// forever.
func (m *Manager) sweepPending(ctx context.Context) {
	ctx, span := trace.StartSpan(ctx, "blockmanager.sweepPending")
	defer span.End()

	store := m.store.GetStore()
	if store == nil {
		return
	}
	finalizedEpoch := store.FinalizedCheckpoint().Epoch

	m.mu.Lock()
	parents := make([]types.Root, 0, len(m.pendingByParent))
	for p := range m.pendingByParent {
		parents = append(parents, p)
	}
	sort.Slice(parents, func(i, j int) bool { return lessRoot(parents[i], parents[j]) })

	var toImport []types.SignedBlock
	var toFetch []types.Root
	for _, parent := range parents {
		if store.HasBlock(parent) {
			toImport = append(toImport, m.pendingByParent[parent]...)
			for _, b := range m.pendingByParent[parent] {
				if root, err := b.Root(); err == nil {
					delete(m.seenPending, root)
				}
			}
			delete(m.pendingByParent, parent)
			continue
		}
		children := m.pendingByParent[parent]
		if finalizedEpoch > 0 {
			// Siblings share only a missing parent root, not a slot: filter
			// per child rather than deciding the whole bucket by the first
			// one's slot, matching removeAllDescendants's per-block check.
			kept := children[:0:0]
			for _, b := range children {
				if m.spec.SlotToEpoch(uint64(b.Slot())) <= uint64(finalizedEpoch) {
					if root, err := b.Root(); err == nil {
						delete(m.seenPending, root)
					}
					continue
				}
				kept = append(kept, b)
			}
			if len(kept) == 0 {
				delete(m.pendingByParent, parent)
				continue
			}
			if len(kept) != len(children) {
				m.pendingByParent[parent] = kept
			}
		}
		toFetch = append(toFetch, parent)
	}
	m.mu.Unlock()

	for _, b := range toImport {
		if err := m.import_.ImportBlock(ctx, b); err != nil {
			log.WithError(err).Warn("failed to import block with newly-available parent")
		}
	}

	peers := m.peers.Peers()
	if len(peers) == 0 {
		return
	}
	for _, root := range toFetch {
		peer := peers[rand.Int()%len(peers)]
		if err := m.peers.RequestBlockByRoot(ctx, peer, root); err != nil {
			log.WithError(err).Warn("failed to request missing parent block")
		}
	}
}

func lessRoot(a, b types.Root) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// NumPending returns the number of blocks currently held in the pending
// bucket, exposed for metrics and tests.
func (m *Manager) NumPending() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.seenPending)
}

// NumFuture returns the number of blocks currently held in the future
// bucket.
func (m *Manager) NumFuture() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, v := range m.futureBySlot {
		n += len(v)
	}
	return n
}
