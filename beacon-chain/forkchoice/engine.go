package forkchoice

import (
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/prysm/beacon-chain/chainerr"
	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
)

// OnTick advances the store's wall-clock second to t and, whenever t crosses
// an epoch boundary, adopts the best-justified checkpoint as justified if it
// is ahead of the current justified checkpoint. Mirrors on_tick from the
// Store type in the older blockchain/forkchoice package, generalized to
// operate through a transaction instead of a direct field write under s.mu.
func (tx *StoreTransaction) OnTick(t uint64) error {
	spec := tx.svc.spec
	previousEpoch := spec.SlotToEpoch(slotsSince(tx.base.genesisTime, tx.base.time, spec))
	tx.SetTime(t)
	currentEpoch := spec.SlotToEpoch(slotsSince(tx.base.genesisTime, t, spec))

	if currentEpoch <= previousEpoch {
		return nil
	}
	if tx.base.bestJustified.Epoch > tx.base.justified.Epoch {
		tx.SetJustified(tx.base.bestJustified)
	}
	return nil
}

// slotsSince converts a wall-clock second into a slot number relative to
// genesisTime, clamped to zero for times at or before genesis.
func slotsSince(genesisTime, now uint64, spec *params.ChainSpec) uint64 {
	if now <= genesisTime {
		return 0
	}
	return (now - genesisTime) / spec.SecondsPerSlot
}

// OnBlock validates and admits a signed block. The parent must already be
// known (callers route ErrParentUnknown to a pending-blocks bucket) and the
// block's slot must not be in the future relative to the store's current
// time (callers route ErrFutureSlot to a future-blocks bucket). The
// state-transition function itself is injected so this package never needs
// to know how a post-state is derived from a pre-state and a block.
func (tx *StoreTransaction) OnBlock(block types.SignedBlock, root types.Root, transition types.TransitionFn) error {
	parentRoot := block.ParentRoot()
	preState, ok := tx.next.State(parentRoot)
	if !ok {
		return chainerr.ErrParentUnknown
	}

	spec := tx.svc.spec
	currentSlot := slotsSince(tx.next.genesisTime, tx.next.time, spec)
	if uint64(block.Slot()) > currentSlot {
		return chainerr.ErrFutureSlot
	}

	postState, err := transition(preState, block)
	if err != nil {
		return errors.Wrap(chainerr.ErrBlockInvalid, err.Error())
	}

	tx.PutBlock(root, block, postState)

	if postState.CurrentJustifiedCheckpoint().Epoch > tx.next.bestJustified.Epoch {
		tx.SetBestJustified(postState.CurrentJustifiedCheckpoint())
		if postState.CurrentJustifiedCheckpoint().Epoch > tx.next.justified.Epoch {
			tx.SetJustified(postState.CurrentJustifiedCheckpoint())
		}
	}
	if postState.FinalizedCheckpoint().Epoch > tx.next.finalized.Epoch {
		tx.SetFinalized(postState.FinalizedCheckpoint())
	}
	return nil
}

// OnAttestation records validator idx's latest message for each attesting
// index named by att, provided its target checkpoint's state is known and
// the attestation is not stale relative to an already-recorded later vote.
// The target checkpoint's state must already be in the store (callers route
// ErrParentUnknown to a pending bucket when it is not).
func (tx *StoreTransaction) OnAttestation(att types.Attestation) error {
	target := att.TargetCheckpoint()
	if _, ok := tx.next.CheckpointState(target); !ok {
		return chainerr.ErrParentUnknown
	}

	spec := tx.svc.spec
	currentSlot := slotsSince(tx.next.genesisTime, tx.next.time, spec)
	if uint64(att.Slot()) > currentSlot {
		return chainerr.ErrFutureSlot
	}

	msg := LatestMessage{Epoch: target.Epoch, Root: att.BeaconBlockRoot()}
	for _, idx := range att.AttestingIndices() {
		if prev, ok := tx.next.LatestMessage(idx); ok && prev.Epoch >= msg.Epoch {
			continue
		}
		tx.PutLatestMessage(idx, msg)
	}
	return nil
}

// processHead runs LMD-GHOST fork choice starting from the justified
// checkpoint's root: at each step it walks to the child with the greatest
// attesting balance until it reaches a leaf. Weight computation itself
// (LatestAttestingBalance) is a simplified count of latest-message votes,
// not full effective-balance weighting, since validator balance accounting
// is out of scope here; the traversal algorithm and its tie-break (lowest
// root) are what this package is responsible for getting right.
func processHead(store *Store) (types.Root, error) {
	root := store.justified.Root
	if !store.HasBlock(root) {
		return types.Root{}, chainerr.ErrStoreUninitialized
	}

	for {
		children := childrenOf(store, root)
		if len(children) == 0 {
			return root, nil
		}
		best := children[0]
		bestWeight := latestAttestingBalance(store, best)
		for _, c := range children[1:] {
			w := latestAttestingBalance(store, c)
			if w > bestWeight || (w == bestWeight && lessRoot(c, best)) {
				best, bestWeight = c, w
			}
		}
		root = best
	}
}

func childrenOf(store *Store, parent types.Root) []types.Root {
	var out []types.Root
	for root, block := range store.blocks {
		if block.ParentRoot() == parent {
			out = append(out, root)
		}
	}
	return out
}

func lessRoot(a, b types.Root) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// latestAttestingBalance counts latest messages whose vote is for root or a
// descendant of root, matching get_latest_attesting_balance's intent without
// the validator-effective-balance weighting that lives in the state
// transition package.
func latestAttestingBalance(store *Store, root types.Root) uint64 {
	var total uint64
	for _, msg := range store.latestMessages {
		if msg.Root == root || isDescendant(store, root, msg.Root) {
			total++
		}
	}
	return total
}

// isDescendant reports whether candidate is root or a descendant of root by
// walking candidate's parent chain back to root or genesis.
func isDescendant(store *Store, root, candidate types.Root) bool {
	cur := candidate
	for {
		if cur == root {
			return true
		}
		block, ok := store.blocks[cur]
		if !ok {
			return false
		}
		parent := block.ParentRoot()
		if parent == cur {
			return false
		}
		cur = parent
	}
}

// Ancestor returns the root of the ancestor of root at slot, or ok=false if
// root's chain does not extend back that far (it is its own genesis before
// slot).
func Ancestor(store *Store, root types.Root, slot types.Slot) (types.Root, bool) {
	cur := root
	for {
		block, ok := store.blocks[cur]
		if !ok {
			return types.Root{}, false
		}
		if block.Slot() <= slot {
			return cur, true
		}
		parent := block.ParentRoot()
		if parent == cur {
			return types.Root{}, false
		}
		cur = parent
	}
}

// commonAncestorSlot walks both chains back to their first shared root and
// returns its slot, used to describe a reorg's depth in a ReorgEvent.
func commonAncestorSlot(store *Store, a, b types.Root) (types.Slot, bool) {
	seen := make(map[types.Root]bool)
	for cur := a; ; {
		seen[cur] = true
		block, ok := store.blocks[cur]
		if !ok {
			break
		}
		parent := block.ParentRoot()
		if parent == cur {
			break
		}
		cur = parent
	}
	for cur := b; ; {
		if seen[cur] {
			if block, ok := store.blocks[cur]; ok {
				return block.Slot(), true
			}
			return 0, false
		}
		block, ok := store.blocks[cur]
		if !ok {
			return 0, false
		}
		parent := block.ParentRoot()
		if parent == cur {
			return 0, false
		}
		cur = parent
	}
}

// ProcessHead runs fork choice against svc's current store and returns the
// chosen head root without mutating anything, for callers (block proposal,
// metrics) that only need a read.
func (svc *Service) ProcessHead() (types.Root, error) {
	store := svc.GetStore()
	if store == nil {
		return types.Root{}, chainerr.ErrStoreUninitialized
	}
	return processHead(store)
}
