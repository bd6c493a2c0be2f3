package forkchoice

import (
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/prysm/beacon-chain/chainerr"
	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
)

// StoreTransaction accumulates writes against a base Store and, on Commit,
// durably persists them and atomically publishes the resulting Store as the
// new authoritative view. Every on_tick/on_block/on_attestation call in this
// package takes a *StoreTransaction rather than mutating (*Service).current
// directly, so a caller can batch several of them (for example, replaying a
// batch of queued attestations) into one durability round-trip and one
// reader-visible swap.
//
// Adapted from the commit-batch pattern in operations/slashings and
// operations/attestations, which accumulate pool mutations before a single
// flush; generalized here into the store's own transactional protocol.
type StoreTransaction struct {
	svc  *Service
	base *Store

	// next is a copy-on-write Store being built up by the transaction's
	// handlers. cloned tracks which of its maps have already been
	// deep-copied away from base so repeated writes don't re-clone.
	next    *Store
	cloned  map[string]bool
	pruned  StorageUpdate
	touched bool
}

// StartTransaction opens a transaction against svc's current store. Callers
// must Commit (or discard) the transaction before starting another one
// against the same Service; the package does not itself serialize concurrent
// transactions; the orchestrator's single tick-dispatch goroutine is
// responsible for that, matching the sequential tick/block/attestation
// handling the wall-clock loop performs in spec section 4.2.
func (svc *Service) StartTransaction() (*StoreTransaction, error) {
	base := svc.GetStore()
	if base == nil {
		return nil, chainerr.ErrStoreUninitialized
	}
	return &StoreTransaction{
		svc:    svc,
		base:   base,
		next:   base.copyOnWrite(),
		cloned: make(map[string]bool),
	}, nil
}

func (tx *StoreTransaction) cloneBlocks() {
	if tx.cloned["blocks"] {
		return
	}
	m := make(map[types.Root]types.SignedBlock, len(tx.next.blocks))
	for k, v := range tx.next.blocks {
		m[k] = v
	}
	tx.next.blocks = m
	tx.cloned["blocks"] = true
}

func (tx *StoreTransaction) cloneBlockStates() {
	if tx.cloned["blockStates"] {
		return
	}
	m := make(map[types.Root]types.BeaconState, len(tx.next.blockStates))
	for k, v := range tx.next.blockStates {
		m[k] = v
	}
	tx.next.blockStates = m
	tx.cloned["blockStates"] = true
}

func (tx *StoreTransaction) cloneCheckpointStates() {
	if tx.cloned["checkpointStates"] {
		return
	}
	m := make(map[types.Checkpoint]types.BeaconState, len(tx.next.checkpointStates))
	for k, v := range tx.next.checkpointStates {
		m[k] = v
	}
	tx.next.checkpointStates = m
	tx.cloned["checkpointStates"] = true
}

func (tx *StoreTransaction) cloneLatestMessages() {
	if tx.cloned["latestMessages"] {
		return
	}
	m := make(map[uint64]LatestMessage, len(tx.next.latestMessages))
	for k, v := range tx.next.latestMessages {
		m[k] = v
	}
	tx.next.latestMessages = m
	tx.cloned["latestMessages"] = true
}

// PutBlock records block (and its post-state) as newly known, keyed by root.
func (tx *StoreTransaction) PutBlock(root types.Root, block types.SignedBlock, state types.BeaconState) {
	tx.cloneBlocks()
	tx.cloneBlockStates()
	tx.next.blocks[root] = block
	tx.next.blockStates[root] = state
	tx.touched = true
}

// PutCheckpointState records the state materialized at checkpoint cp.
func (tx *StoreTransaction) PutCheckpointState(cp types.Checkpoint, state types.BeaconState) {
	tx.cloneCheckpointStates()
	tx.next.checkpointStates[cp] = state
	tx.touched = true
}

// PutLatestMessage records validator idx's most recent attestation vote.
func (tx *StoreTransaction) PutLatestMessage(idx uint64, msg LatestMessage) {
	tx.cloneLatestMessages()
	tx.next.latestMessages[idx] = msg
	tx.touched = true
}

// SetTime advances the store's wall-clock second, the effect of on_tick.
func (tx *StoreTransaction) SetTime(t uint64) {
	tx.next.time = t
	tx.touched = true
}

// SetJustified updates the justified checkpoint.
func (tx *StoreTransaction) SetJustified(cp types.Checkpoint) {
	tx.next.justified = cp
	tx.touched = true
}

// SetBestJustified updates the best-justified checkpoint.
func (tx *StoreTransaction) SetBestJustified(cp types.Checkpoint) {
	tx.next.bestJustified = cp
	tx.touched = true
}

// SetFinalized updates the finalized checkpoint and marks every block and
// checkpoint-state below the new finalized epoch for pruning. finalization
// can only move forward; callers enforce the non-decreasing invariant before
// calling this (see OnBlock's finalization handling in engine.go).
func (tx *StoreTransaction) SetFinalized(cp types.Checkpoint) {
	tx.next.finalized = cp
	tx.touched = true
	tx.prune(cp)
}

// prune drops every block (with its state) whose slot falls strictly below
// the start slot of the newly finalized epoch, and every checkpoint state
// whose epoch falls strictly below the finalized epoch. The finalized root
// and the finalized checkpoint itself are always kept. No ancestry walk is
// done: ancestors of the finalized root below that slot are dropped too.
func (tx *StoreTransaction) prune(finalized types.Checkpoint) {
	spec := tx.svc.spec
	finalizedSlot := spec.StartSlot(uint64(finalized.Epoch))

	tx.cloneBlocks()
	tx.cloneBlockStates()
	tx.cloneCheckpointStates()

	for root, block := range tx.next.blocks {
		if root == finalized.Root {
			continue
		}
		if uint64(block.Slot()) < finalizedSlot {
			delete(tx.next.blocks, root)
			delete(tx.next.blockStates, root)
			tx.pruned.PrunedBlocks = append(tx.pruned.PrunedBlocks, root)
		}
	}
	for cp := range tx.next.checkpointStates {
		if cp == finalized {
			continue
		}
		if uint64(cp.Epoch) < uint64(finalized.Epoch) {
			delete(tx.next.checkpointStates, cp)
			tx.pruned.PrunedCheckpointStates = append(tx.pruned.PrunedCheckpointStates, cp)
		}
	}
}

// Commit durably persists the transaction's accumulated writes and, on
// success, atomically publishes the resulting Store. It implements the
// three-step protocol named in the consensus core's design: compute the
// pruning set, hand the update to the storage sink and wait for its ack,
// then swap the in-memory pointer and publish notifications. A failed write
// leaves the prior store installed and returns
// chainerr.ErrTransactionCommitFailed. The blockchain tick handler logs that
// error and skips the rest of the tick; it does not stop the node.
func (tx *StoreTransaction) Commit() (head types.Root, err error) {
	if !tx.touched {
		return types.Root{}, nil
	}

	update := &StorageUpdate{
		Blocks:                 tx.next.blocks,
		BlockStates:            tx.next.blockStates,
		CheckpointStates:       tx.next.checkpointStates,
		PrunedBlocks:           tx.pruned.PrunedBlocks,
		PrunedCheckpointStates: tx.pruned.PrunedCheckpointStates,
	}
	if tx.next.justified != tx.base.justified {
		cp := tx.next.justified
		update.Justified = &cp
	}
	if tx.next.bestJustified != tx.base.bestJustified {
		cp := tx.next.bestJustified
		update.BestJustified = &cp
	}
	finalizedChanged := tx.next.finalized != tx.base.finalized
	if finalizedChanged {
		cp := tx.next.finalized
		update.Finalized = &cp
	}

	if err := tx.svc.sink.WriteUpdate(update); err != nil {
		return types.Root{}, errors.Wrap(chainerr.ErrTransactionCommitFailed, err.Error())
	}

	oldHead, hadHead := tx.previousHead()
	tx.svc.swap(tx.next, false)

	if finalizedChanged {
		tx.svc.finalizedCheckpointFeed.Send(tx.next.finalized)
	}

	newHead, err := processHead(tx.next)
	if err != nil {
		return types.Root{}, err
	}
	tx.svc.recordHead(newHead)
	tx.svc.bestBlockInitializedFeed.Send(newHead)
	if hadHead && oldHead != newHead && !isDescendant(tx.next, oldHead, newHead) {
		ancestorSlot, _ := commonAncestorSlot(tx.next, oldHead, newHead)
		tx.svc.reorgFeed.Send(ReorgEvent{OldHead: oldHead, NewHead: newHead, CommonAncestorSlot: ancestorSlot})
	}

	return newHead, nil
}

func (tx *StoreTransaction) previousHead() (types.Root, bool) {
	return tx.svc.lastHead()
}
