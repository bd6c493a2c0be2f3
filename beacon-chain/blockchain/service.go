// Package blockchain drives the local chain view forward: the wall-clock
// tick handler described in the consensus core's design, which converts
// every tick into a store transaction, advances node_slot, and fires at most
// three ordered phase events per slot (start, attestation-due,
// aggregation-due). Adapted from the older ChainService's event.Feed-based
// Start/Stop lifecycle and incoming-block subscribe loop (blockProcessing),
// replacing its crystallized/active-state DAG and naive first-at-slot fork
// choice with the transactional forkchoice.Service this module builds
// everything else around.
package blockchain

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
	"github.com/prysmaticlabs/prysm/beacon-chain/forkchoice"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
	"github.com/prysmaticlabs/prysm/beacon-chain/sync/synctracker"
	"github.com/prysmaticlabs/prysm/shared/slotutil"
)

// AttestationBroadcaster publishes gossip messages the validator client and
// peers consume. The gossip transport itself is out of scope; this is the
// minimal seam the orchestrator calls through.
type AttestationBroadcaster interface {
	BroadcastAttestation(headRoot types.Root, slot types.Slot)
	BroadcastAggregates(slot types.Slot)
}

// SyncService reports whether the node is actively catching up, consulted
// by the sync branch at every tick.
type SyncService interface {
	Syncing() bool
}

// PeerCounter reports the number of currently connected peers, surfaced in
// slot events.
type PeerCounter interface {
	PeerCount() int
}

// SlotEvent is published at the attestation-due phase, carrying the chosen
// head and current peer count the validator client's duty logic needs.
type SlotEvent struct {
	Slot      types.Slot
	HeadRoot  types.Root
	PeerCount int
}

// Service is the wall-clock tick handler / orchestrator. It owns node_slot
// and the three per-phase high-water-marks that make each phase event fire
// at most once per slot.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc

	spec    *params.ChainSpec
	store   *forkchoice.Service
	sync    SyncService
	peers   PeerCounter
	gossip  AttestationBroadcaster
	tracker *synctracker.Tracker

	mu       sync.Mutex
	nodeSlot types.Slot

	startFired       bool
	startHighWater   types.Slot
	attestationFired bool
	attestationHighWater types.Slot
	aggregateFired   bool
	aggregateHighWater types.Slot

	epochFeed    event.Feed
	slotFeed     event.Feed
	syncSlotFeed event.Feed
	onSlotFeed   event.Feed
}

// Config bundles the collaborators Service is wired with; out-of-process
// transport and signing concerns are represented only by the narrow
// interfaces above.
type Config struct {
	Spec    *params.ChainSpec
	Store   *forkchoice.Service
	Sync    SyncService
	Peers   PeerCounter
	Gossip  AttestationBroadcaster
	Tracker *synctracker.Tracker
}

// NewService constructs a Service. Start must be called before it will tick.
func NewService(ctx context.Context, cfg *Config) *Service {
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		ctx:     ctx,
		cancel:  cancel,
		spec:    cfg.Spec,
		store:   cfg.Store,
		sync:    cfg.Sync,
		peers:   cfg.Peers,
		gossip:  cfg.Gossip,
		tracker: cfg.Tracker,
	}
}

// SubscribeOnSlot registers ch to receive node_slot once per start phase.
func (s *Service) SubscribeOnSlot(ch chan<- types.Slot) event.Subscription {
	return s.onSlotFeed.Subscribe(ch)
}

// SubscribeSlotEvent registers ch to receive the attestation-due SlotEvent.
func (s *Service) SubscribeSlotEvent(ch chan<- SlotEvent) event.Subscription {
	return s.slotFeed.Subscribe(ch)
}

// SubscribeEpoch registers ch to receive the epoch number whenever a start
// phase crosses an epoch boundary.
func (s *Service) SubscribeEpoch(ch chan<- types.Epoch) event.Subscription {
	return s.epochFeed.Subscribe(ch)
}

// NodeSlot returns the orchestrator's current node_slot.
func (s *Service) NodeSlot() types.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodeSlot
}

// Start begins consuming wall-clock ticks. Each tick is handled
// synchronously and in order on a single goroutine, matching the spec's
// ordering guarantee that start precedes attestation-due precedes
// aggregation-due within one process.
func (s *Service) Start() {
	store := s.store.GetStore()
	if store == nil {
		log.Warn("blockchain service started before fork choice store was initialized")
		return
	}
	genesisTime := store.GenesisTime()
	ticker := slotutil.NewWallClockTicker(slotutil.DivideSlotBy(s.spec, 3))
	go s.run(ticker, genesisTime)
}

// Stop halts the tick-consuming goroutine.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status reports whether the orchestrator's store has been initialized yet;
// the registry's health check surfaces this while the node is still waiting
// on genesis or a restored store.
func (s *Service) Status() error {
	if s.store.GetStore() == nil {
		return errors.New("fork choice store not yet initialized")
	}
	return nil
}

func (s *Service) run(ticker *slotutil.WallClockTicker, genesisTime uint64) {
	defer ticker.Done()
	for {
		select {
		case now := <-ticker.C():
			s.handleTick(uint64(now.Unix()), genesisTime)
		case <-s.ctx.Done():
			return
		}
	}
}

// handleTick implements the full tick algorithm from the consensus core's
// slot clock design: pre-genesis drop, transactional on_tick, the sync
// branch, the drift guard, and the three ordered phase emissions.
func (s *Service) handleTick(currentTime, genesisTime uint64) {
	_, span := trace.StartSpan(s.ctx, "blockchain.handleTick")
	defer span.End()

	phase := "on_tick"
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(map[string]interface{}{
				"phase": phase, "slot": (currentTime - genesisTime) / s.spec.SecondsPerSlot,
			}).Errorf("recovered panic in tick phase: %v", r)
		}
	}()

	if currentTime < genesisTime {
		return
	}

	tx, err := s.store.StartTransaction()
	if err != nil {
		log.WithError(err).Error("could not open store transaction for tick")
		return
	}
	if err := tx.OnTick(currentTime); err != nil {
		log.WithError(err).Error("on_tick failed")
		return
	}
	if _, err := tx.Commit(); err != nil {
		log.WithError(err).Error("store transaction commit failed on tick")
		return
	}

	calculatedSlot := types.Slot((currentTime - genesisTime) / s.spec.SecondsPerSlot)
	slotStart := genesisTime + uint64(calculatedSlot)*s.spec.SecondsPerSlot

	s.mu.Lock()
	defer s.mu.Unlock()

	crossedBoundary := calculatedSlot > s.nodeSlot

	if crossedBoundary && s.sync != nil && s.sync.Syncing() {
		phase = "sync"
		head, err := s.store.ProcessHead()
		if err != nil {
			log.WithError(err).Warn("process_head failed in sync branch")
			return
		}
		s.syncSlotFeed.Send(head)
		s.nodeSlot = calculatedSlot
		return
	}

	if calculatedSlot > s.nodeSlot+1 {
		log.WithFields(map[string]interface{}{
			"from": s.nodeSlot, "to": calculatedSlot,
		}).Warn("slots missed, advancing node_slot")
		s.nodeSlot = calculatedSlot
	}

	// node_slot advances inside the aggregate phase below, partway through
	// the real slot it just finished processing. Every phase guard must
	// therefore key off calculatedSlot (wall-clock truth) rather than
	// node_slot, or a tick landing later in that same real slot would see
	// node_slot already past startHighWater and re-fire the whole sequence.
	atOrPastCurrentSlot := calculatedSlot >= s.nodeSlot

	if atOrPastCurrentSlot && (!s.startFired || calculatedSlot > s.startHighWater) {
		phase = "start"
		s.startFired = true
		s.startHighWater = calculatedSlot
		s.attestationFired = false
		s.aggregateFired = false
		if s.spec.IsEpochStart(uint64(s.nodeSlot)) {
			s.epochFeed.Send(types.Epoch(s.spec.SlotToEpoch(uint64(s.nodeSlot))))
		}
		s.onSlotFeed.Send(s.nodeSlot)
	}

	if atOrPastCurrentSlot && currentTime >= slotStart+s.spec.SecondsPerThird() && !s.attestationFired && calculatedSlot == s.startHighWater {
		phase = "attestation"
		s.attestationFired = true
		s.attestationHighWater = calculatedSlot
		head, err := s.store.ProcessHead()
		if err != nil {
			log.WithError(err).Warn("process_head failed at attestation-due")
		} else {
			peerCount := 0
			if s.peers != nil {
				peerCount = s.peers.PeerCount()
			}
			s.slotFeed.Send(SlotEvent{Slot: s.nodeSlot, HeadRoot: head, PeerCount: peerCount})
			if s.gossip != nil {
				s.gossip.BroadcastAttestation(head, s.nodeSlot)
			}
		}
	}

	if atOrPastCurrentSlot && currentTime >= slotStart+2*s.spec.SecondsPerThird() && !s.aggregateFired && calculatedSlot == s.startHighWater {
		phase = "aggregate"
		s.aggregateFired = true
		s.aggregateHighWater = calculatedSlot
		if s.gossip != nil {
			s.gossip.BroadcastAggregates(s.nodeSlot)
		}
		s.nodeSlot++
	}
}
