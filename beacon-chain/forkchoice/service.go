package forkchoice

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
)

// Service owns the single authoritative Store pointer and the feeds the rest
// of the node subscribes to. It is the package's public entry point: callers
// obtain a consistent read-only Store via GetStore and mutate it only by
// opening a StoreTransaction through StartTransaction. Modeled on the older
// blockchain/forkchoice Service, which held its Store behind a mutex and a
// set of event.Feed fields directly; here the feeds are lifted onto this
// wrapper so Store itself can stay an immutable, lock-free value.
type Service struct {
	spec    *params.ChainSpec
	sink    StorageSink
	mu      sync.RWMutex
	current *Store
	headSet bool
	head    types.Root

	ctx          context.Context
	cancel       context.CancelFunc
	genesisReady chan genesisData
	startErr     error

	storeInitializedFeed     event.Feed
	bestBlockInitializedFeed event.Feed
	finalizedCheckpointFeed  event.Feed
	reorgFeed                event.Feed
}

// NewService constructs a Service with no store installed. Callers must run
// the startup protocol (see init.go) before any transaction will succeed.
func NewService(spec *params.ChainSpec, sink StorageSink) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		spec:         spec,
		sink:         sink,
		ctx:          ctx,
		cancel:       cancel,
		genesisReady: make(chan genesisData, 1),
	}
}

// SendGenesis delivers the genesis block/state pair to a Service blocked in
// Start waiting on storage to come up empty. Called by whatever component
// (interop generator or the eth1 follower, in a full node) produces genesis.
func (svc *Service) SendGenesis(block types.SignedBlock, state types.BeaconState) {
	svc.genesisReady <- genesisData{block: block, state: state}
}

// Start runs the startup protocol in a background goroutine so it satisfies
// shared.Service; the blocking variant with an explicit context and genesis
// channel lives in init.go for callers (tests, mostly) that want to drive it
// synchronously.
func (svc *Service) Start() {
	go func() {
		if err := svc.startWithContext(svc.ctx, svc.genesisReady); err != nil && err != context.Canceled {
			log.WithError(err).Error("fork choice store failed to start")
			svc.mu.Lock()
			svc.startErr = err
			svc.mu.Unlock()
		}
	}()
}

// Stop cancels the startup protocol if it is still waiting on genesis or a
// storage retry.
func (svc *Service) Stop() error {
	svc.cancel()
	return nil
}

// Status reports the error, if any, surfaced by the startup protocol.
func (svc *Service) Status() error {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.startErr
}

// GetStore returns the current authoritative Store. The returned value is
// immutable and safe to use without further synchronization even if a
// transaction commits concurrently; the caller simply continues to see the
// view current as of this call.
func (svc *Service) GetStore() *Store {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.current
}

// swap atomically installs next as the current store, firing the
// appropriate notifications. Called only from store installation
// (InitializeFromGenesis and the load path in startWithContext) and
// StoreTransaction.Commit.
func (svc *Service) swap(next *Store, firstInstall bool) {
	svc.mu.Lock()
	svc.current = next
	svc.mu.Unlock()

	if firstInstall {
		svc.storeInitializedFeed.Send(true)
	}
}

// lastHead returns the head root recorded by the previous ProcessHead call,
// if any.
func (svc *Service) lastHead() (types.Root, bool) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.head, svc.headSet
}

// recordHead stores root as the most recently chosen head.
func (svc *Service) recordHead(root types.Root) {
	svc.mu.Lock()
	svc.head = root
	svc.headSet = true
	svc.mu.Unlock()
}

// SubscribeStoreInitialized registers ch to receive a notification the first
// time a store is installed (either loaded from storage or synthesized from
// genesis).
func (svc *Service) SubscribeStoreInitialized(ch chan<- bool) event.Subscription {
	return svc.storeInitializedFeed.Subscribe(ch)
}

// SubscribeBestBlockInitialized registers ch to receive the root of the
// chosen head each time StoreTransaction.Commit recomputes it; a direct call
// to Service.ProcessHead does not send on it.
func (svc *Service) SubscribeBestBlockInitialized(ch chan<- types.Root) event.Subscription {
	return svc.bestBlockInitializedFeed.Subscribe(ch)
}

// SubscribeFinalizedCheckpoint registers ch to receive each new finalized
// checkpoint as it is committed.
func (svc *Service) SubscribeFinalizedCheckpoint(ch chan<- types.Checkpoint) event.Subscription {
	return svc.finalizedCheckpointFeed.Subscribe(ch)
}

// SubscribeReorg registers ch to receive ReorgEvent notifications.
func (svc *Service) SubscribeReorg(ch chan<- ReorgEvent) event.Subscription {
	return svc.reorgFeed.Subscribe(ch)
}
