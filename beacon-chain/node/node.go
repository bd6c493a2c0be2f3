// Package node assembles every consensus-core component into a single
// BeaconNode process and drives its start/stop lifecycle through a
// shared.ServiceRegistry. Adapted from the early geth-sharding node.go
// (ServiceRegistry + RegisterService/FetchService wiring, the
// signal-driven Start/Close loop with a repeated-interrupt panic escape
// hatch), generalized from its three hard-coded services (beaconDB,
// blockchain, powchain web3Service) to this module's full component set.
package node

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/prysmaticlabs/prysm/beacon-chain/blockchain"
	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
	dbkv "github.com/prysmaticlabs/prysm/beacon-chain/db/kv"
	"github.com/prysmaticlabs/prysm/beacon-chain/flags"
	"github.com/prysmaticlabs/prysm/beacon-chain/forkchoice"
	"github.com/prysmaticlabs/prysm/beacon-chain/operations/attestations"
	"github.com/prysmaticlabs/prysm/beacon-chain/operations/slashings"
	"github.com/prysmaticlabs/prysm/beacon-chain/operations/voluntaryexits"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
	"github.com/prysmaticlabs/prysm/beacon-chain/powchain"
	"github.com/prysmaticlabs/prysm/beacon-chain/sync/blockmanager"
	"github.com/prysmaticlabs/prysm/beacon-chain/sync/synctracker"
	"github.com/prysmaticlabs/prysm/shared"
	"github.com/prysmaticlabs/prysm/shared/asyncutil"
)

var log = logrus.WithField("prefix", "node")

// BeaconNode ties every registered service's lifecycle to a single process:
// the order components are registered in determines start order, and
// shutdown runs in reverse so a service's dependencies outlive it.
type BeaconNode struct {
	ctx      *cli.Context
	spec     *params.ChainSpec
	services *shared.ServiceRegistry
	lock     sync.RWMutex
	stop     chan struct{}

	forkChoice  *forkchoice.Service
	store       *dbkv.Store
	memStore    *dbkv.MemoryStore
	slashingsPool      *slashings.Pool
	voluntaryExitsPool *voluntaryexits.Pool
	attestationManager *attestations.Manager
	blockManager       *blockmanager.Manager
	tracker            *synctracker.Tracker
	eth1Cache          *powchain.Cache
}

// New creates a new node instance, configures the chain spec, and registers
// every component's lifecycle service with the registry in dependency order:
// storage, then fork choice, then the operation pools and managers that
// transact against it, then the wall-clock orchestrator that drives them all.
//
// codec encodes/decodes blocks and states for the bbolt-backed store; it is
// supplied by the host application's SSZ layer, which is out of scope here.
// Pass nil to run with an in-memory store (the right choice for tests and
// interop/dev runs, and the only option when --datadir is unset).
func New(ctx *cli.Context, codec dbkv.Codec) (*BeaconNode, error) {
	if err := configureVerbosity(ctx); err != nil {
		return nil, err
	}
	spec := configureChainSpec(ctx)

	beacon := &BeaconNode{
		ctx:      ctx,
		spec:     spec,
		services: shared.NewServiceRegistry(),
		stop:     make(chan struct{}),
	}

	if err := beacon.registerStorage(codec); err != nil {
		return nil, err
	}
	if err := beacon.registerForkChoice(); err != nil {
		return nil, err
	}
	if err := beacon.registerOperationPools(); err != nil {
		return nil, err
	}
	// Shutdown must stop the attestation manager before the block manager.
	// StopAll walks registration order backward, so the block manager
	// registers first here, putting it later in the stop sequence.
	if err := beacon.registerBlockManager(); err != nil {
		return nil, err
	}
	if err := beacon.registerAttestationManager(); err != nil {
		return nil, err
	}
	if err := beacon.registerSyncTracker(); err != nil {
		return nil, err
	}
	beacon.eth1Cache = powchain.NewCache(spec)
	if err := beacon.registerBlockchainService(); err != nil {
		return nil, err
	}

	return beacon, nil
}

// Start kicks off every registered service and blocks until an interrupt (or
// a second, impatient interrupt) triggers shutdown.
func (b *BeaconNode) Start() {
	b.lock.Lock()
	log.Info("Starting beacon node")
	b.services.StartAll()
	stop := b.stop
	b.lock.Unlock()

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		<-sigc
		log.Info("Got interrupt, shutting down...")
		go b.Close()
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				log.Infof("Already shutting down, interrupt %d more times to panic", i-1)
			}
		}
		panic("Panic closing the beacon node")
	}()

	<-stop
}

// Close stops every registered service in reverse registration order.
func (b *BeaconNode) Close() {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.services.StopAll()
	log.Info("Stopping beacon node")
	close(b.stop)
}

func (b *BeaconNode) registerStorage(codec dbkv.Codec) error {
	if b.ctx.Bool(flags.ClearDB.Name) && b.ctx.String(flags.DataDirFlag.Name) != "" {
		if err := os.RemoveAll(b.ctx.String(flags.DataDirFlag.Name)); err != nil {
			return fmt.Errorf("could not clear datadir: %v", err)
		}
	}

	dataDir := b.ctx.String(flags.DataDirFlag.Name)
	if dataDir == "" || codec == nil {
		// No datadir, or no codec from the host's SSZ layer: keep everything
		// in memory rather than require a concrete block/state encoding this
		// package cannot supply on its own.
		if dataDir != "" {
			log.Warn("no block/state codec supplied; falling back to an in-memory fork choice store")
		}
		b.memStore = dbkv.NewMemoryStore()
		return nil
	}

	store, err := dbkv.NewKVStore(dataDir, codec)
	if err != nil {
		return fmt.Errorf("could not open fork choice database: %v", err)
	}
	b.store = store
	return b.services.RegisterService(store)
}

func (b *BeaconNode) sink() forkchoice.StorageSink {
	if b.store != nil {
		return b.store
	}
	return b.memStore
}

func (b *BeaconNode) registerForkChoice() error {
	b.forkChoice = forkchoice.NewService(b.spec, b.sink())
	if interopPath := b.ctx.String(flags.InteropGenesisStateFlag.Name); interopPath != "" {
		log.WithField("path", interopPath).Warn(
			"interop genesis state decoding is the host SSZ layer's responsibility; " +
				"call forkchoice.Service.SendGenesis once it has been decoded")
	}
	return b.services.RegisterService(b.forkChoice)
}

func (b *BeaconNode) registerOperationPools() error {
	b.slashingsPool = slashings.NewPool()
	b.voluntaryExitsPool = voluntaryexits.NewPool()
	if err := b.services.RegisterService(&slashingsPoolService{poolDrainService{b.slashingsPool}}); err != nil {
		return err
	}
	return b.services.RegisterService(&voluntaryExitsPoolService{poolDrainService{b.voluntaryExitsPool}})
}

func (b *BeaconNode) registerAttestationManager() error {
	manager, err := attestations.NewManager(b.spec, b.forkChoice)
	if err != nil {
		return fmt.Errorf("could not construct attestation manager: %v", err)
	}
	b.attestationManager = manager
	return b.services.RegisterService(&attestationRunnerService{runnerService{run: manager.Run}})
}

func (b *BeaconNode) registerBlockManager() error {
	manager := blockmanager.NewManager(b.spec, b.forkChoice, noopPeerFetcher{}, noopImporter{})
	b.blockManager = manager
	return b.services.RegisterService(&blockManagerRunnerService{runnerService{run: manager.Run}})
}

func (b *BeaconNode) registerSyncTracker() error {
	b.tracker = synctracker.New(b.spec, noopPeerCounter{}, noopSyncReporter{}, time.Now())
	return b.services.RegisterService(&trackerService{tracker: b.tracker})
}

func (b *BeaconNode) registerBlockchainService() error {
	service := blockchain.NewService(context.Background(), &blockchain.Config{
		Spec:    b.spec,
		Store:   b.forkChoice,
		Sync:    noopSyncReporter{},
		Peers:   noopPeerCounter{},
		Gossip:  noopBroadcaster{},
		Tracker: b.tracker,
	})
	return b.services.RegisterService(service)
}

// runnerService adapts a Run(ctx, *asyncutil.Runner) method, the shape the
// attestations and blockmanager periodic-sweep managers expose, to shared.Service so it
// can be registered without each manager needing to own its own goroutine
// lifecycle. The registry keys services by concrete type, so each manager
// that wants this adapter embeds it in its own named type below rather than
// sharing runnerService directly.
type runnerService struct {
	run    func(ctx context.Context, runner *asyncutil.Runner)
	cancel context.CancelFunc
}

func (r *runnerService) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.run(ctx, asyncutil.NewRunner(ctx))
}

func (r *runnerService) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}

func (r *runnerService) Status() error { return nil }

type attestationRunnerService struct{ runnerService }

type blockManagerRunnerService struct{ runnerService }

// drainable is satisfied by an operation pool's Clear method: discarding
// whatever is still pending rather than carrying it into the next process.
type drainable interface {
	Clear()
}

// poolDrainService adapts a drainable operation pool to shared.Service: the
// pool has no goroutine of its own, so Start is a no-op and Stop drains it.
// Embedded in two distinctly-named types below since the registry keys
// services by concrete type.
type poolDrainService struct {
	pool drainable
}

func (p *poolDrainService) Start() {}
func (p *poolDrainService) Stop() error {
	p.pool.Clear()
	return nil
}
func (p *poolDrainService) Status() error { return nil }

type slashingsPoolService struct{ poolDrainService }

type voluntaryExitsPoolService struct{ poolDrainService }

// trackerService adapts synctracker.Tracker to shared.Service so it
// participates in the registry's start/stop ordering. The tracker runs no
// goroutine of its own, and nothing in this package calls its Evaluate.
type trackerService struct {
	tracker *synctracker.Tracker
}

func (t *trackerService) Start() {}
func (t *trackerService) Stop() error { return nil }
func (t *trackerService) Status() error { return nil }

// The following no-op collaborators stand in for the p2p transport and gossip
// layer, which is out of scope here: a full node wires these to its libp2p
// stack instead.

type noopPeerFetcher struct{}

func (noopPeerFetcher) Peers() []string { return nil }
func (noopPeerFetcher) RequestBlockByRoot(ctx context.Context, peer string, root types.Root) error {
	return nil
}

type noopImporter struct{}

func (noopImporter) ImportBlock(ctx context.Context, block types.SignedBlock) error { return nil }

type noopPeerCounter struct{}

func (noopPeerCounter) PeerCount() int { return 0 }

type noopSyncReporter struct{}

func (noopSyncReporter) Syncing() bool { return false }

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastAttestation(headRoot types.Root, slot types.Slot) {}
func (noopBroadcaster) BroadcastAggregates(slot types.Slot)                       {}
