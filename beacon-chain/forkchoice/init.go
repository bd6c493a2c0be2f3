package forkchoice

import (
	"context"
	"time"

	"github.com/prysmaticlabs/prysm/beacon-chain/chainerr"
	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
)

// startWithContext runs the store's startup protocol: ask the storage sink
// for a previously persisted store, retrying with exponential backoff and
// never giving up (a wedged database is an operator problem, not one this
// loop should paper over by booting with an empty store). If the sink has
// never been written to, it blocks on genesis, consuming the first value
// sent to genesisReady. Start wraps this in a goroutine to satisfy
// shared.Service; tests that want synchronous, deterministic startup can
// call this directly.
//
// Modeled on the teacher's powchain block_reader startup retry loop (bounded
// exponential backoff around a blocking external dependency) and the older
// blockchain Service's wait-for-genesis channel pattern.
func (svc *Service) startWithContext(ctx context.Context, genesisReady <-chan genesisData) error {
	if store, ok, err := svc.tryLoad(ctx); err != nil {
		return err
	} else if ok {
		svc.swap(store, true)
		log.WithField("finalized", store.FinalizedCheckpoint()).Info("restored fork choice store from storage")
		return nil
	}

	log.Info("no persisted fork choice store found, waiting for genesis")
	select {
	case g := <-genesisReady:
		return svc.InitializeFromGenesis(g.block, g.state)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// genesisData bundles the genesis block/state pair the Eth1 follower
// publishes once the deposit threshold and genesis delay are satisfied.
type genesisData struct {
	block types.SignedBlock
	state types.BeaconState
}

func (svc *Service) tryLoad(ctx context.Context) (*Store, bool, error) {
	backoff := 200 * time.Millisecond
	const maxBackoff = 30 * time.Second
	for {
		store, ok, err := svc.sink.LoadStore(svc.spec)
		if err == nil {
			return store, ok, nil
		}
		log.WithError(err).Warn("failed to load fork choice store, retrying")
		select {
		case <-time.After(backoff):
			if backoff < maxBackoff {
				backoff *= 2
			}
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

// InitializeFromGenesis synthesizes a store from a genesis (or interop)
// block/state pair and installs it. Calling it a second time is a
// programming error: once a store exists, restart goes through Start/
// tryLoad, never back through genesis.
func (svc *Service) InitializeFromGenesis(genesisBlock types.SignedBlock, genesisState types.BeaconState) error {
	if svc.GetStore() != nil {
		return chainerr.ErrAlreadyInitialized
	}
	store, err := NewGenesisStore(svc.spec, genesisBlock, genesisState)
	if err != nil {
		return err
	}
	svc.swap(store, true)
	log.WithField("genesis_time", store.GenesisTime()).Info("initialized fork choice store from genesis")
	return nil
}
