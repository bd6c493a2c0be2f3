// Package kv is the bbolt-backed implementation of forkchoice.StorageSink:
// it durably persists every committed store transaction's writes and
// pruning set, and can reconstruct the most recently persisted store on
// restart. Adapted from the older db/kv.Store (BoltDB-backed, bucket schema
// created up front, block/validator ristretto caches, a prombolt metrics
// collector registered against the db handle); ported to go.etcd.io/bbolt
// (the module's actual declared dependency, boltdb/bolt's maintained fork)
// and prysmaticlabs/prombbolt for the equivalent metrics collector.
package kv

import (
	"os"
	"path"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prysmaticlabs/prombbolt"
	"go.etcd.io/bbolt"

	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
	"github.com/prysmaticlabs/prysm/beacon-chain/forkchoice"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
)

const (
	databaseFileName = "beaconchain.db"
	// blockCacheNumCounters and blockCacheMaxCost size the ristretto cache of
	// hot blocks; each cached block costs 1.
	blockCacheNumCounters = 1000
	blockCacheMaxCost     = 1 << 21
)

// Store is the bbolt-backed forkchoice.StorageSink.
type Store struct {
	db           *bbolt.DB
	databasePath string
	codec        Codec
	blockCache   *ristretto.Cache
}

var _ forkchoice.StorageSink = (*Store)(nil)

// NewKVStore opens (creating if necessary) a bbolt database at dirPath and
// prepares its bucket schema.
func NewKVStore(dirPath string, codec Codec) (*Store, error) {
	if err := os.MkdirAll(dirPath, 0700); err != nil {
		return nil, err
	}
	datafile := path.Join(dirPath, databaseFileName)
	db, err := bbolt.Open(datafile, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		if err == bbolt.ErrTimeout {
			return nil, errors.New("cannot obtain database lock, database may be in use by another process")
		}
		return nil, err
	}

	blockCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: blockCacheNumCounters,
		MaxCost:     blockCacheMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	store := &Store{db: db, databasePath: dirPath, codec: codec, blockCache: blockCache}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{
			hotBlocksBucket, hotStatesBucket, checkpointStatesBucket,
			finalizedBlockRootsBucket, finalizedBySlotBucket,
			chainMetadataBucket,
		} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := prometheus.Register(prombbolt.New("beacon_chain_db", db)); err != nil {
		log.WithError(err).Debug("bbolt metrics collector already registered")
	}

	return store, nil
}

// Start is a no-op: NewKVStore already opened the database and created its
// bucket schema, so there is nothing left to do once the registry starts it.
// It exists so Store satisfies shared.Service and participates in the
// registry's start/stop ordering.
func (s *Store) Start() {}

// Stop closes the underlying bbolt database.
func (s *Store) Stop() error {
	return s.db.Close()
}

// Status reports whether the underlying bbolt handle is still reachable.
func (s *Store) Status() error {
	return s.db.View(func(tx *bbolt.Tx) error { return nil })
}

// Close is an alias for Stop, kept for callers (tests, CLI teardown) that
// don't go through the service registry.
func (s *Store) Close() error {
	return s.Stop()
}

// DatabasePath returns the directory this store writes files under.
func (s *Store) DatabasePath() string {
	return s.databasePath
}

// ClearDB removes the database file from disk, for test teardown and the
// --clear-db CLI flag.
func (s *Store) ClearDB() error {
	datafile := path.Join(s.databasePath, databaseFileName)
	if _, err := os.Stat(datafile); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(datafile)
}

// WriteUpdate durably applies u: it writes every new block/state/checkpoint
// state, advances the checkpoint/finalized metadata keys, and deletes
// anything named in the pruning set, all inside a single bbolt transaction
// so a crash mid-write never leaves the on-disk schema half-updated.
func (s *Store) WriteUpdate(u *forkchoice.StorageUpdate) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		blocks := tx.Bucket(hotBlocksBucket)
		states := tx.Bucket(hotStatesBucket)
		cpStates := tx.Bucket(checkpointStatesBucket)
		meta := tx.Bucket(chainMetadataBucket)
		finalizedRoots := tx.Bucket(finalizedBlockRootsBucket)
		finalizedBySlot := tx.Bucket(finalizedBySlotBucket)

		for root, block := range u.Blocks {
			enc, err := s.codec.EncodeBlock(block)
			if err != nil {
				return err
			}
			if err := blocks.Put(root[:], enc); err != nil {
				return err
			}
			s.blockCache.Set(root, block, 1)
		}
		for root, state := range u.BlockStates {
			enc, err := s.codec.EncodeState(state)
			if err != nil {
				return err
			}
			if err := states.Put(root[:], enc); err != nil {
				return err
			}
		}
		for cp, state := range u.CheckpointStates {
			enc, err := s.codec.EncodeState(state)
			if err != nil {
				return err
			}
			if err := cpStates.Put(checkpointKey(cp), enc); err != nil {
				return err
			}
		}

		if u.Justified != nil {
			if err := meta.Put(keyJustified, checkpointKey(*u.Justified)); err != nil {
				return err
			}
		}
		if u.BestJustified != nil {
			if err := meta.Put(keyBestJustified, checkpointKey(*u.BestJustified)); err != nil {
				return err
			}
		}
		if u.Finalized != nil {
			if err := meta.Put(keyFinalized, checkpointKey(*u.Finalized)); err != nil {
				return err
			}
			if err := finalizedRoots.Put(u.Finalized.Root[:], slotIndexValue(u.Finalized.Epoch)); err != nil {
				return err
			}
			if err := finalizedBySlot.Put(epochKey(u.Finalized.Epoch), u.Finalized.Root[:]); err != nil {
				return err
			}
		}

		for _, root := range u.PrunedBlocks {
			if err := blocks.Delete(root[:]); err != nil {
				return err
			}
			if err := states.Delete(root[:]); err != nil {
				return err
			}
			s.blockCache.Del(root)
		}
		for _, cp := range u.PrunedCheckpointStates {
			if err := cpStates.Delete(checkpointKey(cp)); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadStore reconstructs the most recently persisted Store from its
// finalized checkpoint forward. ok is false if the metadata bucket has never
// had a finalized checkpoint written to it (first run). Hot (non-finalized)
// blocks and attestation latest-messages are not replayed: they are
// re-derived from gossip and re-imported blocks after restart, the same way
// the fork-choice store would rebuild them following any period offline.
func (s *Store) LoadStore(spec *params.ChainSpec) (*forkchoice.Store, bool, error) {
	var (
		finalizedBytes     []byte
		justifiedBytes     []byte
		bestJustifiedBytes []byte
		blockBytes         []byte
		stateBytes         []byte
		ok                 bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(chainMetadataBucket)
		finalizedBytes = meta.Get(keyFinalized)
		if finalizedBytes == nil {
			return nil
		}
		ok = true
		justifiedBytes = meta.Get(keyJustified)
		bestJustifiedBytes = meta.Get(keyBestJustified)

		root := finalizedRootFromKey(finalizedBytes)
		blockBytes = tx.Bucket(hotBlocksBucket).Get(root[:])
		stateBytes = tx.Bucket(checkpointStatesBucket).Get(finalizedBytes)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	finalized := checkpointFromKey(finalizedBytes)
	justified := finalized
	if justifiedBytes != nil {
		justified = checkpointFromKey(justifiedBytes)
	}
	bestJustified := justified
	if bestJustifiedBytes != nil {
		bestJustified = checkpointFromKey(bestJustifiedBytes)
	}

	block, err := s.codec.DecodeBlock(blockBytes)
	if err != nil {
		return nil, false, err
	}
	state, err := s.codec.DecodeState(stateBytes)
	if err != nil {
		return nil, false, err
	}

	store, err := forkchoice.RestoreStore(spec, state.GenesisTime(), state.GenesisTime(), block, state, justified, bestJustified, finalized)
	if err != nil {
		return nil, false, err
	}
	return store, true, nil
}

func checkpointKey(cp types.Checkpoint) []byte {
	key := make([]byte, 8+32)
	putUint64(key[:8], uint64(cp.Epoch))
	copy(key[8:], cp.Root[:])
	return key
}

func checkpointFromKey(key []byte) types.Checkpoint {
	var cp types.Checkpoint
	cp.Epoch = types.Epoch(getUint64(key[:8]))
	copy(cp.Root[:], key[8:])
	return cp
}

func finalizedRootFromKey(key []byte) types.Root {
	var root types.Root
	copy(root[:], key[8:])
	return root
}

func getUint64(src []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(src[i]) << (56 - 8*i)
	}
	return v
}

func epochKey(e types.Epoch) []byte {
	key := make([]byte, 8)
	putUint64(key, uint64(e))
	return key
}

func slotIndexValue(e types.Epoch) []byte {
	return epochKey(e)
}

func putUint64(dst []byte, v uint64) {
	for i := 0; i < 8; i++ {
		dst[i] = byte(v >> (56 - 8*i))
	}
}
