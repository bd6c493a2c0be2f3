// Package powchain maintains the eth1-data majority-vote cache and the
// append-only deposit stream a block proposer draws `Eth1Data` and deposit
// proofs from. The eth1 follower's own log-watching and RPC-client internals
// (Web3Service.blockFetcher, its geth client dial, log subscription) are out
// of scope; this package only keeps the two caches the rest of the
// consensus core depends on, fed by whatever follower the host process
// wires in through RecordBlock/RecordDeposit.
//
// Grounded on Web3Service's blockCache (BlockExists/BlockHashByHeight
// consulting a recent-block cache before falling back to a fetch) and
// log_processing.go's deposit-log ingestion shape, adapted from a
// geth-client-backed fetcher into a plain append-only cache the orchestrator
// feeds directly.
package powchain

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/prysmaticlabs/prysm/beacon-chain/core/types"
	"github.com/prysmaticlabs/prysm/beacon-chain/params"
)

// Eth1Data mirrors the block-hash/deposit-count/deposit-root triple proposers
// vote for once per voting period.
type Eth1Data struct {
	BlockHash    common.Hash
	DepositRoot  types.Root
	DepositCount uint64
}

// Deposit is a single validator deposit observed in an eth1 block, ordered
// by its Merkle-tree index.
type Deposit struct {
	Index     uint64
	Amount    uint64
	PublicKey []byte
}

// blockRecord is a cached eth1 block header, enough for BlockExists/
// BlockHashByHeight lookups without refetching from the follower.
type blockRecord struct {
	hash   common.Hash
	number *big.Int
}

// Cache holds the recent eth1 blocks seen by the follower and the
// accumulated deposit stream, and computes the majority-vote Eth1Data for
// the current voting period.
type Cache struct {
	spec *params.ChainSpec

	mu         sync.RWMutex
	byHash     map[common.Hash]*blockRecord
	byHeight   map[string]*blockRecord
	votes      map[common.Hash]int
	deposits   []Deposit
}

// NewCache returns an empty eth1 data cache.
func NewCache(spec *params.ChainSpec) *Cache {
	return &Cache{
		spec:     spec,
		byHash:   make(map[common.Hash]*blockRecord),
		byHeight: make(map[string]*blockRecord),
		votes:    make(map[common.Hash]int),
	}
}

// RecordBlock files an eth1 block's hash/height pair, as observed by the
// host process's eth1 follower.
func (c *Cache) RecordBlock(hash common.Hash, number *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec := &blockRecord{hash: hash, number: number}
	c.byHash[hash] = rec
	c.byHeight[number.String()] = rec
}

// BlockExists reports whether hash has been recorded, and its height.
func (c *Cache) BlockExists(hash common.Hash) (bool, *big.Int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.byHash[hash]
	if !ok {
		return false, nil
	}
	return true, rec.number
}

// BlockHashByHeight returns the hash recorded at the given height.
func (c *Cache) BlockHashByHeight(height *big.Int) (common.Hash, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.byHeight[height.String()]
	if !ok {
		return common.Hash{}, false
	}
	return rec.hash, true
}

// RecordVote tallies one proposer's eth1 block-hash vote for the current
// voting period.
func (c *Cache) RecordVote(hash common.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.votes[hash]++
}

// ResetVotingPeriod clears accumulated votes, called at each
// EPOCHS_PER_ETH1_VOTING_PERIOD boundary.
func (c *Cache) ResetVotingPeriod() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.votes = make(map[common.Hash]int)
}

// MajorityVote returns the eth1 block hash with the most votes so far in the
// current period, or ok=false if no votes have been recorded.
func (c *Cache) MajorityVote() (common.Hash, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var best common.Hash
	bestCount := 0
	for hash, count := range c.votes {
		if count > bestCount {
			best, bestCount = hash, count
		}
	}
	return best, bestCount > 0
}

// RecordDeposit appends d to the deposit stream. The follower is responsible
// for calling this in strict index order.
func (c *Cache) RecordDeposit(d Deposit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deposits = append(c.deposits, d)
}

// DepositMerkleProof returns the deposit at index along with every deposit
// that preceded it, the minimal context a block factory needs to rebuild the
// Merkle proof. Full Merkle-tree-path construction is SSZ/crypto territory
// out of scope here; this returns the ordered prefix the caller hashes.
func (c *Cache) DepositMerkleProof(index uint64) ([]Deposit, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index >= uint64(len(c.deposits)) {
		return nil, false
	}
	out := make([]Deposit, index+1)
	copy(out, c.deposits[:index+1])
	return out, true
}

// DepositCount returns the number of deposits recorded so far.
func (c *Cache) DepositCount() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return uint64(len(c.deposits))
}
