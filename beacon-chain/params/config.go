// Package params defines the tunable constants the beacon-chain consensus
// core needs. Earlier revisions of this package (and of the wider Prysm
// stack it's adapted from) exposed these as a process-wide
// params.BeaconConfig() singleton. This package instead exposes ChainSpec as
// a plain value, constructed once at startup and threaded explicitly through
// every component's constructor, so that tests can run multiple independent
// specs in the same process without mutating shared state.
package params

import "time"

// ChainSpec holds every constant the consensus core consults. Field names
// mirror the spec constants they implement (SecondsPerSlot, SlotsPerEpoch,
// ...) so call sites read the same way the protocol spec does.
type ChainSpec struct {
	SecondsPerSlot uint64
	SlotsPerEpoch  uint64

	// GenesisEpoch is the epoch number assigned to the genesis checkpoint.
	GenesisEpoch uint64

	// EpochsPerEth1VotingPeriod is the size of the eth1 majority-vote window.
	EpochsPerEth1VotingPeriod uint64

	// Operation pool limits, enforced by get_for_block.
	MaxAttestations      uint64
	MaxAttesterSlashings uint64
	MaxProposerSlashings uint64
	MaxVoluntaryExits    uint64

	// DefaultBufferSize sizes the ingestion channels feeding each manager.
	DefaultBufferSize int

	// SyncTargetPeerCount is the peer count at which the sync-state tracker
	// is willing to declare InSync, and StartupTimeout is the grace period
	// after which it does so anyway provided at least one peer is connected.
	SyncTargetPeerCount int
	StartupTimeout      time.Duration
}

// SecondsPerThird returns one third of a slot's duration, the interval at
// which the attestation-due and aggregation-due phases are evaluated.
func (c *ChainSpec) SecondsPerThird() uint64 {
	return c.SecondsPerSlot / 3
}

// SlotStartTime returns the wall-clock second at which the given slot begins.
func (c *ChainSpec) SlotStartTime(genesisTime, slot uint64) uint64 {
	return genesisTime + slot*c.SecondsPerSlot
}

// StartSlot returns the first slot number of the given epoch.
func (c *ChainSpec) StartSlot(epoch uint64) uint64 {
	return epoch * c.SlotsPerEpoch
}

// SlotToEpoch returns the epoch number of the given slot.
func (c *ChainSpec) SlotToEpoch(slot uint64) uint64 {
	return slot / c.SlotsPerEpoch
}

// IsEpochStart returns true if slot is the first slot of its epoch.
func (c *ChainSpec) IsEpochStart(slot uint64) bool {
	return slot%c.SlotsPerEpoch == 0
}

// MainnetConfig returns the production chain spec.
func MainnetConfig() *ChainSpec {
	return &ChainSpec{
		SecondsPerSlot:            12,
		SlotsPerEpoch:             32,
		GenesisEpoch:              0,
		EpochsPerEth1VotingPeriod: 64,
		MaxAttestations:           128,
		MaxAttesterSlashings:      2,
		MaxProposerSlashings:      16,
		MaxVoluntaryExits:         16,
		DefaultBufferSize:         1000,
		SyncTargetPeerCount:       3,
		StartupTimeout:            30 * time.Second,
	}
}

// MinimalConfig returns a short-epoch spec (8 slots per epoch; slots keep the
// mainnet 12 seconds) used by tests and interop networks,
// matching the literal values used throughout spec scenario walkthroughs.
func MinimalConfig() *ChainSpec {
	c := MainnetConfig()
	c.SlotsPerEpoch = 8
	c.SyncTargetPeerCount = 1
	return c
}
