// Package synctracker implements the sync-state gate: a small state machine
// over Pending, InSync, and Syncing that reports whether the local chain view
// is caught up with the network. The blockchain tick handler holds a Tracker
// but does not consult it. Grounded on the peerstatus-style
// peer-count gauge referenced throughout sync/pending_blocks_queue.go
// (peerstatus.Keys()) and the service-state boolean the initial-sync package
// exposes, reshaped here into an explicit three-state machine per the
// tracker's transition table.
package synctracker

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prysmaticlabs/prysm/beacon-chain/params"
)

var log = logrus.WithField("prefix", "synctracker")

// State is one of Pending, InSync, or Syncing.
type State int

const (
	// Pending is the tracker's initial state: neither enough peers nor a
	// clear signal from the sync service yet.
	Pending State = iota
	// InSync means the node believes its chain view is caught up.
	InSync
	// Syncing means the sync service reports active catch-up.
	Syncing
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InSync:
		return "in_sync"
	case Syncing:
		return "syncing"
	default:
		return "unknown"
	}
}

// PeerCounter reports the number of currently connected peers.
type PeerCounter interface {
	PeerCount() int
}

// SyncReporter reports whether the sync service currently considers itself
// actively catching up.
type SyncReporter interface {
	Syncing() bool
}

// Tracker holds the current sync state and evaluates transitions.
type Tracker struct {
	spec    *params.ChainSpec
	peers   PeerCounter
	syncSvc SyncReporter
	start   time.Time

	mu    sync.RWMutex
	state State
}

// New constructs a Tracker in the Pending state, timing the startup timeout
// from the moment it is constructed.
func New(spec *params.ChainSpec, peers PeerCounter, syncSvc SyncReporter, now time.Time) *Tracker {
	return &Tracker{spec: spec, peers: peers, syncSvc: syncSvc, start: now, state: Pending}
}

// State returns the tracker's current state.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// IsInSync reports whether normal operation (attestation/aggregation
// participation) should proceed. The validator-facing API calls this to
// refuse duty fulfilment while catch-up is active.
func (t *Tracker) IsInSync() bool {
	return t.State() == InSync
}

// Evaluate re-checks peer count, sync-service state, and the startup
// timeout against the transition table and updates the tracker's state,
// returning true if it changed. Intended to be called on every wall-clock
// tick alongside the fork-choice tick handler.
func (t *Tracker) Evaluate(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	peerCount := t.peers.PeerCount()
	syncing := t.syncSvc.Syncing()
	prev := t.state

	switch t.state {
	case Pending:
		switch {
		case peerCount >= t.spec.SyncTargetPeerCount && !syncing:
			t.state = InSync
		case syncing:
			t.state = Syncing
		case now.Sub(t.start) >= t.spec.StartupTimeout && peerCount > 0:
			t.state = InSync
		}
	case InSync:
		if syncing {
			t.state = Syncing
		}
	case Syncing:
		if !syncing {
			t.state = InSync
		}
	}

	if t.state != prev {
		log.WithFields(logrus.Fields{"from": prev, "to": t.state}).Info("sync state transition")
		return true
	}
	return false
}
