// Package slotutil provides wall-clock tickers that translate genesis time
// into slot and epoch boundaries. Adapted from the beacon chain's original
// utils.SlotTicker (one tick per slot, corrected so the gap between ticks and
// genesis is always a multiple of the slot duration) and generalized with an
// explicit params.ChainSpec instead of a params.GetConfig() singleton.
package slotutil

import (
	"time"

	"github.com/prysmaticlabs/prysm/beacon-chain/params"
	"github.com/prysmaticlabs/prysm/shared/roughtime"
)

// Ticker is satisfied by both SlotTicker and EpochTicker.
type Ticker interface {
	C() <-chan uint64
	Done()
}

// SlotTicker emits the new slot number once per slot interval, corrected so
// ticks land on genesisTime + n*SecondsPerSlot regardless of when the ticker
// was constructed.
type SlotTicker struct {
	c    chan uint64
	done chan struct{}
}

// C returns the ticker channel. Callers must call Done to release the
// goroutine once finished.
func (s *SlotTicker) C() <-chan uint64 {
	return s.c
}

// Done stops the ticker and releases its goroutine.
func (s *SlotTicker) Done() {
	close(s.done)
}

// NewSlotTicker constructs a running SlotTicker.
func NewSlotTicker(genesisTime time.Time, spec *params.ChainSpec) *SlotTicker {
	t := &SlotTicker{
		c:    make(chan uint64),
		done: make(chan struct{}),
	}
	t.start(genesisTime, spec.SecondsPerSlot, roughtime.Since, roughtime.Until, time.After)
	return t
}

func (s *SlotTicker) start(
	genesisTime time.Time,
	secondsPerSlot uint64,
	since func(time.Time) time.Duration,
	until func(time.Time) time.Duration,
	after func(time.Duration) <-chan time.Time,
) {
	d := time.Duration(secondsPerSlot) * time.Second

	go func() {
		sinceGenesis := since(genesisTime)

		var nextTickTime time.Time
		var slot uint64
		if sinceGenesis < 0 {
			nextTickTime = genesisTime
			slot = 0
		} else {
			nextTick := sinceGenesis.Truncate(d) + d
			nextTickTime = genesisTime.Add(nextTick)
			slot = uint64(nextTick / d)
		}

		for {
			waitTime := until(nextTickTime)
			select {
			case <-after(waitTime):
				select {
				case s.c <- slot:
				case <-s.done:
					return
				}
				slot++
				nextTickTime = nextTickTime.Add(d)
			case <-s.done:
				return
			}
		}
	}()
}

// EpochTicker emits the new epoch number once per epoch boundary, built on
// top of SlotTicker the same way the wider stack's slotutil.NewEpochTicker
// is built on its slot ticker.
type EpochTicker struct {
	slotTicker *SlotTicker
	c          chan uint64
	done       chan struct{}
	spec       *params.ChainSpec
}

// C returns the epoch ticker channel.
func (e *EpochTicker) C() <-chan uint64 {
	return e.c
}

// Done stops the underlying slot ticker and releases the goroutine.
func (e *EpochTicker) Done() {
	close(e.done)
	e.slotTicker.Done()
}

// NewEpochTicker constructs a running EpochTicker.
func NewEpochTicker(genesisTime time.Time, spec *params.ChainSpec) *EpochTicker {
	e := &EpochTicker{
		slotTicker: NewSlotTicker(genesisTime, spec),
		c:          make(chan uint64),
		done:       make(chan struct{}),
		spec:       spec,
	}
	go e.run()
	return e
}

func (e *EpochTicker) run() {
	for {
		select {
		case slot, ok := <-e.slotTicker.C():
			if !ok {
				return
			}
			if e.spec.IsEpochStart(slot) {
				select {
				case e.c <- e.spec.SlotToEpoch(slot):
				case <-e.done:
					return
				}
			}
		case <-e.done:
			return
		}
	}
}

// WallClockTicker ticks at least once per second regardless of slot boundary,
// the granularity the spec's wall-clock tick handler requires so that the
// 1/3- and 2/3-slot phase deadlines are observed promptly.
type WallClockTicker struct {
	ticker *time.Ticker
	done   chan struct{}
}

// NewWallClockTicker starts a ticker firing every resolution (typically one
// second or finer).
func NewWallClockTicker(resolution time.Duration) *WallClockTicker {
	return &WallClockTicker{
		ticker: time.NewTicker(resolution),
		done:   make(chan struct{}),
	}
}

// C returns the tick channel; each tick carries the wall-clock time observed.
func (w *WallClockTicker) C() <-chan time.Time {
	return w.ticker.C
}

// Done stops the ticker.
func (w *WallClockTicker) Done() {
	w.ticker.Stop()
	close(w.done)
}

// SlotsSinceGenesis returns the number of slots elapsed since genesisTime as
// observed at roughtime.Now().
func SlotsSinceGenesis(genesisTime time.Time, spec *params.ChainSpec) uint64 {
	if roughtime.Now().Before(genesisTime) {
		return 0
	}
	return uint64(roughtime.Since(genesisTime).Seconds()) / spec.SecondsPerSlot
}

// DivideSlotBy returns one Nth of a slot's duration, used by phase timers
// that must poll faster than once per slot.
func DivideSlotBy(spec *params.ChainSpec, n int64) time.Duration {
	return time.Duration(int64(spec.SecondsPerSlot)*int64(time.Second)) / time.Duration(n)
}
