package risk

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"hotpath/pkg/exception"
)

// BreakerState is the circuit breaker state.
type BreakerState uint32

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "Closed"
	case BreakerOpen:
		return "Open"
	case BreakerHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// TripReason names what opened the breaker.
type TripReason string

const (
	TripNone              TripReason = ""
	TripDailyLoss         TripReason = "daily_loss"
	TripConsecutiveLosses TripReason = "consecutive_losses"
	TripDailyTrades       TripReason = "daily_trades"
	TripProbeFailed       TripReason = "probe_failed"
	TripManual            TripReason = "manual"
)

// BreakerStatus is a copy of the breaker state.
type BreakerStatus struct {
	State    BreakerState
	Reason   TripReason
	OpenedAt time.Time
}

// Breaker halts new risk-taking. State reads are a single atomic load;
// transitions are serialized by mu. While HalfOpen one probe check at a time
// holds the probe slot; probe identifies the slot so that a probe granted
// before a later trip cannot resolve the next HalfOpen period.
type Breaker struct {
	state atomic.Uint32
	trips atomic.Uint64

	mu       sync.Mutex
	reason   TripReason
	openedAt time.Time
	cooldown time.Duration
	probing  bool
	probe    uint64
	now      func() time.Time
}

// NewBreaker creates a closed breaker. cooldown 0 means only Resume leaves
// the Open state.
func NewBreaker(cooldown time.Duration) *Breaker {
	return &Breaker{cooldown: cooldown, now: time.Now}
}

func (b *Breaker) load() BreakerState {
	return BreakerState(b.state.Load())
}

// State returns the current state. An Open breaker whose cooldown has
// elapsed moves to HalfOpen.
func (b *Breaker) State() BreakerState {
	if s := b.load(); s != BreakerOpen {
		return s
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Breaker) stateLocked() BreakerState {
	if b.load() == BreakerOpen && b.cooldown > 0 && b.now().Sub(b.openedAt) >= b.cooldown {
		b.state.Store(uint32(BreakerHalfOpen))
		b.probing = false
		logs.Infof("circuit breaker half-open after cooldown %s (tripped by %s)", b.cooldown, b.reason)
	}
	return b.load()
}

// Status returns state, reason and open time.
func (b *Breaker) Status() BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStatus{State: b.stateLocked(), Reason: b.reason, OpenedAt: b.openedAt}
}

// admit decides whether a check may run. A Closed breaker admits every check
// with probe 0. A HalfOpen breaker admits the caller that takes the free
// probe slot and returns its probe id; every other caller gets the status to
// reject with.
func (b *Breaker) admit() (probe uint64, status BreakerStatus, ok bool) {
	if b.load() == BreakerClosed {
		return 0, BreakerStatus{State: BreakerClosed}, true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	status = BreakerStatus{State: b.stateLocked(), Reason: b.reason, OpenedAt: b.openedAt}
	switch status.State {
	case BreakerClosed:
		return 0, status, true
	case BreakerHalfOpen:
		if b.probing {
			return 0, status, false
		}
		b.probing = true
		b.probe++
		return b.probe, status, true
	default:
		return 0, status, false
	}
}

// Trip opens the breaker. It reports false if the breaker was already open.
func (b *Breaker) Trip(reason TripReason) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.load() == BreakerOpen {
		return false
	}
	b.openLocked(reason)
	logs.Errorf("circuit breaker opened: %s", reason)
	return true
}

func (b *Breaker) openLocked(reason TripReason) {
	b.reason = reason
	b.openedAt = b.now()
	b.probing = false
	b.state.Store(uint32(BreakerOpen))
	b.trips.Add(1)
}

// Resume moves an open breaker to HalfOpen. The next check decides whether
// it closes or opens again.
func (b *Breaker) Resume() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.load() != BreakerOpen {
		return exception.ErrRiskBreakerNotOpened
	}
	b.probing = false
	b.state.Store(uint32(BreakerHalfOpen))
	logs.Infof("circuit breaker resumed to half-open (tripped by %s)", b.reason)
	return nil
}

// SetCooldown updates the cooldown for future State calls.
func (b *Breaker) SetCooldown(d time.Duration) {
	b.mu.Lock()
	b.cooldown = d
	b.mu.Unlock()
}

// Trips returns how many times the breaker opened.
func (b *Breaker) Trips() uint64 {
	return b.trips.Load()
}

func (b *Breaker) holdsProbeLocked(probe uint64) bool {
	return probe != 0 && b.probing && b.probe == probe && b.load() == BreakerHalfOpen
}

// probeSucceeded closes the breaker if probe still holds the slot.
func (b *Breaker) probeSucceeded(probe uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.holdsProbeLocked(probe) {
		return
	}
	b.probing = false
	b.reason = TripNone
	b.openedAt = time.Time{}
	b.state.Store(uint32(BreakerClosed))
	logs.Info("circuit breaker closed")
}

// probeFailed reopens the breaker if probe still holds the slot.
func (b *Breaker) probeFailed(probe uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.holdsProbeLocked(probe) {
		return false
	}
	b.openLocked(TripProbeFailed)
	logs.Errorf("circuit breaker reopened: half-open probe failed")
	return true
}
