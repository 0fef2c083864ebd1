package venue

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/yanun0323/errors"

	"hotpath/internal/execution"
	"hotpath/pkg/exception"
)

// ChaosConfig controls failure injection in front of a venue.
type ChaosConfig struct {
	Seed          int64         `json:"seed"`
	FailureRate   float64       `json:"failureRate"`
	RateLimitRate float64       `json:"rateLimitRate"`
	LostAckRate   float64       `json:"lostAckRate"`
	MaxDelay      time.Duration `json:"maxDelay"`
}

// Validate ensures the config is within supported ranges.
func (c ChaosConfig) Validate() error {
	for name, rate := range map[string]float64{
		"failureRate":   c.FailureRate,
		"rateLimitRate": c.RateLimitRate,
		"lostAckRate":   c.LostAckRate,
	} {
		if rate < 0 || rate > 1 {
			return errors.Wrapf(exception.ErrInvalidArgument, "%s must be between 0 and 1", name)
		}
	}
	if c.MaxDelay < 0 {
		return errors.Wrap(exception.ErrInvalidArgument, "maxDelay must be >= 0")
	}
	return nil
}

// Chaos wraps a venue with seeded transient failures and latency. A lost
// ack forwards the order and then reports a transient failure, so only the
// idempotency key keeps the retry from filling twice.
type Chaos struct {
	next execution.Venue
	cfg  ChaosConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewChaos creates a chaos decorator with validation.
func NewChaos(next execution.Venue, cfg ChaosConfig) (*Chaos, error) {
	if next == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "venue")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Chaos{
		next: next,
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Submit applies delay and failure rules before and after the inner venue.
func (c *Chaos) Submit(ctx context.Context, req execution.SubmitRequest) (execution.SubmitResponse, error) {
	delay, fail, limited, lostAck := c.roll()

	if delay > 0 {
		if err := execution.TimerSleeper.Sleep(ctx, delay); err != nil {
			return execution.SubmitResponse{}, err
		}
	}
	if limited {
		return execution.SubmitResponse{}, errors.Wrap(exception.ErrVenueRateLimited, "chaos: 429")
	}
	if fail {
		return execution.SubmitResponse{}, errors.Wrap(exception.ErrVenueTransient, "chaos: 503")
	}

	resp, err := c.next.Submit(ctx, req)
	if err == nil && lostAck {
		return execution.SubmitResponse{}, errors.Wrap(exception.ErrVenueTransient, "chaos: ack lost")
	}
	return resp, err
}

func (c *Chaos) roll() (delay time.Duration, fail, limited, lostAck bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if maxDelay := c.cfg.MaxDelay.Nanoseconds(); maxDelay > 0 {
		delay = time.Duration(c.rng.Int63n(maxDelay + 1))
	}
	limited = c.cfg.RateLimitRate > 0 && c.rng.Float64() < c.cfg.RateLimitRate
	fail = c.cfg.FailureRate > 0 && c.rng.Float64() < c.cfg.FailureRate
	lostAck = c.cfg.LostAckRate > 0 && c.rng.Float64() < c.cfg.LostAckRate
	return delay, fail, limited, lostAck
}
