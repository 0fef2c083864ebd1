package execution

import (
	"time"

	"github.com/yanun0323/errors"

	"hotpath/pkg/exception"
)

// Config controls the router gates and retry policy.
type Config struct {
	RateLimitPerSecond float64       `json:"rateLimitPerSecond"`
	RateBurst          int           `json:"rateBurst"`
	RateWaitTimeout    time.Duration `json:"rateWaitTimeout"`
	MaxSlippageBps     int64         `json:"maxSlippageBps"`
	MaxRetries         int           `json:"maxRetries"`
	RetryBaseDelay     time.Duration `json:"retryBaseDelay"`
	RetryMaxDelay      time.Duration `json:"retryMaxDelay"`
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	switch {
	case c.RateLimitPerSecond < 0:
		return errors.Wrap(exception.ErrInvalidArgument, "rateLimitPerSecond must be >= 0")
	case c.RateBurst < 0:
		return errors.Wrap(exception.ErrInvalidArgument, "rateBurst must be >= 0")
	case c.RateWaitTimeout < 0:
		return errors.Wrap(exception.ErrInvalidArgument, "rateWaitTimeout must be >= 0")
	case c.MaxSlippageBps < 0:
		return errors.Wrap(exception.ErrInvalidArgument, "maxSlippageBps must be >= 0")
	case c.MaxRetries < 0:
		return errors.Wrap(exception.ErrInvalidArgument, "maxRetries must be >= 0")
	case c.RetryBaseDelay < 0, c.RetryMaxDelay < 0:
		return errors.Wrap(exception.ErrInvalidArgument, "retry delays must be >= 0")
	}
	return nil
}

func (c Config) burst() int {
	if c.RateBurst > 0 {
		return c.RateBurst
	}
	return 1
}
