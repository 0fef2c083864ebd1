package risk

import (
	"time"

	"hotpath/internal/schema"
)

// Config defines the pre-trade limits. A zero limit disables its check.
type Config struct {
	MaxPositionSize        schema.Quantity `json:"maxPositionSize"`
	MaxNotionalPerPosition schema.Notional `json:"maxNotionalPerPosition"`
	MaxTotalExposure       schema.Notional `json:"maxTotalExposure"`
	MaxDailyLoss           schema.Notional `json:"maxDailyLoss"`
	MaxOrderValue          schema.Notional `json:"maxOrderValue"`
	MaxOpenPositions       int             `json:"maxOpenPositions"`

	// Breaker trips on fills.
	MaxConsecutiveLosses int           `json:"maxConsecutiveLosses"`
	MaxDailyTrades       int           `json:"maxDailyTrades"`
	BreakerCooldown      time.Duration `json:"breakerCooldown"`

	// CorrelationGroups maps a symbol to its group. Symbols in one group
	// share MaxCorrelatedExposure.
	CorrelationGroups     map[string]string `json:"correlationGroups"`
	MaxCorrelatedExposure schema.Notional   `json:"maxCorrelatedExposure"`
}

func (c Config) groupOf(symbol string) (string, bool) {
	if c.MaxCorrelatedExposure <= 0 || len(c.CorrelationGroups) == 0 {
		return "", false
	}
	g, ok := c.CorrelationGroups[symbol]
	return g, ok && g != ""
}
