package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotpath/internal/execution"
	"hotpath/internal/schema"
	"hotpath/internal/venue"
)

var noSleep = execution.SleeperFunc(func(context.Context, time.Duration) error { return nil })

func baseSoak(orders int) soakConfig {
	return soakConfig{
		Orders:    orders,
		Symbol:    "SOAK-USD",
		Price:     schema.Price(100 * schema.One),
		Qty:       schema.Quantity(schema.One),
		Execution: execution.Config{MaxRetries: 5, RetryBaseDelay: time.Millisecond, RetryMaxDelay: 10 * time.Millisecond},
		Sleeper:   noSleep,
	}
}

func TestSoakWithoutFaults(t *testing.T) {
	cfg := baseSoak(50)
	cfg.Chaos = venue.ChaosConfig{Seed: 1}

	report, err := soak(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 50, report.Filled)
	assert.Equal(t, 50, report.VenueOrders)
	assert.Equal(t, 50, report.FillReports)
	assert.Zero(t, report.Retries)
}

func TestSoakNeverDoubleFills(t *testing.T) {
	cfg := baseSoak(200)
	cfg.Chaos = venue.ChaosConfig{Seed: 42, FailureRate: 0.3, RateLimitRate: 0.1, LostAckRate: 0.2}

	report, err := soak(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 200, report.Filled+report.Failed+report.Rejected)
	assert.Zero(t, report.Rejected)
	assert.Equal(t, report.Filled, report.FillReports)
	assert.GreaterOrEqual(t, report.VenueOrders, report.Filled)
	assert.LessOrEqual(t, report.VenueOrders, 200)
	assert.NotZero(t, report.Retries)
}

func TestSoakRejectsBadChaosConfig(t *testing.T) {
	cfg := baseSoak(1)
	cfg.Chaos = venue.ChaosConfig{FailureRate: 2}

	_, err := soak(context.Background(), cfg)
	assert.Error(t, err)
}
