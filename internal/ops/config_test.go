package ops

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotpath/internal/schema"
	"hotpath/pkg/exception"
)

const sampleYAML = `
risk:
  max_position_size: 100
  max_notional_per_position: 20000
  max_total_exposure: 50000
  max_daily_loss: 1000.5
  max_order_value: 5000
  max_open_positions: 4
  max_consecutive_losses: 3
  max_daily_trades: 200
  breaker_cooldown: 30s
  max_correlated_exposure: 30000
  correlation_groups:
    tech: [AAPL, MSFT]
    crypto: [BTC-USD]
execution:
  rate_limit_per_second: 5
  rate_burst: 2
  rate_wait_timeout: 2s
  max_slippage_bps: 25
  max_retries: 4
  retry_base_delay: 50ms
  retry_max_delay: 1s
venue:
  mode: http
  base_url: https://api.example.com
  api_key: ${HOTPATH_TEST_KEY}
  api_secret: ${HOTPATH_TEST_SECRET}
  timeout: 3s
chaos:
  enabled: true
  seed: 7
  failure_rate: 0.2
journal:
  output: audit.log
  max_size: 10
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("HOTPATH_TEST_KEY", "key-1")
	t.Setenv("HOTPATH_TEST_SECRET", "secret-1")
	path := writeConfig(t, "config.yaml", sampleYAML)

	loaded, err := Load(path)
	require.NoError(t, err)

	r := loaded.Risk
	assert.Equal(t, schema.Quantity(100*schema.One), r.MaxPositionSize)
	assert.Equal(t, schema.Notional(20_000*schema.One), r.MaxNotionalPerPosition)
	assert.Equal(t, schema.Notional(1000_50_000_000), r.MaxDailyLoss)
	assert.Equal(t, 4, r.MaxOpenPositions)
	assert.Equal(t, 3, r.MaxConsecutiveLosses)
	assert.Equal(t, 30*time.Second, r.BreakerCooldown)
	assert.Equal(t, map[string]string{"AAPL": "tech", "MSFT": "tech", "BTC-USD": "crypto"}, r.CorrelationGroups)

	e := loaded.Execution
	assert.Equal(t, 5.0, e.RateLimitPerSecond)
	assert.Equal(t, 2, e.RateBurst)
	assert.Equal(t, int64(25), e.MaxSlippageBps)
	assert.Equal(t, 4, e.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, e.RetryBaseDelay)
	assert.Equal(t, time.Second, e.RetryMaxDelay)

	v := loaded.Venue
	assert.Equal(t, VenueModeHTTP, v.Mode)
	assert.Equal(t, "key-1", v.HTTP.APIKey)
	assert.Equal(t, "secret-1", v.HTTP.APISecret)
	assert.Equal(t, "/v1/orders", v.HTTP.OrderPath)
	assert.Equal(t, 3*time.Second, v.HTTP.Timeout)
	require.NotNil(t, v.Chaos)
	assert.Equal(t, int64(7), v.Chaos.Seed)
	assert.Equal(t, 0.2, v.Chaos.FailureRate)

	assert.Equal(t, "audit.log", loaded.Journal.Output)
	assert.Equal(t, 10, loaded.Journal.MaxSize)
	assert.Equal(t, 5, loaded.Journal.MaxBackups)
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"risk": {"max_order_value": 250},
		"execution": {"max_retries": 1}
	}`)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, schema.Notional(250*schema.One), loaded.Risk.MaxOrderValue)
	assert.Equal(t, 1, loaded.Execution.MaxRetries)
	assert.Equal(t, VenueModePaper, loaded.Venue.Mode)
	assert.Nil(t, loaded.Venue.Chaos)
}

func TestDefault(t *testing.T) {
	loaded, err := Default()
	require.NoError(t, err)
	assert.Equal(t, VenueModePaper, loaded.Venue.Mode)
	assert.Equal(t, 3, loaded.Execution.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, loaded.Execution.RetryBaseDelay)
	assert.Equal(t, schema.Notional(100_000*schema.One), loaded.Risk.MaxOrderValue)
	assert.Empty(t, loaded.Journal.Output)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, exception.ErrConfigRead)

	tests := []struct {
		name string
		body string
	}{
		{"negative limit", "risk:\n  max_order_value: -1\n"},
		{"slippage above 100%", "execution:\n  max_slippage_bps: 20000\n"},
		{"max delay below base", "execution:\n  retry_base_delay: 1s\n  retry_max_delay: 10ms\n"},
		{"unknown venue mode", "venue:\n  mode: fix\n"},
		{"http without credentials", "venue:\n  mode: http\n  base_url: https://api.example.com\n"},
		{"http with bad url", "venue:\n  mode: http\n  base_url: not a url\n  api_key: k\n  api_secret: s\n"},
		{"chaos rate above one", "chaos:\n  enabled: true\n  failure_rate: 1.5\n"},
		{"symbol in two groups", "risk:\n  correlation_groups:\n    a: [AAPL]\n    b: [AAPL]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", tt.body))
			assert.ErrorIs(t, err, exception.ErrConfigInvalid)
		})
	}
}

func TestEnvSub(t *testing.T) {
	t.Setenv("HOTPATH_TEST_HOST", "venue.local")
	assert.Equal(t, "https://venue.local/api", envSub("https://${HOTPATH_TEST_HOST}/api"))
	assert.Equal(t, "", envSub("${HOTPATH_TEST_UNSET_VALUE}"))
	assert.Equal(t, "plain", envSub("plain"))
}

func TestRuntimeUpdate(t *testing.T) {
	loaded, err := Default()
	require.NoError(t, err)
	rt := NewRuntime(loaded)
	assert.Equal(t, 3, rt.Load().Execution.MaxRetries)

	loaded.Execution.MaxRetries = 9
	rt.Update(loaded)
	assert.Equal(t, 9, rt.Load().Execution.MaxRetries)
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := writeConfig(t, "config.yaml", "execution:\n  max_retries: 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var retries atomic.Int64
	go Watch(ctx, path, 10*time.Millisecond, func(l Loaded) {
		retries.Store(int64(l.Execution.MaxRetries))
	})

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, retries.Load())

	require.NoError(t, os.WriteFile(path, []byte("execution:\n  max_retries: 6\n"), 0o600))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool {
		return retries.Load() == 6
	}, time.Second, 10*time.Millisecond)
}

func TestWatchKeepsConfigOnInvalidFile(t *testing.T) {
	path := writeConfig(t, "config.yaml", "execution:\n  max_retries: 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int64
	go Watch(ctx, path, 10*time.Millisecond, func(Loaded) {
		calls.Add(1)
	})

	require.NoError(t, os.WriteFile(path, []byte("execution:\n  max_retries: -1\n"), 0o600))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, calls.Load())
}
