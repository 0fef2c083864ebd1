package ops

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/yanun0323/errors"

	"hotpath/internal/execution"
	"hotpath/internal/journal"
	"hotpath/internal/risk"
	"hotpath/internal/schema"
	"hotpath/internal/venue"
	"hotpath/pkg/exception"
)

const (
	VenueModePaper = "paper"
	VenueModeHTTP  = "http"
)

// FileConfig mirrors the config file layout. Monetary values are plain
// decimals and are scaled on Resolve.
type FileConfig struct {
	Risk      RiskSection
	Execution ExecutionSection
	Venue     VenueSection
	Chaos     ChaosSection
	Journal   JournalSection
}

// RiskSection holds the pre-trade limits. Zero disables a limit.
type RiskSection struct {
	MaxPositionSize        float64       `validate:"gte=0"`
	MaxNotionalPerPosition float64       `validate:"gte=0"`
	MaxTotalExposure       float64       `validate:"gte=0"`
	MaxDailyLoss           float64       `validate:"gte=0"`
	MaxOrderValue          float64       `validate:"gte=0"`
	MaxOpenPositions       int           `validate:"gte=0"`
	MaxConsecutiveLosses   int           `validate:"gte=0"`
	MaxDailyTrades         int           `validate:"gte=0"`
	BreakerCooldown        time.Duration `validate:"gte=0"`
	MaxCorrelatedExposure  float64       `validate:"gte=0"`
	CorrelationGroups      map[string][]string
}

// ExecutionSection holds the router gates and retry policy.
type ExecutionSection struct {
	RateLimitPerSecond float64       `validate:"gte=0"`
	RateBurst          int           `validate:"gte=0"`
	RateWaitTimeout    time.Duration `validate:"gte=0"`
	MaxSlippageBps     int64         `validate:"gte=0,lte=10000"`
	MaxRetries         int           `validate:"gte=0,lte=20"`
	RetryBaseDelay     time.Duration `validate:"gte=0"`
	RetryMaxDelay      time.Duration `validate:"gtefield=RetryBaseDelay"`
}

// VenueSection selects the venue and carries its credentials.
type VenueSection struct {
	Mode       string        `validate:"oneof=paper http"`
	BaseURL    string        `validate:"required_if=Mode http,omitempty,url"`
	OrderPath  string        `validate:"required,startswith=/"`
	APIKey     string        `validate:"required_if=Mode http"`
	APISecret  string        `validate:"required_if=Mode http"`
	Timeout    time.Duration `validate:"gt=0"`
	RecvWindow time.Duration `validate:"gte=0"`
}

// ChaosSection enables failure injection in front of the venue.
type ChaosSection struct {
	Enabled       bool
	Seed          int64
	FailureRate   float64       `validate:"gte=0,lte=1"`
	RateLimitRate float64       `validate:"gte=0,lte=1"`
	LostAckRate   float64       `validate:"gte=0,lte=1"`
	MaxDelay      time.Duration `validate:"gte=0"`
}

// JournalSection configures the audit journal output and rotation.
type JournalSection struct {
	Output     string
	MaxSize    int `validate:"gte=0"`
	MaxBackups int `validate:"gte=0"`
	MaxAge     int `validate:"gte=0"`
	Compress   bool
}

// VenueSpec is the resolved venue selection.
type VenueSpec struct {
	Mode  string
	HTTP  venue.Config
	Chaos *venue.ChaosConfig
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Risk      risk.Config
	Execution execution.Config
	Venue     VenueSpec
	Journal   journal.Config
}

var (
	validate = validator.New()
	envRef   = regexp.MustCompile(`\$\{(\w+)\}`)
)

// Load reads a JSON, YAML or TOML config file and resolves it.
func Load(path string) (Loaded, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Loaded{}, errors.Wrapf(exception.ErrConfigRead, "path: %s, err: %s", path, err.Error())
	}
	return decode(v).Resolve()
}

// Default resolves the built-in defaults: paper venue, journal disabled.
func Default() (Loaded, error) {
	return decode(newViper()).Resolve()
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("risk.max_position_size", 1_000)
	v.SetDefault("risk.max_notional_per_position", 1_000_000)
	v.SetDefault("risk.max_total_exposure", 5_000_000)
	v.SetDefault("risk.max_daily_loss", 50_000)
	v.SetDefault("risk.max_order_value", 100_000)
	v.SetDefault("risk.max_open_positions", 50)
	v.SetDefault("risk.breaker_cooldown", "0s")

	v.SetDefault("execution.rate_limit_per_second", 10)
	v.SetDefault("execution.rate_burst", 1)
	v.SetDefault("execution.rate_wait_timeout", "5s")
	v.SetDefault("execution.max_slippage_bps", 50)
	v.SetDefault("execution.max_retries", 3)
	v.SetDefault("execution.retry_base_delay", "100ms")
	v.SetDefault("execution.retry_max_delay", "5s")

	v.SetDefault("venue.mode", VenueModePaper)
	v.SetDefault("venue.order_path", "/v1/orders")
	v.SetDefault("venue.timeout", "15s")
	v.SetDefault("venue.recv_window", "5s")

	v.SetDefault("journal.max_size", 100)
	v.SetDefault("journal.max_backups", 5)
	v.SetDefault("journal.max_age", 30)
	return v
}

func decode(v *viper.Viper) FileConfig {
	return FileConfig{
		Risk: RiskSection{
			MaxPositionSize:        v.GetFloat64("risk.max_position_size"),
			MaxNotionalPerPosition: v.GetFloat64("risk.max_notional_per_position"),
			MaxTotalExposure:       v.GetFloat64("risk.max_total_exposure"),
			MaxDailyLoss:           v.GetFloat64("risk.max_daily_loss"),
			MaxOrderValue:          v.GetFloat64("risk.max_order_value"),
			MaxOpenPositions:       v.GetInt("risk.max_open_positions"),
			MaxConsecutiveLosses:   v.GetInt("risk.max_consecutive_losses"),
			MaxDailyTrades:         v.GetInt("risk.max_daily_trades"),
			BreakerCooldown:        v.GetDuration("risk.breaker_cooldown"),
			MaxCorrelatedExposure:  v.GetFloat64("risk.max_correlated_exposure"),
			CorrelationGroups:      v.GetStringMapStringSlice("risk.correlation_groups"),
		},
		Execution: ExecutionSection{
			RateLimitPerSecond: v.GetFloat64("execution.rate_limit_per_second"),
			RateBurst:          v.GetInt("execution.rate_burst"),
			RateWaitTimeout:    v.GetDuration("execution.rate_wait_timeout"),
			MaxSlippageBps:     v.GetInt64("execution.max_slippage_bps"),
			MaxRetries:         v.GetInt("execution.max_retries"),
			RetryBaseDelay:     v.GetDuration("execution.retry_base_delay"),
			RetryMaxDelay:      v.GetDuration("execution.retry_max_delay"),
		},
		Venue: VenueSection{
			Mode:       strings.ToLower(v.GetString("venue.mode")),
			BaseURL:    envSub(v.GetString("venue.base_url")),
			OrderPath:  v.GetString("venue.order_path"),
			APIKey:     envSub(v.GetString("venue.api_key")),
			APISecret:  envSub(v.GetString("venue.api_secret")),
			Timeout:    v.GetDuration("venue.timeout"),
			RecvWindow: v.GetDuration("venue.recv_window"),
		},
		Chaos: ChaosSection{
			Enabled:       v.GetBool("chaos.enabled"),
			Seed:          v.GetInt64("chaos.seed"),
			FailureRate:   v.GetFloat64("chaos.failure_rate"),
			RateLimitRate: v.GetFloat64("chaos.rate_limit_rate"),
			LostAckRate:   v.GetFloat64("chaos.lost_ack_rate"),
			MaxDelay:      v.GetDuration("chaos.max_delay"),
		},
		Journal: JournalSection{
			Output:     v.GetString("journal.output"),
			MaxSize:    v.GetInt("journal.max_size"),
			MaxBackups: v.GetInt("journal.max_backups"),
			MaxAge:     v.GetInt("journal.max_age"),
			Compress:   v.GetBool("journal.compress"),
		},
	}
}

// envSub replaces ${NAME} references with the environment value.
func envSub(val string) string {
	if val == "" {
		return ""
	}
	return envRef.ReplaceAllStringFunc(val, func(match string) string {
		return os.Getenv(strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}"))
	})
}

// Resolve validates the file config and converts it to runtime types.
func (cfg FileConfig) Resolve() (Loaded, error) {
	if err := validate.Struct(cfg); err != nil {
		return Loaded{}, errors.Wrap(exception.ErrConfigInvalid, err.Error())
	}

	riskCfg, err := cfg.Risk.resolve()
	if err != nil {
		return Loaded{}, err
	}

	execCfg := execution.Config{
		RateLimitPerSecond: cfg.Execution.RateLimitPerSecond,
		RateBurst:          cfg.Execution.RateBurst,
		RateWaitTimeout:    cfg.Execution.RateWaitTimeout,
		MaxSlippageBps:     cfg.Execution.MaxSlippageBps,
		MaxRetries:         cfg.Execution.MaxRetries,
		RetryBaseDelay:     cfg.Execution.RetryBaseDelay,
		RetryMaxDelay:      cfg.Execution.RetryMaxDelay,
	}
	if err := execCfg.Validate(); err != nil {
		return Loaded{}, errors.Wrap(exception.ErrConfigInvalid, err.Error())
	}

	spec := VenueSpec{
		Mode: cfg.Venue.Mode,
		HTTP: venue.Config{
			BaseURL:    cfg.Venue.BaseURL,
			OrderPath:  cfg.Venue.OrderPath,
			APIKey:     cfg.Venue.APIKey,
			APISecret:  cfg.Venue.APISecret,
			Timeout:    cfg.Venue.Timeout,
			RecvWindow: cfg.Venue.RecvWindow,
		},
	}
	if cfg.Chaos.Enabled {
		spec.Chaos = &venue.ChaosConfig{
			Seed:          cfg.Chaos.Seed,
			FailureRate:   cfg.Chaos.FailureRate,
			RateLimitRate: cfg.Chaos.RateLimitRate,
			LostAckRate:   cfg.Chaos.LostAckRate,
			MaxDelay:      cfg.Chaos.MaxDelay,
		}
	}

	return Loaded{
		Risk:      riskCfg,
		Execution: execCfg,
		Venue:     spec,
		Journal: journal.Config{
			Output:     cfg.Journal.Output,
			MaxSize:    cfg.Journal.MaxSize,
			MaxBackups: cfg.Journal.MaxBackups,
			MaxAge:     cfg.Journal.MaxAge,
			Compress:   cfg.Journal.Compress,
		},
	}, nil
}

func (s RiskSection) resolve() (risk.Config, error) {
	var cfg risk.Config
	var err error
	if cfg.MaxPositionSize, err = schema.QuantityFromFloat(s.MaxPositionSize); err != nil {
		return risk.Config{}, errors.Wrapf(exception.ErrConfigInvalid, "risk.max_position_size: %s", err.Error())
	}
	notionals := []struct {
		key string
		src float64
		dst *schema.Notional
	}{
		{"risk.max_notional_per_position", s.MaxNotionalPerPosition, &cfg.MaxNotionalPerPosition},
		{"risk.max_total_exposure", s.MaxTotalExposure, &cfg.MaxTotalExposure},
		{"risk.max_daily_loss", s.MaxDailyLoss, &cfg.MaxDailyLoss},
		{"risk.max_order_value", s.MaxOrderValue, &cfg.MaxOrderValue},
		{"risk.max_correlated_exposure", s.MaxCorrelatedExposure, &cfg.MaxCorrelatedExposure},
	}
	for _, n := range notionals {
		if *n.dst, err = schema.NotionalFromFloat(n.src); err != nil {
			return risk.Config{}, errors.Wrapf(exception.ErrConfigInvalid, "%s: %s", n.key, err.Error())
		}
	}

	cfg.MaxOpenPositions = s.MaxOpenPositions
	cfg.MaxConsecutiveLosses = s.MaxConsecutiveLosses
	cfg.MaxDailyTrades = s.MaxDailyTrades
	cfg.BreakerCooldown = s.BreakerCooldown

	if len(s.CorrelationGroups) > 0 {
		cfg.CorrelationGroups = make(map[string]string)
		for group, symbols := range s.CorrelationGroups {
			for _, symbol := range symbols {
				if prev, ok := cfg.CorrelationGroups[symbol]; ok && prev != group {
					return risk.Config{}, errors.Wrapf(exception.ErrConfigInvalid, "symbol %s is in groups %s and %s", symbol, prev, group)
				}
				cfg.CorrelationGroups[symbol] = group
			}
		}
	}
	return cfg, nil
}
