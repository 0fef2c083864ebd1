package main

import (
	"context"
	stderrors "errors"
	"flag"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hotpath/internal/book"
	"hotpath/internal/execution"
	"hotpath/internal/obs"
	"hotpath/internal/schema"
	"hotpath/internal/venue"
	"hotpath/pkg/exception"
)

type soakConfig struct {
	Orders    int
	Symbol    string
	Price     schema.Price
	Qty       schema.Quantity
	Chaos     venue.ChaosConfig
	Execution execution.Config
	Sleeper   execution.Sleeper
}

type soakReport struct {
	Filled      int
	Failed      int
	Rejected    int
	VenueOrders int
	FillReports int
	Retries     uint64
	RateLimited uint64
	Elapsed     time.Duration
}

type fillCounter struct {
	mu      sync.Mutex
	byOrder map[uint64]int
}

func (c *fillCounter) OnFill(fill schema.Fill) error {
	c.mu.Lock()
	c.byOrder[fill.OrderID]++
	c.mu.Unlock()
	return nil
}

func (c *fillCounter) total() (fills int, duplicated int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.byOrder {
		fills += n
		if n > 1 {
			duplicated++
		}
	}
	return fills, duplicated
}

func main() {
	orders := flag.Int("orders", 1000, "Number of orders to route")
	seed := flag.Int64("seed", 0, "RNG seed (0=now)")
	failureRate := flag.Float64("failure-rate", 0.2, "Transient 503 probability [0-1]")
	rateLimitRate := flag.Float64("rate-limit-rate", 0.05, "429 probability [0-1]")
	lostAckRate := flag.Float64("lost-ack-rate", 0.05, "Lost acknowledgement probability [0-1]")
	maxDelay := flag.Duration("max-delay", 0, "Max injected venue latency")
	maxRetries := flag.Int("max-retries", 3, "Router retry budget")
	baseDelay := flag.Duration("retry-base-delay", time.Millisecond, "Router retry base delay")
	flag.Parse()

	execCfg := execution.Config{
		MaxRetries:     *maxRetries,
		RetryBaseDelay: *baseDelay,
		RetryMaxDelay:  100 * *baseDelay,
	}
	report, err := soak(context.Background(), soakConfig{
		Orders:    *orders,
		Symbol:    "SOAK-USD",
		Price:     schema.Price(100 * schema.One),
		Qty:       schema.Quantity(schema.One),
		Execution: execCfg,
		Chaos: venue.ChaosConfig{
			Seed:          *seed,
			FailureRate:   *failureRate,
			RateLimitRate: *rateLimitRate,
			LostAckRate:   *lostAckRate,
			MaxDelay:      *maxDelay,
		},
	})
	if err != nil {
		log.Fatalf("chaos soak failed: %+v", err)
	}
	logs.Infof("chaos soak: filled=%d failed=%d rejected=%d venue_orders=%d fill_reports=%d retries=%d rate_limited=%d elapsed=%s",
		report.Filled, report.Failed, report.Rejected, report.VenueOrders, report.FillReports, report.Retries, report.RateLimited, report.Elapsed)
}

// soak routes cfg.Orders market orders through a chaotic paper venue. It
// fails when any order was filled more than once.
func soak(ctx context.Context, cfg soakConfig) (soakReport, error) {
	start := time.Now()
	metrics := obs.NewMetrics()
	books := book.NewManager(metrics)
	if _, err := books.Apply(schema.MarketDelta{Symbol: cfg.Symbol, Side: schema.BookSideAsk, Price: cfg.Price, Qty: cfg.Qty * schema.Quantity(cfg.Orders+1)}); err != nil {
		return soakReport{}, err
	}

	paper := venue.NewPaper(books)
	chaotic, err := venue.NewChaos(paper, cfg.Chaos)
	if err != nil {
		return soakReport{}, err
	}
	fills := &fillCounter{byOrder: make(map[uint64]int)}
	router, err := execution.NewRouter(cfg.Execution, chaotic, execution.Hooks{
		Fills:   fills,
		Sleeper: cfg.Sleeper,
		Metrics: metrics,
	})
	if err != nil {
		return soakReport{}, err
	}

	var report soakReport
	for id := 1; id <= cfg.Orders; id++ {
		order := schema.Order{
			OrderID: uint64(id),
			Symbol:  cfg.Symbol,
			Side:    schema.OrderSideBuy,
			Type:    schema.OrderTypeMarket,
			Qty:     cfg.Qty,
		}
		_, err := router.Route(ctx, order, nil)
		var execErr *execution.ExecutionError
		switch {
		case err == nil:
			report.Filled++
		case stderrors.As(err, &execErr) && execErr.Kind == execution.KindPermanent:
			report.Rejected++
		default:
			report.Failed++
		}
	}

	fillReports, duplicated := fills.total()
	snap := metrics.Snapshot()
	report.VenueOrders = paper.Orders()
	report.FillReports = fillReports
	report.Retries = snap.Retries
	report.RateLimited = snap.RateLimited
	report.Elapsed = time.Since(start)
	if duplicated > 0 {
		return report, errors.Wrap(exception.ErrInternal, strconv.Itoa(duplicated)+" order(s) filled more than once")
	}
	return report, nil
}
