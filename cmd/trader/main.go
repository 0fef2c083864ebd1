package main

import (
	"context"
	stderrors "errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"hotpath/internal/book"
	"hotpath/internal/bus"
	"hotpath/internal/execution"
	"hotpath/internal/journal"
	"hotpath/internal/obs"
	"hotpath/internal/ops"
	"hotpath/internal/pipeline"
	"hotpath/internal/risk"
	"hotpath/internal/schema"
	"hotpath/internal/venue"
	"hotpath/pkg/exception"
)

const (
	brokerSource    = 1
	subscriberDepth = 4096
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON/YAML/TOML; empty uses defaults)")
	configReload := flag.Duration("config-reload-interval", 2*time.Second, "Config reload interval (0=disable)")
	eventsPath := flag.String("events", "-", "JSON-lines event file to replay (- reads stdin)")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty disables profiling)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		select {
		case <-sys.Shutdown():
			stop()
		case <-ctx.Done():
		}
	}()

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "hotpath/trader",
			ServerAddress:   *pyroscopeAddr,
			Logger:          profilerLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	if err := run(ctx, *configPath, *configReload, *eventsPath); err != nil {
		log.Fatalf("trader: %+v", err)
	}
}

func run(ctx context.Context, configPath string, reload time.Duration, eventsPath string) error {
	loaded, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	live := ops.NewRuntime(loaded)

	metrics := obs.NewMetrics()
	books := book.NewManager(metrics)
	engine := risk.NewEngine(loaded.Risk, books, metrics)
	broker := bus.NewBroker(brokerSource, metrics)
	defer broker.Close()

	audit := journal.New(loaded.Journal)
	defer func() {
		if err := audit.Close(); err != nil {
			logs.Errorf("journal close failed, err: %+v", err)
		}
	}()

	v, err := newVenue(loaded.Venue, books)
	if err != nil {
		return err
	}
	p, err := pipeline.New(books, engine, v, loaded.Execution, pipeline.Options{
		Broker:  broker,
		Journal: audit,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}

	counts, err := subscribeAll(ctx, broker)
	if err != nil {
		return err
	}

	if configPath != "" && reload > 0 {
		go ops.Watch(ctx, configPath, reload, func(l ops.Loaded) {
			live.Update(l)
			engine.SetConfig(l.Risk)
			if err := p.Router().SetConfig(l.Execution); err != nil {
				logs.Errorf("router config rejected, err: %+v", err)
			}
		})
	}

	in, closeIn, err := openEvents(eventsPath)
	if err != nil {
		return err
	}
	defer closeIn()

	stats, err := replay(ctx, in, p)
	if err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}

	broker.Close()
	report(stats, metrics.Snapshot(), engine.Snapshot(), counts)
	return nil
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return ops.Default()
	}
	return ops.Load(path)
}

func newVenue(spec ops.VenueSpec, books *book.Manager) (execution.Venue, error) {
	var v execution.Venue
	switch spec.Mode {
	case ops.VenueModeHTTP:
		client, err := venue.NewHTTPClient(spec.HTTP, nil)
		if err != nil {
			return nil, err
		}
		v = client
	case ops.VenueModePaper, "":
		v = venue.NewPaper(books)
	default:
		return nil, errors.Wrapf(exception.ErrConfigInvalid, "venue mode %q", spec.Mode)
	}
	if spec.Chaos == nil {
		return v, nil
	}
	chaos, err := venue.NewChaos(v, *spec.Chaos)
	if err != nil {
		return nil, err
	}
	return chaos, nil
}

func openEvents(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(exception.ErrInvalidArgument, "open events %s: %s", path, err.Error())
	}
	return f, func() { _ = f.Close() }, nil
}

type profilerLogger struct{}

func (profilerLogger) Infof(format string, args ...interface{})  {}
func (profilerLogger) Debugf(format string, args ...interface{}) {}
func (profilerLogger) Errorf(format string, args ...interface{}) { logs.Errorf(format, args...) }

// topicCounts is filled by the subscriber goroutines and read after the
// broker is closed.
type topicCounts struct {
	done   chan struct{}
	counts map[schema.Topic]*atomic.Int64
}

func subscribeAll(ctx context.Context, broker *bus.Broker) (*topicCounts, error) {
	topics := []schema.Topic{schema.TopicMarket, schema.TopicRisk, schema.TopicExecution}
	tc := &topicCounts{done: make(chan struct{}), counts: make(map[schema.Topic]*atomic.Int64, len(topics))}

	remaining := len(topics)
	finished := make(chan struct{}, len(topics))
	for _, topic := range topics {
		q, err := broker.Subscribe(topic, subscriberDepth)
		if err != nil {
			return nil, err
		}
		n := new(atomic.Int64)
		tc.counts[topic] = n
		go func() {
			q.Run(ctx, func(bus.Event) { n.Add(1) })
			finished <- struct{}{}
		}()
	}
	go func() {
		for ; remaining > 0; remaining-- {
			<-finished
		}
		close(tc.done)
	}()
	return tc, nil
}

func report(stats replayStats, m obs.Snapshot, state risk.State, tc *topicCounts) {
	select {
	case <-tc.done:
	case <-time.After(time.Second):
		logs.Errorf("subscribers did not drain in time")
	}

	logs.Infof("replay: lines=%d deltas=%d orders=%d routed=%d risk_denied=%d failed=%d invalid=%d resumes=%d",
		stats.Lines, stats.Deltas, stats.Orders, stats.Routed, stats.RiskDenied, stats.Failed, stats.Invalid, stats.Resumes)
	logs.Infof("bus: market=%d risk=%d execution=%d drops=%d closed=%d",
		tc.counts[schema.TopicMarket].Load(), tc.counts[schema.TopicRisk].Load(), tc.counts[schema.TopicExecution].Load(), m.QueueDrops, m.QueueClosed)
	logs.Infof("metrics: events=%v risk_reasons=%v executions=%v book_updates=%d book_invalid=%d book_crossed=%d retries=%d rate_limited=%d breaker_trips=%d",
		m.EventCounts, m.RiskReasonCounts, m.ExecutionCounts, m.BookUpdates, m.BookInvalid, m.BookCrossed, m.Retries, m.RateLimited, m.BreakerTrips)
	logs.Infof("latency: order_flow=%+v risk_eval=%+v route=%+v event=%+v",
		m.OrderFlowLatency, m.RiskEvalLatency, m.RouteLatency, m.EventLatency)
	logs.Infof("risk: open_orders=%d exposure=%s daily_pnl=%s breaker=%s positions=%d",
		state.OpenOrders, state.TotalExposure, state.DailyRealizedPnl, state.Breaker.State, len(state.Positions))
	for symbol, pos := range state.Positions {
		logs.Infof("position %s: qty=%s entry=%s realized=%s unrealized=%s", symbol, pos.Quantity, pos.EntryPrice, pos.RealizedPnl, pos.UnrealizedPnl)
	}
}
