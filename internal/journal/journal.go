package journal

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"hotpath/internal/schema"
)

// Config controls where the audit journal is written and how it rotates.
// An empty Output disables the journal; "stdout" writes to standard output.
type Config struct {
	Output     string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// Journal is an append-only JSON-lines audit trail of risk decisions and
// execution results. It is never read back.
type Journal struct {
	log    *logrus.Logger
	closer io.Closer
	once   sync.Once
}

// New opens the journal described by cfg.
func New(cfg Config) *Journal {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)

	j := &Journal{log: log}
	switch cfg.Output {
	case "":
		log.SetOutput(io.Discard)
	case "stdout":
		log.SetOutput(os.Stdout)
	default:
		writer := &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
		log.SetOutput(writer)
		j.closer = writer
	}
	return j
}

// NewWriter builds a journal on an arbitrary writer.
func NewWriter(w io.Writer) *Journal {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(w)
	return &Journal{log: log}
}

// RiskDecision records one pre-trade decision.
func (j *Journal) RiskDecision(d schema.RiskDecision) {
	if j == nil {
		return
	}
	entry := j.log.WithFields(logrus.Fields{
		"kind":      "risk_decision",
		"order_id":  d.OrderID,
		"symbol":    d.Symbol,
		"side":      d.Side.String(),
		"qty":       d.Qty.String(),
		"ref_price": d.RefPrice.String(),
		"reason":    d.Reason.String(),
		"ts_event":  d.TsEvent,
	})
	if d.Action == schema.RiskActionAllow {
		entry.Info("order accepted")
		return
	}
	entry.WithFields(logrus.Fields{
		"current": d.Current,
		"limit":   d.Limit,
	}).Warn("order rejected")
}

// ExecutionResult records the terminal outcome of one routed order.
func (j *Journal) ExecutionResult(r schema.ExecutionResult) {
	if j == nil {
		return
	}
	entry := j.log.WithFields(logrus.Fields{
		"kind":           "execution_result",
		"order_id":       r.OrderID,
		"symbol":         r.Symbol,
		"status":         r.Status.String(),
		"attempts":       r.Attempts,
		"filled_qty":     r.FilledQty.String(),
		"avg_fill_price": r.AvgFillPrice.String(),
		"venue_order_id": r.VenueOrderID,
		"ts_event":       r.TsEvent,
	})
	if r.Status.IsSuccess() {
		entry.Info("order routed")
		return
	}
	entry.WithField("error", r.Error).Error("order failed")
}

// BreakerTrip records a circuit breaker transition to open.
func (j *Journal) BreakerTrip(reason string, ts int64) {
	if j == nil {
		return
	}
	j.log.WithFields(logrus.Fields{
		"kind":     "breaker_trip",
		"reason":   reason,
		"ts_event": ts,
	}).Warn("circuit breaker open")
}

// Close flushes and closes a rotating file output.
func (j *Journal) Close() error {
	if j == nil || j.closer == nil {
		return nil
	}
	var err error
	j.once.Do(func() {
		err = j.closer.Close()
	})
	return err
}
