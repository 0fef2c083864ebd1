package obs

import (
	"sync/atomic"
	"time"

	"hotpath/internal/schema"
)

const (
	maxEventType       = int(schema.EventExecutionResult)
	maxRiskReason      = int(schema.RiskReasonInvalidOrder)
	maxExecutionStatus = int(schema.ExecutionStatusFailed)
)

// Metrics collects lightweight counters and latency stats.
type Metrics struct {
	eventCounts      [maxEventType + 1]uint64
	riskReasonCounts [maxRiskReason + 1]uint64
	executionCounts  [maxExecutionStatus + 1]uint64
	queueDrops       uint64
	queueClosed      uint64

	bookUpdates  uint64
	bookInvalid  uint64
	bookCrossed  uint64
	riskAllowed  uint64
	breakerTrips uint64
	retries      uint64
	rateLimited  uint64

	eventLatency     LatencyStats
	orderFlowLatency LatencyStats
	riskEvalLatency  LatencyStats
	routeLatency     LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts      map[schema.EventType]uint64
	RiskReasonCounts map[schema.RiskReason]uint64
	ExecutionCounts  map[schema.ExecutionStatus]uint64
	QueueDrops       uint64
	QueueClosed      uint64
	BookUpdates      uint64
	BookInvalid      uint64
	BookCrossed      uint64
	RiskAllowed      uint64
	BreakerTrips     uint64
	Retries          uint64
	RateLimited      uint64
	EventLatency     LatencySnapshot
	OrderFlowLatency LatencySnapshot
	RiskEvalLatency  LatencySnapshot
	RouteLatency     LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent increments counters and tracks event latency when timestamps are present.
func (m *Metrics) ObserveEvent(header schema.EventHeader) {
	if m == nil {
		return
	}
	idx := int(header.Type)
	if idx >= 0 && idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
	if header.TsEvent > 0 && header.TsRecv > 0 {
		delta := header.TsRecv - header.TsEvent
		if delta >= 0 {
			m.eventLatency.Observe(time.Duration(delta))
		}
	}
}

// IncRiskReason increments the risk reason counter.
func (m *Metrics) IncRiskReason(reason schema.RiskReason) {
	if m == nil {
		return
	}
	idx := int(reason)
	if idx >= 0 && idx < len(m.riskReasonCounts) {
		atomic.AddUint64(&m.riskReasonCounts[idx], 1)
	}
}

// IncRiskAllowed records an accepted order.
func (m *Metrics) IncRiskAllowed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.riskAllowed, 1)
}

// IncBreakerTrip records a Closed or HalfOpen to Open transition.
func (m *Metrics) IncBreakerTrip() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.breakerTrips, 1)
}

// IncExecution records a terminal execution status.
func (m *Metrics) IncExecution(status schema.ExecutionStatus) {
	if m == nil {
		return
	}
	idx := int(status)
	if idx >= 0 && idx < len(m.executionCounts) {
		atomic.AddUint64(&m.executionCounts[idx], 1)
	}
}

// IncRetry records a resubmission after a transient venue failure.
func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.retries, 1)
}

// IncRateLimited records a rate gate timeout.
func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.rateLimited, 1)
}

// IncBookUpdate records an applied book delta.
func (m *Metrics) IncBookUpdate() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.bookUpdates, 1)
}

// IncBookInvalid records a rejected book delta.
func (m *Metrics) IncBookInvalid() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.bookInvalid, 1)
}

// IncBookCrossed records a book entering a crossed state.
func (m *Metrics) IncBookCrossed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.bookCrossed, 1)
}

// IncQueueDrop records a queue drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// ObserveOrderFlow measures end-to-end order flow latency.
func (m *Metrics) ObserveOrderFlow(d time.Duration) {
	if m == nil {
		return
	}
	m.orderFlowLatency.Observe(d)
}

// ObserveRiskEval measures risk evaluation latency.
func (m *Metrics) ObserveRiskEval(d time.Duration) {
	if m == nil {
		return
	}
	m.riskEvalLatency.Observe(d)
}

// ObserveRoute measures router latency including retries.
func (m *Metrics) ObserveRoute(d time.Duration) {
	if m == nil {
		return
	}
	m.routeLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	eventCounts := make(map[schema.EventType]uint64)
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			eventCounts[schema.EventType(i)] = v
		}
	}
	riskCounts := make(map[schema.RiskReason]uint64)
	for i := range m.riskReasonCounts {
		if v := atomic.LoadUint64(&m.riskReasonCounts[i]); v > 0 {
			riskCounts[schema.RiskReason(i)] = v
		}
	}
	execCounts := make(map[schema.ExecutionStatus]uint64)
	for i := range m.executionCounts {
		if v := atomic.LoadUint64(&m.executionCounts[i]); v > 0 {
			execCounts[schema.ExecutionStatus(i)] = v
		}
	}
	return Snapshot{
		EventCounts:      eventCounts,
		RiskReasonCounts: riskCounts,
		ExecutionCounts:  execCounts,
		QueueDrops:       atomic.LoadUint64(&m.queueDrops),
		QueueClosed:      atomic.LoadUint64(&m.queueClosed),
		BookUpdates:      atomic.LoadUint64(&m.bookUpdates),
		BookInvalid:      atomic.LoadUint64(&m.bookInvalid),
		BookCrossed:      atomic.LoadUint64(&m.bookCrossed),
		RiskAllowed:      atomic.LoadUint64(&m.riskAllowed),
		BreakerTrips:     atomic.LoadUint64(&m.breakerTrips),
		Retries:          atomic.LoadUint64(&m.retries),
		RateLimited:      atomic.LoadUint64(&m.rateLimited),
		EventLatency:     m.eventLatency.Snapshot(),
		OrderFlowLatency: m.orderFlowLatency.Snapshot(),
		RiskEvalLatency:  m.riskEvalLatency.Snapshot(),
		RouteLatency:     m.routeLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
