package bus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"

	"hotpath/internal/obs"
	"hotpath/internal/schema"
	"hotpath/pkg/exception"
)

// Broker fans events out to per-topic subscriber queues. Publishing never
// blocks: a full subscriber queue drops the event and counts it.
type Broker struct {
	source  uint16
	metrics *obs.Metrics
	trace   *obs.TraceGenerator
	now     func() time.Time
	seq     atomic.Uint64

	mu     sync.RWMutex
	subs   map[schema.Topic][]*Queue
	closed bool
}

// NewBroker creates a broker stamping headers with source.
func NewBroker(source uint16, metrics *obs.Metrics) *Broker {
	return &Broker{
		source:  source,
		metrics: metrics,
		trace:   obs.NewTraceGenerator(source, uint64(time.Now().UnixNano())),
		now:     time.Now,
		subs:    make(map[schema.Topic][]*Queue),
	}
}

func knownTopic(topic schema.Topic) bool {
	switch topic {
	case schema.TopicMarket, schema.TopicRisk, schema.TopicExecution:
		return true
	default:
		return false
	}
}

// Subscribe registers a queue of the given capacity on topic.
func (b *Broker) Subscribe(topic schema.Topic, capacity int) (*Queue, error) {
	if !knownTopic(topic) {
		return nil, errors.Wrapf(exception.ErrBusUnknownTopic, "topic: %q", topic)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, exception.ErrBusClosed
	}
	q := NewQueue(capacity)
	b.subs[topic] = append(b.subs[topic], q)
	return q, nil
}

// Publish stamps a header for eventType and offers the payload to every
// subscriber of its topic. A zero traceID draws a new one.
func (b *Broker) Publish(eventType schema.EventType, payload []byte, traceID uint64) (schema.EventHeader, error) {
	topic := schema.TopicOf(eventType)
	if topic == "" {
		return schema.EventHeader{}, errors.Wrapf(exception.ErrBusUnknownTopic, "event type: %s", eventType)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return schema.EventHeader{}, exception.ErrBusClosed
	}

	ts := b.now().UTC().UnixNano()
	header := schema.NewHeader(eventType, b.source, b.seq.Add(1), ts, ts)
	if traceID == 0 {
		traceID = b.trace.Next()
	}
	header.TraceID = traceID

	event := Event{Header: header, Payload: payload}
	for _, q := range b.subs[topic] {
		switch err := q.TryPublish(event); err {
		case nil:
		case ErrQueueFull:
			b.metrics.IncQueueDrop()
		case ErrQueueClosed:
			b.metrics.IncQueueClosed()
		}
	}
	b.metrics.ObserveEvent(header)
	return header, nil
}

// Subscribers returns the number of queues on topic.
func (b *Broker) Subscribers(topic schema.Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close closes every subscriber queue. Later publishes fail with
// ErrBusClosed.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, queues := range b.subs {
		for _, q := range queues {
			q.Close()
		}
	}
}
