package schema

// SchemaVersion is the current event schema version.
const SchemaVersion uint16 = 1

// EventType defines the category of an event published on the bus.
type EventType uint16

const (
	EventUnknown EventType = iota
	EventMarketDelta
	EventRiskDecision
	EventExecutionResult
)

func (t EventType) String() string {
	switch t {
	case EventMarketDelta:
		return "market_delta"
	case EventRiskDecision:
		return "risk_decision"
	case EventExecutionResult:
		return "execution_result"
	default:
		return "unknown"
	}
}

// Topic groups events for pub/sub fan-out.
type Topic string

const (
	TopicMarket    Topic = "market"
	TopicRisk      Topic = "risk"
	TopicExecution Topic = "execution"
)

// TopicOf returns the topic an event type is published on.
func TopicOf(t EventType) Topic {
	switch t {
	case EventMarketDelta:
		return TopicMarket
	case EventRiskDecision:
		return TopicRisk
	case EventExecutionResult:
		return TopicExecution
	default:
		return ""
	}
}

// EventHeader is the common metadata attached to every event.
type EventHeader struct {
	Type    EventType
	Version uint16
	Source  uint16
	Flags   uint16
	Seq     uint64
	TsEvent int64
	TsRecv  int64
	TraceID uint64
}

// NewHeader builds a header with the current schema version.
func NewHeader(eventType EventType, source uint16, seq uint64, tsEvent, tsRecv int64) EventHeader {
	return EventHeader{
		Type:    eventType,
		Version: SchemaVersion,
		Source:  source,
		Seq:     seq,
		TsEvent: tsEvent,
		TsRecv:  tsRecv,
	}
}
