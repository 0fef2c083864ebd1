package obs

import "sync/atomic"

const (
	traceSourceShift = 48
	traceCounterMask = 1<<traceSourceShift - 1
)

// TraceGenerator issues trace ids for one event source. The source sits in
// the top 16 bits, so ids from different sources never collide; the low 48
// bits count up from start. Zero is never returned.
type TraceGenerator struct {
	source uint64
	seq    atomic.Uint64
}

func NewTraceGenerator(source uint16, start uint64) *TraceGenerator {
	g := &TraceGenerator{source: uint64(source) << traceSourceShift}
	g.seq.Store(start & traceCounterMask)
	return g
}

// Next returns the next trace id. A nil generator returns 0.
func (g *TraceGenerator) Next() uint64 {
	if g == nil {
		return 0
	}
	for {
		id := g.source | g.seq.Add(1)&traceCounterMask
		if id != 0 {
			return id
		}
	}
}

// TraceSource returns the source a trace id was issued by.
func TraceSource(id uint64) uint16 {
	return uint16(id >> traceSourceShift)
}
