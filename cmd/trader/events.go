package main

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"io"

	"github.com/yanun0323/logs"

	"hotpath/internal/execution"
	"hotpath/internal/feed"
	"hotpath/internal/pipeline"
	"hotpath/internal/risk"
	"hotpath/internal/schema"
)

const maxLineSize = 1 << 20

type replayStats struct {
	Lines       int
	Deltas      int
	Orders      int
	Routed      int
	RiskDenied  int
	Failed      int
	Invalid     int
	Resumes     int
	LastOrderID uint64
}

// replay feeds every event of r through p. Malformed lines and rejected
// orders are counted and logged; only a read error or a done context stops
// the replay early.
func replay(ctx context.Context, r io.Reader, p *pipeline.Pipeline) (replayStats, error) {
	var stats replayStats
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Lines++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		ev, err := feed.Parse(line)
		if err != nil {
			stats.Invalid++
			logs.Errorf("line %d: %+v", stats.Lines, err)
			continue
		}

		switch {
		case ev.Delta != nil:
			if _, err := p.OnDelta(*ev.Delta); err != nil {
				stats.Invalid++
				logs.Errorf("line %d: %+v", stats.Lines, err)
				continue
			}
			stats.Deltas++
		case ev.Order != nil:
			stats.Orders++
			stats.LastOrderID = ev.Order.OrderID
			submitOrder(ctx, p, *ev.Order, &stats)
		case ev.Resume:
			stats.Resumes++
			if err := p.Risk().Breaker().Resume(); err != nil {
				logs.Errorf("line %d: %+v", stats.Lines, err)
			}
		}
	}
	return stats, sc.Err()
}

func submitOrder(ctx context.Context, p *pipeline.Pipeline, order schema.Order, stats *replayStats) {
	receipt, err := p.Submit(ctx, order)
	if err == nil {
		stats.Routed++
		logs.Infof("order %d %s: %s after %d attempt(s), venue id %s", order.OrderID, order.Symbol, receipt.Status, receipt.Attempts, receipt.VenueOrderID)
		return
	}

	var violation *risk.Violation
	var open *risk.BreakerOpenError
	var execErr *execution.ExecutionError
	switch {
	case stderrors.As(err, &violation), stderrors.As(err, &open):
		stats.RiskDenied++
	case stderrors.As(err, &execErr):
		stats.Failed++
	default:
		stats.Invalid++
	}
	logs.Errorf("order %d %s: %+v", order.OrderID, order.Symbol, err)
}
