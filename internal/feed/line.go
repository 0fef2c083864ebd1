package feed

import (
	"bufio"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"hotpath/internal/schema"
	"hotpath/pkg/exception"
)

const (
	TypeDelta  = "delta"
	TypeOrder  = "order"
	TypeResume = "resume"
)

// Line is one JSON line of an event file. Prices and quantities are
// decimal strings.
type Line struct {
	Type       string `json:"type"`
	Symbol     string `json:"symbol,omitempty"`
	Side       string `json:"side,omitempty"`
	Price      string `json:"price,omitempty"`
	Qty        string `json:"qty,omitempty"`
	Seq        uint64 `json:"seq,omitempty"`
	OrderID    uint64 `json:"id,omitempty"`
	StrategyID uint32 `json:"strategy,omitempty"`
	OrderType  string `json:"order_type,omitempty"`
	LimitPrice string `json:"limit_price,omitempty"`
	StopPrice  string `json:"stop_price,omitempty"`
	TsEvent    int64  `json:"ts,omitempty"`
}

// Event is a decoded line. Exactly one of Delta, Order and Resume is set.
type Event struct {
	Delta  *schema.MarketDelta
	Order  *schema.Order
	Resume bool
}

// Parse decodes one JSON line.
func Parse(line []byte) (Event, error) {
	var l Line
	if err := sonic.ConfigFastest.Unmarshal(line, &l); err != nil {
		return Event{}, errors.Wrapf(exception.ErrInvalidArgument, "decode event: %s", err.Error())
	}

	switch strings.ToLower(l.Type) {
	case TypeDelta:
		d, err := l.delta()
		if err != nil {
			return Event{}, err
		}
		return Event{Delta: &d}, nil
	case TypeOrder:
		o, err := l.order()
		if err != nil {
			return Event{}, err
		}
		return Event{Order: &o}, nil
	case TypeResume:
		return Event{Resume: true}, nil
	default:
		return Event{}, errors.Wrapf(exception.ErrInvalidArgument, "unknown event type %q", l.Type)
	}
}

func (l Line) delta() (schema.MarketDelta, error) {
	var side schema.BookSide
	switch strings.ToLower(l.Side) {
	case "bid":
		side = schema.BookSideBid
	case "ask":
		side = schema.BookSideAsk
	default:
		return schema.MarketDelta{}, errors.Wrapf(exception.ErrInvalidArgument, "delta side %q", l.Side)
	}
	price, err := schema.ParsePrice(l.Price)
	if err != nil {
		return schema.MarketDelta{}, err
	}
	qty, err := schema.ParseQuantity(l.Qty)
	if err != nil {
		return schema.MarketDelta{}, err
	}
	return schema.MarketDelta{
		Symbol:      l.Symbol,
		Side:        side,
		Price:       price,
		Qty:         qty,
		ExchangeSeq: l.Seq,
		TsEvent:     l.TsEvent,
	}, nil
}

func (l Line) order() (schema.Order, error) {
	o := schema.Order{
		OrderID:    l.OrderID,
		StrategyID: l.StrategyID,
		Symbol:     l.Symbol,
		CreatedAt:  l.TsEvent,
	}
	switch strings.ToLower(l.Side) {
	case "buy":
		o.Side = schema.OrderSideBuy
	case "sell":
		o.Side = schema.OrderSideSell
	default:
		return schema.Order{}, errors.Wrapf(exception.ErrInvalidArgument, "order side %q", l.Side)
	}
	switch strings.ToLower(l.OrderType) {
	case "", "market":
		o.Type = schema.OrderTypeMarket
	case "limit":
		o.Type = schema.OrderTypeLimit
	case "stop":
		o.Type = schema.OrderTypeStop
	default:
		return schema.Order{}, errors.Wrapf(exception.ErrInvalidArgument, "order type %q", l.OrderType)
	}

	var err error
	if o.Qty, err = schema.ParseQuantity(l.Qty); err != nil {
		return schema.Order{}, err
	}
	if l.LimitPrice != "" {
		if o.LimitPrice, err = schema.ParsePrice(l.LimitPrice); err != nil {
			return schema.Order{}, err
		}
	}
	if l.StopPrice != "" {
		if o.StopPrice, err = schema.ParsePrice(l.StopPrice); err != nil {
			return schema.Order{}, err
		}
	}
	return o, nil
}

// DeltaLine renders a market delta.
func DeltaLine(d schema.MarketDelta) Line {
	return Line{
		Type:    TypeDelta,
		Symbol:  d.Symbol,
		Side:    d.Side.String(),
		Price:   d.Price.String(),
		Qty:     d.Qty.String(),
		Seq:     d.ExchangeSeq,
		TsEvent: d.TsEvent,
	}
}

// OrderLine renders an order intent. Absent prices are omitted.
func OrderLine(o schema.Order) Line {
	l := Line{
		Type:       TypeOrder,
		Symbol:     o.Symbol,
		Side:       o.Side.String(),
		Qty:        o.Qty.String(),
		OrderID:    o.OrderID,
		StrategyID: o.StrategyID,
		OrderType:  o.Type.String(),
		TsEvent:    o.CreatedAt,
	}
	if o.LimitPrice != 0 {
		l.LimitPrice = o.LimitPrice.String()
	}
	if o.StopPrice != 0 {
		l.StopPrice = o.StopPrice.String()
	}
	return l
}

// Writer appends lines to an event file.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) Write(l Line) error {
	b, err := sonic.ConfigFastest.Marshal(l)
	if err != nil {
		return errors.Wrapf(exception.ErrInternal, "encode event: %s", err.Error())
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

func (w *Writer) Flush() error {
	return w.w.Flush()
}
