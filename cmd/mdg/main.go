package main

import (
	"flag"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hotpath/internal/feed"
	"hotpath/internal/mdg"
	"hotpath/internal/schema"
	"hotpath/pkg/exception"
)

type options struct {
	Ticks      int
	Interval   time.Duration
	OrderEvery int
	OrderQty   schema.Quantity
	Generator  mdg.Config
}

type summary struct {
	Deltas int
	Orders int
}

func main() {
	out := flag.String("out", "-", "Output JSON-lines file (- writes stdout)")
	ticks := flag.Int("ticks", 100, "Number of ticks to generate")
	interval := flag.Duration("interval", 0, "Delay between ticks")
	symbols := flag.String("symbols", "AAPL,MSFT", "Comma separated symbols")
	basePrice := flag.String("base-price", "100", "Starting mid price")
	spread := flag.String("spread", "0.02", "Bid/ask spread")
	step := flag.String("step", "0.01", "Max mid move per tick")
	size := flag.String("size", "100", "Quantity at each level")
	seed := flag.Int64("seed", 0, "RNG seed (0=now)")
	orderEvery := flag.Int("order-every", 10, "Emit one order every N ticks (0=disable)")
	orderQty := flag.String("order-qty", "1", "Order quantity")
	flag.Parse()

	if *ticks <= 0 {
		log.Fatalf("ticks must be > 0")
	}
	opts, err := parseOptions(*symbols, *basePrice, *spread, *step, *size, *orderQty)
	if err != nil {
		log.Fatalf("invalid options: %+v", err)
	}
	opts.Ticks = *ticks
	opts.Interval = *interval
	opts.OrderEvery = *orderEvery
	opts.Generator.Seed = *seed

	w := io.Writer(os.Stdout)
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("create %s failed: %v", *out, err)
		}
		defer f.Close()
		w = f
	}

	sum, err := generate(w, opts)
	if err != nil {
		log.Fatalf("generate failed: %+v", err)
	}
	logs.Infof("mdg: ticks=%d deltas=%d orders=%d", opts.Ticks, sum.Deltas, sum.Orders)
}

func parseOptions(symbols, basePrice, spread, step, size, orderQty string) (options, error) {
	var opts options
	for _, s := range strings.Split(symbols, ",") {
		if s = strings.TrimSpace(s); s != "" {
			opts.Generator.Symbols = append(opts.Generator.Symbols, s)
		}
	}
	if len(opts.Generator.Symbols) == 0 {
		return options{}, errors.Wrap(exception.ErrInvalidArgument, "missing symbols; use -symbols")
	}

	var err error
	if opts.Generator.BasePrice, err = schema.ParsePrice(basePrice); err != nil {
		return options{}, err
	}
	if opts.Generator.Spread, err = schema.ParsePrice(spread); err != nil {
		return options{}, err
	}
	if opts.Generator.Step, err = schema.ParsePrice(step); err != nil {
		return options{}, err
	}
	if opts.Generator.Size, err = schema.ParseQuantity(size); err != nil {
		return options{}, err
	}
	if opts.OrderQty, err = schema.ParseQuantity(orderQty); err != nil {
		return options{}, err
	}
	return opts, nil
}

// generate writes opts.Ticks ticks of deltas. Every OrderEvery ticks it adds
// an order on the ticked symbol, alternating a market buy and a sell limit
// at the best bid.
func generate(w io.Writer, opts options) (summary, error) {
	g, err := mdg.NewGenerator(opts.Generator)
	if err != nil {
		return summary{}, err
	}
	out := feed.NewWriter(w)

	var sum summary
	var orderID uint64
	for i := 0; i < opts.Ticks; i++ {
		now := time.Now().UTC()
		deltas := g.Next(now)
		for _, d := range deltas {
			if err := out.Write(feed.DeltaLine(d)); err != nil {
				return sum, err
			}
			sum.Deltas++
		}

		if opts.OrderEvery > 0 && (i+1)%opts.OrderEvery == 0 {
			orderID++
			symbol := deltas[len(deltas)-1].Symbol
			order := schema.Order{
				OrderID:   orderID,
				Symbol:    symbol,
				Side:      schema.OrderSideBuy,
				Type:      schema.OrderTypeMarket,
				Qty:       opts.OrderQty,
				CreatedAt: now.UnixNano(),
			}
			if orderID%2 == 0 {
				bid, _, _ := g.Quote(symbol)
				order.Side = schema.OrderSideSell
				order.Type = schema.OrderTypeLimit
				order.LimitPrice = bid
			}
			if err := out.Write(feed.OrderLine(order)); err != nil {
				return sum, err
			}
			sum.Orders++
		}

		if opts.Interval > 0 && i < opts.Ticks-1 {
			time.Sleep(opts.Interval)
		}
	}
	return sum, out.Flush()
}
