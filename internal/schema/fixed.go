package schema

import (
	"math"
	"math/bits"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"hotpath/pkg/exception"
)

// Scale is the number of decimal places kept by Price, Quantity and Notional.
const Scale = 8

// One is the scaled representation of 1.0.
const One int64 = 100_000_000

// Price is a scaled integer with Scale decimal places.
type Price int64

// Quantity is a scaled integer with Scale decimal places.
type Quantity int64

// Notional is a scaled integer with Scale decimal places.
type Notional int64

var (
	maxInt64Decimal = decimal.NewFromInt(math.MaxInt64)
	minInt64Decimal = decimal.NewFromInt(math.MinInt64)
)

// ParsePrice parses a decimal string such as "150.25".
func ParsePrice(s string) (Price, error) {
	v, err := parseScaled(s)
	return Price(v), err
}

// ParseQuantity parses a decimal string such as "0.001".
func ParseQuantity(s string) (Quantity, error) {
	v, err := parseScaled(s)
	return Quantity(v), err
}

// PriceFromFloat converts a boundary float. NaN and ±Inf are rejected.
func PriceFromFloat(f float64) (Price, error) {
	v, err := fromFloat(f)
	return Price(v), err
}

// QuantityFromFloat converts a boundary float. NaN and ±Inf are rejected.
func QuantityFromFloat(f float64) (Quantity, error) {
	v, err := fromFloat(f)
	return Quantity(v), err
}

// NotionalFromFloat converts a boundary float. NaN and ±Inf are rejected.
func NotionalFromFloat(f float64) (Notional, error) {
	v, err := fromFloat(f)
	return Notional(v), err
}

// FromDecimal rescales d to Scale places, rounding half away from zero.
func FromDecimal(d decimal.Decimal) (int64, error) {
	scaled := d.Shift(Scale).Round(0)
	if scaled.GreaterThan(maxInt64Decimal) || scaled.LessThan(minInt64Decimal) {
		return 0, errors.Wrapf(exception.ErrNumberOverflow, "value: %s", d.String())
	}
	return scaled.IntPart(), nil
}

func parseScaled(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errors.Wrapf(exception.ErrInvalidNumber, "parse %q", s)
	}
	return FromDecimal(d)
}

func fromFloat(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, exception.ErrNonFiniteNumber
	}
	return FromDecimal(decimal.NewFromFloat(f))
}

func scaledDecimal(v int64) decimal.Decimal {
	return decimal.New(v, -Scale)
}

func (p Price) Decimal() decimal.Decimal { return scaledDecimal(int64(p)) }
func (p Price) String() string           { return p.Decimal().String() }
func (p Price) Float64() float64         { return float64(p) / float64(One) }

func (q Quantity) Decimal() decimal.Decimal { return scaledDecimal(int64(q)) }
func (q Quantity) String() string           { return q.Decimal().String() }
func (q Quantity) Float64() float64         { return float64(q) / float64(One) }

// Abs returns |q|.
func (q Quantity) Abs() Quantity {
	if q < 0 {
		return -q
	}
	return q
}

func (n Notional) Decimal() decimal.Decimal { return scaledDecimal(int64(n)) }
func (n Notional) String() string           { return n.Decimal().String() }
func (n Notional) Float64() float64         { return float64(n) / float64(One) }

// Abs returns |n|.
func (n Notional) Abs() Notional {
	if n < 0 {
		return -n
	}
	return n
}

// MulNotional returns price × qty at Scale places. ok is false on overflow.
func MulNotional(price Price, qty Quantity) (Notional, bool) {
	p, q := int64(price), int64(qty)
	if p == 0 || q == 0 {
		return 0, true
	}
	neg := (p < 0) != (q < 0)
	hi, lo := bits.Mul64(absUint64(p), absUint64(q))
	if hi >= uint64(One) {
		return 0, false
	}
	quo, _ := bits.Div64(hi, lo, uint64(One))
	if quo > math.MaxInt64 {
		return 0, false
	}
	n := int64(quo)
	if neg {
		n = -n
	}
	return Notional(n), true
}

// AddNotional adds with overflow detection.
func AddNotional(a, b Notional) (Notional, bool) {
	x, y := int64(a), int64(b)
	if (y > 0 && x > math.MaxInt64-y) || (y < 0 && x < math.MinInt64-y) {
		return 0, false
	}
	return Notional(x + y), true
}

func absUint64(v int64) uint64 {
	if v < 0 {
		return uint64(^v) + 1
	}
	return uint64(v)
}

// PriceOf returns n / qty, the average price of a notional spread over qty.
// ok is false when qty is zero or the result overflows.
func PriceOf(n Notional, qty Quantity) (Price, bool) {
	v, q := int64(n), int64(qty)
	if q == 0 {
		return 0, false
	}
	if v == 0 {
		return 0, true
	}
	neg := (v < 0) != (q < 0)
	hi, lo := bits.Mul64(absUint64(v), uint64(One))
	d := absUint64(q)
	if hi >= d {
		return 0, false
	}
	quo, _ := bits.Div64(hi, lo, d)
	if quo > math.MaxInt64 {
		return 0, false
	}
	p := int64(quo)
	if neg {
		p = -p
	}
	return Price(p), true
}
