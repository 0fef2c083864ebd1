package codec

import (
	"encoding/binary"

	"hotpath/internal/schema"
)

const marketDeltaFixedSize = 34

// MarketDeltaPayloadSize returns the encoded size of d.
func MarketDeltaPayloadSize(d schema.MarketDelta) int {
	return marketDeltaFixedSize + symbolHeaderSize + len(d.Symbol)
}

// EncodeMarketDelta serializes a book delta.
func EncodeMarketDelta(dst []byte, d schema.MarketDelta) ([]byte, error) {
	if err := checkSymbol(d.Symbol); err != nil {
		return nil, err
	}
	dst = sized(dst, MarketDeltaPayloadSize(d))

	binary.LittleEndian.PutUint16(dst[0:2], uint16(d.Side))
	binary.LittleEndian.PutUint64(dst[2:10], uint64(d.Price))
	binary.LittleEndian.PutUint64(dst[10:18], uint64(d.Qty))
	binary.LittleEndian.PutUint64(dst[18:26], d.ExchangeSeq)
	binary.LittleEndian.PutUint64(dst[26:34], uint64(d.TsEvent))
	putSymbol(dst[34:], d.Symbol)

	return dst, nil
}

// DecodeMarketDelta parses a book delta payload.
func DecodeMarketDelta(src []byte) (schema.MarketDelta, bool) {
	if len(src) < marketDeltaFixedSize {
		return schema.MarketDelta{}, false
	}
	symbol, ok := readSymbol(src[34:])
	if !ok {
		return schema.MarketDelta{}, false
	}
	return schema.MarketDelta{
		Symbol:      symbol,
		Side:        schema.BookSide(binary.LittleEndian.Uint16(src[0:2])),
		Price:       schema.Price(int64(binary.LittleEndian.Uint64(src[2:10]))),
		Qty:         schema.Quantity(int64(binary.LittleEndian.Uint64(src[10:18]))),
		ExchangeSeq: binary.LittleEndian.Uint64(src[18:26]),
		TsEvent:     int64(binary.LittleEndian.Uint64(src[26:34])),
	}, true
}
