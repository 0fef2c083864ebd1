package codec

import (
	"encoding/binary"

	"hotpath/internal/schema"
)

const (
	executionResultFixedSize = 48
	// MaxErrorLen bounds the error text carried by an execution result.
	MaxErrorLen = 256
	// MaxVenueOrderIDLen bounds the venue order id.
	MaxVenueOrderIDLen = 64
)

// ExecutionResultPayloadSize returns the encoded size of r after the venue
// order id and error text are truncated.
func ExecutionResultPayloadSize(r schema.ExecutionResult) int {
	return executionResultFixedSize + symbolHeaderSize + len(r.Symbol) +
		2 + min(len(r.VenueOrderID), MaxVenueOrderIDLen) +
		2 + min(len(r.Error), MaxErrorLen)
}

// EncodeExecutionResult serializes an execution result. Venue order id and
// error text beyond their bounds are truncated.
func EncodeExecutionResult(dst []byte, r schema.ExecutionResult) ([]byte, error) {
	if err := checkSymbol(r.Symbol); err != nil {
		return nil, err
	}
	dst = sized(dst, ExecutionResultPayloadSize(r))

	binary.LittleEndian.PutUint64(dst[0:8], r.OrderID)
	binary.LittleEndian.PutUint16(dst[8:10], uint16(r.Status))
	binary.LittleEndian.PutUint16(dst[10:12], r.Attempts)
	binary.LittleEndian.PutUint32(dst[12:16], 0)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(r.FilledQty))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(r.AvgFillPrice))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(r.TsEvent))
	binary.LittleEndian.PutUint64(dst[40:48], 0)

	off := executionResultFixedSize
	putSymbol(dst[off:], r.Symbol)
	off += symbolHeaderSize + len(r.Symbol)
	off = putString(dst, off, r.VenueOrderID, MaxVenueOrderIDLen)
	putString(dst, off, r.Error, MaxErrorLen)

	return dst, nil
}

// DecodeExecutionResult parses an execution result payload.
func DecodeExecutionResult(src []byte) (schema.ExecutionResult, bool) {
	if len(src) < executionResultFixedSize {
		return schema.ExecutionResult{}, false
	}
	off := executionResultFixedSize
	symbol, ok := readSymbol(src[off:])
	if !ok {
		return schema.ExecutionResult{}, false
	}
	off += symbolHeaderSize + len(symbol)
	venueID, off, ok := readString(src, off, MaxVenueOrderIDLen)
	if !ok {
		return schema.ExecutionResult{}, false
	}
	errText, _, ok := readString(src, off, MaxErrorLen)
	if !ok {
		return schema.ExecutionResult{}, false
	}
	return schema.ExecutionResult{
		OrderID:      binary.LittleEndian.Uint64(src[0:8]),
		Symbol:       symbol,
		Status:       schema.ExecutionStatus(binary.LittleEndian.Uint16(src[8:10])),
		Attempts:     binary.LittleEndian.Uint16(src[10:12]),
		FilledQty:    schema.Quantity(int64(binary.LittleEndian.Uint64(src[16:24]))),
		AvgFillPrice: schema.Price(int64(binary.LittleEndian.Uint64(src[24:32]))),
		VenueOrderID: venueID,
		Error:        errText,
		TsEvent:      int64(binary.LittleEndian.Uint64(src[32:40])),
	}, true
}

func putString(dst []byte, off int, s string, limit int) int {
	if len(s) > limit {
		s = s[:limit]
	}
	binary.LittleEndian.PutUint16(dst[off:off+2], uint16(len(s)))
	copy(dst[off+2:], s)
	return off + 2 + len(s)
}

func readString(src []byte, off, limit int) (string, int, bool) {
	if len(src) < off+2 {
		return "", off, false
	}
	n := int(binary.LittleEndian.Uint16(src[off : off+2]))
	if n > limit || len(src) < off+2+n {
		return "", off, false
	}
	return string(src[off+2 : off+2+n]), off + 2 + n, true
}
