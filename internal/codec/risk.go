package codec

import (
	"encoding/binary"

	"hotpath/internal/schema"
)

const riskDecisionFixedSize = 64

// RiskDecisionPayloadSize returns the encoded size of d.
func RiskDecisionPayloadSize(d schema.RiskDecision) int {
	return riskDecisionFixedSize + symbolHeaderSize + len(d.Symbol)
}

// EncodeRiskDecision serializes a risk decision.
func EncodeRiskDecision(dst []byte, d schema.RiskDecision) ([]byte, error) {
	if err := checkSymbol(d.Symbol); err != nil {
		return nil, err
	}
	dst = sized(dst, RiskDecisionPayloadSize(d))

	binary.LittleEndian.PutUint64(dst[0:8], d.OrderID)
	binary.LittleEndian.PutUint16(dst[8:10], uint16(d.Action))
	binary.LittleEndian.PutUint16(dst[10:12], uint16(d.Reason))
	binary.LittleEndian.PutUint16(dst[12:14], uint16(d.Side))
	binary.LittleEndian.PutUint16(dst[14:16], 0)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(d.Qty))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(d.RefPrice))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(d.Current))
	binary.LittleEndian.PutUint64(dst[40:48], uint64(d.Limit))
	binary.LittleEndian.PutUint64(dst[48:56], uint64(d.TsEvent))
	binary.LittleEndian.PutUint64(dst[56:64], 0)
	putSymbol(dst[64:], d.Symbol)

	return dst, nil
}

// DecodeRiskDecision parses a risk decision payload.
func DecodeRiskDecision(src []byte) (schema.RiskDecision, bool) {
	if len(src) < riskDecisionFixedSize {
		return schema.RiskDecision{}, false
	}
	symbol, ok := readSymbol(src[64:])
	if !ok {
		return schema.RiskDecision{}, false
	}
	return schema.RiskDecision{
		OrderID:  binary.LittleEndian.Uint64(src[0:8]),
		Symbol:   symbol,
		Action:   schema.RiskAction(binary.LittleEndian.Uint16(src[8:10])),
		Reason:   schema.RiskReason(binary.LittleEndian.Uint16(src[10:12])),
		Side:     schema.OrderSide(binary.LittleEndian.Uint16(src[12:14])),
		Qty:      schema.Quantity(int64(binary.LittleEndian.Uint64(src[16:24]))),
		RefPrice: schema.Price(int64(binary.LittleEndian.Uint64(src[24:32]))),
		Current:  int64(binary.LittleEndian.Uint64(src[32:40])),
		Limit:    int64(binary.LittleEndian.Uint64(src[40:48])),
		TsEvent:  int64(binary.LittleEndian.Uint64(src[48:56])),
	}, true
}
