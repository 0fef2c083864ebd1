package execution

import (
	"github.com/yanun0323/errors"

	"hotpath/internal/schema"
	"hotpath/pkg/exception"
)

const maxInt64 = int64(^uint64(0) >> 1)

// CheckSlippage rejects a limit price more than maxBps away from market.
func CheckSlippage(limit, market schema.Price, maxBps int64) error {
	if maxBps <= 0 {
		return nil
	}
	diff := int64(limit) - int64(market)
	if diff < 0 {
		diff = -diff
	}
	if exceedsDeviation(diff, int64(market), maxBps) {
		return errors.Wrapf(exception.ErrOrderSlippageExceeded, "limit %s, market %s, max %d bps", limit, market, maxBps)
	}
	return nil
}

func exceedsDeviation(diff int64, ref int64, bps int64) bool {
	if diff <= 0 || ref <= 0 || bps <= 0 {
		return false
	}
	if diff > maxInt64/10000 {
		return true
	}
	lhs := diff * 10000
	if ref > maxInt64/bps {
		return false
	}
	rhs := ref * bps
	return lhs > rhs
}
