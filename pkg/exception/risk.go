package exception

import "github.com/yanun0323/errors"

var (
	ErrRiskViolation        = errors.New("risk: violation")
	ErrCircuitBreakerOpen   = errors.New("risk: circuit breaker open")
	ErrRiskUnknownOrder     = errors.New("risk: unknown order reservation")
	ErrRiskDuplicateOrder   = errors.New("risk: order already reserved")
	ErrRiskBreakerNotOpened = errors.New("risk: circuit breaker is not open")
)
