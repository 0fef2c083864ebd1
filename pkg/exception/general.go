package exception

import "github.com/yanun0323/errors"

// General errors
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNilInstance     = errors.New("nil instance")
	ErrInternal        = errors.New("internal error")
	ErrInvalidNumber   = errors.New("invalid number")
	ErrNonFiniteNumber = errors.New("number is not finite")
	ErrNumberOverflow  = errors.New("number overflow")
)
