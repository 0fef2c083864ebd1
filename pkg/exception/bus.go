package exception

import "github.com/yanun0323/errors"

var (
	ErrBusUnknownTopic = errors.New("bus: unknown topic")
	ErrBusClosed       = errors.New("bus: broker closed")
)
