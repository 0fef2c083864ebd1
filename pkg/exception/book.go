package exception

import "github.com/yanun0323/errors"

var (
	ErrBookValidation = errors.New("book: invalid update")
)
