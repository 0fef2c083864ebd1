package codec

import (
	"encoding/binary"

	"github.com/yanun0323/errors"

	"hotpath/pkg/exception"
)

// MaxSymbolLen bounds the symbol carried by every payload.
const MaxSymbolLen = 32

const symbolHeaderSize = 2

func sized(dst []byte, n int) []byte {
	if cap(dst) < n {
		return make([]byte, n)
	}
	return dst[:n]
}

func checkSymbol(symbol string) error {
	if len(symbol) > MaxSymbolLen {
		return errors.Wrapf(exception.ErrInvalidArgument, "symbol %q longer than %d bytes", symbol, MaxSymbolLen)
	}
	return nil
}

func putSymbol(dst []byte, symbol string) {
	binary.LittleEndian.PutUint16(dst[0:2], uint16(len(symbol)))
	copy(dst[symbolHeaderSize:], symbol)
}

func readSymbol(src []byte) (string, bool) {
	if len(src) < symbolHeaderSize {
		return "", false
	}
	n := int(binary.LittleEndian.Uint16(src[0:2]))
	if n > MaxSymbolLen || len(src) < symbolHeaderSize+n {
		return "", false
	}
	return string(src[symbolHeaderSize : symbolHeaderSize+n]), true
}
