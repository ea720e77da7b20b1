package pgval

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/jackc/pgio"
)

type Int8Codec struct{}

func (Int8Codec) PreferredFormat() int16 { return BinaryFormatCode }

func (Int8Codec) Encode(v Value, buf []byte) ([]byte, int16, error) {
	if v.Kind != KindInt64 {
		return nil, 0, fmt.Errorf("cannot encode %v value into int8", v.Kind)
	}

	return pgio.AppendInt64(buf, v.Int64), BinaryFormatCode, nil
}

func (Int8Codec) Decode(src []byte, format int16) (Value, error) {
	switch format {
	case BinaryFormatCode:
		if len(src) != 8 {
			return Value{}, fmt.Errorf("invalid length for int8: %d", len(src))
		}
		return Int64(int64(binary.BigEndian.Uint64(src))), nil
	case TextFormatCode:
		n, err := strconv.ParseInt(string(src), 10, 64)
		if err != nil {
			return Value{}, err
		}
		return Int64(n), nil
	default:
		return Value{}, fmt.Errorf("unknown format code: %d", format)
	}
}
