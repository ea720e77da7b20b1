package pgval

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/jackc/pgio"
)

type Int2Codec struct{}

func (Int2Codec) PreferredFormat() int16 { return BinaryFormatCode }

func (Int2Codec) Encode(v Value, buf []byte) ([]byte, int16, error) {
	if v.Kind != KindInt64 {
		return nil, 0, fmt.Errorf("cannot encode %v value into int2", v.Kind)
	}
	if v.Int64 < math.MinInt16 || v.Int64 > math.MaxInt16 {
		return nil, 0, fmt.Errorf("%d is out of range for int2", v.Int64)
	}

	return pgio.AppendInt16(buf, int16(v.Int64)), BinaryFormatCode, nil
}

func (Int2Codec) Decode(src []byte, format int16) (Value, error) {
	switch format {
	case BinaryFormatCode:
		if len(src) != 2 {
			return Value{}, fmt.Errorf("invalid length for int2: %d", len(src))
		}
		return Int64(int64(int16(binary.BigEndian.Uint16(src)))), nil
	case TextFormatCode:
		n, err := strconv.ParseInt(string(src), 10, 16)
		if err != nil {
			return Value{}, err
		}
		return Int64(n), nil
	default:
		return Value{}, fmt.Errorf("unknown format code: %d", format)
	}
}
