package pgval

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/jackc/pgio"
)

type Int4Codec struct{}

func (Int4Codec) PreferredFormat() int16 { return BinaryFormatCode }

func (Int4Codec) Encode(v Value, buf []byte) ([]byte, int16, error) {
	if v.Kind != KindInt64 {
		return nil, 0, fmt.Errorf("cannot encode %v value into int4", v.Kind)
	}
	if v.Int64 < math.MinInt32 || v.Int64 > math.MaxInt32 {
		return nil, 0, fmt.Errorf("%d is out of range for int4", v.Int64)
	}

	return pgio.AppendInt32(buf, int32(v.Int64)), BinaryFormatCode, nil
}

func (Int4Codec) Decode(src []byte, format int16) (Value, error) {
	switch format {
	case BinaryFormatCode:
		if len(src) != 4 {
			return Value{}, fmt.Errorf("invalid length for int4: %d", len(src))
		}
		return Int64(int64(int32(binary.BigEndian.Uint32(src)))), nil
	case TextFormatCode:
		n, err := strconv.ParseInt(string(src), 10, 32)
		if err != nil {
			return Value{}, err
		}
		return Int64(n), nil
	default:
		return Value{}, fmt.Errorf("unknown format code: %d", format)
	}
}
