package pgval

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/jackc/pgio"
)

type Float8Codec struct{}

func (Float8Codec) PreferredFormat() int16 { return BinaryFormatCode }

func (Float8Codec) Encode(v Value, buf []byte) ([]byte, int16, error) {
	var f float64
	switch v.Kind {
	case KindFloat64:
		f = v.Float64
	case KindInt64:
		f = float64(v.Int64)
	default:
		return nil, 0, fmt.Errorf("cannot encode %v value into float8", v.Kind)
	}

	return pgio.AppendUint64(buf, math.Float64bits(f)), BinaryFormatCode, nil
}

func (Float8Codec) Decode(src []byte, format int16) (Value, error) {
	switch format {
	case BinaryFormatCode:
		if len(src) != 8 {
			return Value{}, fmt.Errorf("invalid length for float8: %d", len(src))
		}
		return Float64(math.Float64frombits(binary.BigEndian.Uint64(src))), nil
	case TextFormatCode:
		f, err := strconv.ParseFloat(string(src), 64)
		if err != nil {
			return Value{}, err
		}
		return Float64(f), nil
	default:
		return Value{}, fmt.Errorf("unknown format code: %d", format)
	}
}
