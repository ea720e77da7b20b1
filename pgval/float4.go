package pgval

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/jackc/pgio"
)

type Float4Codec struct{}

func (Float4Codec) PreferredFormat() int16 { return BinaryFormatCode }

func (Float4Codec) Encode(v Value, buf []byte) ([]byte, int16, error) {
	var f float64
	switch v.Kind {
	case KindFloat64:
		f = v.Float64
	case KindInt64:
		f = float64(v.Int64)
	default:
		return nil, 0, fmt.Errorf("cannot encode %v value into float4", v.Kind)
	}

	return pgio.AppendUint32(buf, math.Float32bits(float32(f))), BinaryFormatCode, nil
}

func (Float4Codec) Decode(src []byte, format int16) (Value, error) {
	switch format {
	case BinaryFormatCode:
		if len(src) != 4 {
			return Value{}, fmt.Errorf("invalid length for float4: %d", len(src))
		}
		return Float64(float64(math.Float32frombits(binary.BigEndian.Uint32(src)))), nil
	case TextFormatCode:
		f, err := strconv.ParseFloat(string(src), 32)
		if err != nil {
			return Value{}, err
		}
		return Float64(f), nil
	default:
		return Value{}, fmt.Errorf("unknown format code: %d", format)
	}
}
