package pgval

import (
	"fmt"
)

type BoolCodec struct{}

func (BoolCodec) PreferredFormat() int16 { return BinaryFormatCode }

func (BoolCodec) Encode(v Value, buf []byte) ([]byte, int16, error) {
	if v.Kind != KindBool {
		return nil, 0, fmt.Errorf("cannot encode %v value into bool", v.Kind)
	}

	if v.Bool {
		return append(buf, 1), BinaryFormatCode, nil
	}
	return append(buf, 0), BinaryFormatCode, nil
}

func (BoolCodec) Decode(src []byte, format int16) (Value, error) {
	switch format {
	case BinaryFormatCode:
		if len(src) != 1 {
			return Value{}, fmt.Errorf("invalid length for bool: %d", len(src))
		}
		return Bool(src[0] == 1), nil
	case TextFormatCode:
		switch string(src) {
		case "t", "true", "yes", "on", "1":
			return Bool(true), nil
		case "f", "false", "no", "off", "0":
			return Bool(false), nil
		default:
			return Value{}, fmt.Errorf("invalid bool text: %q", src)
		}
	default:
		return Value{}, fmt.Errorf("unknown format code: %d", format)
	}
}
