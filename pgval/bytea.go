package pgval

import (
	"encoding/hex"
	"fmt"
)

type ByteaCodec struct{}

func (ByteaCodec) PreferredFormat() int16 { return BinaryFormatCode }

func (ByteaCodec) Encode(v Value, buf []byte) ([]byte, int16, error) {
	if v.Kind != KindBytes {
		return nil, 0, fmt.Errorf("cannot encode %v value into bytea", v.Kind)
	}

	return append(buf, v.Bytes...), BinaryFormatCode, nil
}

func (ByteaCodec) Decode(src []byte, format int16) (Value, error) {
	switch format {
	case BinaryFormatCode:
		buf := make([]byte, len(src))
		copy(buf, src)
		return Bytes(buf), nil
	case TextFormatCode:
		if len(src) < 2 || src[0] != '\\' || src[1] != 'x' {
			return Value{}, fmt.Errorf("invalid hex format for bytea: %q", src)
		}
		buf := make([]byte, hex.DecodedLen(len(src)-2))
		if _, err := hex.Decode(buf, src[2:]); err != nil {
			return Value{}, err
		}
		return Bytes(buf), nil
	default:
		return Value{}, fmt.Errorf("unknown format code: %d", format)
	}
}
