package pgval

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// validateUTF8 rejects byte sequences that are not valid UTF-8 rather than
// letting replacement characters slip into decoded values.
func validateUTF8(s string) error {
	if _, _, err := transform.String(encoding.UTF8Validator, s); err != nil {
		return fmt.Errorf("invalid UTF-8: %w", err)
	}
	return nil
}

type TextCodec struct{}

func (TextCodec) PreferredFormat() int16 { return TextFormatCode }

func (TextCodec) Encode(v Value, buf []byte) ([]byte, int16, error) {
	if v.Kind != KindText {
		return nil, 0, fmt.Errorf("cannot encode %v value into text", v.Kind)
	}
	if err := validateUTF8(v.Text); err != nil {
		return nil, 0, err
	}

	return append(buf, v.Text...), TextFormatCode, nil
}

// Decode is format agnostic: the wire representation of text is the same in
// both formats.
func (TextCodec) Decode(src []byte, format int16) (Value, error) {
	s := string(src)
	if err := validateUTF8(s); err != nil {
		return Value{}, err
	}
	return Text(s), nil
}
