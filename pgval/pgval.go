// Package pgval converts between PostgreSQL wire representations and a small
// closed set of language-neutral value kinds.
package pgval

import (
	"fmt"
	"strconv"
)

// PostgreSQL oids for the types this package knows about.
const (
	BoolOID    = 16
	ByteaOID   = 17
	NameOID    = 19
	Int8OID    = 20
	Int2OID    = 21
	Int4OID    = 23
	TextOID    = 25
	Float4OID  = 700
	Float8OID  = 701
	UnknownOID = 705
	BPCharOID  = 1042
	VarcharOID = 1043
	NumericOID = 1700
	UUIDOID    = 2950
)

// Format codes as used in Bind and RowDescription.
const (
	TextFormatCode   = 0
	BinaryFormatCode = 1
)

// Kind identifies which variant a Value holds.
type Kind int8

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindText
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	default:
		return "invalid"
	}
}

// Value is a tagged union over the value kinds a parameter or result column
// can hold. Only the field selected by Kind is meaningful.
type Value struct {
	Kind    Kind
	Bool    bool
	Int64   int64
	Float64 float64
	Text    string
	Bytes   []byte
}

func Null() Value             { return Value{Kind: KindNull} }
func Bool(b bool) Value       { return Value{Kind: KindBool, Bool: b} }
func Int64(n int64) Value     { return Value{Kind: KindInt64, Int64: n} }
func Float64(f float64) Value { return Value{Kind: KindFloat64, Float64: f} }
func Text(s string) Value     { return Value{Kind: KindText, Text: s} }
func Bytes(b []byte) Value    { return Value{Kind: KindBytes, Bytes: b} }

// Codec encodes and decodes values of one PostgreSQL data type.
type Codec interface {
	// PreferredFormat is the format the codec wants result values delivered
	// in.
	PreferredFormat() int16

	// Encode appends the wire representation of v to buf and reports the
	// format code of the written value.
	Encode(v Value, buf []byte) (newBuf []byte, format int16, err error)

	// Decode converts wire bytes in the given format into a Value.
	Decode(src []byte, format int16) (Value, error)
}

// DecodeError occurs when wire bytes cannot be converted into a Value for the
// declared type and format.
type DecodeError struct {
	OID    uint32
	Format int16
	err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode value for oid %d format %d: %v", e.OID, e.Format, e.err)
}

func (e *DecodeError) Unwrap() error { return e.err }

// Map is a registry of Codecs by type OID. The zero value is not usable; use
// NewMap.
type Map struct {
	codecs map[uint32]Codec
}

// NewMap creates a Map with the builtin codecs registered.
func NewMap() *Map {
	m := &Map{codecs: make(map[uint32]Codec)}

	m.RegisterCodec(BoolOID, BoolCodec{})
	m.RegisterCodec(ByteaOID, ByteaCodec{})
	m.RegisterCodec(Int2OID, Int2Codec{})
	m.RegisterCodec(Int4OID, Int4Codec{})
	m.RegisterCodec(Int8OID, Int8Codec{})
	m.RegisterCodec(Float4OID, Float4Codec{})
	m.RegisterCodec(Float8OID, Float8Codec{})
	m.RegisterCodec(TextOID, TextCodec{})
	m.RegisterCodec(VarcharOID, TextCodec{})
	m.RegisterCodec(BPCharOID, TextCodec{})
	m.RegisterCodec(NameOID, TextCodec{})
	m.RegisterCodec(UnknownOID, TextCodec{})

	return m
}

// RegisterCodec binds a codec to a type OID, replacing any existing binding.
func (m *Map) RegisterCodec(oid uint32, c Codec) {
	m.codecs[oid] = c
}

// PreferredFormat reports the format code to request for result columns of
// the given type. Types without a registered codec are requested in text
// format so their values remain readable.
func (m *Map) PreferredFormat(oid uint32) int16 {
	if c, ok := m.codecs[oid]; ok {
		return c.PreferredFormat()
	}
	return TextFormatCode
}

// EncodeParam appends the wire representation of v as a parameter of the type
// identified by oid. A null value is represented by a nil buffer. Types
// without a registered codec are encoded from the value's own kind, in text
// format where one exists, so no data is silently dropped.
func (m *Map) EncodeParam(v Value, oid uint32, buf []byte) (newBuf []byte, format int16, err error) {
	if v.Kind == KindNull {
		return nil, TextFormatCode, nil
	}

	if c, ok := m.codecs[oid]; ok {
		newBuf, format, err = c.Encode(v, buf)
		if err != nil {
			return nil, 0, err
		}
		if newBuf == nil {
			// Only a null parameter may be represented by a nil buffer. An
			// empty bytea or empty string encodes to zero bytes, not NULL.
			newBuf = []byte{}
		}
		return newBuf, format, nil
	}

	switch v.Kind {
	case KindBool:
		if v.Bool {
			return append(buf, 't'), TextFormatCode, nil
		}
		return append(buf, 'f'), TextFormatCode, nil
	case KindInt64:
		return strconv.AppendInt(buf, v.Int64, 10), TextFormatCode, nil
	case KindFloat64:
		return strconv.AppendFloat(buf, v.Float64, 'f', -1, 64), TextFormatCode, nil
	case KindText:
		if err := validateUTF8(v.Text); err != nil {
			return nil, 0, err
		}
		if buf == nil {
			buf = []byte{}
		}
		return append(buf, v.Text...), TextFormatCode, nil
	case KindBytes:
		if buf == nil {
			buf = []byte{}
		}
		return append(buf, v.Bytes...), BinaryFormatCode, nil
	default:
		return nil, 0, fmt.Errorf("cannot encode %v value for oid %d", v.Kind, oid)
	}
}

// DecodeValue converts wire bytes for the given type OID and format into a
// Value. A nil src is the wire representation of NULL. Types without a
// registered codec fall back to Text for the text format and Bytes for the
// binary format.
func (m *Map) DecodeValue(src []byte, oid uint32, format int16) (Value, error) {
	if src == nil {
		return Null(), nil
	}

	if c, ok := m.codecs[oid]; ok {
		v, err := c.Decode(src, format)
		if err != nil {
			if _, ok := err.(*DecodeError); !ok {
				err = &DecodeError{OID: oid, Format: format, err: err}
			}
			return Value{}, err
		}
		return v, nil
	}

	if format == BinaryFormatCode {
		buf := make([]byte, len(src))
		copy(buf, src)
		return Bytes(buf), nil
	}

	if err := validateUTF8(string(src)); err != nil {
		return Value{}, &DecodeError{OID: oid, Format: format, err: err}
	}
	return Text(string(src)), nil
}
