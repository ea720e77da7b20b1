// Package shopspringnumeric provides a codec for the PostgreSQL numeric type
// backed by github.com/shopspring/decimal.
package shopspringnumeric

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/minipg/minipg/pgval"
)

// Register binds the numeric codec to the numeric type OID on m.
func Register(m *pgval.Map) {
	m.RegisterCodec(pgval.NumericOID, Codec{})
}

const (
	numericPos = 0x0000
	numericNeg = 0x4000
	numericNaN = 0xC000
)

var big10000 = big.NewInt(10000)

// Codec converts between the PostgreSQL numeric wire representations and
// exact decimal strings. Values decode to pgval.Text rendered at the scale
// the server declared, so "1.10" stays "1.10". Parameters may be encoded
// from pgval.Text, pgval.Int64, or pgval.Float64.
type Codec struct{}

func (Codec) PreferredFormat() int16 { return pgval.BinaryFormatCode }

func (Codec) Encode(v pgval.Value, buf []byte) ([]byte, int16, error) {
	var d decimal.Decimal

	switch v.Kind {
	case pgval.KindText:
		var err error
		d, err = decimal.NewFromString(v.Text)
		if err != nil {
			return nil, 0, err
		}
	case pgval.KindInt64:
		d = decimal.NewFromInt(v.Int64)
	case pgval.KindFloat64:
		d = decimal.NewFromFloat(v.Float64)
	default:
		return nil, 0, fmt.Errorf("cannot encode %v value into numeric", v.Kind)
	}

	return append(buf, d.String()...), pgval.TextFormatCode, nil
}

func (Codec) Decode(src []byte, format int16) (pgval.Value, error) {
	switch format {
	case pgval.BinaryFormatCode:
		return decodeBinary(src)
	case pgval.TextFormatCode:
		if string(src) == "NaN" {
			return pgval.Text("NaN"), nil
		}
		if _, err := decimal.NewFromString(string(src)); err != nil {
			return pgval.Value{}, err
		}
		return pgval.Text(string(src)), nil
	default:
		return pgval.Value{}, fmt.Errorf("unknown format code: %d", format)
	}
}

// decodeBinary unpacks the base-10000 digit representation described in
// PostgreSQL's utils/adt/numeric.c.
func decodeBinary(src []byte) (pgval.Value, error) {
	if len(src) < 8 {
		return pgval.Value{}, fmt.Errorf("numeric too short: %d", len(src))
	}

	ndigits := int(int16(binary.BigEndian.Uint16(src[0:])))
	weight := int(int16(binary.BigEndian.Uint16(src[2:])))
	sign := binary.BigEndian.Uint16(src[4:])
	dscale := int32(int16(binary.BigEndian.Uint16(src[6:])))

	if sign == numericNaN {
		return pgval.Text("NaN"), nil
	}
	if sign != numericPos && sign != numericNeg {
		return pgval.Value{}, fmt.Errorf("invalid numeric sign: %04x", sign)
	}
	if ndigits < 0 || len(src) < 8+ndigits*2 {
		return pgval.Value{}, fmt.Errorf("numeric digit count %d does not match length %d", ndigits, len(src))
	}

	coefficient := new(big.Int)
	digit := new(big.Int)
	for i := 0; i < ndigits; i++ {
		coefficient.Mul(coefficient, big10000)
		digit.SetInt64(int64(binary.BigEndian.Uint16(src[8+i*2:])))
		coefficient.Add(coefficient, digit)
	}
	if sign == numericNeg {
		coefficient.Neg(coefficient)
	}

	exponent := int32(weight-ndigits+1) * 4
	d := decimal.NewFromBigInt(coefficient, exponent)

	return pgval.Text(d.StringFixed(dscale)), nil
}
