// Package gofrsuuid provides a codec for the PostgreSQL uuid type backed by
// github.com/gofrs/uuid.
package gofrsuuid

import (
	"fmt"

	"github.com/gofrs/uuid"

	"github.com/minipg/minipg/pgval"
)

// Register binds the uuid codec to the uuid type OID on m.
func Register(m *pgval.Map) {
	m.RegisterCodec(pgval.UUIDOID, Codec{})
}

// Codec converts between the PostgreSQL uuid wire representations and the
// canonical string form. Values decode to pgval.Text. Parameters may be
// encoded from pgval.Text in any form uuid.FromString accepts, or from
// pgval.Bytes holding the raw 16 bytes.
type Codec struct{}

func (Codec) PreferredFormat() int16 { return pgval.BinaryFormatCode }

func (Codec) Encode(v pgval.Value, buf []byte) ([]byte, int16, error) {
	var u uuid.UUID
	var err error

	switch v.Kind {
	case pgval.KindText:
		u, err = uuid.FromString(v.Text)
	case pgval.KindBytes:
		u, err = uuid.FromBytes(v.Bytes)
	default:
		return nil, 0, fmt.Errorf("cannot encode %v value into uuid", v.Kind)
	}
	if err != nil {
		return nil, 0, err
	}

	return append(buf, u.Bytes()...), pgval.BinaryFormatCode, nil
}

func (Codec) Decode(src []byte, format int16) (pgval.Value, error) {
	var u uuid.UUID
	var err error

	switch format {
	case pgval.BinaryFormatCode:
		u, err = uuid.FromBytes(src)
	case pgval.TextFormatCode:
		u, err = uuid.FromString(string(src))
	default:
		return pgval.Value{}, fmt.Errorf("unknown format code: %d", format)
	}
	if err != nil {
		return pgval.Value{}, err
	}

	return pgval.Text(u.String()), nil
}
