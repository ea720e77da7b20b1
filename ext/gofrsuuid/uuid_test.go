package gofrsuuid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minipg/minipg/ext/gofrsuuid"
	"github.com/minipg/minipg/pgval"
)

func TestUUIDRoundTrip(t *testing.T) {
	t.Parallel()

	m := pgval.NewMap()
	gofrsuuid.Register(m)

	const s = "9c83c9f0-5b41-4a4e-8bd0-39ec75986dcb"

	buf, format, err := m.EncodeParam(pgval.Text(s), pgval.UUIDOID, nil)
	require.NoError(t, err)
	assert.Equal(t, int16(pgval.BinaryFormatCode), format)
	assert.Len(t, buf, 16)

	v, err := m.DecodeValue(buf, pgval.UUIDOID, format)
	require.NoError(t, err)
	assert.Equal(t, pgval.Text(s), v)
}

func TestUUIDDecodeText(t *testing.T) {
	t.Parallel()

	m := pgval.NewMap()
	gofrsuuid.Register(m)

	const s = "9c83c9f0-5b41-4a4e-8bd0-39ec75986dcb"

	v, err := m.DecodeValue([]byte(s), pgval.UUIDOID, pgval.TextFormatCode)
	require.NoError(t, err)
	assert.Equal(t, pgval.Text(s), v)
}

func TestUUIDEncodeFromBytes(t *testing.T) {
	t.Parallel()

	m := pgval.NewMap()
	gofrsuuid.Register(m)

	raw := []byte{0x9c, 0x83, 0xc9, 0xf0, 0x5b, 0x41, 0x4a, 0x4e, 0x8b, 0xd0, 0x39, 0xec, 0x75, 0x98, 0x6d, 0xcb}

	buf, _, err := m.EncodeParam(pgval.Bytes(raw), pgval.UUIDOID, nil)
	require.NoError(t, err)
	assert.Equal(t, raw, buf)
}

func TestUUIDInvalid(t *testing.T) {
	t.Parallel()

	m := pgval.NewMap()
	gofrsuuid.Register(m)

	_, _, err := m.EncodeParam(pgval.Text("not a uuid"), pgval.UUIDOID, nil)
	require.Error(t, err)

	_, err = m.DecodeValue([]byte{1, 2, 3}, pgval.UUIDOID, pgval.BinaryFormatCode)
	require.Error(t, err)
}
