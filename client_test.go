package minipg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minipg/minipg"
	"github.com/minipg/minipg/internal/pgmock"
	"github.com/minipg/minipg/pgproto"
	"github.com/minipg/minipg/pgval"
)

func TestClientNotConnected(t *testing.T) {
	t.Parallel()

	client := &minipg.Client{}

	_, err := client.Query("select 1")
	assert.ErrorIs(t, err, minipg.ErrNotConnected)

	_, err = client.Exec("select 1")
	assert.ErrorIs(t, err, minipg.ErrNotConnected)

	_, err = client.BatchExec("select 1")
	assert.ErrorIs(t, err, minipg.ErrNotConnected)

	assert.Nil(t, client.Conn())
	assert.NoError(t, client.Close())
}

func TestClientConnectAndQuery(t *testing.T) {
	script := &pgmock.Script{Steps: pgmock.AcceptUnauthenticatedConnRequestSteps()}
	script.Steps = append(script.Steps,
		pgmock.ExpectMessage(&pgproto.Parse{Name: "s0", Query: "select 42 as n"}),
		pgmock.ExpectMessage(&pgproto.Describe{ObjectType: 'S', Name: "s0"}),
		pgmock.ExpectMessage(&pgproto.Sync{}),
		pgmock.SendMessage(&pgproto.ParseComplete{}),
		pgmock.SendMessage(&pgproto.ParameterDescription{}),
		pgmock.SendMessage(&pgproto.RowDescription{Fields: []pgproto.FieldDescription{
			{Name: "n", DataTypeOID: pgval.Int8OID, DataTypeSize: 8, TypeModifier: -1},
		}}),
		pgmock.SendMessage(&pgproto.ReadyForQuery{TxStatus: 'I'}),
		pgmock.ExpectMessage(&pgproto.Bind{PreparedStatement: "s0", ResultFormatCodes: []int16{1}}),
		pgmock.ExpectMessage(&pgproto.Execute{}),
		pgmock.ExpectMessage(&pgproto.Close{ObjectType: 'S', Name: "s0"}),
		pgmock.ExpectMessage(&pgproto.Sync{}),
		pgmock.SendMessage(&pgproto.BindComplete{}),
		pgmock.SendMessage(&pgproto.DataRow{Values: [][]byte{{0, 0, 0, 0, 0, 0, 0, 42}}}),
		pgmock.SendMessage(&pgproto.CommandComplete{CommandTag: "SELECT 1"}),
		pgmock.SendMessage(&pgproto.CloseComplete{}),
		pgmock.SendMessage(&pgproto.ReadyForQuery{TxStatus: 'I'}),
		pgmock.WaitForClose(),
	)

	connString, serverErrChan := startMockServer(t, script)

	client := &minipg.Client{}
	require.NoError(t, client.Connect(connString))
	require.NotNil(t, client.Conn())

	result, err := client.Query("select 42 as n")
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, minipg.Row{pgval.Int64(42)}, result.Rows[0])

	require.NoError(t, client.Close())
	assert.Nil(t, client.Conn())

	assert.NoError(t, <-serverErrChan)
}
