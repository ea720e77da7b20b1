package minipg_test

import (
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minipg/minipg"
	"github.com/minipg/minipg/internal/pgmock"
	"github.com/minipg/minipg/log/testingadapter"
	"github.com/minipg/minipg/pgproto"
	"github.com/minipg/minipg/pgval"
)

// recordingConn counts the bytes written to the wrapped connection.
type recordingConn struct {
	net.Conn
	bytesWritten int64
}

func (rc *recordingConn) Write(b []byte) (int, error) {
	n, err := rc.Conn.Write(b)
	atomic.AddInt64(&rc.bytesWritten, int64(n))
	return n, err
}

func TestConnQuery(t *testing.T) {
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

	conn, err := minipg.Connect(connString)
	require.NoError(t, err)

	result, err := conn.Query("select 42 as n")
	require.NoError(t, err)

	require.Len(t, result.FieldDescriptions, 1)
	assert.Equal(t, "n", result.FieldDescriptions[0].Name)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, minipg.Row{pgval.Int64(42)}, result.Rows[0])
	assert.Equal(t, minipg.CommandTag("SELECT 1"), result.CommandTag)

	require.NoError(t, conn.Close())
	assert.NoError(t, <-serverErrChan)
}

func TestConnQueryWithParams(t *testing.T) {
	script := &pgmock.Script{Steps: pgmock.AcceptUnauthenticatedConnRequestSteps()}
	script.Steps = append(script.Steps,
		pgmock.ExpectMessage(&pgproto.Parse{Name: "s0", Query: "select $1::int8 + $2::int8"}),
		pgmock.ExpectMessage(&pgproto.Describe{ObjectType: 'S', Name: "s0"}),
		pgmock.ExpectMessage(&pgproto.Sync{}),
		pgmock.SendMessage(&pgproto.ParseComplete{}),
		pgmock.SendMessage(&pgproto.ParameterDescription{ParameterOIDs: []uint32{pgval.Int8OID, pgval.Int8OID}}),
		pgmock.SendMessage(&pgproto.RowDescription{Fields: []pgproto.FieldDescription{
			{Name: "?column?", DataTypeOID: pgval.Int8OID, DataTypeSize: 8, TypeModifier: -1},
		}}),
		pgmock.SendMessage(&pgproto.ReadyForQuery{TxStatus: 'I'}),
		pgmock.ExpectMessage(&pgproto.Bind{
			PreparedStatement:    "s0",
			ParameterFormatCodes: []int16{1, 1},
			Parameters:           [][]byte{{0, 0, 0, 0, 0, 0, 0, 1}, {0, 0, 0, 0, 0, 0, 0, 2}},
			ResultFormatCodes:    []int16{1},
		}),
		pgmock.ExpectMessage(&pgproto.Execute{}),
		pgmock.ExpectMessage(&pgproto.Close{ObjectType: 'S', Name: "s0"}),
		pgmock.ExpectMessage(&pgproto.Sync{}),
		pgmock.SendMessage(&pgproto.BindComplete{}),
		pgmock.SendMessage(&pgproto.DataRow{Values: [][]byte{{0, 0, 0, 0, 0, 0, 0, 3}}}),
		pgmock.SendMessage(&pgproto.CommandComplete{CommandTag: "SELECT 1"}),
		pgmock.SendMessage(&pgproto.CloseComplete{}),
		pgmock.SendMessage(&pgproto.ReadyForQuery{TxStatus: 'I'}),
		pgmock.WaitForClose(),
	)

	connString, serverErrChan := startMockServer(t, script)

	conn, err := minipg.Connect(connString)
	require.NoError(t, err)

	result, err := conn.Query("select $1::int8 + $2::int8", pgval.Int64(1), pgval.Int64(2))
	require.NoError(t, err)

	require.Len(t, result.Rows, 1)
	assert.Equal(t, minipg.Row{pgval.Int64(3)}, result.Rows[0])

	require.NoError(t, conn.Close())
	assert.NoError(t, <-serverErrChan)
}

func TestConnQueryNullParamAndResult(t *testing.T) {
	script := &pgmock.Script{Steps: pgmock.AcceptUnauthenticatedConnRequestSteps()}
	script.Steps = append(script.Steps,
		pgmock.ExpectMessage(&pgproto.Parse{Name: "s0", Query: "select $1::text"}),
		pgmock.ExpectMessage(&pgproto.Describe{ObjectType: 'S', Name: "s0"}),
		pgmock.ExpectMessage(&pgproto.Sync{}),
		pgmock.SendMessage(&pgproto.ParseComplete{}),
		pgmock.SendMessage(&pgproto.ParameterDescription{ParameterOIDs: []uint32{pgval.TextOID}}),
		pgmock.SendMessage(&pgproto.RowDescription{Fields: []pgproto.FieldDescription{
			{Name: "text", DataTypeOID: pgval.TextOID, DataTypeSize: -1, TypeModifier: -1},
		}}),
		pgmock.SendMessage(&pgproto.ReadyForQuery{TxStatus: 'I'}),
		pgmock.ExpectMessage(&pgproto.Bind{
			PreparedStatement:    "s0",
			ParameterFormatCodes: []int16{0},
			Parameters:           [][]byte{nil},
			ResultFormatCodes:    []int16{0},
		}),
		pgmock.ExpectMessage(&pgproto.Execute{}),
		pgmock.ExpectMessage(&pgproto.Close{ObjectType: 'S', Name: "s0"}),
		pgmock.ExpectMessage(&pgproto.Sync{}),
		pgmock.SendMessage(&pgproto.BindComplete{}),
		pgmock.SendMessage(&pgproto.DataRow{Values: [][]byte{nil}}),
		pgmock.SendMessage(&pgproto.CommandComplete{CommandTag: "SELECT 1"}),
		pgmock.SendMessage(&pgproto.CloseComplete{}),
		pgmock.SendMessage(&pgproto.ReadyForQuery{TxStatus: 'I'}),
		pgmock.WaitForClose(),
	)

	connString, serverErrChan := startMockServer(t, script)

	conn, err := minipg.Connect(connString)
	require.NoError(t, err)

	result, err := conn.Query("select $1::text", pgval.Null())
	require.NoError(t, err)

	require.Len(t, result.Rows, 1)
	assert.Equal(t, minipg.Row{pgval.Null()}, result.Rows[0])

	require.NoError(t, conn.Close())
	assert.NoError(t, <-serverErrChan)
}

func TestConnQueryPlaceholderCountMismatch(t *testing.T) {
	script := &pgmock.Script{
		Steps: append(pgmock.AcceptUnauthenticatedConnRequestSteps(), pgmock.WaitForClose()),
	}

	connString, serverErrChan := startMockServer(t, script)

	config, err := minipg.ParseConfig(connString)
	require.NoError(t, err)

	var transport *recordingConn
	dial := config.DialFunc
	config.DialFunc = func(network, addr string) (net.Conn, error) {
		netConn, err := dial(network, addr)
		if err != nil {
			return nil, err
		}
		transport = &recordingConn{Conn: netConn}
		return transport, nil
	}

	conn, err := minipg.ConnectConfig(config)
	require.NoError(t, err)

	handshakeBytes := atomic.LoadInt64(&transport.bytesWritten)

	_, err = conn.Query("select $1::int8")
	require.Error(t, err)

	var paramErr *minipg.ParameterError
	require.ErrorAs(t, err, &paramErr)
	assert.Equal(t, 0, paramErr.Index)

	// The mismatch was detected before anything was written, so the
	// connection remains usable and not a single byte left for the failed
	// call.
	assert.Equal(t, handshakeBytes, atomic.LoadInt64(&transport.bytesWritten))
	assert.False(t, conn.IsClosed())

	require.NoError(t, conn.Close())
	assert.NoError(t, <-serverErrChan)
}

func TestConnQueryServerError(t *testing.T) {
	script := &pgmock.Script{Steps: pgmock.AcceptUnauthenticatedConnRequestSteps()}
	script.Steps = append(script.Steps,
		pgmock.ExpectMessage(&pgproto.Parse{Name: "s0", Query: "select wrong"}),
		pgmock.ExpectMessage(&pgproto.Describe{ObjectType: 'S', Name: "s0"}),
		pgmock.ExpectMessage(&pgproto.Sync{}),
		pgmock.SendMessage(&pgproto.ErrorResponse{Severity: "ERROR", Code: "42703", Message: `column "wrong" does not exist`}),
		pgmock.SendMessage(&pgproto.ReadyForQuery{TxStatus: 'I'}),
		pgmock.WaitForClose(),
	)

	connString, serverErrChan := startMockServer(t, script)

	conn, err := minipg.Connect(connString)
	require.NoError(t, err)

	_, err = conn.Query("select wrong")
	require.Error(t, err)

	var pgErr *minipg.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "42703", pgErr.SQLState())

	// A server-reported query error does not poison the connection.
	assert.False(t, conn.IsClosed())

	require.NoError(t, conn.Close())
	assert.NoError(t, <-serverErrChan)
}

func TestConnExecRowsAffected(t *testing.T) {
	script := &pgmock.Script{Steps: pgmock.AcceptUnauthenticatedConnRequestSteps()}
	script.Steps = append(script.Steps,
		pgmock.ExpectMessage(&pgproto.Parse{Name: "s0", Query: "insert into t (n) values ($1)"}),
		pgmock.ExpectMessage(&pgproto.Describe{ObjectType: 'S', Name: "s0"}),
		pgmock.ExpectMessage(&pgproto.Sync{}),
		pgmock.SendMessage(&pgproto.ParseComplete{}),
		pgmock.SendMessage(&pgproto.ParameterDescription{ParameterOIDs: []uint32{pgval.Int4OID}}),
		pgmock.SendMessage(&pgproto.NoData{}),
		pgmock.SendMessage(&pgproto.ReadyForQuery{TxStatus: 'I'}),
		pgmock.ExpectMessage(&pgproto.Bind{
			PreparedStatement:    "s0",
			ParameterFormatCodes: []int16{1},
			Parameters:           [][]byte{{0, 0, 0, 7}},
			ResultFormatCodes:    []int16{},
		}),
		pgmock.ExpectMessage(&pgproto.Execute{}),
		pgmock.ExpectMessage(&pgproto.Close{ObjectType: 'S', Name: "s0"}),
		pgmock.ExpectMessage(&pgproto.Sync{}),
		pgmock.SendMessage(&pgproto.BindComplete{}),
		pgmock.SendMessage(&pgproto.CommandComplete{CommandTag: "INSERT 0 1"}),
		pgmock.SendMessage(&pgproto.CloseComplete{}),
		pgmock.SendMessage(&pgproto.ReadyForQuery{TxStatus: 'I'}),
		pgmock.WaitForClose(),
	)

	connString, serverErrChan := startMockServer(t, script)

	conn, err := minipg.Connect(connString)
	require.NoError(t, err)

	commandTag, err := conn.Exec("insert into t (n) values ($1)", pgval.Int64(7))
	require.NoError(t, err)
	assert.Equal(t, int64(1), commandTag.RowsAffected())

	require.NoError(t, conn.Close())
	assert.NoError(t, <-serverErrChan)
}

func TestConnQueryEncodeErrorClosesStatement(t *testing.T) {
	script := &pgmock.Script{Steps: pgmock.AcceptUnauthenticatedConnRequestSteps()}
	script.Steps = append(script.Steps,
		pgmock.ExpectMessage(&pgproto.Parse{Name: "s0", Query: "select $1::int2"}),
		pgmock.ExpectMessage(&pgproto.Describe{ObjectType: 'S', Name: "s0"}),
		pgmock.ExpectMessage(&pgproto.Sync{}),
		pgmock.SendMessage(&pgproto.ParseComplete{}),
		pgmock.SendMessage(&pgproto.ParameterDescription{ParameterOIDs: []uint32{pgval.Int2OID}}),
		pgmock.SendMessage(&pgproto.RowDescription{Fields: []pgproto.FieldDescription{
			{Name: "int2", DataTypeOID: pgval.Int2OID, DataTypeSize: 2, TypeModifier: -1},
		}}),
		pgmock.SendMessage(&pgproto.ReadyForQuery{TxStatus: 'I'}),
		pgmock.ExpectMessage(&pgproto.Close{ObjectType: 'S', Name: "s0"}),
		pgmock.ExpectMessage(&pgproto.Sync{}),
		pgmock.SendMessage(&pgproto.CloseComplete{}),
		pgmock.SendMessage(&pgproto.ReadyForQuery{TxStatus: 'I'}),
		pgmock.WaitForClose(),
	)

	connString, serverErrChan := startMockServer(t, script)

	conn, err := minipg.Connect(connString)
	require.NoError(t, err)

	_, err = conn.Query("select $1::int2", pgval.Int64(1000000))
	require.Error(t, err)

	var paramErr *minipg.ParameterError
	require.ErrorAs(t, err, &paramErr)
	assert.Equal(t, 1, paramErr.Index)

	assert.False(t, conn.IsClosed())

	require.NoError(t, conn.Close())
	assert.NoError(t, <-serverErrChan)
}

func TestConnQueryProtocolErrorPoisonsConn(t *testing.T) {
	script := &pgmock.Script{Steps: pgmock.AcceptUnauthenticatedConnRequestSteps()}
	script.Steps = append(script.Steps,
		pgmock.ExpectMessage(&pgproto.Parse{Name: "s0", Query: "select 1"}),
		pgmock.ExpectMessage(&pgproto.Describe{ObjectType: 'S', Name: "s0"}),
		pgmock.ExpectMessage(&pgproto.Sync{}),
		// Hang up instead of answering.
	)

	connString, serverErrChan := startMockServer(t, script)

	conn, err := minipg.Connect(connString)
	require.NoError(t, err)

	_, err = conn.Query("select 1")
	require.Error(t, err)

	var protocolErr *minipg.ProtocolError
	require.ErrorAs(t, err, &protocolErr)
	assert.True(t, conn.IsClosed())

	// Further use reports the connection as closed.
	_, err = conn.Query("select 1")
	assert.ErrorIs(t, err, minipg.ErrConnClosed)

	assert.NoError(t, <-serverErrChan)
}

func TestConnQueryAsyncMessagesDuringResult(t *testing.T) {
	script := &pgmock.Script{Steps: pgmock.AcceptUnauthenticatedConnRequestSteps()}
	script.Steps = append(script.Steps,
		pgmock.ExpectMessage(&pgproto.Parse{Name: "s0", Query: "select n from widgets"}),
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
		pgmock.SendMessage(&pgproto.DataRow{Values: [][]byte{{0, 0, 0, 0, 0, 0, 0, 1}}}),
		// Notices and notifications may arrive at any point in the stream.
		// Neither interrupts the result.
		pgmock.SendMessage(&pgproto.NoticeResponse{Severity: "NOTICE", Code: "01000", Message: "widgets are deprecated"}),
		pgmock.SendMessage(&pgproto.DataRow{Values: [][]byte{{0, 0, 0, 0, 0, 0, 0, 2}}}),
		pgmock.SendMessage(&pgproto.NotificationResponse{PID: 97, Channel: "widgets", Payload: "changed"}),
		pgmock.SendMessage(&pgproto.CommandComplete{CommandTag: "SELECT 2"}),
		pgmock.SendMessage(&pgproto.CloseComplete{}),
		pgmock.SendMessage(&pgproto.ReadyForQuery{TxStatus: 'I'}),
		pgmock.WaitForClose(),
	)

	connString, serverErrChan := startMockServer(t, script)

	config, err := minipg.ParseConfig(connString)
	require.NoError(t, err)
	config.Logger = testingadapter.NewLogger(t)
	config.LogLevel = minipg.LogLevelInfo

	conn, err := minipg.ConnectConfig(config)
	require.NoError(t, err)

	result, err := conn.Query("select n from widgets")
	require.NoError(t, err)

	require.Len(t, result.Rows, 2)
	assert.Equal(t, minipg.Row{pgval.Int64(1)}, result.Rows[0])
	assert.Equal(t, minipg.Row{pgval.Int64(2)}, result.Rows[1])
	assert.Equal(t, minipg.CommandTag("SELECT 2"), result.CommandTag)

	require.NoError(t, conn.Close())
	assert.NoError(t, <-serverErrChan)
}

// signalStep closes its channel when the script reaches it.
type signalStep chan struct{}

func (s signalStep) Step(*pgproto.Backend) error {
	close(s)
	return nil
}

// gateStep blocks the mock server's script until the channel is closed.
type gateStep chan struct{}

func (g gateStep) Step(*pgproto.Backend) error {
	<-g
	return nil
}

func TestConnBusy(t *testing.T) {
	inFlight := make(signalStep)
	gate := make(gateStep)

	script := &pgmock.Script{Steps: pgmock.AcceptUnauthenticatedConnRequestSteps()}
	script.Steps = append(script.Steps,
		pgmock.ExpectMessage(&pgproto.Parse{Name: "s0", Query: "select pg_sleep(10)"}),
		pgmock.ExpectMessage(&pgproto.Describe{ObjectType: 'S', Name: "s0"}),
		pgmock.ExpectMessage(&pgproto.Sync{}),
		inFlight,
		gate,
		pgmock.SendMessage(&pgproto.ParseComplete{}),
		pgmock.SendMessage(&pgproto.ParameterDescription{}),
		pgmock.SendMessage(&pgproto.NoData{}),
		pgmock.SendMessage(&pgproto.ReadyForQuery{TxStatus: 'I'}),
		pgmock.ExpectMessage(&pgproto.Bind{PreparedStatement: "s0", ResultFormatCodes: []int16{}}),
		pgmock.ExpectMessage(&pgproto.Execute{}),
		pgmock.ExpectMessage(&pgproto.Close{ObjectType: 'S', Name: "s0"}),
		pgmock.ExpectMessage(&pgproto.Sync{}),
		pgmock.SendMessage(&pgproto.BindComplete{}),
		pgmock.SendMessage(&pgproto.CommandComplete{CommandTag: "SELECT 1"}),
		pgmock.SendMessage(&pgproto.CloseComplete{}),
		pgmock.SendMessage(&pgproto.ReadyForQuery{TxStatus: 'I'}),
		pgmock.WaitForClose(),
	)

	connString, serverErrChan := startMockServer(t, script)

	conn, err := minipg.Connect(connString)
	require.NoError(t, err)

	queryErrChan := make(chan error, 1)
	go func() {
		_, err := conn.Query("select pg_sleep(10)")
		queryErrChan <- err
	}()

	// Wait until the server has the query in hand. The connection stays busy
	// until the gated server answers.
	<-inFlight

	_, err = conn.Query("select 2")
	assert.True(t, errors.Is(err, minipg.ErrConnBusy))

	close(gate)
	require.NoError(t, <-queryErrChan)

	require.NoError(t, conn.Close())
	assert.NoError(t, <-serverErrChan)
}

func TestConnCloseAbortsInFlightQuery(t *testing.T) {
	inFlight := make(signalStep)
	gate := make(gateStep)

	script := &pgmock.Script{Steps: pgmock.AcceptUnauthenticatedConnRequestSteps()}
	script.Steps = append(script.Steps,
		pgmock.ExpectMessage(&pgproto.Parse{Name: "s0", Query: "select pg_sleep(10)"}),
		pgmock.ExpectMessage(&pgproto.Describe{ObjectType: 'S', Name: "s0"}),
		pgmock.ExpectMessage(&pgproto.Sync{}),
		inFlight,
		// Never answer. The client aborts by closing the transport.
		gate,
	)

	connString, serverErrChan := startMockServer(t, script)

	conn, err := minipg.Connect(connString)
	require.NoError(t, err)

	queryErrChan := make(chan error, 1)
	go func() {
		_, err := conn.Query("select pg_sleep(10)")
		queryErrChan <- err
	}()

	<-inFlight
	require.NoError(t, conn.Close())

	assert.ErrorIs(t, <-queryErrChan, minipg.ErrConnClosed)
	assert.True(t, conn.IsClosed())

	close(gate)
	assert.NoError(t, <-serverErrChan)
}
