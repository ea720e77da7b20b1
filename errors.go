package minipg

import (
	"errors"
	"fmt"

	"github.com/minipg/minipg/pgproto"
)

// ErrConnBusy occurs when an operation is attempted while another operation
// is in flight on the same *Conn. Calls are rejected, never queued.
var ErrConnBusy = errors.New("conn busy")

// ErrConnClosed occurs when an operation is attempted on a closed or failed
// connection.
var ErrConnClosed = errors.New("conn closed")

// ErrNotConnected occurs when a Client operation is attempted before Connect.
var ErrNotConnected = errors.New("not connected")

// ErrTLSRefused occurs when the connection attempt requires TLS and the
// PostgreSQL server refuses to use TLS.
var ErrTLSRefused = errors.New("server refused TLS connection")

// PgError represents an error reported by the PostgreSQL server. See
// https://www.postgresql.org/docs/current/protocol-error-fields.html for
// detailed field description.
type PgError struct {
	Severity         string
	Code             string
	Message          string
	Detail           string
	Hint             string
	Position         int32
	InternalPosition int32
	InternalQuery    string
	Where            string
	SchemaName       string
	TableName        string
	ColumnName       string
	DataTypeName     string
	ConstraintName   string
	File             string
	Line             int32
	Routine          string
}

func (pe *PgError) Error() string {
	return pe.Severity + ": " + pe.Message + " (SQLSTATE " + pe.Code + ")"
}

// SQLState returns the SQLSTATE error code. It can be used to programmatically
// distinguish error conditions.
func (pe *PgError) SQLState() string {
	return pe.Code
}

func errorResponseToPgError(msg *pgproto.ErrorResponse) *PgError {
	return &PgError{
		Severity:         msg.Severity,
		Code:             msg.Code,
		Message:          msg.Message,
		Detail:           msg.Detail,
		Hint:             msg.Hint,
		Position:         msg.Position,
		InternalPosition: msg.InternalPosition,
		InternalQuery:    msg.InternalQuery,
		Where:            msg.Where,
		SchemaName:       msg.SchemaName,
		TableName:        msg.TableName,
		ColumnName:       msg.ColumnName,
		DataTypeName:     msg.DataTypeName,
		ConstraintName:   msg.ConstraintName,
		File:             msg.File,
		Line:             msg.Line,
		Routine:          msg.Routine,
	}
}

// ConnectError is the error returned when it is not possible to establish a
// connection.
type ConnectError struct {
	Config *Config
	msg    string
	err    error
}

func (e *ConnectError) Error() string {
	s := fmt.Sprintf("failed to connect to `host=%s user=%s database=%s`: %s", e.Config.Host, e.Config.User, e.Config.Database, e.msg)
	if e.err != nil {
		s += " (" + e.err.Error() + ")"
	}
	return s
}

func (e *ConnectError) Unwrap() error {
	return e.err
}

// ParseConfigError is the error returned when a connection string cannot be
// parsed.
type ParseConfigError struct {
	ConnString string
	msg        string
	err        error
}

func (e *ParseConfigError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("cannot parse `%s`: %s", redactPassword(e.ConnString), e.msg)
	}
	return fmt.Sprintf("cannot parse `%s`: %s (%s)", redactPassword(e.ConnString), e.msg, e.err.Error())
}

func (e *ParseConfigError) Unwrap() error {
	return e.err
}

// ParameterError occurs when the supplied parameters cannot be used with a
// statement. It is detected client-side before any bytes are written to the
// transport.
type ParameterError struct {
	// Index is the 1-based ordinal of the offending parameter, or 0 when the
	// parameter and placeholder counts disagree.
	Index int
	Err   error
}

func (e *ParameterError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("invalid parameter $%d: %v", e.Index, e.Err)
	}
	return e.Err.Error()
}

func (e *ParameterError) Unwrap() error {
	return e.Err
}

// ProtocolError occurs when the backend sends a malformed or unexpected
// message. The connection is no longer usable after a ProtocolError.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
