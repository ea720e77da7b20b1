package minipg

import (
	"fmt"
	"time"

	"github.com/minipg/minipg/pgproto"
	"github.com/minipg/minipg/pgval"
)

// Query executes sql with args via the extended query protocol and buffers
// the entire result. Placeholders $1, $2, ... refer to args positionally.
//
// The statement is prepared, described, executed, and closed in two server
// round trips. Parameters are encoded against the types the server declares
// for the statement, so "select $1::int8" accepts pgval.Int64 without a cast
// on the client side.
func (c *Conn) Query(sql string, args ...pgval.Value) (*Result, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.unlock()

	startTime := time.Now()

	result, err := c.query(sql, args)
	if err != nil {
		if c.shouldLog(LogLevelError) {
			c.log(LogLevelError, "Query", map[string]interface{}{"sql": sql, "args": logQueryArgs(args), "err": err})
		}
		return result, err
	}

	if c.shouldLog(LogLevelInfo) {
		c.log(LogLevelInfo, "Query", map[string]interface{}{"sql": sql, "args": logQueryArgs(args), "time": time.Since(startTime), "rowCount": len(result.Rows)})
	}

	return result, nil
}

// Exec executes sql with args via the extended query protocol and returns the
// command tag. Any rows produced by the statement are discarded.
func (c *Conn) Exec(sql string, args ...pgval.Value) (CommandTag, error) {
	result, err := c.Query(sql, args...)
	if err != nil {
		return "", err
	}
	return result.CommandTag, nil
}

func (c *Conn) query(sql string, args []pgval.Value) (*Result, error) {
	// Validate the placeholder count before writing anything to the server.
	if n := maxPlaceholder(sql); n != len(args) {
		return nil, &ParameterError{Err: fmt.Errorf("expected %d arguments, got %d", n, len(args))}
	}

	stmtName := c.nextStmtName()

	paramOIDs, fields, err := c.prepare(stmtName, sql)
	if err != nil {
		return nil, err
	}

	paramValues, paramFormats, err := c.encodeParams(args, paramOIDs)
	if err != nil {
		// The statement exists server-side. Release it so the failed call
		// leaves nothing behind.
		if closeErr := c.closeStatement(stmtName); closeErr != nil {
			return nil, closeErr
		}
		return nil, err
	}

	resultFormats := make([]int16, len(fields))
	for i := range fields {
		resultFormats[i] = c.valueMap.PreferredFormat(fields[i].DataTypeOID)
		fields[i].Format = resultFormats[i]
	}

	c.frontend.Send(&pgproto.Bind{
		PreparedStatement:    stmtName,
		ParameterFormatCodes: paramFormats,
		Parameters:           paramValues,
		ResultFormatCodes:    resultFormats,
	})
	c.frontend.Send(&pgproto.Execute{})
	c.frontend.Send(&pgproto.Close{ObjectType: 'S', Name: stmtName})
	c.frontend.Send(&pgproto.Sync{})
	if err := c.flush(); err != nil {
		return nil, err
	}

	result := &Result{FieldDescriptions: fields}
	var queryErr error

	for {
		msg, err := c.receiveMessage()
		if err != nil {
			return nil, err
		}

		switch msg := msg.(type) {
		case *pgproto.BindComplete, *pgproto.CloseComplete:
		case *pgproto.DataRow:
			if queryErr == nil {
				row, err := c.decodeRow(fields, msg.Values)
				if err != nil {
					queryErr = err
					break
				}
				result.Rows = append(result.Rows, row)
			}
		case *pgproto.CommandComplete:
			result.CommandTag = CommandTag(msg.CommandTag)
		case *pgproto.EmptyQueryResponse:
		case *pgproto.ErrorResponse:
			if queryErr == nil {
				queryErr = errorResponseToPgError(msg)
			}
		case *pgproto.ReadyForQuery:
			if queryErr != nil {
				return nil, queryErr
			}
			return result, nil
		}
	}
}

// prepare parses and describes a named statement in a single round trip,
// returning the parameter OIDs and result schema the server declared for it.
func (c *Conn) prepare(stmtName, sql string) ([]uint32, []pgproto.FieldDescription, error) {
	c.frontend.Send(&pgproto.Parse{Name: stmtName, Query: sql})
	c.frontend.Send(&pgproto.Describe{ObjectType: 'S', Name: stmtName})
	c.frontend.Send(&pgproto.Sync{})
	if err := c.flush(); err != nil {
		return nil, nil, err
	}

	var paramOIDs []uint32
	var fields []pgproto.FieldDescription
	var queryErr error

	for {
		msg, err := c.receiveMessage()
		if err != nil {
			return nil, nil, err
		}

		switch msg := msg.(type) {
		case *pgproto.ParseComplete:
		case *pgproto.ParameterDescription:
			paramOIDs = make([]uint32, len(msg.ParameterOIDs))
			copy(paramOIDs, msg.ParameterOIDs)
		case *pgproto.RowDescription:
			fields = make([]pgproto.FieldDescription, len(msg.Fields))
			copy(fields, msg.Fields)
		case *pgproto.NoData:
		case *pgproto.ErrorResponse:
			if queryErr == nil {
				queryErr = errorResponseToPgError(msg)
			}
		case *pgproto.ReadyForQuery:
			if queryErr != nil {
				return nil, nil, queryErr
			}
			return paramOIDs, fields, nil
		}
	}
}

func (c *Conn) encodeParams(args []pgval.Value, paramOIDs []uint32) ([][]byte, []int16, error) {
	if len(args) != len(paramOIDs) {
		return nil, nil, &ParameterError{Err: fmt.Errorf("server expects %d parameters, got %d", len(paramOIDs), len(args))}
	}

	paramValues := make([][]byte, len(args))
	paramFormats := make([]int16, len(args))

	for i, arg := range args {
		buf, format, err := c.valueMap.EncodeParam(arg, paramOIDs[i], nil)
		if err != nil {
			return nil, nil, &ParameterError{Index: i + 1, Err: err}
		}
		paramValues[i] = buf
		paramFormats[i] = format
	}

	return paramValues, paramFormats, nil
}

// closeStatement releases a named prepared statement in its own round trip.
// It is only used to clean up after a client-side failure between Describe
// and Bind.
func (c *Conn) closeStatement(stmtName string) error {
	c.frontend.Send(&pgproto.Close{ObjectType: 'S', Name: stmtName})
	c.frontend.Send(&pgproto.Sync{})
	if err := c.flush(); err != nil {
		return err
	}

	for {
		msg, err := c.receiveMessage()
		if err != nil {
			return err
		}

		switch msg := msg.(type) {
		case *pgproto.ErrorResponse:
			return errorResponseToPgError(msg)
		case *pgproto.ReadyForQuery:
			return nil
		}
	}
}

func (c *Conn) decodeRow(fields []pgproto.FieldDescription, values [][]byte) (Row, error) {
	row := make(Row, len(values))
	for i, src := range values {
		v, err := c.valueMap.DecodeValue(src, fields[i].DataTypeOID, fields[i].Format)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}
