package minipg

import (
	"time"

	"github.com/minipg/minipg/pgproto"
)

// BatchExec executes sql via the simple query protocol. sql may contain
// multiple statements separated by semicolons; one Result is returned per
// executed statement, in order. Parameters are not supported, and all result
// values arrive in text format.
//
// Execution stops at the first failing statement. The Results of the
// statements that completed before the failure are returned alongside the
// error.
func (c *Conn) BatchExec(sql string) ([]*Result, error) {
	if err := c.lock(); err != nil {
		return nil, err
	}
	defer c.unlock()

	startTime := time.Now()

	results, err := c.batchExec(sql)
	if err != nil {
		if c.shouldLog(LogLevelError) {
			c.log(LogLevelError, "BatchExec", map[string]interface{}{"sql": sql, "err": err})
		}
		return results, err
	}

	if c.shouldLog(LogLevelInfo) {
		c.log(LogLevelInfo, "BatchExec", map[string]interface{}{"sql": sql, "time": time.Since(startTime), "statementCount": len(results)})
	}

	return results, nil
}

func (c *Conn) batchExec(sql string) ([]*Result, error) {
	c.frontend.Send(&pgproto.Query{String: sql})
	if err := c.flush(); err != nil {
		return nil, err
	}

	var results []*Result
	var pendingResult *Result
	var queryErr error

	for {
		msg, err := c.receiveMessage()
		if err != nil {
			return results, err
		}

		switch msg := msg.(type) {
		case *pgproto.RowDescription:
			pendingResult = &Result{FieldDescriptions: make([]pgproto.FieldDescription, len(msg.Fields))}
			copy(pendingResult.FieldDescriptions, msg.Fields)
		case *pgproto.DataRow:
			if queryErr != nil || pendingResult == nil {
				break
			}
			row, err := c.decodeRow(pendingResult.FieldDescriptions, msg.Values)
			if err != nil {
				queryErr = err
				break
			}
			pendingResult.Rows = append(pendingResult.Rows, row)
		case *pgproto.CommandComplete:
			if pendingResult == nil {
				pendingResult = &Result{}
			}
			pendingResult.CommandTag = CommandTag(msg.CommandTag)
			if queryErr == nil {
				results = append(results, pendingResult)
			}
			pendingResult = nil
		case *pgproto.EmptyQueryResponse:
			pendingResult = nil
		case *pgproto.ErrorResponse:
			if queryErr == nil {
				queryErr = errorResponseToPgError(msg)
			}
			pendingResult = nil
		case *pgproto.ReadyForQuery:
			return results, queryErr
		}
	}
}
