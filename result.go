package minipg

import (
	"strconv"
	"strings"

	"github.com/minipg/minipg/pgproto"
	"github.com/minipg/minipg/pgval"
)

// Row is one result row, with column values in the order the server sent
// them.
type Row []pgval.Value

// CommandTag is the status text reported by the server for a completed
// command (e.g. "INSERT 0 1", "CREATE TABLE").
type CommandTag string

// RowsAffected returns the number of rows affected. If the CommandTag was not
// for a row affecting command (e.g. "CREATE TABLE") then it returns 0.
func (ct CommandTag) RowsAffected() int64 {
	s := string(ct)
	idx := strings.LastIndex(s, " ")
	if idx == -1 {
		return 0
	}
	n, _ := strconv.ParseInt(s[idx+1:], 10, 64)
	return n
}

// Result is the outcome of a single statement: either a row set with its
// column descriptions, or just a command tag for statements that return no
// rows.
type Result struct {
	FieldDescriptions []pgproto.FieldDescription
	Rows              []Row
	CommandTag        CommandTag
}
