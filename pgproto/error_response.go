package pgproto

import (
	"strconv"

	"github.com/jackc/pgio"
)

// ErrorResponse carries the error fields reported by the server. See
// https://www.postgresql.org/docs/current/protocol-error-fields.html for
// detailed field descriptions.
type ErrorResponse struct {
	Severity            string
	SeverityUnlocalized string
	Code                string
	Message             string
	Detail              string
	Hint                string
	Position            int32
	InternalPosition    int32
	InternalQuery       string
	Where               string
	SchemaName          string
	TableName           string
	ColumnName          string
	DataTypeName        string
	ConstraintName      string
	File                string
	Line                int32
	Routine             string

	UnknownFields map[byte]string
}

func (*ErrorResponse) Backend() {}

func (dst *ErrorResponse) Decode(src []byte) error {
	*dst = ErrorResponse{}
	return dst.unmarshalBinary(src)
}

func (dst *ErrorResponse) unmarshalBinary(src []byte) error {
	buf := src

	for len(buf) > 0 {
		fieldType := buf[0]
		buf = buf[1:]
		if fieldType == 0 {
			break
		}

		end := 0
		for end < len(buf) && buf[end] != 0 {
			end++
		}
		if end == len(buf) {
			return &invalidMessageFormatErr{messageType: "ErrorResponse"}
		}
		value := string(buf[:end])
		buf = buf[end+1:]

		switch fieldType {
		case 'S':
			dst.Severity = value
		case 'V':
			dst.SeverityUnlocalized = value
		case 'C':
			dst.Code = value
		case 'M':
			dst.Message = value
		case 'D':
			dst.Detail = value
		case 'H':
			dst.Hint = value
		case 'P':
			n, _ := strconv.ParseInt(value, 10, 32)
			dst.Position = int32(n)
		case 'p':
			n, _ := strconv.ParseInt(value, 10, 32)
			dst.InternalPosition = int32(n)
		case 'q':
			dst.InternalQuery = value
		case 'W':
			dst.Where = value
		case 's':
			dst.SchemaName = value
		case 't':
			dst.TableName = value
		case 'c':
			dst.ColumnName = value
		case 'd':
			dst.DataTypeName = value
		case 'n':
			dst.ConstraintName = value
		case 'F':
			dst.File = value
		case 'L':
			n, _ := strconv.ParseInt(value, 10, 32)
			dst.Line = int32(n)
		case 'R':
			dst.Routine = value
		default:
			if dst.UnknownFields == nil {
				dst.UnknownFields = make(map[byte]string)
			}
			dst.UnknownFields[fieldType] = value
		}
	}

	return nil
}

func (src *ErrorResponse) Encode(dst []byte) []byte {
	return src.appendFields(dst, 'E')
}

func (src *ErrorResponse) appendFields(dst []byte, typeByte byte) []byte {
	dst = append(dst, typeByte)
	sp := len(dst)
	dst = pgio.AppendInt32(dst, -1)

	appendField := func(fieldType byte, value string) {
		if value != "" {
			dst = append(dst, fieldType)
			dst = append(dst, value...)
			dst = append(dst, 0)
		}
	}

	appendField('S', src.Severity)
	appendField('V', src.SeverityUnlocalized)
	appendField('C', src.Code)
	appendField('M', src.Message)
	appendField('D', src.Detail)
	appendField('H', src.Hint)
	if src.Position != 0 {
		appendField('P', strconv.FormatInt(int64(src.Position), 10))
	}
	if src.InternalPosition != 0 {
		appendField('p', strconv.FormatInt(int64(src.InternalPosition), 10))
	}
	appendField('q', src.InternalQuery)
	appendField('W', src.Where)
	appendField('s', src.SchemaName)
	appendField('t', src.TableName)
	appendField('c', src.ColumnName)
	appendField('d', src.DataTypeName)
	appendField('n', src.ConstraintName)
	appendField('F', src.File)
	if src.Line != 0 {
		appendField('L', strconv.FormatInt(int64(src.Line), 10))
	}
	appendField('R', src.Routine)

	for fieldType, value := range src.UnknownFields {
		appendField(fieldType, value)
	}

	dst = append(dst, 0)

	pgio.SetInt32(dst[sp:], int32(len(dst[sp:])))

	return dst
}
