package pgproto

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jackc/chunkreader/v2"
)

// Frontend acts as a client for the PostgreSQL wire protocol version 3.
type Frontend struct {
	cr *chunkreader.ChunkReader
	w  io.Writer

	wbuf []byte

	// Backend message flyweights
	authenticationOk                AuthenticationOk
	authenticationCleartextPassword AuthenticationCleartextPassword
	authenticationMD5Password       AuthenticationMD5Password
	backendKeyData                  BackendKeyData
	bindComplete                    BindComplete
	closeComplete                   CloseComplete
	commandComplete                 CommandComplete
	dataRow                         DataRow
	emptyQueryResponse              EmptyQueryResponse
	errorResponse                   ErrorResponse
	noData                          NoData
	noticeResponse                  NoticeResponse
	notificationResponse            NotificationResponse
	parameterDescription            ParameterDescription
	parameterStatus                 ParameterStatus
	parseComplete                   ParseComplete
	readyForQuery                   ReadyForQuery
	rowDescription                  RowDescription

	bodyLen    int
	msgType    byte
	partialMsg bool
}

// NewFrontend creates a new Frontend. Messages are read from r and written to
// w. r does not need to deliver whole frames at once; Receive resumes an
// incomplete frame on the next call.
func NewFrontend(r io.Reader, w io.Writer) *Frontend {
	return &Frontend{cr: chunkreader.New(r), w: w}
}

// Send adds msg to the send buffer. The message is not written until Flush is
// called.
func (f *Frontend) Send(msg FrontendMessage) {
	f.wbuf = msg.Encode(f.wbuf)
}

// Flush writes any pending messages to the backend (i.e. the server).
func (f *Frontend) Flush() error {
	if len(f.wbuf) == 0 {
		return nil
	}

	_, err := f.w.Write(f.wbuf)

	const maxRetainedLen = 1024
	if len(f.wbuf) > maxRetainedLen {
		f.wbuf = make([]byte, 0, maxRetainedLen)
	} else {
		f.wbuf = f.wbuf[:0]
	}

	if err != nil {
		return err
	}

	return nil
}

func translateEOFtoErrUnexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Receive receives a message from the backend. The returned message is only
// valid until the next call to Receive.
func (f *Frontend) Receive() (BackendMessage, error) {
	if !f.partialMsg {
		header, err := f.cr.Next(5)
		if err != nil {
			return nil, translateEOFtoErrUnexpectedEOF(err)
		}

		f.msgType = header[0]

		msgLength := int(binary.BigEndian.Uint32(header[1:]))
		if msgLength < 4 {
			return nil, fmt.Errorf("invalid message length: %d", msgLength)
		}

		f.bodyLen = msgLength - 4
		f.partialMsg = true
	}

	msgBody, err := f.cr.Next(f.bodyLen)
	if err != nil {
		return nil, translateEOFtoErrUnexpectedEOF(err)
	}

	f.partialMsg = false

	var msg BackendMessage
	switch f.msgType {
	case '1':
		msg = &f.parseComplete
	case '2':
		msg = &f.bindComplete
	case '3':
		msg = &f.closeComplete
	case 'A':
		msg = &f.notificationResponse
	case 'C':
		msg = &f.commandComplete
	case 'D':
		msg = &f.dataRow
	case 'E':
		msg = &f.errorResponse
	case 'I':
		msg = &f.emptyQueryResponse
	case 'K':
		msg = &f.backendKeyData
	case 'n':
		msg = &f.noData
	case 'N':
		msg = &f.noticeResponse
	case 'R':
		var err error
		msg, err = f.findAuthenticationMessageType(msgBody)
		if err != nil {
			return nil, err
		}
	case 'S':
		msg = &f.parameterStatus
	case 't':
		msg = &f.parameterDescription
	case 'T':
		msg = &f.rowDescription
	case 'Z':
		msg = &f.readyForQuery
	default:
		return nil, fmt.Errorf("unknown message type: %c", f.msgType)
	}

	err = msg.Decode(msgBody)
	return msg, err
}

// Authentication request type constants. See src/include/libpq/pqcomm.h for
// all constants.
const (
	AuthTypeOk                = 0
	AuthTypeKerberosV5        = 2
	AuthTypeCleartextPassword = 3
	AuthTypeMD5Password       = 5
	AuthTypeSCMCreds          = 6
	AuthTypeGSS               = 7
	AuthTypeGSSCont           = 8
	AuthTypeSSPI              = 9
	AuthTypeSASL              = 10
	AuthTypeSASLContinue      = 11
	AuthTypeSASLFinal         = 12
)

func (f *Frontend) findAuthenticationMessageType(src []byte) (BackendMessage, error) {
	if len(src) < 4 {
		return nil, &invalidMessageFormatErr{messageType: "authentication message"}
	}
	authType := binary.BigEndian.Uint32(src[:4])

	switch authType {
	case AuthTypeOk:
		return &f.authenticationOk, nil
	case AuthTypeCleartextPassword:
		return &f.authenticationCleartextPassword, nil
	case AuthTypeMD5Password:
		return &f.authenticationMD5Password, nil
	case AuthTypeKerberosV5, AuthTypeSCMCreds, AuthTypeGSS, AuthTypeGSSCont, AuthTypeSSPI,
		AuthTypeSASL, AuthTypeSASLContinue, AuthTypeSASLFinal:
		return nil, &UnsupportedAuthTypeError{AuthType: authType}
	default:
		return nil, fmt.Errorf("unknown authentication type: %d", authType)
	}
}
