package pgproto

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jackc/chunkreader/v2"
)

// Backend acts as a server for the PostgreSQL wire protocol version 3. It is
// the counterpart of Frontend and exists so tests can script a backend the
// client talks to.
type Backend struct {
	cr *chunkreader.ChunkReader
	w  io.Writer

	// Frontend message flyweights
	bind            Bind
	close_          Close
	describe        Describe
	execute         Execute
	parse           Parse
	passwordMessage PasswordMessage
	query           Query
	sync            Sync
	terminate       Terminate

	bodyLen    int
	msgType    byte
	partialMsg bool
}

// NewBackend creates a new Backend.
func NewBackend(r io.Reader, w io.Writer) *Backend {
	return &Backend{cr: chunkreader.New(r), w: w}
}

// Send sends a message to the frontend (i.e. the client).
func (b *Backend) Send(msg BackendMessage) error {
	_, err := b.w.Write(msg.Encode(nil))
	return err
}

// ReceiveStartupMessage receives the initial connection message. This message
// is "special" in that it is unlike all other messages: it has no type byte
// and may be a StartupMessage or an SSLRequest.
func (b *Backend) ReceiveStartupMessage() (FrontendMessage, error) {
	buf, err := b.cr.Next(4)
	if err != nil {
		return nil, err
	}
	msgSize := int(binary.BigEndian.Uint32(buf) - 4)

	buf, err = b.cr.Next(msgSize)
	if err != nil {
		return nil, translateEOFtoErrUnexpectedEOF(err)
	}

	code := binary.BigEndian.Uint32(buf)

	switch code {
	case ProtocolVersionNumber:
		startupMessage := &StartupMessage{}
		if err := startupMessage.Decode(buf); err != nil {
			return nil, err
		}
		return startupMessage, nil
	case sslRequestNumber:
		sslRequest := &SSLRequest{}
		if err := sslRequest.Decode(buf); err != nil {
			return nil, err
		}
		return sslRequest, nil
	default:
		return nil, fmt.Errorf("unknown startup message code: %d", code)
	}
}

// Receive receives a message from the frontend. The returned message is only
// valid until the next call to Receive.
func (b *Backend) Receive() (FrontendMessage, error) {
	if !b.partialMsg {
		header, err := b.cr.Next(5)
		if err != nil {
			return nil, translateEOFtoErrUnexpectedEOF(err)
		}

		b.msgType = header[0]

		msgLength := int(binary.BigEndian.Uint32(header[1:]))
		if msgLength < 4 {
			return nil, fmt.Errorf("invalid message length: %d", msgLength)
		}

		b.bodyLen = msgLength - 4
		b.partialMsg = true
	}

	var msg FrontendMessage
	switch b.msgType {
	case 'B':
		msg = &b.bind
	case 'C':
		msg = &b.close_
	case 'D':
		msg = &b.describe
	case 'E':
		msg = &b.execute
	case 'P':
		msg = &b.parse
	case 'p':
		msg = &b.passwordMessage
	case 'Q':
		msg = &b.query
	case 'S':
		msg = &b.sync
	case 'X':
		msg = &b.terminate
	default:
		return nil, fmt.Errorf("unknown message type: %c", b.msgType)
	}

	msgBody, err := b.cr.Next(b.bodyLen)
	if err != nil {
		return nil, translateEOFtoErrUnexpectedEOF(err)
	}

	b.partialMsg = false

	err = msg.Decode(msgBody)
	return msg, err
}
