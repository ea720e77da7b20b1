package pgproto

import (
	"encoding/binary"
	"errors"

	"github.com/jackc/pgio"
)

const sslRequestNumber = 80877103

// SSLRequest asks the server to upgrade the connection to TLS. The server
// answers with a single byte: 'S' to proceed or 'N' to refuse.
type SSLRequest struct{}

func (*SSLRequest) Frontend() {}

func (dst *SSLRequest) Decode(src []byte) error {
	if len(src) < 4 {
		return errors.New("ssl request too short")
	}

	requestCode := binary.BigEndian.Uint32(src)

	if requestCode != sslRequestNumber {
		return errors.New("bad ssl request code")
	}

	return nil
}

func (src *SSLRequest) Encode(dst []byte) []byte {
	dst = pgio.AppendInt32(dst, 8)
	dst = pgio.AppendInt32(dst, sslRequestNumber)
	return dst
}
