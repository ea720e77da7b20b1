package pgproto

import (
	"github.com/jackc/pgio"
)

// AuthenticationOk informs the frontend that the authentication exchange is
// successfully completed.
type AuthenticationOk struct{}

func (*AuthenticationOk) Backend() {}

func (dst *AuthenticationOk) Decode(src []byte) error {
	if len(src) != 4 {
		return &invalidMessageLenErr{messageType: "AuthenticationOk", expectedLen: 4, actualLen: len(src)}
	}

	return nil
}

func (src *AuthenticationOk) Encode(dst []byte) []byte {
	dst = append(dst, 'R')
	dst = pgio.AppendInt32(dst, 8)
	dst = pgio.AppendUint32(dst, AuthTypeOk)
	return dst
}

// AuthenticationCleartextPassword requests the frontend send the password in
// clear-text form.
type AuthenticationCleartextPassword struct{}

func (*AuthenticationCleartextPassword) Backend() {}

func (dst *AuthenticationCleartextPassword) Decode(src []byte) error {
	if len(src) != 4 {
		return &invalidMessageLenErr{messageType: "AuthenticationCleartextPassword", expectedLen: 4, actualLen: len(src)}
	}

	return nil
}

func (src *AuthenticationCleartextPassword) Encode(dst []byte) []byte {
	dst = append(dst, 'R')
	dst = pgio.AppendInt32(dst, 8)
	dst = pgio.AppendUint32(dst, AuthTypeCleartextPassword)
	return dst
}

// AuthenticationMD5Password requests the frontend send the password hashed
// with MD5 and the provided salt.
type AuthenticationMD5Password struct {
	Salt [4]byte
}

func (*AuthenticationMD5Password) Backend() {}

func (dst *AuthenticationMD5Password) Decode(src []byte) error {
	if len(src) != 8 {
		return &invalidMessageLenErr{messageType: "AuthenticationMD5Password", expectedLen: 8, actualLen: len(src)}
	}

	copy(dst.Salt[:], src[4:8])

	return nil
}

func (src *AuthenticationMD5Password) Encode(dst []byte) []byte {
	dst = append(dst, 'R')
	dst = pgio.AppendInt32(dst, 12)
	dst = pgio.AppendUint32(dst, AuthTypeMD5Password)
	dst = append(dst, src.Salt[:]...)
	return dst
}
