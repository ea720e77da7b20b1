// Package pgmock provides the ability to mock a PostgreSQL server.
package pgmock

import (
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/minipg/minipg/pgproto"
)

type Step interface {
	Step(*pgproto.Backend) error
}

type Script struct {
	Steps []Step
}

func (s *Script) Run(backend *pgproto.Backend) error {
	for _, step := range s.Steps {
		err := step.Step(backend)
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Script) Step(backend *pgproto.Backend) error {
	return s.Run(backend)
}

type expectMessageStep struct {
	want pgproto.FrontendMessage
	any  bool
}

func (e *expectMessageStep) Step(backend *pgproto.Backend) error {
	msg, err := backend.Receive()
	if err != nil {
		return err
	}

	if e.any && reflect.TypeOf(msg) == reflect.TypeOf(e.want) {
		return nil
	}

	if !reflect.DeepEqual(msg, e.want) {
		return fmt.Errorf("msg => %#v, e.want => %#v", msg, e.want)
	}

	return nil
}

type expectStartupMessageStep struct {
	want *pgproto.StartupMessage
	any  bool
}

func (e *expectStartupMessageStep) Step(backend *pgproto.Backend) error {
	msg, err := backend.ReceiveStartupMessage()
	if err != nil {
		return err
	}

	if e.any {
		return nil
	}

	if !reflect.DeepEqual(msg, e.want) {
		return fmt.Errorf("msg => %#v, e.want => %#v", msg, e.want)
	}

	return nil
}

func ExpectMessage(want pgproto.FrontendMessage) Step {
	return expectMessage(want, false)
}

func ExpectAnyMessage(want pgproto.FrontendMessage) Step {
	return expectMessage(want, true)
}

func expectMessage(want pgproto.FrontendMessage, any bool) Step {
	if want, ok := want.(*pgproto.StartupMessage); ok {
		return &expectStartupMessageStep{want: want, any: any}
	}

	return &expectMessageStep{want: want, any: any}
}

type sendMessageStep struct {
	msg pgproto.BackendMessage
}

func (e *sendMessageStep) Step(backend *pgproto.Backend) error {
	return backend.Send(e.msg)
}

func SendMessage(msg pgproto.BackendMessage) Step {
	return &sendMessageStep{msg: msg}
}

type waitForCloseMessageStep struct{}

func (e *waitForCloseMessageStep) Step(backend *pgproto.Backend) error {
	for {
		msg, err := backend.Receive()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		} else if err != nil {
			return err
		}

		if _, ok := msg.(*pgproto.Terminate); ok {
			return nil
		}
	}
}

func WaitForClose() Step {
	return &waitForCloseMessageStep{}
}

// AcceptUnauthenticatedConnRequestSteps returns the steps of a handshake that
// succeeds without a password.
func AcceptUnauthenticatedConnRequestSteps() []Step {
	return []Step{
		ExpectAnyMessage(&pgproto.StartupMessage{ProtocolVersion: pgproto.ProtocolVersionNumber, Parameters: map[string]string{}}),
		SendMessage(&pgproto.AuthenticationOk{}),
		SendMessage(&pgproto.BackendKeyData{ProcessID: 0, SecretKey: 0}),
		SendMessage(&pgproto.ReadyForQuery{TxStatus: 'I'}),
	}
}

// AcceptCleartextPasswordConnRequestSteps returns the steps of a handshake
// that demands the given password in cleartext.
func AcceptCleartextPasswordConnRequestSteps(password string) []Step {
	return []Step{
		ExpectAnyMessage(&pgproto.StartupMessage{ProtocolVersion: pgproto.ProtocolVersionNumber, Parameters: map[string]string{}}),
		SendMessage(&pgproto.AuthenticationCleartextPassword{}),
		ExpectMessage(&pgproto.PasswordMessage{Password: password}),
		SendMessage(&pgproto.AuthenticationOk{}),
		SendMessage(&pgproto.BackendKeyData{ProcessID: 0, SecretKey: 0}),
		SendMessage(&pgproto.ReadyForQuery{TxStatus: 'I'}),
	}
}

// AcceptMD5PasswordConnRequestSteps returns the steps of a handshake that
// demands an MD5 digested password using the given salt. hashedPassword must
// be the "md5" prefixed digest the client is expected to send.
func AcceptMD5PasswordConnRequestSteps(salt [4]byte, hashedPassword string) []Step {
	return []Step{
		ExpectAnyMessage(&pgproto.StartupMessage{ProtocolVersion: pgproto.ProtocolVersionNumber, Parameters: map[string]string{}}),
		SendMessage(&pgproto.AuthenticationMD5Password{Salt: salt}),
		ExpectMessage(&pgproto.PasswordMessage{Password: hashedPassword}),
		SendMessage(&pgproto.AuthenticationOk{}),
		SendMessage(&pgproto.BackendKeyData{ProcessID: 0, SecretKey: 0}),
		SendMessage(&pgproto.ReadyForQuery{TxStatus: 'I'}),
	}
}
