package minipg

import (
	"crypto/md5"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"

	"github.com/Masterminds/semver/v3"

	"github.com/minipg/minipg/pgproto"
	"github.com/minipg/minipg/pgval"
)

const (
	connStatusUninitialized = iota
	connStatusConnecting
	connStatusClosed
	connStatusFailed
	connStatusIdle
	connStatusBusy
)

// Conn is a synchronous PostgreSQL connection. A Conn is not safe for
// concurrent use: an operation started while another is in progress fails
// with ErrConnBusy rather than queueing.
type Conn struct {
	netConn  net.Conn
	frontend *pgproto.Frontend
	config   *Config
	valueMap *pgval.Map

	status int32 // accessed with atomics

	pid               uint32
	secretKey         uint32
	parameterStatuses map[string]string
	txStatus          byte
	stmtCounter       uint64
}

// Connect establishes a connection to a PostgreSQL server using connString.
// See ParseConfig for connString formats.
func Connect(connString string) (*Conn, error) {
	config, err := ParseConfig(connString)
	if err != nil {
		return nil, err
	}

	return ConnectConfig(config)
}

// ConnectConfig establishes a connection to a PostgreSQL server using config.
// config must have been created by ParseConfig.
func ConnectConfig(config *Config) (*Conn, error) {
	// Default values are set in ParseConfig. Enforce initial creation by
	// ParseConfig rather than setting defaults from zero values.
	if !config.createdByParseConfig {
		panic("config must be created by ParseConfig")
	}

	// Simple connection strategy: try the primary host/TLS combination, then
	// each fallback in order.
	fallbacks := []*FallbackConfig{
		{Host: config.Host, Port: config.Port, TLSConfig: config.TLSConfig},
	}
	fallbacks = append(fallbacks, config.Fallbacks...)

	var err error
	for _, fc := range fallbacks {
		var conn *Conn
		conn, err = connect(config, fc)
		if err == nil {
			return conn, nil
		}

		var pgErr *PgError
		if errors.As(err, &pgErr) {
			// Server rejected the session. Another network path will not
			// change its mind.
			return nil, err
		}
	}

	return nil, err
}

func connect(config *Config, fallbackConfig *FallbackConfig) (*Conn, error) {
	c := &Conn{
		config:            config,
		valueMap:          pgval.NewMap(),
		status:            connStatusConnecting,
		parameterStatuses: make(map[string]string),
	}

	var err error
	network, address := NetworkAddress(fallbackConfig.Host, fallbackConfig.Port)
	c.netConn, err = config.DialFunc(network, address)
	if err != nil {
		return nil, &ConnectError{Config: config, msg: "dial error", err: err}
	}

	if fallbackConfig.TLSConfig != nil {
		if err := c.startTLS(fallbackConfig.TLSConfig); err != nil {
			c.netConn.Close()
			return nil, &ConnectError{Config: config, msg: "tls error", err: err}
		}
	}

	c.frontend = pgproto.NewFrontend(c.netConn, c.netConn)

	startupMsg := pgproto.StartupMessage{
		ProtocolVersion: pgproto.ProtocolVersionNumber,
		Parameters:      make(map[string]string),
	}
	for k, v := range config.RuntimeParams {
		startupMsg.Parameters[k] = v
	}
	startupMsg.Parameters["user"] = config.User
	if config.Database != "" {
		startupMsg.Parameters["database"] = config.Database
	}

	c.frontend.Send(&startupMsg)
	if err := c.frontend.Flush(); err != nil {
		c.netConn.Close()
		return nil, &ConnectError{Config: config, msg: "failed to write startup message", err: err}
	}

	for {
		msg, err := c.frontend.Receive()
		if err != nil {
			c.netConn.Close()
			var unsupportedErr *pgproto.UnsupportedAuthTypeError
			if errors.As(err, &unsupportedErr) {
				return nil, &ConnectError{Config: config, msg: "unsupported authentication method", err: err}
			}
			return nil, &ConnectError{Config: config, msg: "failed to receive message", err: &ProtocolError{Err: err}}
		}

		switch msg := msg.(type) {
		case *pgproto.AuthenticationOk:
		case *pgproto.AuthenticationCleartextPassword:
			if err := c.sendPassword(config.Password); err != nil {
				c.netConn.Close()
				return nil, &ConnectError{Config: config, msg: "failed to write password message", err: err}
			}
		case *pgproto.AuthenticationMD5Password:
			digestedPassword := "md5" + hexMD5(hexMD5(config.Password+config.User)+string(msg.Salt[:]))
			if err := c.sendPassword(digestedPassword); err != nil {
				c.netConn.Close()
				return nil, &ConnectError{Config: config, msg: "failed to write password message", err: err}
			}
		case *pgproto.BackendKeyData:
			c.pid = msg.ProcessID
			c.secretKey = msg.SecretKey
		case *pgproto.ParameterStatus:
			c.parameterStatuses[msg.Name] = msg.Value
		case *pgproto.NoticeResponse:
			c.logNotice(msg)
		case *pgproto.ReadyForQuery:
			c.txStatus = msg.TxStatus
			atomic.StoreInt32(&c.status, connStatusIdle)

			if c.shouldLog(LogLevelInfo) {
				c.log(LogLevelInfo, "connection established", map[string]interface{}{"pid": c.pid})
			}
			return c, nil
		case *pgproto.ErrorResponse:
			c.netConn.Close()
			return nil, &ConnectError{Config: config, msg: "server error", err: errorResponseToPgError(msg)}
		default:
			c.netConn.Close()
			return nil, &ConnectError{Config: config, msg: "received unexpected message", err: &ProtocolError{Err: fmt.Errorf("unexpected message during startup: %T", msg)}}
		}
	}
}

// startTLS requests a TLS session from the server before the startup message
// is sent. ErrTLSRefused is returned when the server answers that it is
// unwilling to use TLS.
func (c *Conn) startTLS(tlsConfig *tls.Config) error {
	if _, err := c.netConn.Write((&pgproto.SSLRequest{}).Encode(nil)); err != nil {
		return err
	}

	response := make([]byte, 1)
	if _, err := io.ReadFull(c.netConn, response); err != nil {
		return err
	}

	if response[0] != 'S' {
		return ErrTLSRefused
	}

	c.netConn = tls.Client(c.netConn, tlsConfig)

	return nil
}

func (c *Conn) sendPassword(password string) error {
	c.frontend.Send(&pgproto.PasswordMessage{Password: password})
	return c.frontend.Flush()
}

func hexMD5(s string) string {
	hash := md5.Sum([]byte(s))
	return hex.EncodeToString(hash[:])
}

// lock transitions the connection from idle to busy. It fails without
// blocking when the connection is already busy, closed, or was never
// established.
func (c *Conn) lock() error {
	if atomic.CompareAndSwapInt32(&c.status, connStatusIdle, connStatusBusy) {
		return nil
	}

	switch atomic.LoadInt32(&c.status) {
	case connStatusClosed, connStatusFailed:
		return ErrConnClosed
	case connStatusUninitialized, connStatusConnecting:
		return ErrNotConnected
	default:
		return ErrConnBusy
	}
}

func (c *Conn) unlock() {
	atomic.CompareAndSwapInt32(&c.status, connStatusBusy, connStatusIdle)
}

// hardClose terminates the connection without the normal Terminate handshake.
// It is used when the protocol state is no longer trustworthy.
func (c *Conn) hardClose() {
	atomic.StoreInt32(&c.status, connStatusFailed)
	c.netConn.Close()
}

// flush writes all buffered frontend messages. A write error poisons the
// connection.
func (c *Conn) flush() error {
	if err := c.frontend.Flush(); err != nil {
		if atomic.LoadInt32(&c.status) == connStatusClosed {
			return ErrConnClosed
		}
		c.hardClose()
		return err
	}
	return nil
}

// receiveMessage receives a backend message and processes the asynchronous
// messages every caller must handle the same way. A receive error poisons the
// connection.
func (c *Conn) receiveMessage() (pgproto.BackendMessage, error) {
	msg, err := c.frontend.Receive()
	if err != nil {
		// Closing the transport is how a caller aborts an in-flight
		// operation. Report that as a closed connection, not a protocol
		// failure.
		if atomic.LoadInt32(&c.status) == connStatusClosed {
			return nil, ErrConnClosed
		}
		c.hardClose()
		return nil, &ProtocolError{Err: err}
	}

	switch msg := msg.(type) {
	case *pgproto.ReadyForQuery:
		c.txStatus = msg.TxStatus
	case *pgproto.ParameterStatus:
		c.parameterStatuses[msg.Name] = msg.Value
	case *pgproto.NoticeResponse:
		c.logNotice(msg)
	case *pgproto.NotificationResponse:
		// Asynchronous notifications are not supported. Drop them rather than
		// confusing the in-progress operation.
	case *pgproto.ErrorResponse:
		if msg.Severity == "FATAL" {
			c.hardClose()
			return nil, errorResponseToPgError(msg)
		}
	}

	return msg, nil
}

func (c *Conn) logNotice(msg *pgproto.NoticeResponse) {
	if c.shouldLog(LogLevelInfo) {
		c.log(LogLevelInfo, "notice", map[string]interface{}{
			"severity": msg.Severity,
			"code":     msg.Code,
			"message":  msg.Message,
		})
	}
}

func (c *Conn) shouldLog(lvl LogLevel) bool {
	return c.config.Logger != nil && c.config.LogLevel >= lvl
}

func (c *Conn) log(lvl LogLevel, msg string, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	if c.pid != 0 {
		data["pid"] = c.pid
	}

	c.config.Logger.Log(lvl, msg, data)
}

func (c *Conn) nextStmtName() string {
	name := fmt.Sprintf("s%d", c.stmtCounter)
	c.stmtCounter++
	return name
}

// Close notifies the server that the session is ending and closes the
// underlying network connection. It is safe to call Close more than once.
func (c *Conn) Close() error {
	status := atomic.LoadInt32(&c.status)
	if status == connStatusClosed || status == connStatusFailed {
		return nil
	}
	atomic.StoreInt32(&c.status, connStatusClosed)

	c.frontend.Send(&pgproto.Terminate{})
	c.frontend.Flush()

	return c.netConn.Close()
}

// IsClosed reports whether the connection has been closed or has failed.
func (c *Conn) IsClosed() bool {
	status := atomic.LoadInt32(&c.status)
	return status == connStatusClosed || status == connStatusFailed
}

// PID returns the backend process id reported by the server during startup.
func (c *Conn) PID() uint32 {
	return c.pid
}

// SecretKey returns the cancellation key reported by the server during
// startup.
func (c *Conn) SecretKey() uint32 {
	return c.secretKey
}

// TxStatus returns the transaction status from the last ReadyForQuery
// message. Possible values are 'I' (idle), 'T' (in transaction block), and
// 'E' (in failed transaction block).
func (c *Conn) TxStatus() byte {
	return c.txStatus
}

// ParameterStatus returns the most recently reported value of a run-time
// parameter such as server_version or client_encoding.
func (c *Conn) ParameterStatus(key string) string {
	return c.parameterStatuses[key]
}

// TypeMap returns the type map used to encode parameters and decode results.
// Codecs for additional OIDs may be registered on it.
func (c *Conn) TypeMap() *pgval.Map {
	return c.valueMap
}

// ServerVersion returns the server version as reported by the server_version
// parameter.
func (c *Conn) ServerVersion() (*semver.Version, error) {
	s := c.parameterStatuses["server_version"]
	if s == "" {
		return nil, errors.New("server_version not reported")
	}

	// server_version may carry a build suffix, e.g. "14.2 (Debian 14.2-1)".
	if idx := strings.IndexByte(s, ' '); idx >= 0 {
		s = s[:idx]
	}

	return semver.NewVersion(s)
}
