package minipg

import (
	"github.com/minipg/minipg/pgval"
)

// Client is a convenience handle around a single Conn. A zero Client is ready
// to use; operations before Connect fail with ErrNotConnected.
//
// Like Conn, a Client is not safe for concurrent use.
type Client struct {
	conn *Conn
}

// Connect establishes the client's connection using connString. See
// ParseConfig for connString formats. Any previous connection is closed
// first.
func (c *Client) Connect(connString string) error {
	config, err := ParseConfig(connString)
	if err != nil {
		return err
	}
	return c.ConnectConfig(config)
}

// ConnectConfig establishes the client's connection using config. config must
// have been created by ParseConfig.
func (c *Client) ConnectConfig(config *Config) error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	conn, err := ConnectConfig(config)
	if err != nil {
		return err
	}

	c.conn = conn
	return nil
}

// Query executes sql with args and buffers the entire result. See Conn.Query.
func (c *Client) Query(sql string, args ...pgval.Value) (*Result, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn.Query(sql, args...)
}

// Exec executes sql with args and returns the command tag. See Conn.Exec.
func (c *Client) Exec(sql string, args ...pgval.Value) (CommandTag, error) {
	if c.conn == nil {
		return "", ErrNotConnected
	}
	return c.conn.Exec(sql, args...)
}

// BatchExec executes a semicolon-separated batch of statements. See
// Conn.BatchExec.
func (c *Client) BatchExec(sql string) ([]*Result, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn.BatchExec(sql)
}

// Conn returns the underlying connection, or nil if the client is not
// connected. It allows access to connection level details such as
// ParameterStatus and TypeMap.
func (c *Client) Conn() *Conn {
	return c.conn
}

// Close closes the underlying connection, if any.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}
