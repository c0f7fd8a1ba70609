/*
Package chat contains the core engine of the server: connection sessions,
the broadcast hub, the online-presence registry, and the asynchronous
persistence worker pool.

This file defines the Conn abstraction that lets sessions run unchanged over
the raw TCP transport and over the WebSocket bridge.
*/
package chat

import (
	"bufio"
	"io"
	"net"
	"time"
)

const (
	// maxLineBytes caps the size of one inbound packet line. Oversized
	// lines terminate the connection (transport error, not protocol error).
	maxLineBytes = 64 * 1024

	// writeTimeout bounds every outbound write so a stuck peer cannot hold
	// the write pump forever.
	writeTimeout = 10 * time.Second
)

// Conn is one packet-framed bidirectional stream. ReadPacket is called only
// from the session's read loop and WritePacket only from its write pump, so
// implementations need no internal locking.
type Conn interface {
	// ReadPacket returns the next packet's raw bytes, without framing.
	ReadPacket() ([]byte, error)

	// WritePacket frames and writes one packet.
	WritePacket(data []byte) error

	// Close closes the underlying connection. Safe to call more than once
	// and from any goroutine.
	Close() error

	// RemoteAddr reports the peer address for logging.
	RemoteAddr() net.Addr
}

// tcpConn frames packets as newline-delimited lines over a net.Conn.
type tcpConn struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

// NewTCPConn wraps a net.Conn in the line-delimited Conn framing.
func NewTCPConn(conn net.Conn) Conn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)

	return &tcpConn{conn: conn, scanner: scanner}
}

func (c *tcpConn) ReadPacket() ([]byte, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return c.scanner.Bytes(), nil
}

func (c *tcpConn) WritePacket(data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}

	line := make([]byte, 0, len(data)+1)
	line = append(line, data...)
	line = append(line, '\n')

	_, err := c.conn.Write(line)
	return err
}

func (c *tcpConn) Close() error { return c.conn.Close() }

func (c *tcpConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }
