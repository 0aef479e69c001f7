package main

import (
	"bufio"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// maxReadSize is the most octets a single read pulls off the socket. Lines
// longer than this accumulate across reads.
const maxReadSize = 1024

// Conn is a line oriented connection to a client.
type Conn struct {
	conn      net.Conn
	rw        *bufio.ReadWriter
	writeWait time.Duration
}

// NewConn initializes a Conn struct.
func NewConn(conn net.Conn, writeWait time.Duration) Conn {
	return Conn{
		conn: conn,
		rw: bufio.NewReadWriter(bufio.NewReaderSize(conn, maxReadSize),
			bufio.NewWriter(conn)),
		writeWait: writeWait,
	}
}

// Close closes the underlying connection.
func (c Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the remote network address.
func (c Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// ReadLine reads one newline terminated line from the connection. It blocks
// until a full line arrives. There is no read deadline. The trailing newline
// and any carriage return before it are stripped. Invalid UTF-8 is replaced
// rather than rejected.
func (c Conn) ReadLine() (string, error) {
	line, err := c.rw.ReadString('\n')
	if err != nil {
		// There may be a partial line read before the error. We only ever
		// deliver complete lines, so it is dropped.
		return "", errors.Wrap(err, "error reading")
	}

	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	if !utf8.ValidString(line) {
		line = strings.ToValidUTF8(line, string(utf8.RuneError))
	}

	return line, nil
}

// WriteLine writes a message to the connection with the newline terminator
// appended. No delivered line may contain a newline, so a message holding
// embedded newlines goes out as one line per segment.
func (c Conn) WriteLine(s string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return errors.Wrap(err, "error setting write deadline")
	}

	for _, segment := range strings.Split(s, "\n") {
		sz, err := c.rw.WriteString(segment + "\n")
		if err != nil {
			return errors.Wrap(err, "error writing")
		}

		if sz != len(segment)+1 {
			return errors.New("short write")
		}
	}

	if err := c.rw.Flush(); err != nil {
		return errors.Wrap(err, "flush error")
	}

	return nil
}
