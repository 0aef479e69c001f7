package main

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testClient is a line oriented client for driving a server in tests.
type testClient struct {
	t    *testing.T
	conn net.Conn
	rw   *bufio.ReadWriter
}

func dialTestClient(t *testing.T, addr string) *testClient {
	t.Helper()

	dialer := &net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.Dial("tcp", addr)
	require.NoError(t, err, "error dialing")

	t.Cleanup(func() { _ = conn.Close() })

	return &testClient{
		t:    t,
		conn: conn,
		rw:   bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn)),
	}
}

// send writes one line to the server.
func (c *testClient) send(line string) {
	c.t.Helper()

	c.sendRaw([]byte(line + "\n"))
}

// sendRaw writes bytes as-is, for exercising framing.
func (c *testClient) sendRaw(b []byte) {
	c.t.Helper()

	err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	require.NoError(c.t, err, "error setting write deadline")

	_, err = c.rw.Write(b)
	require.NoError(c.t, err, "error writing")

	require.NoError(c.t, c.rw.Flush(), "error flushing")
}

// expect reads the next line and requires it to match exactly.
func (c *testClient) expect(want string) {
	c.t.Helper()

	err := c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(c.t, err, "error setting read deadline")

	line, err := c.rw.ReadString('\n')
	require.NoError(c.t, err, "error reading, wanted %q", want)
	require.Equal(c.t, want, strings.TrimRight(line, "\r\n"))
}

// expectNothing requires that no line arrives for a short window.
func (c *testClient) expectNothing() {
	c.t.Helper()

	err := c.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	require.NoError(c.t, err, "error setting read deadline")

	line, err := c.rw.ReadString('\n')
	if err == nil {
		c.t.Fatalf("expected no line, read %q", line)
	}

	nerr, ok := err.(net.Error)
	require.True(c.t, ok, "expected timeout, got %s", err)
	require.True(c.t, nerr.Timeout(), "expected timeout, got %s", err)
}

// expectEOF requires the server to close the connection.
func (c *testClient) expectEOF() {
	c.t.Helper()

	err := c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(c.t, err, "error setting read deadline")

	line, err := c.rw.ReadString('\n')
	require.Error(c.t, err, "expected closed connection, read %q", line)

	if nerr, ok := err.(net.Error); ok {
		require.False(c.t, nerr.Timeout(), "expected close, got timeout")
	}
}
