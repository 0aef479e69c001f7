package main

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// startTestServer runs a server on an ephemeral port and tears it down with
// the test.
func startTestServer(t *testing.T, opts ...func(*Config)) (*Tinbox, string) {
	t.Helper()

	cfg := defaultConfig()
	cfg.ListenHost = "127.0.0.1"
	cfg.ListenPort = "0"
	cfg.WriteWait = 2 * time.Second
	for _, opt := range opts {
		opt(&cfg)
	}

	server := newTinbox(cfg, zerolog.Nop())
	require.NoError(t, server.listen())

	done := make(chan struct{})
	go func() {
		server.serve()
		close(done)
	}()

	t.Cleanup(func() {
		server.shutdown()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Errorf("server did not shut down")
		}
	})

	return server, server.Listener.Addr().String()
}

// connectPair connects two clients and renames them alice and bob, with
// every announcement consumed on both sides.
func connectPair(t *testing.T, addr string) (*testClient, *testClient) {
	t.Helper()

	a := dialTestClient(t, addr)
	a.expect("0 joined chat")

	b := dialTestClient(t, addr)
	a.expect("1 joined chat")
	b.expect("1 joined chat")

	a.send("/nick alice")
	a.expect("0 is now known as alice")
	b.expect("0 is now known as alice")

	b.send("/nick bob")
	a.expect("1 is now known as bob")
	b.expect("1 is now known as bob")

	return a, b
}

func TestSoloChat(t *testing.T) {
	_, addr := startTestServer(t)

	a := dialTestClient(t, addr)
	a.expect("0 joined chat")

	a.send("hello")
	a.expect("0: hello")
}

func TestRenameBroadcast(t *testing.T) {
	_, addr := startTestServer(t)

	a := dialTestClient(t, addr)
	a.expect("0 joined chat")

	b := dialTestClient(t, addr)
	a.expect("1 joined chat")
	b.expect("1 joined chat")

	a.send("/nick alice")
	a.expect("0 is now known as alice")
	b.expect("0 is now known as alice")

	// Taken nick. Only the loser hears about it, on the special form.
	b.send("/nick alice")
	b.expect("/nick 1")
	a.expectNothing()
}

func TestRenameIdempotent(t *testing.T) {
	_, addr := startTestServer(t)

	a := dialTestClient(t, addr)
	a.expect("0 joined chat")

	a.send("/nick alice")
	a.expect("0 is now known as alice")

	a.send("/nick alice")
	a.expectNothing()
}

func TestChannelSplit(t *testing.T) {
	_, addr := startTestServer(t)
	a, b := connectPair(t, addr)

	a.send("/mkch lounge")
	a.expect("Channel lounge created")
	b.expect("Channel lounge created")

	a.send("/join lounge")
	b.expect("alice left default")
	a.expect("alice joined lounge")

	a.send("hi")
	a.expect("alice: hi")
	b.expectNothing()
}

func TestDirectMessage(t *testing.T) {
	_, addr := startTestServer(t)
	a, b := connectPair(t, addr)

	a.send("/msg bob hello there")
	b.expect("*alice* hello there")
	a.expect("-> *bob* hello there")
}

func TestListing(t *testing.T) {
	_, addr := startTestServer(t)
	a, b := connectPair(t, addr)

	c := dialTestClient(t, addr)
	a.expect("2 joined chat")
	b.expect("2 joined chat")
	c.expect("2 joined chat")

	a.send("/mkch lounge")
	a.expect("Channel lounge created")
	b.expect("Channel lounge created")
	c.expect("Channel lounge created")

	a.send("/join lounge")
	b.expect("alice left default")
	c.expect("alice left default")
	a.expect("alice joined lounge")

	a.send("/list")
	a.expect("*** Channel\tUsers")
	a.expect("*** default\t2")
	a.expect("*** lounge\t1")
	b.expectNothing()

	a.send("/names lounge")
	a.expect("lounge: alice")

	a.send("/names")
	a.expect("all users: alice bob 2")
}

func TestKick(t *testing.T) {
	server, addr := startTestServer(t)
	a, b := connectPair(t, addr)

	a.send("/kick bob")
	a.expect("bob has been kicked")
	b.expect("Kicked by alice")
	b.expectEOF()

	a.expect("bob left chat")

	require.Equal(t, 1, server.Registry.clientCount())
	_, exists := server.Registry.clientByNick("bob")
	require.False(t, exists)
	verifyInvariants(t, server.Registry)
}

func TestKickUnknownNickReply(t *testing.T) {
	_, addr := startTestServer(t)
	a, b := connectPair(t, addr)

	a.send("/kick carol")
	a.expect("Can't kick nonexistent user carol")
	b.expectNothing()
}

func TestDisconnectAnnounced(t *testing.T) {
	server, addr := startTestServer(t)
	a, b := connectPair(t, addr)

	require.NoError(t, b.conn.Close())
	a.expect("bob left chat")

	require.Equal(t, 1, server.Registry.clientCount())
	verifyInvariants(t, server.Registry)
}

func TestInvalidCommands(t *testing.T) {
	_, addr := startTestServer(t)

	a := dialTestClient(t, addr)
	a.expect("0 joined chat")

	a.send("/bogus")
	a.expect("invalid command")

	a.send("/")
	a.expect("invalid command")

	a.send("/nick")
	a.expect("invalid command")

	a.send("/nick one two")
	a.expect("invalid command")

	a.send("/msg bob")
	a.expect("invalid command")

	a.send("/mkch")
	a.expect("invalid command")

	a.send("/join")
	a.expect("invalid command")

	a.send("/kick")
	a.expect("invalid command")
}

func TestEmptyLinesIgnored(t *testing.T) {
	_, addr := startTestServer(t)

	a := dialTestClient(t, addr)
	a.expect("0 joined chat")

	a.send("")
	a.send("   ")
	a.expectNothing()
}

func TestMsgUnknownTargetSilent(t *testing.T) {
	_, addr := startTestServer(t)

	a := dialTestClient(t, addr)
	a.expect("0 joined chat")

	a.send("/msg ghost hello")
	a.expectNothing()
}

func TestMkchDuplicate(t *testing.T) {
	_, addr := startTestServer(t)
	a, b := connectPair(t, addr)

	a.send("/mkch lounge")
	a.expect("Channel lounge created")
	b.expect("Channel lounge created")

	b.send("/mkch lounge")
	b.expect("Channel lounge already exists")
	a.expectNothing()
}

func TestJoinMissingChannel(t *testing.T) {
	_, addr := startTestServer(t)

	a := dialTestClient(t, addr)
	a.expect("0 joined chat")

	a.send("/join lounge")
	a.expect("Channel lounge doesn't exist")
}

func TestNamesUnknownChannel(t *testing.T) {
	_, addr := startTestServer(t)

	a := dialTestClient(t, addr)
	a.expect("0 joined chat")

	a.send("/names default nowhere")
	a.expect("default: 0")
	a.expect("nowhere channel doesn't exist")
}

// Lines split across TCP segments frame exactly as if they arrived whole,
// and a single segment carrying several lines dispatches them in order.
func TestFramingAcrossSegments(t *testing.T) {
	_, addr := startTestServer(t)

	a := dialTestClient(t, addr)
	a.expect("0 joined chat")

	a.sendRaw([]byte("hel"))
	a.expectNothing()
	a.sendRaw([]byte("lo\nworld\n"))
	a.expect("0: hello")
	a.expect("0: world")
}

func TestMOTD(t *testing.T) {
	_, addr := startTestServer(t, func(cfg *Config) {
		cfg.MOTD = "welcome to tinbox"
	})

	a := dialTestClient(t, addr)
	a.expect("welcome to tinbox")
	a.expect("0 joined chat")
}

func TestServerShutdown(t *testing.T) {
	server, addr := startTestServer(t)

	a := dialTestClient(t, addr)
	a.expect("0 joined chat")

	server.shutdown()
	a.expect("Server shutting down")
	a.expectEOF()
}
