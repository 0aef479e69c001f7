package main

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

// ClientStatus tracks where a client is in its lifecycle.
type ClientStatus int

const (
	// StatusActive means the client is registered and its handler is
	// serving it.
	StatusActive ClientStatus = iota

	// StatusInactive means the client is marked for removal (kicked, or its
	// socket failed during a delivery) but its handler has not drained yet.
	StatusInactive

	// StatusRemoved means the record left the registry and the socket is
	// closed. Terminal.
	StatusRemoved
)

func (s ClientStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusInactive:
		return "inactive"
	case StatusRemoved:
		return "removed"
	}
	return "unknown"
}

// Client holds state about a single client connection.
//
// The registry owns the record. Nick, Channel, and Status must only be
// touched while holding the registry's lock.
type Client struct {
	// Handle is a unique id, internal to this server. Handles increase
	// monotonically and are never reused.
	Handle uint64

	// Conn holds the TCP connection to the client.
	Conn Conn

	// Nick is the current display name. It starts out as the decimal form
	// of the handle.
	Nick string

	// Channel is the name of the one channel the client is in.
	Channel string

	// Status is the lifecycle state.
	Status ClientStatus

	// Server references the server the client is connected to. It's helpful
	// to have to avoid passing the server all over the place.
	Server *Tinbox

	closeOnce sync.Once

	log zerolog.Logger
}

// NewClient creates a Client around an accepted connection.
func NewClient(t *Tinbox, handle uint64, conn Conn) *Client {
	return &Client{
		Handle:  handle,
		Conn:    conn,
		Nick:    strconv.FormatUint(handle, 10),
		Channel: DefaultChannel,
		Status:  StatusActive,
		Server:  t,
		log: t.log.With().Uint64("handle", handle).
			Str("addr", conn.RemoteAddr().String()).Logger(),
	}
}

func (c *Client) String() string {
	return fmt.Sprintf("%d %s", c.Handle, c.Conn.RemoteAddr())
}

// closeConn closes the client's TCP connection. Both removal and a failed
// delivery close the socket; only the first call does anything.
func (c *Client) closeConn() {
	c.closeOnce.Do(func() {
		if err := c.Conn.Close(); err != nil {
			c.log.Warn().Err(err).Msg("problem closing connection")
		}
	})
}

// readLoop reads lines from the client and feeds them to the dispatcher
// until the connection fails or the client stops being active (kicked, or
// its socket failed during a delivery). It then removes the client and
// announces the departure to everyone left.
func (c *Client) readLoop() {
	defer c.Server.WG.Done()

	reg := c.Server.Registry

	// The record entered the registry with nick and handle already paired.
	// Renaming to the same value asserts the bijection holds from the start.
	if _, err := reg.rename(c.Handle, strconv.FormatUint(c.Handle, 10)); err != nil {
		c.log.Error().Err(err).Msg("initial rename failed")
	}

	for {
		line, err := c.Conn.ReadLine()
		if err != nil {
			c.log.Debug().Err(err).Msg("read failed")
			break
		}

		if reg.status(c) != StatusActive {
			break
		}

		c.Server.Metrics.LinesReceived.Inc()
		c.Server.handleLine(c, line)
	}

	// Draining. Removal may already have happened via a kick; remove is
	// idempotent. The departure broadcast goes to whoever is left.
	reg.remove(c.Handle)

	nick := reg.nickOf(c)
	if !c.Server.isShuttingDown() {
		reg.tellAll(fmt.Sprintf("%s left chat", nick))
	}

	c.log.Info().Str("nick", nick).Msg("client disconnected")
}
