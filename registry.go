package main

import (
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DefaultChannel is the channel every client lands in at admission. It
// exists from startup until shutdown.
const DefaultChannel = "default"

// Errors surfaced by registry operations. Command handlers translate them
// into protocol replies.
var (
	errNickInUse     = errors.New("nickname is already in use")
	errInvalidNick   = errors.New("invalid nickname")
	errChannelExists = errors.New("channel already exists")
	errInvalidName   = errors.New("invalid channel name")
	errNoSuchChannel = errors.New("no such channel")
	errNoSuchClient  = errors.New("no such client")
)

// Registry holds all shared chat state: the client table, the nickname
// index, and the channel table. The three structures co-reference each
// other, so one mutex guards them all. Operations that compose other
// operations (kick removing a client, say) take the lock once at the public
// entry point and call the *Locked variants inside.
type Registry struct {
	mu sync.Mutex

	// Client handle to record.
	clients map[uint64]*Client

	// The nickname index. A bijection kept in both directions.
	nickToHandle map[string]uint64
	handleToNick map[uint64]string

	// Channel name to Channel.
	channels map[string]*Channel

	// Channel names in creation order. Listing output follows it.
	channelOrder []string

	// The next handle to assign. Handles are never reused.
	nextHandle uint64

	server  *Tinbox
	log     zerolog.Logger
	metrics *Metrics
}

// NewRegistry creates a Registry holding only the default channel.
func NewRegistry(t *Tinbox) *Registry {
	r := &Registry{
		clients:      make(map[uint64]*Client),
		nickToHandle: make(map[string]uint64),
		handleToNick: make(map[uint64]string),
		channels:     make(map[string]*Channel),
		server:       t,
		log:          t.log.With().Str("component", "registry").Logger(),
		metrics:      t.Metrics,
	}

	r.channels[DefaultChannel] = NewChannel(DefaultChannel)
	r.channelOrder = append(r.channelOrder, DefaultChannel)
	r.metrics.Channels.Inc()

	return r
}

// admit registers a newly accepted connection. It allocates the next
// handle, pairs the fresh record with its numeric nick on both sides of the
// index, and places it in the default channel. The registry owns the socket
// from here on.
func (r *Registry) admit(conn net.Conn) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle := r.nextHandle
	r.nextHandle++

	c := NewClient(r.server, handle, NewConn(conn, r.server.Config.WriteWait))

	r.clients[handle] = c
	r.nickToHandle[c.Nick] = handle
	r.handleToNick[handle] = c.Nick
	r.channels[DefaultChannel].Members[handle] = c

	r.metrics.ClientsActive.Inc()
	r.log.Info().Uint64("handle", handle).
		Str("addr", c.Conn.RemoteAddr().String()).Msg("client admitted")

	return c
}

// remove takes a client out of every structure, marks it removed, and
// closes its socket. Idempotent: removing an unknown handle does nothing.
func (r *Registry) remove(handle uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(handle)
}

// removeLocked is remove for callers already holding the lock, such as the
// kick path.
func (r *Registry) removeLocked(handle uint64) {
	c, exists := r.clients[handle]
	if !exists {
		return
	}

	delete(r.clients, handle)

	if nick, exists := r.handleToNick[handle]; exists {
		delete(r.nickToHandle, nick)
		delete(r.handleToNick, handle)
	}

	if ch, exists := r.channels[c.Channel]; exists {
		delete(ch.Members, handle)
	}

	c.Status = StatusRemoved
	c.closeConn()

	r.metrics.ClientsActive.Dec()
	r.log.Info().Uint64("handle", handle).Str("nick", c.Nick).
		Msg("client removed")
}

// rename points the nickname index at a new nick for the handle. Both sides
// of the bijection change in one step. The previous nick is returned so the
// caller can announce the change. Renaming to the nick the client already
// holds succeeds and changes nothing. On rejection the returned nick is the
// one the client still holds.
func (r *Registry) rename(handle uint64, nick string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.clients[handle]
	if !exists {
		return "", errNoSuchClient
	}

	if !isValidNick(nick) {
		return c.Nick, errInvalidNick
	}

	if owner, exists := r.nickToHandle[nick]; exists {
		if owner == handle {
			return nick, nil
		}
		return c.Nick, errNickInUse
	}

	old := c.Nick
	delete(r.nickToHandle, old)
	r.nickToHandle[nick] = handle
	r.handleToNick[handle] = nick
	c.Nick = nick

	r.log.Info().Uint64("handle", handle).Str("old", old).Str("new", nick).
		Msg("client renamed")

	return old, nil
}

// createChannel adds an empty channel. Channels persist until shutdown,
// even with no members.
func (r *Registry) createChannel(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !isValidChannelName(name) {
		return errInvalidName
	}

	if _, exists := r.channels[name]; exists {
		return errChannelExists
	}

	r.channels[name] = NewChannel(name)
	r.channelOrder = append(r.channelOrder, name)

	r.metrics.Channels.Inc()
	r.log.Info().Str("channel", name).Msg("channel created")

	return nil
}

// moveToChannel moves a client between membership sets and updates its
// record, all as one step. Returns the channel the client came from. The
// target must exist.
func (r *Registry) moveToChannel(handle uint64, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.clients[handle]
	if !exists {
		return "", errNoSuchClient
	}

	target, exists := r.channels[name]
	if !exists {
		return "", errNoSuchChannel
	}

	old := c.Channel
	if ch, exists := r.channels[old]; exists {
		delete(ch.Members, handle)
	}
	target.Members[handle] = c
	c.Channel = name

	return old, nil
}

// kick forcibly removes the client holding nick. The target learns who
// kicked it, then its record goes away, then the kicker gets confirmation.
// One lock acquisition covers the whole sequence, so the target's departure
// broadcast cannot land between the two notices.
func (r *Registry) kick(by *Client, nick string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle, exists := r.nickToHandle[nick]
	if !exists {
		return errNoSuchClient
	}

	target := r.clients[handle]
	target.Status = StatusInactive

	r.tellLocked(target, fmt.Sprintf("Kicked by %s", by.Nick))
	r.removeLocked(handle)
	r.tellLocked(by, fmt.Sprintf("%s has been kicked", nick))

	r.log.Info().Uint64("handle", handle).Str("nick", nick).
		Str("by", by.Nick).Msg("client kicked")

	return nil
}

// removeAll drops every client. Shutdown calls this; closing the sockets
// unblocks each handler's read.
func (r *Registry) removeAll() {
	for _, c := range r.snapshotClients() {
		r.remove(c.Handle)
	}
}

// status reads a client's lifecycle state. Handlers poll this between
// frames to notice they were kicked.
func (r *Registry) status(c *Client) ClientStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	return c.Status
}

// nickOf reads a client's current nick. The value no longer changes once
// the record is removed.
func (r *Registry) nickOf(c *Client) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return c.Nick
}

// nickAndChannel reads the sender's nick and channel in one step, for
// formatting chat lines.
func (r *Registry) nickAndChannel(c *Client) (string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return c.Nick, c.Channel
}

// clientByNick resolves a nick to its client record.
func (r *Registry) clientByNick(nick string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle, exists := r.nickToHandle[nick]
	if !exists {
		return nil, false
	}

	return r.clients[handle], true
}

// clientCount reports how many clients are registered.
func (r *Registry) clientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.clients)
}

// ChannelSummary is a point in time view of one channel.
type ChannelSummary struct {
	Name    string
	Members int
}

// snapshotChannels copies out the channel list in creation order.
func (r *Registry) snapshotChannels() []ChannelSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	summaries := make([]ChannelSummary, 0, len(r.channelOrder))
	for _, name := range r.channelOrder {
		summaries = append(summaries, ChannelSummary{
			Name:    name,
			Members: len(r.channels[name].Members),
		})
	}

	return summaries
}

// snapshotMembers copies out the nicks in one channel in admission order.
// Reports whether the channel exists.
func (r *Registry) snapshotMembers(name string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, exists := r.channels[name]
	if !exists {
		return nil, false
	}

	nicks := make([]string, 0, len(ch.Members))
	for _, handle := range ch.memberHandles() {
		nicks = append(nicks, r.handleToNick[handle])
	}

	return nicks, true
}

// snapshotNicks copies out every connected nick in admission order.
func (r *Registry) snapshotNicks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles := make([]uint64, 0, len(r.handleToNick))
	for h := range r.handleToNick {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	nicks := make([]string, 0, len(handles))
	for _, h := range handles {
		nicks = append(nicks, r.handleToNick[h])
	}

	return nicks
}

// snapshotClients copies out every client record.
func (r *Registry) snapshotClients() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}

	return clients
}
