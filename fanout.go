package main

// The delivery half of the registry. Every write to a client socket happens
// while the registry lock is held: membership cannot change mid-broadcast
// and no two deliveries interleave on one socket. At most one delivery is
// in flight at a time.

// tell delivers one line to one client.
func (r *Registry) tell(c *Client, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tellLocked(c, line)
}

// tellChannel delivers one line to every member of a channel. A channel
// that doesn't exist has no members to tell.
func (r *Registry) tellChannel(name, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, exists := r.channels[name]
	if !exists {
		return
	}

	for _, c := range ch.Members {
		r.tellLocked(c, line)
	}
}

// tellAll delivers one line to every connected client.
func (r *Registry) tellAll(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.clients {
		r.tellLocked(c, line)
	}
}

// tellLocked writes one framed line to one client. Callers hold the lock.
//
// A failed write marks the client INACTIVE and closes its socket so its own
// handler drains it; the record must not be removed here while a broadcast
// may be iterating the very maps removal would change.
func (r *Registry) tellLocked(c *Client, line string) {
	if err := c.Conn.WriteLine(line); err != nil {
		r.log.Warn().Err(err).Uint64("handle", c.Handle).
			Msg("write failed, dropping client")

		c.Status = StatusInactive
		c.closeConn()
		r.metrics.WriteErrors.Inc()
		return
	}

	r.metrics.MessagesDelivered.Inc()
}
