package main

import "sort"

// Channel holds everything to do with a channel.
type Channel struct {
	Name string

	// Members in the channel. Client handle to record.
	Members map[uint64]*Client
}

// NewChannel creates an empty channel.
func NewChannel(name string) *Channel {
	return &Channel{
		Name:    name,
		Members: make(map[uint64]*Client),
	}
}

// memberHandles returns the member handles in ascending order. Handles grow
// monotonically, so this is admission order.
func (c *Channel) memberHandles() []uint64 {
	handles := make([]uint64, 0, len(c.Members))
	for h := range c.Members {
		handles = append(handles, h)
	}

	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	return handles
}
