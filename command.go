package main

import (
	"fmt"
	"strings"
)

// handleLine takes action based on one line from a client. A line starting
// with a slash is a command; anything else is chat for the client's current
// channel.
func (t *Tinbox) handleLine(c *Client, line string) {
	line = strings.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	if line[0] == '/' {
		t.handleCommand(c, line)
		return
	}

	nick, channel := t.Registry.nickAndChannel(c)
	t.Registry.tellChannel(channel, fmt.Sprintf("%s: %s", nick, line))
}

// handleCommand dispatches a slash command. The first token minus the slash
// names the command; the remaining tokens are its arguments.
func (t *Tinbox) handleCommand(c *Client, line string) {
	fields := strings.Fields(line)
	command := strings.TrimPrefix(fields[0], "/")
	args := fields[1:]

	if command == "nick" {
		t.nickCommand(c, args)
		return
	}

	if command == "msg" {
		t.msgCommand(c, args)
		return
	}

	if command == "mkch" {
		t.mkchCommand(c, args)
		return
	}

	if command == "join" {
		t.joinCommand(c, args)
		return
	}

	if command == "list" {
		t.listCommand(c)
		return
	}

	if command == "names" {
		t.namesCommand(c, args)
		return
	}

	if command == "kick" {
		t.kickCommand(c, args)
		return
	}

	t.Metrics.Commands.WithLabelValues("unknown").Inc()
	t.Registry.tell(c, "invalid command")
}

// nickCommand handles /nick. On success everyone hears about the change.
// When the nick is taken the sender alone gets the distinguished "/nick
// <current>" line; clients recognize the prefix and revert their local
// display name.
func (t *Tinbox) nickCommand(c *Client, args []string) {
	t.Metrics.Commands.WithLabelValues("nick").Inc()

	if len(args) != 1 {
		t.Registry.tell(c, "invalid command")
		return
	}
	nick := args[0]

	old, err := t.Registry.rename(c.Handle, nick)
	if err == errNickInUse {
		t.Registry.tell(c, fmt.Sprintf("/nick %s", old))
		return
	}
	if err != nil {
		t.Registry.tell(c, "invalid command")
		return
	}

	// Renaming to the nick already held succeeds without an announcement.
	if old == nick {
		return
	}

	t.Registry.tellAll(fmt.Sprintf("%s is now known as %s", old, nick))
}

// msgCommand handles /msg. The sender gets an echo of what went out. An
// unknown target drops the message without a reply.
func (t *Tinbox) msgCommand(c *Client, args []string) {
	t.Metrics.Commands.WithLabelValues("msg").Inc()

	if len(args) < 2 {
		t.Registry.tell(c, "invalid command")
		return
	}

	targetNick := args[0]
	msg := strings.Join(args[1:], " ")

	target, exists := t.Registry.clientByNick(targetNick)
	if !exists {
		return
	}

	sender := t.Registry.nickOf(c)
	t.Registry.tell(target, fmt.Sprintf("*%s* %s", sender, msg))
	t.Registry.tell(c, fmt.Sprintf("-> *%s* %s", targetNick, msg))
}

// mkchCommand handles /mkch. Everyone hears about a new channel; only the
// sender hears about a duplicate.
func (t *Tinbox) mkchCommand(c *Client, args []string) {
	t.Metrics.Commands.WithLabelValues("mkch").Inc()

	if len(args) != 1 {
		t.Registry.tell(c, "invalid command")
		return
	}
	name := args[0]

	err := t.Registry.createChannel(name)
	if err == errChannelExists {
		t.Registry.tell(c, fmt.Sprintf("Channel %s already exists", name))
		return
	}
	if err != nil {
		t.Registry.tell(c, "invalid command")
		return
	}

	t.Registry.tellAll(fmt.Sprintf("Channel %s created", name))
}

// joinCommand handles /join. The old channel hears the departure after the
// sender has left it; the new channel, sender included, hears the arrival.
func (t *Tinbox) joinCommand(c *Client, args []string) {
	t.Metrics.Commands.WithLabelValues("join").Inc()

	if len(args) != 1 {
		t.Registry.tell(c, "invalid command")
		return
	}
	name := args[0]

	old, err := t.Registry.moveToChannel(c.Handle, name)
	if err == errNoSuchChannel {
		t.Registry.tell(c, fmt.Sprintf("Channel %s doesn't exist", name))
		return
	}
	if err != nil {
		return
	}

	nick := t.Registry.nickOf(c)
	t.Registry.tellChannel(old, fmt.Sprintf("%s left %s", nick, old))
	t.Registry.tellChannel(name, fmt.Sprintf("%s joined %s", nick, name))
}

// listCommand handles /list. The sender gets the header and one line per
// channel, in creation order, as a single delivery.
func (t *Tinbox) listCommand(c *Client) {
	t.Metrics.Commands.WithLabelValues("list").Inc()

	summaries := t.Registry.snapshotChannels()

	lines := make([]string, 0, len(summaries)+1)
	lines = append(lines, "*** Channel\tUsers")
	for _, ch := range summaries {
		lines = append(lines, fmt.Sprintf("*** %s\t%d", ch.Name, ch.Members))
	}

	t.Registry.tell(c, strings.Join(lines, "\n"))
}

// namesCommand handles /names. With channel arguments it lists each
// channel's members; without, every connected nick.
func (t *Tinbox) namesCommand(c *Client, args []string) {
	t.Metrics.Commands.WithLabelValues("names").Inc()

	if len(args) == 0 {
		nicks := t.Registry.snapshotNicks()
		t.Registry.tell(c, fmt.Sprintf("all users: %s", strings.Join(nicks, " ")))
		return
	}

	lines := make([]string, 0, len(args))
	for _, name := range args {
		members, exists := t.Registry.snapshotMembers(name)
		if !exists {
			lines = append(lines, fmt.Sprintf("%s channel doesn't exist", name))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", name, strings.Join(members, " ")))
	}

	t.Registry.tell(c, strings.Join(lines, "\n"))
}

// kickCommand handles /kick. The registry runs the whole kick sequence;
// only the unknown nick reply happens out here.
func (t *Tinbox) kickCommand(c *Client, args []string) {
	t.Metrics.Commands.WithLabelValues("kick").Inc()

	if len(args) != 1 {
		t.Registry.tell(c, "invalid command")
		return
	}
	nick := args[0]

	if err := t.Registry.kick(c, nick); err != nil {
		t.Registry.tell(c, fmt.Sprintf("Can't kick nonexistent user %s", nick))
	}
}
