package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
)

// tinchat is a line oriented terminal client for a tinbox server. It keeps
// at most one TCP session at a time, driven entirely by lines typed on
// stdin. It interprets the local slash commands below and forwards
// everything else to the server verbatim; replies from the server print to
// stdout. It takes no command line arguments.
//
//	/server <host> <port>  connect
//	/leave                 disconnect
//	/quit                  disconnect and exit
//	/nick <name>           set the display name, forwarded when connected

// session holds the client's connection state. The reader goroutine and
// the stdin loop both touch it, so it carries a lock.
type session struct {
	mu      sync.Mutex
	conn    net.Conn
	closing bool
	nick    string

	out io.Writer
	wg  sync.WaitGroup
}

func main() {
	s := &session{out: os.Stdout}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if !s.handleInput(scanner.Text()) {
			break
		}
	}

	s.leave(true)
	s.wg.Wait()
}

// handleInput acts on one line of user input. Returns false when the user
// asked to quit.
func (s *session) handleInput(line string) bool {
	line = strings.TrimSpace(line)
	if len(line) == 0 {
		return true
	}

	if line[0] != '/' {
		s.send(line)
		return true
	}

	fields := strings.Fields(line)
	command := fields[0]
	args := fields[1:]

	if command == "/server" {
		if len(args) != 2 {
			s.tell("usage: /server <host> <port>")
			return true
		}
		s.connect(args[0], args[1])
		return true
	}

	if command == "/leave" {
		s.leave(false)
		return true
	}

	if command == "/quit" {
		return false
	}

	if command == "/nick" {
		if len(args) != 1 {
			s.tell("usage: /nick <name>")
			return true
		}
		s.setNick(args[0])

		// The server keeps its own idea of the nick. When connected it gets
		// the final say; it answers with a /nick line if it disagrees.
		if s.connected() {
			s.send(line)
		} else {
			s.tell(fmt.Sprintf("Nickname set to %s", args[0]))
		}
		return true
	}

	// Anything else is a server command.
	s.send(line)
	return true
}

// connect dials the server and starts the reader.
func (s *session) connect(host, port string) {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		s.tell("Must leave server before joining another")
		return
	}
	s.mu.Unlock()

	conn, err := net.Dial("tcp", net.JoinHostPort(host, port))
	if err != nil {
		s.tell(fmt.Sprintf("Connection failed: %s", err))
		return
	}

	s.mu.Lock()
	s.conn = conn
	s.closing = false
	s.mu.Unlock()

	s.tell(fmt.Sprintf("Connected to %s", conn.RemoteAddr()))

	s.wg.Add(1)
	go s.reader(conn)
}

// leave closes the current connection, if any.
func (s *session) leave(quiet bool) {
	s.mu.Lock()
	conn := s.conn
	if conn != nil {
		s.closing = true
		s.conn = nil
	}
	s.mu.Unlock()

	if conn == nil {
		if !quiet {
			s.tell("Not connected to a server")
		}
		return
	}

	_ = conn.Close()
	if !quiet {
		s.tell("Left chat")
	}
}

// send forwards one line to the server.
func (s *session) send(line string) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		s.tell("Not connected to a server")
		return
	}

	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		s.tell(fmt.Sprintf("Send failed: %s", err))
	}
}

// reader prints server lines to the transcript until the connection ends.
// A "/nick <name>" line from the server is the one machine-readable form:
// it carries the nick this client actually holds.
func (s *session) reader(conn net.Conn) {
	defer s.wg.Done()

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			break
		}

		line = strings.TrimRight(line, "\r\n")

		if rest, ok := strings.CutPrefix(line, "/nick "); ok {
			s.setNick(rest)
			s.tell(fmt.Sprintf("Nickname set to %s", rest))
			continue
		}

		s.tell(line)
	}

	s.mu.Lock()
	closing := s.closing
	if s.conn == conn {
		s.conn = nil
	}
	s.closing = false
	s.mu.Unlock()

	if !closing {
		s.tell("Connection closed by server")
	}
}

// tell prints one line to the transcript.
func (s *session) tell(line string) {
	fmt.Fprintln(s.out, line)
}

func (s *session) setNick(nick string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nick = nick
}

func (s *session) currentNick() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.nick
}

func (s *session) connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn != nil
}
