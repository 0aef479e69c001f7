package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"
)

// Tinbox holds the state for a server.
// Everything global to a server lives on an instance of this struct rather
// than in global variables.
type Tinbox struct {
	Config Config

	// Registry holds all client, nickname, and channel state and delivers
	// lines to clients.
	Registry *Registry

	Metrics *Metrics

	// When we close this channel, this indicates that we're shutting down.
	// Other goroutines can check if this channel is closed.
	ShutdownChan chan struct{}

	// TCP listener.
	Listener net.Listener

	metricsServer *http.Server

	// WaitGroup to ensure all goroutines clean up before we end.
	WG sync.WaitGroup

	shutdownOnce sync.Once

	log zerolog.Logger
}

func main() {
	logger := NewLogger("info", "json")

	args, err := getArgs()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid arguments")
	}

	cfg, err := checkAndParseConfig(args.ConfigFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration problem")
	}
	cfg.ListenHost = args.Host
	cfg.ListenPort = args.Port

	logger = NewLogger(cfg.LogLevel, cfg.LogFormat)

	server := newTinbox(cfg, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info().Str("signal", sig.String()).Msg("signal received")
		server.shutdown()
	}()

	if err := server.start(); err != nil {
		logger.Error().Err(err).Msg("server error")
		os.Exit(1)
	}

	logger.Info().Msg("server shutdown cleanly")
}

func newTinbox(cfg Config, log zerolog.Logger) *Tinbox {
	t := &Tinbox{
		Config:  cfg,
		Metrics: NewMetrics(),

		// shutdown() closes this channel.
		ShutdownChan: make(chan struct{}),

		log: log,
	}

	t.Registry = NewRegistry(t)

	return t
}

// start starts up the server: open the TCP port, accept until shutdown,
// and wait for every handler to drain.
func (t *Tinbox) start() error {
	if err := t.listen(); err != nil {
		return err
	}

	t.serve()

	return nil
}

// listen binds the TCP listener and, when configured, the metrics listener.
// The OS default backlog applies.
func (t *Tinbox) listen() error {
	ln, err := net.Listen("tcp",
		net.JoinHostPort(t.Config.ListenHost, t.Config.ListenPort))
	if err != nil {
		return errors.Wrap(err, "unable to listen")
	}
	t.Listener = ln

	t.log.Info().Str("address", ln.Addr().String()).Msg("listening")

	if t.Config.MetricsListen != "" {
		t.startMetricsServer()
	}

	return nil
}

// serve accepts connections until shutdown, then waits for all goroutines
// to clean up.
func (t *Tinbox) serve() {
	t.WG.Add(1)
	go t.acceptConnections()

	t.WG.Wait()
}

// acceptConnections accepts TCP connections and starts a handler goroutine
// for each. The acceptor itself never blocks on client I/O beyond the
// announcement it makes under the delivery lock.
func (t *Tinbox) acceptConnections() {
	defer t.WG.Done()

	for {
		conn, err := t.Listener.Accept()
		if err != nil {
			if t.isShuttingDown() {
				break
			}
			t.log.Warn().Err(err).Msg("failed to accept connection")
			continue
		}

		c := t.Registry.admit(conn)

		if t.Config.MOTD != "" {
			t.Registry.tell(c, t.Config.MOTD)
		}

		t.Registry.tellAll(fmt.Sprintf("%d joined chat", c.Handle))

		t.WG.Add(1)
		go c.readLoop()
	}

	t.log.Info().Msg("connection accepter shutting down")
}

// shutdown starts server shutdown. Safe to call more than once.
func (t *Tinbox) shutdown() {
	t.shutdownOnce.Do(func() {
		t.log.Info().Msg("server shutdown initiated")

		// Closing ShutdownChan indicates to other goroutines that we're
		// shutting down.
		close(t.ShutdownChan)

		t.Registry.tellAll("Server shutting down")

		if t.Listener != nil {
			if err := t.Listener.Close(); err != nil {
				t.log.Warn().Err(err).Msg("problem closing TCP listener")
			}
		}

		// Dropping every client closes its socket, which unblocks its
		// handler's read.
		t.Registry.removeAll()

		if t.metricsServer != nil {
			if err := t.metricsServer.Close(); err != nil {
				t.log.Warn().Err(err).Msg("problem closing metrics listener")
			}
		}
	})
}

// Return true if the server is shutting down.
func (t *Tinbox) isShuttingDown() bool {
	// No messages get sent to this channel, so if we receive a message on
	// it, then we know the channel was closed.
	select {
	case <-t.ShutdownChan:
		return true
	default:
		return false
	}
}

// startMetricsServer exposes the Prometheus collectors and a health
// endpoint over HTTP.
func (t *Tinbox) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", t.Metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ok",
			"clients": t.Registry.clientCount(),
		})
	})

	t.metricsServer = &http.Server{
		Addr:    t.Config.MetricsListen,
		Handler: mux,
	}

	t.WG.Add(1)
	go func() {
		defer t.WG.Done()

		err := t.metricsServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			t.log.Error().Err(err).Msg("metrics server error")
		}
	}()
}
