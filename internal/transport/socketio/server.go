// Package socketio is the display-bridge transport: a local socket.io
// endpoint the desktop shell connects to for pushed state and user actions.
package socketio

import (
	"context"
	"net/http"
	"time"

	socketio "github.com/googollee/go-socket.io"
	"go.uber.org/zap"

	"github.com/genricoloni/mediad/internal/config"
	"github.com/genricoloni/mediad/internal/domain"
)

// Server bridges the aggregator and the display shell. Outbound state goes
// through three broadcast channels; inbound user actions surface on the
// Commands channel, consumed by the aggregator loop.
type Server struct {
	logger   *zap.Logger
	io       *socketio.Server
	httpSrv  *http.Server
	commands chan domain.Command
	ready    chan struct{}
}

// NewServer creates the bridge listening on the configured local address
func NewServer(logger *zap.Logger, cfg *config.AppConfig) *Server {
	s := &Server{
		logger:   logger,
		io:       socketio.NewServer(nil),
		commands: make(chan domain.Command, 16),
		ready:    make(chan struct{}, 1),
	}

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", s.io)
	s.httpSrv = &http.Server{
		Addr:              cfg.GetListenAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.setupHandlers()
	return s
}

func (s *Server) setupHandlers() {
	s.io.OnConnect("/", func(conn socketio.Conn) error {
		s.logger.Info("Display client connected", zap.String("id", conn.ID()))
		return nil
	})

	s.io.OnDisconnect("/", func(conn socketio.Conn, reason string) {
		s.logger.Info("Display client disconnected",
			zap.String("id", conn.ID()),
			zap.String("reason", reason))
	})

	s.io.OnError("/", func(conn socketio.Conn, err error) {
		s.logger.Warn("Bridge connection error", zap.Error(err))
	})

	// The shell announces it is prepared to receive pushed state; the
	// aggregator answers by replaying the current snapshot
	s.io.OnEvent("/", "ready", func(conn socketio.Conn) {
		select {
		case s.ready <- struct{}{}:
		default:
		}
	})

	s.io.OnEvent("/", "toggle", func(conn socketio.Conn, target string) {
		s.enqueue(domain.Command{Action: domain.ActionToggle, Target: target})
	})

	s.io.OnEvent("/", "next", func(conn socketio.Conn, target string) {
		s.enqueue(domain.Command{Action: domain.ActionNext, Target: target})
	})

	s.io.OnEvent("/", "previous", func(conn socketio.Conn, target string) {
		s.enqueue(domain.Command{Action: domain.ActionPrevious, Target: target})
	})

	s.io.OnEvent("/", "restart", func(conn socketio.Conn, target string) {
		s.enqueue(domain.Command{Action: domain.ActionRestart, Target: target})
	})

	s.io.OnEvent("/", "set-volume", func(conn socketio.Conn, percent int) {
		s.enqueue(domain.Command{Action: domain.ActionSetVolume, Volume: percent})
	})
}

func (s *Server) enqueue(cmd domain.Command) {
	select {
	case s.commands <- cmd:
	default:
		s.logger.Warn("Command queue full, dropping",
			zap.String("action", string(cmd.Action)))
	}
}

// Start brings up the socket.io engine and the HTTP listener
func (s *Server) Start() error {
	go func() {
		if err := s.io.Serve(); err != nil {
			s.logger.Error("Socket.io engine stopped", zap.Error(err))
		}
	}()
	go func() {
		s.logger.Info("Display bridge listening", zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Bridge HTTP server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the bridge down
func (s *Server) Stop(ctx context.Context) error {
	if err := s.io.Close(); err != nil {
		s.logger.Warn("Socket.io close failed", zap.Error(err))
	}
	return s.httpSrv.Shutdown(ctx)
}

// PushNowPlaying broadcasts the selected player's display record
func (s *Server) PushNowPlaying(record domain.NowPlaying) {
	s.io.BroadcastToNamespace("/", "media-update", record)
}

// PushVolume broadcasts the current system volume
func (s *Server) PushVolume(percent int) {
	s.io.BroadcastToNamespace("/", "system-volume-update", percent)
}

// PushPlayerList broadcasts the ordered player list projection
func (s *Server) PushPlayerList(entries []domain.PlayerListEntry) {
	s.io.BroadcastToNamespace("/", "player-list-update", entries)
}

// Commands returns the inbound user-action channel
func (s *Server) Commands() <-chan domain.Command {
	return s.commands
}

// Ready returns the display-ready signal channel
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}
