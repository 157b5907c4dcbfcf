package stream

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"github.com/genricoloni/mediad/internal/domain"
)

const monitorBinary = "dbus-monitor"

// Match rules mirror exactly what the native signal source subscribes to.
var monitorMatches = []string{
	"type='signal',interface='org.freedesktop.DBus.Properties',member='PropertiesChanged',path='/org/mpris/MediaPlayer2'",
	"type='signal',sender='org.freedesktop.DBus',interface='org.freedesktop.DBus',member='NameOwnerChanged'",
}

// MonitorSource is the out-of-process event source: it spawns the bus
// monitor tool and feeds its stdout through the stream parser. Selected via
// configuration when the in-process connection cannot be used.
type MonitorSource struct {
	logger *zap.Logger
	events chan domain.BusEvent

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewMonitorSource creates a monitor-tool event source
func NewMonitorSource(logger *zap.Logger) *MonitorSource {
	return &MonitorSource{
		logger: logger,
		events: make(chan domain.BusEvent, 32),
	}
}

// Start spawns the monitor process and begins delivering events.
// Non-blocking; the process dies with the context.
func (s *MonitorSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	srcCtx, cancel := context.WithCancel(ctx)

	args := append([]string{"--session"}, monitorMatches...)
	cmd := exec.CommandContext(srcCtx, monitorBinary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("monitor stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("spawn %s: %w", monitorBinary, err)
	}

	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.consume(srcCtx, cmd, stdout)

	s.logger.Info("Monitor-tool signal source started",
		zap.Int("pid", cmd.Process.Pid))
	return nil
}

// Stop kills the monitor process and closes the events channel
func (s *MonitorSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	close(s.events)
	return nil
}

// Events returns the delivery channel
func (s *MonitorSource) Events() <-chan domain.BusEvent {
	return s.events
}

func (s *MonitorSource) consume(ctx context.Context, cmd *exec.Cmd, stdout io.Reader) {
	defer s.wg.Done()
	defer func() {
		// Reap the process; the error is expected after cancellation
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			s.logger.Warn("Monitor process exited", zap.Error(err))
		}
	}()

	parser := NewParser(s.logger, func(ev domain.BusEvent) {
		select {
		case s.events <- ev:
		case <-ctx.Done():
		}
	})

	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			parser.Feed(buf[:n])
		}
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("Monitor stream ended", zap.Error(err))
			}
			return
		}
	}
}
