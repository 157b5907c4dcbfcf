package bus

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/genricoloni/mediad/internal/domain"
)

// signalConn is the slice of the bus connection the signal source needs.
// Kept narrow so tests can stub it.
type signalConn interface {
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveSignal(ch chan<- *dbus.Signal)
	Signal(ch chan<- *dbus.Signal)
}

// SignalSource is the native event source: an in-process subscription to
// PropertiesChanged and NameOwnerChanged signals, converted into domain
// event records.
type SignalSource struct {
	logger *zap.Logger
	conn   signalConn
	events chan domain.BusEvent

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSignalSource creates a signal source on top of an open bus client
func NewSignalSource(logger *zap.Logger, client *Client) *SignalSource {
	return &SignalSource{
		logger: logger,
		conn:   client.Conn(),
		events: make(chan domain.BusEvent, 32),
	}
}

// Start subscribes to the bus signals and begins delivering events.
// Non-blocking; delivery stops when ctx is cancelled or Stop is called.
func (s *SignalSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if err := s.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(ObjectPath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		return fmt.Errorf("subscribe PropertiesChanged: %w", err)
	}

	if err := s.conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		return fmt.Errorf("subscribe NameOwnerChanged: %w", err)
	}

	srcCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	signals := make(chan *dbus.Signal, 32)
	s.conn.Signal(signals)

	s.wg.Add(1)
	go s.pump(srcCtx, signals)

	s.logger.Info("Native signal source started")
	return nil
}

// Stop tears down the subscription and closes the events channel
func (s *SignalSource) Stop() error {
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
func (s *SignalSource) Events() <-chan domain.BusEvent {
	return s.events
}

func (s *SignalSource) pump(ctx context.Context, signals chan *dbus.Signal) {
	defer s.wg.Done()
	defer s.conn.RemoveSignal(signals)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			if sig == nil {
				continue
			}
			ev, ok := convertSignal(sig)
			if !ok {
				continue
			}
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// convertSignal turns a raw bus signal into a domain event record.
// Signals that are not MPRIS-relevant report ok=false.
func convertSignal(sig *dbus.Signal) (domain.BusEvent, bool) {
	switch sig.Name {
	case "org.freedesktop.DBus.NameOwnerChanged":
		if len(sig.Body) < 3 {
			return domain.BusEvent{}, false
		}
		name, _ := sig.Body[0].(string)
		if !strings.HasPrefix(name, NamePrefix) {
			return domain.BusEvent{}, false
		}
		oldOwner, _ := sig.Body[1].(string)
		newOwner, _ := sig.Body[2].(string)
		return domain.BusEvent{
			Kind:     domain.EventOwnerChanged,
			Name:     name,
			OldOwner: oldOwner,
			NewOwner: newOwner,
		}, true

	case "org.freedesktop.DBus.Properties.PropertiesChanged":
		if len(sig.Body) < 2 {
			return domain.BusEvent{}, false
		}
		iface, _ := sig.Body[0].(string)
		if iface != PlayerInterface {
			return domain.BusEvent{}, false
		}
		changed, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			return domain.BusEvent{}, false
		}

		var u domain.PlayerUpdate
		if v, ok := changed["PlaybackStatus"]; ok {
			if str, ok := v.Value().(string); ok {
				u.Status = domain.Status(domain.ParseStatus(str))
			}
		}
		if v, ok := changed["Volume"]; ok {
			if f, ok := v.Value().(float64); ok {
				u.Volume = &f
			}
		}
		if v, ok := changed["Metadata"]; ok {
			if meta, ok := v.Value().(map[string]dbus.Variant); ok {
				mergeMetadata(&u, meta)
			}
		}
		if u.Empty() {
			return domain.BusEvent{}, false
		}
		return domain.BusEvent{
			Kind:   domain.EventProperties,
			Sender: sig.Sender,
			Update: u,
		}, true
	}

	return domain.BusEvent{}, false
}
