package domain

import "context"

// EventSource delivers bus event records asynchronously.
// Implementations cover both the native signal subscription and the
// text-stream fallback; consumers must not care which one is running.
type EventSource interface {
	// Start begins delivering events. Non-blocking; delivery stops when the
	// context is cancelled.
	Start(ctx context.Context) error

	// Stop tears the source down and closes the events channel
	Stop() error

	// Events returns the channel event records are delivered on
	Events() <-chan BusEvent
}

// Mixer reads and writes the system output volume through the platform
// mixer utility. Volumes are integer percentages, 0-100.
type Mixer interface {
	Volume(ctx context.Context) (int, error)

	// SetVolume clamps to 0-100 and always un-mutes the sink, so raising
	// the volume from zero is audible
	SetVolume(ctx context.Context, percent int) error
}

// Bridge is the display-shell collaborator: three push channels out, one
// command channel in. Push calls never block and never return errors; a
// bridge with no connected client drops the push.
type Bridge interface {
	PushNowPlaying(NowPlaying)
	PushVolume(percent int)
	PushPlayerList([]PlayerListEntry)

	// Commands returns the channel user actions arrive on
	Commands() <-chan Command

	// Ready returns a channel that receives a signal whenever a display
	// client announces it is prepared to receive pushed state
	Ready() <-chan struct{}
}
