package session

import (
	"context"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/genricoloni/mediad/internal/bus"
	"github.com/genricoloni/mediad/internal/domain"
)

// noTrack is the MPRIS sentinel track id; SetPosition on it is meaningless
const noTrack = "/org/mpris/MediaPlayer2/TrackList/NoTrack"

// Dispatcher writes control actions to the bus and the mixer. All dispatch
// is fire-and-forget: failures are logged, never surfaced, and state catches
// up through the normal polling/signal path. A short delay after each player
// command triggers one out-of-band resync so the display reflects the likely
// new state sooner than the next regular cycle.
type Dispatcher struct {
	logger        *zap.Logger
	bus           bus.Caller
	mixer         domain.Mixer
	dispatchDelay time.Duration
	afterDispatch func()
}

// NewDispatcher creates a dispatcher. afterDispatch is invoked (once per
// player command, after dispatchDelay) to request an out-of-band resync;
// nil disables that.
func NewDispatcher(logger *zap.Logger, caller bus.Caller, mixer domain.Mixer, dispatchDelay time.Duration, afterDispatch func()) *Dispatcher {
	return &Dispatcher{
		logger:        logger,
		bus:           caller,
		mixer:         mixer,
		dispatchDelay: dispatchDelay,
		afterDispatch: afterDispatch,
	}
}

// Dispatch routes a playback action to dest (a well-known name or
// connection id). trackID is used by restart to seek to the start of the
// current track; players that never reported one get a Previous call, which
// restarts the track on every mainstream player.
func (d *Dispatcher) Dispatch(action domain.CommandAction, dest, trackID string) {
	go func() {
		ctx := context.Background()
		var err error

		switch action {
		case domain.ActionToggle:
			err = d.bus.Call(ctx, dest, "PlayPause")
		case domain.ActionNext:
			err = d.bus.Call(ctx, dest, "Next")
		case domain.ActionPrevious:
			err = d.bus.Call(ctx, dest, "Previous")
		case domain.ActionRestart:
			if trackID != "" && trackID != noTrack {
				err = d.bus.Call(ctx, dest, "SetPosition", dbus.ObjectPath(trackID), int64(0))
			} else {
				err = d.bus.Call(ctx, dest, "Previous")
			}
		default:
			d.logger.Warn("Unknown dispatch action", zap.String("action", string(action)))
			return
		}

		if err != nil {
			// A ghost target (player gone between selection and dispatch)
			// lands here; the next poll cycle reconciles the table
			d.logger.Warn("Dispatch failed",
				zap.String("action", string(action)),
				zap.String("dest", dest),
				zap.Error(err))
		}

		if d.afterDispatch != nil {
			time.AfterFunc(d.dispatchDelay, d.afterDispatch)
		}
	}()
}

// SetSystemVolume writes the system volume, clamped and un-muted. The fast
// volume poll picks the result up, so no resync is scheduled.
func (d *Dispatcher) SetSystemVolume(percent int) {
	go func() {
		if err := d.mixer.SetVolume(context.Background(), percent); err != nil {
			d.logger.Warn("Volume set failed", zap.Int("percent", percent), zap.Error(err))
		}
	}()
}
