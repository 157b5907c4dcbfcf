package session

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/genricoloni/mediad/internal/bus"
	"github.com/genricoloni/mediad/internal/config"
	"github.com/genricoloni/mediad/internal/domain"
)

// NameResolver resolves a well-known bus name to a display name
type NameResolver interface {
	Resolve(ctx context.Context, wellKnown string) string
}

// Aggregator owns the canonical per-player state table. All mutation
// happens on the Run goroutine: events, poll ticks, volume ticks and
// commands funnel into one select loop, so the table needs no locking and
// poll cycles can never overlap.
type Aggregator struct {
	logger     *zap.Logger
	cfg        *config.AppConfig
	bus        bus.Caller
	resolver   NameResolver
	mixer      domain.Mixer
	bridge     domain.Bridge
	source     domain.EventSource
	dispatcher *Dispatcher
	selector   *Selector

	// clock is swapped out by tests
	clock func() time.Time

	players    map[string]*domain.PlayerRecord // keyed by connection id
	names      map[string]string               // well-known name -> connection id
	activeID   string
	lastVolume int

	// resync carries coalesced forced-resync requests; capacity 1 so a
	// request during an in-flight cycle merges with the next one
	resync chan struct{}
}

// NewAggregator wires the aggregator core
func NewAggregator(
	logger *zap.Logger,
	cfg *config.AppConfig,
	caller bus.Caller,
	resolver NameResolver,
	mixer domain.Mixer,
	bridge domain.Bridge,
	source domain.EventSource,
) *Aggregator {
	a := &Aggregator{
		logger:     logger,
		cfg:        cfg,
		bus:        caller,
		resolver:   resolver,
		mixer:      mixer,
		bridge:     bridge,
		source:     source,
		selector:   NewSelector(cfg.GetBrandPriority(), cfg.GetRecencyWindow()),
		clock:      time.Now,
		players:    make(map[string]*domain.PlayerRecord),
		names:      make(map[string]string),
		lastVolume: -1,
		resync:     make(chan struct{}, 1),
	}
	a.dispatcher = NewDispatcher(logger, caller, mixer, cfg.GetPostDispatchDelay(), a.RequestResync)
	return a
}

// RequestResync asks for an out-of-band poll cycle. Safe from any
// goroutine; requests coalesce with an in-flight or already pending cycle.
func (a *Aggregator) RequestResync() {
	select {
	case a.resync <- struct{}{}:
	default:
	}
}

// Run drives the aggregator until ctx is cancelled. Blocking.
func (a *Aggregator) Run(ctx context.Context) {
	pollTicker := time.NewTicker(a.cfg.GetPollInterval())
	defer pollTicker.Stop()
	volumeTicker := time.NewTicker(a.cfg.GetVolumeInterval())
	defer volumeTicker.Stop()

	// Build initial ground truth before reacting to anything
	a.pollCycle(ctx)
	a.pollVolume()

	events := a.source.Events()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Aggregator stopped")
			return

		case ev, ok := <-events:
			if !ok {
				a.logger.Info("Event source closed")
				events = nil
				continue
			}
			a.handleEvent(ctx, ev)

		case cmd := <-a.bridge.Commands():
			a.handleCommand(cmd)

		case <-a.bridge.Ready():
			// A display client came up; replay the current state
			a.project()
			if a.lastVolume >= 0 {
				a.bridge.PushVolume(a.lastVolume)
			}

		case <-pollTicker.C:
			// A pending forced resync merges into this cycle
			select {
			case <-a.resync:
			default:
			}
			a.pollCycle(ctx)

		case <-a.resync:
			a.pollCycle(ctx)

		case <-volumeTicker.C:
			a.pollVolume()
		}
	}
}

// handleEvent routes one bus event record into the state table
func (a *Aggregator) handleEvent(ctx context.Context, ev domain.BusEvent) {
	switch ev.Kind {
	case domain.EventOwnerChanged:
		a.handleOwnerChange(ctx, ev)
	case domain.EventProperties:
		a.merge(ev.Sender, ev.Update)
		a.refresh(ctx)
	}
}

// handleOwnerChange maintains the name table and the player lifecycle.
// A gained owner triggers an out-of-band full property fetch, since the
// signal header alone carries no metadata; a lost owner removes the record
// immediately and unconditionally.
func (a *Aggregator) handleOwnerChange(ctx context.Context, ev domain.BusEvent) {
	if ev.OldOwner != "" {
		a.remove(ev.OldOwner)
		if a.names[ev.Name] == ev.OldOwner {
			delete(a.names, ev.Name)
		}
	}

	if ev.NewOwner == "" {
		a.logger.Info("Player left the bus",
			zap.String("name", ev.Name),
			zap.String("owner", ev.OldOwner))
		a.refresh(ctx)
		return
	}

	a.names[ev.Name] = ev.NewOwner
	a.merge(ev.NewOwner, domain.PlayerUpdate{WellKnownName: domain.String(ev.Name)})
	a.setDisplayName(ev.NewOwner, a.resolver.Resolve(ctx, ev.Name))

	if update, err := a.bus.PlayerProperties(ctx, ev.Name); err == nil {
		a.merge(ev.NewOwner, update)
	}

	a.logger.Info("Player joined the bus",
		zap.String("name", ev.Name),
		zap.String("owner", ev.NewOwner))
	a.refresh(ctx)
}

// handleCommand routes a display-shell action to the dispatcher
func (a *Aggregator) handleCommand(cmd domain.Command) {
	if cmd.Action == domain.ActionSetVolume {
		a.dispatcher.SetSystemVolume(cmd.Volume)
		return
	}

	target := cmd.Target
	if target == "" {
		target = a.activeID
	}
	rec, ok := a.players[target]
	if !ok {
		// No active player, or a ghost target that vanished after
		// selection; nothing to do
		a.logger.Debug("Command with no live target",
			zap.String("action", string(cmd.Action)),
			zap.String("target", target))
		return
	}

	dest := rec.WellKnownName
	if dest == "" {
		dest = rec.ConnectionID
	}
	a.dispatcher.Dispatch(cmd.Action, dest, rec.TrackID)
}

// merge applies the non-absent fields of update to the record for connID,
// creating it on first reference. Pure table mutation; no selection or
// projection side effects.
func (a *Aggregator) merge(connID string, update domain.PlayerUpdate) {
	if connID == "" {
		return
	}

	rec, ok := a.players[connID]
	if !ok {
		rec = &domain.PlayerRecord{
			ConnectionID: connID,
			DisplayName:  domain.GenericPlayerName,
			Status:       domain.StatusStopped,
			Volume:       -1,
		}
		// Signals identify players only by connection id; recover the
		// well-known name from the name table when we have it
		for name, id := range a.names {
			if id == connID {
				rec.WellKnownName = name
				break
			}
		}
		a.players[connID] = rec
	}

	if update.WellKnownName != nil {
		rec.WellKnownName = *update.WellKnownName
	}
	if update.Status != nil {
		rec.Status = *update.Status
	}
	if update.Title != nil {
		rec.Title = *update.Title
	}
	if update.Artist != nil {
		rec.Artist = *update.Artist
	}
	if update.Album != nil {
		rec.Album = *update.Album
	}
	if update.ArtURL != nil {
		rec.ArtURL = *update.ArtURL
	}
	if update.SourceURL != nil {
		rec.SourceURL = *update.SourceURL
	}
	if update.TrackID != nil {
		rec.TrackID = *update.TrackID
	}
	if update.Volume != nil {
		rec.Volume = *update.Volume
	}

	// Local-file players (VLC and friends) often report a URL but no
	// title; surface the decoded file name instead of nothing
	if rec.Title == "" {
		if derived := titleFromURL(rec.SourceURL); derived != "" {
			rec.Title = derived
		}
	}

	rec.LastUpdated = a.clock()
}

// setDisplayName applies the monotonicity rule: a specific name is never
// downgraded to a more generic one, only upgraded or decorated.
func (a *Aggregator) setDisplayName(connID, candidate string) {
	rec, ok := a.players[connID]
	if !ok {
		return
	}

	if candidate == "" || candidate == domain.GenericPlayerName {
		return
	}
	current := rec.DisplayName
	if current == "" || current == domain.GenericPlayerName {
		rec.DisplayName = candidate
		return
	}
	// A decorated version of the current name (e.g. channel suffix) is an
	// upgrade; anything else would be a sideways or downward move
	if strings.Contains(strings.ToLower(candidate), strings.ToLower(current)) {
		rec.DisplayName = candidate
	}
}

// remove deletes the record for connID, clearing the active selection if it
// pointed there. The caller re-runs selection.
func (a *Aggregator) remove(connID string) {
	if _, ok := a.players[connID]; !ok {
		return
	}
	delete(a.players, connID)
	if a.activeID == connID {
		a.activeID = ""
	}
}

// pollCycle rebuilds ground truth: list names, resolve owners and
// identities, purge the vanished, fetch the unknown, and re-project
// regardless of change. A listing failure preserves the last known state
// so a transient bus hiccup never blanks the display.
func (a *Aggregator) pollCycle(ctx context.Context) {
	allNames, err := a.bus.ListNames(ctx)
	if err != nil {
		a.logger.Warn("Name listing failed, preserving last known state", zap.Error(err))
		return
	}

	live := make(map[string]string) // connection id -> well-known name
	for _, name := range allNames {
		if !strings.HasPrefix(name, bus.NamePrefix) {
			continue
		}
		owner, err := a.bus.NameOwner(ctx, name)
		if err != nil {
			// The name is still in the listing, so the player is still
			// registered; only this lookup failed. Keep the last known
			// owner alive rather than purging on a transient error.
			if cached, ok := a.names[name]; ok {
				live[cached] = name
			}
			continue
		}
		if owner == "" {
			continue
		}
		live[owner] = name
		a.names[name] = owner
	}

	for id := range a.players {
		if _, ok := live[id]; !ok {
			a.logger.Debug("Purging vanished player", zap.String("id", id))
			a.remove(id)
		}
	}
	for name, id := range a.names {
		if _, ok := live[id]; !ok {
			delete(a.names, name)
		}
	}

	for id, name := range live {
		rec, known := a.players[id]
		if !known {
			a.merge(id, domain.PlayerUpdate{WellKnownName: domain.String(name)})
			rec = a.players[id]
		} else {
			rec.WellKnownName = name
		}

		a.setDisplayName(id, a.resolver.Resolve(ctx, name))

		if !known || rec.Title == "" {
			if update, err := a.bus.PlayerProperties(ctx, name); err == nil {
				a.merge(id, update)
			}
		}
	}

	a.refresh(ctx)
}

// pollVolume reads the system volume and pushes it on change. Read
// failures keep the last known value.
func (a *Aggregator) pollVolume() {
	volume, err := a.mixer.Volume(context.Background())
	if err != nil {
		return
	}
	if volume != a.lastVolume {
		a.lastVolume = volume
		a.bridge.PushVolume(volume)
	}
}

// refresh re-runs selection and projection after a state mutation. When the
// winner changed, or it still shows the placeholder title, a forced full
// re-query of that player runs immediately, throttled per player so
// flapping signals cannot hammer the bus.
func (a *Aggregator) refresh(ctx context.Context) {
	winner := a.selector.Pick(a.players)

	if winner != nil && (winner.ConnectionID != a.activeID || winner.Title == "") {
		now := a.clock()
		if now.Sub(winner.LastManualRefresh) >= a.cfg.GetRefreshThrottle() {
			winner.LastManualRefresh = now
			dest := winner.WellKnownName
			if dest == "" {
				dest = winner.ConnectionID
			}
			if update, err := a.bus.PlayerProperties(ctx, dest); err == nil {
				a.merge(winner.ConnectionID, update)
				winner = a.selector.Pick(a.players)
			}
		}
	}

	if winner != nil {
		a.activeID = winner.ConnectionID
	} else {
		a.activeID = ""
	}

	a.project()
}

// project pushes the media-update record and the de-duplicated, ordered
// player list to the display bridge.
func (a *Aggregator) project() {
	if rec, ok := a.players[a.activeID]; ok {
		a.bridge.PushNowPlaying(nowPlayingFrom(rec))
	} else {
		a.bridge.PushNowPlaying(domain.Sentinel())
	}

	ranked := a.selector.Rank(a.players)
	entries := make([]domain.PlayerListEntry, 0, len(ranked))
	seen := make(map[string]int)
	for _, rec := range ranked {
		display := rec.DisplayName
		seen[display]++
		if n := seen[display]; n > 1 {
			display = fmt.Sprintf("%s %d", display, n)
		}
		entries = append(entries, domain.PlayerListEntry{
			DisplayName: display,
			ID:          rec.ConnectionID,
			Status:      rec.Status,
			IsActive:    rec.ConnectionID == a.activeID,
		})
	}
	a.bridge.PushPlayerList(entries)
}

func nowPlayingFrom(rec *domain.PlayerRecord) domain.NowPlaying {
	title := rec.Title
	if title == "" {
		title = domain.PlaceholderTitle
	}
	return domain.NowPlaying{
		ID:          rec.ConnectionID,
		DisplayName: rec.DisplayName,
		Status:      rec.Status,
		Title:       title,
		Artist:      rec.Artist,
		Album:       rec.Album,
		ArtURL:      rec.ArtURL,
		SourceURL:   rec.SourceURL,
		Volume:      rec.Volume,
	}
}

// titleFromURL derives a display title from a local-file source URL:
// the percent-decoded basename of the path. Non-file URLs yield nothing.
func titleFromURL(sourceURL string) string {
	if !strings.HasPrefix(sourceURL, "file://") {
		return ""
	}
	raw := strings.TrimPrefix(sourceURL, "file://")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}
	base := path.Base(decoded)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
