package session

import (
	"context"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/genricoloni/mediad/internal/bus/mocks"
	"github.com/genricoloni/mediad/internal/config"
	"github.com/genricoloni/mediad/internal/domain"
)

type fakeBridge struct {
	media   []domain.NowPlaying
	volumes []int
	lists   [][]domain.PlayerListEntry
	cmds    chan domain.Command
	ready   chan struct{}
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{
		cmds:  make(chan domain.Command, 4),
		ready: make(chan struct{}, 1),
	}
}

func (b *fakeBridge) PushNowPlaying(n domain.NowPlaying)        { b.media = append(b.media, n) }
func (b *fakeBridge) PushVolume(v int)                          { b.volumes = append(b.volumes, v) }
func (b *fakeBridge) PushPlayerList(l []domain.PlayerListEntry) { b.lists = append(b.lists, l) }
func (b *fakeBridge) Commands() <-chan domain.Command           { return b.cmds }
func (b *fakeBridge) Ready() <-chan struct{}                    { return b.ready }

type stubResolver map[string]string

func (r stubResolver) Resolve(_ context.Context, wellKnown string) string {
	if name, ok := r[wellKnown]; ok {
		return name
	}
	return domain.GenericPlayerName
}

type stubMixer struct {
	volume   int
	setCalls chan int
}

func (m *stubMixer) Volume(context.Context) (int, error) { return m.volume, nil }
func (m *stubMixer) SetVolume(_ context.Context, v int) error {
	if m.setCalls != nil {
		m.setCalls <- v
	}
	return nil
}

type stubSource struct {
	ch chan domain.BusEvent
}

func (s *stubSource) Start(context.Context) error    { return nil }
func (s *stubSource) Stop() error                    { return nil }
func (s *stubSource) Events() <-chan domain.BusEvent { return s.ch }

func newTestAggregator(t *testing.T, caller *mocks.MockCaller, resolver stubResolver) (*Aggregator, *fakeBridge, *stubMixer) {
	t.Helper()
	logger := zap.NewNop()
	cfg := config.NewAppConfig(logger)
	bridge := newFakeBridge()
	mix := &stubMixer{volume: 40, setCalls: make(chan int, 1)}
	src := &stubSource{ch: make(chan domain.BusEvent, 4)}
	agg := NewAggregator(logger, cfg, caller, resolver, mix, bridge, src)
	return agg, bridge, mix
}

func TestMerge_AdditiveUpdates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	agg, _, _ := newTestAggregator(t, mocks.NewMockCaller(ctrl), stubResolver{})

	full := domain.PlayerUpdate{
		Status: domain.Status(domain.StatusPlaying),
		Title:  domain.String("Song A"),
		Artist: domain.String("Artist A"),
		Album:  domain.String("Album A"),
	}
	agg.merge(":1.10", full)

	// A subset update must leave every untouched field intact
	agg.merge(":1.10", domain.PlayerUpdate{Status: domain.Status(domain.StatusPaused)})

	rec := agg.players[":1.10"]
	if rec == nil {
		t.Fatal("record not created")
	}
	if rec.Status != domain.StatusPaused {
		t.Errorf("status: expected Paused, got %s", rec.Status)
	}
	if rec.Title != "Song A" || rec.Artist != "Artist A" || rec.Album != "Album A" {
		t.Errorf("subset update clobbered fields: %+v", rec)
	}
}

func TestMerge_TitleFromFileURL(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	agg, _, _ := newTestAggregator(t, mocks.NewMockCaller(ctrl), stubResolver{})

	agg.merge(":1.20", domain.PlayerUpdate{
		SourceURL: domain.String("file:///home/user/Song%20Name.mp3"),
	})

	rec := agg.players[":1.20"]
	if rec.Title != "Song Name.mp3" {
		t.Errorf("expected decoded basename title, got %q", rec.Title)
	}

	// A real title arriving later wins over the derived one
	agg.merge(":1.20", domain.PlayerUpdate{Title: domain.String("Proper Title")})
	if rec.Title != "Proper Title" {
		t.Errorf("real title must replace the derived one, got %q", rec.Title)
	}
}

func TestMerge_PlayerVolume(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	agg, bridge, _ := newTestAggregator(t, mocks.NewMockCaller(ctrl), stubResolver{})

	agg.merge(":1.25", domain.PlayerUpdate{Title: domain.String("Song")})
	if agg.players[":1.25"].Volume != -1 {
		t.Errorf("unreported volume must read -1, got %v", agg.players[":1.25"].Volume)
	}

	agg.merge(":1.25", domain.PlayerUpdate{Volume: domain.Float(0.8)})
	rec := agg.players[":1.25"]
	if rec.Volume != 0.8 {
		t.Errorf("volume not folded into the record: %v", rec.Volume)
	}
	if rec.Title != "Song" {
		t.Errorf("volume-only update clobbered fields: %+v", rec)
	}

	agg.activeID = ":1.25"
	agg.project()
	last := bridge.media[len(bridge.media)-1]
	if last.Volume != 0.8 {
		t.Errorf("player volume not projected: %+v", last)
	}
}

func TestSetDisplayName_Monotonic(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	agg, _, _ := newTestAggregator(t, mocks.NewMockCaller(ctrl), stubResolver{})

	agg.merge(":1.30", domain.PlayerUpdate{})
	rec := agg.players[":1.30"]

	if rec.DisplayName != domain.GenericPlayerName {
		t.Fatalf("new record must start generic, got %q", rec.DisplayName)
	}

	agg.setDisplayName(":1.30", "Zen Browser")
	if rec.DisplayName != "Zen Browser" {
		t.Fatalf("specific name must replace generic, got %q", rec.DisplayName)
	}

	// A more generic candidate never downgrades
	agg.setDisplayName(":1.30", domain.GenericPlayerName)
	if rec.DisplayName != "Zen Browser" {
		t.Errorf("generic candidate downgraded the name to %q", rec.DisplayName)
	}

	// A decorated version of the current name is an upgrade
	agg.setDisplayName(":1.30", "Zen Browser Beta")
	if rec.DisplayName != "Zen Browser Beta" {
		t.Errorf("decoration rejected, got %q", rec.DisplayName)
	}

	// An unrelated name is a sideways move and is ignored
	agg.setDisplayName(":1.30", "Firefox")
	if rec.DisplayName != "Zen Browser Beta" {
		t.Errorf("unrelated candidate replaced the name: %q", rec.DisplayName)
	}
}

func TestRefresh_EmptyTableProjectsSentinel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	agg, bridge, _ := newTestAggregator(t, mocks.NewMockCaller(ctrl), stubResolver{})

	agg.refresh(context.Background())

	if len(bridge.media) != 1 {
		t.Fatalf("expected 1 media push, got %d", len(bridge.media))
	}
	got := bridge.media[0]
	if got.Title != domain.PlaceholderTitle || got.Artist != "" || got.ID != "" {
		t.Errorf("expected sentinel record, got %+v", got)
	}
	if len(bridge.lists) != 1 || len(bridge.lists[0]) != 0 {
		t.Errorf("expected one empty player list, got %+v", bridge.lists)
	}
}

func TestHandleOwnerChange_GainCreatesAndFetches(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	caller := mocks.NewMockCaller(ctrl)
	caller.EXPECT().
		PlayerProperties(gomock.Any(), gomock.Any()).
		Return(domain.PlayerUpdate{
			Status: domain.Status(domain.StatusPlaying),
			Title:  domain.String("Song B"),
		}, nil).
		AnyTimes()

	agg, bridge, _ := newTestAggregator(t, caller,
		stubResolver{"org.mpris.MediaPlayer2.vlc": "VLC"})

	agg.handleEvent(context.Background(), domain.BusEvent{
		Kind:     domain.EventOwnerChanged,
		Name:     "org.mpris.MediaPlayer2.vlc",
		NewOwner: ":1.40",
	})

	rec := agg.players[":1.40"]
	if rec == nil {
		t.Fatal("record not created on ownership gain")
	}
	if rec.WellKnownName != "org.mpris.MediaPlayer2.vlc" {
		t.Errorf("well-known name not recorded: %+v", rec)
	}
	if rec.DisplayName != "VLC" {
		t.Errorf("identity not resolved: %q", rec.DisplayName)
	}
	if rec.Title != "Song B" {
		t.Errorf("out-of-band fetch not merged: %q", rec.Title)
	}
	if len(bridge.media) == 0 || bridge.media[len(bridge.media)-1].ID != ":1.40" {
		t.Error("new player not surfaced")
	}
}

func TestHandleOwnerChange_LossRemovesAndReselects(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	caller := mocks.NewMockCaller(ctrl)
	caller.EXPECT().
		PlayerProperties(gomock.Any(), gomock.Any()).
		Return(domain.PlayerUpdate{}, nil).
		AnyTimes()

	agg, bridge, _ := newTestAggregator(t, caller, stubResolver{})

	agg.names["org.mpris.MediaPlayer2.spotify"] = ":1.50"
	agg.merge(":1.50", domain.PlayerUpdate{
		Status: domain.Status(domain.StatusPlaying),
		Title:  domain.String("Active Song"),
	})
	agg.merge(":1.60", domain.PlayerUpdate{
		Status: domain.Status(domain.StatusPaused),
		Title:  domain.String("Waiting Song"),
	})
	agg.refresh(context.Background())

	if agg.activeID != ":1.50" {
		t.Fatalf("expected :1.50 active, got %q", agg.activeID)
	}

	agg.handleEvent(context.Background(), domain.BusEvent{
		Kind:     domain.EventOwnerChanged,
		Name:     "org.mpris.MediaPlayer2.spotify",
		OldOwner: ":1.50",
	})

	if _, ok := agg.players[":1.50"]; ok {
		t.Error("record not removed on owner loss")
	}
	if _, ok := agg.names["org.mpris.MediaPlayer2.spotify"]; ok {
		t.Error("name mapping not removed on owner loss")
	}
	if agg.activeID != ":1.60" {
		t.Errorf("selection must move to the surviving player, got %q", agg.activeID)
	}
	last := bridge.media[len(bridge.media)-1]
	if last.ID != ":1.60" {
		t.Errorf("projection still shows the removed player: %+v", last)
	}
}

func TestPollCycle_PurgesVanishedAndPreservesOnFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	caller := mocks.NewMockCaller(ctrl)

	agg, _, _ := newTestAggregator(t, caller,
		stubResolver{"org.mpris.MediaPlayer2.spotify": "Spotify"})

	agg.merge(":1.70", domain.PlayerUpdate{Title: domain.String("Gone Soon")})
	agg.merge(":1.80", domain.PlayerUpdate{Title: domain.String("Still Here")})
	agg.names["org.mpris.MediaPlayer2.spotify"] = ":1.80"

	// First cycle: only spotify is still registered
	caller.EXPECT().ListNames(gomock.Any()).Return([]string{
		"org.freedesktop.DBus",
		"org.mpris.MediaPlayer2.spotify",
	}, nil)
	caller.EXPECT().NameOwner(gomock.Any(), "org.mpris.MediaPlayer2.spotify").Return(":1.80", nil)
	caller.EXPECT().PlayerProperties(gomock.Any(), gomock.Any()).
		Return(domain.PlayerUpdate{}, nil).AnyTimes()

	agg.pollCycle(context.Background())

	if _, ok := agg.players[":1.70"]; ok {
		t.Error("vanished player not purged")
	}
	if _, ok := agg.players[":1.80"]; !ok {
		t.Fatal("live player purged")
	}
	if agg.players[":1.80"].DisplayName != "Spotify" {
		t.Errorf("identity not applied during poll: %q", agg.players[":1.80"].DisplayName)
	}

	// Second cycle: transport failure preserves the last known state
	caller.EXPECT().ListNames(gomock.Any()).Return(nil, context.DeadlineExceeded)
	agg.pollCycle(context.Background())

	if _, ok := agg.players[":1.80"]; !ok {
		t.Error("listing failure blanked the state table")
	}
}

func TestPollCycle_OwnerLookupFailureKeepsPlayer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	caller := mocks.NewMockCaller(ctrl)

	agg, _, _ := newTestAggregator(t, caller, stubResolver{})

	agg.names["org.mpris.MediaPlayer2.spotify"] = ":1.80"
	agg.merge(":1.80", domain.PlayerUpdate{Title: domain.String("Still Here")})

	// The name is still listed; only the owner lookup times out. That is a
	// transport failure, not a departure, so the record must survive.
	caller.EXPECT().ListNames(gomock.Any()).Return([]string{
		"org.mpris.MediaPlayer2.spotify",
	}, nil)
	caller.EXPECT().NameOwner(gomock.Any(), "org.mpris.MediaPlayer2.spotify").
		Return("", context.DeadlineExceeded)
	caller.EXPECT().PlayerProperties(gomock.Any(), gomock.Any()).
		Return(domain.PlayerUpdate{}, nil).AnyTimes()

	agg.pollCycle(context.Background())

	rec, ok := agg.players[":1.80"]
	if !ok {
		t.Fatal("transient owner-lookup failure purged a live player")
	}
	if rec.Title != "Still Here" {
		t.Errorf("record state lost: %+v", rec)
	}
	if agg.names["org.mpris.MediaPlayer2.spotify"] != ":1.80" {
		t.Error("name mapping lost on transient failure")
	}
}

func TestProject_DeduplicatesDisplayNames(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	agg, bridge, _ := newTestAggregator(t, mocks.NewMockCaller(ctrl), stubResolver{})

	agg.merge(":1.1", domain.PlayerUpdate{Title: domain.String("One")})
	agg.merge(":1.2", domain.PlayerUpdate{Title: domain.String("Two")})
	agg.setDisplayName(":1.1", "Firefox")
	agg.setDisplayName(":1.2", "Firefox")

	agg.project()

	list := bridge.lists[len(bridge.lists)-1]
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
	names := map[string]bool{}
	for _, e := range list {
		names[e.DisplayName] = true
	}
	if !names["Firefox"] || !names["Firefox 2"] {
		t.Errorf("expected numeric suffix de-duplication, got %+v", list)
	}
}

func TestHandleCommand_GhostTargetIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	// No Call expectation: dispatching to a ghost must never hit the bus
	agg, _, _ := newTestAggregator(t, mocks.NewMockCaller(ctrl), stubResolver{})

	agg.handleCommand(domain.Command{Action: domain.ActionNext, Target: ":1.99"})
}

func TestHandleCommand_VolumeRoutesToMixer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	agg, _, mix := newTestAggregator(t, mocks.NewMockCaller(ctrl), stubResolver{})

	agg.handleCommand(domain.Command{Action: domain.ActionSetVolume, Volume: 55})

	select {
	case v := <-mix.setCalls:
		if v != 55 {
			t.Errorf("expected volume 55, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("mixer never invoked")
	}
}
