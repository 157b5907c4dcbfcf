package stream

import (
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/genricoloni/mediad/internal/domain"
)

const ownerRecord = `signal time=1700000000.123456 sender=org.freedesktop.DBus -> destination=(null destination) serial=100 path=/org/freedesktop/DBus; interface=org.freedesktop.DBus; member=NameOwnerChanged
   string "org.mpris.MediaPlayer2.spotify"
   string ""
   string ":1.52"
`

const propsRecord = `signal time=1700000001.000000 sender=:1.52 -> destination=(null destination) serial=101 path=/org/mpris/MediaPlayer2; interface=org.freedesktop.DBus.Properties; member=PropertiesChanged
   string "org.mpris.MediaPlayer2.Player"
   array [
      dict entry(
         string "PlaybackStatus"
         variant             string "Playing"
      )
      dict entry(
         string "Metadata"
         variant             array [
               dict entry(
                  string "xesam:title"
                  variant                      string "Song Name"
               )
               dict entry(
                  string "xesam:artist"
                  variant                      array [
                        string "Some Artist"
                     ]
               )
               dict entry(
                  string "mpris:artUrl"
                  variant                      string "https://example.com/art.jpg"
               )
            ]
      )
   ]
   array [
   ]
`

const removalRecord = `signal time=1700000002.000000 sender=org.freedesktop.DBus -> destination=(null destination) serial=102 path=/org/freedesktop/DBus; interface=org.freedesktop.DBus; member=NameOwnerChanged
   string "org.mpris.MediaPlayer2.spotify"
   string ":1.52"
   string ""
`

func feed(t *testing.T, chunks [][]byte) []domain.BusEvent {
	t.Helper()
	var events []domain.BusEvent
	p := NewParser(zap.NewNop(), func(ev domain.BusEvent) {
		events = append(events, ev)
	})
	for _, c := range chunks {
		p.Feed(c)
	}
	return events
}

func chunkify(data string, size int) [][]byte {
	var chunks [][]byte
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		chunks = append(chunks, []byte(data[:n]))
		data = data[n:]
	}
	return chunks
}

// TestFeed_ChunkBoundaryInvariance verifies that arbitrarily fragmented
// delivery dispatches the same records as whole delivery.
func TestFeed_ChunkBoundaryInvariance(t *testing.T) {
	input := ownerRecord + propsRecord + removalRecord

	whole := feed(t, [][]byte{[]byte(input)})
	if len(whole) != 3 {
		t.Fatalf("whole feed: expected 3 events, got %d", len(whole))
	}

	for _, size := range []int{1, 3, 7, 16, 64, 512} {
		got := feed(t, chunkify(input, size))
		if !reflect.DeepEqual(whole, got) {
			t.Errorf("chunk size %d: events diverge from whole feed\nwhole: %+v\ngot:   %+v", size, whole, got)
		}
	}
}

func TestFeed_OwnerChangedFields(t *testing.T) {
	events := feed(t, [][]byte{[]byte(ownerRecord + removalRecord)})
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	gain := events[0]
	if gain.Kind != domain.EventOwnerChanged {
		t.Errorf("expected ownership event, got %v", gain.Kind)
	}
	if gain.Name != "org.mpris.MediaPlayer2.spotify" || gain.OldOwner != "" || gain.NewOwner != ":1.52" {
		t.Errorf("unexpected gain event: %+v", gain)
	}

	loss := events[1]
	if loss.OldOwner != ":1.52" || loss.NewOwner != "" {
		t.Errorf("unexpected loss event: %+v", loss)
	}
}

func TestFeed_PropertyFields(t *testing.T) {
	events := feed(t, [][]byte{[]byte(propsRecord)})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	ev := events[0]
	if ev.Kind != domain.EventProperties {
		t.Fatalf("expected property event, got %v", ev.Kind)
	}
	if ev.Sender != ":1.52" {
		t.Errorf("sender: expected :1.52, got %q", ev.Sender)
	}
	u := ev.Update
	if u.Status == nil || *u.Status != domain.StatusPlaying {
		t.Error("status not extracted")
	}
	if u.Title == nil || *u.Title != "Song Name" {
		t.Error("title not extracted")
	}
	if u.Artist == nil || *u.Artist != "Some Artist" {
		t.Error("first-of-array artist not extracted")
	}
	if u.ArtURL == nil || *u.ArtURL != "https://example.com/art.jpg" {
		t.Error("art url not extracted")
	}
	if u.Album != nil {
		t.Error("absent album must yield no update")
	}
}

// TestFeed_IncompleteRetained verifies a fragment that fails its
// completeness predicate stays buffered until a later chunk completes it.
func TestFeed_IncompleteRetained(t *testing.T) {
	// Cut inside the metadata array: brackets unbalanced
	cut := len(propsRecord) / 2

	var events []domain.BusEvent
	p := NewParser(zap.NewNop(), func(ev domain.BusEvent) {
		events = append(events, ev)
	})

	p.Feed([]byte(propsRecord[:cut]))
	if len(events) != 0 {
		t.Fatalf("incomplete record dispatched early: %+v", events)
	}

	p.Feed([]byte(propsRecord[cut:]))
	if len(events) != 1 {
		t.Fatalf("expected 1 event after completion, got %d", len(events))
	}
}

// TestFeed_CustomPredicate verifies the completeness heuristic is pluggable:
// a never-complete predicate defers dispatch until the next record header.
func TestFeed_CustomPredicate(t *testing.T) {
	var events []domain.BusEvent
	p := NewParser(zap.NewNop(), func(ev domain.BusEvent) {
		events = append(events, ev)
	})
	p.SetCompleteness(KindProperties, func(string) bool { return false })

	p.Feed([]byte(propsRecord))
	if len(events) != 0 {
		t.Fatal("predicate override ignored")
	}

	// The next header flushes the buffered property record, and the owner
	// record behind it is itself complete, so both dispatch
	p.Feed([]byte(ownerRecord))
	if len(events) != 2 {
		t.Fatalf("expected 2 events after next header, got %d", len(events))
	}
	if events[0].Kind != domain.EventProperties {
		t.Errorf("expected the buffered property record first, got %v", events[0].Kind)
	}
	if events[1].Kind != domain.EventOwnerChanged {
		t.Errorf("expected the ownership record second, got %v", events[1].Kind)
	}
}

// TestFeed_NonPlayerInterfaceIgnored verifies property records for other
// interfaces produce no events.
func TestFeed_NonPlayerInterfaceIgnored(t *testing.T) {
	record := `signal time=1.0 sender=:1.9 -> destination=(null destination) serial=7 path=/org/mpris/MediaPlayer2; interface=org.freedesktop.DBus.Properties; member=PropertiesChanged
   string "org.mpris.MediaPlayer2.Playlists"
   array [
      dict entry(
         string "PlaylistCount"
         variant             uint32 3
      )
   ]
   array [
   ]
`
	events := feed(t, [][]byte{[]byte(record)})
	if len(events) != 0 {
		t.Errorf("expected no events, got %+v", events)
	}
}

// TestFeed_NonMPRISNameIgnored verifies ownership changes for unrelated
// services are dropped.
func TestFeed_NonMPRISNameIgnored(t *testing.T) {
	record := `signal time=1.0 sender=org.freedesktop.DBus -> destination=(null destination) serial=8 path=/org/freedesktop/DBus; interface=org.freedesktop.DBus; member=NameOwnerChanged
   string "com.example.Service"
   string ""
   string ":1.77"
`
	events := feed(t, [][]byte{[]byte(record)})
	if len(events) != 0 {
		t.Errorf("expected no events, got %+v", events)
	}
}
