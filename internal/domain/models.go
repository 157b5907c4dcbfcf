package domain

import "time"

// PlayerStatus represents the playback state of a media player
type PlayerStatus string

const (
	// StatusPlaying indicates the player is currently playing
	StatusPlaying PlayerStatus = "Playing"
	// StatusPaused indicates the player is paused
	StatusPaused PlayerStatus = "Paused"
	// StatusStopped indicates the player is stopped
	StatusStopped PlayerStatus = "Stopped"
)

// ParseStatus maps an MPRIS PlaybackStatus string to a PlayerStatus.
// Anything unrecognized (including an absent read) maps to Stopped.
func ParseStatus(s string) PlayerStatus {
	switch s {
	case "Playing":
		return StatusPlaying
	case "Paused":
		return StatusPaused
	default:
		return StatusStopped
	}
}

const (
	// GenericPlayerName is the display name assigned to a player whose
	// identity has not been resolved yet
	GenericPlayerName = "Media Player"
	// PlaceholderTitle is shown while a player has no usable title, and on
	// the sentinel record when no player exists at all
	PlaceholderTitle = "Nothing playing"
)

// PlayerRecord is the canonical state for one live bus connection.
// Keyed by the connection id, not the well-known name: a well-known name
// can migrate between owners, a connection id cannot.
type PlayerRecord struct {
	ConnectionID  string
	WellKnownName string
	DisplayName   string
	Status        PlayerStatus
	Title         string
	Artist        string
	Album         string
	ArtURL        string
	SourceURL     string
	TrackID       string

	// Volume is the player's own volume on the MPRIS 0-1 scale, distinct
	// from the system mixer volume; -1 until the player first reports one
	Volume float64

	// LastUpdated is bumped on every state mutation, stream or poll
	LastUpdated time.Time
	// LastManualRefresh throttles forced full re-queries of this player
	LastManualRefresh time.Time
}

// PlayerUpdate is a partial state delta. Nil fields are absent and must not
// overwrite existing record fields (additive merge).
type PlayerUpdate struct {
	WellKnownName *string
	Status        *PlayerStatus
	Title         *string
	Artist        *string
	Album         *string
	ArtURL        *string
	SourceURL     *string
	TrackID       *string
	Volume        *float64
}

// Empty reports whether the update carries no fields at all.
func (u PlayerUpdate) Empty() bool {
	return u.WellKnownName == nil && u.Status == nil && u.Title == nil &&
		u.Artist == nil && u.Album == nil && u.ArtURL == nil &&
		u.SourceURL == nil && u.TrackID == nil && u.Volume == nil
}

// String returns a pointer to s, for building PlayerUpdate literals.
func String(s string) *string { return &s }

// Status returns a pointer to st, for building PlayerUpdate literals.
func Status(st PlayerStatus) *PlayerStatus { return &st }

// Float returns a pointer to f, for building PlayerUpdate literals.
func Float(f float64) *float64 { return &f }

// EventKind discriminates the two bus event record types
type EventKind int

const (
	// EventOwnerChanged is a name-ownership-change record
	EventOwnerChanged EventKind = iota
	// EventProperties is a property-change record from a player
	EventProperties
)

// BusEvent is one logical event record from the bus, produced either by the
// native signal subscription or by the text stream parser. Both sources emit
// the same shape so the reconciler never sees which transport delivered it.
type BusEvent struct {
	Kind EventKind

	// Ownership-change fields
	Name     string
	OldOwner string
	NewOwner string

	// Property-change fields
	Sender string
	Update PlayerUpdate
}

// NowPlaying is the display record pushed on the media-update channel.
type NowPlaying struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"displayName"`
	Status      PlayerStatus `json:"status"`
	Title       string       `json:"title"`
	Artist      string       `json:"artist"`
	Album       string       `json:"album"`
	ArtURL      string       `json:"artUrl"`
	SourceURL   string       `json:"sourceUrl"`
	Volume      float64      `json:"volume"`
}

// Sentinel returns the fixed "no player detected" record.
func Sentinel() NowPlaying {
	return NowPlaying{
		Status: StatusStopped,
		Title:  PlaceholderTitle,
		Volume: -1,
	}
}

// PlayerListEntry is one row of the player-list-update projection.
type PlayerListEntry struct {
	DisplayName string       `json:"displayName"`
	ID          string       `json:"id"`
	Status      PlayerStatus `json:"status"`
	IsActive    bool         `json:"isActive"`
}

// CommandAction enumerates the user actions delivered by the display shell
type CommandAction string

const (
	ActionToggle    CommandAction = "toggle"
	ActionNext      CommandAction = "next"
	ActionPrevious  CommandAction = "previous"
	ActionRestart   CommandAction = "restart"
	ActionSetVolume CommandAction = "set-volume"
)

// Command is one discrete user action from the display shell. Target is an
// optional connection id; empty means "the current active selection".
type Command struct {
	Action CommandAction
	Target string
	Volume int
}
