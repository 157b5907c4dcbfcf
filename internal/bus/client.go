// Package bus talks to the D-Bus session bus, either through an in-process
// connection (godbus) or by shelling out to the gdbus tool. Both backends
// satisfy the same Caller contract so everything above them is agnostic to
// the transport.
package bus

import (
	"context"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/genricoloni/mediad/internal/domain"
)

const (
	// NamePrefix is the well-known name namespace all MPRIS players
	// register under
	NamePrefix = "org.mpris.MediaPlayer2."

	// ObjectPath is the fixed MPRIS object path
	ObjectPath = "/org/mpris/MediaPlayer2"

	// PlayerInterface exposes playback control and state
	PlayerInterface = "org.mpris.MediaPlayer2.Player"

	// RootInterface exposes Identity and DesktopEntry
	RootInterface = "org.mpris.MediaPlayer2"

	busService = "org.freedesktop.DBus"
	busPath    = "/org/freedesktop/DBus"
)

// Caller is the introspection/control surface both bus backends implement.
//
//go:generate mockgen -destination=mocks/caller_mock.go -package=mocks github.com/genricoloni/mediad/internal/bus Caller
type Caller interface {
	// ListNames returns every name currently registered on the bus
	ListNames(ctx context.Context) ([]string, error)

	// NameOwner resolves a well-known name to its owning connection id
	NameOwner(ctx context.Context, name string) (string, error)

	// ConnectionPID returns the unix process id owning a bus name
	ConnectionPID(ctx context.Context, name string) (uint32, error)

	// StringProperty reads one string-valued property from a player's
	// MPRIS object. prop is the short name, iface the owning interface.
	StringProperty(ctx context.Context, dest, iface, prop string) (string, error)

	// PlayerProperties reads PlaybackStatus and Metadata in one go and
	// folds them into a partial update. Individual read failures yield
	// absent fields, not an error; the error is reserved for total failure.
	PlayerProperties(ctx context.Context, dest string) (domain.PlayerUpdate, error)

	// Call invokes a control method on a player's Player interface.
	// member is the short method name (PlayPause, Next, ...).
	Call(ctx context.Context, dest, member string, args ...interface{}) error
}

// Client is the in-process godbus backend
type Client struct {
	conn    *dbus.Conn
	timeout time.Duration
}

// NewClient connects to the session bus
func NewClient(timeout time.Duration) (*Client, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, timeout: timeout}, nil
}

// Close closes the bus connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Conn exposes the underlying connection for signal subscription
func (c *Client) Conn() *dbus.Conn {
	return c.conn
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// ListNames returns all names on the bus
func (c *Client) ListNames(ctx context.Context) ([]string, error) {
	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	var names []string
	err := c.conn.BusObject().CallWithContext(callCtx, busService+".ListNames", 0).Store(&names)
	return names, err
}

// NameOwner returns the connection id that owns the given well-known name
func (c *Client) NameOwner(ctx context.Context, name string) (string, error) {
	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	var owner string
	err := c.conn.BusObject().CallWithContext(callCtx, busService+".GetNameOwner", 0, name).Store(&owner)
	return owner, err
}

// ConnectionPID returns the process id behind a bus name
func (c *Client) ConnectionPID(ctx context.Context, name string) (uint32, error) {
	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	var pid uint32
	err := c.conn.BusObject().CallWithContext(callCtx, busService+".GetConnectionUnixProcessID", 0, name).Store(&pid)
	return pid, err
}

func (c *Client) property(ctx context.Context, dest, iface, prop string) (dbus.Variant, error) {
	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	obj := c.conn.Object(dest, ObjectPath)
	var v dbus.Variant
	err := obj.CallWithContext(callCtx, "org.freedesktop.DBus.Properties.Get", 0, iface, prop).Store(&v)
	return v, err
}

// StringProperty reads a string property from the player's MPRIS object
func (c *Client) StringProperty(ctx context.Context, dest, iface, prop string) (string, error) {
	v, err := c.property(ctx, dest, iface, prop)
	if err != nil {
		return "", err
	}
	s, ok := v.Value().(string)
	if !ok {
		return "", nil
	}
	return s, nil
}

// PlayerProperties reads PlaybackStatus and Metadata for dest
func (c *Client) PlayerProperties(ctx context.Context, dest string) (domain.PlayerUpdate, error) {
	var u domain.PlayerUpdate

	statusVar, statusErr := c.property(ctx, dest, PlayerInterface, "PlaybackStatus")
	if statusErr == nil {
		if s, ok := statusVar.Value().(string); ok {
			u.Status = domain.Status(domain.ParseStatus(s))
		}
	}

	metaVar, metaErr := c.property(ctx, dest, PlayerInterface, "Metadata")
	if metaErr == nil {
		if meta, ok := metaVar.Value().(map[string]dbus.Variant); ok {
			mergeMetadata(&u, meta)
		}
	}

	if statusErr != nil && metaErr != nil {
		return u, statusErr
	}
	return u, nil
}

// Call invokes a Player interface method on dest
func (c *Client) Call(ctx context.Context, dest, member string, args ...interface{}) error {
	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	obj := c.conn.Object(dest, ObjectPath)
	return obj.CallWithContext(callCtx, PlayerInterface+"."+member, 0, args...).Err
}

// mergeMetadata folds an MPRIS metadata map into a partial update.
// Absent or malformed entries simply leave the corresponding field nil.
func mergeMetadata(u *domain.PlayerUpdate, meta map[string]dbus.Variant) {
	if v, ok := meta["xesam:title"]; ok {
		if s, ok := v.Value().(string); ok {
			u.Title = domain.String(s)
		}
	}

	// Artist is a string array per the MPRIS spec, but some players emit a
	// plain string; take the scalar or the first element
	if v, ok := meta["xesam:artist"]; ok {
		switch artists := v.Value().(type) {
		case []string:
			if len(artists) > 0 {
				u.Artist = domain.String(artists[0])
			}
		case string:
			u.Artist = domain.String(artists)
		}
	}

	if v, ok := meta["xesam:album"]; ok {
		if s, ok := v.Value().(string); ok {
			u.Album = domain.String(s)
		}
	}

	if v, ok := meta["mpris:artUrl"]; ok {
		if s, ok := v.Value().(string); ok && s != "" {
			u.ArtURL = domain.String(s)
		}
	}

	if v, ok := meta["xesam:url"]; ok {
		if s, ok := v.Value().(string); ok && s != "" {
			u.SourceURL = domain.String(s)
		}
	}

	if v, ok := meta["mpris:trackid"]; ok {
		switch id := v.Value().(type) {
		case dbus.ObjectPath:
			u.TrackID = domain.String(string(id))
		case string:
			u.TrackID = domain.String(id)
		}
	}
}
