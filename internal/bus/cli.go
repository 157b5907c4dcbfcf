package bus

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/genricoloni/mediad/internal/domain"
)

// CLIClient is the out-of-process bus backend. It drives the gdbus tool
// through a Runner and parses the GVariant text replies. Used when an
// in-process session bus connection is unavailable; the text parsing is
// confined to this file so the backend stays swappable.
type CLIClient struct {
	runner Runner
}

// NewCLIClient creates a gdbus-backed bus caller
func NewCLIClient(runner Runner) *CLIClient {
	return &CLIClient{runner: runner}
}

var (
	quotedRe   = regexp.MustCompile(`'((?:[^'\\]|\\.)*)'`)
	variantRe  = regexp.MustCompile(`\(<'((?:[^'\\]|\\.)*)'>,\)`)
	uint32Re   = regexp.MustCompile(`uint32 (\d+)`)
	trackIDRe  = regexp.MustCompile(`'mpris:trackid': <(?:objectpath )?'([^']*)'`)
	artistRe   = regexp.MustCompile(`'xesam:artist': <\[?'((?:[^'\\]|\\.)*)'`)
	statusRe   = regexp.MustCompile(`'(Playing|Paused|Stopped)'`)
	metaFields = map[string]*regexp.Regexp{
		"title":  regexp.MustCompile(`'xesam:title': <'((?:[^'\\]|\\.)*)'>`),
		"album":  regexp.MustCompile(`'xesam:album': <'((?:[^'\\]|\\.)*)'>`),
		"artUrl": regexp.MustCompile(`'mpris:artUrl': <'((?:[^'\\]|\\.)*)'>`),
		"url":    regexp.MustCompile(`'xesam:url': <'((?:[^'\\]|\\.)*)'>`),
	}
)

// unescape undoes gdbus single-quote escaping in matched strings
func unescape(s string) string {
	s = strings.ReplaceAll(s, `\'`, `'`)
	return strings.ReplaceAll(s, `\\`, `\`)
}

func (c *CLIClient) call(ctx context.Context, dest, path, method string, args ...string) (string, error) {
	cmdArgs := []string{
		"call", "--session",
		"--dest", dest,
		"--object-path", path,
		"--method", method,
	}
	cmdArgs = append(cmdArgs, args...)
	return c.runner.Run(ctx, "gdbus", cmdArgs...)
}

// ListNames returns every name registered on the bus
func (c *CLIClient) ListNames(ctx context.Context) ([]string, error) {
	out, err := c.call(ctx, busService, busPath, busService+".ListNames")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, m := range quotedRe.FindAllStringSubmatch(out, -1) {
		names = append(names, unescape(m[1]))
	}
	return names, nil
}

// NameOwner resolves a well-known name to its connection id
func (c *CLIClient) NameOwner(ctx context.Context, name string) (string, error) {
	out, err := c.call(ctx, busService, busPath, busService+".GetNameOwner", name)
	if err != nil {
		return "", err
	}
	m := quotedRe.FindStringSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("unparseable GetNameOwner reply: %q", out)
	}
	return unescape(m[1]), nil
}

// ConnectionPID returns the process id behind a bus name
func (c *CLIClient) ConnectionPID(ctx context.Context, name string) (uint32, error) {
	out, err := c.call(ctx, busService, busPath, busService+".GetConnectionUnixProcessID", name)
	if err != nil {
		return 0, err
	}
	m := uint32Re.FindStringSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("unparseable GetConnectionUnixProcessID reply: %q", out)
	}
	pid, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(pid), nil
}

// StringProperty reads one string property via org.freedesktop.DBus.Properties.Get
func (c *CLIClient) StringProperty(ctx context.Context, dest, iface, prop string) (string, error) {
	out, err := c.call(ctx, dest, ObjectPath, "org.freedesktop.DBus.Properties.Get", iface, prop)
	if err != nil {
		return "", err
	}
	m := variantRe.FindStringSubmatch(out)
	if m == nil {
		return "", nil
	}
	return unescape(m[1]), nil
}

// PlayerProperties reads PlaybackStatus and Metadata, folding both into a
// partial update. Either read failing yields absent fields; both failing is
// a total failure.
func (c *CLIClient) PlayerProperties(ctx context.Context, dest string) (domain.PlayerUpdate, error) {
	var u domain.PlayerUpdate

	statusOut, statusErr := c.call(ctx, dest, ObjectPath,
		"org.freedesktop.DBus.Properties.Get", PlayerInterface, "PlaybackStatus")
	if statusErr == nil {
		if m := statusRe.FindStringSubmatch(statusOut); m != nil {
			u.Status = domain.Status(domain.ParseStatus(m[1]))
		}
	}

	metaOut, metaErr := c.call(ctx, dest, ObjectPath,
		"org.freedesktop.DBus.Properties.Get", PlayerInterface, "Metadata")
	if metaErr == nil {
		parseMetadataText(&u, metaOut)
	}

	if statusErr != nil && metaErr != nil {
		return u, statusErr
	}
	return u, nil
}

// parseMetadataText extracts metadata fields from a GVariant text dump.
// Each field is matched independently; a miss is simply no update.
func parseMetadataText(u *domain.PlayerUpdate, out string) {
	if m := metaFields["title"].FindStringSubmatch(out); m != nil {
		u.Title = domain.String(unescape(m[1]))
	}
	if m := artistRe.FindStringSubmatch(out); m != nil {
		u.Artist = domain.String(unescape(m[1]))
	}
	if m := metaFields["album"].FindStringSubmatch(out); m != nil {
		u.Album = domain.String(unescape(m[1]))
	}
	if m := metaFields["artUrl"].FindStringSubmatch(out); m != nil && m[1] != "" {
		u.ArtURL = domain.String(unescape(m[1]))
	}
	if m := metaFields["url"].FindStringSubmatch(out); m != nil && m[1] != "" {
		u.SourceURL = domain.String(unescape(m[1]))
	}
	if m := trackIDRe.FindStringSubmatch(out); m != nil {
		u.TrackID = domain.String(m[1])
	}
}

// Call invokes a Player interface control method on dest
func (c *CLIClient) Call(ctx context.Context, dest, member string, args ...interface{}) error {
	var cliArgs []string
	for _, a := range args {
		switch v := a.(type) {
		case dbus.ObjectPath:
			cliArgs = append(cliArgs, string(v))
		case string:
			cliArgs = append(cliArgs, v)
		case int64:
			cliArgs = append(cliArgs, strconv.FormatInt(v, 10))
		default:
			cliArgs = append(cliArgs, fmt.Sprintf("%v", v))
		}
	}
	_, err := c.call(ctx, dest, ObjectPath, PlayerInterface+"."+member, cliArgs...)
	return err
}
