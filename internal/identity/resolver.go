// Package identity resolves ambiguous bus names into stable human-facing
// player names.
package identity

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/genricoloni/mediad/internal/bus"
	"github.com/genricoloni/mediad/internal/domain"
)

// ProcessInspector reads the command line of a process. Best-effort: a
// missing process is an error the resolver treats as "no signal".
type ProcessInspector interface {
	CommandLine(pid uint32) (string, error)
}

// PsInspector is the real inspector backed by the process table
type PsInspector struct{}

// CommandLine returns the full command line of pid
func (PsInspector) CommandLine(pid uint32) (string, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", err
	}
	return p.Cmdline()
}

// Pinned capitalizations for brand tokens the naive title-caser would
// mangle.
var pinnedCaps = map[string]string{
	"vlc":      "VLC",
	"mpv":      "mpv",
	"mpd":      "MPD",
	"spotify":  "Spotify",
	"youtube":  "YouTube",
	"firefox":  "Firefox",
	"chromium": "Chromium",
	"chrome":   "Chrome",
	"zen":      "Zen",
}

// Release-channel markers scanned for in every textual identity signal.
// Order matters only for log stability.
var channelSuffixes = []struct {
	marker string
	suffix string
}{
	{"beta", "Beta"},
	{"canary", "Canary"},
	{"dev", "Dev"},
}

// Segments like "instance123" or "instance_1_23" are per-process noise
// appended by multi-instance players.
var instanceSegmentRe = regexp.MustCompile(`^(instance[_0-9]*|[0-9]+)$`)

// Resolver maps well-known bus names to display names. Results are cached
// for the process lifetime; a player relaunching under the same name keeps
// its first resolved identity (accepted staleness).
type Resolver struct {
	logger *zap.Logger
	bus    bus.Caller
	procs  ProcessInspector

	mu    sync.Mutex
	cache map[string]string
}

// NewResolver creates a resolver on top of a bus caller and the process table
func NewResolver(logger *zap.Logger, caller bus.Caller, procs ProcessInspector) *Resolver {
	return &Resolver{
		logger: logger,
		bus:    caller,
		procs:  procs,
		cache:  make(map[string]string),
	}
}

// Resolve returns the display name for a well-known name. It never fails:
// every individual lookup that errors is treated as one missing signal, and
// only a total miss yields the generic placeholder (which is not cached, so
// a later attempt may still upgrade it).
func (r *Resolver) Resolve(ctx context.Context, wellKnown string) string {
	r.mu.Lock()
	if cached, ok := r.cache[wellKnown]; ok {
		r.mu.Unlock()
		return cached
	}
	r.mu.Unlock()

	mprisIdentity, err := r.bus.StringProperty(ctx, wellKnown, bus.RootInterface, "Identity")
	if err != nil {
		r.logger.Debug("Identity property unavailable",
			zap.String("name", wellKnown), zap.Error(err))
	}

	desktopEntry, _ := r.bus.StringProperty(ctx, wellKnown, bus.RootInterface, "DesktopEntry")

	cmdline := r.commandLine(ctx, wellKnown)

	name := strings.TrimSpace(mprisIdentity)
	if name == "" {
		name = Beautify(wellKnown)
	}
	if name == "" {
		return domain.GenericPlayerName
	}

	name = decorateChannel(name, wellKnown, desktopEntry, cmdline)

	r.mu.Lock()
	r.cache[wellKnown] = name
	r.mu.Unlock()

	r.logger.Debug("Resolved player identity",
		zap.String("name", wellKnown),
		zap.String("display", name))
	return name
}

// commandLine resolves the owning connection and reads its process command
// line. Absence at any step is not an error.
func (r *Resolver) commandLine(ctx context.Context, wellKnown string) string {
	owner, err := r.bus.NameOwner(ctx, wellKnown)
	if err != nil {
		return ""
	}
	pid, err := r.bus.ConnectionPID(ctx, owner)
	if err != nil {
		return ""
	}
	cmdline, err := r.procs.CommandLine(pid)
	if err != nil {
		return ""
	}
	return cmdline
}

// Beautify derives a readable name from a well-known bus name when the
// player exposes no Identity: strip the protocol prefix, drop instance
// segments, turn punctuation into spaces and title-case what remains.
func Beautify(wellKnown string) string {
	name := strings.TrimPrefix(wellKnown, bus.NamePrefix)
	if name == "" {
		return ""
	}

	var kept []string
	for _, seg := range strings.Split(name, ".") {
		if instanceSegmentRe.MatchString(strings.ToLower(seg)) {
			continue
		}
		kept = append(kept, seg)
	}

	flat := strings.Join(kept, " ")
	flat = strings.NewReplacer("_", " ", "-", " ").Replace(flat)

	var words []string
	for _, w := range strings.Fields(flat) {
		lower := strings.ToLower(w)
		if pinned, ok := pinnedCaps[lower]; ok {
			words = append(words, pinned)
			continue
		}
		words = append(words, strings.ToUpper(lower[:1])+lower[1:])
	}
	return strings.Join(words, " ")
}

// decorateChannel appends a release-channel suffix when any identity signal
// carries a channel marker the resolved name does not already mention.
func decorateChannel(name string, signals ...string) string {
	haystack := strings.ToLower(strings.Join(signals, " "))
	lowerName := strings.ToLower(name)

	for _, ch := range channelSuffixes {
		if strings.Contains(haystack, ch.marker) && !strings.Contains(lowerName, ch.marker) {
			return name + " " + ch.suffix
		}
	}
	return name
}
