// Package stream parses the textual signal feed produced by the bus monitor
// tool into discrete event records. It exists for environments where the
// in-process bus connection is unavailable; it emits the same records as the
// native signal source, so the two are interchangeable.
package stream

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/genricoloni/mediad/internal/bus"
	"github.com/genricoloni/mediad/internal/domain"
)

// RecordKind classifies a raw record fragment
type RecordKind int

const (
	// KindUnknown is a fragment whose header has not arrived yet
	KindUnknown RecordKind = iota
	// KindOwnerChanged is a name-ownership-change record
	KindOwnerChanged
	// KindProperties is a property-change record
	KindProperties
)

// CompletenessPredicate decides whether a trailing fragment can be
// dispatched before its terminating boundary has been seen. The defaults
// are heuristics; they are pluggable per record kind so they can be
// hardened or replaced without touching the splitting logic.
type CompletenessPredicate func(fragment string) bool

var (
	// A record starts with "signal " at the beginning of a line
	recordStartRe = regexp.MustCompile(`(?m)^signal `)

	senderRe = regexp.MustCompile(`sender=(\S+)`)
	quotedRe = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)

	statusFieldRe  = regexp.MustCompile(`(?s)"PlaybackStatus"\s+variant\s+string "((?:[^"\\]|\\.)*)"`)
	titleFieldRe   = regexp.MustCompile(`(?s)"xesam:title"\s+variant\s+string "((?:[^"\\]|\\.)*)"`)
	artistArrayRe  = regexp.MustCompile(`(?s)"xesam:artist"\s+variant\s+array \[\s+string "((?:[^"\\]|\\.)*)"`)
	artistScalarRe = regexp.MustCompile(`(?s)"xesam:artist"\s+variant\s+string "((?:[^"\\]|\\.)*)"`)
	albumFieldRe   = regexp.MustCompile(`(?s)"xesam:album"\s+variant\s+string "((?:[^"\\]|\\.)*)"`)
	artFieldRe     = regexp.MustCompile(`(?s)"mpris:artUrl"\s+variant\s+string "((?:[^"\\]|\\.)*)"`)
	urlFieldRe     = regexp.MustCompile(`(?s)"xesam:url"\s+variant\s+string "((?:[^"\\]|\\.)*)"`)
	trackFieldRe   = regexp.MustCompile(`(?s)"mpris:trackid"\s+variant\s+object path "([^"]*)"`)
	volumeFieldRe  = regexp.MustCompile(`(?s)"Volume"\s+variant\s+double ([0-9.]+)`)
)

// Parser reassembles complete logical records from an arbitrarily fragmented
// byte stream and emits them as domain events.
type Parser struct {
	logger   *zap.Logger
	emit     func(domain.BusEvent)
	buf      strings.Builder
	complete map[RecordKind]CompletenessPredicate
}

// NewParser creates a parser that calls emit for every dispatched record
func NewParser(logger *zap.Logger, emit func(domain.BusEvent)) *Parser {
	return &Parser{
		logger: logger,
		emit:   emit,
		complete: map[RecordKind]CompletenessPredicate{
			KindOwnerChanged: ownerComplete,
			KindProperties:   propsComplete,
		},
	}
}

// SetCompleteness replaces the early-dispatch predicate for one record kind
func (p *Parser) SetCompleteness(kind RecordKind, pred CompletenessPredicate) {
	p.complete[kind] = pred
}

// Feed appends a chunk to the accumulation buffer and dispatches every
// record that can be split off. All fragments except the last are complete
// by construction (a new record started after them); the last is dispatched
// early only when its kind's completeness predicate passes, otherwise it is
// retained for continuation.
func (p *Parser) Feed(chunk []byte) {
	p.buf.Write(chunk)
	data := p.buf.String()

	starts := recordStartRe.FindAllStringIndex(data, -1)
	if len(starts) == 0 {
		// No record header yet; keep accumulating
		return
	}

	// Everything before the first header is remnants of an already
	// dispatched record (or preamble); it carries no header, so dropping
	// it cannot lose an event.
	var fragments []string
	for i, loc := range starts {
		end := len(data)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		fragments = append(fragments, data[loc[0]:end])
	}

	for _, frag := range fragments[:len(fragments)-1] {
		p.dispatch(frag)
	}

	last := fragments[len(fragments)-1]
	kind := classify(last)
	if pred, ok := p.complete[kind]; ok && pred(last) {
		p.dispatch(last)
		p.buf.Reset()
		return
	}

	p.buf.Reset()
	p.buf.WriteString(last)
}

// classify reads the record kind off the header line
func classify(frag string) RecordKind {
	header, _, _ := strings.Cut(frag, "\n")
	switch {
	case strings.Contains(header, "member=NameOwnerChanged"):
		return KindOwnerChanged
	case strings.Contains(header, "member=PropertiesChanged"):
		return KindProperties
	default:
		return KindUnknown
	}
}

// ownerComplete: an ownership record carries three quoted string arguments;
// require all three and a fragment ending on a quote or line boundary.
func ownerComplete(frag string) bool {
	if len(quotedRe.FindAllString(frag, -1)) < 3 {
		return false
	}
	return strings.HasSuffix(frag, `"`) || strings.HasSuffix(frag, "\n")
}

// propsComplete: a property record is a bracketed structure; require the
// brackets to balance and the fragment to end on a structural closer.
func propsComplete(frag string) bool {
	if strings.Count(frag, "[") == 0 {
		return false
	}
	if strings.Count(frag, "[") != strings.Count(frag, "]") {
		return false
	}
	if strings.Count(frag, "(") != strings.Count(frag, ")") {
		return false
	}
	trimmed := strings.TrimRight(frag, " \t\r\n")
	return strings.HasSuffix(trimmed, "]") || strings.HasSuffix(trimmed, ")")
}

func (p *Parser) dispatch(frag string) {
	switch classify(frag) {
	case KindOwnerChanged:
		p.dispatchOwnerChanged(frag)
	case KindProperties:
		p.dispatchProperties(frag)
	default:
		// Headerless remnant, nothing to do
	}
}

func (p *Parser) dispatchOwnerChanged(frag string) {
	args := quotedRe.FindAllStringSubmatch(frag, -1)
	if len(args) < 3 {
		p.logger.Debug("Dropping short ownership record")
		return
	}
	name := unescape(args[0][1])
	if !strings.HasPrefix(name, bus.NamePrefix) {
		return
	}
	p.emit(domain.BusEvent{
		Kind:     domain.EventOwnerChanged,
		Name:     name,
		OldOwner: unescape(args[1][1]),
		NewOwner: unescape(args[2][1]),
	})
}

func (p *Parser) dispatchProperties(frag string) {
	// The first body argument names the interface the properties belong to
	if !strings.Contains(frag, `"`+bus.PlayerInterface+`"`) {
		return
	}

	m := senderRe.FindStringSubmatch(frag)
	if m == nil {
		return
	}
	sender := m[1]

	// Each field is matched independently; absence yields no update for
	// that field rather than a parse failure.
	var u domain.PlayerUpdate
	if f := statusFieldRe.FindStringSubmatch(frag); f != nil {
		u.Status = domain.Status(domain.ParseStatus(unescape(f[1])))
	}
	if f := titleFieldRe.FindStringSubmatch(frag); f != nil {
		u.Title = domain.String(unescape(f[1]))
	}
	if f := artistArrayRe.FindStringSubmatch(frag); f != nil {
		u.Artist = domain.String(unescape(f[1]))
	} else if f := artistScalarRe.FindStringSubmatch(frag); f != nil {
		u.Artist = domain.String(unescape(f[1]))
	}
	if f := albumFieldRe.FindStringSubmatch(frag); f != nil {
		u.Album = domain.String(unescape(f[1]))
	}
	if f := artFieldRe.FindStringSubmatch(frag); f != nil && f[1] != "" {
		u.ArtURL = domain.String(unescape(f[1]))
	}
	if f := urlFieldRe.FindStringSubmatch(frag); f != nil && f[1] != "" {
		u.SourceURL = domain.String(unescape(f[1]))
	}
	if f := trackFieldRe.FindStringSubmatch(frag); f != nil {
		u.TrackID = domain.String(f[1])
	}
	if f := volumeFieldRe.FindStringSubmatch(frag); f != nil {
		if vol, err := strconv.ParseFloat(f[1], 64); err == nil {
			u.Volume = &vol
		}
	}

	if u.Empty() {
		return
	}
	p.emit(domain.BusEvent{
		Kind:   domain.EventProperties,
		Sender: sender,
		Update: u,
	})
}

func unescape(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	return strings.ReplaceAll(s, `\\`, `\`)
}
