// Package session owns the canonical player state table: it reconciles
// streamed and polled updates, selects the player to surface, and routes
// control commands back out.
package session

import (
	"sort"
	"strings"
	"time"

	"github.com/genricoloni/mediad/internal/domain"
)

// Selector ranks player records and picks the single one to surface.
// Pure and deterministic: identical inputs always produce the same winner.
type Selector struct {
	brands        []string
	recencyWindow time.Duration
}

// NewSelector creates a selector with a ranked brand list (lower index =
// higher priority, case-insensitive substring match on display names).
func NewSelector(brands []string, recencyWindow time.Duration) *Selector {
	lowered := make([]string, len(brands))
	for i, b := range brands {
		lowered[i] = strings.ToLower(b)
	}
	return &Selector{brands: lowered, recencyWindow: recencyWindow}
}

// Pick returns the best player, or nil when the table is empty.
func (s *Selector) Pick(players map[string]*domain.PlayerRecord) *domain.PlayerRecord {
	var best *domain.PlayerRecord
	for _, rec := range players {
		if best == nil || s.better(rec, best) {
			best = rec
		}
	}
	return best
}

// Rank returns all players ordered best-first.
func (s *Selector) Rank(players map[string]*domain.PlayerRecord) []*domain.PlayerRecord {
	out := make([]*domain.PlayerRecord, 0, len(players))
	for _, rec := range players {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return s.better(out[i], out[j])
	})
	return out
}

// better reports whether a outranks b. The comparison is a strict total
// order: status weight, then recency beyond the window, then brand rank,
// then metadata richness, with the connection id as the final tiebreak.
func (s *Selector) better(a, b *domain.PlayerRecord) bool {
	if wa, wb := statusWeight(a.Status), statusWeight(b.Status); wa != wb {
		return wa > wb
	}

	// A clearly fresher record wins; deltas inside the window are noise
	// and fall through to the remaining criteria
	if diff := a.LastUpdated.Sub(b.LastUpdated); diff > s.recencyWindow {
		return true
	} else if diff < -s.recencyWindow {
		return false
	}

	if ra, rb := s.brandRank(a.DisplayName), s.brandRank(b.DisplayName); ra != rb {
		return ra < rb
	}

	if qa, qb := richness(a), richness(b); qa != qb {
		return qa > qb
	}

	return a.ConnectionID < b.ConnectionID
}

func statusWeight(st domain.PlayerStatus) int {
	switch st {
	case domain.StatusPlaying:
		return 3
	case domain.StatusPaused:
		return 2
	default:
		return 1
	}
}

func (s *Selector) brandRank(displayName string) int {
	lower := strings.ToLower(displayName)
	for i, brand := range s.brands {
		if strings.Contains(lower, brand) {
			return i
		}
	}
	return len(s.brands)
}

// richness scores display metadata quality: artwork and a real album name
// each count.
func richness(rec *domain.PlayerRecord) int {
	score := 0
	if rec.ArtURL != "" {
		score++
	}
	if rec.Album != "" && rec.Album != domain.PlaceholderTitle {
		score++
	}
	return score
}
