package feed

import (
	"fmt"
	"strings"

	"github.com/tidewave/cruisesync/internal/pkg/env"
)

// Precedence is the ordered list of pricing sources to consult; the first
// source with a non-empty matrix wins. The legacy fallback chain was inferred
// from observed behavior rather than a confirmed business rule, so it is
// configuration (FEED_PRICE_PRECEDENCE), not code.
// TODO(product): confirm whether cached prices should ever outrank live ones
// for lines that publish both.
type Precedence []string

// DefaultPrecedence mirrors the historical order: live fields first, the
// cached sub-object next, the combined object last.
func DefaultPrecedence() Precedence {
	return Precedence{SourceLive, SourceCached, SourceCombined}
}

// LoadPrecedence reads the precedence policy from the environment.
func LoadPrecedence() (Precedence, error) {
	raw := env.GetEnv("FEED_PRICE_PRECEDENCE", "")
	if raw == "" {
		return DefaultPrecedence(), nil
	}
	return ParsePrecedence(raw)
}

// ParsePrecedence parses a comma-separated source list ("live,cached,combined").
func ParsePrecedence(raw string) (Precedence, error) {
	var p Precedence
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		source := strings.ToLower(strings.TrimSpace(part))
		if source == "" {
			continue
		}
		switch source {
		case SourceLive, SourceCached, SourceCombined:
			if !seen[source] {
				seen[source] = true
				p = append(p, source)
			}
		default:
			return nil, fmt.Errorf("unknown pricing source %q in precedence policy", source)
		}
	}
	if len(p) == 0 {
		return nil, fmt.Errorf("empty pricing precedence policy %q", raw)
	}
	return p, nil
}

// SelectMatrix returns the winning pricing matrix under the given policy and
// the name of the source it came from. An empty matrix with a true ok flag
// means the document legitimately priced nothing (sold-out sailing).
func (d *Document) SelectMatrix(policy Precedence) (Matrix, string, bool) {
	if len(policy) == 0 {
		policy = DefaultPrecedence()
	}
	var firstPresent Matrix
	firstSource := ""
	for _, source := range policy {
		m := d.matrixBySource(source)
		if m == nil {
			continue
		}
		if firstPresent == nil {
			firstPresent = m
			firstSource = source
		}
		if len(m) > 0 {
			return m, source, true
		}
	}
	if firstPresent != nil {
		return firstPresent, firstSource, true
	}
	return nil, "", false
}
