package naming

import (
	"strings"
	"unicode"
)

const (
	SourceLongName  = "long_name"
	SourceShortName = "short_name"
	SourceNodeID    = "node_id"
)

type Candidate struct {
	Name   string
	Source string
}

type normalizedCandidate struct {
	Source      string
	DisplayName string
	Score       int
}

// NormalizeCandidate cleans a raw name reported for a mesh node and scores it.
func NormalizeCandidate(source, rawName string) (displayName string, score int, ok bool) {
	source = strings.ToLower(strings.TrimSpace(source))
	name := strings.TrimFunc(rawName, func(r rune) bool {
		return unicode.IsSpace(r) || !unicode.IsPrint(r)
	})
	if name == "" {
		return "", 0, false
	}

	s := scoreCandidate(source, name)
	if s < 0 {
		return name, s, false
	}
	return name, s, true
}

// ChooseBestDisplayName picks the most descriptive name among candidates.
func ChooseBestDisplayName(candidates []Candidate) (string, bool) {
	best := normalizedCandidate{Score: -1_000_000}

	for _, c := range candidates {
		display, score, ok := NormalizeCandidate(c.Source, c.Name)
		if !ok {
			continue
		}
		next := normalizedCandidate{
			Source:      c.Source,
			DisplayName: display,
			Score:       score,
		}
		if betterCandidate(next, best) {
			best = next
		}
	}

	if best.Score < 0 || strings.TrimSpace(best.DisplayName) == "" {
		return "", false
	}
	return best.DisplayName, true
}

// NodeDisplayName returns long name, then short name, then the node id.
func NodeDisplayName(nodeID, longName, shortName string) string {
	name, ok := ChooseBestDisplayName([]Candidate{
		{Name: longName, Source: SourceLongName},
		{Name: shortName, Source: SourceShortName},
		{Name: nodeID, Source: SourceNodeID},
	})
	if !ok {
		return nodeID
	}
	return name
}

// ShortName returns the reported short name, or the last four characters of
// the node id when the node never announced one.
func ShortName(nodeID, shortName string) string {
	if display, _, ok := NormalizeCandidate(SourceShortName, shortName); ok {
		return display
	}
	id := strings.TrimPrefix(strings.TrimSpace(nodeID), "!")
	if len(id) <= 4 {
		return id
	}
	return id[len(id)-4:]
}

func betterCandidate(a, b normalizedCandidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	// Stable tie-breaker.
	return a.DisplayName < b.DisplayName
}

func scoreCandidate(source, name string) int {
	if looksGarbage(strings.ToLower(name)) {
		return -1
	}

	base := 10
	switch source {
	case SourceLongName:
		base = 90
	case SourceShortName:
		base = 70
	case SourceNodeID:
		base = 20
	}

	// Single-character labels are usually emoji placeholders.
	if len([]rune(name)) < 2 {
		base -= 30
	}
	return base
}

func looksGarbage(normalized string) bool {
	switch normalized {
	case "", "unknown", "none", "null", "n/a":
		return true
	}
	return false
}
