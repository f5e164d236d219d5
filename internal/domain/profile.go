package domain

import "strings"

// ProfileTarget identifies a recipient by profile URL. Compared by exact value.
type ProfileTarget string

func (p ProfileTarget) String() string { return string(p) }

// NormalizeProfile trims surrounding whitespace; the remaining value is opaque.
func NormalizeProfile(raw string) ProfileTarget {
	return ProfileTarget(strings.TrimSpace(raw))
}

// SentSet holds profiles already messaged successfully. It is always rebuilt
// from the ledger and never persisted on its own.
type SentSet map[ProfileTarget]struct{}

func NewSentSet() SentSet {
	return make(SentSet)
}

func (s SentSet) Has(p ProfileTarget) bool {
	_, ok := s[p]
	return ok
}

func (s SentSet) Add(p ProfileTarget) {
	s[p] = struct{}{}
}

func (s SentSet) Len() int { return len(s) }
