package viewscale

import (
	"fmt"
	"strings"

	"github.com/wonny/marketviews/internal/contracts"
)

// Scale is an ordered view enumeration, lowest stance first.
// Ranks are 1-based; 0 is reserved for N/A and non-members.
// ⭐ SSOT: every ordinal projection and tie-break reads its order from a Scale
type Scale struct {
	name   string
	levels []contracts.View
	rank   map[contracts.View]int
}

// New builds a scale from levels ordered lowest → highest
func New(name string, levels []contracts.View) (*Scale, error) {
	if len(levels) < 2 {
		return nil, fmt.Errorf("scale %q: at least two levels required, got %d", name, len(levels))
	}

	rank := make(map[contracts.View]int, len(levels))
	for i, level := range levels {
		if strings.TrimSpace(string(level)) == "" {
			return nil, fmt.Errorf("scale %q: level %d is empty", name, i)
		}
		if level.IsSentinel() {
			return nil, fmt.Errorf("scale %q: %q is a reserved label", name, level)
		}
		if _, dup := rank[level]; dup {
			return nil, fmt.Errorf("scale %q: duplicate level %q", name, level)
		}
		rank[level] = i + 1
	}

	copied := make([]contracts.View, len(levels))
	copy(copied, levels)

	return &Scale{name: name, levels: copied, rank: rank}, nil
}

// MustNew is New for static tables
func MustNew(name string, levels []contracts.View) *Scale {
	s, err := New(name, levels)
	if err != nil {
		panic(err)
	}
	return s
}

// Built-in scales
var (
	Canonical = MustNew("canonical", []contracts.View{
		contracts.Underweight,
		contracts.Neutral,
		contracts.Overweight,
	})

	Extended = MustNew("extended", []contracts.View{
		contracts.StrongUnderweight,
		contracts.Underweight,
		contracts.Neutral,
		contracts.Overweight,
		contracts.StrongOverweight,
	})
)

// ByName returns a built-in scale
func ByName(name string) (*Scale, error) {
	switch name {
	case "canonical", "":
		return Canonical, nil
	case "extended":
		return Extended, nil
	default:
		return nil, fmt.Errorf("unknown scale %q", name)
	}
}

// Name returns the scale name
func (s *Scale) Name() string {
	return s.name
}

// Levels returns a copy of the levels, lowest first
func (s *Scale) Levels() []contracts.View {
	out := make([]contracts.View, len(s.levels))
	copy(out, s.levels)
	return out
}

// Contains reports whether v is a member (exact, case-sensitive)
func (s *Scale) Contains(v contracts.View) bool {
	_, ok := s.rank[v]
	return ok
}

// Rank returns the ordinal of v; N/A and unknown labels map to 0
func (s *Scale) Rank(v contracts.View) int {
	return s.rank[v]
}

// Higher returns the higher-ranked of a and b (a on equal rank)
func (s *Scale) Higher(a, b contracts.View) contracts.View {
	if s.Rank(b) > s.Rank(a) {
		return b
	}
	return a
}

// Labels returns the levels as plain strings, for prompts and help text
func (s *Scale) Labels() []string {
	out := make([]string, len(s.levels))
	for i, level := range s.levels {
		out[i] = string(level)
	}
	return out
}
