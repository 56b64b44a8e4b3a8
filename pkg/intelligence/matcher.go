package intelligence

import (
	"github.com/oceanbase/powermem-mcp/pkg/document"
)

// Neighbour is an existing memory returned by a similarity search.
type Neighbour struct {
	ID    string
	Title string
	Score float64
}

// Match is the outcome of comparing a candidate with its neighbours.
type Match struct {
	Signals Signals

	// Best is the closest neighbour, nil when there were none.
	Best *Neighbour

	// Similar lists the neighbours scoring above the update threshold,
	// closest first.
	Similar []Neighbour
}

// Matcher turns search hits into consolidation signals.
//
// It does not search by itself; callers run the nearest-neighbour query
// against the target collection and pass the hits in.
//
// Example usage:
//
//	matcher := NewMatcher(intelligence.DefaultPolicy())
//	match := matcher.Match(candidateTitle, neighbours)
//	action := matcher.Policy().Decide(match.Signals)
type Matcher struct {
	policy Policy
}

// NewMatcher creates a matcher using the given thresholds.
// Zero fields fall back to the defaults.
func NewMatcher(policy Policy) *Matcher {
	return &Matcher{policy: policy.withDefaults()}
}

// Policy returns the effective thresholds.
func (m *Matcher) Policy() Policy {
	return m.policy
}

// Match computes signals for a candidate titled title.
//
// Parameters:
//   - title: Title of the candidate memory (may be empty)
//   - neighbours: Search hits, in any order
//
// Returns the signals together with the closest and the similar neighbours.
func (m *Matcher) Match(title string, neighbours []Neighbour) Match {
	match := Match{Similar: []Neighbour{}}
	if len(neighbours) == 0 {
		return match
	}

	best := 0
	for i := range neighbours {
		if neighbours[i].Score > neighbours[best].Score {
			best = i
		}
	}
	b := neighbours[best]
	match.Best = &b
	match.Signals.Similarity = b.Score

	candidate := document.NormalizeTitle(title)
	match.Signals.TitleMatches = candidate != "" && candidate == document.NormalizeTitle(b.Title)

	// best first, then the rest in input order
	if b.Score > m.policy.UpdateThreshold {
		match.Similar = append(match.Similar, b)
	}
	for i, n := range neighbours {
		if i != best && n.Score > m.policy.UpdateThreshold {
			match.Similar = append(match.Similar, n)
		}
	}
	match.Signals.MultipleSimilarExist = len(match.Similar) >= m.policy.ClusterSize

	return match
}
