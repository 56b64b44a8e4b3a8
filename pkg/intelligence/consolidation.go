// Package intelligence decides how a candidate memory relates to the memories
// already stored next to it, and synthesizes generalized memories.
package intelligence

import "fmt"

// Action is the verdict of the consolidation policy.
type Action int

const (
	// ActionCreate stores the candidate as a new memory.
	ActionCreate Action = iota
	// ActionUpdate replaces the closest memory with the candidate.
	ActionUpdate
	// ActionMerge folds the candidate into a memory with the same title.
	ActionMerge
	// ActionGeneralize synthesizes a new memory from a cluster of similar ones.
	ActionGeneralize
)

// String returns the upper-case wire name of the action.
func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "CREATE"
	case ActionUpdate:
		return "UPDATE"
	case ActionMerge:
		return "MERGE"
	case ActionGeneralize:
		return "GENERALIZE"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Signals describes a candidate relative to the existing memories.
type Signals struct {
	// Similarity is the best cosine similarity against an existing memory.
	Similarity float64 `json:"similarity"`

	// TitleMatches is true when the closest memory carries the same title.
	TitleMatches bool `json:"title_matches"`

	// MultipleSimilarExist is true when several existing memories are close.
	MultipleSimilarExist bool `json:"multiple_similar_exist"`
}

const (
	// DefaultMergeThreshold is the similarity above which a title match merges.
	DefaultMergeThreshold = 0.85

	// DefaultUpdateThreshold is the similarity above which the closest memory is updated.
	DefaultUpdateThreshold = 0.65

	// DefaultClusterSize is how many close memories count as "multiple similar".
	DefaultClusterSize = 2

	// DefaultCandidates is how many neighbours are inspected.
	DefaultCandidates = 5
)

// Policy holds the consolidation thresholds.
type Policy struct {
	MergeThreshold  float64 `json:"merge_threshold" yaml:"merge_threshold"`
	UpdateThreshold float64 `json:"update_threshold" yaml:"update_threshold"`
	ClusterSize     int     `json:"cluster_size" yaml:"cluster_size"`
	Candidates      int     `json:"candidates" yaml:"candidates"`
}

// DefaultPolicy returns the documented thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MergeThreshold:  DefaultMergeThreshold,
		UpdateThreshold: DefaultUpdateThreshold,
		ClusterSize:     DefaultClusterSize,
		Candidates:      DefaultCandidates,
	}
}

// withDefaults fills zero fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MergeThreshold == 0 {
		p.MergeThreshold = d.MergeThreshold
	}
	if p.UpdateThreshold == 0 {
		p.UpdateThreshold = d.UpdateThreshold
	}
	if p.ClusterSize <= 0 {
		p.ClusterSize = d.ClusterSize
	}
	if p.Candidates <= 0 {
		p.Candidates = d.Candidates
	}
	return p
}

// Validate checks that the thresholds are ordered and within [0, 1].
func (p Policy) Validate() error {
	p = p.withDefaults()
	if p.MergeThreshold > 1 || p.UpdateThreshold < 0 {
		return fmt.Errorf("consolidation thresholds must be within [0, 1]")
	}
	if p.UpdateThreshold > p.MergeThreshold {
		return fmt.Errorf("update threshold %.2f exceeds merge threshold %.2f", p.UpdateThreshold, p.MergeThreshold)
	}
	return nil
}

// Decide applies the policy rules in order; the first rule that holds wins:
//
//  1. title match and similarity above the merge threshold: MERGE
//  2. multiple similar memories exist: GENERALIZE
//  3. similarity above the update threshold: UPDATE
//  4. otherwise: CREATE
//
// Comparisons are strict.
func (p Policy) Decide(s Signals) Action {
	p = p.withDefaults()

	switch {
	case s.TitleMatches && s.Similarity > p.MergeThreshold:
		return ActionMerge
	case s.MultipleSimilarExist:
		return ActionGeneralize
	case s.Similarity > p.UpdateThreshold:
		return ActionUpdate
	default:
		return ActionCreate
	}
}

// Decide classifies signals with the default thresholds.
//
// Example:
//
//	action := intelligence.Decide(intelligence.Signals{Similarity: 0.9, TitleMatches: true})
//	// action == intelligence.ActionMerge
func Decide(s Signals) Action {
	return DefaultPolicy().Decide(s)
}
