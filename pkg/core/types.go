package core

import (
	"encoding/json"

	"github.com/oceanbase/powermem-mcp/pkg/collection"
	"github.com/oceanbase/powermem-mcp/pkg/intelligence"
)

// MemoryType classifies what a memory records. The set is open: values
// other than the constants below are stored verbatim.
type MemoryType string

const (
	MemoryTypeEpisodic   MemoryType = "episodic"
	MemoryTypeProcedural MemoryType = "procedural"
	MemoryTypeSemantic   MemoryType = "semantic"
	MemoryTypeUnknown    MemoryType = "unknown"
)

// Metadata keys recognized by Metadata. Every other key lands in Extra.
const (
	KeyMemoryType  = "memory_type"
	KeyRole        = "role"
	KeyTags        = "tags"
	KeyTitle       = "title"
	KeyCreatedAt   = "created_at"
	KeyLastSynced  = "last_synced"
	KeyLastUpdated = "last_updated"
)

// Bookkeeping keys written into Extra by consolidation.
const (
	KeyMergeCount       = "merge_count"
	KeyGeneralizedFrom  = "generalized_from"
	KeyConsolidatedInto = "consolidated_into"
)

// Metadata is the payload stored next to a memory document.
//
// Known fields are typed; unknown keys are preserved verbatim in Extra and
// written back flat, so a JSON round trip does not lose them.
//
// Example:
//
//	md := core.Metadata{
//	    MemoryType: core.MemoryTypeProcedural,
//	    Role:       collection.RoleBackend,
//	    Tags:       []string{"postgres", "migrations"},
//	    Extra:      map[string]interface{}{"source": "incident-42"},
//	}
type Metadata struct {
	MemoryType MemoryType
	Role       collection.Role
	Tags       []string
	Title      string

	// Timestamps are RFC 3339 strings, as persisted.
	CreatedAt   string
	LastSynced  string
	LastUpdated string

	// Extra holds every key not listed above.
	Extra map[string]interface{}
}

// MarshalJSON writes the metadata as one flat object.
func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.toMap())
}

// UnmarshalJSON reads a flat object, routing unknown keys to Extra.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = metadataFromMap(raw)
	return nil
}

// Clone returns a deep copy of the slice and map fields.
func (m Metadata) Clone() Metadata {
	out := m
	if m.Tags != nil {
		out.Tags = append([]string(nil), m.Tags...)
	}
	if m.Extra != nil {
		out.Extra = make(map[string]interface{}, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Merge returns m with the non-empty fields of patch applied on top.
// Extra maps are merged key by key; patch wins.
func (m Metadata) Merge(patch Metadata) Metadata {
	out := m.Clone()
	if patch.MemoryType != "" {
		out.MemoryType = patch.MemoryType
	}
	if patch.Role != "" {
		out.Role = patch.Role
	}
	if patch.Tags != nil {
		out.Tags = append([]string(nil), patch.Tags...)
	}
	if patch.Title != "" {
		out.Title = patch.Title
	}
	if patch.CreatedAt != "" {
		out.CreatedAt = patch.CreatedAt
	}
	if patch.LastSynced != "" {
		out.LastSynced = patch.LastSynced
	}
	if patch.LastUpdated != "" {
		out.LastUpdated = patch.LastUpdated
	}
	if len(patch.Extra) > 0 {
		if out.Extra == nil {
			out.Extra = make(map[string]interface{}, len(patch.Extra))
		}
		for k, v := range patch.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// RoleOrDefault returns the role, or universal when none is set.
func (m Metadata) RoleOrDefault() collection.Role {
	if m.Role == "" {
		return collection.RoleUniversal
	}
	return m.Role
}

// Memory is a stored memory document with its metadata.
//
// Its JSON form is the full-content shape returned by get_memory:
// {"doc_id", "document", "metadata"}. The vector is never serialized.
type Memory struct {
	// ID is the opaque identifier assigned at creation.
	ID string `json:"doc_id"`

	// Document is the full formatted text.
	Document string `json:"document"`

	// Vector is the embedding of Document. Only set by internal reads.
	Vector []float64 `json:"-"`

	// Metadata is the payload stored with the document.
	Metadata Metadata `json:"metadata"`

	// Collection is where the memory was found.
	Collection string `json:"-"`
}

// Preview is the reduced view of a memory returned by Search.
// It never carries the document.
type Preview struct {
	DocID       string   `json:"doc_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Similarity  float64  `json:"similarity"`
	MemoryType  string   `json:"memory_type"`
	Tags        []string `json:"tags"`
	Role        string   `json:"role"`
	CreatedAt   string   `json:"created_at"`
}

// SearchResult is the first stage of two-stage retrieval.
type SearchResult struct {
	Results    []Preview `json:"results"`
	Total      int       `json:"total"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	Collection string    `json:"collection"`
}

// BatchResult is the outcome of BatchGet. Missing ids are not an error;
// compare Requested with Retrieved.
type BatchResult struct {
	Memories  []*Memory `json:"memories"`
	Retrieved int       `json:"retrieved"`
	Requested int       `json:"requested"`
}

// Operation statuses.
const (
	StatusSuccess = "success"
)

// StoreResult is returned by Store.
type StoreResult struct {
	DocID      string `json:"doc_id"`
	Status     string `json:"status"`
	Collection string `json:"collection"`
	Count      int    `json:"count"`
	Message    string `json:"message"`
}

// UpdateResult is returned by Update.
type UpdateResult struct {
	DocID      string `json:"doc_id"`
	Status     string `json:"status"`
	Collection string `json:"collection"`
	Message    string `json:"message"`
}

// DeleteResult is returned by Delete.
type DeleteResult struct {
	DocID             string `json:"doc_id"`
	Status            string `json:"status"`
	RemainingMemories int    `json:"remaining_memories"`
	Message           string `json:"message"`
}

// CollectionInfo describes one collection.
type CollectionInfo struct {
	Name  string `json:"name"`
	Count int    `json:"count"`

	// Level is "global" or "project".
	Level string `json:"level"`

	// Role is set for global role collections and null otherwise.
	Role *collection.Role `json:"role"`
}

// CollectionList is returned by ListCollections.
type CollectionList struct {
	Collections      []CollectionInfo `json:"collections"`
	TotalCollections int              `json:"total_collections"`
}

// ConsolidationResult reports the verdict of Consolidate and what it wrote.
type ConsolidationResult struct {
	Action     intelligence.Action  `json:"action"`
	Signals    intelligence.Signals `json:"signals"`
	DocID      string               `json:"doc_id"`
	Collection string               `json:"collection"`

	// SourceIDs are the existing memories the verdict was taken against.
	SourceIDs []string `json:"source_ids,omitempty"`
	Message   string   `json:"message"`
}
