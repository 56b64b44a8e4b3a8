package core

import (
	"math"

	"github.com/oceanbase/powermem-mcp/pkg/collection"
	"github.com/oceanbase/powermem-mcp/pkg/document"
	"github.com/oceanbase/powermem-mcp/pkg/storage"
)

// unknownField fills preview fields missing from the payload.
const unknownField = "unknown"

// toMap flattens the metadata into a storage payload. Typed fields win over
// Extra keys of the same name.
func (m Metadata) toMap() map[string]interface{} {
	out := make(map[string]interface{}, len(m.Extra)+7)
	for k, v := range m.Extra {
		out[k] = v
	}

	setString := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}
	setString(KeyMemoryType, string(m.MemoryType))
	setString(KeyRole, string(m.Role))
	setString(KeyTitle, m.Title)
	setString(KeyCreatedAt, m.CreatedAt)
	setString(KeyLastSynced, m.LastSynced)
	setString(KeyLastUpdated, m.LastUpdated)
	if m.Tags != nil {
		out[KeyTags] = append([]string(nil), m.Tags...)
	}
	return out
}

// metadataFromMap reads a storage payload. A known key holding a value of
// the wrong type is kept verbatim in Extra. A role outside the fixed set
// reads as universal.
func metadataFromMap(raw map[string]interface{}) Metadata {
	var m Metadata
	extra := func(k string, v interface{}) {
		if m.Extra == nil {
			m.Extra = make(map[string]interface{})
		}
		m.Extra[k] = v
	}

	for k, v := range raw {
		switch k {
		case KeyMemoryType, KeyRole, KeyTitle, KeyCreatedAt, KeyLastSynced, KeyLastUpdated:
			s, ok := v.(string)
			if !ok {
				extra(k, v)
				continue
			}
			switch k {
			case KeyMemoryType:
				m.MemoryType = MemoryType(s)
			case KeyRole:
				m.Role = parseRoleLenient(s)
			case KeyTitle:
				m.Title = s
			case KeyCreatedAt:
				m.CreatedAt = s
			case KeyLastSynced:
				m.LastSynced = s
			case KeyLastUpdated:
				m.LastUpdated = s
			}
		case KeyTags:
			tags, ok := toStrings(v)
			if !ok {
				extra(k, v)
				continue
			}
			m.Tags = tags
		default:
			extra(k, v)
		}
	}
	return m
}

func parseRoleLenient(s string) collection.Role {
	if s == "" {
		return ""
	}
	if role, ok := collection.ParseRole(s); ok {
		return role
	}
	return collection.RoleUniversal
}

// toStrings accepts []string and the []interface{} a JSON decode produces.
func toStrings(v interface{}) ([]string, bool) {
	switch tags := v.(type) {
	case []string:
		return append([]string{}, tags...), true
	case []interface{}:
		out := make([]string, 0, len(tags))
		for _, t := range tags {
			s, ok := t.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case nil:
		return []string{}, true
	default:
		return nil, false
	}
}

// toInt reads a counter that may have been decoded from JSON.
func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// toPoint converts a memory into a storage point.
func toPoint(m *Memory) *storage.Point {
	return &storage.Point{
		ID:       m.ID,
		Document: m.Document,
		Vector:   m.Vector,
		Metadata: m.Metadata.toMap(),
	}
}

// fromPoint converts a storage point read from collection into a memory.
func fromPoint(p *storage.Point, collectionName string) *Memory {
	return &Memory{
		ID:         p.ID,
		Document:   p.Document,
		Vector:     p.Vector,
		Metadata:   metadataFromMap(p.Metadata),
		Collection: collectionName,
	}
}

// toPreview builds the preview of a search hit. The document itself is
// dropped here.
func toPreview(hit *storage.ScoredPoint) Preview {
	md := metadataFromMap(hit.Metadata)
	p := document.ExtractPreview(hit.Document)

	preview := Preview{
		DocID:       hit.ID,
		Title:       p.Title,
		Description: p.Description,
		Similarity:  math.Round(hit.Score*1000) / 1000,
		MemoryType:  string(md.MemoryType),
		Tags:        md.Tags,
		Role:        string(md.Role),
		CreatedAt:   md.CreatedAt,
	}
	if preview.MemoryType == "" {
		preview.MemoryType = unknownField
	}
	if preview.Tags == nil {
		preview.Tags = []string{}
	}
	if preview.Role == "" {
		preview.Role = unknownField
	}
	if preview.CreatedAt == "" {
		preview.CreatedAt = unknownField
	}
	return preview
}
