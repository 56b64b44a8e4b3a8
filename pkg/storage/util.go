package storage

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// CosineSimilarity calculates the cosine similarity between two vectors.
// Vectors of different length or zero norm score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SortByScore orders hits by descending score and keeps at most limit of them.
// Hits with equal scores keep their relative order.
func SortByScore(hits []*ScoredPoint, limit int) []*ScoredPoint {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if limit > 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}

// VectorToString renders a vector in the "[0.1,0.2,0.3]" literal form
// accepted by pgvector and OceanBase.
func VectorToString(vector []float64) string {
	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ParseVector parses the "[0.1,0.2,0.3]" literal form.
func ParseVector(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if strings.TrimSpace(s) == "" {
		return []float64{}, nil
	}

	parts := strings.Split(s, ",")
	result := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("parse vector element %d: %w", i, err)
		}
		result[i] = v
	}
	return result, nil
}

// MergeMetadata returns a copy of base with patch applied on top.
func MergeMetadata(base, patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// OrderByIDs arranges found points in the order of ids, skipping ids that
// were not found and repeated ids.
func OrderByIDs(ids []string, byID map[string]*Point) []*Point {
	points := make([]*Point, 0, len(byID))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok && !seen[id] {
			points = append(points, p)
			seen[id] = true
		}
	}
	return points
}
