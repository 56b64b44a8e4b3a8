package sqlite

import (
	"encoding/json"
	"fmt"
	"strings"
)

// quoteIdent quotes a collection name for use as a table name.
// Collection names contain '-', which SQLite only accepts quoted.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// placeholders returns "?, ?, ?" for n parameters.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func parseMetadata(raw string) (map[string]interface{}, error) {
	metadata := map[string]interface{}{}
	if raw == "" || raw == "null" {
		return metadata, nil
	}
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return metadata, nil
}
