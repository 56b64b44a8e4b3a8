package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/powermem-mcp/pkg/collection"
)

const testDoc = `**Title:** Idempotent webhook handlers
**Description:** Deduplicate deliveries by event id
**Content:** Store the event id with a unique constraint before processing.
**Tags:** #api #webhooks`

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "powermem.yaml")
	cfg := `embedder:
  provider: mock
  dimensions: 32
vector_store:
  provider: chromem
  chromem:
    path: ` + filepath.Join(dir, "data") + `
log:
  level: error
`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetArgs(args)
	require.NoError(t, RootCmd.Execute())
	return out.Bytes()
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range RootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, name := range []string{"serve", "init", "collections", "search", "get", "store", "delete"} {
		assert.True(t, names[name], "missing command %s", name)
	}
}

func TestStoreSearchGet(t *testing.T) {
	cfg := writeConfig(t)

	var stored struct {
		DocID      string `json:"doc_id"`
		Collection string `json:"collection"`
	}
	out := run(t, "store", testDoc, "--config", cfg, "--level", "global", "--role", "")
	require.NoError(t, json.Unmarshal(out, &stored))
	// "api" in the document suggests the backend role
	assert.Equal(t, "backend-patterns", stored.Collection)
	require.NotEmpty(t, stored.DocID)

	var found struct {
		Total   int `json:"total"`
		Results []struct {
			DocID string `json:"doc_id"`
			Title string `json:"title"`
		} `json:"results"`
	}
	out = run(t, "search", "webhook deduplication", "--config", cfg, "--level", "global", "--role", "backend", "--limit", "3")
	require.NoError(t, json.Unmarshal(out, &found))
	require.Equal(t, 1, found.Total)
	assert.Equal(t, stored.DocID, found.Results[0].DocID)
	assert.Equal(t, "Idempotent webhook handlers", found.Results[0].Title)

	var memory struct {
		DocID    string                 `json:"doc_id"`
		Document string                 `json:"document"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	out = run(t, "get", stored.DocID, "--config", cfg, "--level", "global", "--role", "backend")
	require.NoError(t, json.Unmarshal(out, &memory))
	assert.Equal(t, testDoc, memory.Document)
	assert.Equal(t, []interface{}{"api", "webhooks"}, memory.Metadata["tags"])
}

func TestStoreFromFileInProject(t *testing.T) {
	cfg := writeConfig(t)
	t.Cleanup(func() { storeFile = "" })
	docPath := filepath.Join(t.TempDir(), "memory.md")
	require.NoError(t, os.WriteFile(docPath, []byte(testDoc), 0o600))

	out := run(t, "store", "--file", docPath, "--config", cfg, "--level", "Webhook Relay", "--role", "")
	var stored struct {
		Collection string `json:"collection"`
	}
	require.NoError(t, json.Unmarshal(out, &stored))
	assert.Equal(t, "proj-webhook-relay", stored.Collection)

	out = run(t, "collections", "--config", cfg, "--pattern", "proj-*")
	var list struct {
		TotalCollections int `json:"total_collections"`
		Collections      []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"collections"`
	}
	require.NoError(t, json.Unmarshal(out, &list))
	require.Equal(t, 1, list.TotalCollections)
	assert.Equal(t, 1, list.Collections[0].Count)
}

func TestInitCreatesRoleCollections(t *testing.T) {
	cfg := writeConfig(t)

	out := run(t, "init", "--config", cfg)
	var list struct {
		TotalCollections int `json:"total_collections"`
	}
	require.NoError(t, json.Unmarshal(out, &list))
	assert.Equal(t, len(collection.Roles()), list.TotalCollections)
}

func TestReadDocument(t *testing.T) {
	storeFile = ""
	doc, err := readDocument([]string{"inline"})
	require.NoError(t, err)
	assert.Equal(t, "inline", doc)

	_, err = readDocument(nil)
	assert.Error(t, err)

	storeFile = "x.md"
	defer func() { storeFile = "" }()
	_, err = readDocument([]string{"inline"})
	assert.Error(t, err)
}

func TestStoreRole(t *testing.T) {
	defer func() { memoryLevel, memoryRole = collection.LevelGlobal, "" }()

	memoryLevel, memoryRole = collection.LevelGlobal, "security"
	assert.Equal(t, collection.RoleSecurity, storeRole("anything"))

	memoryRole = ""
	assert.Equal(t, collection.RoleUniversal, storeRole("nothing to see here"))
	assert.Equal(t, collection.RoleFrontend, storeRole("a react component"))

	memoryLevel = "my-project"
	assert.Equal(t, collection.Role(""), storeRole("a react component"))
}
