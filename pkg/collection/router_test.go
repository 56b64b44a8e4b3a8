package collection_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/powermem-mcp/pkg/collection"
)

func TestResolveGlobal(t *testing.T) {
	for _, role := range collection.Roles() {
		t.Run(string(role), func(t *testing.T) {
			name, err := collection.Resolve(collection.LevelGlobal, string(role))
			require.NoError(t, err)
			assert.Equal(t, string(role)+"-patterns", name)

			again, err := collection.Resolve(collection.LevelGlobal, string(role))
			require.NoError(t, err)
			assert.Equal(t, name, again)
		})
	}
}

func TestResolveGlobalFallsBackToUniversal(t *testing.T) {
	tests := []struct {
		name string
		role string
	}{
		{name: "empty", role: ""},
		{name: "unknown", role: "astronaut"},
		{name: "legacy name", role: "backend-dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := collection.Resolve(collection.LevelGlobal, tt.role)
			require.NoError(t, err)
			assert.Equal(t, "universal-patterns", name)
		})
	}
}

func TestResolveProject(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected string
	}{
		{name: "passthrough", level: "proj-foo", expected: "proj-foo"},
		{name: "spaces and case", level: "My Cool_Project", expected: "proj-my-cool-project"},
		{name: "symbol runs collapse", level: "api//v2!!service", expected: "proj-api-v2-service"},
		{name: "edges trimmed", level: "--weird name--", expected: "proj-weird-name"},
		{name: "accented letters separate", level: "Café Déjà Vu", expected: "proj-caf-d-j-vu"},
		{name: "unicode uppercase lowered", level: "ÉCOLE", expected: "proj-cole"},
		{name: "digits kept", level: "Project 42", expected: "proj-project-42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := collection.Resolve(tt.level, "")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, name)
		})
	}
}

func TestResolveEmptySanitizedName(t *testing.T) {
	for _, level := range []string{"!!!", "   ", "---"} {
		_, err := collection.Resolve(level, "")
		assert.ErrorIs(t, err, collection.ErrEmptyName, level)
	}
}

func TestResolveLegacyProjectContext(t *testing.T) {
	r := collection.Router{ProjectContext: "Legacy Project"}

	name, err := r.Resolve("", "")
	require.NoError(t, err)
	assert.Equal(t, "proj-legacy-project", name)
}

func TestResolveIsIdempotent(t *testing.T) {
	inputs := []string{"My Project", "proj-x", "ÜBER app", "a__b  c", "x"}
	for _, in := range inputs {
		first, err := collection.Resolve(in, "")
		require.NoError(t, err)
		second, err := collection.Resolve(first, "")
		require.NoError(t, err)
		assert.Equal(t, first, second, in)
	}
}

func TestSanitizeCharset(t *testing.T) {
	valid := regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	inputs := []string{
		"Hello World",
		"  leading and trailing  ",
		"MiXeD___case...and---dots",
		"naïve façade",
		"日本語 project 7",
		"tabs\tand\nnewlines",
	}
	for _, in := range inputs {
		out := collection.Sanitize(in)
		require.NotEmpty(t, out, in)
		assert.Regexp(t, valid, out, in)
	}
}

func TestClassify(t *testing.T) {
	level, role := collection.Classify("backend-patterns")
	assert.Equal(t, collection.LevelGlobal, level)
	require.NotNil(t, role)
	assert.Equal(t, collection.RoleBackend, *role)

	level, role = collection.Classify("proj-foo")
	assert.Equal(t, collection.LevelProject, level)
	assert.Nil(t, role)

	level, role = collection.Classify("coder-memory")
	assert.Equal(t, collection.LevelProject, level)
	assert.Nil(t, role)
}

func TestParseRole(t *testing.T) {
	role, ok := collection.ParseRole(" DevOps ")
	assert.True(t, ok)
	assert.Equal(t, collection.RoleDevOps, role)

	_, ok = collection.ParseRole("designer")
	assert.False(t, ok)

	assert.True(t, collection.RoleML.Valid())
	assert.False(t, collection.Role("designer").Valid())
}

func TestRoleCollections(t *testing.T) {
	names := collection.RoleCollections()
	assert.Len(t, names, 8)
	assert.Equal(t, "universal-patterns", names[0])
	assert.Contains(t, names, "mobile-patterns")
}

func TestLegacyTarget(t *testing.T) {
	target, ok := collection.LegacyTarget("financial-engineer")
	assert.True(t, ok)
	assert.Equal(t, "quant-patterns", target)

	_, ok = collection.LegacyTarget("proj-foo")
	assert.False(t, ok)

	// legacy names are never routed through the table
	name, err := collection.Resolve(collection.LevelGlobal, "coder-memory")
	require.NoError(t, err)
	assert.Equal(t, "universal-patterns", name)
}
