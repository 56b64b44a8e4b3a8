package observe

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/bolt/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConsole(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := New(buf, FormatConsole, "info")
	require.NotNil(t, obs.Log())

	obs.Log().Info().Str("collection", "universal-patterns").Msg("memory stored")
	assert.Contains(t, buf.String(), "memory stored")
}

func TestNewJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := New(buf, "JSON", "debug")

	obs.Log().Debug().Int("hits", 3).Msg("search complete")
	out := buf.String()
	assert.Contains(t, out, "search complete")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "{"), out)
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := New(buf, FormatConsole, "warn")

	obs.Log().Info().Msg("hidden")
	obs.Log().Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, bolt.DEBUG, ParseLevel("DEBUG"))
	assert.Equal(t, bolt.INFO, ParseLevel("info"))
	assert.Equal(t, bolt.WARN, ParseLevel("warning"))
	assert.Equal(t, bolt.ERROR, ParseLevel(" error "))
	assert.Equal(t, bolt.INFO, ParseLevel("bogus"))
}

func TestStartSpan(t *testing.T) {
	obs := Nop()

	ctx, span := obs.StartSpan(context.Background(), "core.Search")
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	EndSpan(span, errors.New("boom"))

	assert.NoError(t, obs.Close())
}
