package oceanbase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "`proj-app`", quoteIdent("proj-app"))
	assert.Equal(t, "`a``b`", quoteIdent("a`b"))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestConfigDSN(t *testing.T) {
	cfg := &Config{Host: "127.0.0.1", Port: 2881, User: "root@test", Password: "pw", DBName: "powermem"}
	assert.Equal(t, "root@test:pw@tcp(127.0.0.1:2881)/powermem?parseTime=true", cfg.DSN())
}

func TestContentHash(t *testing.T) {
	assert.Len(t, contentHash("hello"), 32)
	assert.Equal(t, contentHash("hello"), contentHash("hello"))
	assert.NotEqual(t, contentHash("hello"), contentHash("world"))
}

func TestParseMetadata(t *testing.T) {
	m, err := parseMetadata(nil)
	assert.NoError(t, err)
	assert.Empty(t, m)

	m, err = parseMetadata([]byte(`{"role":"backend"}`))
	assert.NoError(t, err)
	assert.Equal(t, "backend", m["role"])

	_, err = parseMetadata([]byte(`{`))
	assert.Error(t, err)
}
