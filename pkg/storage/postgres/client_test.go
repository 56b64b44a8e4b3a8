package postgres_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"

	"github.com/oceanbase/powermem-mcp/pkg/storage"
	"github.com/oceanbase/powermem-mcp/pkg/storage/postgres"
	"github.com/oceanbase/powermem-mcp/pkg/storage/storagetest"
)

// Requires a pgvector-enabled server; set POSTGRES_TEST_DSN to run.
func TestPostgresConformance(t *testing.T) {
	_ = godotenv.Load(filepath.Join("..", "..", "..", ".env"))

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("Skipping PostgreSQL test: POSTGRES_TEST_DSN not set")
	}

	storagetest.Run(t, func(t *testing.T) storage.VectorStore {
		store, err := postgres.NewClient(&postgres.Config{DSN: dsn})
		if err != nil {
			t.Skipf("Skipping PostgreSQL test: failed to connect: %v", err)
		}
		return store
	})
}
