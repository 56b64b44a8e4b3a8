package oceanbase_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"

	"github.com/oceanbase/powermem-mcp/pkg/storage"
	"github.com/oceanbase/powermem-mcp/pkg/storage/oceanbase"
	"github.com/oceanbase/powermem-mcp/pkg/storage/storagetest"
)

// Set OCEANBASE_TEST_DSN (go-sql-driver format) to run.
func TestOceanBaseConformance(t *testing.T) {
	_ = godotenv.Load(filepath.Join("..", "..", "..", ".env"))

	dsn := os.Getenv("OCEANBASE_TEST_DSN")
	if dsn == "" {
		t.Skip("Skipping OceanBase test: OCEANBASE_TEST_DSN not set")
	}

	storagetest.Run(t, func(t *testing.T) storage.VectorStore {
		store, err := oceanbase.Open(dsn)
		if err != nil {
			t.Skipf("Skipping OceanBase test: failed to connect: %v", err)
		}
		return store
	})
}
