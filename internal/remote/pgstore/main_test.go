package pgstore_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/pkordes/missionmap/internal/remote/pgstore"
)

// TestMain migrates the test database once for the whole package. Without
// TEST_DATABASE_URL the integration tests skip themselves.
func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		os.Exit(m.Run())
	}

	if err := pgstore.Migrate(context.Background(), dsn, nil); err != nil {
		log.Fatalf("TestMain: %v", err)
	}
	os.Exit(m.Run())
}
