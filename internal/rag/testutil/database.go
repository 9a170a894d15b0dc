package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/ryanpkennedy/df-healthbench/pkg/db"
)

// SetupTestDB creates a test database connection and clears the tables.
func SetupTestDB(t *testing.T) *db.DB {
	t.Helper()
	// Load environment variables from .env file; absence is fine, the env
	// may already be set.
	_ = LoadEnvFromFile("../../../.env")

	dbURL := os.Getenv("TURSO_DATABASE_URL")
	if dbURL == "" {
		t.Skip("Database environment variables not set - skipping integration test")
	}

	database, err := db.Connect()
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	cleanupTestData(t, database)

	return database
}

// CleanupTestDB performs cleanup after tests.
func CleanupTestDB(t *testing.T, database *db.DB) {
	t.Helper()
	if database == nil {
		return
	}

	cleanupTestData(t, database)
	database.Close()
}

// cleanupTestData removes all test data from database tables.
func cleanupTestData(t *testing.T, database *db.DB) {
	t.Helper()
	// Clean up in reverse order of dependencies
	tables := []string{
		"document_summaries",
		"document_embeddings",
		"documents",
	}

	for _, table := range tables {
		query := fmt.Sprintf("DELETE FROM %s", table) // #nosec G201 -- table names are hardcoded, not user input
		_, err := database.Exec(query)
		if err != nil {
			t.Logf("Warning: Failed to clean table %s: %v", table, err)
		}
	}
}

// LoadEnvFromFile loads environment variables from a file.
func LoadEnvFromFile(filepath string) error {
	file, err := os.Open(filepath)
	if err != nil {
		return err
	}
	defer file.Close()

	const maxFileSize = 4096
	content := make([]byte, maxFileSize)
	n, err := file.Read(content)
	if err != nil && n == 0 {
		return err
	}

	lines := strings.Split(string(content[:n]), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "export ")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		const expectedParts = 2
		parts := strings.SplitN(line, "=", expectedParts)
		if len(parts) == expectedParts {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			if strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"") {
				value = value[1 : len(value)-1]
			}

			os.Setenv(key, value)
		}
	}

	return nil
}

// RecordCount returns the number of rows in a table.
func RecordCount(t *testing.T, database *db.DB, table string) int {
	t.Helper()
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table) // #nosec G201 -- table name is hardcoded, not user input
	var count int
	if err := database.QueryRow(query).Scan(&count); err != nil {
		t.Fatalf("Failed to get record count: %v", err)
	}
	return count
}
