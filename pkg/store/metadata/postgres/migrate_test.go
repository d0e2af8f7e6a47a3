package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/wopi?sslmode=disable",
		migrateURL("postgres://u:p@db:5432/wopi?sslmode=disable"))
	assert.Equal(t, "pgx5://u@db/wopi", migrateURL("postgresql://u@db/wopi"))
	assert.Equal(t, "pgx5://already", migrateURL("pgx5://already"))
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if !assert.NoError(t, err) {
		return
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_create_files.up.sql")
	assert.Contains(t, names, "000001_create_files.down.sql")
}
