package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrationURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@host:5432/db?sslmode=disable", migrationURL("postgres://u:p@host:5432/db?sslmode=disable"))
	assert.Equal(t, "pgx5://u:p@host/db", migrationURL("postgresql://u:p@host/db"))
	assert.Equal(t, "pgx5://host/db", migrationURL("pgx5://host/db"))
}
