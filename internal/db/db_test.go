package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIsPostgresDSN(t *testing.T) {
	assert.True(t, IsPostgresDSN("postgres://u:p@localhost/db"))
	assert.True(t, IsPostgresDSN("postgresql://localhost/db"))
	assert.False(t, IsPostgresDSN("books.db"))
	assert.False(t, IsPostgresDSN("file:books.db"))
}

func TestConnectSqliteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "books.db")

	database, err := Connect(path, zap.NewNop())
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, RunBookMigrations(database))
	assert.NoError(t, database.Ping(context.Background()))
	assert.FileExists(t, path)
}

func TestConnectEmptyDSN(t *testing.T) {
	_, err := Connect("", zap.NewNop())
	assert.Error(t, err)
}

func TestUserMigrationsCreateSessions(t *testing.T) {
	database, err := Connect(filepath.Join(t.TempDir(), "user.db"), zap.NewNop())
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, RunUserMigrations(database))
	assert.True(t, database.Migrator().HasTable(&User{}))
	assert.True(t, database.Migrator().HasTable(&Session{}))
	assert.False(t, database.Migrator().HasTable(&Book{}))
}
