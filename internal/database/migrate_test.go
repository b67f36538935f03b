package database_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhilTenno/filesyncgo/internal/database"
	"github.com/PhilTenno/filesyncgo/internal/database/dbtest"
)

func TestRunMigrations_PostgresReleasesConnection(t *testing.T) {
	db := dbtest.NewPostgres(t)

	require.NoError(t, database.RunMigrations(db))
	require.NoError(t, database.RunMigrations(db))

	assert.Equal(t, 0, db.DB.Stats().InUse)
}
