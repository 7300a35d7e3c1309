package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationNamesOrdered(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.Equal(t, []string{"001_live_locations.sql", "002_location_history.sql"}, names)
}
