package repo

import (
	"context"
	"os"
	"testing"
	"time"

	"brillprime/internal/shared/db"
	"brillprime/internal/shared/logger"
	"brillprime/internal/shared/utils"
	"brillprime/internal/tracking/domain"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRepository connects to TRACKING_TEST_DATABASE_URL and applies the
// migrations. The test is skipped when the variable is unset.
func testRepository(t *testing.T) (*LiveLocationPgRepository, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("TRACKING_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TRACKING_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool, logger.Nop()))
	return NewLiveLocationPgRepository(pool), pool
}

func TestUpsertLastWriteWins(t *testing.T) {
	r, pool := testRepository(t)
	ctx := context.Background()
	user := "driver-" + utils.NewUUID()
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM live_locations WHERE user_id = $1`, user)
	})

	_, err := r.Get(ctx, user)
	require.ErrorIs(t, err, domain.ErrLocationNotFound)

	acc := 4.0
	require.NoError(t, r.Upsert(ctx, user, domain.Position{Latitude: 6.5, Longitude: 3.3, Accuracy: &acc, Timestamp: 1700000000000}))
	require.NoError(t, r.Upsert(ctx, user, domain.Position{Latitude: 6.6, Longitude: 3.4, Timestamp: 1700000005000}))

	got, err := r.Get(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 6.6, got.Latitude)
	assert.Equal(t, 3.4, got.Longitude)
	assert.Nil(t, got.Accuracy)
	assert.Equal(t, int64(1700000005000), got.Timestamp)

	var rows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM live_locations WHERE user_id = $1`, user).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestHistoryNewestFirstWithLimit(t *testing.T) {
	r, pool := testRepository(t)
	ctx := context.Background()
	user := "driver-" + utils.NewUUID()
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM location_history WHERE user_id = $1`, user)
	})

	require.NoError(t, r.AppendHistory(ctx, user, []domain.Position{
		{Latitude: 1, Longitude: 1, Timestamp: 1700000000000},
		{Latitude: 2, Longitude: 2, Timestamp: 1700000001000},
		{Latitude: 3, Longitude: 3, Timestamp: 1700000002000},
	}))

	items, err := r.History(ctx, user, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 3.0, items[0].Latitude)
	assert.Equal(t, 2.0, items[1].Latitude)

	none, err := r.History(ctx, "driver-"+utils.NewUUID(), 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
