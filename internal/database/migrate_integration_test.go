//go:build integration

package database_test

import (
	"context"
	"testing"

	"github.com/RyanNg1403/tieplm/internal/database"
	"github.com/RyanNg1403/tieplm/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_UpDownUp(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	status, err := database.Migrate(pc.ConnectionString(), "../../migrations", 0)
	require.NoError(t, err)
	assert.True(t, status.Applied)
	assert.Equal(t, uint(3), status.Version)

	status, err = database.Migrate(pc.ConnectionString(), "../../migrations", 0)
	require.NoError(t, err)
	assert.False(t, status.Applied)
	assert.Equal(t, uint(3), status.Version)

	status, err = database.Migrate(pc.ConnectionString(), "../../migrations", -1)
	require.NoError(t, err)
	assert.Equal(t, uint(2), status.Version)

	_, err = database.Migrate(pc.ConnectionString(), "../../migrations", 0)
	require.NoError(t, err)

	pool, err := database.NewPool(ctx, database.Config{URL: pc.ConnectionString(), MaxConns: 4})
	require.NoError(t, err)
	defer pool.Close()

	var tables int
	err = pool.QueryRow(ctx,
		`SELECT count(*) FROM information_schema.tables
		 WHERE table_name IN ('videos', 'chunks', 'chunk_embeddings', 'chat_sessions', 'chat_messages')`,
	).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 5, tables)
}
