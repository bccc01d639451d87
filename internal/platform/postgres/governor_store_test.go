package postgres_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/eco-queue/internal/platform/postgres"
	"github.com/phrazzld/eco-queue/internal/ratelimit"
	"github.com/phrazzld/eco-queue/internal/testdb"
)

func TestPostgresGovernor(t *testing.T) {
	db := testdb.GetTestDBWithT(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		g := postgres.NewPostgresGovernor(tx, nil)

		_, err := tx.ExecContext(ctx, `UPDATE rate_limit_state SET wait_until = 'epoch' WHERE id = 1`)
		require.NoError(t, err)

		wait, err := g.WaitSeconds(ctx)
		require.NoError(t, err)
		assert.Zero(t, wait)

		require.NoError(t, g.SetWait(ctx, 60))
		wait, err = g.WaitSeconds(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 60, wait, 1)

		require.NoError(t, g.SetWait(ctx, 5))
		wait, _ = g.WaitSeconds(ctx)
		assert.InDelta(t, 60, wait, 1, "a shorter wait must not shorten the deadline")

		assert.ErrorIs(t, g.SetWait(ctx, -1), ratelimit.ErrNegativeWait)
	})
}

func TestPostgresGovernor_MissingRowIsRecreated(t *testing.T) {
	db := testdb.GetTestDBWithT(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		g := postgres.NewPostgresGovernor(tx, nil)

		_, err := tx.ExecContext(ctx, `DELETE FROM rate_limit_state`)
		require.NoError(t, err)

		wait, err := g.WaitSeconds(ctx)
		require.NoError(t, err)
		assert.Zero(t, wait)

		require.NoError(t, g.SetWait(ctx, 30))
		wait, _ = g.WaitSeconds(ctx)
		assert.InDelta(t, 30, wait, 1)
	})
}
