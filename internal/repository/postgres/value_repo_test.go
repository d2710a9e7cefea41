package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/lotus-draft/internal/domain"
	"github.com/dom/lotus-draft/internal/pkg/clock"
	"github.com/dom/lotus-draft/internal/repository/postgres"
	"github.com/dom/lotus-draft/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueRepository(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repo := postgres.NewValueRepository(testDB.DB)
	ctx := context.Background()
	session := uuid.New()

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "draft state", key: "draft_state", value: `{"currentBooster":1}`},
		{name: "current set", key: "current_set", value: `"mh3"`},
		{name: "settings", key: "settings", value: `{"cardWidth":170}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, repo.Set(ctx, session, tt.key, []byte(tt.value)))
			got, err := repo.Get(ctx, session, tt.key)
			require.NoError(t, err)
			assert.JSONEq(t, tt.value, string(got))
		})
	}

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, session, "current_set", []byte(`"otj"`)))
		got, err := repo.Get(ctx, session, "current_set")
		require.NoError(t, err)
		assert.JSONEq(t, `"otj"`, string(got))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, session, "draft_state", "current_set"))
		_, err := repo.Get(ctx, session, "draft_state")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = repo.Get(ctx, session, "settings")
		assert.NoError(t, err)
	})

	t.Run("missing session", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.New(), "draft_state")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestVisitRepository(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	fake := clock.NewFake(time.Now().UTC())
	repo := postgres.NewVisitRepository(testDB.DB, time.Hour, fake)
	ctx := context.Background()
	session := uuid.New()

	visited, err := repo.IsVisited(ctx, session)
	require.NoError(t, err)
	assert.False(t, visited)

	require.NoError(t, repo.MarkVisited(ctx, session))
	require.NoError(t, repo.MarkVisited(ctx, session))
	visited, err = repo.IsVisited(ctx, session)
	require.NoError(t, err)
	assert.True(t, visited)

	fake.Advance(2 * time.Hour)
	visited, err = repo.IsVisited(ctx, session)
	require.NoError(t, err)
	assert.False(t, visited)

	purged, err := repo.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	require.NoError(t, repo.MarkVisited(ctx, session))
	require.NoError(t, repo.ClearVisited(ctx, session))
	visited, err = repo.IsVisited(ctx, session)
	require.NoError(t, err)
	assert.False(t, visited)
}
