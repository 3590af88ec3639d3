package devbackend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/rulegate/internal/clock"
)

func TestStore_Rules(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "db", "rules.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	list, err := store.ListRules(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, list, "empty list encodes as []")
	assert.Empty(t, list)

	a, err := store.InsertRule(ctx, "http", "YQ==")
	require.NoError(t, err)
	_, err = store.InsertRule(ctx, "ssh", "Yg==")
	require.NoError(t, err)

	list, err = store.ListRules(ctx, "http")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a, list[0])

	ok, err := store.DeleteRule(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.DeleteRule(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Sessions(t *testing.T) {
	mc := clock.NewMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	defer clock.Use(mc)()

	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, "tok"))

	ok, err := store.ValidSession(ctx, "tok", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ValidSession(ctx, "other", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	mc.Advance(2 * time.Hour)
	ok, err = store.ValidSession(ctx, "tok", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := store.PruneSessions(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
