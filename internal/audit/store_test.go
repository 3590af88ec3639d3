package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"grimm.is/rulegate/internal/clock"
)

func openStore(t *testing.T, retention time.Duration) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s, err := NewStore(db, retention)
	require.NoError(t, err)
	return s
}

func TestWriteAndQuery(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, 0)

	require.NoError(t, s.Write(ctx, Event{Action: ActionLogin, Resource: "session", Status: 200, IP: "10.0.0.1"}))
	require.NoError(t, s.Write(ctx, Event{
		Action:   ActionRuleAdd,
		Resource: "rule-1",
		Status:   201,
		Details:  map[string]any{"service": "http"},
	}))

	all, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, ActionRuleAdd, all[0].Action, "newest first")
	assert.Equal(t, "http", all[0].Details["service"])
	assert.Equal(t, "10.0.0.1", all[1].IP)

	adds, err := s.Query(ctx, Filter{Action: ActionRuleAdd})
	require.NoError(t, err)
	assert.Len(t, adds, 1)

	limited, err := s.Query(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestQuery_EmptyIsNotNil(t *testing.T) {
	events, err := openStore(t, 0).Query(context.Background(), Filter{})
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestPrune(t *testing.T) {
	mock := clock.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	defer clock.Use(mock)()

	ctx := context.Background()
	s := openStore(t, 24*time.Hour)
	require.NoError(t, s.Write(ctx, Event{Action: ActionRuleDelete, Resource: "rule-1"}))

	mock.Advance(48 * time.Hour)
	require.NoError(t, s.Write(ctx, Event{Action: ActionRuleDelete, Resource: "rule-2"}))

	n, err := s.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "rule-2", left[0].Resource)
}
