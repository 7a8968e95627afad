package calllog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, nil), mr
}

func TestRecordAndGet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(ctx, Entry{
		CallID:    "call-1",
		SubjectID: "t-1",
		Status:    StatusActive,
		State:     "awaiting_main_menu",
		StartedAt: started,
		UpdatedAt: started,
	}))
	assert.True(t, mr.Exists("ivr:call:call-1"))
	assert.Equal(t, 24*time.Hour, mr.TTL("ivr:call:call-1"))

	ended := started.Add(2 * time.Minute)
	require.NoError(t, store.Record(ctx, Entry{
		CallID:       "call-1",
		SubjectID:    "t-1",
		Status:       StatusCommitted,
		State:        "committed",
		ReportType:   "attendance",
		InvalidCount: 2,
		StartedAt:    started,
		UpdatedAt:    ended,
		EndedAt:      &ended,
	}))

	got, err := store.Get(ctx, "call-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusCommitted, got.Status)
	assert.Equal(t, 2, got.InvalidCount)
	require.NotNil(t, got.EndedAt)
	assert.True(t, ended.Equal(*got.EndedAt))
}

func TestGetMissing(t *testing.T) {
	store, _ := newTestStore(t)
	got, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRecordRequiresCallID(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Error(t, store.Record(context.Background(), Entry{Status: StatusActive}))
}

func TestRecordFailsWhenRedisDown(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()
	assert.Error(t, store.Record(context.Background(), Entry{CallID: "call-1", Status: StatusActive}))
}
