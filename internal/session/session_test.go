package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmhub/internal/models"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewClient_BadURL(t *testing.T) {
	_, err := NewClient(context.Background(), "not a url")
	require.Error(t, err)
}

func TestStore_SaveGet(t *testing.T) {
	client, mr := setupRedis(t)
	store := NewStore(client, time.Hour)
	ctx := context.Background()

	rec := Record{ID: "sess-1", UserID: "user-1", Email: "a@example.com", RefreshHash: "h1"}
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "a@example.com", got.Email)
	assert.False(t, got.CreatedAt.IsZero())

	assert.Equal(t, time.Hour, mr.TTL("crmhub:session:sess-1"))
	assert.Equal(t, time.Hour, mr.TTL("crmhub:refresh:h1"))
}

func TestStore_GetMissing(t *testing.T) {
	client, _ := setupRedis(t)
	store := NewStore(client, time.Hour)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStore_Expiry(t *testing.T) {
	client, mr := setupRedis(t)
	store := NewStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Record{ID: "s", UserID: "u", RefreshHash: "h"}))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "s")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.LookupRefresh(ctx, "h")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStore_RotateInvalidatesOldRefresh(t *testing.T) {
	client, _ := setupRedis(t)
	store := NewStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Record{ID: "s", UserID: "u", RefreshHash: "old"}))
	rec, err := store.LookupRefresh(ctx, "old")
	require.NoError(t, err)

	require.NoError(t, store.Rotate(ctx, rec, "new"))

	_, err = store.LookupRefresh(ctx, "old")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	got, err := store.LookupRefresh(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, "s", got.ID)
	assert.Equal(t, "new", got.RefreshHash)
}

func TestStore_Delete(t *testing.T) {
	client, mr := setupRedis(t)
	store := NewStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Record{ID: "s", UserID: "u", RefreshHash: "h"}))
	require.NoError(t, store.Delete(ctx, "s"))

	assert.False(t, mr.Exists("crmhub:session:s"))
	assert.False(t, mr.Exists("crmhub:refresh:h"))
	require.NoError(t, store.Delete(ctx, "s"), "deleting twice is fine")
}

func TestBus_PublishSubscribe(t *testing.T) {
	client, _ := setupRedis(t)
	bus := NewBus(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), Event{Type: SignedIn, UserID: "u1", SessionID: "s1"}))

	select {
	case ev := <-events:
		assert.Equal(t, SignedIn, ev.Type)
		assert.Equal(t, "u1", ev.UserID)
		assert.Equal(t, "s1", ev.SessionID)
		assert.False(t, ev.At.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_ChannelClosesWithContext(t *testing.T) {
	client, _ := setupRedis(t)
	bus := NewBus(client)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	id := &Identity{UserID: "u", SessionID: "s", Profile: &models.Profile{ID: "u"}}
	got, ok := FromContext(WithIdentity(context.Background(), id))
	require.True(t, ok)
	assert.Same(t, id, got)
}
