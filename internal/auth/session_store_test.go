package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisSessionStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &RedisSessionStore{Redis: client}, mr
}

func TestRedisSessionStoreCreateGet(t *testing.T) {
	store, mr := newRedisSessionStore(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour).Truncate(time.Millisecond).UTC()

	require.NoError(t, store.CreateSession(ctx, Session{ID: "s1", UserID: "u1", ExpiresAt: exp, TwoFactorVerified: true}))

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, got.ExpiresAt.Equal(exp))
	assert.True(t, got.TwoFactorVerified)
	assert.True(t, mr.TTL("session:s1") > 0)

	missing, err := store.GetSession(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRedisSessionStoreExpiresWithSession(t *testing.T) {
	store, mr := newRedisSessionStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, Session{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Minute)}))
	mr.FastForward(2 * time.Minute)

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	sessions, err := store.ListUserSessions(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, sessions)
	n, err := store.Redis.SCard(ctx, "user_sessions:u1").Result()
	require.NoError(t, err)
	assert.Zero(t, n, "stale id pruned")
}

func TestRedisSessionStoreUpdates(t *testing.T) {
	store, _ := newRedisSessionStore(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, store.CreateSession(ctx, Session{ID: "s1", UserID: "u1", ExpiresAt: exp}))
	require.NoError(t, store.CreateSession(ctx, Session{ID: "s2", UserID: "u1", ExpiresAt: exp, TwoFactorVerified: true}))

	renewed := time.Now().Add(30 * 24 * time.Hour).Truncate(time.Millisecond)
	require.NoError(t, store.UpdateSessionExpiry(ctx, "s1", renewed))
	require.NoError(t, store.SetSessionTwoFactorVerified(ctx, "s1", true))

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.Equal(renewed))
	assert.True(t, got.TwoFactorVerified)

	require.NoError(t, store.SetUserSessionsTwoFactorVerified(ctx, "u1", false))
	sessions, err := store.ListUserSessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	for _, s := range sessions {
		assert.False(t, s.TwoFactorVerified)
	}
}

func TestRedisSessionStoreUpdateDoesNotResurrect(t *testing.T) {
	store, mr := newRedisSessionStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetSessionTwoFactorVerified(ctx, "ghost", true))
	require.NoError(t, store.UpdateSessionExpiry(ctx, "ghost", time.Now().Add(time.Hour)))
	assert.False(t, mr.Exists("session:ghost"))
}

func TestRedisSessionStoreDelete(t *testing.T) {
	store, mr := newRedisSessionStore(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, store.CreateSession(ctx, Session{ID: "a", UserID: "u1", ExpiresAt: exp}))
	require.NoError(t, store.CreateSession(ctx, Session{ID: "b", UserID: "u1", ExpiresAt: exp}))
	require.NoError(t, store.CreateSession(ctx, Session{ID: "c", UserID: "u2", ExpiresAt: exp}))

	require.NoError(t, store.DeleteSession(ctx, "a"))
	assert.False(t, mr.Exists("session:a"))
	members, err := mr.Members("user_sessions:u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)

	require.NoError(t, store.DeleteUserSessions(ctx, "u1"))
	assert.False(t, mr.Exists("session:b"))
	assert.False(t, mr.Exists("user_sessions:u1"))
	assert.True(t, mr.Exists("session:c"))

	require.NoError(t, store.DeleteSession(ctx, "never-existed"))
}

func TestSessionManagerOverRedis(t *testing.T) {
	store, _ := newRedisSessionStore(t)
	users := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, users.CreateUser(ctx, UserRecord{ID: "u1", Email: "ada@example.com", RecoveryCode: []byte{1}}))

	m := NewSessionManager(store, users)
	token, err := GenerateSessionToken()
	require.NoError(t, err)
	_, err = m.CreateSession(ctx, token, "u1", SessionFlags{})
	require.NoError(t, err)

	v, err := m.ValidateSessionToken(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "ada@example.com", v.User.Email)
}

// afterCommandHook runs fn once, right after the first command named name.
type afterCommandHook struct {
	name string
	fn   func()
}

func (h *afterCommandHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *afterCommandHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if cmd.Name() == h.name && h.fn != nil {
			fn := h.fn
			h.fn = nil
			fn()
		}
		return err
	}
}

func (h *afterCommandHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisDeleteUserSessionsKeepsConcurrentSessionIndexed(t *testing.T) {
	store, mr := newRedisSessionStore(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)
	require.NoError(t, store.CreateSession(ctx, Session{ID: "old", UserID: "u1", ExpiresAt: exp}))

	// A login lands between reading the index and deleting from it.
	store.Redis.AddHook(&afterCommandHook{name: "smembers", fn: func() {
		require.NoError(t, store.CreateSession(ctx, Session{ID: "late", UserID: "u1", ExpiresAt: exp}))
	}})

	require.NoError(t, store.DeleteUserSessions(ctx, "u1"))
	assert.False(t, mr.Exists("session:old"))
	assert.True(t, mr.Exists("session:late"))

	listed, err := store.ListUserSessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "late", listed[0].ID)

	require.NoError(t, store.DeleteUserSessions(ctx, "u1"))
	assert.False(t, mr.Exists("session:late"))
	assert.False(t, mr.Exists("user_sessions:u1"))
}
