package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, Entry{UserID: "u1", DocumentID: "doc-a", BlobRef: "a.pdf", PageCount: 10}))
	got, ok, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "doc-a", got.DocumentID)
	assert.Equal(t, "a.pdf", got.BlobRef)
	assert.Equal(t, 10, got.PageCount)
	assert.False(t, got.CreatedAt.IsZero())

	// overwrite, not merge
	require.NoError(t, s.Put(ctx, Entry{UserID: "u1", DocumentID: "doc-b", BlobRef: "b.pdf"}))
	got, ok, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "doc-b", got.DocumentID)
	assert.Equal(t, "b.pdf", got.BlobRef)
	assert.Equal(t, 0, got.PageCount)

	// other users are untouched
	_, ok, err = s.Get(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Remove(ctx, "u1"))
	_, ok, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, s.Remove(ctx, "u1"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(0))
}

func TestMemoryStore_TTL(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Entry{UserID: "u1", BlobRef: "a.pdf"}))
	now = now.Add(59 * time.Second)
	_, ok, _ := s.Get(ctx, "u1")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, _ = s.Get(ctx, "u1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_ConcurrentUsers(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i)
			_ = s.Put(ctx, Entry{UserID: user, DocumentID: user})
			e, ok, _ := s.Get(ctx, user)
			assert.True(t, ok)
			assert.Equal(t, user, e.DocumentID)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}

func newRedis(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return NewRedisStoreWithClient(c, "brief", ttl), mr
}

func TestRedisStore(t *testing.T) {
	s, mr := newRedis(t, 0)
	exerciseStore(t, s)
	assert.False(t, mr.Exists("brief:session:u1"))
}

func TestRedisStore_KeyLayoutAndTTL(t *testing.T) {
	s, mr := newRedis(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Entry{UserID: "42", DocumentID: "file-1", BlobRef: "file-1.pdf", PageCount: 24}))
	assert.True(t, mr.Exists("brief:session:42"))
	assert.Equal(t, "file-1.pdf", mr.HGet("brief:session:42", "blob_ref"))
	assert.Equal(t, time.Hour, mr.TTL("brief:session:42"))

	mr.FastForward(time.Hour)
	_, ok, err := s.Get(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)
}
