package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	mpkg "github.com/local/editorialbrief/internal/metrics"
)

// RedisStore keeps one hash per user under <prefix>:session:<user_id>.
type RedisStore struct {
	client *redis.Client
	keyNS  string
	ttl    time.Duration
}

func NewRedisStore(redisURL, prefix string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return NewRedisStoreWithClient(c, prefix, ttl), nil
}

func NewRedisStoreWithClient(c *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "brief"
	}
	return &RedisStore{client: c, keyNS: prefix, ttl: ttl}
}

func (s *RedisStore) key(userID string) string { return fmt.Sprintf("%s:session:%s", s.keyNS, userID) }

func (s *RedisStore) Put(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	k := s.key(e.UserID)
	m := map[string]interface{}{
		"user_id":     e.UserID,
		"document_id": e.DocumentID,
		"blob_ref":    e.BlobRef,
		"page_count":  e.PageCount,
		"created_at":  e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	// Del first so no field of an older entry survives the overwrite.
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, k)
		p.HSet(ctx, k, m)
		if s.ttl > 0 {
			p.Expire(ctx, k, s.ttl)
		}
		return nil
	})
	mpkg.IncSessionOp("redis", "put", err)
	return err
}

func (s *RedisStore) Get(ctx context.Context, userID string) (Entry, bool, error) {
	res, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	mpkg.IncSessionOp("redis", "get", err)
	if err != nil {
		return Entry{}, false, err
	}
	if len(res) == 0 {
		return Entry{}, false, nil
	}
	e := Entry{
		UserID:     res["user_id"],
		DocumentID: res["document_id"],
		BlobRef:    res["blob_ref"],
	}
	if e.UserID == "" {
		e.UserID = userID
	}
	if v := res["page_count"]; v != "" {
		// ignore parse error; default 0
		e.PageCount, _ = strconv.Atoi(v)
	}
	if v := res["created_at"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			e.CreatedAt = t
		}
	}
	return e, true, nil
}

func (s *RedisStore) Remove(ctx context.Context, userID string) error {
	err := s.client.Del(ctx, s.key(userID)).Err()
	mpkg.IncSessionOp("redis", "remove", err)
	return err
}

func (s *RedisStore) Close() error { return s.client.Close() }

// Client returns the underlying Redis client
func (s *RedisStore) Client() *redis.Client { return s.client }
