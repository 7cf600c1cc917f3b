package statuscheck

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

type pingErr struct{ err error }

func (p pingErr) Ping(ctx context.Context) error { return p.err }

func TestSummary_Unconfigured(t *testing.T) {
	s := New(Options{}).Summary(context.Background())
	assert.False(t, s.Redis.OK)
	assert.Equal(t, "not configured", s.Redis.Message)
	assert.Equal(t, "Bucket not configured", s.S3.Message)
	assert.Equal(t, "API key missing", s.Gemini.Message)
	assert.Equal(t, "API key missing", s.OpenAI.Message)
	assert.Equal(t, "API key missing", s.Anthropic.Message)
}

func TestCheckRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer c.Close()

	st := New(Options{Redis: RedisClient{Client: c}}).checkRedis(context.Background())
	assert.True(t, st.OK)

	st = New(Options{Redis: pingErr{errors.New("connection refused")}}).checkRedis(context.Background())
	assert.False(t, st.OK)
	assert.Equal(t, "connection refused", st.Message)
}

func TestCheckBlobDir(t *testing.T) {
	st := New(Options{BlobDir: t.TempDir()}).checkBlobDir()
	assert.True(t, st.OK)

	st = New(Options{BlobDir: "/nonexistent/blob/dir"}).checkBlobDir()
	assert.False(t, st.OK)
}

func TestProviderProbes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Header.Get("x-goog-api-key") == "g":
			w.WriteHeader(http.StatusOK)
		case r.Header.Get("Authorization") == "Bearer o":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	c := New(Options{GeminiKey: "g", OpenAIKey: "o", AnthropicKey: "a"})
	c.geminiURL = srv.URL
	c.openAIURL = srv.URL
	c.anthropicURL = srv.URL

	s := c.Summary(context.Background())
	assert.True(t, s.Gemini.OK)
	assert.False(t, s.OpenAI.OK)
	assert.Equal(t, "HTTP 401", s.OpenAI.Message)
	assert.True(t, s.Anthropic.OK)
}

func TestTrimError(t *testing.T) {
	assert.Equal(t, "", trimError(nil))
	long := errors.New(strings.Repeat("x", 200))
	assert.Len(t, trimError(long), 120)
}
