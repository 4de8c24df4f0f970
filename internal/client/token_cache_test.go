package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory TokenStore with injectable failures.
type fakeStore struct {
	token   string
	ttl     time.Duration
	sets    int32
	deletes int32
	failAll bool
}

func (s *fakeStore) Get(ctx context.Context) (string, time.Duration, error) {
	if s.failAll {
		return "", 0, errors.New("store down")
	}
	return s.token, s.ttl, nil
}

func (s *fakeStore) Set(ctx context.Context, token string, ttl time.Duration) error {
	atomic.AddInt32(&s.sets, 1)
	if s.failAll {
		return errors.New("store down")
	}
	s.token = token
	s.ttl = ttl
	return nil
}

func (s *fakeStore) Delete(ctx context.Context) error {
	atomic.AddInt32(&s.deletes, 1)
	if s.failAll {
		return errors.New("store down")
	}
	s.token = ""
	s.ttl = 0
	return nil
}

func newTokenServer(t *testing.T, requests *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/open-apis/auth/v3/tenant_access_token/internal", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		n := atomic.AddInt32(requests, 1)
		fmt.Fprintf(w, `{"code":0,"msg":"ok","tenant_access_token":"token-%d","expire":7200}`, n)
	}))
}

func TestTokenCache_ExchangesAndCaches(t *testing.T) {
	var requests int32
	srv := newTokenServer(t, &requests)
	defer srv.Close()

	cache := NewTokenCache(srv.URL, "app-id", "app-secret", time.Second, nil, zerolog.Nop())

	token, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)

	// Second call is served from the in-process cache.
	token, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestTokenCache_InvalidateForcesExchange(t *testing.T) {
	var requests int32
	srv := newTokenServer(t, &requests)
	defer srv.Close()

	store := &fakeStore{}
	cache := NewTokenCache(srv.URL, "app-id", "app-secret", time.Second, store, zerolog.Nop())

	token, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)

	cache.Invalidate(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.deletes))

	token, err = cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestTokenCache_SharedStoreHitSkipsExchange(t *testing.T) {
	var requests int32
	srv := newTokenServer(t, &requests)
	defer srv.Close()

	store := &fakeStore{token: "shared-token", ttl: time.Hour}
	cache := NewTokenCache(srv.URL, "app-id", "app-secret", time.Second, store, zerolog.Nop())

	token, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "shared-token", token)
	assert.Equal(t, int32(0), atomic.LoadInt32(&requests))
}

func TestTokenCache_NearExpiredSharedTokenIsRefreshed(t *testing.T) {
	var requests int32
	srv := newTokenServer(t, &requests)
	defer srv.Close()

	// Remaining TTL inside the refresh margin: not worth reusing.
	store := &fakeStore{token: "shared-token", ttl: time.Minute}
	cache := NewTokenCache(srv.URL, "app-id", "app-secret", time.Second, store, zerolog.Nop())

	token, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.sets))
}

func TestTokenCache_StoreFailureIsNonFatal(t *testing.T) {
	var requests int32
	srv := newTokenServer(t, &requests)
	defer srv.Close()

	store := &fakeStore{failAll: true}
	cache := NewTokenCache(srv.URL, "app-id", "app-secret", time.Second, store, zerolog.Nop())

	token, err := cache.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
}

func TestTokenCache_UpstreamErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":10003,"msg":"invalid app_id"}`)
	}))
	defer srv.Close()

	cache := NewTokenCache(srv.URL, "bad-app", "bad-secret", time.Second, nil, zerolog.Nop())

	_, err := cache.Token(context.Background())
	require.Error(t, err)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Message, "获取访问令牌失败")
	assert.Equal(t, 10003, ce.Code)
}
