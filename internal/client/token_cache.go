package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"github.com/ai520510xyf-del/cl-dev-tool-server/internal/repository"
)

const tenantTokenPath = "/open-apis/auth/v3/tenant_access_token/internal"

// refreshMargin is subtracted from the upstream token lifetime so a
// token is never handed out moments before it expires.
const refreshMargin = 5 * time.Minute

// TokenStore is the optional shared cache behind the in-process token
// cache. Satisfied by repository.TokenRepository.
type TokenStore interface {
	Get(ctx context.Context) (string, time.Duration, error)
	Set(ctx context.Context, token string, ttl time.Duration) error
	Delete(ctx context.Context) error
}

// compile-time check that the Redis repository satisfies TokenStore
var _ TokenStore = (*repository.TokenRepository)(nil)

// TokenCache returns a valid tenant access token, exchanging a fresh
// one when the cached token is absent or near expiry. A nil store
// means in-process caching only; store failures degrade to the same
// and are logged, never propagated.
type TokenCache struct {
	baseURL   string
	appID     string
	appSecret string
	http      *http.Client
	store     TokenStore
	log       zerolog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenCache builds a token cache for the given app credentials.
func NewTokenCache(baseURL, appID, appSecret string, timeout time.Duration, store TokenStore, log zerolog.Logger) *TokenCache {
	return &TokenCache{
		baseURL:   baseURL,
		appID:     appID,
		appSecret: appSecret,
		http:      &http.Client{Timeout: timeout},
		store:     store,
		log:       log,
	}
}

// Token returns a valid tenant access token. Concurrent callers are
// serialized, so a refresh happens at most once per expiry.
func (t *TokenCache) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && time.Now().Before(t.expiresAt) {
		return t.token, nil
	}

	// Another instance may have refreshed the shared cache already.
	if t.store != nil {
		token, ttl, err := t.store.Get(ctx)
		if err != nil {
			t.log.Warn().Err(err).Msg("token cache: shared store read failed, falling back to exchange")
		} else if token != "" && ttl > refreshMargin {
			t.token = token
			t.expiresAt = time.Now().Add(ttl - refreshMargin)
			return t.token, nil
		}
	}

	token, expire, err := t.exchange(ctx)
	if err != nil {
		return "", err
	}

	ttl := time.Duration(expire) * time.Second
	t.token = token
	t.expiresAt = time.Now().Add(ttl - refreshMargin)

	if t.store != nil {
		if err := t.store.Set(ctx, token, ttl); err != nil {
			t.log.Warn().Err(err).Msg("token cache: shared store write failed (non-fatal)")
		}
	}

	t.log.Info().Int("expire_seconds", expire).Msg("tenant access token refreshed")
	return token, nil
}

// Invalidate drops the cached token everywhere. Called by the fetch
// client when Feishu reports the token expired.
func (t *TokenCache) Invalidate(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.token = ""
	t.expiresAt = time.Time{}

	if t.store != nil {
		if err := t.store.Delete(ctx); err != nil {
			t.log.Warn().Err(err).Msg("token cache: shared store delete failed (non-fatal)")
		}
	}
}

// exchange calls the tenant_access_token endpoint.
func (t *TokenCache) exchange(ctx context.Context) (string, int, error) {
	body, err := sonic.Marshal(map[string]string{
		"app_id":     t.appID,
		"app_secret": t.appSecret,
	})
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+tenantTokenPath, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("token exchange read failed: %w", err)
	}

	var tokenResp tenantTokenResponse
	if err := sonic.Unmarshal(raw, &tokenResp); err != nil {
		return "", 0, fmt.Errorf("token exchange decode failed: %w", err)
	}
	if tokenResp.Code != 0 {
		return "", 0, &Error{Kind: KindUpstream, Message: "获取访问令牌失败: " + tokenResp.Msg, Code: tokenResp.Code}
	}
	if tokenResp.TenantAccessToken == "" {
		return "", 0, &Error{Kind: KindUpstream, Message: "获取访问令牌失败: 响应缺少令牌"}
	}

	return tokenResp.TenantAccessToken, tokenResp.Expire, nil
}
