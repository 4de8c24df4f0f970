package client

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
)

const instanceDetailPath = "/open-apis/approval/v4/instances/"

// TokenProvider supplies bearer tokens and accepts expiry signals.
// Satisfied by TokenCache.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Invalidate(ctx context.Context)
}

// FeishuClient fetches approval instance detail from the Feishu open
// API. Token-expiry responses trigger a cache invalidation and an
// immediate retry; network timeouts and resets retry with linear
// backoff. Everything else fails fast with a classified error.
type FeishuClient struct {
	baseURL    string
	http       *http.Client
	tokens     TokenProvider
	maxRetries int
	// backoffUnit scales the linear backoff (attempt × unit). Tests
	// shrink it to keep retry paths fast.
	backoffUnit time.Duration
	log         zerolog.Logger
}

// NewFeishuClient creates an approval fetch client.
func NewFeishuClient(baseURL string, timeout time.Duration, maxRetries int, tokens TokenProvider, log zerolog.Logger) *FeishuClient {
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &FeishuClient{
		baseURL:     baseURL,
		http:        &http.Client{Timeout: timeout},
		tokens:      tokens,
		maxRetries:  maxRetries,
		backoffUnit: time.Second,
		log:         log,
	}
}

// GetApprovalInstance fetches one approval instance by code.
func (c *FeishuClient) GetApprovalInstance(ctx context.Context, instanceCode string) (*ApprovalInstance, error) {
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := c.fetch(ctx, instanceCode, token)
		if err != nil {
			if isNetworkError(err) {
				if attempt < c.maxRetries {
					delay := time.Duration(attempt) * c.backoffUnit
					c.log.Warn().Err(err).
						Int("attempt", attempt).
						Dur("delay", delay).
						Str("instance_code", instanceCode).
						Msg("network error fetching approval instance, retrying")
					select {
					case <-time.After(delay):
					case <-ctx.Done():
						return nil, ctx.Err()
					}
					continue
				}
				return nil, &Error{Kind: KindTimeout, Message: msgTimeout}
			}
			return nil, err
		}

		if resp.Code == codeTokenExpired {
			c.log.Warn().Int("attempt", attempt).Msg("tenant token expired, invalidating cache and retrying")
			c.tokens.Invalidate(ctx)
			continue
		}
		if resp.Code != 0 {
			c.log.Error().
				Int("code", resp.Code).
				Str("msg", resp.Msg).
				Str("instance_code", instanceCode).
				Msg("Feishu API returned error")
			return nil, apiError(resp.Code, resp.Msg)
		}

		c.log.Debug().
			Str("instance_code", instanceCode).
			Int("timeline_events", len(resp.Data.Timeline)).
			Int("tasks", len(resp.Data.TaskList)).
			Msg("approval instance fetched")
		return &resp.Data, nil
	}

	return nil, &Error{Kind: KindUpstream, Message: msgGenericFailure}
}

// fetch performs one instance-detail request and decodes the envelope.
// Non-2xx responses still carry a Feishu error envelope sometimes, so
// the body is decoded before falling back to HTTP status mapping.
func (c *FeishuClient) fetch(ctx context.Context, instanceCode, token string) (*instanceResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+instanceDetailPath+instanceCode, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var envelope instanceResponse
	if decodeErr := sonic.Unmarshal(raw, &envelope); decodeErr == nil && envelope.Code != 0 {
		// The body carries a Feishu error code regardless of HTTP status.
		return &envelope, nil
	} else if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode)
	} else if decodeErr != nil {
		return nil, &Error{Kind: KindUpstream, Message: "获取审批数据失败: 响应格式错误"}
	}

	return &envelope, nil
}

// isNetworkError reports whether err is a timeout or connection reset,
// the two conditions worth retrying with backoff.
func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
