package client

import (
	"context"
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

// fakeTokens is a TokenProvider returning canned tokens and counting
// invalidations.
type fakeTokens struct {
	tokens      []string
	calls       int32
	invalidated int32
}

func (f *fakeTokens) Token(ctx context.Context) (string, error) {
	n := int(atomic.AddInt32(&f.calls, 1)) - 1
	if n >= len(f.tokens) {
		n = len(f.tokens) - 1
	}
	return f.tokens[n], nil
}

func (f *fakeTokens) Invalidate(ctx context.Context) {
	atomic.AddInt32(&f.invalidated, 1)
}

func newTestClient(baseURL string, maxRetries int, tokens TokenProvider) *FeishuClient {
	c := NewFeishuClient(baseURL, 200*time.Millisecond, maxRetries, tokens, zerolog.Nop())
	c.backoffUnit = time.Millisecond
	return c
}

func TestGetApprovalInstance_Success(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/open-apis/approval/v4/instances/inst-1", r.URL.Path)
		fmt.Fprint(w, `{"code":0,"msg":"success","data":{
			"instance_code":"inst-1",
			"approval_name":"报销审批",
			"status":"APPROVED",
			"timeline":[{"type":"PASS","create_time":"1700000000000","open_id":"ou_1","task_id":"t1"}],
			"task_list":[{"id":"t1","status":"DONE","node_name":"经理审批"}]
		}}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3, &fakeTokens{tokens: []string{"tok-1"}})

	inst, err := c.GetApprovalInstance(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, "inst-1", inst.InstanceCode)
	require.Len(t, inst.Timeline, 1)
	assert.Equal(t, "PASS", inst.Timeline[0].Type)
	require.Len(t, inst.TaskList, 1)
	assert.Equal(t, "经理审批", inst.TaskList[0].NodeName)
}

func TestGetApprovalInstance_TokenExpiryRetries(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			fmt.Fprint(w, `{"code":99991663,"msg":"token expired"}`)
			return
		}
		fmt.Fprint(w, `{"code":0,"msg":"success","data":{"instance_code":"inst-1","approval_name":"x","status":"PENDING"}}`)
	}))
	defer srv.Close()

	tokens := &fakeTokens{tokens: []string{"stale", "fresh"}}
	c := newTestClient(srv.URL, 3, tokens)

	inst, err := c.GetApprovalInstance(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "inst-1", inst.InstanceCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokens.invalidated))
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestGetApprovalInstance_PersistentTokenExpiryExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":99991663,"msg":"token expired"}`)
	}))
	defer srv.Close()

	tokens := &fakeTokens{tokens: []string{"stale"}}
	c := newTestClient(srv.URL, 3, tokens)

	_, err := c.GetApprovalInstance(context.Background(), "inst-1")
	require.Error(t, err)
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&tokens.invalidated))
}

func TestGetApprovalInstance_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name            string
		body            string
		expectedKind    ErrorKind
		expectedMessage string
	}{
		{
			name:            "instance not found",
			body:            `{"code":400008,"msg":"not found"}`,
			expectedKind:    KindNotFound,
			expectedMessage: "审批流程不存在或无权限访问",
		},
		{
			name:            "instance code not found",
			body:            `{"code":1390003,"msg":"no instance"}`,
			expectedKind:    KindNotFound,
			expectedMessage: "审批流程不存在或无权限访问",
		},
		{
			name:            "malformed instance code",
			body:            `{"code":400007,"msg":"bad code"}`,
			expectedKind:    KindBadCode,
			expectedMessage: "审批实例编码格式不正确",
		},
		{
			name:            "app not approved",
			body:            `{"code":99991664,"msg":"app unauthorized"}`,
			expectedKind:    KindAppUnauthorized,
			expectedMessage: "应用未获得审批权限",
		},
		{
			name:            "generic upstream error passes message through",
			body:            `{"code":50002,"msg":"internal busy"}`,
			expectedKind:    KindUpstream,
			expectedMessage: "获取审批数据失败: internal busy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			c := newTestClient(srv.URL, 3, &fakeTokens{tokens: []string{"tok"}})

			_, err := c.GetApprovalInstance(context.Background(), "inst-1")
			require.Error(t, err)

			var ce *Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.expectedKind, ce.Kind)
			assert.Equal(t, tt.expectedMessage, ce.Message)
		})
	}
}

func TestGetApprovalInstance_EnvelopeErrorOnNon2xxStatus(t *testing.T) {
	// Feishu sometimes returns an error envelope with a 4xx status; the
	// envelope code must win over the HTTP status mapping.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":400007,"msg":"bad code"}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3, &fakeTokens{tokens: []string{"tok"}})

	_, err := c.GetApprovalInstance(context.Background(), "inst-1")
	require.Error(t, err)
	assert.Equal(t, KindBadCode, KindOf(err))
}

func TestGetApprovalInstance_HTTPStatusFallbacks(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		expectedKind    ErrorKind
		expectedMessage string
	}{
		{name: "bad request", status: 400, expectedKind: KindBadCode, expectedMessage: "审批流程不存在或参数错误"},
		{name: "forbidden", status: 403, expectedKind: KindNotFound, expectedMessage: "无权限访问该审批流程"},
		{name: "not found", status: 404, expectedKind: KindNotFound, expectedMessage: "审批流程不存在"},
		{name: "server error", status: 500, expectedKind: KindUpstream, expectedMessage: "服务器错误，请稍后重试"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `plain error page`)
			}))
			defer srv.Close()

			c := newTestClient(srv.URL, 3, &fakeTokens{tokens: []string{"tok"}})

			_, err := c.GetApprovalInstance(context.Background(), "inst-1")
			require.Error(t, err)

			var ce *Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.expectedKind, ce.Kind)
			assert.Equal(t, tt.expectedMessage, ce.Message)
		})
	}
}

func TestGetApprovalInstance_NetworkTimeoutExhaustsRetries(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 2, &fakeTokens{tokens: []string{"tok"}})

	_, err := c.GetApprovalInstance(context.Background(), "inst-1")
	require.Error(t, err)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindTimeout, ce.Kind)
	assert.Equal(t, "网络连接超时，请检查网络后重试", ce.Message)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}
