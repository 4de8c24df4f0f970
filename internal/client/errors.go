package client

import (
	"errors"
	"fmt"
)

// ErrorKind classifies upstream failures so the HTTP layer can map each
// one to a status code without string matching.
type ErrorKind int

const (
	// KindUpstream is a generic upstream error whose message is passed
	// through to the caller.
	KindUpstream ErrorKind = iota
	// KindNotFound covers instance-not-found and no-permission, which
	// Feishu reports interchangeably.
	KindNotFound
	// KindBadCode means the instance code is malformed.
	KindBadCode
	// KindAppUnauthorized means the app lacks approval API permission.
	KindAppUnauthorized
	// KindTimeout means network retries were exhausted.
	KindTimeout
)

// Feishu error codes with dedicated handling.
const (
	codeTokenExpired    = 99991663
	codeAppUnauthorized = 99991664
	codeBadInstanceCode = 400007
	codeNotFound        = 400008
	codeCodeNotFound    = 1390003
)

// User-facing messages, surfaced verbatim by the UI.
const (
	msgNotFound        = "审批流程不存在或无权限访问"
	msgBadCode         = "审批实例编码格式不正确"
	msgAppUnauthorized = "应用未获得审批权限"
	msgTimeout         = "网络连接超时，请检查网络后重试"
	msgGenericFailure  = "获取审批数据失败，请稍后重试"
)

// Error is a classified upstream failure. Code carries the Feishu
// numeric error code when one was reported.
type Error struct {
	Kind    ErrorKind
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
	}
	return e.Message
}

// KindOf extracts the error kind from err, defaulting to KindUpstream
// for anything that is not a classified client error.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUpstream
}

// apiError maps a nonzero Feishu response code to a classified error.
func apiError(code int, msg string) *Error {
	switch code {
	case codeNotFound, codeCodeNotFound:
		return &Error{Kind: KindNotFound, Message: msgNotFound, Code: code}
	case codeBadInstanceCode:
		return &Error{Kind: KindBadCode, Message: msgBadCode, Code: code}
	case codeAppUnauthorized:
		return &Error{Kind: KindAppUnauthorized, Message: msgAppUnauthorized, Code: code}
	default:
		if msg == "" {
			msg = "未知错误"
		}
		return &Error{Kind: KindUpstream, Message: "获取审批数据失败: " + msg, Code: code}
	}
}

// statusError maps an HTTP status to a classified error when the
// response body carried no Feishu error code.
func statusError(status int) *Error {
	switch {
	case status == 400:
		return &Error{Kind: KindBadCode, Message: "审批流程不存在或参数错误"}
	case status == 403:
		return &Error{Kind: KindNotFound, Message: "无权限访问该审批流程"}
	case status == 404:
		return &Error{Kind: KindNotFound, Message: "审批流程不存在"}
	case status >= 500:
		return &Error{Kind: KindUpstream, Message: "服务器错误，请稍后重试"}
	default:
		return &Error{Kind: KindUpstream, Message: fmt.Sprintf("获取审批数据失败: HTTP %d", status)}
	}
}
