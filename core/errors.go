package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrNoContent          = errors.New("no content generated")
)

// ErrorKind 上游错误分类
type ErrorKind int

const (
	ErrorKindUnknown ErrorKind = iota
	ErrorKindRateLimited
	ErrorKindInvalidRequest
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindRateLimited:
		return "rate_limited"
	case ErrorKindInvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// exhaustionMarkers 出现在错误信息里即认为 Key 额度耗尽
var exhaustionMarkers = []string{"rate limit", "credits", "quota"}

// UpstreamError 上游返回的错误（HTTP 层之上）
type UpstreamError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

// Error 直接返回上游的 message，最终会原样透传给客户端
func (e *UpstreamError) Error() string {
	return e.Message
}

// KeyExhausted 是否为额度/限流类错误
func (e *UpstreamError) KeyExhausted() bool {
	return e.Kind == ErrorKindRateLimited
}

// NewUpstreamError 根据状态码和错误信息构造分类后的错误
func NewUpstreamError(statusCode int, message string) *UpstreamError {
	return &UpstreamError{
		Kind:       ClassifyUpstreamError(statusCode, message),
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewUnparsedUpstreamError 非 2xx 且没有可解析的错误体
func NewUnparsedUpstreamError(statusCode int) *UpstreamError {
	return &UpstreamError{
		Kind:       ErrorKindUnknown,
		StatusCode: statusCode,
		Message:    fmt.Sprintf("OpenRouter API error: HTTP %d", statusCode),
	}
}

// ClassifyUpstreamError 关键词优先，其次看状态码
// 401/403 归为 Unknown：换一个账号的 Key 可能就能成功
func ClassifyUpstreamError(statusCode int, message string) ErrorKind {
	lowered := strings.ToLower(message)
	for _, marker := range exhaustionMarkers {
		if strings.Contains(lowered, marker) {
			return ErrorKindRateLimited
		}
	}

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		return ErrorKindRateLimited
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return ErrorKindInvalidRequest
	default:
		return ErrorKindUnknown
	}
}
