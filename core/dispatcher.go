package core

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"xpostr-proxy/models"
)

// Outcome 单次凭证尝试的结果
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeRetryable Outcome = "retryable"
	OutcomeFatal     Outcome = "fatal"
)

// GenerationRequest 一次生成请求；Prompt 由调用方保证非空
type GenerationRequest struct {
	Prompt  string
	ModelID string
}

// Attempt 单次凭证尝试的记录，只在一次分发内存在
type Attempt struct {
	CredentialSuffix string
	Outcome          Outcome
	Kind             string
	Err              error
	Duration         time.Duration
}

// DispatchResult 分发结果
type DispatchResult struct {
	Content  string
	Model    string
	Attempts []Attempt
}

// LastCredentialSuffix 最后一次尝试的凭证后缀（已脱敏）
func (r *DispatchResult) LastCredentialSuffix() string {
	if r == nil || len(r.Attempts) == 0 {
		return ""
	}
	return r.Attempts[len(r.Attempts)-1].CredentialSuffix
}

// DispatcherOptions 分发器配置，未填字段使用默认值
type DispatcherOptions struct {
	DefaultModel             string
	SystemPrompt             string
	AttemptTimeout           time.Duration
	Strategy                 KeyOrderStrategy
	FailFastOnInvalidRequest bool
	Metrics                  *Metrics
}

// Dispatcher 凭证故障转移分发器
// 逐个凭证顺序尝试，第一个成功即返回；全部失败时返回最后一次的错误
type Dispatcher struct {
	upstream Upstream
	logger   *logrus.Logger
	opts     DispatcherOptions
}

// NewDispatcher 构造函数强制要求依赖注入
func NewDispatcher(upstream Upstream, logger *logrus.Logger, opts DispatcherOptions) *Dispatcher {
	if opts.Strategy == nil {
		opts.Strategy = &ShuffleStrategy{}
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 20 * time.Second
	}
	return &Dispatcher{
		upstream: upstream,
		logger:   logger,
		opts:     opts,
	}
}

// Dispatch 执行一次分发。返回的 DispatchResult 在失败时也不为 nil，便于调用方记录尝试次数
func (d *Dispatcher) Dispatch(ctx context.Context, req GenerationRequest, pool CredentialPool) (*DispatchResult, error) {
	model := req.ModelID
	if model == "" {
		model = d.opts.DefaultModel
	}
	result := &DispatchResult{Model: model}

	if pool.Empty() {
		d.opts.Metrics.observeDispatch("missing_credentials", 0)
		return result, ErrMissingCredentials
	}

	upstreamReq := &models.ChatCompletionRequest{
		Model: model,
		Messages: []models.ChatMessage{
			{Role: "system", Content: d.opts.SystemPrompt},
			{Role: "user", Content: req.Prompt},
		},
	}

	keys := d.opts.Strategy.Order(pool)
	var lastErr error

	for i, key := range keys {
		// 调用方断开或整体预算耗尽，不再继续尝试后面的 Key
		if err := ctx.Err(); err != nil {
			d.logger.Warnf("Dispatch aborted before attempt %d/%d: %v", i+1, len(keys), err)
			d.opts.Metrics.observeDispatch("aborted", len(result.Attempts))
			return result, err
		}

		attempt := d.try(ctx, key, upstreamReq)
		result.Attempts = append(result.Attempts, attempt.Attempt)
		d.opts.Metrics.observeAttempt(attempt.Attempt, model)

		if attempt.Outcome == OutcomeSuccess {
			d.logger.Infof("Success: [%s] (Key: %s) | Attempt %d/%d | Latency: %dms",
				model, attempt.CredentialSuffix, i+1, len(keys), attempt.Duration.Milliseconds())
			result.Content = attempt.content
			d.opts.Metrics.observeDispatch("success", len(result.Attempts))
			return result, nil
		}

		lastErr = attempt.Err
		d.logger.WithFields(logrus.Fields{
			"attempt": i + 1,
			"total":   len(keys),
			"key":     attempt.CredentialSuffix,
			"kind":    attempt.Kind,
			"model":   model,
		}).Warnf("Attempt failed: %v", attempt.Err)

		if attempt.Outcome == OutcomeFatal {
			d.opts.Metrics.observeDispatch("fatal", len(result.Attempts))
			return result, lastErr
		}
	}

	d.logger.Errorf("Failed: All %d credentials exhausted, last error: %v", len(keys), lastErr)
	d.opts.Metrics.observeDispatch("exhausted", len(result.Attempts))
	return result, lastErr
}

type attemptResult struct {
	Attempt
	content string
}

// try 用单个凭证调用一次上游，并对结果分类
func (d *Dispatcher) try(ctx context.Context, key string, req *models.ChatCompletionRequest) attemptResult {
	attemptCtx, cancel := context.WithTimeout(ctx, d.opts.AttemptTimeout)
	defer cancel()

	start := time.Now()
	content, err := d.upstream.Complete(attemptCtx, key, req)
	res := attemptResult{
		Attempt: Attempt{
			CredentialSuffix: models.MaskAPIKey(key),
			Duration:         time.Since(start),
		},
	}

	if err == nil && content == "" {
		err = ErrNoContent
	}
	if err == nil {
		res.Outcome = OutcomeSuccess
		res.content = content
		return res
	}

	res.Err = err
	res.Outcome = OutcomeRetryable

	var upErr *UpstreamError
	switch {
	case errors.As(err, &upErr):
		res.Kind = upErr.Kind.String()
		if upErr.KeyExhausted() {
			d.logger.Infof("Key %s exhausted, switching to next key", res.CredentialSuffix)
		}
		if upErr.Kind == ErrorKindInvalidRequest && d.opts.FailFastOnInvalidRequest {
			res.Outcome = OutcomeFatal
		}
	case errors.Is(err, ErrNoContent):
		res.Kind = "no_content"
	default:
		res.Kind = "transport"
	}
	return res
}
