package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"xpostr-proxy/core"
	"xpostr-proxy/models"
)

const (
	DefaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"

	// 上游响应体最多读取 1 MiB
	maxResponseBytes = 1 << 20
)

// OpenRouterConfig 上游配置
type OpenRouterConfig struct {
	Endpoint string
	Referer  string // HTTP-Referer，仅用于 OpenRouter 的来源归属
	Title    string // X-Title
}

// OpenRouterClient OpenRouter chat-completion 客户端，实现 core.Upstream
type OpenRouterClient struct {
	cfg    OpenRouterConfig
	client *http.Client
}

func NewOpenRouterClient(cfg OpenRouterConfig, client *http.Client) *OpenRouterClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if client == nil {
		client = core.NewHTTPClient()
	}
	return &OpenRouterClient{cfg: cfg, client: client}
}

// Complete 用指定凭证发起一次调用，返回第一个 choice 的文本
func (c *OpenRouterClient) Complete(ctx context.Context, credential string, reqData *models.ChatCompletionRequest) (string, error) {
	reqBodyBytes, err := json.Marshal(reqData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSpace(c.cfg.Endpoint), bytes.NewReader(reqBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read upstream response: %w", err)
	}

	return parseCompletion(resp.StatusCode, body)
}

// parseCompletion 解析上游响应
// 即使状态码是 200，只要带 error 字段也按错误处理
func parseCompletion(statusCode int, body []byte) (string, error) {
	var data models.ChatCompletionResponse
	parseErr := json.Unmarshal(body, &data)

	if parseErr == nil && data.Error != nil {
		message := data.Error.Message
		if message == "" {
			message = "OpenRouter API error"
		}
		return "", core.NewUpstreamError(statusCode, message)
	}

	if statusCode < 200 || statusCode >= 300 {
		return "", core.NewUnparsedUpstreamError(statusCode)
	}

	if parseErr != nil {
		return "", fmt.Errorf("invalid upstream response: %w", parseErr)
	}

	if len(data.Choices) == 0 {
		return "", core.ErrNoContent
	}

	content := data.Choices[0].Message.StringContent()
	if content == "" {
		return "", core.ErrNoContent
	}
	return content, nil
}
