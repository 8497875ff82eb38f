package models

import (
	"strings"
)

// GenerateRequest 客户端入站请求
type GenerateRequest struct {
	Prompt  string `json:"prompt" binding:"required"`
	ModelID string `json:"modelId,omitempty"`
}

// GenerateResponse 成功响应，只返回生成的文本
type GenerateResponse struct {
	Content string `json:"content"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{Error: message}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status      string `json:"status"`
	Profile     string `json:"profile"`
	Credentials int    `json:"credentials"`
	Timestamp   int64  `json:"timestamp"`
}

// ChatCompletionRequest OpenAI 兼容的聊天请求（上游）
type ChatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

// ChatMessage 聊天消息
type ChatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// ChatCompletionResponse 上游聊天响应，成功和失败共用一个结构体解析
type ChatCompletionResponse struct {
	ID      string                 `json:"id,omitempty"`
	Model   string                 `json:"model,omitempty"`
	Choices []ChatCompletionChoice `json:"choices"`
	Error   *UpstreamErrorBody     `json:"error,omitempty"`
}

// ChatCompletionChoice 聊天选择
type ChatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// UpstreamErrorBody 上游错误体 { "error": { "message": "...", "code": 429 } }
// OpenRouter 的 code 可能是数字也可能是字符串
type UpstreamErrorBody struct {
	Message string      `json:"message"`
	Code    interface{} `json:"code,omitempty"`
}

// StringContent 从ChatMessage.Content提取字符串内容
// 支持普通字符串和多模态数组格式
func (m *ChatMessage) StringContent() string {
	if m.Content == nil {
		return ""
	}

	if str, ok := m.Content.(string); ok {
		return str
	}

	// 多模态数组格式 [{"type": "text", "text": "..."}, ...]
	if arr, ok := m.Content.([]interface{}); ok {
		var result strings.Builder
		for _, item := range arr {
			itemMap, ok := item.(map[string]interface{})
			if !ok || itemMap["type"] != "text" {
				continue
			}
			if text, ok := itemMap["text"].(string); ok {
				if result.Len() > 0 {
					result.WriteString(" ")
				}
				result.WriteString(text)
			}
		}
		return result.String()
	}

	return ""
}

// MaskAPIKey 脱敏API Key，只保留末尾 4 位
func MaskAPIKey(key string) string {
	if len(key) <= 4 {
		return "***"
	}
	return "***" + key[len(key)-4:]
}
