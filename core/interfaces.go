package core

import (
	"context"

	"xpostr-proxy/models"
)

// Upstream 抽象一次上游 chat-completion 调用
// 成功返回生成的文本；失败返回 *UpstreamError 或传输层错误
type Upstream interface {
	Complete(ctx context.Context, credential string, req *models.ChatCompletionRequest) (string, error)
}

// KeyOrderStrategy 决定一次分发中凭证的尝试顺序
// 实现必须返回新切片，不能修改入参
type KeyOrderStrategy interface {
	Name() string
	Order(pool CredentialPool) []string
}

// SecretProvider 抽象密钥加解密
// 用于读取配置时自动解密 API Key
type SecretProvider interface {
	Decrypt(ciphertext string) (string, error)
	Encrypt(plaintext string) (string, error)
}
