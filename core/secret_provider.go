package core

import "strings"

// EncryptedPrefix 加密凭证的前缀，例如 "enc:BASE64..."
const EncryptedPrefix = "enc:"

// NoOpSecretProvider 明文透传，未配置 CREDENTIAL_SECRET 时使用
type NoOpSecretProvider struct{}

func NewNoOpSecretProvider() *NoOpSecretProvider {
	return &NoOpSecretProvider{}
}

func (s *NoOpSecretProvider) Decrypt(ciphertext string) (string, error) {
	return ciphertext, nil
}

func (s *NoOpSecretProvider) Encrypt(plaintext string) (string, error) {
	return plaintext, nil
}

// IsEncrypted 判断配置值是否为加密凭证
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

// ResolveSecret 加密值交给 provider 解密，明文原样返回
func ResolveSecret(sp SecretProvider, value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	return sp.Decrypt(value)
}
