package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// envelopePrefix 与 core.EncryptedPrefix 保持一致
const envelopePrefix = "enc:"

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// AESSecretProvider 基于 AES-256-GCM 的凭证加解密
// 密文格式: "enc:" + base64(nonce || sealed)
type AESSecretProvider struct {
	aead cipher.AEAD
}

// NewAESSecretProvider 任意长度的口令经 SHA-256 派生为 32 字节密钥
func NewAESSecretProvider(passphrase string) (*AESSecretProvider, error) {
	if passphrase == "" {
		return nil, errors.New("empty credential secret")
	}
	key := sha256.Sum256([]byte(passphrase))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return &AESSecretProvider{aead: aead}, nil
}

func (p *AESSecretProvider) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := p.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return envelopePrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt 接受带或不带 "enc:" 前缀的密文
func (p *AESSecretProvider) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, envelopePrefix))
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext encoding: %w", err)
	}

	nonceSize := p.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrCiphertextTooShort
	}

	plaintext, err := p.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential: %w", err)
	}
	return string(plaintext), nil
}
