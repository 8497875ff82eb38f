package core

import "strings"

// CredentialPool 只读的凭证池，进程启动时构建一次
type CredentialPool struct {
	keys []string
}

// NewCredentialPool 构建凭证池：去掉首尾空白、空值和重复项，保留首次出现的顺序
func NewCredentialPool(keys ...string) CredentialPool {
	seen := make(map[string]struct{}, len(keys))
	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		cleaned = append(cleaned, k)
	}
	return CredentialPool{keys: cleaned}
}

// Len 凭证数量
func (p CredentialPool) Len() int { return len(p.keys) }

// Empty 是否为空
func (p CredentialPool) Empty() bool { return len(p.keys) == 0 }

// Keys 返回副本，调用方可以随意修改
func (p CredentialPool) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}
