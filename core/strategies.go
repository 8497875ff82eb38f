package core

import (
	"math/rand"
)

// ShuffleStrategy 随机顺序（Fisher–Yates 均匀洗牌）
// 目的只是避免每次都先打同一个 Key，不需要密码学随机
type ShuffleStrategy struct{}

func (s *ShuffleStrategy) Name() string { return "shuffle" }

func (s *ShuffleStrategy) Order(pool CredentialPool) []string {
	keys := pool.Keys()
	rand.Shuffle(len(keys), func(i, j int) {
		keys[i], keys[j] = keys[j], keys[i]
	})
	return keys
}

// FixedOrderStrategy 按配置顺序尝试（测试和调试用）
type FixedOrderStrategy struct{}

func (s *FixedOrderStrategy) Name() string { return "fixed" }

func (s *FixedOrderStrategy) Order(pool CredentialPool) []string {
	return pool.Keys()
}

// StrategyByName 根据名称返回策略，未知名称回退到 shuffle
func StrategyByName(name string) KeyOrderStrategy {
	switch name {
	case "fixed":
		return &FixedOrderStrategy{}
	default:
		return &ShuffleStrategy{}
	}
}
