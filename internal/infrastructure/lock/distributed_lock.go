package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么结算需要分布式锁？】
//
// 场景：同一账单的两个参与人几乎同时完成支付
//
// 如果没有锁：
//   goroutine1: 读参与人列表（u2 未付）-> 写 u1 已付 -> 推导状态=PARTIALLY_PAID
//   goroutine2: 读参与人列表（u1 未付）-> 写 u2 已付 -> 推导状态=PARTIALLY_PAID
//   两笔支付都完成了，但账单永远停在 PARTIALLY_PAID，丢失 PAID
//
// 加锁后同一账单的结算串行执行，后一次推导总能看到前一次的结果
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：使用 Lua 脚本保证原子性
//
// ============================================================================

var (
	ErrLockFailed  = errors.New("获取分布式锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	// SET key value NX EX timeout
	// EX 过期时间防止持有锁的进程崩溃后死锁
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		// 等待一段时间后重试
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
//
// 【关键点】使用 Lua 脚本保证"检查+删除"操作的原子性，
// 只有持有者本人能删除自己的锁，避免误删在自己超时后被他人获取的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// NewSettleLock 创建账单结算锁（按账单维度）
//
// 同一账单的结算（参与人支付状态写入 + 账单状态推导）必须串行；
// 不同账单之间互不影响，可以并发结算。
// value 使用调用方的操作标识（转账 reference 或请求ID），便于追踪锁持有者
func NewSettleLock(client *redis.Client, billID int64, operationID string) *DistributedLock {
	key := fmt.Sprintf("bill:settle:lock:%d", billID)
	return NewDistributedLock(client, key, operationID, 30*time.Second)
}
