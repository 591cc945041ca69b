// Package ratelimit 基于 Redis 的登录/注册尝试限制
//
// 固定窗口计数：对同一邮箱的失败尝试在窗口内累加，超过阈值则拒绝。
// Redis 不可用时降级为不限制（限流是防护层，不是正确性依赖）。
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTooManyAttempts 尝试次数超限
var ErrTooManyAttempts = errors.New("too many attempts, please try again later")

const (
	loginLimit   = 5
	loginWindow  = 15 * time.Minute
	signupLimit  = 3
	signupWindow = time.Hour
)

// Limiter 尝试次数限制器
// client 为 nil 时所有检查直接放行
type Limiter struct {
	client *redis.Client
}

// NewLimiter 创建限制器
func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// check 固定窗口计数检查
func (l *Limiter) check(ctx context.Context, key string, limit int64, window time.Duration) error {
	if l.client == nil {
		return nil
	}

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		// Redis 故障时放行，不阻塞登录
		return nil
	}
	if count == 1 {
		l.client.Expire(ctx, key, window)
	}
	if count > limit {
		return ErrTooManyAttempts
	}
	return nil
}

// CheckLogin 登录尝试检查
func (l *Limiter) CheckLogin(ctx context.Context, email string) error {
	return l.check(ctx, fmt.Sprintf("login_attempts:%s", email), loginLimit, loginWindow)
}

// CheckSignup 注册尝试检查
func (l *Limiter) CheckSignup(ctx context.Context, email string) error {
	return l.check(ctx, fmt.Sprintf("signup_attempts:%s", email), signupLimit, signupWindow)
}

// ResetLogin 登录成功后清除计数
func (l *Limiter) ResetLogin(ctx context.Context, email string) {
	if l.client == nil {
		return
	}
	l.client.Del(ctx, fmt.Sprintf("login_attempts:%s", email))
}
