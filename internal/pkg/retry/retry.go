package retry

import (
	"context"
	"strings"
	"time"

	"k8s.io/klog/v2"
)

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = 2 * time.Second
)

// Executor 对单个上游请求做有界指数退避重试
// 每个调用点持有独立的重试计数，互不共享预算
type Executor struct {
	MaxRetries   int
	InitialDelay time.Duration

	// sleep 可注入，测试中用于记录等待时长而不真实等待
	sleep func(ctx context.Context, d time.Duration) error
}

// New 创建重试执行器
func New(maxRetries int, initialDelay time.Duration) *Executor {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if initialDelay <= 0 {
		initialDelay = DefaultInitialDelay
	}
	return &Executor{
		MaxRetries:   maxRetries,
		InitialDelay: initialDelay,
		sleep:        sleepContext,
	}
}

// WithSleep 替换等待实现，返回自身便于链式使用
func (e *Executor) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Executor {
	e.sleep = sleep
	return e
}

// Do 执行一个带返回值的可失败操作
// 仅当错误被判定为限流或服务不可用（429/503）且还有剩余次数时等待后重试，
// 等待时长为 InitialDelay * 2^(attempt-1)，无抖动；其余错误原样返回
func Do[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for i := 0; i < e.MaxRetries; i++ {
		if i > 0 {
			waitTime := e.InitialDelay << (i - 1)
			klog.Warningf("上游限流，等待 %v 后重试 (%d/%d)", waitTime, i, e.MaxRetries)
			if err := e.sleep(ctx, waitTime); err != nil {
				return zero, err
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if IsTransient(err) && i < e.MaxRetries-1 {
			klog.Warningf("上游瞬时错误 (attempt %d/%d): %v", i+1, e.MaxRetries, err)
			continue
		}
		return zero, err
	}

	return zero, lastErr
}

// IsTransient 判断错误是否为限流或服务不可用类瞬时错误
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	errMsg := strings.ToLower(err.Error())

	// 上游的 429/503 通常出现在错误文本的状态码里
	if strings.Contains(errMsg, "429") || strings.Contains(errMsg, "503") {
		return true
	}

	transientKeywords := []string{
		"rate limit",
		"too many requests",
		"service unavailable",
		"quota exceeded",
		"请求次数超过限制",
	}

	for _, keyword := range transientKeywords {
		if strings.Contains(errMsg, keyword) {
			return true
		}
	}

	return false
}

// sleepContext 可被 ctx 打断的等待
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
