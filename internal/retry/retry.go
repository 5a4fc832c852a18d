// Package retry は副作用のある呼び出しを回数上限つきで再試行する。
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy は最大試行回数と指数バックオフの基準値。
// n回目の失敗後は BaseDelay * 2^(n-1) 待つ。
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// テストで差し替える
	Sleep func(ctx context.Context, d time.Duration) error
}

// 確認メール用（初回+再試行3回、2s/4s/8s）
func EmailPolicy() Policy {
	return Policy{MaxAttempts: 4, BaseDelay: 2 * time.Second}
}

// n回目の失敗後に待つ時間
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay * time.Duration(1<<(attempt-1))
}

// Do は fn が成功するか試行回数を使い切るまで呼ぶ。
// onRetry は失敗のたびに呼ばれる（nil可）。
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error, onRetry func(attempt int, err error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if attempt == attempts {
			break
		}
		if serr := sleep(ctx, p.Backoff(attempt)); serr != nil {
			return fmt.Errorf("retry aborted after %d attempts: %w", attempt, serr)
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
