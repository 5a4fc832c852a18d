package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingPolicy(attempts int, slept *[]time.Duration) Policy {
	return Policy{
		MaxAttempts: attempts,
		BaseDelay:   2 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		},
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	var slept []time.Duration
	calls := 0

	err := recordingPolicy(3, &slept).Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, slept)
}

func TestDo_ExponentialBackoffUntilSuccess(t *testing.T) {
	var slept []time.Duration
	calls := 0

	err := recordingPolicy(3, &slept).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("smtp down")
		}
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, slept)
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	var slept []time.Duration
	var retried []int
	boom := errors.New("boom")

	err := recordingPolicy(3, &slept).Do(context.Background(), func(context.Context) error {
		return boom
	}, func(attempt int, err error) {
		retried = append(retried, attempt)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1, 2, 3}, retried)
	// 最後の失敗の後は待たない
	assert.Len(t, slept, 2)
}

func TestDo_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	p := Policy{MaxAttempts: 3, BaseDelay: time.Hour}
	err := p.Do(ctx, func(context.Context) error {
		calls++
		return errors.New("fail")
	}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestEmailPolicy_ThreeRetries(t *testing.T) {
	var slept []time.Duration
	p := EmailPolicy()
	p.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("resend: 503")
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, slept)
}

func TestBackoff(t *testing.T) {
	p := EmailPolicy()
	assert.Equal(t, 2*time.Second, p.Backoff(1))
	assert.Equal(t, 4*time.Second, p.Backoff(2))
	assert.Equal(t, 8*time.Second, p.Backoff(3))
}
