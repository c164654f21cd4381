package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryString(t *testing.T) {
	tests := []struct {
		category Category
		expected string
	}{
		{CategoryTransient, "transient"},
		{CategoryPermanent, "permanent"},
		{CategoryInvalid, "invalid"},
		{Category(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.category.String(); got != tt.expected {
				t.Errorf("Category(%d).String() = %s, want %s", tt.category, got, tt.expected)
			}
		})
	}
}

func TestCategorize(t *testing.T) {
	connErr := &ConnectionError{URL: "nats://localhost:4222", Op: "dial", Err: errors.New("refused")}

	tests := []struct {
		name     string
		err      error
		expected Category
	}{
		{"nil error", nil, CategoryPermanent},
		{"connection error", connErr, CategoryTransient},
		{"wrapped connection error", fmt.Errorf("start node: %w", connErr), CategoryTransient},
		{"decode error", &DecodeError{Subject: "sensors.temp", Err: errors.New("bad json")}, CategoryInvalid},
		{"config error", &ConfigError{Field: "subject", Message: "required"}, CategoryInvalid},
		{"cancelled", context.Canceled, CategoryPermanent},
		{"deadline", context.DeadlineExceeded, CategoryPermanent},
		{"categorized transient", &CategorizedError{Category: CategoryTransient}, CategoryTransient},
		{"categorized overrides inner", Invalid(connErr, "subject"), CategoryInvalid},
		{"unknown", errors.New("unknown"), CategoryPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Categorize(tt.err); got != tt.expected {
				t.Errorf("Categorize(%v) = %s, want %s", tt.err, got, tt.expected)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&ConnectionError{Op: "dial", Err: errors.New("eof")}))
	assert.False(t, IsRetryable(errors.New("boom")))
	assert.False(t, IsRetryable(&DecodeError{Err: errors.New("bad")}))
}

func TestIsInvalid(t *testing.T) {
	assert.True(t, IsInvalid(&ConfigError{Message: "missing"}))
	assert.True(t, IsInvalid(&DecodeError{Err: errors.New("bad")}))
	assert.False(t, IsInvalid(errors.New("boom")))
}

func TestCategorizedError(t *testing.T) {
	inner := errors.New("connection reset")

	t.Run("with context", func(t *testing.T) {
		err := &CategorizedError{Err: inner, Category: CategoryTransient, Retries: 2, Context: "dial broker"}
		assert.Equal(t, "dial broker: connection reset (category: transient, attempts: 2)", err.Error())
	})

	t.Run("without context", func(t *testing.T) {
		err := &CategorizedError{Err: inner, Category: CategoryPermanent}
		assert.Equal(t, "connection reset (category: permanent, attempts: 0)", err.Error())
	})

	t.Run("unwrap", func(t *testing.T) {
		err := Transient(inner, "dial")
		assert.ErrorIs(t, err, inner)
		assert.Equal(t, CategoryTransient, err.Category)
	})
}

func TestTypedErrors(t *testing.T) {
	inner := errors.New("refused")

	t.Run("connection", func(t *testing.T) {
		err := &ConnectionError{URL: "nats://a:4222", Op: "dial", Err: inner}
		assert.Equal(t, "dial nats://a:4222: refused", err.Error())
		assert.ErrorIs(t, err, inner)
	})

	t.Run("decode", func(t *testing.T) {
		err := &DecodeError{Subject: "in.x", Err: inner}
		assert.Equal(t, "decode payload from in.x: refused", err.Error())
		assert.ErrorIs(t, err, inner)
	})

	t.Run("config with field", func(t *testing.T) {
		err := &ConfigError{Field: "nodes[0].id", Message: "required"}
		assert.Equal(t, "config error on nodes[0].id: required", err.Error())
	})

	t.Run("config without field", func(t *testing.T) {
		err := &ConfigError{Message: "empty flow"}
		assert.Equal(t, "config error: empty flow", err.Error())
	})
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func TestWithRetry_SucceedsFirstAttempt(t *testing.T) {
	result := WithRetry(fastRetry(3), func() (string, error) {
		return "ok", nil
	})

	require.NoError(t, result.Err)
	assert.Equal(t, "ok", result.Value)
	assert.Equal(t, 1, result.Attempts)
}

func TestWithRetry_RetriesTransient(t *testing.T) {
	calls := 0
	result := WithRetry(fastRetry(3), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, &ConnectionError{Op: "dial", Err: errors.New("refused")}
		}
		return 42, nil
	})

	require.NoError(t, result.Err)
	assert.Equal(t, 42, result.Value)
	assert.Equal(t, 3, result.Attempts)
}

func TestWithRetry_StopsOnPermanent(t *testing.T) {
	calls := 0
	result := WithRetry(fastRetry(5), func() (int, error) {
		calls++
		return 0, errors.New("authorization violation")
	})

	require.Error(t, result.Err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, result.Attempts)

	var catErr *CategorizedError
	require.ErrorAs(t, result.Err, &catErr)
	assert.Equal(t, CategoryPermanent, catErr.Category)
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	connErr := &ConnectionError{Op: "dial", Err: errors.New("refused")}
	result := WithRetry(fastRetry(3), func() (int, error) {
		return 0, connErr
	})

	require.Error(t, result.Err)
	assert.Equal(t, 3, result.Attempts)
	assert.ErrorIs(t, result.Err, connErr)
	assert.Contains(t, result.Err.Error(), "max retries exceeded")
}

func TestWithRetry_OnRetryCallback(t *testing.T) {
	var seen []int
	cfg := NewRetryConfig(fastRetry(3), WithOnRetry(func(attempt int, _ time.Duration, err error) {
		seen = append(seen, attempt)
		assert.Error(t, err)
	}))

	WithRetry(cfg, func() (int, error) {
		return 0, &ConnectionError{Op: "dial", Err: errors.New("refused")}
	})

	assert.Equal(t, []int{1, 2}, seen)
}

func TestWithRetry_CustomRetryable(t *testing.T) {
	calls := 0
	cfg := NewRetryConfig(fastRetry(4), WithRetryableFunc(func(error) bool { return true }))

	result := WithRetry(cfg, func() (int, error) {
		calls++
		return 0, errors.New("anything")
	})

	require.Error(t, result.Err)
	assert.Equal(t, 4, calls)
}

func TestWithRetry_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	WithRetry(RetryConfig{}, func() (int, error) {
		calls++
		return 0, nil
	})
	assert.Equal(t, 1, calls)
}

func TestWithRetryContext_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	result := WithRetryContext(ctx, fastRetry(3), func(context.Context) (int, error) {
		calls++
		return 0, nil
	})

	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, result.Attempts)
}

func TestWithRetryContext_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Hour}

	result := WithRetryContext(ctx, cfg, func(context.Context) (int, error) {
		cancel()
		return 0, &ConnectionError{Op: "dial", Err: errors.New("refused")}
	})

	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, 1, result.Attempts)
}

func TestCalculateBackoff(t *testing.T) {
	base := 100 * time.Millisecond

	assert.Equal(t, base, calculateBackoff(base, 0))

	for range 50 {
		got := calculateBackoff(base, 0.5)
		assert.GreaterOrEqual(t, got, 50*time.Millisecond)
		assert.LessOrEqual(t, got, 150*time.Millisecond)
	}
}

func TestNextBackoff(t *testing.T) {
	cfg := RetryConfig{BackoffFactor: 2, MaxBackoff: 300 * time.Millisecond}

	assert.Equal(t, 200*time.Millisecond, nextBackoff(100*time.Millisecond, cfg))
	assert.Equal(t, 300*time.Millisecond, nextBackoff(200*time.Millisecond, cfg))

	flat := RetryConfig{}
	assert.Equal(t, 100*time.Millisecond, nextBackoff(100*time.Millisecond, flat))
}

func TestNewRetryConfig(t *testing.T) {
	cfg := NewRetryConfig(DefaultRetry,
		WithMaxAttempts(7),
		WithInitialBackoff(10*time.Millisecond),
		WithMaxBackoff(time.Second),
		WithBackoffFactor(3),
		WithJitter(0.3),
	)

	assert.Equal(t, 7, cfg.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, time.Second, cfg.MaxBackoff)
	assert.Equal(t, 3.0, cfg.BackoffFactor)
	assert.Equal(t, 0.3, cfg.Jitter)

	// base is not mutated
	assert.Equal(t, 3, DefaultRetry.MaxAttempts)
}

func TestPresets(t *testing.T) {
	assert.Equal(t, 1, NoRetry.MaxAttempts)
	assert.Equal(t, 5, ConnectRetry.MaxAttempts)
	assert.Less(t, ConnectRetry.InitialBackoff, DefaultRetry.InitialBackoff)
}
