package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutePassesThroughResult(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"), zerolog.Nop())

	got, err := Execute(cb, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, "closed", cb.State())
}

func TestExecuteOpensAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("flaky")
	cfg.ConsecutiveFailures = 2
	cfg.Timeout = time.Minute
	cb := NewCircuitBreaker(cfg, zerolog.Nop())

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_, err := Execute(cb, func() (int, error) { return 0, boom })
		require.ErrorIs(t, err, boom)
	}

	calls := 0
	_, err := Execute(cb, func() (int, error) {
		calls++
		return 1, nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls)
	assert.Equal(t, "open", cb.State())
}

func TestExecuteWithoutBreaker(t *testing.T) {
	got, err := Execute[int](nil, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}
