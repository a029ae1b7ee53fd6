package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowConsumesCapacity(t *testing.T) {
	l := New()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("vendor", 2, 1))
	assert.True(t, l.Allow("vendor", 2, 1))
	assert.False(t, l.Allow("vendor", 2, 1))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("vendor", 2, 1))
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New()
	assert.True(t, l.Allow("a", 1, 0.001))
	assert.False(t, l.Allow("a", 1, 0.001))
	assert.True(t, l.Allow("b", 1, 0.001))
}

func TestWaitDisabled(t *testing.T) {
	l := New()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background(), "vendor", 1, 0))
	}
}

func TestWaitBlocksUntilRefill(t *testing.T) {
	l := New()
	require.NoError(t, l.Wait(context.Background(), "vendor", 1, 50))

	start := time.Now()
	require.NoError(t, l.Wait(context.Background(), "vendor", 1, 50))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestWaitHonoursContext(t *testing.T) {
	l := New()
	require.NoError(t, l.Wait(context.Background(), "vendor", 1, 0.01))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	err := l.Wait(ctx, "vendor", 1, 0.01)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitFailsFastPastDeadline(t *testing.T) {
	l := New()
	require.NoError(t, l.Wait(context.Background(), "vendor", 1, 0.01))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	require.Error(t, l.Wait(ctx, "vendor", 1, 0.01))
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}
