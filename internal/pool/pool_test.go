package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRun_PreservesInputOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3, 9, 0}
	got, err := Run(context.Background(), 3, items, func(_ context.Context, _ int, item int) int {
		// Reverse the natural finishing order.
		time.Sleep(time.Duration(10-item) * time.Millisecond)
		return item * 10
	})
	require.NoError(t, err)
	assert.Equal(t, []int{50, 10, 40, 20, 30, 90, 0}, got)
}

func TestRun_BoundsConcurrency(t *testing.T) {
	var active, peak int32
	items := make([]int, 12)

	_, err := Run(context.Background(), 2, items, func(_ context.Context, _ int, _ int) struct{} {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return struct{}{}
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestRun_ClampsWorkers(t *testing.T) {
	for _, workers := range []int{0, -3} {
		got, err := Run(context.Background(), workers, []string{"a", "b"}, func(_ context.Context, i int, s string) string {
			return s + s
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"aa", "bb"}, got)
	}
}

func TestRun_Empty(t *testing.T) {
	got, err := Run(context.Background(), 2, []int(nil), func(context.Context, int, int) int { return 1 })
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	items := make([]int, 50)

	got, err := Run(ctx, 1, items, func(_ context.Context, i int, _ int) bool {
		if i == 2 {
			cancel()
		}
		return true
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, got[0])
	assert.False(t, got[len(got)-1], "undispatched items keep the zero value")
}
