package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDebouncer_CollapsesBurst(t *testing.T) {
	d := New(20 * time.Millisecond)
	var calls atomic.Int32
	var last atomic.Int32

	for i := 1; i <= 10; i++ {
		i := i
		d.Trigger(func() {
			calls.Add(1)
			last.Store(int32(i))
		})
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, int32(10), last.Load())
	require.False(t, d.Pending())
}

func TestDebouncer_FlushRunsPendingOnce(t *testing.T) {
	d := New(time.Hour)
	var calls int

	require.False(t, d.Flush())
	d.Trigger(func() { calls++ })
	require.True(t, d.Pending())
	require.True(t, d.Flush())
	require.False(t, d.Flush())
	require.Equal(t, 1, calls)
}

func TestDebouncer_CancelDropsCallback(t *testing.T) {
	d := New(10 * time.Millisecond)
	var calls atomic.Int32

	d.Trigger(func() { calls.Add(1) })
	require.True(t, d.Cancel())
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, int32(0), calls.Load())
	require.False(t, d.Cancel())
}

func TestDebouncer_ZeroDelayRunsInline(t *testing.T) {
	d := New(0)
	var calls int
	d.Trigger(func() { calls++ })
	require.Equal(t, 1, calls)
	require.False(t, d.Pending())
}
