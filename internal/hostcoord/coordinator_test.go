package hostcoord

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostOfExtractsHostname(t *testing.T) {
	assert.Equal(t, "example.com", HostOf("https://example.com/a/b"))
	assert.Equal(t, "", HostOf("::not a url"))
}

func TestAcquireSerializesPerHost(t *testing.T) {
	c := New()
	var inFlight int32
	var maxObserved int32
	var wg sync.WaitGroup

	work := func() {
		defer wg.Done()
		lease, err := c.Acquire(context.Background(), "example.com", time.Millisecond)
		require.NoError(t, err)
		defer lease.Release()

		n := atomic.AddInt32(&inFlight, 1)
		if n > atomic.LoadInt32(&maxObserved) {
			atomic.StoreInt32(&maxObserved, n)
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
	}

	wg.Add(3)
	go work()
	go work()
	go work()
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxObserved), "at most one outstanding fetch per host")
}

func TestBackoffThrottledSchedulesTenSecondWindow(t *testing.T) {
	c := New()

	lease, err := c.Acquire(context.Background(), "slow.example", time.Millisecond)
	require.NoError(t, err)
	before := time.Now()
	lease.BackoffThrottled()
	lease.Release()

	readyAt := c.entry("slow.example").readyAt
	assert.WithinDuration(t, before.Add(10*time.Second), readyAt, 2*time.Second)
}

func TestBackoffCappedAtSixtySeconds(t *testing.T) {
	c := New()
	lease, err := c.Acquire(context.Background(), "hammered.example", time.Millisecond)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		lease.BackoffServerError()
	}
	lease.Release()

	readyAt := c.entry("hammered.example").readyAt
	assert.LessOrEqual(t, time.Until(readyAt), 60*time.Second+time.Second)
}

func TestClearBackoffRemovesDelay(t *testing.T) {
	c := New()

	lease, err := c.Acquire(context.Background(), "h.example", time.Millisecond)
	require.NoError(t, err)
	lease.BackoffThrottled()
	lease.ClearBackoff()
	lease.Release()

	assert.True(t, c.entry("h.example").readyAt.IsZero())
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lease, err := c.Acquire(ctx, "cancelled.example", time.Hour)
	assert.Error(t, err)
	assert.Nil(t, lease)
}
