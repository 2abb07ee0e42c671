package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestThrottle(minInterval time.Duration, step float64) (*Throttle, *time.Time) {
	th := NewThrottle(minInterval, step)
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	th.now = func() time.Time { return clock }
	return th, &clock
}

func TestThrottleFirstEventAlwaysEmits(t *testing.T) {
	th, _ := newTestThrottle(10*time.Second, 25)

	require.True(t, th.Observe("job1", Update{Percent: 0.1}))
	require.False(t, th.Observe("job1", Update{Percent: 0.2}))
}

func TestThrottleMinInterval(t *testing.T) {
	th, clock := newTestThrottle(3*time.Second, 100)

	require.True(t, th.Observe("job1", Update{Percent: 1}))

	*clock = clock.Add(time.Second)
	require.False(t, th.Observe("job1", Update{Percent: 2}))

	*clock = clock.Add(2 * time.Second)
	require.True(t, th.Observe("job1", Update{Percent: 3}))
}

func TestThrottlePercentStep(t *testing.T) {
	th, _ := newTestThrottle(time.Hour, 10)

	require.True(t, th.Observe("job1", Update{Percent: 0}))
	require.False(t, th.Observe("job1", Update{Percent: 9.9}))
	require.True(t, th.Observe("job1", Update{Percent: 10}))
	require.False(t, th.Observe("job1", Update{Percent: 15}))
	require.True(t, th.Observe("job1", Update{Percent: 20}))
}

func TestThrottleJobsIndependent(t *testing.T) {
	th, _ := newTestThrottle(time.Hour, 100)

	require.True(t, th.Observe("job1", Update{}))
	require.True(t, th.Observe("job2", Update{}))
	require.False(t, th.Observe("job1", Update{}))
}

func TestThrottleAtMostOnePerInterval(t *testing.T) {
	th, clock := newTestThrottle(5*time.Second, 0)

	emitted := 0
	for i := 0; i < 100; i++ {
		if th.Observe("job1", Update{Percent: float64(i)}) {
			emitted++
		}
		*clock = clock.Add(100 * time.Millisecond)
	}
	// 10 seconds of events, one emission per 5s window plus the first
	require.LessOrEqual(t, emitted, 3)
	require.GreaterOrEqual(t, emitted, 2)
}

func TestThrottleClose(t *testing.T) {
	th, _ := newTestThrottle(time.Hour, 100)

	th.Observe("job1", Update{})
	require.Equal(t, 1, th.Tracked())

	th.Close("job1")
	require.Equal(t, 0, th.Tracked())

	// A reused id behaves like a fresh job
	require.True(t, th.Observe("job1", Update{}))
}

func TestUpdateText(t *testing.T) {
	u := Update{Percent: 42.5, TotalBytes: 10 * 1024 * 1024, Speed: 2048}
	require.Equal(t, "Downloading... 42.5% of 10.0 MB at 2.0 KB/s", u.Text())

	u = Update{Bytes: 5 * 1024 * 1024, Speed: 1024}
	require.Equal(t, "Downloading... 5.0 MB at 1.0 KB/s", u.Text())
}
