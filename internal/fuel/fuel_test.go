package fuel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnlimitedNeverExhausts(t *testing.T) {
	tracker := NewTracker(0)
	c := tracker.Counter()

	for i := 0; i < 1000; i++ {
		require.NoError(t, tracker.Consume(c, 10))
	}
	require.Equal(t, int64(10000), tracker.Tally())
}

func TestExhaustionFiresOnFirstOverrun(t *testing.T) {
	tracker := NewTracker(5)
	c := tracker.Counter()

	for i := 0; i < 5; i++ {
		require.NoError(t, tracker.Consume(c, 1))
	}
	require.Equal(t, int64(5), tracker.Tally())

	err := tracker.Consume(c, 1)
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, int64(6), exhausted.Used)
	require.Equal(t, int64(5), exhausted.Limit)
}

func TestTallySumsAllCounters(t *testing.T) {
	tracker := NewTracker(0)

	a := tracker.Counter()
	b := tracker.Counter()
	c := tracker.Counter()

	a.Add(1)
	b.Add(2)
	c.Add(3)
	require.Equal(t, int64(6), tracker.Tally())
}

func TestConcurrentStages(t *testing.T) {
	tracker := NewTracker(0)

	const stages = 8
	const perStage = 1000

	var wg sync.WaitGroup
	for i := 0; i < stages; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := tracker.Counter()
			for j := 0; j < perStage; j++ {
				require.NoError(t, tracker.Consume(c, 1))
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(stages*perStage), tracker.Tally())
}

func TestLimitRespectedAcrossStages(t *testing.T) {
	tracker := NewTracker(10)
	a := tracker.Counter()
	b := tracker.Counter()

	for i := 0; i < 5; i++ {
		require.NoError(t, tracker.Consume(a, 1))
		require.NoError(t, tracker.Consume(b, 1))
	}
	require.Error(t, tracker.Consume(a, 1))
}
