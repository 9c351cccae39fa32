package event_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dudk/split/event"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestQueueOverflow(t *testing.T) {
	q := event.NewQueue(2)
	require.NoError(t, q.TryPush(event.Note(0, 0, 1, 100)))
	require.NoError(t, q.TryPush(event.Note(0, 0, 2, 100)))
	assert.ErrorIs(t, q.TryPush(event.Note(0, 0, 3, 100)), event.ErrQueueFull)
	assert.Equal(t, uint64(1), q.Dropped())
	assert.Equal(t, 2, q.Len())
}

func TestQueueDrain(t *testing.T) {
	start := time.Now()
	q := event.NewQueue(8)
	// placement maps arrival time in milliseconds to offsets.
	place := func(at time.Time) int {
		return int(at.Sub(start) / time.Millisecond)
	}
	for i, ms := range []int{3, 1, 9, 1} {
		require.NoError(t, q.TryPushAt(event.Note(0, 0, uint8(i), 100), start.Add(time.Duration(ms)*time.Millisecond)))
	}

	s := event.NewStream(8)
	s.Reset(8)
	pushed, rejected := q.Drain(s, place)
	assert.Equal(t, 3, pushed)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 0, q.Len())

	var keys []uint8
	for _, e := range s.Events() {
		keys = append(keys, e.Key())
	}
	assert.Equal(t, []uint8{1, 3, 0}, keys)

	// empty queue never blocks.
	pushed, rejected = q.Drain(s, place)
	assert.Zero(t, pushed)
	assert.Zero(t, rejected)
}

func TestQueueProducer(t *testing.T) {
	q := event.NewQueue(1024)
	s := event.NewStream(1024)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = q.TryPush(event.Control(0, 0, 1, uint8(i%128)))
		}
	}()

	total := 0
	for total+int(q.Dropped()) < 500 {
		s.Reset(64)
		pushed, _ := q.Drain(s, func(time.Time) int { return 0 })
		total += pushed
	}
	wg.Wait()
	assert.Equal(t, 500, total+int(q.Dropped()))
}
