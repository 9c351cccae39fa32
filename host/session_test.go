package host_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/split/event"
	"github.com/dudk/split/host"
	"github.com/dudk/split/mock"
	"github.com/dudk/split/signal"
)

func blocks(n, frames int, events ...event.Event) []mock.Block {
	result := make([]mock.Block, n)
	for i := range result {
		result[i] = mock.Block{Frames: frames, Events: events}
	}
	return result
}

func TestSession(t *testing.T) {
	errCall := errors.New("call failed")
	errRun := errors.New("adapter failed")
	errClose := errors.New("close failed")
	tests := []struct {
		description string
		unit        *mock.Unit
		adapter     *mock.Adapter
		policy      host.Policy
		err         error
		decisions   []host.Decision
		logged      int
	}{
		{
			description: "ok",
			unit:        &mock.Unit{},
			adapter:     &mock.Adapter{Blocks: blocks(3, 8, event.Note(4, 0, 60, 100))},
			decisions:   []host.Decision{host.Continue, host.Continue, host.Continue},
		},
		{
			description: "mute",
			unit:        &mock.Unit{ErrorOnCall: errCall, FailAt: 3},
			adapter:     &mock.Adapter{Blocks: blocks(3, 8, event.Note(4, 0, 60, 100))},
			policy:      host.MuteOnError,
			decisions:   []host.Decision{host.Continue, host.Mute, host.Continue},
			logged:      1,
		},
		{
			description: "stop",
			unit:        &mock.Unit{ErrorOnCall: errCall, FailAt: 1},
			adapter:     &mock.Adapter{Blocks: blocks(3, 8)},
			policy:      host.StopOnError,
			decisions:   []host.Decision{host.Stop},
			logged:      1,
		},
		{
			description: "adapter error",
			unit:        &mock.Unit{},
			adapter:     &mock.Adapter{ErrorOnRun: errRun},
			err:         errRun,
		},
		{
			description: "close error",
			unit:        &mock.Unit{Hooks: mock.Hooks{ErrorOnClose: errClose}},
			adapter:     &mock.Adapter{Blocks: blocks(1, 8)},
			err:         errClose,
			decisions:   []host.Decision{host.Continue},
		},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			e, err := host.NewEngine(test.unit, format, host.WithPolicy(test.policy))
			require.NoError(t, err)
			logger, hook := logtest.NewNullLogger()
			s := host.NewSession(test.adapter, e, host.WithLogger(logger))
			assert.NotEmpty(t, s.ID())

			err = s.Run(context.Background())
			if test.err != nil {
				assert.ErrorIs(t, err, test.err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, test.decisions, test.adapter.Decisions)
			assert.True(t, test.unit.Closed)

			errorEntries := 0
			for _, entry := range hook.AllEntries() {
				assert.Equal(t, s.ID(), entry.Data["session"])
				assert.Equal(t, "mock", entry.Data["adapter"])
				if entry.Message == "session started" {
					assert.Equal(t, "mock", entry.Data["unit"])
					assert.Equal(t, []string{"out 1"}, entry.Data["outputs"])
				}
				if entry.Level == logrus.ErrorLevel {
					errorEntries++
					assert.Contains(t, entry.Data, "block")
					assert.Contains(t, entry.Data, "start")
				}
			}
			assert.Equal(t, test.logged, errorEntries)
		})
	}
}

func TestSessionProducer(t *testing.T) {
	q := event.NewQueue(16)
	m := &mock.Unit{}
	e, err := host.NewEngine(m, format, host.WithQueue(q))
	require.NoError(t, err)

	pushed := make(chan struct{})
	producer := func(ctx context.Context) error {
		for i := 0; i < 4; i++ {
			if err := q.TryPush(event.Control(0, 0, 7, uint8(i))); err != nil {
				return err
			}
		}
		close(pushed)
		<-ctx.Done()
		return nil
	}
	adapter := &waitingAdapter{ready: pushed}
	s := host.NewSession(adapter, e, host.WithProducers(producer))
	require.NoError(t, s.Run(context.Background()))

	_, _, events := m.Count()
	assert.Equal(t, 4, events)
}

func TestSessionCancel(t *testing.T) {
	e, err := host.NewEngine(&mock.Unit{}, format)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	adapter := &waitingAdapter{ready: make(chan struct{}), wait: true}
	s := host.NewSession(adapter, e)
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	assert.NoError(t, s.Run(ctx))
}

// waitingAdapter delivers a single block once ready is closed and then
// waits for the context if needed.
type waitingAdapter struct {
	ready chan struct{}
	wait  bool
}

func (a *waitingAdapter) Kind() host.Kind {
	return host.Mock
}

func (a *waitingAdapter) Run(ctx context.Context, e *host.Engine) error {
	if a.wait {
		<-ctx.Done()
		return ctx.Err()
	}
	<-a.ready
	buf, err := signal.Planar(signal.Alloc(1, 8))
	if err != nil {
		return err
	}
	e.Block(buf)
	return nil
}
