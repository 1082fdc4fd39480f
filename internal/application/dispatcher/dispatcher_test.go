package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/access-portal/internal/domain/event"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func newEvent() *event.Event {
	return event.NewEvent(event.TypeApplicationSubmitted, nil, nil)
}

func TestSubscribe_AutoNames(t *testing.T) {
	d := NewDispatcher()
	ctx := context.Background()

	d.Subscribe(event.TypeApplicationSubmitted, func(context.Context, *event.Event) error { return nil })
	d.Subscribe(event.TypeApplicationSubmitted, func(context.Context, *event.Event) error { return errors.New("smtp down") })

	err := d.Dispatch(ctx, newEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler handler-1 failed")

	assert.NoError(t, d.Dispatch(ctx, event.NewEvent(event.TypeApplicationStatusChanged, nil, nil)))
}

func TestDispatch(t *testing.T) {
	t.Run("runs handlers in order", func(t *testing.T) {
		d := NewDispatcher()
		var order []string
		d.SubscribeNamed(event.TypeApplicationSubmitted, "a", func(context.Context, *event.Event) error {
			order = append(order, "a")
			return nil
		})
		d.SubscribeNamed(event.TypeApplicationSubmitted, "b", func(context.Context, *event.Event) error {
			order = append(order, "b")
			return nil
		})

		require.NoError(t, d.Dispatch(context.Background(), newEvent()))
		assert.Equal(t, []string{"a", "b"}, order)
	})

	t.Run("stops at first error", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		boom := errors.New("smtp down")
		called := false
		d.SubscribeNamed(event.TypeApplicationSubmitted, "email", func(context.Context, *event.Event) error {
			return boom
		})
		d.SubscribeNamed(event.TypeApplicationSubmitted, "sms", func(context.Context, *event.Event) error {
			called = true
			return nil
		})

		err := d.Dispatch(context.Background(), newEvent())
		assert.ErrorIs(t, err, boom)
		assert.False(t, called)
		assert.Equal(t, 1, logger.ErrorCount())
	})

	t.Run("recovers panics", func(t *testing.T) {
		d := NewDispatcher()
		d.Subscribe(event.TypeApplicationSubmitted, func(context.Context, *event.Event) error {
			panic("nil map")
		})

		err := d.Dispatch(context.Background(), newEvent())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "handler panic")
	})
}

func TestDispatchAsync(t *testing.T) {
	t.Run("survives cancelled request context", func(t *testing.T) {
		d := NewDispatcher()
		var got atomic.Bool
		d.Subscribe(event.TypeApplicationSubmitted, func(ctx context.Context, _ *event.Event) error {
			got.Store(ctx.Err() == nil)
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		d.DispatchAsync(ctx, newEvent())
		require.NoError(t, d.Close())
		assert.True(t, got.Load())
	})

	t.Run("logs handler failures", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		d.Subscribe(event.TypeApplicationSubmitted, func(context.Context, *event.Event) error {
			return errors.New("lark unavailable")
		})

		d.DispatchAsync(context.Background(), newEvent())
		require.NoError(t, d.Close())
		assert.Equal(t, 1, logger.ErrorCount())
	})

	t.Run("applies handler timeout", func(t *testing.T) {
		d := NewDispatcher(WithHandlerTimeout(10 * time.Millisecond))
		var deadline atomic.Bool
		d.Subscribe(event.TypeApplicationSubmitted, func(ctx context.Context, _ *event.Event) error {
			_, ok := ctx.Deadline()
			deadline.Store(ok)
			<-ctx.Done()
			return ctx.Err()
		})

		d.DispatchAsync(context.Background(), newEvent())
		require.NoError(t, d.Close())
		assert.True(t, deadline.Load())
	})
}

func TestClose(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))

	require.NoError(t, d.Close())
	assert.Error(t, d.Close())
	assert.ErrorIs(t, d.Dispatch(context.Background(), newEvent()), ErrClosed)

	d.DispatchAsync(context.Background(), newEvent())
	assert.Equal(t, 1, logger.ErrorCount())
}

func TestConcurrency(t *testing.T) {
	d := NewDispatcher()
	var count atomic.Int64
	d.Subscribe(event.TypeApplicationStatusChanged, func(context.Context, *event.Event) error {
		count.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			d.DispatchAsync(context.Background(), event.NewEvent(event.TypeApplicationStatusChanged, nil, nil))
		}()
		go func() {
			defer wg.Done()
			d.Subscribe(event.TypeApplicationSubmitted, func(context.Context, *event.Event) error { return nil })
		}()
	}
	wg.Wait()
	require.NoError(t, d.Close())
	assert.Equal(t, int64(50), count.Load())
}
