package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) { l.add("DEBUG", msg, keysAndValues) }
func (l *testLogger) Info(msg string, keysAndValues ...any)  { l.add("INFO", msg, keysAndValues) }
func (l *testLogger) Error(msg string, keysAndValues ...any) { l.add("ERROR", msg, keysAndValues) }

func (l *testLogger) add(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s: %s %v", level, msg, kv))
}

func (l *testLogger) count(prefix string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.messages {
		if strings.HasPrefix(m, prefix) {
			n++
		}
	}
	return n
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	t.Helper()
	logger := &testLogger{}
	d, err := New(logger)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, logger
}

func TestSyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register("timeline", func(e Event) (any, error) {
		got = e
		return "stored", nil
	})

	result, err := d.Dispatch(Event{Command: "timeline", Payload: 42})
	require.NoError(t, err)
	assert.Equal(t, "stored", result)
	assert.Equal(t, 42, got.Payload)
	assert.False(t, got.Timestamp.IsZero(), "timestamp is filled in")
}

func TestTimestampKept(t *testing.T) {
	d, _ := newTestDispatcher(t)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	var got time.Time
	d.Register("event", func(e Event) (any, error) {
		got = e.Timestamp
		return nil, nil
	})

	_, err := d.Dispatch(Event{Command: "event", Timestamp: ts})
	require.NoError(t, err)
	assert.Equal(t, ts, got)
}

func TestUnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: "missing"})
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestBufferedKeepsOrder(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var mu sync.Mutex
	var seen []int
	d.Register("event", func(e Event) (any, error) {
		mu.Lock()
		seen = append(seen, e.Payload.(int))
		mu.Unlock()
		return nil, nil
	}, Buffered(8), Blocking())

	for i := 0; i < 100; i++ {
		result, err := d.Dispatch(Event{Command: "event", Payload: i})
		require.NoError(t, err)
		assert.Equal(t, "queued", result)
	}
	d.Close()

	require.Len(t, seen, 100)
	for i, v := range seen {
		assert.Equal(t, i, v)
	}
}

func TestBufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 1)
	block := make(chan struct{})
	d.Register("full", func(e Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil, nil
	}, Buffered(1))

	_, err := d.Dispatch(Event{Command: "full"})
	require.NoError(t, err)
	<-started

	_, err = d.Dispatch(Event{Command: "full"})
	require.NoError(t, err)

	_, err = d.Dispatch(Event{Command: "full"})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(block)
}

func TestBufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 1)
	block := make(chan struct{})
	d.Register("blocking", func(e Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	_, err := d.Dispatch(Event{Command: "blocking"})
	require.NoError(t, err)
	<-started
	_, err = d.Dispatch(Event{Command: "blocking"})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_, _ = d.Dispatch(Event{Command: "blocking"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	<-done
}

func TestBufferedErrorsReported(t *testing.T) {
	logger := &testLogger{}
	d, err := New(logger)
	require.NoError(t, err)

	boom := errors.New("disk full")
	var mu sync.Mutex
	var reported []error
	d.OnError(func(command string, err error) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "event", command)
		reported = append(reported, err)
	})
	d.Register("event", func(e Event) (any, error) {
		return nil, boom
	}, Buffered(4))

	_, err = d.Dispatch(Event{Command: "event"})
	require.NoError(t, err)
	d.Close()

	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], boom)
	assert.Equal(t, 1, logger.count("ERROR"))
}

func TestCloseDrainsAndRejects(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var mu sync.Mutex
	n := 0
	d.Register("timeline", func(e Event) (any, error) {
		time.Sleep(time.Millisecond)
		mu.Lock()
		n++
		mu.Unlock()
		return nil, nil
	}, Buffered(16))

	for i := 0; i < 10; i++ {
		_, err := d.Dispatch(Event{Command: "timeline"})
		require.NoError(t, err)
	}
	d.Close()
	assert.Equal(t, 10, n)

	_, err := d.Dispatch(Event{Command: "timeline"})
	assert.ErrorIs(t, err, ErrClosed)

	d.Close()
}

func TestQueueLengths(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 1)
	block := make(chan struct{})
	d.Register("event", func(e Event) (any, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil, nil
	}, Buffered(4))
	d.Register("sync", func(e Event) (any, error) { return nil, nil })

	for i := 0; i < 3; i++ {
		_, err := d.Dispatch(Event{Command: "event"})
		require.NoError(t, err)
		if i == 0 {
			<-started
		}
	}

	assert.Equal(t, map[string]int{"event": 2}, d.QueueLengths())
	close(block)
}

func TestLoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("logged", func(e Event) (any, error) {
		return "ok", nil
	}, Logged())

	_, err := d.Dispatch(Event{Command: "logged"})
	require.NoError(t, err)
	assert.Equal(t, 2, logger.count("DEBUG"))
}

func TestLoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("failing", func(e Event) (any, error) {
		return nil, errors.New("test error")
	}, Logged())

	_, err := d.Dispatch(Event{Command: "failing"})
	require.Error(t, err)
	assert.Equal(t, 1, logger.count("ERROR"))
}

func TestHasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register("exists", func(e Event) (any, error) { return nil, nil })

	assert.True(t, d.HasHandler("exists"))
	assert.False(t, d.HasHandler("missing"))
}
