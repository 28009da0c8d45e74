package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type position struct {
	Tick     int
	ObjectID string
}

func TestNewIsEmpty(t *testing.T) {
	q := New[position]()
	require.NotNil(t, q)
	assert.True(t, q.Empty())
	assert.Equal(t, 0, q.Len())
}

func TestPushKeepsOrder(t *testing.T) {
	q := New[position]()
	q.Push(position{Tick: 0, ObjectID: "a"})
	q.Push(position{Tick: 1, ObjectID: "b"}, position{Tick: 2, ObjectID: "c"})

	assert.Equal(t, 3, q.Len())
	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, got.ObjectID)
	}
}

func TestPopEmpty(t *testing.T) {
	q := New[position]()
	got, ok := q.Pop()
	assert.False(t, ok)
	assert.Equal(t, position{}, got)
}

func TestPopN(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3, 4, 5)

	assert.Equal(t, []int{1, 2}, q.PopN(2))
	assert.Equal(t, 3, q.Len())

	assert.Equal(t, []int{3, 4, 5}, q.PopN(10))
	assert.True(t, q.Empty())

	assert.Empty(t, q.PopN(3))
}

func TestPopNBatchIsIndependent(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)
	batch := q.PopN(2)
	q.Push(9)
	batch[0] = 100

	assert.Equal(t, []int{3, 9}, q.Drain())
}

func TestDrain(t *testing.T) {
	q := New[string]()
	q.Push("found", "lost")

	assert.Equal(t, []string{"found", "lost"}, q.Drain())
	assert.True(t, q.Empty())
	assert.Empty(t, q.Drain())
}

func TestRequeueGoesFirst(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)
	batch := q.Drain()
	q.Push(4)

	q.Requeue(batch...)
	q.Requeue()

	assert.Equal(t, []int{1, 2, 3, 4}, q.Drain())
}

func TestClear(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)
	q.Clear()
	assert.True(t, q.Empty())

	q.Push(4)
	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 4, v)
}

func TestConcurrentPushDrain(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			q.Push(v)
		}(i)
	}

	total := 0
	var mu sync.Mutex
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := len(q.Drain())
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, total+q.Len())
}
