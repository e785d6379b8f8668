package fifo

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/h7-kernel/internal/critical"
)

func TestQueue_PushPop(t *testing.T) {
	q := New(&critical.Section{}, 4)

	_, ok := q.Pop()
	assert.False(t, ok, "empty queue must not yield a byte")

	for _, b := range []byte("abc") {
		q.Push(b)
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []byte("abc") {
		got, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueue_OverwritesOldest(t *testing.T) {
	q := New(nil, 3)
	for _, b := range []byte("abcde") {
		q.Push(b)
	}
	assert.Equal(t, 3, q.Len())

	var got []byte
	for {
		b, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, b)
	}
	assert.Equal(t, "cde", string(got))
}

func TestQueue_Clear(t *testing.T) {
	q := New(nil, 8)
	q.Push('x')
	q.Push('y')
	q.Clear()

	_, ok := q.Pop()
	assert.False(t, ok)
	q.Push('z')
	b, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, byte('z'), b)
}

func TestQueue_DefaultSize(t *testing.T) {
	q := New(nil, 0)
	for i := 0; i < DefaultSize+10; i++ {
		q.Push(byte(i))
	}
	assert.Equal(t, DefaultSize, q.Len())
}

func TestQueue_ConcurrentProducer(t *testing.T) {
	q := New(nil, 1024)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			q.Push(byte(i))
		}
	}()

	popped := 0
	for popped < 1000 {
		if _, ok := q.Pop(); ok {
			popped++
		}
	}
	wg.Wait()
	assert.Equal(t, 0, q.Len())
}
