package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := New[string]()
	q.Push("r1")
	q.Push("r2")
	q.Push("r3")

	for _, want := range []string{"r1", "r2", "r3"} {
		got, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := q.TryPop()
	assert.False(t, ok, "queue should be empty")
}

func TestQueue_FIFOAcrossProducers(t *testing.T) {
	q := New[int]()

	// producers take turns so the global push order is known
	var turn sync.Mutex
	next := 0
	var wg sync.WaitGroup
	for p := 0; p < 3; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for {
				turn.Lock()
				if next >= 300 {
					turn.Unlock()
					return
				}
				if next%3 == p {
					q.Push(next)
					next++
				}
				turn.Unlock()
			}
		}(p)
	}
	wg.Wait()

	for i := 0; i < 300; i++ {
		got, ok := q.TryPop()
		require.True(t, ok)
		require.Equal(t, i, got)
	}
}

func TestQueue_TryPopDoesNotBlock(t *testing.T) {
	q := New[int]()

	done := make(chan struct{})
	go func() {
		_, ok := q.TryPop()
		assert.False(t, ok)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("TryPop blocked on empty queue")
	}
}

func TestQueue_BlockingPopWakesOnPush(t *testing.T) {
	q := New[int]()

	got := make(chan int, 1)
	go func() {
		v, ok := q.BlockingPop()
		assert.True(t, ok)
		got <- v
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(7)

	select {
	case v := <-got:
		assert.Equal(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("BlockingPop was not woken by Push")
	}
}

func TestQueue_CloseWakesBlockedConsumers(t *testing.T) {
	q := New[int]()

	const waiters = 4
	results := make(chan bool, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			_, ok := q.BlockingPop()
			results <- ok
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.Close()

	for i := 0; i < waiters; i++ {
		select {
		case ok := <-results:
			assert.False(t, ok, "closed empty queue must report end of stream")
		case <-time.After(time.Second):
			t.Fatal("BlockingPop not woken by Close")
		}
	}
}

func TestQueue_CloseDrainsRemaining(t *testing.T) {
	q := New[int]()
	q.Push(1)
	q.Close()

	// push after close is still accepted
	q.Push(2)
	assert.True(t, q.Closed())

	v, ok := q.BlockingPop()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = q.BlockingPop()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = q.BlockingPop()
	assert.False(t, ok)
}

func TestQueue_CompactionKeepsOrder(t *testing.T) {
	q := New[int]()
	pushed, popped := 0, 0

	for round := 0; round < 10; round++ {
		for i := 0; i < 3000; i++ {
			q.Push(pushed)
			pushed++
		}
		for i := 0; i < 2500; i++ {
			v, ok := q.TryPop()
			require.True(t, ok)
			require.Equal(t, popped, v)
			popped++
		}
	}

	assert.Equal(t, pushed-popped, q.Len())
	for q.Len() > 0 {
		v, _ := q.TryPop()
		require.Equal(t, popped, v)
		popped++
	}
	assert.Equal(t, pushed, popped)
}
