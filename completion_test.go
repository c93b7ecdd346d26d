package proactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, results chan int, count int) []int {
	t.Helper()
	var got []int
	for i := 0; i < count; i++ {
		select {
		case n := <-results:
			got = append(got, n)
		case <-time.After(2 * time.Second):
			t.Fatalf("got %d of %d completions", len(got), count)
		}
	}
	return got
}

func TestCompletionDispatchOrder(t *testing.T) {
	ic := newIOCompletion(newStats())
	defer func() {
		ic.stop()
		ic.wait()
	}()

	results := make(chan int, 3)
	callback := func(err error, n int) { results <- n }
	for i := 0; i < 3; i++ {
		ic.enqueue(&ioNotification{onCompletion: callback, bytesTransferred: i})
	}
	require.Equal(t, []int{0, 1, 2}, collect(t, results, 3))
}

func TestCompletionPanicDoesNotKillDispatcher(t *testing.T) {
	ic := newIOCompletion(newStats())
	defer func() {
		ic.stop()
		ic.wait()
	}()

	results := make(chan int, 1)
	ic.enqueue(&ioNotification{onCompletion: func(err error, n int) { panic("bad callback") }})
	ic.enqueue(&ioNotification{onCompletion: func(err error, n int) { results <- n }, bytesTransferred: 7})
	require.Equal(t, []int{7}, collect(t, results, 1))
}

func TestCompletionDrainsQueueOnStop(t *testing.T) {
	ic := newIOCompletion(newStats())

	results := make(chan int, 2)
	callback := func(err error, n int) { results <- n }
	ic.enqueue(&ioNotification{onCompletion: callback, bytesTransferred: 1})
	ic.enqueue(&ioNotification{onCompletion: callback, bytesTransferred: 2})
	ic.stop()
	ic.wait()
	require.Equal(t, []int{1, 2}, collect(t, results, 2))
}

func TestCompletionStopUnblocksIdleDispatcher(t *testing.T) {
	ic := newIOCompletion(newStats())
	ic.stop()

	done := make(chan struct{})
	go func() {
		ic.wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not exit after stop")
	}
}
