package proactor

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/rs/zerolog/log"
)

// ioNotification transfers one finished I/O operation to the completion
// dispatcher: the callback, the observed byte count and the terminal
// error. It is discarded right after the callback returns.
type ioNotification struct {
	onCompletion     Callback
	bytesTransferred int
	err              error
}

func (n *ioNotification) call() {
	n.onCompletion(n.err, n.bytesTransferred)
}

// ioCompletion executes completion callbacks on its own goroutine so a
// slow callback cannot stall readiness polling and callers are never
// re-entered from their submitting goroutine. Enqueue never blocks;
// the dispatch loop blocks while the queue is empty.
type ioCompletion struct {
	lock    *sync.Mutex
	ready   *sync.Cond
	fifo    *queue.Queue
	stopped bool
	done    chan struct{}
	stats   *Stats
}

func newIOCompletion(stats *Stats) *ioCompletion {
	lock := &sync.Mutex{}
	ic := &ioCompletion{
		lock:  lock,
		ready: sync.NewCond(lock),
		fifo:  queue.New(),
		done:  make(chan struct{}),
		stats: stats,
	}
	go ic.run()
	return ic
}

func (ic *ioCompletion) enqueue(notification *ioNotification) {
	ic.lock.Lock()
	ic.fifo.Add(notification)
	ic.lock.Unlock()
	ic.ready.Signal()
}

// dequeue blocks until a notification is available or stop was called.
// After stop it keeps draining whatever is already queued and returns
// nil only once the queue is empty.
func (ic *ioCompletion) dequeue() *ioNotification {
	ic.lock.Lock()
	defer ic.lock.Unlock()
	for ic.fifo.Length() == 0 {
		if ic.stopped {
			return nil
		}
		ic.ready.Wait()
	}
	return ic.fifo.Remove().(*ioNotification)
}

func (ic *ioCompletion) run() {
	defer close(ic.done)
	for {
		notification := ic.dequeue()
		if notification == nil {
			return
		}
		invokeCompletion(notification)
		ic.stats.CompletionsDispatched.Inc()
	}
}

// invokeCompletion isolates callback failures: a panicking callback is
// logged and dropped, the dispatch loop keeps running.
func invokeCompletion(notification *ioNotification) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("got panic while running completion handler: %+v", r)
		}
	}()
	notification.call()
}

func (ic *ioCompletion) stop() {
	ic.lock.Lock()
	ic.stopped = true
	ic.lock.Unlock()
	ic.ready.Broadcast()
}

// wait blocks until the dispatch goroutine has fully exited.
func (ic *ioCompletion) wait() {
	<-ic.done
}
