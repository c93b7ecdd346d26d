package proactor

import (
	"io"
	"net"
	"runtime"
	"sync"
	"time"

	gneterrors "github.com/panjf2000/gnet/errors"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
)

const DefaultTimeout = 250 * time.Millisecond

// ProactorConfig configures one engine instance. The zero value gives a
// named-less engine with the default timeout and a completion dispatcher
// goroutine; set InlineCompletion to run callbacks synchronously on the
// polling goroutine instead.
type ProactorConfig struct {
	Name             string
	Timeout          time.Duration
	EventBufferSize  int
	LockOsThread     bool
	InlineCompletion bool
	Events           chan Event
}

// Proactor performs the submitted socket I/O itself and notifies callers
// only on completion. Submission methods are safe to call from any
// goroutine; all I/O and readiness evaluation happens on the goroutine
// driving Run or Poll.
type Proactor struct {
	Name          string
	lockOsThread  bool
	timeout       *atomic.Duration
	isRunning     *atomic.Bool
	stopped       *atomic.Bool
	pollSet       *pollSet
	readLock      sync.Mutex
	writeLock     sync.Mutex
	readHandlers  map[int]*handlerQueue
	writeHandlers map[int]*handlerQueue
	work          *workTable
	completion    *ioCompletion // nil when completions run inline
	stats         *Stats
	events        chan Event
	shutdownOnce  sync.Once
}

func NewProactor(config ProactorConfig) (*Proactor, error) {
	if log.Debug().Enabled() {
		log.Debug().Msgf("init proactor:%+v", config)
	} else {
		log.Info().Msgf("init proactor:%s", config.Name)
	}
	pollSet, err := newPollSet(config.EventBufferSize)
	if err != nil {
		log.Error().Msgf("can't open poller: %+v", err)
		return nil, err
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	stats := newStats()
	p := &Proactor{
		Name:          config.Name,
		lockOsThread:  config.LockOsThread,
		timeout:       atomic.NewDuration(timeout),
		isRunning:     atomic.NewBool(false),
		stopped:       atomic.NewBool(false),
		pollSet:       pollSet,
		readHandlers:  make(map[int]*handlerQueue),
		writeHandlers: make(map[int]*handlerQueue),
		work:          newWorkTable(),
		stats:         stats,
		events:        config.Events,
	}
	if !config.InlineCompletion {
		p.completion = newIOCompletion(stats)
	}
	return p, nil
}

// AddSocket registers a socket with a sticky interest mask, without
// queuing an operation. Used for passive registrations such as listening
// sockets served by caller-provided permanent work.
func (p *Proactor) AddSocket(fd int, kind SocketKind, mode int) error {
	if p.stopped.Load() {
		return ErrProactorStopped
	}
	return p.pollSet.addSticky(fd, kind, mode)
}

// RemoveSocket drops a registration and fails all of its still pending
// handlers with ErrSocketRemoved.
func (p *Proactor) RemoveSocket(fd int) error {
	err := p.pollSet.remove(fd)
	p.failQueued(fd, ErrSocketRemoved)
	return err
}

// AddReceive queues a read on a stream socket. The buffer is borrowed:
// it must stay valid until the callback fires and receives the data.
func (p *Proactor) AddReceive(fd int, buffer []byte, onCompletion Callback) error {
	if err := checkBuffer(buffer); err != nil {
		return err
	}
	return p.queueRead(fd, Stream, &handler{buffer: buffer, onCompletion: onCompletion})
}

// AddReceiveFrom queues a read on a datagram socket. If from is not nil
// it is filled with the peer address before the callback fires.
func (p *Proactor) AddReceiveFrom(fd int, buffer []byte, from *net.UDPAddr, onCompletion Callback) error {
	if err := checkBuffer(buffer); err != nil {
		return err
	}
	return p.queueRead(fd, Datagram, &handler{buffer: buffer, from: from, onCompletion: onCompletion})
}

// AddSend queues a write on a stream socket.
func (p *Proactor) AddSend(fd int, payload Payload, onCompletion Callback) error {
	if err := checkBuffer(payload.buffer); err != nil {
		return err
	}
	return p.queueWrite(fd, Stream, &handler{buffer: payload.buffer, owned: payload.owned, onCompletion: onCompletion})
}

// AddSendTo queues a write on a datagram socket addressed to the peer.
func (p *Proactor) AddSendTo(fd int, payload Payload, to *net.UDPAddr, onCompletion Callback) error {
	if err := checkBuffer(payload.buffer); err != nil {
		return err
	}
	if to == nil {
		return ErrNilAddress
	}
	sockaddr, err := UDPAddrToSockaddr(to)
	if err != nil {
		return err
	}
	return p.queueWrite(fd, Datagram, &handler{buffer: payload.buffer, owned: payload.owned, to: sockaddr, onCompletion: onCompletion})
}

func (p *Proactor) queueRead(fd int, kind SocketKind, h *handler) error {
	if p.stopped.Load() {
		return ErrProactorStopped
	}
	p.readLock.Lock()
	err := p.pollSet.addDemand(fd, kind, PollRead|PollError)
	if err != nil {
		p.readLock.Unlock()
		return err
	}
	q, ok := p.readHandlers[fd]
	if !ok {
		q = newHandlerQueue()
		p.readHandlers[fd] = q
	}
	q.push(h)
	p.readLock.Unlock()
	p.WakeUp()
	return nil
}

func (p *Proactor) queueWrite(fd int, kind SocketKind, h *handler) error {
	if p.stopped.Load() {
		return ErrProactorStopped
	}
	p.writeLock.Lock()
	err := p.pollSet.addDemand(fd, kind, PollWrite|PollError)
	if err != nil {
		p.writeLock.Unlock()
		return err
	}
	q, ok := p.writeHandlers[fd]
	if !ok {
		q = newHandlerQueue()
		p.writeHandlers[fd] = q
	}
	q.push(h)
	p.writeLock.Unlock()
	p.WakeUp()
	return nil
}

// AddWork schedules a function to be run by the poll loop. With
// PermanentCompletionHandler it runs every pass until removed; any other
// expiry makes it run once after the delay elapses.
func (p *Proactor) AddWork(fn Work, expiry time.Duration) error {
	if p.stopped.Load() {
		return ErrProactorStopped
	}
	if fn == nil {
		return ErrNilWork
	}
	p.work.add(fn, expiry)
	p.WakeUp()
	return nil
}

// RemoveWork removes all scheduled work, temporary and permanent.
func (p *Proactor) RemoveWork() {
	p.work.removeAll()
}

func (p *Proactor) ScheduledWork() int {
	return p.work.scheduledCount()
}

// RemoveScheduledWork removes count temporary items from the front of
// the schedule, in submission order; count == -1 removes all.
func (p *Proactor) RemoveScheduledWork(count int) int {
	return p.work.removeScheduled(count)
}

func (p *Proactor) PermanentWork() int {
	return p.work.permanentCount()
}

func (p *Proactor) RemovePermanentWork(count int) int {
	return p.work.removePermanent(count)
}

// Has reports whether the socket is registered with this proactor.
func (p *Proactor) Has(fd int) bool {
	return p.pollSet.has(fd)
}

// Poll runs one pass: waits on the poll set up to the configured timeout
// (or not at all when work is already due), performs at most one queued
// operation per ready direction per socket, then runs due scheduled
// work. Returns the number of work functions invoked; if pHandled is not
// nil it receives the number of socket I/O handlers completed.
func (p *Proactor) Poll(pHandled *int) int {
	ioHandled := 0
	timeout := int(p.timeout.Load().Milliseconds())
	if p.work.hasDue() {
		timeout = 0
	}
	_, err := p.pollSet.wait(timeout, func(fd int, events uint32) error {
		if p.stopped.Load() {
			return gneterrors.ErrServerShutdown
		}
		ioHandled += p.serveSocket(fd, events, false)
		return nil
	})
	if err != nil && err != gneterrors.ErrServerShutdown {
		log.Error().Msgf("got error while waiting for the net events: %+v", err)
	}
	if pHandled != nil {
		*pHandled = ioHandled
	}
	return p.work.runDue(false)
}

// RunOne blocks until exactly one handler, I/O or scheduled work, has
// been executed and returns 1. Returns 0 if the attempt was aborted by a
// panic or the proactor was stopped before anything ran. Ready events
// left unserved stay pending for the next call.
func (p *Proactor) RunOne() (n int) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("got panic while running handler: %+v", r)
			n = 0
		}
	}()
	for {
		if p.stopped.Load() {
			return 0
		}
		if p.work.runDue(true) > 0 {
			return 1
		}
		handled := 0
		timeout := int(p.timeout.Load().Milliseconds())
		_, err := p.pollSet.wait(timeout, func(fd int, events uint32) error {
			if p.stopped.Load() {
				return gneterrors.ErrServerShutdown
			}
			if handled == 0 {
				handled += p.serveSocket(fd, events, true)
			}
			return nil
		})
		if err != nil && err != gneterrors.ErrServerShutdown {
			log.Error().Msgf("got error while waiting for the net events: %+v", err)
		}
		if handled > 0 {
			return 1
		}
	}
}

// Run drives the poll loop until Stop is called, then tears the engine
// down: the completion dispatcher is stopped and joined and the poller
// closed, so no completion record outlives the engine.
func (p *Proactor) Run() {
	if p.lockOsThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	defer p.onShutdown()
	p.isRunning.Store(true)
	defer p.isRunning.Store(false)
	p.emitEvent(LoopStarted, 0, nil, "proactor loop started")
	for !p.stopped.Load() {
		p.pollPass()
	}
}

// pollPass isolates one Poll call: a panic out of a handler is logged
// and the loop continues with the next pass.
func (p *Proactor) pollPass() {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("got panic in poll pass: %+v", r)
		}
	}()
	p.Poll(nil)
}

// Stop requests loop termination. The loop observes it on the next pass;
// a blocked wait is interrupted through the poller wakeup.
func (p *Proactor) Stop() {
	p.stopped.Store(true)
	p.WakeUp()
}

// WakeUp forces a blocked Poll to return early. Safe from any goroutine;
// a wake issued while the engine is not waiting makes the next wait
// return immediately.
func (p *Proactor) WakeUp() {
	p.stats.WakeUps.Inc()
	err := p.pollSet.wakeUp()
	if err != nil {
		log.Error().Msgf("got error while waking up poller: %+v", err)
	}
}

// SetTimeout changes the poll timeout; it takes effect on the next wait.
func (p *Proactor) SetTimeout(timeout time.Duration) {
	p.timeout.Store(timeout)
}

func (p *Proactor) GetTimeout() time.Duration {
	return p.timeout.Load()
}

func (p *Proactor) Stats() StatsSnapshot {
	return p.stats.Snapshot()
}

// Close stops the engine and releases its resources. For callers that
// never entered Run; Run performs the same teardown on exit.
func (p *Proactor) Close() {
	p.Stop()
	p.onShutdown()
}

func (p *Proactor) onShutdown() {
	p.shutdownOnce.Do(func() {
		p.stopped.Store(true)
		if p.completion != nil {
			p.completion.stop()
			p.completion.wait()
		}
		p.pollSet.close()
		p.emitEvent(LoopStopped, 0, nil, "proactor loop stopped")
		log.Info().Msgf("proactor stopped:%s", p.Name)
	})
}

// serveSocket performs at most one queued operation per ready direction;
// with handleOne set it stops after the first completed operation.
func (p *Proactor) serveSocket(fd int, events uint32, handleOne bool) int {
	kind, ok := p.pollSet.kindOf(fd)
	if !ok {
		err := p.pollSet.remove(fd)
		if err != nil {
			log.Error().Msgf("[%d] error occurs while detaching fd from netpoll: %v", fd, err)
		}
		return 0
	}
	handled := 0
	if events&readEvents > 0 {
		handled += p.receive(fd, kind)
	}
	if events&writeEvents > 0 && (!handleOne || handled == 0) {
		handled += p.send(fd, kind)
	}
	if events&errorEvents > 0 && events&readWriteEvents == 0 && (!handleOne || handled == 0) {
		handled += p.failSocket(fd, socketError(fd))
	}
	return handled
}

func (p *Proactor) receive(fd int, kind SocketKind) int {
	p.readLock.Lock()
	q := p.readHandlers[fd]
	if q == nil || q.len() == 0 {
		p.readLock.Unlock()
		return 0
	}
	h := q.front()
	p.readLock.Unlock()

	read, from, err := receiveOn(fd, kind, h.buffer)
	if wouldBlock(err) {
		return 0
	}
	p.readLock.Lock()
	// a concurrent RemoveSocket may have failed the handler while the
	// lock was released for the I/O call; it must not complete twice
	if p.readHandlers[fd] != q || q.front() != h {
		p.readLock.Unlock()
		return 0
	}
	q.pop()
	if q.len() == 0 {
		p.pollSet.dropDemand(fd, PollRead|PollError)
	}
	p.readLock.Unlock()
	if err == nil && read == 0 && kind == Stream {
		err = io.EOF
	}
	if read < 0 {
		read = 0
	}
	if err == nil {
		p.stats.TotalReceivedBytes.Add(uint64(read))
		if h.from != nil && from != nil {
			if addr := SockaddrToUDPAddr(from); addr != nil {
				*h.from = *addr
			}
		}
	} else {
		p.emitEvent(TerminalIOError, fd, err, "receive failed")
	}
	p.complete(h, read, err)
	return 1
}

func (p *Proactor) send(fd int, kind SocketKind) int {
	p.writeLock.Lock()
	q := p.writeHandlers[fd]
	if q == nil || q.len() == 0 {
		p.writeLock.Unlock()
		return 0
	}
	h := q.front()
	p.writeLock.Unlock()

	sent, err := sendOn(fd, kind, h.buffer, h.to)
	if wouldBlock(err) {
		return 0
	}
	p.writeLock.Lock()
	if p.writeHandlers[fd] != q || q.front() != h {
		p.writeLock.Unlock()
		return 0
	}
	q.pop()
	if q.len() == 0 {
		p.pollSet.dropDemand(fd, PollWrite|PollError)
	}
	p.writeLock.Unlock()
	if sent < 0 {
		sent = 0
	}
	if err == nil {
		p.stats.TotalSentBytes.Add(uint64(sent))
	} else {
		p.emitEvent(TerminalIOError, fd, err, "send failed")
	}
	p.complete(h, sent, err)
	return 1
}

// failSocket completes the front handler of the socket with the pending
// socket error; the read queue is served first.
func (p *Proactor) failSocket(fd int, err error) int {
	p.readLock.Lock()
	if q := p.readHandlers[fd]; q != nil && q.len() > 0 {
		h := q.pop()
		if q.len() == 0 {
			p.pollSet.dropDemand(fd, PollRead|PollError)
		}
		p.readLock.Unlock()
		p.emitEvent(TerminalIOError, fd, err, "socket error")
		p.complete(h, 0, err)
		return 1
	}
	p.readLock.Unlock()
	p.writeLock.Lock()
	if q := p.writeHandlers[fd]; q != nil && q.len() > 0 {
		h := q.pop()
		if q.len() == 0 {
			p.pollSet.dropDemand(fd, PollWrite|PollError)
		}
		p.writeLock.Unlock()
		p.emitEvent(TerminalIOError, fd, err, "socket error")
		p.complete(h, 0, err)
		return 1
	}
	p.writeLock.Unlock()
	return 0
}

// failQueued completes every handler still queued for the socket with
// the given error. Used on explicit removal.
func (p *Proactor) failQueued(fd int, err error) {
	var failed []*handler
	p.readLock.Lock()
	if q := p.readHandlers[fd]; q != nil {
		for h := q.pop(); h != nil; h = q.pop() {
			failed = append(failed, h)
		}
		delete(p.readHandlers, fd)
	}
	p.readLock.Unlock()
	p.writeLock.Lock()
	if q := p.writeHandlers[fd]; q != nil {
		for h := q.pop(); h != nil; h = q.pop() {
			failed = append(failed, h)
		}
		delete(p.writeHandlers, fd)
	}
	p.writeLock.Unlock()
	for _, h := range failed {
		p.complete(h, 0, err)
	}
}

// complete converts a consumed handler into an ioNotification and hands
// it to the dispatcher, or invokes the callback inline when the engine
// was built without a completion goroutine.
func (p *Proactor) complete(h *handler, bytesTransferred int, err error) {
	p.stats.HandlersInvoked.Inc()
	onCompletion := h.onCompletion
	h.release()
	if onCompletion == nil {
		return
	}
	notification := &ioNotification{onCompletion: onCompletion, bytesTransferred: bytesTransferred, err: err}
	if p.completion != nil {
		p.completion.enqueue(notification)
		return
	}
	invokeCompletion(notification)
	p.stats.CompletionsDispatched.Inc()
}

func checkBuffer(buffer []byte) error {
	if len(buffer) == 0 {
		return ErrEmptyBuffer
	}
	return nil
}
