package proactor

import (
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

const defEventsBufferSize = 128

// Interest mask passed to AddSocket and tracked per registration.
const (
	PollRead  = 1 << 0
	PollWrite = 1 << 1
	PollError = 1 << 2
)

// socketReg keeps one socket's registration: its kind, the sticky
// interest set by AddSocket and the demand interest derived from queued
// handlers. The socket stays in the table with a zero mask once both
// drain; only removeSocket takes it out.
type socketReg struct {
	kind      SocketKind
	sticky    int
	demand    int
	installed uint32 // epoll events currently installed, 0 if detached
}

type pollSet struct {
	lock    *sync.Mutex
	poller  *Poller
	sockets map[int]*socketReg
	closed  bool
}

func newPollSet(eventsBufferSize int) (*pollSet, error) {
	poller, err := openPoller(eventsBufferSize)
	if err != nil {
		return nil, err
	}
	return &pollSet{
		lock:    &sync.Mutex{},
		poller:  poller,
		sockets: make(map[int]*socketReg),
	}, nil
}

func (ps *pollSet) addSticky(fd int, kind SocketKind, mode int) error {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	reg, err := ps.register(fd, kind)
	if err != nil {
		return err
	}
	reg.sticky |= mode
	return ps.apply(fd, reg)
}

func (ps *pollSet) addDemand(fd int, kind SocketKind, mode int) error {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	reg, err := ps.register(fd, kind)
	if err != nil {
		return err
	}
	reg.demand |= mode
	return ps.apply(fd, reg)
}

func (ps *pollSet) dropDemand(fd int, mode int) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	reg, ok := ps.sockets[fd]
	if !ok {
		return
	}
	reg.demand &^= mode
	err := ps.apply(fd, reg)
	if err != nil {
		log.Error().Msgf("[%d] got error while updating netpoll registration: %+v", fd, err)
	}
}

func (ps *pollSet) register(fd int, kind SocketKind) (*socketReg, error) {
	if ps.closed {
		return nil, pollerClosed
	}
	reg, ok := ps.sockets[fd]
	if !ok {
		if err := unix.SetNonblock(fd, true); err != nil {
			log.Error().Msgf("[%d] got error while setting socket non-blocking: %+v", fd, err)
		}
		reg = &socketReg{kind: kind}
		ps.sockets[fd] = reg
		return reg, nil
	}
	if reg.kind != kind {
		return nil, ErrSocketKindMismatch
	}
	return reg, nil
}

// apply reconciles the epoll registration with the combined mask.
func (ps *pollSet) apply(fd int, reg *socketReg) error {
	wanted := epollEvents(reg.sticky | reg.demand)
	if wanted == reg.installed {
		return nil
	}
	var err error
	if reg.installed == 0 {
		err = ps.poller.add(fd, wanted)
	} else if wanted == 0 {
		err = ps.poller.delete(fd)
	} else {
		err = ps.poller.modify(fd, wanted)
	}
	if err != nil {
		return err
	}
	reg.installed = wanted
	return nil
}

func (ps *pollSet) kindOf(fd int) (SocketKind, bool) {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	reg, ok := ps.sockets[fd]
	if !ok {
		return Stream, false
	}
	return reg.kind, true
}

func (ps *pollSet) has(fd int) bool {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	_, ok := ps.sockets[fd]
	return ok
}

func (ps *pollSet) remove(fd int) error {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	reg, ok := ps.sockets[fd]
	if !ok {
		return nil
	}
	delete(ps.sockets, fd)
	if reg.installed != 0 {
		return ps.poller.delete(fd)
	}
	return nil
}

func (ps *pollSet) wait(timeout int, callback func(fd int, events uint32) error) (int, error) {
	return ps.poller.waitForEvents(timeout, callback)
}

func (ps *pollSet) wakeUp() error {
	return ps.poller.wakeUp()
}

func (ps *pollSet) close() {
	ps.lock.Lock()
	defer ps.lock.Unlock()
	if ps.closed {
		return
	}
	ps.closed = true
	ps.poller.close()
}

func epollEvents(mode int) uint32 {
	var events uint32
	if mode&PollRead > 0 {
		events |= readEvents
	}
	if mode&PollWrite > 0 {
		events |= writeEvents
	}
	if mode&PollError > 0 {
		events |= errorEvents
	}
	return events
}
