package proactor

import (
	"math"
	"os"
	"runtime"
	"syscall"
	"unsafe"

	"github.com/panjf2000/gnet/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

const (
	readEvents      = unix.EPOLLPRI | unix.EPOLLIN
	writeEvents     = unix.EPOLLOUT
	readWriteEvents = readEvents | writeEvents
	errorEvents     = unix.EPOLLERR | unix.EPOLLHUP
)

type Poller struct {
	eventBufferSize int
	fd              int // epoll fd
	wakeFd          int // eventfd used by wakeUp
	events          []unix.EpollEvent
}

func openPoller(eventsBufferSize int) (*Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("eventfd", err)
	}
	err = unix.EpollCtl(fd, unix.EPOLL_CTL_ADD, wakeFd, &unix.EpollEvent{Fd: int32(wakeFd), Events: readEvents})
	if err != nil {
		_ = unix.Close(wakeFd)
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("epoll_ctl add", err)
	}
	bufferSize := int(math.Max(float64(eventsBufferSize), defEventsBufferSize))
	return &Poller{
		eventBufferSize: bufferSize,
		fd:              fd,
		wakeFd:          wakeFd,
		events:          make([]unix.EpollEvent, bufferSize),
	}, nil
}

func (p *Poller) close() {
	err := os.NewSyscallError("close", unix.Close(p.wakeFd))
	if err != nil {
		log.Error().Msgf("got error while closing wakeup eventfd: %+v", err)
	}
	err = os.NewSyscallError("close", unix.Close(p.fd))
	if err != nil {
		log.Error().Msgf("got error while closing epoll: %+v", err)
	}
}

// wakeUp forces a blocked waitForEvents to return. The eventfd counter
// stays set when nobody is waiting, so the next wait returns immediately
// and a wake issued between waits is never lost.
func (p *Poller) wakeUp() error {
	var one = uint64(1)
	_, err := unix.Write(p.wakeFd, (*(*[8]byte)(unsafe.Pointer(&one)))[:])
	if err != nil && err != unix.EAGAIN {
		return os.NewSyscallError("write", err)
	}
	return nil
}

func (p *Poller) waitForEvents(timeout int, callback func(fd int, events uint32) error) (int, error) {
	evCount, err := epollWait(p.fd, p.events, timeout)
	if evCount == 0 || (evCount < 0 && err == unix.EINTR) {
		runtime.Gosched()
		return 0, nil
	} else if err != nil {
		log.Error().Msgf("error occurs in epoll: %v", os.NewSyscallError("epoll_wait", err))
		return 0, err
	}
	handled := 0
	for i := 0; i < evCount; i++ {
		event := p.events[i]
		fd := int(event.Fd)
		if fd == p.wakeFd {
			p.drainWake()
			continue
		}
		handled++
		err = callback(fd, event.Events)
		if err != nil {
			if err == errors.ErrServerShutdown {
				return handled, err
			}
			log.Error().Msgf("error occurs in event-loop: %v", err)
		}
	}
	return handled, nil
}

func (p *Poller) drainWake() {
	var buf [8]byte
	_, err := unix.Read(p.wakeFd, buf[:])
	if err != nil && err != unix.EAGAIN {
		log.Error().Msgf("got error while draining wakeup eventfd: %+v", err)
	}
}

func (p *Poller) add(fd int, events uint32) error {
	if log.Debug().Enabled() {
		log.Debug().Msgf("add epoll events %d for fd: %d", events, fd)
	}
	err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: events})
	if err != nil {
		return os.NewSyscallError("epoll_ctl add", err)
	}
	return nil
}

func (p *Poller) modify(fd int, events uint32) error {
	if log.Debug().Enabled() {
		log.Debug().Msgf("modify epoll events %d for fd: %d", events, fd)
	}
	err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: int32(fd), Events: events})
	if err != nil {
		return os.NewSyscallError("epoll_ctl mod", err)
	}
	return nil
}

func (p *Poller) delete(fd int) error {
	if log.Debug().Enabled() {
		log.Debug().Msgf("delete epoll for fd: %d", fd)
	}
	err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil)
	if err != nil {
		return os.NewSyscallError("epoll_ctl del", err)
	}
	return nil
}

func epollWait(epollFd int, events []unix.EpollEvent, msec int) (count int, err error) {
	var eventCount uintptr
	var eventsPointer = unsafe.Pointer(&events[0])
	if msec == 0 {
		eventCount, _, err = syscall.RawSyscall6(syscall.SYS_EPOLL_PWAIT, uintptr(epollFd), uintptr(eventsPointer), uintptr(len(events)), 0, 0, 0)
	} else {
		eventCount, _, err = syscall.Syscall6(syscall.SYS_EPOLL_PWAIT, uintptr(epollFd), uintptr(eventsPointer), uintptr(len(events)), uintptr(msec), 0, 0)
	}
	if err == syscall.Errno(0) {
		err = nil
	}
	return int(eventCount), err
}
