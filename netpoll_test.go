package proactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPollerWakeUpInterruptsWait(t *testing.T) {
	ps, err := newPollSet(8)
	require.NoError(t, err)
	defer ps.close()

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = ps.wakeUp()
	}()
	start := time.Now()
	handled, err := ps.wait(2000, func(fd int, events uint32) error { return nil })
	require.NoError(t, err)
	require.Equal(t, 0, handled)
	require.Less(t, time.Since(start), time.Second)
}

func TestPollerWakeUpBeforeWaitIsNotLost(t *testing.T) {
	ps, err := newPollSet(8)
	require.NoError(t, err)
	defer ps.close()

	require.NoError(t, ps.wakeUp())
	start := time.Now()
	_, err = ps.wait(2000, func(fd int, events uint32) error { return nil })
	require.NoError(t, err)
	require.Less(t, time.Since(start), time.Second)
}

func TestPollSetRegistration(t *testing.T) {
	ps, err := newPollSet(8)
	require.NoError(t, err)
	defer ps.close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	require.False(t, ps.has(fds[0]))
	require.NoError(t, ps.addSticky(fds[0], Stream, PollRead))
	require.True(t, ps.has(fds[0]))

	kind, ok := ps.kindOf(fds[0])
	require.True(t, ok)
	require.Equal(t, Stream, kind)

	require.Equal(t, ErrSocketKindMismatch, ps.addDemand(fds[0], Datagram, PollWrite))

	require.NoError(t, ps.remove(fds[0]))
	require.False(t, ps.has(fds[0]))
}

func TestPollSetReportsReadiness(t *testing.T) {
	ps, err := newPollSet(8)
	require.NoError(t, err)
	defer ps.close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	require.NoError(t, ps.addDemand(fds[0], Stream, PollRead))
	_, err = unix.Write(fds[1], []byte("x"))
	require.NoError(t, err)

	var readyFd int
	var readyEvents uint32
	handled, err := ps.wait(2000, func(fd int, events uint32) error {
		readyFd = fd
		readyEvents = events
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, handled)
	require.Equal(t, fds[0], readyFd)
	require.NotZero(t, readyEvents&readEvents)
}
