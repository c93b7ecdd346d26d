package proactor

import (
	"golang.org/x/sys/unix"
)

// SocketKind selects the I/O calls used for a registered socket.
// The kind is fixed at registration time; stream sockets use plain
// read/write, datagram sockets use recvfrom/sendto.
type SocketKind int8

const (
	Stream   = SocketKind(0)
	Datagram = SocketKind(1)
)

func (k SocketKind) String() string {
	if k == Datagram {
		return "datagram"
	}
	return "stream"
}

// wouldBlock reports whether err means the socket is not ready yet and
// the operation should stay queued. Everything else is terminal.
func wouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR
}

func receiveOn(fd int, kind SocketKind, buffer []byte) (int, unix.Sockaddr, error) {
	if kind == Datagram {
		return unix.Recvfrom(fd, buffer, 0)
	}
	read, err := unix.Read(fd, buffer)
	return read, nil, err
}

func sendOn(fd int, kind SocketKind, buffer []byte, to unix.Sockaddr) (int, error) {
	if kind == Datagram {
		err := unix.Sendto(fd, buffer, 0, to)
		if err != nil {
			return 0, err
		}
		return len(buffer), nil
	}
	return unix.Write(fd, buffer)
}

// socketError fetches the pending error from a socket that was reported
// in the error state by the poller.
func socketError(fd int) error {
	soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if soErr != 0 {
		return unix.Errno(soErr)
	}
	return unix.ECONNRESET
}
