package proactor

import (
	"errors"
	"net"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// ConnToFileDesc extracts the file descriptor and socket kind from a
// net.Conn. Note that File() duplicates the descriptor and puts it into
// blocking mode; the engine switches it back to non-blocking on
// registration.
func ConnToFileDesc(conn net.Conn) (int, SocketKind, error) {
	switch c := conn.(type) {
	case *net.TCPConn:
		file, err := c.File()
		if err != nil {
			return 0, Stream, err
		}
		return int(file.Fd()), Stream, nil
	case *net.UDPConn:
		file, err := c.File()
		if err != nil {
			return 0, Datagram, err
		}
		return int(file.Fd()), Datagram, nil
	}
	return 0, Stream, errors.New("can't cast net.Conn to *net.TCPConn or *net.UDPConn")
}

// ListenerToFileDesc extracts the file descriptor from a TCP listener
// for passive registration with AddSocket.
func ListenerToFileDesc(listener net.Listener) (int, error) {
	tcpListener, ok := listener.(*net.TCPListener)
	if !ok {
		return 0, errors.New("can't cast net.Listener to *net.TCPListener")
	}
	file, err := tcpListener.File()
	if err != nil {
		return 0, err
	}
	return int(file.Fd()), nil
}

func UDPAddrToSockaddr(addr *net.UDPAddr) (unix.Sockaddr, error) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		sockaddr := &unix.SockaddrInet4{Port: addr.Port}
		copy(sockaddr.Addr[:], ip4)
		return sockaddr, nil
	}
	if ip6 := addr.IP.To16(); ip6 != nil {
		sockaddr := &unix.SockaddrInet6{Port: addr.Port}
		copy(sockaddr.Addr[:], ip6)
		return sockaddr, nil
	}
	return nil, ErrNilAddress
}

func SockaddrToUDPAddr(sockaddr unix.Sockaddr) *net.UDPAddr {
	switch sa := sockaddr.(type) {
	case *unix.SockaddrInet4:
		return &net.UDPAddr{IP: append(net.IP{}, sa.Addr[:]...), Port: sa.Port}
	case *unix.SockaddrInet6:
		return &net.UDPAddr{IP: append(net.IP{}, sa.Addr[:]...), Port: sa.Port}
	}
	return nil
}

// GetOSConfig raises the open file limit; engines juggling many sockets
// hit the default soft limit quickly.
func GetOSConfig() {
	noRLimit := &unix.Rlimit{}
	err := unix.Getrlimit(unix.RLIMIT_NOFILE, noRLimit)
	if err != nil {
		log.Error().Msgf("error occur while getting OS limit of open files: %+v", err)
	}
	err = unix.Setrlimit(unix.RLIMIT_NOFILE, &unix.Rlimit{
		Cur: 4096,
		Max: 100000,
	})
	if err != nil {
		log.Error().Msgf("error occur while setting OS limit of open files: %+v", err)
	}
}
