package proactor

import (
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// ApplySocketOptions prepares a freshly accepted or dialed socket for
// use with the proactor: non-blocking mode and bounded kernel buffers.
func ApplySocketOptions(fd int) {
	err := unix.SetNonblock(fd, true)
	if err != nil {
		log.Error().Msgf("got error while setting socket options O_NONBLOCK: %+v", err)
	}
	err = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_RCVBUF, 8192)
	if err != nil {
		log.Error().Msgf("got error while setting socket options SO_RCVBUF: %+v", err)
	}
	err = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_SNDBUF, 8192)
	if err != nil {
		log.Error().Msgf("got error while setting socket options SO_SNDBUF: %+v", err)
	}
}
