package proactor

import (
	"net"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"
)

// Callback is invoked exactly once per submitted operation, with the
// terminal error (nil on success) and the number of bytes transferred.
type Callback func(err error, bytesTransferred int)

// Payload carries a send buffer together with its ownership contract.
// A borrowed payload references caller memory that must stay valid until
// the completion callback fires; an owned payload is copied on submission
// and released by the engine together with its handler.
type Payload struct {
	buffer []byte
	owned  bool
}

func BorrowBuffer(buffer []byte) Payload {
	return Payload{buffer: buffer}
}

func OwnBuffer(buffer []byte) Payload {
	owned := make([]byte, len(buffer))
	copy(owned, buffer)
	return Payload{buffer: owned, owned: true}
}

// handler holds one scheduled I/O operation. It sits in its socket's
// FIFO queue until the socket is ready in the matching direction, is
// consumed exactly once and converted into an ioNotification.
type handler struct {
	buffer       []byte
	owned        bool
	to           unix.Sockaddr // datagram destination, sendTo only
	from         *net.UDPAddr  // datagram source out-param, receiveFrom only
	onCompletion Callback
}

// release drops engine-owned storage once the handler is consumed.
func (h *handler) release() {
	if h.owned {
		h.buffer = nil
	}
	h.to = nil
}

type handlerQueue struct {
	fifo *queue.Queue
}

func newHandlerQueue() *handlerQueue {
	return &handlerQueue{fifo: queue.New()}
}

func (q *handlerQueue) push(h *handler) {
	q.fifo.Add(h)
}

func (q *handlerQueue) front() *handler {
	if q.fifo.Length() == 0 {
		return nil
	}
	return q.fifo.Peek().(*handler)
}

func (q *handlerQueue) pop() *handler {
	if q.fifo.Length() == 0 {
		return nil
	}
	return q.fifo.Remove().(*handler)
}

func (q *handlerQueue) len() int {
	return q.fifo.Length()
}
