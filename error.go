package proactor

import "errors"

var ErrProactorStopped = errors.New("proactor is stopped")
var ErrEmptyBuffer = errors.New("empty I/O buffer")
var ErrNilAddress = errors.New("nil peer address")
var ErrSocketKindMismatch = errors.New("socket registered with different kind")
var ErrSocketRemoved = errors.New("socket removed from proactor")
var ErrNilWork = errors.New("nil work function")

var pollerClosed = errors.New("poller is closed")
