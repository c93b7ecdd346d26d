package proactor

import (
	"time"
)

const (
	LoopStarted     = 100
	LoopStopped     = 101
	TerminalIOError = 500
)

// Event is a monitoring record published by the engine on its optional
// events channel: loop lifecycle transitions and terminal I/O errors.
type Event struct {
	Proactor  string `json:"proactor"`
	Timestamp int64  `json:"timestamp"`
	Type      int    `json:"type"`
	Fd        int    `json:"fd"`
	Err       string `json:"error,omitempty"`
	Msg       string `json:"msg"`
}

// emitEvent publishes without blocking; when the channel is full or
// absent the event is dropped, monitoring must never stall the loop.
func (p *Proactor) emitEvent(eventType int, fd int, err error, msg string) {
	if p.events == nil {
		return
	}
	event := Event{
		Proactor:  p.Name,
		Timestamp: time.Now().UnixMilli(),
		Type:      eventType,
		Fd:        fd,
		Msg:       msg,
	}
	if err != nil {
		event.Err = err.Error()
	}
	select {
	case p.events <- event:
	default:
	}
}
