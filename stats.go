package proactor

import "go.uber.org/atomic"

// Stats counts engine activity. Counters are written from the polling
// goroutine and the completion dispatcher concurrently.
type Stats struct {
	HandlersInvoked       *atomic.Uint64
	CompletionsDispatched *atomic.Uint64
	TotalSentBytes        *atomic.Uint64
	TotalReceivedBytes    *atomic.Uint64
	WakeUps               *atomic.Uint64
}

func newStats() *Stats {
	return &Stats{
		HandlersInvoked:       atomic.NewUint64(0),
		CompletionsDispatched: atomic.NewUint64(0),
		TotalSentBytes:        atomic.NewUint64(0),
		TotalReceivedBytes:    atomic.NewUint64(0),
		WakeUps:               atomic.NewUint64(0),
	}
}

type StatsSnapshot struct {
	HandlersInvoked       uint64
	CompletionsDispatched uint64
	TotalSentBytes        uint64
	TotalReceivedBytes    uint64
	WakeUps               uint64
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		HandlersInvoked:       s.HandlersInvoked.Load(),
		CompletionsDispatched: s.CompletionsDispatched.Load(),
		TotalSentBytes:        s.TotalSentBytes.Load(),
		TotalReceivedBytes:    s.TotalReceivedBytes.Load(),
		WakeUps:               s.WakeUps.Load(),
	}
}
