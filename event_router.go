package proactor

import (
	"context"

	"github.com/rs/zerolog/log"
)

type EventRouter interface {
	Process(key string, event *Event) error
}

// RouteEvents pumps engine events into the router until the context is
// done or the channel is closed.
func RouteEvents(ctx context.Context, events <-chan Event, router EventRouter) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			err := router.Process(event.Proactor, &event)
			if err != nil {
				log.Error().Msgf("got error while routing event: %+v", err)
			}
		}
	}
}
