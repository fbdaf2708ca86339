package broadcast

import (
	"context"
	"errors"
)

// Envelope is the transport-agnostic wire form of one published event.
type Envelope struct {
	Room    string `json:"room"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Broadcaster fans one event out to every subscriber of a room. Publish is
// fire-and-forget from the caller's perspective: an error means delivery may
// be incomplete, never that session state should be rolled back.
type Broadcaster interface {
	Publish(ctx context.Context, roomID, event string, payload any) error
}

// Fanout publishes to several broadcasters in order, collecting errors.
type Fanout []Broadcaster

func (f Fanout) Publish(ctx context.Context, roomID, event string, payload any) error {
	var errs []error
	for _, b := range f {
		if err := b.Publish(ctx, roomID, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
