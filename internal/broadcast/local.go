package broadcast

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const subscriberBuffer = 16

// Local is the in-process fan-out that backs the websocket layer. Each
// subscriber gets a buffered channel; a subscriber that can't keep up is
// dropped rather than allowed to stall the publisher.
type Local struct {
	mu    sync.Mutex
	rooms map[string]map[string]chan Envelope
	log   *zap.Logger
}

func NewLocal(log *zap.Logger) *Local {
	return &Local{
		rooms: make(map[string]map[string]chan Envelope),
		log:   log,
	}
}

// Subscribe registers a new subscriber for a room and returns its handle and
// receive channel. The channel is closed on Unsubscribe or when the
// subscriber is dropped for falling behind.
func (l *Local) Subscribe(roomID string) (string, <-chan Envelope) {
	l.mu.Lock()
	defer l.mu.Unlock()

	subs := l.rooms[roomID]
	if subs == nil {
		subs = make(map[string]chan Envelope)
		l.rooms[roomID] = subs
	}
	id := uuid.NewString()
	ch := make(chan Envelope, subscriberBuffer)
	subs[id] = ch
	return id, ch
}

func (l *Local) Unsubscribe(roomID, id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	subs := l.rooms[roomID]
	ch, ok := subs[id]
	if !ok {
		return
	}
	close(ch)
	delete(subs, id)
	if len(subs) == 0 {
		delete(l.rooms, roomID)
	}
}

func (l *Local) Publish(ctx context.Context, roomID, event string, payload any) error {
	env := Envelope{Room: roomID, Event: event, Payload: payload}

	l.mu.Lock()
	defer l.mu.Unlock()
	for id, ch := range l.rooms[roomID] {
		select {
		case ch <- env:
			// ok
		default:
			// Subscriber is slow/full - drop it.
			close(ch)
			delete(l.rooms[roomID], id)
			l.log.Warn("dropped slow subscriber",
				zap.String("room", roomID),
				zap.String("subscriber", id))
		}
	}
	return nil
}

// NumSubscribers reports the current subscriber count for a room.
func (l *Local) NumSubscribers(roomID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rooms[roomID])
}
