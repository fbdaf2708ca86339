package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func natsSubject(roomID string) string {
	return "odds.room." + roomID
}

// NATS relays every published event onto a per-room NATS subject.
type NATS struct {
	nc *nats.Conn
}

// ConnectNATS dials the NATS server with reconnect handlers wired into the
// logger.
func ConnectNATS(url string, log *zap.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

func NewNATS(nc *nats.Conn) *NATS {
	return &NATS{nc: nc}
}

func (n *NATS) Publish(ctx context.Context, roomID, event string, payload any) error {
	data, err := json.Marshal(Envelope{Room: roomID, Event: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := n.nc.Publish(natsSubject(roomID), data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", natsSubject(roomID), err)
	}
	return nil
}
