package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisChannel is the pub/sub channel carrying a room's event stream.
func redisChannel(roomID string) string {
	return "odds:room:" + roomID
}

// Redis relays every published event onto a per-room Redis pub/sub channel,
// for external consumers outside this process.
type Redis struct {
	client *redis.Client
}

// ConnectRedis initializes a Redis client and verifies the connection.
func ConnectRedis(addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return client, nil
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Publish(ctx context.Context, roomID, event string, payload any) error {
	data, err := json.Marshal(Envelope{Room: roomID, Event: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := r.client.Publish(ctx, redisChannel(roomID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", redisChannel(roomID), err)
	}
	return nil
}
