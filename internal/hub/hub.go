package hub

import (
	"context"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/pch-odds/odds-backend/internal/broadcast"
	"github.com/pch-odds/odds-backend/internal/game"
	"github.com/pch-odds/odds-backend/internal/room"
)

type HubMsg interface{ isHubMsg() }

// EnsureRoom returns the room for a code, creating it if absent. Join is the
// only action allowed to create a room.
type EnsureRoom struct {
	Code  string
	Reply chan *room.Room
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

type RemoveRoom struct {
	Code string
}

type ShutdownHub struct{}

func (EnsureRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Config struct {
	Clock       clockwork.Clock
	Broadcaster broadcast.Broadcaster
	Logger      *zap.Logger
	Rules       game.Rules
}

// Hub routes actions to rooms and owns their lifecycle. Rooms never contend
// with each other: the hub only creates, hands out, and removes them; every
// session mutation happens inside the target room's own loop.
type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*room.Room
	cfg    Config
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, cfg Config) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room.Room),
		cfg:    cfg,
		log:    cfg.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureRoom:
				if rm := h.rooms[msg.Code]; rm != nil {
					msg.Reply <- rm
					break
				}
				rm := h.newRoom(msg.Code)
				h.rooms[msg.Code] = rm
				h.log.Info("room created", zap.String("room", msg.Code))
				msg.Reply <- rm

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // May be nil

			case RemoveRoom:
				rm := h.rooms[msg.Code]
				if rm == nil {
					break
				}
				// The empty signal is stale by the time it is acted on; the
				// room re-checks on its own loop and declines if someone has
				// joined since. Removing first would strand that joiner.
				if !h.confirmShutdown(rm) {
					h.log.Debug("room repopulated, keeping", zap.String("room", msg.Code))
					break
				}
				delete(h.rooms, msg.Code)
				h.log.Info("room removed", zap.String("room", msg.Code))

			case ShutdownHub:
				for _, rm := range h.rooms {
					rm.Send(room.Shutdown{})
				}
				clear(h.rooms)
				h.cancel()
			}
		}
	}
}

// confirmShutdown asks the room to shut down if it is still empty. A room
// that already died counts as confirmed.
func (h *Hub) confirmShutdown(rm *room.Room) bool {
	reply := make(chan bool, 1)
	if !rm.Send(room.ShutdownIfEmpty{Reply: reply}) {
		return true
	}
	select {
	case confirmed := <-reply:
		return confirmed
	case <-rm.Done():
		return true
	}
}

// Join admits a participant to a room, creating the room if needed. It
// retries once when the target tears down between lookup and delivery, so a
// caller never sees an admission into a room that is already gone.
func (h *Hub) Join(code, participantID, displayName string) (*room.Room, game.Role, error) {
	for attempt := 0; attempt < 2; attempt++ {
		reply := make(chan *room.Room, 1)
		select {
		case h.inbox <- EnsureRoom{Code: code, Reply: reply}:
		case <-h.ctx.Done():
			return nil, "", game.ErrRoomNotFound
		}
		var rm *room.Room
		select {
		case rm = <-reply:
		case <-h.ctx.Done():
			return nil, "", game.ErrRoomNotFound
		}
		if rm == nil {
			return nil, "", game.ErrRoomNotFound
		}

		jr := make(chan room.JoinResult, 1)
		if !rm.Send(room.Join{ParticipantID: participantID, DisplayName: displayName, Reply: jr}) {
			continue
		}
		select {
		case res := <-jr:
			return rm, res.Role, res.Err
		case <-rm.Done():
			// The room replies before it winds down, so check once more.
			select {
			case res := <-jr:
				return rm, res.Role, res.Err
			default:
			}
		}
	}
	return nil, "", game.ErrRoomNotFound
}

func (h *Hub) newRoom(code string) *room.Room {
	return room.New(h.ctx, code, room.Config{
		Clock:       h.cfg.Clock,
		Broadcaster: h.cfg.Broadcaster,
		Logger:      h.cfg.Logger,
		Rules:       h.cfg.Rules,
		// Runs on the room loop when the last participant leaves; the
		// buffered inbox keeps the room from blocking on the hub.
		OnEmpty: func(code string) {
			select {
			case h.inbox <- RemoveRoom{Code: code}:
			case <-h.ctx.Done():
			}
		},
	})
}
