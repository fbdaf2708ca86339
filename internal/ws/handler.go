package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/pch-odds/odds-backend/internal/broadcast"
	"github.com/pch-odds/odds-backend/internal/game"
	"github.com/pch-odds/odds-backend/internal/hub"
	"github.com/pch-odds/odds-backend/internal/room"
	"github.com/pch-odds/odds-backend/internal/types"
)

// wsConn is the slice of *websocket.Conn the writer needs.
type wsConn interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Handler upgrades to a websocket, joins the room on connect, and leaves on
// disconnect. Outbound events arrive through the Local broadcaster; inbound
// client messages feed the room's mailbox.
func Handler(h *hub.Hub, local *broadcast.Local, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		// Identity is caller-supplied and treated as untrusted; the room
		// rejects duplicates, we reject the trivially invalid here.
		clientID := r.URL.Query().Get("id")
		if clientID == "" {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}
		name := r.URL.Query().Get("name")
		if name == "" {
			name = clientID
		}

		// Subscribe before joining so this client sees its own role event.
		subID, events := local.Subscribe(code)
		defer local.Unsubscribe(code, subID)

		rm, role, err := h.Join(code, clientID, name)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, game.ErrRoomNotFound) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			rm.Send(room.Leave{ParticipantID: clientID})
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		defer rm.Send(room.Leave{ParticipantID: clientID})

		log.Info("websocket connected",
			zap.String("room", code),
			zap.String("participant", clientID),
			zap.String("role", string(role)))

		// Errors from this client's own actions go through the same writer
		// goroutine as broadcasts; the connection has a single writer.
		errs := make(chan broadcast.Envelope, 4)

		connCtx, connCancel := context.WithCancel(r.Context())
		defer connCancel()
		go writeEvents(connCtx, connCancel, conn, events, errs)

		// Reader loop
		for {
			_, data, err := conn.Read(connCtx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				errs <- errorEnvelope(code, "BadRequest", "bad json")
				continue
			}

			switch cm.Type {
			case "setOdds":
				er := make(chan error, 1)
				if !rm.Send(room.SetOdds{ParticipantID: clientID, Value: cm.Odds, Reply: er}) {
					return
				}
				relayError(rm, er, errs, code)
			case "submitGuess":
				er := make(chan error, 1)
				if !rm.Send(room.SubmitGuess{ParticipantID: clientID, Value: cm.Guess, Reply: er}) {
					return
				}
				relayError(rm, er, errs, code)
			case "leave":
				return // deferred Leave does the work
			default:
				errs <- errorEnvelope(code, "BadRequest", "unknown type")
			}
		}
	}
}

// writeEvents pumps envelopes to the client until the connection context ends
// or the subscription closes. A closed subscription means the broadcaster
// dropped this client for falling behind, so the connection is torn down:
// cancel stops the reader, keeping a client that no longer sees state from
// silently acting on it.
func writeEvents(ctx context.Context, cancel context.CancelFunc, conn wsConn, events <-chan broadcast.Envelope, errs <-chan broadcast.Envelope) {
	write := func(env broadcast.Envelope) {
		payload, _ := json.Marshal(env)
		wctx, wcancel := context.WithTimeout(ctx, 3*time.Second)
		_ = conn.Write(wctx, websocket.MessageText, payload)
		wcancel()
	}
	for {
		select {
		case env, ok := <-events:
			if !ok {
				cancel()
				_ = conn.Close(websocket.StatusPolicyViolation, "subscription lapsed")
				return
			}
			write(env)
		case env := <-errs:
			write(env)
		case <-ctx.Done():
			return
		}
	}
}

func relayError(rm *room.Room, er chan error, errs chan broadcast.Envelope, code string) {
	select {
	case err := <-er:
		if err != nil {
			errs <- errorEnvelope(code, "Rejected", err.Error())
		}
	case <-rm.Done():
	}
}

func errorEnvelope(roomID, code, message string) broadcast.Envelope {
	return broadcast.Envelope{
		Room:    roomID,
		Event:   "error",
		Payload: types.ErrorPayload{Code: code, Message: message},
	}
}
