package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pch-odds/odds-backend/internal/game"
	"github.com/pch-odds/odds-backend/internal/hub"
	"github.com/pch-odds/odds-backend/internal/room"
	"github.com/pch-odds/odds-backend/internal/types"
)

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

// CreateRoom hands out a code that no active room is using. The session
// itself spawns on the first join, so a code nobody follows up on costs
// nothing to abandon.
func CreateRoom(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var code string
		for {
			c, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			reply := make(chan *room.Room, 1)
			h.Inbox() <- hub.GetRoom{Code: c, Reply: reply}
			if <-reply == nil {
				code = c
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			Code string `json:"code"`
		}{Code: code})
	}
}

// RoomAction handles the inbound action envelope. Join lazily creates the
// room; every other action on an unknown room is RoomNotFound.
func RoomAction(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		var req types.ActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorPayload(w, http.StatusBadRequest, "BadRequest", "invalid json body")
			return
		}

		if req.Action == "join" {
			_, role, err := h.Join(code, req.ClientID, req.Name)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, struct {
				Status string    `json:"status"`
				Role   game.Role `json:"role"`
			}{Status: "success", Role: role})
			return
		}

		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.GetRoom{Code: code, Reply: reply}
		rm := <-reply
		if rm == nil {
			writeError(w, game.ErrRoomNotFound)
			return
		}

		switch req.Action {
		case "setOdds":
			doAction(w, rm, room.SetOdds{ParticipantID: req.ClientID, Value: req.Odds, Reply: make(chan error, 1)})
		case "submitGuess":
			doAction(w, rm, room.SubmitGuess{ParticipantID: req.ClientID, Value: req.Guess, Reply: make(chan error, 1)})
		case "leave":
			doAction(w, rm, room.Leave{ParticipantID: req.ClientID, Reply: make(chan error, 1)})

		default:
			writeErrorPayload(w, http.StatusBadRequest, "BadRequest", "invalid action")
		}
	}
}

// doAction sends one mutating message and waits for its reply, bailing out if
// the room tears down mid-flight.
func doAction(w http.ResponseWriter, rm *room.Room, msg room.Msg) {
	var reply chan error
	switch m := msg.(type) {
	case room.SetOdds:
		reply = m.Reply
	case room.SubmitGuess:
		reply = m.Reply
	case room.Leave:
		reply = m.Reply
	}

	if !rm.Send(msg) {
		writeError(w, game.ErrRoomNotFound)
		return
	}
	select {
	case err := <-reply:
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Status string `json:"status"`
		}{Status: "success"})
	case <-rm.Done():
		writeError(w, game.ErrRoomNotFound)
	}
}

// RoomStatus is the read-only operational projection of a room's snapshot.
func RoomStatus(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		reply := make(chan *room.Room, 1)
		h.Inbox() <- hub.GetRoom{Code: code, Reply: reply}
		rm := <-reply
		if rm == nil {
			writeError(w, game.ErrRoomNotFound)
			return
		}

		vr := make(chan room.View, 1)
		if !rm.Send(room.GetState{Reply: vr}) {
			writeError(w, game.ErrRoomNotFound)
			return
		}
		select {
		case v := <-vr:
			writeJSON(w, http.StatusOK, struct {
				Status     string     `json:"status"`
				Phase      game.Phase `json:"phase"`
				Players    int        `json:"players"`
				Spectators int        `json:"spectators"`
			}{
				Status:     "Game server is running",
				Phase:      v.State.Phase,
				Players:    len(v.State.Players),
				Spectators: v.State.SpectatorsCount,
			})
		case <-rm.Done():
			writeError(w, game.ErrRoomNotFound)
		}
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code, status := classify(err)
	writeErrorPayload(w, status, code, err.Error())
}

func writeErrorPayload(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, struct {
		Error types.ErrorPayload `json:"error"`
	}{Error: types.ErrorPayload{Code: code, Message: message}})
}

func classify(err error) (string, int) {
	switch {
	case errors.Is(err, game.ErrRoomNotFound):
		return "RoomNotFound", http.StatusNotFound
	case errors.Is(err, game.ErrNotAPlayer):
		return "NotAPlayer", http.StatusForbidden
	case errors.Is(err, game.ErrWrongPhase):
		return "WrongPhase", http.StatusConflict
	case errors.Is(err, game.ErrEmptyParticipantID), errors.Is(err, game.ErrDuplicateParticipantID):
		return "InvalidParticipant", http.StatusBadRequest
	default:
		return "Internal", http.StatusInternalServerError
	}
}
