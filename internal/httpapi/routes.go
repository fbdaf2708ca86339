package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pch-odds/odds-backend/internal/broadcast"
	"github.com/pch-odds/odds-backend/internal/hub"
	"github.com/pch-odds/odds-backend/internal/ws"
)

func SetupRoutes(h *hub.Hub, local *broadcast.Local, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Post("/rooms", CreateRoom(h))
	r.Post("/rooms/{code}/actions", RoomAction(h, log))
	r.Get("/rooms/{code}/status", RoomStatus(h))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, local, log))
	return r
}
