package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/pch-odds/odds-backend/internal/broadcast"
	"github.com/pch-odds/odds-backend/internal/hub"
	"github.com/pch-odds/odds-backend/internal/types"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := zap.NewNop()
	local := broadcast.NewLocal(logger)
	h := hub.NewHub(ctx, hub.Config{
		Clock:       clockwork.NewFakeClock(),
		Broadcaster: local,
	})

	srv := httptest.NewServer(SetupRoutes(h, local, logger))
	t.Cleanup(srv.Close)
	return srv
}

func postAction(t *testing.T, srv *httptest.Server, code string, req types.ActionRequest) *http.Response {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(fmt.Sprintf("%s/rooms/%s/actions", srv.URL, code), "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post action: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCreateRoom_ReturnsCode(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/rooms", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("want 201, got %d", resp.StatusCode)
	}
	var out struct {
		Code string `json:"code"`
	}
	decodeJSON(t, resp, &out)
	if len(out.Code) != 6 {
		t.Fatalf("want 6-char code, got %q", out.Code)
	}

	// A code is just a reservation: no session exists until someone joins,
	// so an abandoned code holds no resources.
	resp, err = http.Get(fmt.Sprintf("%s/rooms/%s/status", srv.URL, out.Code))
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status before first join: want 404, got %d", resp.StatusCode)
	}

	resp = postAction(t, srv, out.Code, types.ActionRequest{Action: "join", ClientID: "p1", Name: "Alice"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join: want 200, got %d", resp.StatusCode)
	}
	resp, err = http.Get(fmt.Sprintf("%s/rooms/%s/status", srv.URL, out.Code))
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var status struct {
		Players int `json:"players"`
	}
	decodeJSON(t, resp, &status)
	if status.Players != 1 {
		t.Fatalf("status after join: want 1 player, got %d", status.Players)
	}
}

func TestRoomAction_JoinAssignsRolesInOrder(t *testing.T) {
	srv := newTestServer(t)

	wantRoles := []string{"player", "player", "spectator"}
	for i, want := range wantRoles {
		resp := postAction(t, srv, "ROOM01", types.ActionRequest{
			Action:   "join",
			ClientID: fmt.Sprintf("p%d", i+1),
			Name:     fmt.Sprintf("Player %d", i+1),
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("join %d: want 200, got %d", i+1, resp.StatusCode)
		}
		var out struct {
			Status string `json:"status"`
			Role   string `json:"role"`
		}
		decodeJSON(t, resp, &out)
		if out.Role != want {
			t.Fatalf("join %d: want role %s, got %s", i+1, want, out.Role)
		}
	}

	resp, err := http.Get(srv.URL + "/rooms/ROOM01/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var status struct {
		Status     string `json:"status"`
		Phase      string `json:"phase"`
		Players    int    `json:"players"`
		Spectators int    `json:"spectators"`
	}
	decodeJSON(t, resp, &status)
	if status.Players != 2 || status.Spectators != 1 {
		t.Fatalf("status counts: %+v", status)
	}
	if status.Phase != "waitingOdds" {
		t.Fatalf("status phase: want waitingOdds, got %s", status.Phase)
	}
}

func TestRoomAction_ErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	// Non-join actions never create a room.
	resp := postAction(t, srv, "NOROOM", types.ActionRequest{Action: "setOdds", ClientID: "p1", Odds: 4})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown room: want 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postAction(t, srv, "ROOM01", types.ActionRequest{Action: "join", ClientID: "p1", Name: "Alice"})
	resp.Body.Close()

	// Only one player: odds are out of phase.
	resp = postAction(t, srv, "ROOM01", types.ActionRequest{Action: "setOdds", ClientID: "p1", Odds: 4})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("wrong phase: want 409, got %d", resp.StatusCode)
	}
	var out struct {
		Error types.ErrorPayload `json:"error"`
	}
	decodeJSON(t, resp, &out)
	if out.Error.Code != "WrongPhase" {
		t.Fatalf("want WrongPhase, got %+v", out.Error)
	}

	// Spectator trying to act as a player.
	resp = postAction(t, srv, "ROOM01", types.ActionRequest{Action: "join", ClientID: "p2", Name: "Bob"})
	resp.Body.Close()
	resp = postAction(t, srv, "ROOM01", types.ActionRequest{Action: "join", ClientID: "p3", Name: "Carol"})
	resp.Body.Close()
	resp = postAction(t, srv, "ROOM01", types.ActionRequest{Action: "setOdds", ClientID: "p3", Odds: 4})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("spectator odds: want 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Duplicate identity is rejected at join.
	resp = postAction(t, srv, "ROOM01", types.ActionRequest{Action: "join", ClientID: "p1", Name: "Alice again"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate join: want 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postAction(t, srv, "ROOM01", types.ActionRequest{Action: "dance", ClientID: "p1"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid action: want 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
}
