package types

// ClientMessage is what a websocket client sends. Join happens implicitly on
// connect, so only the in-session actions appear here.
type ClientMessage struct {
	Type  string `json:"type"` // "setOdds" | "submitGuess" | "leave"
	Odds  int    `json:"odds,omitempty"`
	Guess int    `json:"guess,omitempty"`
}

// ActionRequest is the REST action envelope (POST /rooms/{code}/actions),
// mirroring the websocket actions plus explicit join.
type ActionRequest struct {
	Action   string `json:"action"` // "join" | "setOdds" | "submitGuess" | "leave"
	ClientID string `json:"clientId"`
	Name     string `json:"name,omitempty"`
	Odds     int    `json:"odds,omitempty"`
	Guess    int    `json:"guess,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
