package game

import "errors"

var ErrRoomNotFound = errors.New("room not found")
var ErrNotAPlayer = errors.New("not a player")
var ErrWrongPhase = errors.New("wrong phase for action")
var ErrEmptyParticipantID = errors.New("empty participant id")
var ErrDuplicateParticipantID = errors.New("duplicate participant id")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Role string

const (
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

type Phase string

const (
	PhaseJoin        Phase = "join"
	PhaseWaitingOdds Phase = "waitingOdds"
	PhaseCountdown   Phase = "countdown"
	PhaseGuessing    Phase = "guessing"
	PhaseResult      Phase = "result"
)

// Player order is join order; Players[0] is "Player 1" in results.
type Player struct {
	ID    string
	Name  string
	Odds  *int
	Guess *int
}

type Spectator struct {
	ID   string
	Name string
}

type Rules struct {
	CountdownSec int
	ResultSec    int
}

type State struct {
	Phase      Phase
	Players    []Player
	Spectators map[string]Spectator
	RoundID    int
	Countdown  int
	Result     *Result
	Rules      Rules
}

type Result struct {
	Guess1  int    `json:"guess1"`
	Guess2  int    `json:"guess2"`
	OddsWon bool   `json:"oddsWon"`
	Message string `json:"message"`
}

type CommandType string

const (
	CmdJoin        CommandType = "Join"
	CmdLeave       CommandType = "Leave"
	CmdSetOdds     CommandType = "SetOdds"
	CmdSubmitGuess CommandType = "SubmitGuess"
	CmdTimerFired  CommandType = "TimerFired"
)

type Command struct {
	Type          CommandType
	ParticipantID string
	DisplayName   string
	Value         int
	RoundID       int // CmdTimerFired only: the round the timer was armed in
}

type EventType string

const (
	EvtRole           EventType = "role"
	EvtUserJoin       EventType = "userJoin"
	EvtUserLeave      EventType = "userLeave"
	EvtWaitingForOdds EventType = "waitingForOdds"
	EvtStartTimer     EventType = "startTimer"
	EvtTimerEnded     EventType = "timerEnded"
	EvtGameResult     EventType = "gameResult"
	EvtGameState      EventType = "gameState"
)

type Event struct {
	Type    EventType
	Payload any
}

type RolePayload struct {
	ClientID string `json:"clientId"`
	Role     Role   `json:"role"`
}

type CountsPayload struct {
	PlayersCount    int `json:"playersCount"`
	SpectatorsCount int `json:"spectatorsCount"`
}

type PromptPayload struct {
	Message string `json:"message"`
}

type StartTimerPayload struct {
	Countdown int `json:"countdown"`
}

const (
	msgWaitingForOdds     = "Both players, please set your odds number."
	msgWaitingForOddsNext = "Both players, please set your odds number for the next round."
	msgTimeToGuess        = "Time to submit guess"
	msgOddsWon            = "ODDS WON! Both guesses match!"
	msgOddsLost           = "ODDS LOST! Guesses don't match."
)

// Apply runs one command against the session state. It never mutates s: on
// success it returns the events to broadcast and the successor state, on a
// guard violation it returns the input state unchanged with a typed error.
// Callers must serialize Apply per room; the function itself holds no locks.
func Apply(s State, cmd Command) ([]Event, State, error) {
	next := clone(s)

	switch cmd.Type {
	case CmdJoin:
		if cmd.ParticipantID == "" {
			return nil, s, ErrEmptyParticipantID
		}
		if hasParticipant(s, cmd.ParticipantID) {
			return nil, s, ErrDuplicateParticipantID
		}

		if len(next.Players) < 2 {
			next.Players = append(next.Players, Player{ID: cmd.ParticipantID, Name: cmd.DisplayName})
			events := []Event{
				{Type: EvtRole, Payload: RolePayload{ClientID: cmd.ParticipantID, Role: RolePlayer}},
				{Type: EvtUserJoin, Payload: counts(next)},
			}
			if len(next.Players) == 2 {
				next.Phase = PhaseWaitingOdds
				events = append(events, Event{Type: EvtWaitingForOdds, Payload: PromptPayload{Message: msgWaitingForOdds}})
			}
			events = append(events, stateEvent(next))
			return events, next, nil
		}

		next.Spectators[cmd.ParticipantID] = Spectator{ID: cmd.ParticipantID, Name: cmd.DisplayName}
		events := []Event{
			{Type: EvtRole, Payload: RolePayload{ClientID: cmd.ParticipantID, Role: RoleSpectator}},
			{Type: EvtUserJoin, Payload: counts(next)},
			stateEvent(next),
		}
		return events, next, nil

	case CmdLeave:
		// Idempotent: an unknown id is a no-op, no broadcast.
		if !hasParticipant(s, cmd.ParticipantID) {
			return nil, s, nil
		}

		if _, ok := next.Spectators[cmd.ParticipantID]; ok {
			delete(next.Spectators, cmd.ParticipantID)
			return []Event{{Type: EvtUserLeave, Payload: counts(next)}, stateEvent(next)}, next, nil
		}

		next.Players = removePlayer(next.Players, cmd.ParticipantID)
		if next.Phase != PhaseJoin {
			// Cancels the round: round-scoped data cleared, RoundID bumped so
			// any in-flight timer fires as a stale no-op.
			next = resetToJoin(next)
		}
		return []Event{{Type: EvtUserLeave, Payload: counts(next)}, stateEvent(next)}, next, nil

	case CmdSetOdds:
		i := playerIndex(next, cmd.ParticipantID)
		if i < 0 {
			return nil, s, ErrNotAPlayer
		}
		if s.Phase != PhaseWaitingOdds {
			return nil, s, ErrWrongPhase
		}

		v := cmd.Value
		next.Players[i].Odds = &v

		if len(next.Players) == 2 && next.Players[0].Odds != nil && next.Players[1].Odds != nil {
			next.Phase = PhaseCountdown
			next.Countdown = next.Rules.CountdownSec
			events := []Event{
				{Type: EvtStartTimer, Payload: StartTimerPayload{Countdown: next.Countdown}},
				stateEvent(next),
			}
			return events, next, nil
		}
		return []Event{stateEvent(next)}, next, nil

	case CmdSubmitGuess:
		i := playerIndex(next, cmd.ParticipantID)
		if i < 0 {
			return nil, s, ErrNotAPlayer
		}
		if s.Phase != PhaseGuessing {
			return nil, s, ErrWrongPhase
		}

		v := cmd.Value
		next.Players[i].Guess = &v

		if next.Players[0].Guess != nil && next.Players[1].Guess != nil {
			guess1 := *next.Players[0].Guess
			guess2 := *next.Players[1].Guess
			oddsWon := guess1 == guess2
			message := msgOddsLost
			if oddsWon {
				message = msgOddsWon
			}
			next.Phase = PhaseResult
			next.Result = &Result{Guess1: guess1, Guess2: guess2, OddsWon: oddsWon, Message: message}
			events := []Event{
				{Type: EvtGameResult, Payload: *next.Result},
				stateEvent(next),
			}
			return events, next, nil
		}
		return []Event{stateEvent(next)}, next, nil

	case CmdTimerFired:
		if cmd.RoundID != s.RoundID {
			// Stale timer from a cancelled or completed round.
			return nil, s, nil
		}
		switch s.Phase {
		case PhaseCountdown:
			next.Phase = PhaseGuessing
			next.Countdown = 0
			events := []Event{
				{Type: EvtTimerEnded, Payload: PromptPayload{Message: msgTimeToGuess}},
				stateEvent(next),
			}
			return events, next, nil
		case PhaseResult:
			next = resetRound(next)
			events := []Event{
				{Type: EvtWaitingForOdds, Payload: PromptPayload{Message: msgWaitingForOddsNext}},
				stateEvent(next),
			}
			return events, next, nil
		default:
			return nil, s, nil
		}

	default:
		return nil, s, ErrUnsupportedCommand
	}
}
