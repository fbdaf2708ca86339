package game

const (
	DefaultCountdownSec = 5
	DefaultResultSec    = 5
)

func NewState(rules Rules) State {
	if rules.CountdownSec <= 0 {
		rules.CountdownSec = DefaultCountdownSec
	}
	if rules.ResultSec <= 0 {
		rules.ResultSec = DefaultResultSec
	}
	return State{
		Phase:      PhaseJoin,
		Players:    []Player{},
		Spectators: map[string]Spectator{},
		Rules:      rules,
	}
}

// PlayerView deliberately hides the submitted values; only gameResult
// carries raw guesses, so the opponent can't peek mid-round.
type PlayerView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	OddsSet  bool   `json:"oddsSet"`
	GuessSet bool   `json:"guessSet"`
}

type View struct {
	Phase           Phase        `json:"phase"`
	RoundID         int          `json:"roundId"`
	Countdown       int          `json:"countdown"`
	Players         []PlayerView `json:"players"`
	SpectatorsCount int          `json:"spectatorsCount"`
	Result          *Result      `json:"result,omitempty"`
}

func Snapshot(s State) View {
	players := make([]PlayerView, 0, len(s.Players))
	for _, p := range s.Players {
		players = append(players, PlayerView{
			ID:       p.ID,
			Name:     p.Name,
			OddsSet:  p.Odds != nil,
			GuessSet: p.Guess != nil,
		})
	}
	v := View{
		Phase:           s.Phase,
		RoundID:         s.RoundID,
		Countdown:       s.Countdown,
		Players:         players,
		SpectatorsCount: len(s.Spectators),
	}
	if s.Result != nil {
		r := *s.Result
		v.Result = &r
	}
	return v
}

// RoleOf reports the role the given participant currently holds, if any.
func RoleOf(s State, id string) (Role, bool) {
	if playerIndex(s, id) >= 0 {
		return RolePlayer, true
	}
	if _, ok := s.Spectators[id]; ok {
		return RoleSpectator, true
	}
	return "", false
}

func Empty(s State) bool {
	return len(s.Players) == 0 && len(s.Spectators) == 0
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func clone(s State) State {
	next := s
	next.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		next.Players[i] = p
		if p.Odds != nil {
			v := *p.Odds
			next.Players[i].Odds = &v
		}
		if p.Guess != nil {
			v := *p.Guess
			next.Players[i].Guess = &v
		}
	}
	next.Spectators = make(map[string]Spectator, len(s.Spectators))
	for id, sp := range s.Spectators {
		next.Spectators[id] = sp
	}
	if s.Result != nil {
		r := *s.Result
		next.Result = &r
	}
	return next
}

func hasParticipant(s State, id string) bool {
	if playerIndex(s, id) >= 0 {
		return true
	}
	_, ok := s.Spectators[id]
	return ok
}

func playerIndex(s State, id string) int {
	for i, p := range s.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func removePlayer(players []Player, id string) []Player {
	out := players[:0]
	for _, p := range players {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

// resetToJoin cancels the in-progress round entirely (player churn).
func resetToJoin(s State) State {
	s.Phase = PhaseJoin
	s.Countdown = 0
	s.Result = nil
	s.RoundID++
	for i := range s.Players {
		s.Players[i].Odds = nil
		s.Players[i].Guess = nil
	}
	return s
}

// resetRound moves result -> waitingOdds for the next round.
func resetRound(s State) State {
	s.Phase = PhaseWaitingOdds
	s.Countdown = 0
	s.Result = nil
	s.RoundID++
	for i := range s.Players {
		s.Players[i].Odds = nil
		s.Players[i].Guess = nil
	}
	return s
}

func counts(s State) CountsPayload {
	return CountsPayload{PlayersCount: len(s.Players), SpectatorsCount: len(s.Spectators)}
}

func stateEvent(s State) Event {
	return Event{Type: EvtGameState, Payload: Snapshot(s)}
}
