package room

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/pch-odds/odds-backend/internal/broadcast"
	"github.com/pch-odds/odds-backend/internal/game"
)

type Msg interface{ isRoomMsg() }

type Join struct {
	ParticipantID string
	DisplayName   string
	Reply         chan JoinResult
}

func (Join) isRoomMsg() {}

type JoinResult struct {
	Role game.Role
	Err  error
}

type SetOdds struct {
	ParticipantID string
	Value         int
	Reply         chan error
}

func (SetOdds) isRoomMsg() {}

type SubmitGuess struct {
	ParticipantID string
	Value         int
	Reply         chan error
}

func (SubmitGuess) isRoomMsg() {}

// Leave is idempotent; Reply may be nil when the caller doesn't care.
type Leave struct {
	ParticipantID string
	Reply         chan error
}

func (Leave) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

// ShutdownIfEmpty is the manager's teardown request after an empty signal.
// The emptiness guard is re-checked on the room loop at the moment it is
// acted on: a participant admitted since the signal makes the room decline,
// and Reply reports whether it actually shut down.
type ShutdownIfEmpty struct {
	Reply chan bool
}

func (ShutdownIfEmpty) isRoomMsg() {}

// timerFired re-enters the loop when a countdown or reset timer elapses.
// roundID is the round it was armed in; a mismatch makes it a stale no-op.
type timerFired struct{ roundID int }

func (timerFired) isRoomMsg() {}

type View struct {
	Version int
	State   game.View
}

type Config struct {
	Clock       clockwork.Clock
	Broadcaster broadcast.Broadcaster
	Logger      *zap.Logger
	Rules       game.Rules
	// OnEmpty is called from the room loop when the last participant leaves.
	OnEmpty func(code string)
}

// Room owns one session. All reads and writes of the session state happen on
// the loop goroutine; the mailbox is the serialization boundary.
type Room struct {
	code    string
	inbox   chan Msg
	outbox  chan []game.Event
	state   game.State
	version int
	clock   clockwork.Clock
	bc      broadcast.Broadcaster
	log     *zap.Logger
	onEmpty func(code string)
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(parent context.Context, code string, cfg Config) *Room {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)

	r := &Room{
		code:    code,
		inbox:   make(chan Msg, 64),
		outbox:  make(chan []game.Event, 64),
		state:   game.NewState(cfg.Rules),
		clock:   cfg.Clock,
		bc:      cfg.Broadcaster,
		log:     cfg.Logger.With(zap.String("room", code)),
		onEmpty: cfg.OnEmpty,
		ctx:     ctx,
		cancel:  cancel,
	}
	go r.loop()
	go r.publishLoop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) Code() string { return r.code }

// Send delivers a message unless the room has already shut down. Callers that
// wait on a reply channel should also select on Done so a racing teardown
// can't strand them.
func (r *Room) Send(m Msg) bool {
	select {
	case r.inbox <- m:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// Done is closed once the room has shut down.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				cmd := game.Command{Type: game.CmdJoin, ParticipantID: msg.ParticipantID, DisplayName: msg.DisplayName}
				events, next, err := game.Apply(r.state, cmd)
				if err != nil {
					msg.Reply <- JoinResult{Err: err}
					break
				}
				r.commit(next, events)
				role, _ := game.RoleOf(next, msg.ParticipantID)
				r.log.Debug("participant joined",
					zap.String("participant", msg.ParticipantID),
					zap.String("role", string(role)))
				msg.Reply <- JoinResult{Role: role}

			case SetOdds:
				r.apply(game.Command{Type: game.CmdSetOdds, ParticipantID: msg.ParticipantID, Value: msg.Value}, msg.Reply)

			case SubmitGuess:
				r.apply(game.Command{Type: game.CmdSubmitGuess, ParticipantID: msg.ParticipantID, Value: msg.Value}, msg.Reply)

			case Leave:
				r.apply(game.Command{Type: game.CmdLeave, ParticipantID: msg.ParticipantID}, msg.Reply)
				if game.Empty(r.state) && r.onEmpty != nil {
					r.onEmpty(r.code)
				}

			case GetState:
				msg.Reply <- View{Version: r.version, State: game.Snapshot(r.state)}

			case timerFired:
				events, next, err := game.Apply(r.state, game.Command{Type: game.CmdTimerFired, RoundID: msg.roundID})
				if err != nil {
					// Timer commands have no guards that can fail.
					r.log.Error("timer apply failed", zap.Error(err))
					break
				}
				if len(events) == 0 {
					// Stale fire from an invalidated round.
					break
				}
				r.commit(next, events)

			case ShutdownIfEmpty:
				if !game.Empty(r.state) {
					msg.Reply <- false
					break
				}
				msg.Reply <- true
				r.cancel()
				return

			case Shutdown:
				r.cancel()
				return
			}
		}
	}
}

func (r *Room) apply(cmd game.Command, reply chan error) {
	events, next, err := game.Apply(r.state, cmd)
	if err != nil {
		r.log.Debug("action rejected",
			zap.String("action", string(cmd.Type)),
			zap.String("participant", cmd.ParticipantID),
			zap.Error(err))
		if reply != nil {
			reply <- err
		}
		return
	}
	r.commit(next, events)
	if reply != nil {
		reply <- nil
	}
}

// commit installs the successor state, arms any timers the transition calls
// for, and queues the events for the publisher goroutine. Broadcast I/O never
// runs on the loop.
func (r *Room) commit(next game.State, events []game.Event) {
	r.state = next
	if len(events) == 0 {
		return
	}
	r.version++

	if game.ContainsEvent(events, game.EvtStartTimer) {
		r.armTimer(next.Rules.CountdownSec, next.RoundID)
	}
	if game.ContainsEvent(events, game.EvtGameResult) {
		r.armTimer(next.Rules.ResultSec, next.RoundID)
	}

	// The loop is the sole producer, so blocking here only slows intake; it
	// never reorders or drops a committed batch.
	select {
	case r.outbox <- events:
	case <-r.ctx.Done():
	}
}

// armTimer schedules a one-shot timer without blocking the loop. The firing
// re-enters through the inbox, so it serializes like any external action, and
// the captured roundID guards against firing into a later round.
func (r *Room) armTimer(seconds, roundID int) {
	t := r.clock.NewTimer(time.Duration(seconds) * time.Second)
	go func() {
		select {
		case <-t.Chan():
			select {
			case r.inbox <- timerFired{roundID: roundID}:
			case <-r.ctx.Done():
			}
		case <-r.ctx.Done():
			if !t.Stop() {
				select {
				case <-t.Chan():
				default:
				}
			}
		}
	}()
}

func (r *Room) publishLoop() {
	for {
		select {
		case <-r.ctx.Done():
			// Flush what the loop already committed so the final
			// leave/state batch still reaches relay consumers.
			for {
				select {
				case events := <-r.outbox:
					r.publish(events)
				default:
					return
				}
			}
		case events := <-r.outbox:
			r.publish(events)
		}
	}
}

// publish fans one committed batch out. It runs under a background context:
// room shutdown must not abort delivery of the batch announcing it, and the
// relay clients carry their own I/O timeouts.
func (r *Room) publish(events []game.Event) {
	for _, ev := range events {
		if err := r.bc.Publish(context.Background(), r.code, string(ev.Type), ev.Payload); err != nil {
			r.log.Error("publish failed",
				zap.String("event", string(ev.Type)),
				zap.Error(err))
		}
	}
}
