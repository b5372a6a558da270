package game

import (
	rand "math/rand/v2"

	"github.com/rs/zerolog"

	"github.com/timcryt/poker-durak/internal/deck"
)

const (
	// requestBacklog bounds the shared inbox. Sessions block briefly if
	// the worker falls behind.
	requestBacklog = 64
	// replyBacklog bounds each player's reply channel. One synchronous
	// round-trip at a time means one reply in flight, the rest is slack.
	replyBacklog = 8
)

type reqKind uint8

const (
	reqMakeStep reqKind = iota
	reqPlayersDecks
	reqKick
	reqSteppingPlayer
	reqPlayerCards
	reqDeckSize
	reqIsKicked
	reqWinner
	reqState
	reqSendMessage
	reqGetMessages
	reqExit
)

// request is one envelope on the table's inbox. pid identifies the
// sending handle; target is only set for reqPlayerCards.
type request struct {
	pid    uint64
	kind   reqKind
	step   Step
	target uint64
	text   string
}

type respKind uint8

const (
	respStepResult respKind = iota
	respPlayersDecks
	respSteppingPlayer
	respCards
	respDeckSize
	respKicked
	respWinner
	respState
	respMessages
	respExited
)

type response struct {
	kind     respKind
	stepErr  error
	counts   []int
	pid      uint64
	ok       bool
	cards    []deck.Card
	n        int
	state    State
	messages []string
}

// worker owns one Game and the per-player chat queues. It runs until the
// last player exits.
type worker struct {
	game    *Game
	in      chan request
	replies map[uint64]chan response
	inbox   map[uint64][]string
	alive   int
	logger  zerolog.Logger
}

// Start deals a fresh table for pids and launches its worker goroutine.
// All further access goes through the returned per-player handles.
func Start(logger zerolog.Logger, rng *rand.Rand, pids []uint64) (map[uint64]*Handle, error) {
	g, err := New(rng, pids)
	if err != nil {
		return nil, err
	}
	in := make(chan request, requestBacklog)
	handles := make(map[uint64]*Handle, len(pids))
	replies := make(map[uint64]chan response, len(pids))
	for _, pid := range pids {
		out := make(chan response, replyBacklog)
		replies[pid] = out
		handles[pid] = &Handle{pid: pid, in: in, out: out}
	}
	w := &worker{
		game:    g,
		in:      in,
		replies: replies,
		inbox:   make(map[uint64][]string, len(pids)),
		alive:   len(pids),
		logger:  logger.With().Str("component", "table").Logger(),
	}
	go w.run()
	return handles, nil
}

func (w *worker) run() {
	w.logger.Info().Int("players", len(w.replies)).Msg("table started")
	for req := range w.in {
		if w.serve(req) {
			break
		}
	}
	w.logger.Info().Msg("table finished")
}

// serve handles one envelope. True means the last player has exited and
// the worker is done.
func (w *worker) serve(req request) bool {
	switch req.kind {
	case reqMakeStep:
		err := w.game.MakeStep(req.pid, req.step)
		if err != nil {
			w.logger.Debug().Uint64("pid", req.pid).Str("reason", err.Error()).Msg("step refused")
		}
		w.reply(req.pid, response{kind: respStepResult, stepErr: err})
	case reqPlayersDecks:
		w.reply(req.pid, response{kind: respPlayersDecks, counts: w.game.PlayersDecks()})
	case reqKick:
		w.game.Kick(req.pid)
	case reqSteppingPlayer:
		w.reply(req.pid, response{kind: respSteppingPlayer, pid: w.game.SteppingPlayer()})
	case reqPlayerCards:
		w.reply(req.pid, response{kind: respCards, cards: w.game.PlayerCards(req.target)})
	case reqDeckSize:
		w.reply(req.pid, response{kind: respDeckSize, n: w.game.DeckSize()})
	case reqIsKicked:
		w.reply(req.pid, response{kind: respKicked, ok: w.game.IsKicked(req.pid)})
	case reqWinner:
		pid, ok := w.game.Winner()
		w.reply(req.pid, response{kind: respWinner, pid: pid, ok: ok})
	case reqState:
		w.reply(req.pid, response{kind: respState, state: w.game.State()})
	case reqSendMessage:
		for pid := range w.replies {
			if pid != req.pid {
				w.inbox[pid] = append(w.inbox[pid], req.text)
			}
		}
	case reqGetMessages:
		msgs := w.inbox[req.pid]
		w.inbox[req.pid] = nil
		w.reply(req.pid, response{kind: respMessages, messages: msgs})
	case reqExit:
		w.game.Kick(req.pid)
		w.alive--
		last := w.alive == 0
		w.reply(req.pid, response{kind: respExited, ok: last})
		return last
	}
	return false
}

// reply never blocks. A session that stopped draining its channel loses
// the response rather than wedging the table.
func (w *worker) reply(pid uint64, resp response) {
	out, ok := w.replies[pid]
	if !ok {
		return
	}
	select {
	case out <- resp:
	default:
		w.logger.Warn().Uint64("pid", pid).Msg("reply dropped, receiver not draining")
	}
}
