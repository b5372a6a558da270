package game

import (
	"fmt"

	"github.com/timcryt/poker-durak/internal/deck"
)

// Handle is one player's lifeline to a table worker: the shared request
// channel, a private reply channel and the player's own id. Requests from
// a single handle are answered in order; a handle must not be shared
// between goroutines that call it concurrently.
type Handle struct {
	pid uint64
	in  chan<- request
	out <-chan response
}

// PID returns the player this handle speaks for.
func (h *Handle) PID() uint64 {
	return h.pid
}

func (h *Handle) call(req request) response {
	req.pid = h.pid
	h.in <- req
	return <-h.out
}

func (h *Handle) cast(req request) {
	req.pid = h.pid
	h.in <- req
}

// expect panics on a mismatched reply variant. The worker answers each
// handle's requests in order, so a mismatch is a bug, not a runtime
// condition.
func (h *Handle) expect(resp response, kind respKind) {
	if resp.kind != kind {
		panic(fmt.Sprintf("game: handle %d got reply %d, want %d", h.pid, resp.kind, kind))
	}
}

// MakeStep submits a move and returns nil or the StepError refusing it.
func (h *Handle) MakeStep(step Step) error {
	resp := h.call(request{kind: reqMakeStep, step: step})
	h.expect(resp, respStepResult)
	return resp.stepErr
}

// PlayersDecks returns the other players' hand sizes, the next player to
// move first.
func (h *Handle) PlayersDecks() []int {
	resp := h.call(request{kind: reqPlayersDecks})
	h.expect(resp, respPlayersDecks)
	return resp.counts
}

// KickMe removes this player from the rotation without waiting for the
// worker to act on it.
func (h *Handle) KickMe() {
	h.cast(request{kind: reqKick})
}

// SteppingPlayer returns the pid whose turn it is.
func (h *Handle) SteppingPlayer() uint64 {
	resp := h.call(request{kind: reqSteppingPlayer})
	h.expect(resp, respSteppingPlayer)
	return resp.pid
}

// MyCards returns this player's hand.
func (h *Handle) MyCards() []deck.Card {
	return h.PlayerCards(h.pid)
}

// PlayerCards returns pid's hand. Any player may look at any hand; the
// wire protocol only ever exposes counts for the others.
func (h *Handle) PlayerCards(pid uint64) []deck.Card {
	resp := h.call(request{kind: reqPlayerCards, target: pid})
	h.expect(resp, respCards)
	return resp.cards
}

// CardsCount returns the size of pid's hand.
func (h *Handle) CardsCount(pid uint64) int {
	return len(h.PlayerCards(pid))
}

// DeckSize returns the number of cards left to draw.
func (h *Handle) DeckSize() int {
	resp := h.call(request{kind: reqDeckSize})
	h.expect(resp, respDeckSize)
	return resp.n
}

// IsMeKicked reports whether this player has left the rotation.
func (h *Handle) IsMeKicked() bool {
	resp := h.call(request{kind: reqIsKicked})
	h.expect(resp, respKicked)
	return resp.ok
}

// Winner returns the winning pid once the game has one.
func (h *Handle) Winner() (uint64, bool) {
	resp := h.call(request{kind: reqWinner})
	h.expect(resp, respWinner)
	return resp.pid, resp.ok
}

// State returns the current board phase.
func (h *Handle) State() State {
	resp := h.call(request{kind: reqState})
	h.expect(resp, respState)
	return resp.state
}

// SendMessage queues a chat line for everyone else at the table.
func (h *Handle) SendMessage(text string) {
	h.cast(request{kind: reqSendMessage, text: text})
}

// Messages drains this player's chat queue in arrival order.
func (h *Handle) Messages() []string {
	resp := h.call(request{kind: reqGetMessages})
	h.expect(resp, respMessages)
	return resp.messages
}

// Exit leaves the table for good. True means this was the last player
// and the worker has shut down.
func (h *Handle) Exit() bool {
	resp := h.call(request{kind: reqExit})
	h.expect(resp, respExited)
	return resp.ok
}
