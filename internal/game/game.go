package game

import (
	"fmt"
	rand "math/rand/v2"
	"sort"

	"github.com/timcryt/poker-durak/internal/comb"
	"github.com/timcryt/poker-durak/internal/deck"
)

// handSize is the initial deal and the refill target after a taken board.
const handSize = 5

// Table size bounds. Nine seats is the most a 52-card deal can feed.
const (
	MinPlayers = 2
	MaxPlayers = deck.NumCards/handSize - 1
)

type seat struct {
	pid  uint64
	hand map[deck.Card]bool
}

// Game is the authoritative state of one table. It is not safe for
// concurrent use; the table worker owns it and serializes access.
type Game struct {
	seats    []seat
	next     []int
	prev     []int
	byPID    map[uint64]int
	stepping int
	deck     *deck.Deck
	state    State
	winner   int
}

// New deals a table for the given players: shuffled seating, five cards
// each, and the opening turn to the seat whose hand, sorted by rank, is
// lexicographically smallest.
func New(rng *rand.Rand, pids []uint64) (*Game, error) {
	if len(pids) < MinPlayers || len(pids) > MaxPlayers {
		return nil, fmt.Errorf("game: table takes %d to %d players, got %d", MinPlayers, MaxPlayers, len(pids))
	}
	order := append([]uint64(nil), pids...)
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	g := &Game{
		seats:  make([]seat, len(order)),
		next:   make([]int, len(order)),
		prev:   make([]int, len(order)),
		byPID:  make(map[uint64]int, len(order)),
		deck:   deck.New(rng),
		winner: -1,
	}
	for i, pid := range order {
		if _, dup := g.byPID[pid]; dup {
			return nil, fmt.Errorf("game: duplicate player %d", pid)
		}
		g.seats[i] = seat{pid: pid, hand: make(map[deck.Card]bool, handSize)}
		g.byPID[pid] = i
		g.next[i] = (i + 1) % len(order)
		g.prev[i] = (i + len(order) - 1) % len(order)
	}
	for i := range g.seats {
		for _, card := range g.deck.PopN(handSize) {
			g.seats[i].hand[card] = true
		}
	}
	g.stepping = g.lowestSeat()
	return g, nil
}

func (g *Game) lowestSeat() int {
	best := 0
	bestKey := handKey(g.seats[0].hand)
	for i := 1; i < len(g.seats); i++ {
		key := handKey(g.seats[i].hand)
		if rankLess(key, bestKey) {
			best, bestKey = i, key
		}
	}
	return best
}

func handKey(hand map[deck.Card]bool) []deck.Rank {
	ranks := make([]deck.Rank, 0, len(hand))
	for card := range hand {
		ranks = append(ranks, card.Rank)
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i] < ranks[j] })
	return ranks
}

func rankLess(a, b []deck.Rank) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// MakeStep applies one move for pid. A nil return means the move stood;
// otherwise the StepError says what was wrong and the state is untouched.
func (g *Game) MakeStep(pid uint64, step Step) error {
	seat, ok := g.byPID[pid]
	if !ok || seat != g.stepping {
		return ErrInvalidPID
	}
	if g.state.Active == nil {
		return g.passiveStep(seat, step)
	}
	return g.activeStep(seat, step)
}

func (g *Game) passiveStep(seat int, step Step) error {
	switch step.Type {
	case GetCard:
		card, ok := g.deck.Pop()
		if !ok {
			return ErrInvalidStepType
		}
		g.seats[seat].hand[card] = true
		g.advance()
		return nil
	case GiveComb:
		cards := cardSet(step.Cards)
		for card := range cards {
			if !g.seats[seat].hand[card] {
				return ErrInvalidCards
			}
		}
		c, ok := comb.New(step.Cards)
		if !ok {
			return ErrInvalidCards
		}
		for card := range cards {
			delete(g.seats[seat].hand, card)
		}
		g.state = State{Active: &Board{Comb: c, Cards: cards}}
		g.finishStep(seat)
		return nil
	default:
		return ErrInvalidStepType
	}
}

func (g *Game) activeStep(seat int, step Step) error {
	board := g.state.Active
	switch step.Type {
	case TransComb:
		cards := cardSet(step.Cards)
		own, fromBoard := 0, 0
		for card := range cards {
			if g.seats[seat].hand[card] {
				own++
			}
			if board.Cards[card] {
				fromBoard++
			}
		}
		if own == 0 || own+fromBoard < len(cards) {
			return ErrInvalidCards
		}
		c, ok := comb.New(step.Cards)
		if !ok {
			return ErrInvalidComb
		}
		if !c.Rank.Beats(board.Comb.Rank) {
			return ErrWeakComb
		}
		for card := range cards {
			delete(g.seats[seat].hand, card)
			board.Cards[card] = true
		}
		board.Comb = c
		g.finishStep(seat)
		return nil
	case GetComb:
		for _, card := range board.Comb.Cards {
			g.seats[seat].hand[card] = true
		}
		g.topUpHands(seat)
		g.dealBonus(seat)
		g.state = State{}
		g.advance()
		return nil
	default:
		return ErrInvalidStepType
	}
}

// finishStep closes out a card-laying step: an empty hand with an empty
// deck wins the game, anything else passes the turn on.
func (g *Game) finishStep(seat int) {
	if g.deck.Size() == 0 && len(g.seats[seat].hand) == 0 {
		g.winner = seat
		g.kick(seat)
		return
	}
	g.advance()
}

// topUpHands refills short hands to handSize while the deck lasts,
// dealing from the seat after the turn holder around to the turn holder
// last.
func (g *Game) topUpHands(seat int) {
	cur := seat
	for {
		cur = g.next[cur]
		if need := handSize - len(g.seats[cur].hand); need > 0 {
			for _, card := range g.deck.PopN(need) {
				g.seats[cur].hand[card] = true
			}
		}
		if cur == seat {
			return
		}
	}
}

// dealBonus hands one deck card to every other live seat after a board
// was taken.
func (g *Game) dealBonus(seat int) {
	for cur := g.next[seat]; cur != seat; cur = g.next[cur] {
		card, ok := g.deck.Pop()
		if !ok {
			return
		}
		g.seats[cur].hand[card] = true
	}
}

func (g *Game) advance() {
	g.stepping = g.next[g.stepping]
}

// Kick removes pid from the rotation. Kicking the next-to-last live seat
// promotes the survivor to winner unless the game already has one.
// Kicking an unknown or already kicked player is a no-op.
func (g *Game) Kick(pid uint64) {
	if seat, ok := g.byPID[pid]; ok {
		g.kick(seat)
	}
}

func (g *Game) kick(seat int) {
	if g.next[seat] == seat {
		return
	}
	if g.next[seat] == g.prev[seat] && g.winner < 0 {
		g.winner = g.next[seat]
	}
	// Move the turn off the seat before unlinking it, so the rotation
	// never points at a kicked player.
	if g.stepping == seat {
		g.stepping = g.next[seat]
	}
	g.next[g.prev[seat]] = g.next[seat]
	g.prev[g.next[seat]] = g.prev[seat]
	g.next[seat] = seat
	g.prev[seat] = seat
}

// SteppingPlayer returns the pid whose turn it is.
func (g *Game) SteppingPlayer() uint64 {
	return g.seats[g.stepping].pid
}

// PlayerCards returns a copy of pid's hand, sorted by descending rank.
func (g *Game) PlayerCards(pid uint64) []deck.Card {
	seat, ok := g.byPID[pid]
	if !ok {
		return nil
	}
	return sortedCards(g.seats[seat].hand)
}

// PlayersDecks reports every other seat's hand size, walking the seat
// array from the seat after the turn holder. Kicked seats are included.
func (g *Game) PlayersDecks() []int {
	sizes := make([]int, 0, len(g.seats)-1)
	for i := 1; i < len(g.seats); i++ {
		sizes = append(sizes, len(g.seats[(g.stepping+i)%len(g.seats)].hand))
	}
	return sizes
}

// DeckSize returns the number of cards left to draw.
func (g *Game) DeckSize() int {
	return g.deck.Size()
}

// IsKicked reports whether pid has been removed from the rotation.
func (g *Game) IsKicked(pid uint64) bool {
	seat, ok := g.byPID[pid]
	return ok && g.next[seat] == seat
}

// Winner returns the winning pid once the game has one.
func (g *Game) Winner() (uint64, bool) {
	if g.winner < 0 {
		return 0, false
	}
	return g.seats[g.winner].pid, true
}

// State returns a deep copy of the board phase.
func (g *Game) State() State {
	return g.state.clone()
}
