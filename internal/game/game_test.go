package game

import (
	"errors"
	"strings"
	"testing"

	"github.com/timcryt/poker-durak/internal/comb"
	"github.com/timcryt/poker-durak/internal/deck"
	"github.com/timcryt/poker-durak/internal/randutil"
)

func parseCards(t *testing.T, s string) []deck.Card {
	t.Helper()
	if s == "" {
		return nil
	}
	fields := strings.Fields(s)
	cards := make([]deck.Card, len(fields))
	for i, f := range fields {
		card, err := deck.ParseCard(f)
		if err != nil {
			t.Fatalf("ParseCard(%q) error = %v", f, err)
		}
		cards[i] = card
	}
	return cards
}

func card(t *testing.T, s string) deck.Card {
	t.Helper()
	c, err := deck.ParseCard(s)
	if err != nil {
		t.Fatalf("ParseCard(%q) error = %v", s, err)
	}
	return c
}

// riggedGame builds a table directly: pids 100, 101, ... in seat order,
// seat 0 to move, an empty deck and a clear board.
func riggedGame(t *testing.T, hands ...string) *Game {
	t.Helper()
	g := &Game{
		seats:  make([]seat, len(hands)),
		next:   make([]int, len(hands)),
		prev:   make([]int, len(hands)),
		byPID:  make(map[uint64]int, len(hands)),
		deck:   deck.Stacked(),
		winner: -1,
	}
	for i, hand := range hands {
		pid := uint64(100 + i)
		g.seats[i] = seat{pid: pid, hand: cardSet(parseCards(t, hand))}
		g.byPID[pid] = i
		g.next[i] = (i + 1) % len(hands)
		g.prev[i] = (i + len(hands) - 1) % len(hands)
	}
	return g
}

func mustStep(t *testing.T, g *Game, pid uint64, step Step) {
	t.Helper()
	if err := g.MakeStep(pid, step); err != nil {
		t.Fatalf("MakeStep(%d, %v) error = %v", pid, step.Type, err)
	}
}

func wantStepError(t *testing.T, g *Game, pid uint64, step Step, want StepError) {
	t.Helper()
	err := g.MakeStep(pid, step)
	if !errors.Is(err, want) {
		t.Fatalf("MakeStep(%d, %v) error = %v, want %v", pid, step.Type, err, want)
	}
}

func handOf(g *Game, pid uint64) map[deck.Card]bool {
	return g.seats[g.byPID[pid]].hand
}

func TestNewPlayerBounds(t *testing.T) {
	rng := randutil.New(1)
	for _, n := range []int{0, 1, 10, 20} {
		pids := make([]uint64, n)
		for i := range pids {
			pids[i] = uint64(i + 1)
		}
		if _, err := New(rng, pids); err == nil {
			t.Errorf("New with %d players: expected error", n)
		}
	}
	for n := MinPlayers; n <= MaxPlayers; n++ {
		pids := make([]uint64, n)
		for i := range pids {
			pids[i] = uint64(i + 1)
		}
		if _, err := New(rng, pids); err != nil {
			t.Errorf("New with %d players: unexpected error %v", n, err)
		}
	}
}

func TestNewRejectsDuplicatePlayers(t *testing.T) {
	if _, err := New(randutil.New(1), []uint64{7, 8, 7}); err == nil {
		t.Fatal("expected error for duplicate pid")
	}
}

func TestNewDealsFiveEach(t *testing.T) {
	for _, n := range []int{2, 5, 9} {
		pids := make([]uint64, n)
		for i := range pids {
			pids[i] = uint64(i + 1)
		}
		g, err := New(randutil.New(int64(n)), pids)
		if err != nil {
			t.Fatalf("New(%d players) error = %v", n, err)
		}
		seen := make(map[deck.Card]bool)
		for _, pid := range pids {
			cards := g.PlayerCards(pid)
			if len(cards) != handSize {
				t.Errorf("player %d dealt %d cards, want %d", pid, len(cards), handSize)
			}
			for _, c := range cards {
				if seen[c] {
					t.Errorf("card %v dealt twice", c)
				}
				seen[c] = true
			}
		}
		if got, want := g.DeckSize(), deck.NumCards-n*handSize; got != want {
			t.Errorf("deck size = %d, want %d", got, want)
		}
		if g.State().IsActive() {
			t.Error("new game should start passive")
		}
		if _, ok := g.Winner(); ok {
			t.Error("new game should have no winner")
		}
	}
}

func TestNewOpeningSeatHasLowestHand(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		g, err := New(randutil.New(seed), []uint64{1, 2, 3, 4})
		if err != nil {
			t.Fatalf("New error = %v", err)
		}
		opener := g.byPID[g.SteppingPlayer()]
		key := handKey(g.seats[opener].hand)
		for i := range g.seats {
			if other := handKey(g.seats[i].hand); rankLess(other, key) {
				t.Fatalf("seed %d: seat %d hand %v is lower than opener's %v", seed, i, other, key)
			}
		}
	}
}

func TestMakeStepRejectsWrongPlayer(t *testing.T) {
	g := riggedGame(t, "2♠ 3♠ 4♠ 5♠ 6♠", "2♥ 3♥ 4♥ 5♥ 6♥")
	wantStepError(t, g, 101, Step{Type: GetCard}, ErrInvalidPID)
	wantStepError(t, g, 999, Step{Type: GetCard}, ErrInvalidPID)
}

func TestGetCard(t *testing.T) {
	g := riggedGame(t, "2♠ 3♠ 4♠ 5♠ 6♠", "2♥ 3♥ 4♥ 5♥ 6♥")
	g.deck = deck.Stacked(parseCards(t, "A♦ K♦ Q♦")...)

	mustStep(t, g, 100, Step{Type: GetCard})
	if !handOf(g, 100)[card(t, "A♦")] {
		t.Error("drawn card not in hand")
	}
	if got := g.SteppingPlayer(); got != 101 {
		t.Errorf("turn did not advance, stepping = %d", got)
	}
	if got := g.DeckSize(); got != 2 {
		t.Errorf("deck size = %d, want 2", got)
	}

	// Drawing is allowed even with more than a full hand.
	mustStep(t, g, 101, Step{Type: GetCard})
	mustStep(t, g, 100, Step{Type: GetCard})
	if len(handOf(g, 100)) != 7 {
		t.Errorf("hand size = %d, want 7", len(handOf(g, 100)))
	}
}

func TestGetCardEmptyDeck(t *testing.T) {
	g := riggedGame(t, "2♠ 3♠ 4♠ 5♠ 6♠", "2♥ 3♥ 4♥ 5♥ 6♥")
	wantStepError(t, g, 100, Step{Type: GetCard}, ErrInvalidStepType)
	if got := g.SteppingPlayer(); got != 100 {
		t.Errorf("failed step moved the turn to %d", got)
	}
}

func TestPassivePhaseRejectsActiveSteps(t *testing.T) {
	g := riggedGame(t, "2♠ 3♠ 4♠ 5♠ 6♠", "2♥ 3♥ 4♥ 5♥ 6♥")
	wantStepError(t, g, 100, Step{Type: GetComb}, ErrInvalidStepType)
	wantStepError(t, g, 100, Step{Type: TransComb, Cards: parseCards(t, "2♠")}, ErrInvalidStepType)
}

func TestGiveComb(t *testing.T) {
	g := riggedGame(t, "K♠ K♥ 4♠ 5♠ 6♠", "2♥ 3♥ 4♥ 5♥ 6♥")
	g.deck = deck.Stacked(card(t, "A♦"))

	mustStep(t, g, 100, Step{Type: GiveComb, Cards: parseCards(t, "K♠ K♥")})
	state := g.State()
	if !state.IsActive() {
		t.Fatal("board not opened")
	}
	if len(state.Active.Cards) != 2 {
		t.Errorf("board has %d cards, want 2", len(state.Active.Cards))
	}
	if len(handOf(g, 100)) != 3 {
		t.Errorf("hand size = %d, want 3", len(handOf(g, 100)))
	}
	if got := g.SteppingPlayer(); got != 101 {
		t.Errorf("turn did not advance, stepping = %d", got)
	}
}

func TestGiveCombRejectsCardsNotHeld(t *testing.T) {
	g := riggedGame(t, "K♠ K♥ 4♠ 5♠ 6♠", "2♥ 3♥ 4♥ 5♥ 6♥")
	wantStepError(t, g, 100, Step{Type: GiveComb, Cards: parseCards(t, "A♠")}, ErrInvalidCards)
	wantStepError(t, g, 100, Step{Type: GiveComb, Cards: parseCards(t, "K♠ A♥")}, ErrInvalidCards)
}

func TestGiveCombRejectsUnrecognizableSet(t *testing.T) {
	g := riggedGame(t, "K♠ K♥ 4♠ 5♠ 6♠", "2♥ 3♥ 4♥ 5♥ 6♥")
	wantStepError(t, g, 100, Step{Type: GiveComb, Cards: parseCards(t, "K♠ K♥ 4♠")}, ErrInvalidCards)
}

func TestActivePhaseRejectsPassiveSteps(t *testing.T) {
	g := riggedGame(t, "K♠ K♥ 4♠ 5♠ 6♠", "2♥ 3♥ 4♥ 5♥ 6♥")
	g.deck = deck.Stacked(card(t, "A♦"))
	mustStep(t, g, 100, Step{Type: GiveComb, Cards: parseCards(t, "K♠")})

	wantStepError(t, g, 101, Step{Type: GetCard}, ErrInvalidStepType)
	wantStepError(t, g, 101, Step{Type: GiveComb, Cards: parseCards(t, "2♥")}, ErrInvalidStepType)
}

func TestTransComb(t *testing.T) {
	g := riggedGame(t, "K♠ K♣ 4♠ 5♠ 6♠", "K♦ 3♥ 4♥ 5♥ 6♥")
	g.deck = deck.Stacked(card(t, "A♦"))
	mustStep(t, g, 100, Step{Type: GiveComb, Cards: parseCards(t, "K♠ K♣")})

	// Beat the pair of kings with a set, reusing both board kings.
	mustStep(t, g, 101, Step{Type: TransComb, Cards: parseCards(t, "K♦ K♠ K♣")})

	state := g.State()
	if !state.IsActive() {
		t.Fatal("board should stay active after a transfer")
	}
	if len(state.Active.Cards) != 3 {
		t.Errorf("board has %d cards, want 3", len(state.Active.Cards))
	}
	if len(state.Active.Comb.Cards) != 3 {
		t.Errorf("combination has %d cards, want 3", len(state.Active.Comb.Cards))
	}
	if handOf(g, 101)[card(t, "K♦")] {
		t.Error("transferred card still in hand")
	}
	if got := g.SteppingPlayer(); got != 100 {
		t.Errorf("turn did not advance, stepping = %d", got)
	}
}

func TestTransCombRejections(t *testing.T) {
	open := func(t *testing.T) *Game {
		g := riggedGame(t, "K♠ K♣ 4♠ 5♠ 6♠", "Q♦ Q♥ J♠ 3♥ 2♥")
		g.deck = deck.Stacked(card(t, "A♦"))
		mustStep(t, g, 100, Step{Type: GiveComb, Cards: parseCards(t, "K♠ K♣")})
		return g
	}

	t.Run("weaker combination", func(t *testing.T) {
		wantStepError(t, open(t), 101, Step{Type: TransComb, Cards: parseCards(t, "Q♦ Q♥")}, ErrWeakComb)
	})
	t.Run("cards not held", func(t *testing.T) {
		wantStepError(t, open(t), 101, Step{Type: TransComb, Cards: parseCards(t, "A♠ A♥")}, ErrInvalidCards)
	})
	t.Run("no own cards", func(t *testing.T) {
		// Board cards alone do not make a transfer.
		wantStepError(t, open(t), 101, Step{Type: TransComb, Cards: parseCards(t, "K♠ K♣")}, ErrInvalidCards)
	})
	t.Run("unrecognizable set", func(t *testing.T) {
		wantStepError(t, open(t), 101, Step{Type: TransComb, Cards: parseCards(t, "Q♦ J♠ K♠")}, ErrInvalidComb)
	})
	t.Run("state untouched after refusal", func(t *testing.T) {
		g := open(t)
		wantStepError(t, g, 101, Step{Type: TransComb, Cards: parseCards(t, "Q♦ Q♥")}, ErrWeakComb)
		if len(handOf(g, 101)) != 5 {
			t.Errorf("hand size = %d, want 5", len(handOf(g, 101)))
		}
		if got := g.SteppingPlayer(); got != 101 {
			t.Errorf("turn moved to %d after a refused step", got)
		}
	})
}

func TestGetCombTakesOnlyCombination(t *testing.T) {
	g := riggedGame(t, "K♠ K♣ 4♠ 5♠ 6♠", "A♦ A♥ 3♥ 5♥ 6♥")
	mustStep(t, g, 100, Step{Type: GiveComb, Cards: parseCards(t, "K♠ K♣")})
	mustStep(t, g, 101, Step{Type: TransComb, Cards: parseCards(t, "A♦ A♥")})

	// The board holds both kings and both aces, but the combination is
	// only the aces. Taking it buries the kings for good.
	mustStep(t, g, 100, Step{Type: GetComb})

	hand := handOf(g, 100)
	if !hand[card(t, "A♦")] || !hand[card(t, "A♥")] {
		t.Error("combination cards not taken into hand")
	}
	if hand[card(t, "K♠")] || hand[card(t, "K♣")] {
		t.Error("buried board card leaked back into a hand")
	}
	if g.State().IsActive() {
		t.Error("board not cleared after GetComb")
	}
	if got := g.SteppingPlayer(); got != 101 {
		t.Errorf("turn did not advance, stepping = %d", got)
	}
}

func mustBoard(t *testing.T, combCards, boardCards string) *Board {
	t.Helper()
	c, ok := comb.New(parseCards(t, combCards))
	if !ok {
		t.Fatalf("combination %q does not classify", combCards)
	}
	return &Board{Comb: c, Cards: cardSet(parseCards(t, boardCards))}
}

func TestGetCombRefillOrder(t *testing.T) {
	g := riggedGame(t, "2♠ 3♠ 4♠ 5♠ 7♠", "K♠ 2♦ 3♦", "2♥ 3♥ 4♥")
	g.stepping = 1
	g.state = State{Active: mustBoard(t, "A♣", "A♣")}
	// Pop order: refill seat 2 (needs two), skip the full seat 0, refill
	// seat 1 last (needs one after taking A♣), then bonus cards for
	// seats 2 and 0.
	g.deck = deck.Stacked(parseCards(t, "6♦ 7♦ 8♦ 9♦ 10♦ J♦")...)

	mustStep(t, g, 101, Step{Type: GetComb})

	if h := handOf(g, 102); !h[card(t, "6♦")] || !h[card(t, "7♦")] || !h[card(t, "9♦")] {
		t.Errorf("seat 2 refill/bonus wrong, hand = %v", g.PlayerCards(102))
	}
	if h := handOf(g, 101); !h[card(t, "A♣")] || !h[card(t, "8♦")] {
		t.Errorf("seat 1 take/refill wrong, hand = %v", g.PlayerCards(101))
	}
	if h := handOf(g, 100); !h[card(t, "10♦")] {
		t.Errorf("seat 0 bonus wrong, hand = %v", g.PlayerCards(100))
	}
	if got := g.DeckSize(); got != 1 {
		t.Errorf("deck size = %d, want 1", got)
	}
	if got := g.SteppingPlayer(); got != 102 {
		t.Errorf("turn did not advance, stepping = %d", got)
	}
}

func TestWinByEmptyingHand(t *testing.T) {
	g := riggedGame(t, "K♠", "2♥ 3♥ 4♥ 5♥ 6♥")
	mustStep(t, g, 100, Step{Type: GiveComb, Cards: parseCards(t, "K♠")})

	winner, ok := g.Winner()
	if !ok || winner != 100 {
		t.Fatalf("Winner() = %d, %v; want 100, true", winner, ok)
	}
	if !g.IsKicked(100) {
		t.Error("winner should leave the rotation")
	}
	if got := g.SteppingPlayer(); got != 101 {
		t.Errorf("turn not passed to survivor, stepping = %d", got)
	}
}

func TestWinnerNotOverwrittenBySurvivorPromotion(t *testing.T) {
	// The winning step kicks the winner, which leaves the other seat the
	// lone survivor. The win must stand, both right away and after the
	// loser is kicked too.
	g := riggedGame(t, "K♠", "2♥ 3♥ 4♥ 5♥ 6♥")
	mustStep(t, g, 100, Step{Type: GiveComb, Cards: parseCards(t, "K♠")})
	if winner, _ := g.Winner(); winner != 100 {
		t.Fatalf("winner = %d, want 100", winner)
	}
	g.Kick(101)
	if winner, _ := g.Winner(); winner != 100 {
		t.Errorf("winner changed to %d after kicking the loser", winner)
	}
}

func TestWinWhileDeckNotEmptyDoesNothing(t *testing.T) {
	g := riggedGame(t, "K♠", "2♥ 3♥ 4♥ 5♥ 6♥")
	g.deck = deck.Stacked(card(t, "A♦"))
	mustStep(t, g, 100, Step{Type: GiveComb, Cards: parseCards(t, "K♠")})
	if _, ok := g.Winner(); ok {
		t.Error("empty hand with cards still in the deck must not win")
	}
	if g.IsKicked(100) {
		t.Error("player kicked without winning")
	}
}

func TestKick(t *testing.T) {
	t.Run("survivor promoted", func(t *testing.T) {
		g := riggedGame(t, "2♠", "2♥", "2♦")
		g.Kick(100)
		if _, ok := g.Winner(); ok {
			t.Fatal("no winner expected with two players left")
		}
		g.Kick(101)
		winner, ok := g.Winner()
		if !ok || winner != 102 {
			t.Fatalf("Winner() = %d, %v; want 102, true", winner, ok)
		}
	})
	t.Run("idempotent", func(t *testing.T) {
		g := riggedGame(t, "2♠", "2♥", "2♦")
		g.Kick(100)
		g.Kick(100)
		if _, ok := g.Winner(); ok {
			t.Fatal("double kick promoted a winner early")
		}
		g.Kick(999) // unknown pid ignored
	})
	t.Run("turn moves off the kicked seat", func(t *testing.T) {
		g := riggedGame(t, "2♠", "2♥", "2♦")
		g.Kick(100)
		if got := g.SteppingPlayer(); got != 101 {
			t.Errorf("stepping = %d, want 101", got)
		}
		// The rotation now skips the kicked seat both ways.
		g.stepping = g.byPID[102]
		g.advance()
		if got := g.SteppingPlayer(); got != 101 {
			t.Errorf("rotation did not skip kicked seat, stepping = %d", got)
		}
	})
}

func TestPlayersDecksWalksSeatArray(t *testing.T) {
	g := riggedGame(t, "2♠ 3♠", "2♥", "2♦ 3♦ 4♦")
	if got := g.PlayersDecks(); len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("PlayersDecks() = %v, want [1 3]", got)
	}
	g.stepping = 2
	if got := g.PlayersDecks(); len(got) != 2 || got[0] != 2 || got[1] != 1 {
		t.Errorf("PlayersDecks() = %v, want [2 1]", got)
	}
}

func TestPlayerCardsUnknownPID(t *testing.T) {
	g := riggedGame(t, "2♠", "2♥")
	if got := g.PlayerCards(999); got != nil {
		t.Errorf("PlayerCards(999) = %v, want nil", got)
	}
}

// TestRandomGamesConserveCards plays whole games with a simple policy and
// checks card conservation and hand/board disjointness after every step.
func TestRandomGamesConserveCards(t *testing.T) {
	for seed := int64(0); seed < 10; seed++ {
		rng := randutil.New(seed)
		n := 2 + int(rng.IntN(8))
		pids := make([]uint64, n)
		for i := range pids {
			pids[i] = uint64(i + 1)
		}
		g, err := New(rng, pids)
		if err != nil {
			t.Fatalf("seed %d: New error = %v", seed, err)
		}

		buried := make(map[deck.Card]bool)
		for steps := 0; ; steps++ {
			if steps > 10000 {
				t.Fatalf("seed %d: game did not finish", seed)
			}
			if _, ok := g.Winner(); ok {
				break
			}
			playPolicyStep(t, g, rng, buried)
			checkConservation(t, g, buried)
		}
	}
}

// playPolicyStep makes one always-legal move. The policy keeps at least
// one card in hand while the deck lasts, lays its whole hand once that
// wins outright, beats lone cards when it can and takes the board
// otherwise.
func playPolicyStep(t *testing.T, g *Game, rng interface{ IntN(int) int }, buried map[deck.Card]bool) {
	t.Helper()
	pid := g.SteppingPlayer()
	hand := g.PlayerCards(pid)
	state := g.State()
	deckLeft := g.DeckSize()

	if !state.IsActive() {
		if deckLeft > 0 && (len(hand) <= 1 || rng.IntN(3) == 0) {
			mustStep(t, g, pid, Step{Type: GetCard})
			return
		}
		if deckLeft == 0 {
			if _, ok := comb.Recognize(hand); ok {
				mustStep(t, g, pid, Step{Type: GiveComb, Cards: hand})
				return
			}
		}
		mustStep(t, g, pid, Step{Type: GiveComb, Cards: hand[len(hand)-1:]})
		return
	}

	board := state.Active
	if len(board.Comb.Cards) == 1 && (len(hand) >= 2 || deckLeft == 0) {
		top := board.Comb.Cards[0].Rank
		for _, c := range hand {
			if c.Rank > top {
				mustStep(t, g, pid, Step{Type: TransComb, Cards: []deck.Card{c}})
				return
			}
		}
	}
	// Everything on the board except the combination is gone for good.
	for c := range board.Cards {
		buried[c] = true
	}
	for _, c := range board.Comb.Cards {
		delete(buried, c)
	}
	mustStep(t, g, pid, Step{Type: GetComb})
}

func checkConservation(t *testing.T, g *Game, buried map[deck.Card]bool) {
	t.Helper()
	seen := make(map[deck.Card]bool)
	total := g.DeckSize() + len(buried)
	for c := range buried {
		seen[c] = true
	}
	for i := range g.seats {
		total += len(g.seats[i].hand)
		for c := range g.seats[i].hand {
			if seen[c] {
				t.Fatalf("card %v in two places", c)
			}
			seen[c] = true
		}
	}
	if g.state.Active != nil {
		total += len(g.state.Active.Cards)
		for c := range g.state.Active.Cards {
			if seen[c] {
				t.Fatalf("board card %v also held elsewhere", c)
			}
			seen[c] = true
		}
	}
	if total != deck.NumCards {
		t.Fatalf("cards accounted for = %d, want %d", total, deck.NumCards)
	}
}
