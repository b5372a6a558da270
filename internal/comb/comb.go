// Package comb recognizes poker combinations and orders them by strength.
// Combinations are exact sets: a pair is exactly two cards, a full house
// exactly five. Suits never break ties.
package comb

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/timcryt/poker-durak/internal/deck"
)

// Category enumerates the combination classes ordered from weakest to strongest.
type Category uint8

const (
	HighCard Category = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

// String returns a human-readable category description.
func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	default:
		return "Unknown"
	}
}

// Rank orders combinations. Category decides first; equal categories
// compare tiebreak ranks lexicographically. Unused slots stay zero, which
// sorts below every real rank.
type Rank struct {
	Category  Category
	Tiebreaks [5]deck.Rank
}

// Compare returns -1, 0 or 1 as r sorts below, equal to or above other.
func (r Rank) Compare(other Rank) int {
	if r.Category != other.Category {
		if r.Category < other.Category {
			return -1
		}
		return 1
	}
	for i := range r.Tiebreaks {
		if r.Tiebreaks[i] != other.Tiebreaks[i] {
			if r.Tiebreaks[i] < other.Tiebreaks[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Beats reports whether r is strictly stronger than other.
func (r Rank) Beats(other Rank) bool {
	return r.Compare(other) > 0
}

// String returns a human-readable rank description, e.g. "Full House [A K]".
func (r Rank) String() string {
	parts := make([]string, 0, len(r.Tiebreaks))
	for _, t := range r.Tiebreaks {
		if t == 0 {
			break
		}
		parts = append(parts, t.String())
	}
	return fmt.Sprintf("%s [%s]", r.Category, strings.Join(parts, " "))
}

// Comb is a recognized combination: the cards laid down plus the rank they
// classify as. Cards are distinct and sorted by descending rank so any
// serialized form stays stable.
type Comb struct {
	Cards []deck.Card
	Rank  Rank
}

// New classifies cards as a combination. Duplicate cards collapse before
// classification. The second result is false when the cards form no valid
// combination.
func New(cards []deck.Card) (Comb, bool) {
	distinct := dedup(cards)
	rank, ok := classify(distinct)
	if !ok {
		return Comb{}, false
	}
	return Comb{Cards: distinct, Rank: rank}, true
}

// Recognize returns the rank a set of cards classifies as. Duplicate cards
// collapse before classification.
func Recognize(cards []deck.Card) (Rank, bool) {
	return classify(dedup(cards))
}

// MarshalJSON writes the cards only. Ranks are recomputed on demand and
// never travel on the wire.
func (c Comb) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Cards []deck.Card `json:"cards"`
	}{Cards: c.Cards})
}

func (c Comb) String() string {
	parts := make([]string, len(c.Cards))
	for i, card := range c.Cards {
		parts[i] = card.String()
	}
	return strings.Join(parts, " ")
}

// classify assumes distinct cards. Stronger categories are tried first so
// a straight flush never falls through to a plain flush or straight.
func classify(cards []deck.Card) (Rank, bool) {
	if top, ok := straightFlush(cards); ok {
		return single(StraightFlush, top), true
	}
	if r, ok := ofAKind(cards, 4); ok {
		return single(FourOfAKind, r), true
	}
	if hi, lo, ok := groupPair(cards, 3, 2); ok {
		return double(FullHouse, hi, lo), true
	}
	if tb, ok := flush(cards); ok {
		return Rank{Category: Flush, Tiebreaks: tb}, true
	}
	if top, ok := straight(cards); ok {
		return single(Straight, top), true
	}
	if r, ok := ofAKind(cards, 3); ok {
		return single(ThreeOfAKind, r), true
	}
	if hi, lo, ok := groupPair(cards, 2, 2); ok {
		return double(TwoPair, hi, lo), true
	}
	if r, ok := ofAKind(cards, 2); ok {
		return single(Pair, r), true
	}
	if r, ok := ofAKind(cards, 1); ok {
		return single(HighCard, r), true
	}
	return Rank{}, false
}

// ofAKind matches when the set is exactly n cards of a single rank.
func ofAKind(cards []deck.Card, n int) (deck.Rank, bool) {
	if len(cards) != n {
		return 0, false
	}
	for i := len(deck.Ranks) - 1; i >= 0; i-- {
		if countRank(cards, deck.Ranks[i]) >= n {
			return deck.Ranks[i], true
		}
	}
	return 0, false
}

// groupPair matches sets of x+y cards holding a group of x of one rank and
// a group of y of another. The larger group's rank is returned first; for
// equal sizes the higher rank comes first.
func groupPair(cards []deck.Card, x, y int) (deck.Rank, deck.Rank, bool) {
	if len(cards) != x+y {
		return 0, 0, false
	}
	if y > x {
		x, y = y, x
	}
	var hi deck.Rank
	for i := len(deck.Ranks) - 1; i >= 0; i-- {
		if countRank(cards, deck.Ranks[i]) >= x {
			hi = deck.Ranks[i]
			break
		}
	}
	if hi == 0 {
		return 0, 0, false
	}
	for i := len(deck.Ranks) - 1; i >= 0; i-- {
		if deck.Ranks[i] != hi && countRank(cards, deck.Ranks[i]) >= y {
			return hi, deck.Ranks[i], true
		}
	}
	return 0, 0, false
}

// flush matches five cards of one suit. The payload carries all five ranks
// in descending order so flushes with equal top cards still compare card
// by card.
func flush(cards []deck.Card) ([5]deck.Rank, bool) {
	var tb [5]deck.Rank
	if len(cards) != 5 {
		return tb, false
	}
	for _, c := range cards[1:] {
		if c.Suit != cards[0].Suit {
			return tb, false
		}
	}
	ranks := make([]deck.Rank, 0, 5)
	for _, c := range cards {
		ranks = append(ranks, c.Rank)
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i] > ranks[j] })
	copy(tb[:], ranks)
	return tb, true
}

func straight(cards []deck.Card) (deck.Rank, bool) {
	if len(cards) != 5 {
		return 0, false
	}
	ranks := make([]deck.Rank, 0, 5)
	for _, c := range cards {
		ranks = append(ranks, c.Rank)
	}
	return runTop(ranks)
}

func straightFlush(cards []deck.Card) (deck.Rank, bool) {
	if len(cards) != 5 {
		return 0, false
	}
	for _, suit := range deck.Suits {
		suited := make([]deck.Rank, 0, 5)
		for _, c := range cards {
			if c.Suit == suit {
				suited = append(suited, c.Rank)
			}
		}
		if len(suited) < 5 {
			continue
		}
		if top, ok := runTop(suited); ok {
			return top, true
		}
	}
	return 0, false
}

// runTop finds the highest five-rank run. Slot 0 duplicates the ace so the
// wheel (A-2-3-4-5) counts, topping out at the five.
func runTop(ranks []deck.Rank) (deck.Rank, bool) {
	var present [14]bool
	for _, r := range ranks {
		present[int(r)-1] = true
		if r == deck.Ace {
			present[0] = true
		}
	}
	run := 0
	for i := len(present) - 1; i >= 0; i-- {
		if !present[i] {
			run = 0
			continue
		}
		run++
		if run == 5 {
			return deck.Ranks[i+3], true
		}
	}
	return 0, false
}

func countRank(cards []deck.Card, r deck.Rank) int {
	n := 0
	for _, c := range cards {
		if c.Rank == r {
			n++
		}
	}
	return n
}

func single(cat Category, r deck.Rank) Rank {
	return Rank{Category: cat, Tiebreaks: [5]deck.Rank{r}}
}

func double(cat Category, hi, lo deck.Rank) Rank {
	return Rank{Category: cat, Tiebreaks: [5]deck.Rank{hi, lo}}
}

func dedup(cards []deck.Card) []deck.Card {
	seen := make(map[deck.Card]bool, len(cards))
	distinct := make([]deck.Card, 0, len(cards))
	for _, c := range cards {
		if !seen[c] {
			seen[c] = true
			distinct = append(distinct, c)
		}
	}
	sort.Slice(distinct, func(i, j int) bool {
		if distinct[i].Rank != distinct[j].Rank {
			return distinct[i].Rank > distinct[j].Rank
		}
		return distinct[i].Suit < distinct[j].Suit
	})
	return distinct
}
