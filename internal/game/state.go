package game

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/timcryt/poker-durak/internal/comb"
	"github.com/timcryt/poker-durak/internal/deck"
)

// Board is the pile on the table during an active phase: every card laid
// since the phase opened, plus the combination currently to beat. The
// combination's cards are always a subset of the pile.
type Board struct {
	Comb  comb.Comb
	Cards map[deck.Card]bool
}

// MarshalJSON writes {"cards":[...],"comb":{...}} with the pile sorted
// for stable output.
func (b Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Cards []deck.Card `json:"cards"`
		Comb  comb.Comb   `json:"comb"`
	}{Cards: sortedCards(b.Cards), Comb: b.Comb})
}

// UnmarshalJSON restores a board from the wire form. The combination's
// rank is not carried on the wire, so it is classified again here.
func (b *Board) UnmarshalJSON(data []byte) error {
	var wire struct {
		Cards []deck.Card `json:"cards"`
		Comb  struct {
			Cards []deck.Card `json:"cards"`
		} `json:"comb"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c, ok := comb.New(wire.Comb.Cards)
	if !ok {
		return fmt.Errorf("game: board combination does not classify")
	}
	b.Comb = c
	b.Cards = cardSet(wire.Cards)
	return nil
}

// State is the phase of the table: passive when the board is clear,
// active while a combination waits to be beaten or taken.
type State struct {
	Active *Board
}

// IsActive reports whether a board is on the table.
func (s State) IsActive() bool {
	return s.Active != nil
}

func (s State) clone() State {
	if s.Active == nil {
		return State{}
	}
	cards := make(map[deck.Card]bool, len(s.Active.Cards))
	for card := range s.Active.Cards {
		cards[card] = true
	}
	c := s.Active.Comb
	c.Cards = append([]deck.Card(nil), c.Cards...)
	return State{Active: &Board{Comb: c, Cards: cards}}
}

// MarshalJSON writes "Passive" or {"Active":<board>}.
func (s State) MarshalJSON() ([]byte, error) {
	if s.Active == nil {
		return json.Marshal("Passive")
	}
	return json.Marshal(struct {
		Active *Board `json:"Active"`
	}{Active: s.Active})
}

// UnmarshalJSON accepts both encodings produced by MarshalJSON.
func (s *State) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		if tag != "Passive" {
			return fmt.Errorf("game: unknown state %q", tag)
		}
		s.Active = nil
		return nil
	}
	var wire struct {
		Active *Board `json:"Active"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Active == nil {
		return fmt.Errorf("game: state object lacks an Active board")
	}
	s.Active = wire.Active
	return nil
}

func cardSet(cards []deck.Card) map[deck.Card]bool {
	set := make(map[deck.Card]bool, len(cards))
	for _, card := range cards {
		set[card] = true
	}
	return set
}

// sortedCards flattens a card set ordered by descending rank. Suits order
// within a rank only to keep the output stable.
func sortedCards(set map[deck.Card]bool) []deck.Card {
	cards := make([]deck.Card, 0, len(set))
	for card := range set {
		cards = append(cards, card)
	}
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].Rank != cards[j].Rank {
			return cards[i].Rank > cards[j].Rank
		}
		return cards[i].Suit < cards[j].Suit
	})
	return cards
}
