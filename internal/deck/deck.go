package deck

import (
	rand "math/rand/v2"
)

// NumCards is the size of a full deck.
const NumCards = 52

// Deck is a shuffled stack of cards. Cards leave from the top and never
// come back; a game owns exactly one deck for its whole life.
type Deck struct {
	cards []Card
}

// New creates a full deck shuffled with the provided RNG.
func New(rng *rand.Rand) *Deck {
	d := &Deck{cards: make([]Card, 0, NumCards)}
	for _, suit := range Suits {
		for _, rank := range Ranks {
			d.cards = append(d.cards, NewCard(rank, suit))
		}
	}
	rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
	return d
}

// Stacked builds a deck that pops the given cards in the given order.
// Tests and tools use it to deal known sequences.
func Stacked(cards ...Card) *Deck {
	d := &Deck{cards: make([]Card, len(cards))}
	for i, card := range cards {
		d.cards[len(cards)-1-i] = card
	}
	return d
}

// Pop removes and returns the top card. The second result is false when
// the deck is empty.
func (d *Deck) Pop() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	card := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return card, true
}

// PopN removes and returns up to n cards from the top.
func (d *Deck) PopN(n int) []Card {
	if n > len(d.cards) {
		n = len(d.cards)
	}
	cards := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		card, _ := d.Pop()
		cards = append(cards, card)
	}
	return cards
}

// Size returns the number of cards left.
func (d *Deck) Size() int {
	return len(d.cards)
}
