package deck

import (
	"encoding/json"
	"fmt"
)

// Suit represents a card suit
type Suit int

const (
	Spades Suit = iota
	Clubs
	Diamonds
	Hearts
)

// Suits lists every suit in declaration order.
var Suits = [4]Suit{Spades, Clubs, Diamonds, Hearts}

// String returns the string representation of a suit
func (s Suit) String() string {
	switch s {
	case Spades:
		return "♠"
	case Clubs:
		return "♣"
	case Diamonds:
		return "♦"
	case Hearts:
		return "♥"
	default:
		return "?"
	}
}

// ParseSuit parses a suit glyph as it appears on the wire.
func ParseSuit(s string) (Suit, error) {
	switch s {
	case "♠":
		return Spades, nil
	case "♣":
		return Clubs, nil
	case "♦":
		return Diamonds, nil
	case "♥":
		return Hearts, nil
	default:
		return 0, fmt.Errorf("invalid suit %q", s)
	}
}

// Rank represents a card rank. Aces are always high; straights treat
// them as low separately.
type Rank int

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// Ranks lists every rank in ascending order.
var Ranks = [13]Rank{Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King, Ace}

// String returns the string representation of a rank
func (r Rank) String() string {
	switch r {
	case Two:
		return "2"
	case Three:
		return "3"
	case Four:
		return "4"
	case Five:
		return "5"
	case Six:
		return "6"
	case Seven:
		return "7"
	case Eight:
		return "8"
	case Nine:
		return "9"
	case Ten:
		return "10"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	default:
		return "?"
	}
}

// ParseRank parses a rank string as it appears on the wire. Ten is "10",
// not "T".
func ParseRank(s string) (Rank, error) {
	switch s {
	case "2":
		return Two, nil
	case "3":
		return Three, nil
	case "4":
		return Four, nil
	case "5":
		return Five, nil
	case "6":
		return Six, nil
	case "7":
		return Seven, nil
	case "8":
		return Eight, nil
	case "9":
		return Nine, nil
	case "10":
		return Ten, nil
	case "J":
		return Jack, nil
	case "Q":
		return Queen, nil
	case "K":
		return King, nil
	case "A":
		return Ace, nil
	default:
		return 0, fmt.Errorf("invalid rank %q", s)
	}
}

// Card represents a playing card. Cards order by rank only; suits never
// break ties anywhere in the rules.
type Card struct {
	Rank Rank
	Suit Suit
}

// NewCard creates a new card
func NewCard(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// String returns the string representation of a card (e.g., "A♠")
func (c Card) String() string {
	return fmt.Sprintf("%s%s", c.Rank, c.Suit)
}

// MarshalJSON encodes the card as a ["rank", "suit"] pair.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{c.Rank.String(), c.Suit.String()})
}

// UnmarshalJSON decodes a ["rank", "suit"] pair.
func (c *Card) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("invalid card: expected [rank, suit], got %d elements", len(pair))
	}
	rank, err := ParseRank(pair[0])
	if err != nil {
		return err
	}
	suit, err := ParseSuit(pair[1])
	if err != nil {
		return err
	}
	c.Rank, c.Suit = rank, suit
	return nil
}

// ParseCard parses a card in display form, e.g. "A♠" or "10♥". The suit
// glyph is the final rune; everything before it is the rank.
func ParseCard(s string) (Card, error) {
	runes := []rune(s)
	if len(runes) < 2 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	rank, err := ParseRank(string(runes[:len(runes)-1]))
	if err != nil {
		return Card{}, err
	}
	suit, err := ParseSuit(string(runes[len(runes)-1:]))
	if err != nil {
		return Card{}, err
	}
	return Card{Rank: rank, Suit: suit}, nil
}
