package game

import (
	"encoding/json"
	"fmt"

	"github.com/timcryt/poker-durak/internal/deck"
)

// StepType enumerates the four legal moves.
type StepType uint8

const (
	// GetCard draws the top deck card into the hand.
	GetCard StepType = iota
	// GiveComb opens the board with a combination from the hand.
	GiveComb
	// TransComb beats the board with a stronger combination.
	TransComb
	// GetComb takes the board's combination into the hand.
	GetComb
)

func (t StepType) String() string {
	switch t {
	case GetCard:
		return "GetCard"
	case GiveComb:
		return "GiveComb"
	case TransComb:
		return "TransComb"
	case GetComb:
		return "GetComb"
	}
	return fmt.Sprintf("StepType(%d)", t)
}

// Step is one player move. Cards matter only for GiveComb and TransComb.
type Step struct {
	Type  StepType
	Cards []deck.Card
}

// MarshalJSON writes the externally tagged form: a bare string for the
// card-less moves, a single-key object for the card-carrying ones.
func (s Step) MarshalJSON() ([]byte, error) {
	switch s.Type {
	case GetCard, GetComb:
		return json.Marshal(s.Type.String())
	case GiveComb, TransComb:
		cards := s.Cards
		if cards == nil {
			cards = []deck.Card{}
		}
		return json.Marshal(map[string][]deck.Card{s.Type.String(): cards})
	}
	return nil, fmt.Errorf("game: unknown step type %d", s.Type)
}

// UnmarshalJSON accepts both encodings produced by MarshalJSON.
func (s *Step) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		switch tag {
		case "GetCard":
			*s = Step{Type: GetCard}
		case "GetComb":
			*s = Step{Type: GetComb}
		default:
			return fmt.Errorf("game: unknown step %q", tag)
		}
		return nil
	}

	var tagged map[string][]deck.Card
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	if len(tagged) != 1 {
		return fmt.Errorf("game: step object must have exactly one variant, got %d", len(tagged))
	}
	for tag, cards := range tagged {
		switch tag {
		case "GiveComb":
			*s = Step{Type: GiveComb, Cards: cards}
		case "TransComb":
			*s = Step{Type: TransComb, Cards: cards}
		default:
			return fmt.Errorf("game: unknown step %q", tag)
		}
	}
	return nil
}
