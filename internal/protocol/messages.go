// Package protocol defines the websocket wire format: externally tagged
// JSON, where variants without a payload are bare strings and variants
// with one are single-key objects. Tuple payloads are JSON arrays.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/timcryt/poker-durak/internal/deck"
	"github.com/timcryt/poker-durak/internal/game"
)

// RequestKind identifies a client to server frame.
type RequestKind uint8

const (
	KindPing RequestKind = iota
	KindMakeStep
	KindSendMessage
	KindExit
)

// Request is one client to server frame. Step is set for KindMakeStep,
// Text for KindSendMessage.
type Request struct {
	Kind RequestKind
	Step game.Step
	Text string
}

// Parse decodes one websocket text frame into a Request.
func Parse(data []byte) (Request, error) {
	var r Request
	err := json.Unmarshal(data, &r)
	return r, err
}

// MarshalJSON writes the externally tagged form.
func (r Request) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindPing:
		return json.Marshal("Ping")
	case KindExit:
		return json.Marshal("Exit")
	case KindMakeStep:
		return json.Marshal(map[string]game.Step{"MakeStep": r.Step})
	case KindSendMessage:
		return json.Marshal(map[string]string{"SendMessage": r.Text})
	}
	return nil, fmt.Errorf("protocol: unknown request kind %d", r.Kind)
}

// UnmarshalJSON accepts both encodings produced by MarshalJSON.
func (r *Request) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		switch tag {
		case "Ping":
			*r = Request{Kind: KindPing}
		case "Exit":
			*r = Request{Kind: KindExit}
		default:
			return fmt.Errorf("protocol: unknown request %q", tag)
		}
		return nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	if len(tagged) != 1 {
		return fmt.Errorf("protocol: request must have exactly one variant, got %d", len(tagged))
	}
	for tag, raw := range tagged {
		switch tag {
		case "MakeStep":
			var step game.Step
			if err := json.Unmarshal(raw, &step); err != nil {
				return err
			}
			*r = Request{Kind: KindMakeStep, Step: step}
		case "SendMessage":
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				return err
			}
			*r = Request{Kind: KindSendMessage, Text: text}
		default:
			return fmt.Errorf("protocol: unknown request %q", tag)
		}
	}
	return nil
}

// ResponseKind identifies a server to client frame.
type ResponseKind uint8

const (
	KindPong ResponseKind = iota
	KindID
	KindYouArePlaying
	KindYourCards
	KindYourTurn
	KindYouMadeStep
	KindStepError
	KindMessage
	KindSent
	KindJSONError
	KindGameWinner
	KindGameLoser
)

// Response is one server to client frame. Which fields matter depends on
// Kind; the constructors below set the right ones.
type Response struct {
	Kind     ResponseKind
	PID      uint64
	State    game.State
	Cards    []deck.Card
	DeckSize int
	NextSize int
	Seconds  int64
	Err      game.StepError
	Text     string
	OK       bool
}

// NewPong answers a keepalive ping.
func NewPong() Response {
	return Response{Kind: KindPong}
}

// NewID tells a fresh connection its player id.
func NewID(pid uint64) Response {
	return Response{Kind: KindID, PID: pid}
}

// NewYouArePlaying refuses a connection whose id already has a live
// socket.
func NewYouArePlaying() Response {
	return Response{Kind: KindYouArePlaying}
}

// NewYourCards is the game start frame: the hand and the deck size.
func NewYourCards(cards []deck.Card, deckSize int) Response {
	return Response{Kind: KindYourCards, Cards: cards, DeckSize: deckSize}
}

// NewYourTurn announces the player's turn: board state, hand, deck size,
// the next player's hand size and the seconds left on the turn clock.
func NewYourTurn(state game.State, cards []deck.Card, deckSize, nextSize int, seconds int64) Response {
	return Response{Kind: KindYourTurn, State: state, Cards: cards, DeckSize: deckSize, NextSize: nextSize, Seconds: seconds}
}

// NewYouMadeStep confirms an accepted step with the updated view.
func NewYouMadeStep(state game.State, cards []deck.Card, deckSize, nextSize int) Response {
	return Response{Kind: KindYouMadeStep, State: state, Cards: cards, DeckSize: deckSize, NextSize: nextSize}
}

// NewStepError reports a refused step.
func NewStepError(err game.StepError) Response {
	return Response{Kind: KindStepError, Err: err}
}

// NewChatMessage relays another player's chat line.
func NewChatMessage(text string) Response {
	return Response{Kind: KindMessage, Text: text}
}

// NewSent acknowledges a chat submission.
func NewSent(ok bool) Response {
	return Response{Kind: KindSent, OK: ok}
}

// NewJSONError reports an unparseable frame.
func NewJSONError() Response {
	return Response{Kind: KindJSONError}
}

// NewGameWinner is the final frame of a won game.
func NewGameWinner() Response {
	return Response{Kind: KindGameWinner}
}

// NewGameLoser is the final frame of a lost or abandoned game.
func NewGameLoser() Response {
	return Response{Kind: KindGameLoser}
}

func cardsOrEmpty(cards []deck.Card) []deck.Card {
	if cards == nil {
		return []deck.Card{}
	}
	return cards
}

// MarshalJSON writes the externally tagged form. Unit variants become
// bare strings, tuple variants become arrays under their tag.
func (r Response) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindPong:
		return json.Marshal("Pong")
	case KindID:
		return json.Marshal(map[string]uint64{"ID": r.PID})
	case KindYouArePlaying:
		return json.Marshal("YouArePlaying")
	case KindYourCards:
		return json.Marshal(map[string][]any{"YourCards": {cardsOrEmpty(r.Cards), r.DeckSize}})
	case KindYourTurn:
		return json.Marshal(map[string][]any{"YourTurn": {r.State, cardsOrEmpty(r.Cards), r.DeckSize, r.NextSize, r.Seconds}})
	case KindYouMadeStep:
		return json.Marshal(map[string][]any{"YouMadeStep": {r.State, cardsOrEmpty(r.Cards), r.DeckSize, r.NextSize}})
	case KindStepError:
		return json.Marshal(map[string]string{"StepError": string(r.Err)})
	case KindMessage:
		return json.Marshal(map[string]string{"Message": r.Text})
	case KindSent:
		if r.OK {
			return []byte(`{"Sent":{"Ok":null}}`), nil
		}
		return []byte(`{"Sent":{"Err":null}}`), nil
	case KindJSONError:
		return json.Marshal("JsonError")
	case KindGameWinner:
		return json.Marshal("GameWinner")
	case KindGameLoser:
		return json.Marshal("GameLoser")
	}
	return nil, fmt.Errorf("protocol: unknown response kind %d", r.Kind)
}

// UnmarshalJSON accepts everything MarshalJSON produces. The debug client
// and the tests are its consumers; the server only ever encodes.
func (r *Response) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		switch tag {
		case "Pong":
			*r = NewPong()
		case "YouArePlaying":
			*r = NewYouArePlaying()
		case "JsonError":
			*r = NewJSONError()
		case "GameWinner":
			*r = NewGameWinner()
		case "GameLoser":
			*r = NewGameLoser()
		default:
			return fmt.Errorf("protocol: unknown response %q", tag)
		}
		return nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	if len(tagged) != 1 {
		return fmt.Errorf("protocol: response must have exactly one variant, got %d", len(tagged))
	}
	for tag, raw := range tagged {
		switch tag {
		case "ID":
			var pid uint64
			if err := json.Unmarshal(raw, &pid); err != nil {
				return err
			}
			*r = NewID(pid)
		case "YourCards":
			var parts []json.RawMessage
			if err := unmarshalTuple(raw, &parts, 2); err != nil {
				return err
			}
			var cards []deck.Card
			var deckSize int
			if err := decodeAll(parts, &cards, &deckSize); err != nil {
				return err
			}
			*r = NewYourCards(cards, deckSize)
		case "YourTurn":
			var parts []json.RawMessage
			if err := unmarshalTuple(raw, &parts, 5); err != nil {
				return err
			}
			var state game.State
			var cards []deck.Card
			var deckSize, nextSize int
			var seconds int64
			if err := decodeAll(parts, &state, &cards, &deckSize, &nextSize, &seconds); err != nil {
				return err
			}
			*r = NewYourTurn(state, cards, deckSize, nextSize, seconds)
		case "YouMadeStep":
			var parts []json.RawMessage
			if err := unmarshalTuple(raw, &parts, 4); err != nil {
				return err
			}
			var state game.State
			var cards []deck.Card
			var deckSize, nextSize int
			if err := decodeAll(parts, &state, &cards, &deckSize, &nextSize); err != nil {
				return err
			}
			*r = NewYouMadeStep(state, cards, deckSize, nextSize)
		case "StepError":
			var name string
			if err := json.Unmarshal(raw, &name); err != nil {
				return err
			}
			stepErr, ok := game.ParseStepError(name)
			if !ok {
				return fmt.Errorf("protocol: unknown step error %q", name)
			}
			*r = NewStepError(stepErr)
		case "Message":
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				return err
			}
			*r = NewChatMessage(text)
		case "Sent":
			var result map[string]json.RawMessage
			if err := json.Unmarshal(raw, &result); err != nil {
				return err
			}
			if _, ok := result["Ok"]; ok {
				*r = NewSent(true)
			} else if _, ok := result["Err"]; ok {
				*r = NewSent(false)
			} else {
				return fmt.Errorf("protocol: Sent payload must be Ok or Err")
			}
		default:
			return fmt.Errorf("protocol: unknown response %q", tag)
		}
	}
	return nil
}

func unmarshalTuple(data []byte, parts *[]json.RawMessage, want int) error {
	if err := json.Unmarshal(data, parts); err != nil {
		return err
	}
	if len(*parts) != want {
		return fmt.Errorf("protocol: tuple has %d elements, want %d", len(*parts), want)
	}
	return nil
}

func decodeAll(parts []json.RawMessage, dests ...any) error {
	for i, dest := range dests {
		if err := json.Unmarshal(parts[i], dest); err != nil {
			return err
		}
	}
	return nil
}
