// Command client is a line oriented debug client for the poker-durak
// server. It speaks the same websocket protocol as the browser page and
// prints every server frame in a readable form.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/timcryt/poker-durak/internal/deck"
	"github.com/timcryt/poker-durak/internal/game"
	"github.com/timcryt/poker-durak/internal/protocol"
)

type CLI struct {
	Server    string        `kong:"default='ws://127.0.0.1:8000/ws',help='WebSocket server URL'"`
	SID       *uint64       `kong:"help='Session id to present as the sid cookie (optional)'"`
	PingEvery time.Duration `kong:"default='5s',help='Keepalive ping interval'"`
	Debug     bool          `kong:"help='Enable debug logging'"`
}

const usage = `commands:
  get              draw the top card of the deck
  take             take the combination from the board
  give CARDS...    open the board with a combination from your hand
  trans CARDS...   beat the board with a stronger combination
  say TEXT         send a chat message
  ping             send a keepalive ping by hand
  exit             leave the game (counts as a loss)
  quit             close the connection without leaving
cards are written like A♠ 10♥ or as, 10h`

type client struct {
	conn   *websocket.Conn
	logger *log.Logger

	mu sync.Mutex // guards writes; the ping ticker and the prompt share the socket
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("durak-client"),
		kong.Description("Line oriented debug client for the poker-durak server"),
		kong.UsageOnError(),
	)

	logger := log.New(os.Stderr)
	if cli.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	err := run(&cli, logger)
	ctx.FatalIfErrorf(err)
}

func run(cli *CLI, logger *log.Logger) error {
	dialer := websocket.Dialer{
		Subprotocols:     []string{"echo"},
		HandshakeTimeout: 10 * time.Second,
	}
	header := http.Header{}
	if cli.SID != nil {
		header.Set("Cookie", fmt.Sprintf("sid=%d", *cli.SID))
	}

	logger.Info("Connecting to server", "url", cli.Server)
	conn, _, err := dialer.Dial(cli.Server, header)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = conn.Close() }()

	c := &client{conn: conn, logger: logger}

	fmt.Println(usage)

	done := make(chan struct{})
	go c.readLoop(done)

	stop := make(chan struct{})
	defer close(stop)
	go c.pingLoop(cli.PingEvery, stop, done)

	input := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			input <- scanner.Text()
		}
		close(input)
	}()

	for {
		select {
		case <-done:
			logger.Info("Server closed the connection")
			return nil
		case line, ok := <-input:
			if !ok {
				return nil
			}
			quit, err := c.dispatch(line)
			if err != nil {
				fmt.Println("!", err)
				continue
			}
			if quit {
				return nil
			}
		}
	}
}

// dispatch parses one prompt line and sends the request it names. The
// returned flag asks the caller to stop reading the prompt.
func (c *client) dispatch(line string) (bool, error) {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch cmd {
	case "":
		return false, nil
	case "help":
		fmt.Println(usage)
		return false, nil
	case "ping":
		return false, c.send(protocol.Request{Kind: protocol.KindPing})
	case "get":
		return false, c.makeStep(game.Step{Type: game.GetCard})
	case "take":
		return false, c.makeStep(game.Step{Type: game.GetComb})
	case "give", "trans":
		cards, err := parseCards(rest)
		if err != nil {
			return false, err
		}
		step := game.Step{Type: game.GiveComb, Cards: cards}
		if cmd == "trans" {
			step.Type = game.TransComb
		}
		return false, c.makeStep(step)
	case "say":
		return false, c.send(protocol.Request{Kind: protocol.KindSendMessage, Text: rest})
	case "exit":
		// The loss frames and the close arrive through the read loop.
		return false, c.send(protocol.Request{Kind: protocol.KindExit})
	case "quit":
		return true, nil
	}
	return false, fmt.Errorf("unknown command %q (try help)", cmd)
}

func (c *client) makeStep(step game.Step) error {
	return c.send(protocol.Request{Kind: protocol.KindMakeStep, Step: step})
}

func (c *client) send(req protocol.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Debug("Sending request", "kind", req.Kind)
	return c.conn.WriteJSON(req)
}

// readLoop prints every server frame until the connection dies.
func (c *client) readLoop(done chan<- struct{}) {
	defer close(done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Error("Read failed", "err", err)
			}
			return
		}
		var resp protocol.Response
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Error("Unparseable frame", "data", string(data), "err", err)
			continue
		}
		if resp.Kind == protocol.KindPong {
			c.logger.Debug("Pong")
			continue
		}
		fmt.Println(render(resp))
	}
}

func (c *client) pingLoop(every time.Duration, stop, done <-chan struct{}) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-done:
			return
		case <-ticker.C:
			if err := c.send(protocol.Request{Kind: protocol.KindPing}); err != nil {
				return
			}
		}
	}
}

func render(r protocol.Response) string {
	switch r.Kind {
	case protocol.KindPong:
		return "pong"
	case protocol.KindID:
		return fmt.Sprintf("* waiting for players, your id is %d", r.PID)
	case protocol.KindYouArePlaying:
		return "* this id already has a live connection"
	case protocol.KindYourCards:
		return fmt.Sprintf("* game started: hand %s, deck %d", cardsLine(r.Cards), r.DeckSize)
	case protocol.KindYourTurn:
		return fmt.Sprintf("* your turn (%ds left): %s\n  hand %s, deck %d, next player holds %d",
			r.Seconds, stateLine(r.State), cardsLine(r.Cards), r.DeckSize, r.NextSize)
	case protocol.KindYouMadeStep:
		return fmt.Sprintf("* step accepted: %s\n  hand %s, deck %d, next player holds %d",
			stateLine(r.State), cardsLine(r.Cards), r.DeckSize, r.NextSize)
	case protocol.KindStepError:
		return "* step refused: " + string(r.Err)
	case protocol.KindMessage:
		return "[chat] " + r.Text
	case protocol.KindSent:
		if r.OK {
			return "* chat message sent"
		}
		return "* chat message refused"
	case protocol.KindJSONError:
		return "* server could not parse the last frame"
	case protocol.KindGameWinner:
		return "* you won"
	case protocol.KindGameLoser:
		return "* you lost"
	}
	return fmt.Sprintf("* unknown frame kind %d", r.Kind)
}

func stateLine(s game.State) string {
	if !s.IsActive() {
		return "board is clear"
	}
	return fmt.Sprintf("board %s beats with %s",
		cardsLine(sortedBoard(s)), cardsLine(s.Active.Comb.Cards))
}

func sortedBoard(s game.State) []deck.Card {
	cards := make([]deck.Card, 0, len(s.Active.Cards))
	for card := range s.Active.Cards {
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

func cardsLine(cards []deck.Card) string {
	if len(cards) == 0 {
		return "(none)"
	}
	parts := make([]string, len(cards))
	for i, card := range cards {
		parts[i] = card.String()
	}
	return strings.Join(parts, " ")
}

// parseCards reads a card list from the prompt. Besides the wire form
// (A♠, 10♥) it accepts letter suits, so "as 10h" works from a plain
// keyboard.
func parseCards(rest string) ([]deck.Card, error) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return nil, fmt.Errorf("expected at least one card")
	}
	cards := make([]deck.Card, 0, len(fields))
	for _, tok := range fields {
		card, err := parseCard(tok)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func parseCard(tok string) (deck.Card, error) {
	if card, err := deck.ParseCard(tok); err == nil {
		return card, nil
	}
	runes := []rune(tok)
	if len(runes) < 2 {
		return deck.Card{}, fmt.Errorf("invalid card %q", tok)
	}
	var glyph string
	switch runes[len(runes)-1] {
	case 's', 'S':
		glyph = "♠"
	case 'c', 'C':
		glyph = "♣"
	case 'd', 'D':
		glyph = "♦"
	case 'h', 'H':
		glyph = "♥"
	default:
		return deck.Card{}, fmt.Errorf("invalid card %q", tok)
	}
	return deck.ParseCard(strings.ToUpper(string(runes[:len(runes)-1])) + glyph)
}
