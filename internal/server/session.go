package server

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/timcryt/poker-durak/internal/game"
	"github.com/timcryt/poker-durak/internal/protocol"
)

// writeWait bounds a single frame write.
const writeWait = 10 * time.Second

// session drives one websocket from just after the upgrade until the
// departure finalizer releases the player.
type session struct {
	pool   *Pool
	conn   *websocket.Conn
	pid    uint64
	cfg    Config
	clock  quartz.Clock
	logger zerolog.Logger
}

func newSession(pool *Pool, conn *websocket.Conn, pid uint64, clock quartz.Clock, logger zerolog.Logger) *session {
	return &session{
		pool:   pool,
		conn:   conn,
		pid:    pid,
		cfg:    pool.cfg,
		clock:  clock,
		logger: logger.With().Str("component", "session").Uint64("pid", pid).Logger(),
	}
}

func (s *session) run() {
	// Give the teardown of a connection this one may be replacing time
	// to park its handle, so the reconnect path below can find it.
	s.sleep(s.cfg.ArrivalGrace)

	status, handle := s.pool.Join(s.pid)
	if status == AlreadyPlaying {
		s.logger.Info().Msg("Duplicate connection refused")
		s.send(protocol.NewYouArePlaying())
		_ = s.conn.Close()
		return
	}
	s.send(protocol.NewID(s.pid))

	if status == Queued {
		s.pool.FormTables(s.pid)
		handle = s.waitForTable()
		if handle == nil {
			return
		}
	}

	s.logger.Info().Msg("Player is playing")
	s.send(protocol.NewYourCards(handle.MyCards(), handle.DeckSize()))
	s.play(handle)
}

// waitForTable keeps the socket alive on pings until matchmaking seats
// the player. Nil means the connection died first and the departure has
// been finalized, or another socket with the same id claimed the seat.
func (s *session) waitForTable() *game.Handle {
	for {
		if h := s.pool.ClaimHandle(s.pid); h != nil {
			return h
		}
		if s.pool.IsPlaying(s.pid) {
			// Seated, but a sibling socket already took the handle.
			s.logger.Info().Msg("Seat claimed by another socket")
			_ = s.conn.Close()
			return nil
		}
		data, alive := s.read()
		if !alive {
			s.logger.Info().Msg("Player left while waiting")
			s.pool.Park(s.pid, nil)
			if _, ok := s.pool.Unpark(s.pid); ok {
				s.logger.Info().Msg("Player exited")
			}
			_ = s.conn.Close()
			return nil
		}
		if req, err := protocol.Parse(data); err == nil && req.Kind == protocol.KindPing {
			s.send(protocol.NewPong())
		}
	}
}

// play runs the in-game frame loop. Each received frame first refreshes
// the turn bookkeeping, then drains pending chat, then dispatches the
// request itself.
func (s *session) play(h *game.Handle) {
	yourTurnNew := true
	endSuccess := false
	turnStart := s.pool.TakeTurnStart(s.pid)
	lastRefresh := s.clock.Now()

loop:
	for {
		data, alive := s.read()
		if !alive {
			break
		}

		if s.clock.Since(lastRefresh) > s.cfg.RefreshEvery {
			resp, end := s.refreshTurn(h, &turnStart, &yourTurnNew)
			if end {
				endSuccess = true
				break
			}
			if resp != nil {
				s.send(*resp)
			}
			lastRefresh = s.clock.Now()
		}

		for _, text := range h.Messages() {
			s.send(protocol.NewChatMessage(text))
		}

		req, err := protocol.Parse(data)
		if err != nil {
			s.logger.Debug().Err(err).Msg("Unparseable frame")
			s.send(protocol.NewJSONError())
			continue
		}
		if req.Kind != protocol.KindPing {
			s.logger.Info().RawJSON("request", data).Msg("Request received")
		}

		switch req.Kind {
		case protocol.KindPing:
			s.send(protocol.NewPong())

		case protocol.KindMakeStep:
			if err := h.MakeStep(req.Step); err != nil {
				var stepErr game.StepError
				if errors.As(err, &stepErr) {
					s.send(protocol.NewStepError(stepErr))
				}
				continue
			}
			yourTurnNew = true
			turnStart = nil
			if h.IsMeKicked() {
				// The step won the game; the departure path sends the
				// verdict.
				endSuccess = true
				break loop
			}
			s.send(protocol.NewYouMadeStep(h.State(), h.MyCards(), h.DeckSize(), h.CardsCount(h.SteppingPlayer())))

		case protocol.KindSendMessage:
			if len(req.Text) > s.cfg.ChatLimit {
				s.send(protocol.NewSent(false))
				continue
			}
			h.SendMessage(req.Text)
			s.send(protocol.NewSent(true))

		case protocol.KindExit:
			h.KickMe()
			endSuccess = true
			s.send(protocol.NewGameLoser())
			break loop
		}
	}

	if !endSuccess {
		// Keep the running turn clock so a reconnect resumes the same
		// countdown.
		s.pool.StashTurnStart(s.pid, turnStart)
	}
	s.finalize(h, endSuccess)
}

// refreshTurn announces the player's turn once per turn and polices the
// turn clock. end reports that the session is over: the turn expired or
// the game found its winner.
func (s *session) refreshTurn(h *game.Handle, turnStart **time.Time, yourTurnNew *bool) (resp *protocol.Response, end bool) {
	if h.SteppingPlayer() == s.pid {
		if *yourTurnNew {
			if *turnStart == nil {
				now := s.clock.Now()
				*turnStart = &now
			}
			left := int64(s.cfg.TurnTimeout.Seconds()) - int64(s.clock.Since(**turnStart).Seconds())
			r := protocol.NewYourTurn(h.State(), h.MyCards(), h.DeckSize(), h.PlayersDecks()[0], left)
			*yourTurnNew = false
			return &r, false
		}
		if *turnStart != nil && s.clock.Since(**turnStart) > s.cfg.TurnTimeout {
			s.logger.Info().Msg("Turn timed out")
			return nil, true
		}
	}
	if _, ok := h.Winner(); ok {
		return nil, true
	}
	return nil, false
}

// finalize parks the handle for the disconnect grace window and then,
// unless a reconnect reclaimed it, kicks the player, delivers the
// verdict and releases the seat. It returns immediately; the teardown
// runs detached.
func (s *session) finalize(h *game.Handle, endSuccess bool) {
	s.pool.Park(s.pid, h)
	go func() {
		if !endSuccess {
			s.logger.Info().Msg("Player disconnected, holding seat")
			s.sleep(s.cfg.DisconnectGrace)
		}

		parked, ok := s.pool.Unpark(s.pid)
		if !ok || parked == nil {
			// A reconnect took the seat back within the grace window.
			_ = s.conn.Close()
			return
		}

		s.logger.Info().Msg("Player is exiting")
		parked.KickMe()
		if winner, ok := parked.Winner(); ok && winner == s.pid {
			s.send(protocol.NewGameWinner())
		} else {
			s.send(protocol.NewGameLoser())
		}
		if parked.Exit() {
			s.pool.GameEnded()
		}
		s.pool.Purge(s.pid)
		_ = s.conn.Close()
		s.logger.Info().Msg("Player exited")
	}()
}

// read blocks for the next text frame, bounded by the heartbeat
// interval. alive is false when the connection is gone or silent for
// too long.
func (s *session) read() (data []byte, alive bool) {
	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.Heartbeat))
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Msg("Websocket closed unexpectedly")
			}
			return nil, false
		}
		if kind != websocket.TextMessage {
			s.logger.Warn().Int("type", kind).Msg("Non-text frame ignored")
			continue
		}
		return data, true
	}
}

// send writes one frame. Write failures only get logged; they surface as
// a dead socket on the next read.
func (s *session) send(resp protocol.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
		return
	}
	if resp.Kind != protocol.KindPong {
		s.logger.Debug().RawJSON("response", data).Msg("Response sent")
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Debug().Err(err).Msg("Write failed")
	}
}

// sleep waits out d on the injected clock so tests can drive it.
func (s *session) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	timer := s.clock.NewTimer(d)
	defer timer.Stop()
	<-timer.C
}
