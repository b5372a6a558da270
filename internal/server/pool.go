package server

import (
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/timcryt/poker-durak/internal/game"
	"github.com/timcryt/poker-durak/internal/randutil"
	"github.com/timcryt/poker-durak/internal/tableid"
)

// JoinStatus says how the pool dispatched an arriving player.
type JoinStatus int

const (
	// Queued players wait for matchmaking to seat them.
	Queued JoinStatus = iota
	// Reconnected players reclaimed the table handle parked during
	// their disconnect grace window.
	Reconnected
	// AlreadyPlaying refuses a second live socket for the same id.
	AlreadyPlaying
)

// Pool is the process-wide player registry: who waits for a table, who
// sits at one, and whose departure is still inside the grace window.
// One mutex guards all of it; nothing slow ever runs under the lock.
type Pool struct {
	cfg    Config
	logger zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
	// players holds every pid currently bound to a table.
	players map[uint64]bool
	// handles parks each seated player's table handle until their
	// session claims it.
	handles map[uint64]*game.Handle
	// turnStarts preserves running turn clocks across reconnects.
	turnStarts map[uint64]*time.Time
	// waiting is the matchmaking queue.
	waiting map[uint64]bool
	// onDelete quarantines departures for the grace window. A nil
	// handle marks a player that never reached a table.
	onDelete map[uint64]*game.Handle

	gamesTotal  uint64
	gamesActive uint64
}

// NewPool creates an empty pool. The rng seeds each table's private RNG.
func NewPool(logger zerolog.Logger, rng *rand.Rand, cfg Config) *Pool {
	return &Pool{
		cfg:        cfg,
		logger:     logger.With().Str("component", "pool").Logger(),
		rng:        rng,
		players:    make(map[uint64]bool),
		handles:    make(map[uint64]*game.Handle),
		turnStarts: make(map[uint64]*time.Time),
		waiting:    make(map[uint64]bool),
		onDelete:   make(map[uint64]*game.Handle),
	}
}

// Join registers an arriving pid. Reconnects inside the grace window
// reclaim their parked handle, duplicates are refused, and everyone else
// lands in the waiting set. Matchmaking is the caller's next move, via
// FormTables; keeping the two apart lets near-simultaneous arrivals pile
// up into one table instead of always pairing off.
func (p *Pool) Join(pid uint64) (JoinStatus, *game.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h, parked := p.onDelete[pid]; parked {
		delete(p.onDelete, pid)
		if h != nil {
			p.logger.Info().Uint64("pid", pid).Msg("Player restored")
			return Reconnected, h
		}
		// A departure parked while still waiting holds no handle; the
		// player simply queues again.
	} else if p.players[pid] {
		return AlreadyPlaying, nil
	}

	p.waiting[pid] = true
	p.logger.Info().Uint64("pid", pid).Int("waiting", len(p.waiting)).Msg("Player registered")
	return Queued, nil
}

// FormTables drains the waiting set into tables of at most
// cfg.MaxPlayers while at least two players wait. The player whose
// arrival triggered matchmaking sits at the first table formed.
func (p *Pool) FormTables(first uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.waiting) >= game.MinPlayers {
		batch := make([]uint64, 0, p.cfg.MaxPlayers)
		if p.waiting[first] {
			batch = append(batch, first)
			delete(p.waiting, first)
		}
		for pid := range p.waiting {
			if len(batch) == p.cfg.MaxPlayers {
				break
			}
			batch = append(batch, pid)
			delete(p.waiting, pid)
		}
		p.startTableLocked(batch)
	}
}

func (p *Pool) startTableLocked(pids []uint64) {
	id := tableid.New()
	logger := p.logger.With().Str("table_id", id).Logger()
	handles, err := game.Start(logger, randutil.Fork(p.rng), pids)
	if err != nil {
		// The batch size is validated against the game's bounds, so
		// this should not happen; requeue rather than lose players.
		p.logger.Error().Err(err).Msg("Failed to start table")
		for _, pid := range pids {
			p.waiting[pid] = true
		}
		return
	}

	p.gamesTotal++
	p.gamesActive++
	for pid, h := range handles {
		p.players[pid] = true
		p.handles[pid] = h
		delete(p.turnStarts, pid)
	}
	p.logger.Info().
		Str("table_id", id).
		Int("players", len(pids)).
		Uint64("games_total", p.gamesTotal).
		Uint64("games_active", p.gamesActive).
		Msg("Game created")
}

// ClaimHandle takes pid's parked table handle once matchmaking has
// seated the player. Nil means keep waiting.
func (p *Pool) ClaimHandle(pid uint64) *game.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := p.handles[pid]
	if h != nil {
		delete(p.handles, pid)
	}
	return h
}

// IsPlaying reports whether pid is bound to a table. A waiting session
// whose pid is playing but whose handle is gone lost a claim race to
// another socket with the same id.
func (p *Pool) IsPlaying(pid uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.players[pid]
}

// Park begins the departure quarantine. The handle is nil when the
// player never reached a table, which also removes them from the queue.
func (p *Pool) Park(pid uint64, h *game.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDelete[pid] = h
	if h == nil {
		delete(p.waiting, pid)
	}
}

// Unpark ends the quarantine. ok is false when a reconnect raced the
// grace window and already claimed the entry.
func (p *Pool) Unpark(pid uint64) (*game.Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.onDelete[pid]
	delete(p.onDelete, pid)
	return h, ok
}

// TakeTurnStart removes and returns the turn clock a previous connection
// left behind, if any.
func (p *Pool) TakeTurnStart(pid uint64) *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.turnStarts[pid]
	delete(p.turnStarts, pid)
	return t
}

// StashTurnStart parks a running turn clock so a reconnect resumes the
// same countdown instead of a fresh one.
func (p *Pool) StashTurnStart(pid uint64, t *time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turnStarts[pid] = t
}

// Purge drops every trace of pid after its table life ended.
func (p *Pool) Purge(pid uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.players, pid)
	delete(p.handles, pid)
	delete(p.turnStarts, pid)
}

// GameEnded records that a table's last player has left it.
func (p *Pool) GameEnded() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gamesActive > 0 {
		p.gamesActive--
	}
}

// Stats snapshots the lifetime and live game counters.
func (p *Pool) Stats() (total, active uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gamesTotal, p.gamesActive
}
