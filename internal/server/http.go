// Package server is the session layer of the game: the HTTP front that
// upgrades websockets and serves the browser client, the pool that
// matches players into tables, and the per-connection session loop.
package server

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand/v2"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Server is the HTTP front: static pages, the sid cookie and the /ws
// upgrade that hands sockets to the session layer.
type Server struct {
	cfg      Config
	pool     *Pool
	clock    quartz.Clock
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New wires the front to a fresh pool. The rng seeds every table the
// pool creates; the clock drives all session timing and is mocked in
// tests.
func New(logger zerolog.Logger, rng *mrand.Rand, clock quartz.Clock, cfg Config) *Server {
	s := &Server{
		cfg:    cfg,
		pool:   NewPool(logger, rng, cfg),
		clock:  clock,
		logger: logger.With().Str("component", "http").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{"echo"},
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.httpSrv = &http.Server{Addr: cfg.Addr, Handler: s.Handler()}
	return s
}

// Pool exposes the player registry, mainly to tests and the stats page.
func (s *Server) Pool() *Pool {
	return s.pool
}

// Handler returns the routing table as a dedicated mux, so tests can
// serve it without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/", s.handleStatic)
	return mux
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("Listening")
	return s.httpSrv.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests
// within ctx. Long-lived websockets are not waited for; their sessions
// die with the process.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// handleWS upgrades the connection and runs the session loop on it. The
// player id is the sid cookie; a socket arriving without one gets a
// throwaway id for this connection only.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	pid, ok := sidFrom(r)
	if !ok {
		pid = newSID()
		s.logger.Info().Uint64("pid", pid).Msg("Socket without sid cookie")
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Upgrade failed")
		return
	}
	go newSession(s.pool, conn, pid, s.clock, s.logger).run()
}

// route maps the pretty URLs onto the files that back them.
func route(url string) string {
	switch url {
	case "/":
		return "/index.html"
	case "/stat":
		return "/stat.html"
	case "/about":
		return "/about.html"
	case "/winner":
		return "/winner.html"
	case "/loser":
		return "/loser.html"
	case "/game":
		return "/game.html"
	}
	return url
}

// contentType picks the response type from the routed file name.
func contentType(url string) string {
	switch {
	case url == "/favicon.ico":
		return "image/png"
	case strings.HasSuffix(url, ".css"):
		return "text/css"
	case strings.HasSuffix(url, ".html"):
		return "text/html"
	case strings.HasSuffix(url, ".js"):
		return "text/javascript"
	case strings.HasSuffix(url, ".ttf"):
		return "font/ttf"
	}
	return "text/plain"
}

// handleStatic serves the asset behind the routed URL. Text assets get
// the per-request tokens substituted; HTML responses also make sure the
// client carries a sid cookie from its very first page load.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	url := route(r.URL.Path)
	name := filepath.Join(s.cfg.StaticDir, filepath.FromSlash(path.Clean("/"+url)))

	data, err := os.ReadFile(name)
	if err != nil {
		s.logger.Warn().Str("url", r.URL.Path).Msg("GET 404")
		s.serveNotFound(w)
		return
	}
	s.logger.Info().Str("url", r.URL.Path).Msg("GET")

	if utf8.Valid(data) {
		total, active := s.pool.Stats()
		data = []byte(strings.NewReplacer(
			"{host}", s.cfg.Addr,
			"{HEARTBIT_INTERVAL}", strconv.Itoa(int(s.cfg.Heartbeat.Seconds())),
			"{all_games}", strconv.FormatUint(total, 10),
			"{now_games}", strconv.FormatUint(active, 10),
		).Replace(string(data)))
	}

	ctype := contentType(url)
	if ctype == "text/html" {
		s.ensureSID(w, r)
	}
	w.Header().Set("Content-Type", ctype)
	_, _ = w.Write(data)
}

// serveNotFound renders the 404 page, or a bare status when even that
// file is missing.
func (s *Server) serveNotFound(w http.ResponseWriter) {
	data, err := os.ReadFile(filepath.Join(s.cfg.StaticDir, "404.html"))
	if err != nil {
		http.Error(w, "404 page not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write(data)
}

// ensureSID hands out a session id on the first page load. The cookie is
// the player's identity from then on, so it is HttpOnly and never
// reissued while present.
func (s *Server) ensureSID(w http.ResponseWriter, r *http.Request) {
	if sid, ok := sidFrom(r); ok {
		s.logger.Debug().Uint64("sid", sid).Msg("Known sid")
		return
	}
	sid := newSID()
	s.logger.Info().Uint64("sid", sid).Msg("New sid issued")
	http.SetCookie(w, &http.Cookie{
		Name:     "sid",
		Value:    strconv.FormatUint(sid, 10),
		HttpOnly: true,
	})
}

// sidFrom parses the sid cookie. Anything that is not an unsigned
// integer counts as absent.
func sidFrom(r *http.Request) (uint64, bool) {
	c, err := r.Cookie("sid")
	if err != nil {
		return 0, false
	}
	sid, err := strconv.ParseUint(strings.TrimSpace(c.Value), 10, 64)
	if err != nil {
		return 0, false
	}
	return sid, true
}

// newSID mints a random 64-bit session id.
func newSID() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("server: failed to generate session id: " + err.Error())
	}
	return binary.BigEndian.Uint64(b[:])
}
