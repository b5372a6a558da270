package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/timcryt/poker-durak/internal/randutil"
	"github.com/timcryt/poker-durak/internal/server"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version   kong.VersionFlag `short:"v" help:"Show version"`
	Addr      string           `kong:"arg,optional,help='Bind address (overrides the config file)'"`
	Config    string           `kong:"default='durak.hcl',help='Path to the HCL config file'"`
	StaticDir string           `kong:"help='Directory with the web client assets (overrides the config file)'"`
	Debug     bool             `kong:"help='Enable debug logging'"`
	Seed      *int64           `kong:"help='Deterministic RNG seed for the server (optional)'"`
}

func (c *CLI) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Addr = c.Addr
	}
	if c.StaticDir != "" {
		cfg.StaticDir = c.StaticDir
	}
	if c.Seed != nil {
		cfg.Seed = *c.Seed
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	if c.Debug {
		level = zerolog.DebugLevel
	}
	logger := setupLogger(level)

	seed := cfg.Seed
	if seed != 0 {
		logger.Info().Int64("seed", seed).Msg("Using deterministic seed")
	} else {
		seed = time.Now().UnixNano()
		logger.Info().Int64("seed", seed).Msg("Using random seed")
	}
	rng := randutil.New(seed)

	s := server.New(logger, rng, quartz.NewReal(), cfg)

	logger.Info().
		Str("address", cfg.Addr).
		Str("static_dir", cfg.StaticDir).
		Dur("heartbeat", cfg.Heartbeat).
		Dur("turn_timeout", cfg.TurnTimeout).
		Dur("disconnect_grace", cfg.DisconnectGrace).
		Int("max_players", cfg.MaxPlayers).
		Msg("Starting poker-durak server")

	ctx := signalContext(logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// setupLogger configures zerolog with pretty console output
func setupLogger(level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// signalContext creates a context that is cancelled on interrupt signals
func signalContext(logger zerolog.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info().Str("signal", sig.String()).Msg("Received signal, shutting down gracefully")
		cancel()
	}()

	return ctx
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("durak-server"),
		kong.Description("Multiplayer poker-durak game server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
