package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Chat/internal/adapters/http"
	"github.com/dkeye/Chat/internal/adapters/relay"
	"github.com/dkeye/Chat/internal/adapters/store"
	"github.com/dkeye/Chat/internal/app/conn"
	"github.com/dkeye/Chat/internal/app/orch"
	"github.com/dkeye/Chat/internal/config"
	"github.com/dkeye/Chat/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	zerolog.SetGlobalLevel(cfg.Level())

	sessions, closeStore, err := openSessionStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open session store")
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error().Err(err).Str("module", "store").Msg("close session store")
		}
	}()

	dialer := relay.NewDialer(relay.Config{
		URL:        cfg.RelayURL,
		PingPeriod: cfg.PingPeriod,
		ReadLimit:  cfg.ReadLimit,
	})
	client := orch.New(dialer.Factory, sessions, orch.Config{
		Policy: conn.Policy{
			MaxAttempts:  cfg.Reconnect.MaxAttempts,
			InitialDelay: cfg.Reconnect.InitialDelay,
		},
		Grace:          cfg.RejoinGrace,
		TypingTimeout:  cfg.TypingTimeout,
		RequestTimeout: cfg.RequestTimeout,
	})

	loopCtx, stopLoop := context.WithCancel(context.Background())
	go client.Run(loopCtx)
	if err := client.Start(ctx); err != nil {
		log.Error().Err(err).Msg("start chat client")
	}

	r := router.SetupRouter(cfg, client)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("relay", cfg.RelayURL).Msg("Chat client started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := client.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("close chat client")
	}
	stopLoop()
	<-client.Loop.Done()
	log.Info().Msg("Client exited gracefully")
}

// openSessionStore returns the configured store and a func releasing it.
func openSessionStore(ctx context.Context, cfg *config.Config) (core.SessionStore, func() error, error) {
	if cfg.Session.Backend != "redis" {
		return store.NewMemory(), func() error { return nil }, nil
	}
	id := cfg.Session.ID
	if id == "" {
		id = uuid.NewString()
		log.Warn().Str("module", "store").Msg("empty session.id, the session will not survive a restart")
	}
	rdb, err := store.Connect(ctx, cfg.Session.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("module", "store").Str("addr", cfg.Session.RedisAddr).Str("session_id", id).Msg("using redis session store")
	return store.NewRedis(rdb, id, cfg.Session.TTL), rdb.Close, nil
}
