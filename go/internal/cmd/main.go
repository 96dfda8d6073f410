package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/roomsync/go/internal/client"
	"github.com/mcdev12/roomsync/go/internal/config"
	"github.com/mcdev12/roomsync/go/internal/relay"
	"github.com/mcdev12/roomsync/go/internal/session"
	"github.com/mcdev12/roomsync/go/internal/usercache"
	"github.com/mcdev12/roomsync/go/internal/whiteboard"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := client.Options{
		ServerURL:      cfg.Server.URL,
		Connection:     cfg.ConnectionConfig(),
		HTTPTimeout:    cfg.Server.HTTPTimeout,
		TypingDebounce: cfg.Typing.Debounce,
		LookupTimeout:  cfg.Cache.LookupTimeout,
		TokenFile:      session.NewTokenFile(tokenPath(cfg)),
		Renderer:       whiteboard.NewSurface(),
	}

	if cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr, DB: cfg.Cache.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("redis unreachable, caching users in memory")
			rdb.Close()
		} else {
			store := usercache.NewRedisStore(rdb, cfg.Cache.RedisPrefix)
			defer store.Close()
			opts.CacheStore = store
		}
	}

	if cfg.RelayEnabled() {
		publisher, err := relay.NewPublisher(ctx, cfg.RelayConfig())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start NATS relay")
		}
		defer publisher.Close()
		opts.Relay = publisher
	}

	log.Info().
		Str("server_url", cfg.Server.URL).
		Bool("relay", cfg.RelayEnabled()).
		Bool("redis_cache", cfg.Cache.RedisAddr != "").
		Msg("starting roomsync")

	term := newTerminal(os.Stdout)
	c := client.New(opts, term)
	term.client = c
	defer c.Close()

	healthCtx, healthCancel := context.WithTimeout(ctx, requestTimeout)
	if err := c.Health(healthCtx); err != nil {
		log.Warn().Err(err).Str("server_url", cfg.Server.URL).Msg("server health check failed")
	}
	healthCancel()

	if s := c.Restore(); s != nil {
		term.Notify("Logged in as " + s.Username)
	} else if cfg.User.Username != "" {
		term.handle(ctx, "/login "+cfg.User.Username)
	}
	if cfg.User.Room != "" && c.Session() != nil {
		term.handle(ctx, "/join "+cfg.User.Room)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("received shutdown signal")
			return
		case line, ok := <-lines:
			if !ok || term.handle(ctx, line) {
				return
			}
		}
	}
}

// tokenPath is the configured token file, or one under the user config dir
func tokenPath(cfg *config.Config) string {
	if cfg.User.TokenFile != "" {
		return cfg.User.TokenFile
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "roomsync", "token")
}
