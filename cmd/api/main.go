package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-carbondrive/internal/config"
	"backend-carbondrive/internal/db"
	"backend-carbondrive/internal/logging"
	"backend-carbondrive/internal/reward"
	"backend-carbondrive/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	connectRewards  func(config.Config) (*reward.NATSPublisher, error)
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, reward.Publisher, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		connectRewards:  connectRewards,
		notify:          signal.Notify,
		run:             Run,
	}
}

func connectRewards(cfg config.Config) (*reward.NATSPublisher, error) {
	if cfg.NATSURL == "" {
		return nil, nil
	}
	return reward.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject)
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("postgres connection failed, sessions will not be persisted")
		pg = nil
	}
	if pg != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.EnsureSchema(ctx, pg); err != nil {
			log.Error().Err(err).Msg("schema setup failed")
		}
		cancel()
	}

	rdb := deps.connectRedis(cfg)

	var rewards reward.Publisher
	pub, err := deps.connectRewards(cfg)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("nats connection failed, rewards will not be handed off")
	case pub != nil:
		rewards = pub
		defer pub.Close()
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, rewards, signals, nil); err != nil {
		log.Error().Err(err).Msg("server exited with error")
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, rewards reward.Publisher, signals <-chan os.Signal, listen ListenFunc) error {
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	srv := server.NewServer(cfg, pg, rdb, rewards, log)

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()
	log.Info().Str("addr", cfg.ServerPort).Str("route_provider", cfg.RouteProvider).Msg("carbondrive tracking engine listening")

	select {
	case sig := <-signals:
		log.Info().Str("signal", fmt.Sprint(sig)).Msg("shutting down")
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	srv.Close()
	closeResources(pg, rdb, log)
	return nil
}

func closeResources(pg *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) {
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Debug().Err(err).Msg("redis close")
		}
	}
}
