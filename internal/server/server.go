package server

import (
	"net/http"

	"backend-carbondrive/internal/auth"
	"backend-carbondrive/internal/config"
	"backend-carbondrive/internal/db"
	"backend-carbondrive/internal/metrics"
	"backend-carbondrive/internal/reward"
	"backend-carbondrive/internal/route"
	"backend-carbondrive/internal/stream"
	"backend-carbondrive/internal/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Stream   *stream.Hub
	Routes   *route.Aggregator
	Tracking *tracking.Service
	Logger   zerolog.Logger
}

// NewServer wires the engine onto a fiber app. db, redisClient and rewards
// are optional; without them sessions live only in memory, the route cache
// is process-local and rewards are not handed off.
func NewServer(cfg config.Config, pg *pgxpool.Pool, redisClient *redis.Client, rewards reward.Publisher, log zerolog.Logger) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     pg,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient, log),
		Logger: log,
	}
	s.Routes = route.NewAggregator(newProvider(cfg, redisClient, log), cfg.RouteTimeout, log)

	var q db.Querier
	if pg != nil {
		q = pg
	}
	s.Tracking = tracking.NewService(tracking.Deps{
		DB:         q,
		Hub:        s.Stream,
		Rewards:    rewards,
		Reconciler: s.Routes,
		Logger:     log,
	})

	registerRoutes(s)
	return s
}

func newProvider(cfg config.Config, redisClient *redis.Client, log zerolog.Logger) route.Provider {
	var p route.Provider = route.HaversineProvider{}
	if cfg.RouteProvider == config.ProviderGoogle {
		p = route.NewGoogleProvider(cfg.GoogleMapsAPIKey, cfg.GoogleMapsBaseURL, &http.Client{Timeout: cfg.RouteTimeout})
	}

	cached, err := route.NewCache(p, cfg.RouteCacheSize, redisClient, cfg.RouteCacheTTL, log)
	if err != nil {
		log.Warn().Err(err).Msg("route cache disabled")
		return p
	}
	return cached
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Get("/metrics", metrics.Handler())

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	tracking.RegisterRoutes(s.App.Group("/tracking"), s.Tracking, jwtMiddleware)
	route.RegisterRoutes(s.App.Group("/routes"), s.Routes)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, s.Tracking.SnapshotEvent)
}

// Close ends live sessions and stops the stream relay.
func (s *Server) Close() {
	s.Tracking.Shutdown()
	s.Stream.Close()
}
