package server

import (
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"life2gpx/internal/auth"
	"life2gpx/internal/config"
	"life2gpx/internal/daystore"
	"life2gpx/internal/filter"
	"life2gpx/internal/place"
	"life2gpx/internal/stream"
	"life2gpx/internal/timeline"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	Days   *daystore.Store
	Places *place.Store
	Filter *filter.Filter
	Redis  *redis.Client
	Stream *stream.Hub
}

func NewServer(cfg config.Config, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	days := daystore.NewStore(filepath.Join(cfg.DataDir, "days"))
	places := place.NewStore(filepath.Join(cfg.DataDir, "places.json"))
	places.Load()
	hub := stream.NewHub(redisClient)

	s := &Server{
		App:    app,
		Cfg:    cfg,
		Days:   days,
		Places: places,
		Filter: filter.New(filter.DefaultConfig(), days, places, filter.Options{
			Publisher: hub,
			StatePath: filepath.Join(cfg.DataDir, "filterstate.json"),
		}),
		Redis:  redisClient,
		Stream: hub,
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.Cfg.APIKeyHash))
	timeline.RegisterRoutes(s.App.Group("/timeline"), s.Days, s.Cfg.Location())
	daystore.RegisterRoutes(s.App.Group("/days"), s.Days, jwtMiddleware)
	place.RegisterRoutes(s.App.Group("/places"), s.Places, jwtMiddleware)
	filter.RegisterRoutes(s.App.Group("/fixes"), s.Filter, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
