package app

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hexhub/platform/internal/broadcast"
	"github.com/hexhub/platform/internal/guard"
	"github.com/hexhub/platform/internal/handler"
	"github.com/hexhub/platform/internal/infra"
	"github.com/hexhub/platform/internal/service"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Service     *service.GameService
	Broadcaster *broadcast.Broadcaster
	Logger      *slog.Logger

	CORSOrigins    []string
	WSWriteTimeout time.Duration
	// CreateLimiter throttles POST /games per client. Nil disables it.
	CreateLimiter *guard.RateLimiter
	// Idempotency deduplicates mutations carrying X-Idempotency-Key. Nil disables it.
	Idempotency *guard.IdempotencyGuard
	Health      handler.HealthProbe
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger

	gameHandler := handler.NewGameHandler(deps.Service)
	playerHandler := handler.NewPlayerHandler(deps.Service)
	actionHandler := handler.NewActionHandler(deps.Service, deps.Idempotency)
	streamHandler := handler.NewStreamHandler(deps.Broadcaster, infra.NewUpgrader(deps.CORSOrigins), deps.WSWriteTimeout, logger)

	health := deps.Health
	if health.Games == nil {
		health.Games = deps.Service.GameCount
	}
	if health.Subscribers == nil {
		health.Subscribers = deps.Broadcaster.Subscribers
	}

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORS(deps.CORSOrigins))

	r.Get("/health", handler.HealthHandler(health))
	r.Get("/stream", streamHandler.Stream)

	r.Route("/games", func(r chi.Router) {
		create := r.With()
		if deps.CreateLimiter != nil {
			create = r.With(handler.RateLimit(deps.CreateLimiter))
		}
		create.Post("/", gameHandler.CreateGame)
		r.Get("/", gameHandler.ListGames)

		r.Route("/{game}", func(r chi.Router) {
			r.Get("/", gameHandler.GetGame)
			r.Delete("/", gameHandler.DeleteGame)
			r.Post("/start", gameHandler.StartGame)

			r.Post("/players", playerHandler.Join)
			r.Route("/players/{player}", func(r chi.Router) {
				r.Get("/", playerHandler.GetPlayer)
				r.Delete("/", playerHandler.Leave)
				r.Get("/monitor", playerHandler.Monitor)

				r.Post("/resources", actionHandler.ChangeResources)
				r.Post("/trade", actionHandler.Trade)
				r.Post("/take", actionHandler.Take)
				r.Post("/maritime", actionHandler.MaritimeTrade)
				r.Post("/purchase", actionHandler.Purchase)
				r.Post("/refund", actionHandler.Refund)
				r.Post("/devcards/play", actionHandler.PlayDevCard)
			})
		})
	})

	return r
}
