package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/api/handlers"
	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/api/middleware"
)

// RequestTimeout bounds every non-streaming request
const RequestTimeout = 60 * time.Second

// Config holds router configuration
type Config struct {
	HealthHandler  *handlers.HealthHandler
	DeskHandler    *handlers.DeskHandler
	TradingHandler *handlers.TradingHandler
	StreamHandler  *handlers.StreamHandler

	CORS         middleware.CORSConfig
	AccessLogger *zerolog.Logger // optional
}

// NewRouter creates a new HTTP router
func NewRouter(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(middleware.LoggingConfig{
		AccessLogger: cfg.AccessLogger,
		SkipPaths:    []string{"/health", "/health/ready"}, // Skip health checks to reduce noise
	}))
	r.Use(middleware.CORS(cfg.CORS))

	// Health checks (no /api prefix)
	r.Get("/health", cfg.HealthHandler.Health)
	r.Get("/health/ready", cfg.HealthHandler.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		// Streams are long-lived; no request timeout
		r.Get("/stream", cfg.StreamHandler.StreamEvents)
		r.Get("/ws", cfg.StreamHandler.StreamWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(RequestTimeout))

			// Cache snapshots
			r.Get("/quotes", cfg.DeskHandler.GetQuotes)
			r.Get("/quotes/{symbol}", cfg.DeskHandler.GetQuote)
			r.Get("/positions", cfg.DeskHandler.GetPositions)
			r.Get("/orders", cfg.DeskHandler.GetOrders)
			r.Get("/status", cfg.DeskHandler.GetStatus)
			r.Get("/stats", cfg.DeskHandler.GetStats)
			r.Post("/refresh", cfg.DeskHandler.Refresh)
			r.Put("/visibility", cfg.DeskHandler.SetVisibility)

			// Trading
			r.Post("/orders", cfg.TradingHandler.PlaceOrder)
			r.Delete("/orders/{order_id}", cfg.TradingHandler.CancelOrder)
			r.Post("/positions/{symbol}/close", cfg.TradingHandler.ClosePosition)
			r.Post("/trading/{action}", cfg.TradingHandler.Trading)
			r.Post("/connection/{action}", cfg.TradingHandler.Connection)
		})
	})

	return r
}
