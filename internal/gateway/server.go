package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xela07ax/strictgate/internal/audit"
	"github.com/xela07ax/strictgate/internal/cache"
	"github.com/xela07ax/strictgate/internal/engine"
	"github.com/xela07ax/strictgate/internal/infra"
	"github.com/xela07ax/strictgate/internal/infra/auth"
	"go.uber.org/zap"
)

// Server — HTTP-фасад шлюза. Обработчики тонкие: декодирование со строгим
// разбором, вызов ядра, кодирование конверта.
type Server struct {
	router  *chi.Mux
	logger  *zap.Logger
	cfg     *infra.Config
	manager *engine.Manager
	health  *engine.HealthManager
	cache   *cache.Client
	trail   audit.Recorder

	authValidator auth.TokenValidator
	registry      *prometheus.Registry
}

func NewServer(
	cfg *infra.Config,
	logger *zap.Logger,
	manager *engine.Manager,
	health *engine.HealthManager,
	cacheClient *cache.Client,
	trail audit.Recorder,
	authValidator auth.TokenValidator,
	registry *prometheus.Registry,
) *Server {
	s := &Server{
		router:        chi.NewRouter(),
		logger:        logger.Named("gateway"),
		cfg:           cfg,
		manager:       manager,
		health:        health,
		cache:         cacheClient,
		trail:         trail,
		authValidator: authValidator,
		registry:      registry,
	}

	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(TracingMiddleware)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ (Открыты для всех) ---
	r.Group(func(r chi.Router) {
		r.Get("/healthz", s.handleHealthz)
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР ---
	r.Group(func(r chi.Router) {
		if s.cfg.Auth.Enabled {
			r.Use(auth.NewMiddleware(s.authValidator, s.cfg.Auth.APIKeyHashes, s.logger))
		}

		r.Post("/v1/process", s.handleProcess)
		r.Get("/v1/stream", s.handleStream)

		r.Route("/v1/validate", func(r chi.Router) {
			r.Post("/signal", s.handleValidateSignal)
			r.Post("/ml", s.handleValidateML)
		})

		r.Get("/v1/reliability/failover", s.handleFailover)
	})
}
