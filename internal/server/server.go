package server

import (
	"net/http"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/nulzo/prism-relay/internal/analytics"
	"github.com/nulzo/prism-relay/internal/config"
	"github.com/nulzo/prism-relay/internal/llm"
	"github.com/nulzo/prism-relay/internal/router"
	"github.com/nulzo/prism-relay/internal/server/middleware"
	v1 "github.com/nulzo/prism-relay/internal/server/v1"
	"github.com/nulzo/prism-relay/internal/server/validator"
	"go.uber.org/zap"
)

// Dependencies are the services the HTTP layer is built on. Analytics and Limiter
// are optional; a nil value leaves the matching routes or middleware out.
type Dependencies struct {
	Completer v1.Completer
	Engine    v1.Executor
	Catalog   llm.Catalog
	Policy    router.Policy
	Recorder  v1.RelayRecorder
	Analytics analytics.Service
	Limiter   middleware.Limiter
	Version   string
}

type Server struct {
	router *gin.Engine
	config *config.Config
	logger *zap.Logger
	deps   Dependencies
}

func New(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	validator.InitValidator()

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(middleware.RequestID())
	engine.Use(ginzap.RecoveryWithZap(logger, true))
	engine.Use(middleware.Logger(logger))
	if cfg.Tracing.Enabled {
		engine.Use(middleware.Tracing(cfg.Tracing.ServiceName))
	}

	s := &Server{
		router: engine,
		config: cfg,
		logger: logger,
		deps:   deps,
	}

	s.SetupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
