// Package httpserver exposes the filing workflow over HTTP with gin.
package httpserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/acoyfellow/tax-agent/internal/limiter"
	"github.com/acoyfellow/tax-agent/internal/service"
	"github.com/acoyfellow/tax-agent/internal/tracker"
)

// maxBodyBytes caps inbound request bodies.
const maxBodyBytes = 8 << 20

// Pinger reports backend readiness for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds HTTP handlers and their dependencies.
type Server struct {
	svc     service.FilingService
	tracker tracker.Service
	health  Pinger
	senders limiter.Limiter
	log     *zap.Logger
	router  *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithCallbackLimiter locks out webhook senders after repeated bad signatures.
func WithCallbackLimiter(l limiter.Limiter) Option {
	return func(s *Server) { s.senders = l }
}

// New builds the router. health may be nil.
func New(svc service.FilingService, tr tracker.Service, health Pinger, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(RequestID(), Logging(log), Recovery(log))

	s := &Server{svc: svc, tracker: tr, health: health, log: log, router: r}
	for _, o := range opts {
		o(s)
	}

	r.GET("/healthz", s.handleHealth)

	v1 := r.Group("/v1")
	{
		v1.POST("/validate", s.handleValidate)
		v1.POST("/validate/batch", s.handleValidateBatch)
		v1.POST("/filings", s.handleFile)
		v1.POST("/filings/batch", s.handleFileBatch)

		v1.GET("/submissions", s.handleList)
		v1.GET("/submissions/:id", s.handleGet)
		v1.POST("/submissions/:id/transmit", s.handleTransmit)
		v1.POST("/submissions/:id/refresh", s.handleRefresh)

		v1.POST("/webhooks/provider", s.handleWebhook)
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }
