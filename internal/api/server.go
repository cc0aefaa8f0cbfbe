package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OhSeongHyeon/mocktalkfront/internal/client"
	"github.com/OhSeongHyeon/mocktalkfront/internal/logutil"
	"github.com/OhSeongHyeon/mocktalkfront/internal/store"
)

// Options configures the local status server.
type Options struct {
	// Token guards the mutating routes; empty disables those routes.
	Token string
	// History is optional; /history answers 404 without it.
	History *store.Store
}

// Server wraps the Gin engine and associated configuration.
type Server struct {
	engine *gin.Engine
}

// NewServer constructs a Server exposing the state of one client.
func NewServer(c *client.Client, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	h := &handler{client: c, history: opts.History}
	engine := gin.New()
	engine.Use(gin.Recovery(), observe())

	engine.GET("/healthz", h.health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/session", h.session)
	engine.GET("/channels", h.channels)
	engine.GET("/history", h.listHistory)

	protected := engine.Group("/")
	protected.Use(requireToken(opts.Token))
	protected.POST("/session/logout", h.logout)

	return &Server{engine: engine}
}

// Engine exposes the underlying Gin engine for advanced use (testing, etc.).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start launches the HTTP server on the provided address.
func (s *Server) Start(addr string) *http.Server {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logutil.Error("status server stopped", err, map[string]interface{}{"addr": addr})
		}
	}()
	return srv
}
