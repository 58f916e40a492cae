// Package api exposes the retrieval engine over HTTP: ingestion and
// retrieval endpoints, job progress polling and a websocket event
// stream.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/graphfuse/graphfuse/api/middleware"
	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/engine"
	"github.com/graphfuse/graphfuse/pkg/log"
)

// Server wraps the engine with a gin router and an HTTP listener.
type Server struct {
	cfg      *config.Config
	engine   *engine.Engine
	router   *gin.Engine
	server   *http.Server
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

func NewServer(cfg *config.Config, eng *engine.Engine) *Server {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Str("component", "api").Logger()

	s := &Server{
		cfg:    cfg,
		engine: eng,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origins := cfg.Server.CORSOrigins
				if len(origins) == 1 && origins[0] == "*" {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, allowed := range origins {
					if origin == allowed {
						return true
					}
				}
				return false
			},
		},
	}
	s.setupRouter()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) setupRouter() {
	if log.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(s.logger))
	router.Use(middleware.Recovery(s.logger))

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.cfg.Server.CORSOrigins) == 1 && s.cfg.Server.CORSOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.cfg.Server.CORSOrigins
		corsCfg.AllowCredentials = true
	}
	router.Use(cors.New(corsCfg))

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/health", s.handleHealth)
		apiGroup.GET("/status", s.handleStatus)

		apiGroup.POST("/ingest", s.handleIngest)
		apiGroup.POST("/ingest-text", s.handleIngestText)
		apiGroup.POST("/upload", s.handleUpload)
		apiGroup.POST("/test-sample", s.handleTestSample)

		apiGroup.POST("/search", s.handleSearch)
		apiGroup.POST("/query", s.handleQuery)

		apiGroup.GET("/processing-status/:id", s.handleProcessingStatus)
		apiGroup.POST("/cancel-processing/:id", s.handleCancelProcessing)
		apiGroup.GET("/processing-events/:id", s.handleProcessingEvents)

		apiGroup.POST("/reset", s.handleReset)
	}

	s.router = router
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.server.Addr).
		Str("vector_db", s.cfg.VectorDB).
		Str("graph_db", s.cfg.GraphDB).
		Str("search_db", s.cfg.SearchDB).
		Msg("starting server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and closes the engine.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return s.engine.Close()
}
