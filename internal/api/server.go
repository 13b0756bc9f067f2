// Package api exposes a read-only status server for the copy-trade bot:
// health, last-cycle stats, broker positions and the order-history ledger.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"copytrade-bot/config"
	"copytrade-bot/internal/bot"
	"copytrade-bot/internal/circuit"
	"copytrade-bot/internal/exchange"
	"copytrade-bot/internal/ledger"
	"copytrade-bot/internal/logging"
)

// Engine is the surface the server needs from the polling engine.
type Engine interface {
	IsRunning() bool
	LastCycle() bot.CycleStats
	CircuitState() circuit.BreakerState
	CircuitStats() map[string]interface{}
}

// Server serves the status API.
type Server struct {
	router   *gin.Engine
	cfg      config.ServerConfig
	engine   Engine
	exchange exchange.Client
	store    *ledger.FileStore
	logger   zerolog.Logger
	httpSrv  *http.Server
}

// NewServer builds the router and handlers.
func NewServer(cfg config.ServerConfig, engine Engine, exch exchange.Client, store *ledger.FileStore, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "" || cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:   router,
		cfg:      cfg,
		engine:   engine,
		exchange: exch,
		store:    store,
		logger:   logging.Component(logger, "API"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/positions", s.handlePositions)
		api.GET("/ledger", s.handleLedger)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"running":       s.engine.IsRunning(),
		"circuit_state": string(s.engine.CircuitState()),
		"circuit":       s.engine.CircuitStats(),
		"last_cycle":    s.engine.LastCycle(),
	})
}

func (s *Server) handlePositions(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	positions, err := s.exchange.GetAllPositions(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if positions == nil {
		positions = []exchange.Position{}
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (s *Server) handleLedger(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Load())
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the HTTP server in a goroutine; errors other than a clean
// shutdown are logged.
func (s *Server) Start() {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Second,
	}

	go func() {
		s.logger.Info().Str("addr", addr).Msg("Status API listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Status API server failed")
		}
	}()
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
