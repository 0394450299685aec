package server

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"pigeon-observer/src/helpers"
	"pigeon-observer/src/interfaces"
	"pigeon-observer/src/logger"
	"pigeon-observer/src/models"
	"pigeon-observer/src/ratelimit"
)

// -----------------------------------------------------------------------------
// ObserverServer
// -----------------------------------------------------------------------------

type ObserverServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine

	// Injected after construction to break the server <-> pipeline cycle
	Aggregator interfaces.IAggregator
	Limiter    *ratelimit.Limiter

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}

	// Subscription registry, shared between the hub loop and readPumps
	subsMu sync.RWMutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewObserverServer(cfg *models.MConfig, log *logger.Logger) *ObserverServer {
	if !strings.EqualFold(cfg.LogLevel, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &ObserverServer{
		Config:  cfg,
		Logger:  log,
		engine:  gin.Default(),
		clients: make(map[*Client]struct{}),
		// Buffered queue so fetch loops never block on slow sockets
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}

	// CORS for local dashboards
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-User-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *ObserverServer) setupRoutes() {
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/metrics", s.getMetrics)
	s.engine.GET("/api/config", s.getConfig)

	s.engine.GET("/api/prices/current", s.getCurrentPrices)
	s.engine.GET("/api/prices/history/:id", s.getHistoricalPrices)
	s.engine.GET("/api/sightings/current", s.getCurrentSightings)
	s.engine.GET("/api/sightings/history/:area", s.getHistoricalSightings)
	s.engine.POST("/api/aggregate", s.postAggregate)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *ObserverServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	go s.handleWebsockets()

	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------

func (s *ObserverServer) Stop() error {
	close(s.quit)
	return nil
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *ObserverServer) getHealth(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":      "ok",
		"connections": len(s.clients),
	})
}

// -----------------------------------------------------------------------------

func (s *ObserverServer) getMetrics(c *gin.Context) {
	windows := make([]models.MRateWindow, 0, len(s.Config.RateLimits))
	if s.Limiter != nil {
		for _, rl := range s.Config.RateLimits {
			windows = append(windows, s.Limiter.Window(rl.SourceID))
		}
	}

	c.JSON(200, gin.H{
		"connections":  len(s.clients),
		"rate_windows": windows,
	})
}

// -----------------------------------------------------------------------------

func (s *ObserverServer) getConfig(c *gin.Context) {
	c.JSON(200, gin.H{
		"areas":          s.Config.Upstreams.Areas,
		"coins":          s.Config.Upstreams.Coins,
		"default_bucket": s.Config.Correlation.DefaultBucket,
	})
}

// -----------------------------------------------------------------------------

func (s *ObserverServer) getCurrentPrices(c *gin.Context) {
	points, err := s.Aggregator.GetCurrentPrices(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(200, gin.H{"prices": points})
}

// -----------------------------------------------------------------------------

func (s *ObserverServer) getHistoricalPrices(c *gin.Context) {
	points, err := s.Aggregator.GetHistoricalPrices(c.Request.Context(), c.Param("id"), queryDays(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(200, gin.H{"prices": points})
}

// -----------------------------------------------------------------------------

func (s *ObserverServer) getCurrentSightings(c *gin.Context) {
	sightings, err := s.Aggregator.GetCurrentSightings(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(200, gin.H{"sightings": sightings})
}

// -----------------------------------------------------------------------------

func (s *ObserverServer) getHistoricalSightings(c *gin.Context) {
	sightings, err := s.Aggregator.GetHistoricalSightings(c.Request.Context(), c.Param("area"), queryDays(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(200, gin.H{"sightings": sightings})
}

// -----------------------------------------------------------------------------

func (s *ObserverServer) postAggregate(c *gin.Context) {
	var req models.MAggregationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
		return
	}

	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		userID = c.ClientIP()
	}

	resp, err := s.Aggregator.AggregateAndCorrelate(c.Request.Context(), userID, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(200, resp)
}

// -----------------------------------------------------------------------------

// respondError maps the failure taxonomy onto HTTP statuses.
func (s *ObserverServer) respondError(c *gin.Context, err error) {
	switch {
	case helpers.IsAdmissionRejected(err):
		c.JSON(429, gin.H{"error": err.Error(), "retryable": true})
	case helpers.IsRateLimited(err):
		c.JSON(429, gin.H{"error": err.Error(), "retryable": true})
	case helpers.IsAllSourcesExhausted(err):
		c.JSON(502, gin.H{"error": err.Error(), "retryable": false})
	default:
		s.Logger.Error("Request failed: %v", err)
		c.JSON(500, gin.H{"error": "internal error"})
	}
}

// -----------------------------------------------------------------------------

func queryDays(c *gin.Context) int {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 {
		return 7
	}
	return days
}
