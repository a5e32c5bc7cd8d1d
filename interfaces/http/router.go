// Package http exposes the chat service over REST plus the embedded
// single-page UI.
package http

import (
	"context"
	"embed"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tolik-unicornrider/llm-bias-detector/application/analysis"
	appsession "github.com/tolik-unicornrider/llm-bias-detector/application/session"
	"github.com/tolik-unicornrider/llm-bias-detector/domain/chat"
	"github.com/tolik-unicornrider/llm-bias-detector/domain/persistence"
)

//go:embed static
var staticFS embed.FS

// HealthChecker reports readiness of a backing dependency.
type HealthChecker func(ctx context.Context) error

// Server bundles the HTTP handlers and their dependencies.
type Server struct {
	manager  *appsession.Manager
	analyzer *analysis.Service

	// nil when persistence is disabled
	dbHealth  HealthChecker
	processor func() persistence.ProcessorHealth
}

// NewServer builds the handler set. dbHealth and processorHealth may be nil.
func NewServer(manager *appsession.Manager, analyzer *analysis.Service, dbHealth HealthChecker, processorHealth func() persistence.ProcessorHealth) *Server {
	return &Server{
		manager:   manager,
		analyzer:  analyzer,
		dbHealth:  dbHealth,
		processor: processorHealth,
	}
}

// Router assembles the gin engine with middleware, API routes, probes, and
// the embedded UI.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	router.Use(corsMiddleware())

	indexHTML, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		// embed guarantees the file exists at build time
		panic(err)
	}
	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
	})

	api := router.Group("/api")
	{
		api.POST("/sessions", s.createSession)
		api.GET("/sessions/:id", s.getSession)
		api.POST("/sessions/:id/messages", s.submitMessage)
		api.POST("/sessions/:id/reset", s.resetSession)
		api.POST("/analyze", s.analyze)
	}

	router.GET("/live", s.live)
	router.GET("/ready", s.ready)
	router.GET("/health", s.health)

	return router
}

type submitRequest struct {
	Content  string          `json:"content" binding:"required"`
	Provider chat.ProviderID `json:"provider" binding:"required"`
}

type sessionResponse struct {
	ID        string          `json:"id"`
	Provider  chat.ProviderID `json:"provider"`
	StartTime time.Time       `json:"start_time"`
	Messages  []chat.Message  `json:"messages"`
}

func (s *Server) createSession(c *gin.Context) {
	created := s.manager.Create(c.Request.Context())
	c.JSON(http.StatusCreated, sessionResponse{
		ID:        created.ID.String(),
		Provider:  created.Provider,
		StartTime: created.StartTime,
		Messages:  []chat.Message{},
	})
}

func (s *Server) getSession(c *gin.Context) {
	snapshot, ok := s.manager.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, chat.ErrorResponse{Error: "session not found"})
		return
	}
	c.JSON(http.StatusOK, sessionResponse{
		ID:        snapshot.ID.String(),
		Provider:  snapshot.Provider,
		StartTime: snapshot.StartTime,
		Messages:  snapshot.Messages,
	})
}

func (s *Server) submitMessage(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, chat.ErrorResponse{Error: "content and provider are required"})
		return
	}

	reply, err := s.manager.Submit(c.Request.Context(), c.Param("id"), req.Content, req.Provider)
	if err != nil {
		status, body := mapSubmitError(err)
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": reply})
}

func (s *Server) resetSession(c *gin.Context) {
	s.manager.Reset(c.Request.Context(), c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (s *Server) analyze(c *gin.Context) {
	var params analysis.Params
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, chat.ErrorResponse{Error: "invalid analysis request"})
		return
	}

	report, err := s.analyzer.Run(c.Request.Context(), params)
	if err != nil {
		if pe, ok := chat.AsProviderError(err); ok {
			status, body := providerErrorResponse(pe)
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusUnprocessableEntity, chat.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// mapSubmitError translates session manager failures into HTTP responses.
// Provider failures stay in the body so the UI can render them inline next
// to the retained user message.
func mapSubmitError(err error) (int, chat.ErrorResponse) {
	if errors.Is(err, appsession.ErrSessionNotFound) {
		return http.StatusNotFound, chat.ErrorResponse{Error: "session not found"}
	}
	if pe, ok := chat.AsProviderError(err); ok {
		return providerErrorResponse(pe)
	}
	return http.StatusBadRequest, chat.ErrorResponse{Error: err.Error()}
}

func providerErrorResponse(pe *chat.ProviderError) (int, chat.ErrorResponse) {
	body := chat.ErrorResponse{Error: pe.Error(), Kind: string(pe.Kind)}
	switch pe.Kind {
	case chat.ErrKindMissingCredential:
		return http.StatusUnauthorized, body
	case chat.ErrKindRateLimited:
		return http.StatusTooManyRequests, body
	case chat.ErrKindProviderRejected:
		return http.StatusUnprocessableEntity, body
	default:
		return http.StatusBadGateway, body
	}
}

func (s *Server) live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) ready(c *gin.Context) {
	if s.dbHealth != nil {
		if err := s.dbHealth(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "database": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) health(c *gin.Context) {
	report := gin.H{"status": "healthy"}
	if s.dbHealth != nil {
		if err := s.dbHealth(c.Request.Context()); err != nil {
			report["status"] = "degraded"
			report["database"] = err.Error()
		} else {
			report["database"] = "ok"
		}
	}
	if s.processor != nil {
		report["event_processor"] = s.processor()
	}
	c.JSON(http.StatusOK, report)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		}).Info("HTTP request")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
