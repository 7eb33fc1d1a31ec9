// Package admin exposes the local control surface the surrounding
// desktop application drives: lifecycle commands, session snapshots,
// metrics and the observer event stream.
package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/clipqueue/internal/observability"
	"github.com/danmuck/clipqueue/internal/protocol"
	"github.com/danmuck/clipqueue/internal/queue"
)

type Server struct {
	ID       string
	Addr     string
	Appeared time.Time

	queue *queue.Queue
	hub   *EventHub
	// memberName is the daemon-level display name, used when a
	// lifecycle request does not carry one.
	memberName string
	router     *gin.Engine
}

func New(id, addr, memberName string, q *queue.Queue, hub *EventHub, corsOrigins []string) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Server{
		ID:         id,
		Addr:       addr,
		Appeared:   time.Now(),
		queue:      q,
		hub:        hub,
		memberName: memberName,
		router:     r,
	}
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

type hostRequest struct {
	Port       int    `json:"port"`
	Password   string `json:"password"`
	QueueName  string `json:"queue_name"`
	MemberName string `json:"member_name"`
}

type joinRequest struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Password   string `json:"password"`
	MemberName string `json:"member_name"`
}

type sendRequest struct {
	Item protocol.ClipboardItem `json:"item"`
}

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"node":    s.ID,
			"version": "0.0.1",
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":   true,
			"uptime":  time.Since(s.Appeared).String(),
			"node":    s.ID,
			"version": "0.0.1",
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": s.queue.Status()})
	})

	s.router.GET("/members", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"members": s.queue.Members()})
	})

	s.router.GET("/events", func(c *gin.Context) {
		s.hub.Serve(c.Writer, c.Request)
	})

	s.router.POST("/host", func(c *gin.Context) {
		var req hostRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		st, err := s.queue.StartHost(req.Port, req.Password, req.QueueName, s.resolveMemberName(req.MemberName))
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": st})
	})

	s.router.POST("/join", func(c *gin.Context) {
		var req joinRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		st, err := s.queue.Join(req.Host, req.Port, req.Password, s.resolveMemberName(req.MemberName))
		if err != nil {
			c.JSON(joinErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": st})
	})

	s.router.POST("/leave", func(c *gin.Context) {
		s.queue.Leave()
		c.JSON(http.StatusOK, gin.H{"status": s.queue.Status()})
	})

	s.router.POST("/send", func(c *gin.Context) {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.queue.Send(req.Item)
		c.JSON(http.StatusOK, gin.H{"status": s.queue.Status()})
	})
}

// resolveMemberName falls back to the daemon-level display name when
// the request leaves it blank.
func (s *Server) resolveMemberName(requested string) string {
	if requested != "" {
		return requested
	}
	return s.memberName
}

func joinErrorStatus(err error) int {
	switch {
	case errors.Is(err, queue.ErrAuthRejected):
		return http.StatusUnauthorized
	case errors.Is(err, queue.ErrJoinTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) Serve() error {
	s.RegisterRoutes()
	return s.router.Run(s.Addr)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
