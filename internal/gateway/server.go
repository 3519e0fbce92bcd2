package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tradepipe/internal/models"
	"github.com/tradepipe/internal/pubsub"
	"github.com/tradepipe/internal/queue"
	"github.com/tradepipe/internal/service"
	"github.com/tradepipe/pkg/response"
)

// Server is the client-facing gateway: REST auth plus the websocket
// endpoint clients submit actions on and receive events from.
type Server struct {
	registry    *ConnRegistry
	queue       *queue.Queue
	authService *service.AuthService
	subscriber  *pubsub.Subscriber
	upgrader    websocket.Upgrader
	logger      zerolog.Logger
}

// NewServer creates a gateway Server.
func NewServer(q *queue.Queue, authService *service.AuthService, subscriber *pubsub.Subscriber, logger zerolog.Logger) *Server {
	return &Server{
		registry:    NewConnRegistry(),
		queue:       q,
		authService: authService,
		subscriber:  subscriber,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "gateway").Logger(),
	}
}

// Router builds the gin router with all gateway routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"clients": s.registry.Count(),
		})
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/register", s.handleRegister)
		v1.POST("/auth/login", s.handleLogin)
	}

	router.GET("/ws", s.handleWebSocket)

	return router
}

// Run consumes the fan-out channel, delivering each envelope's payload to
// the addressed user's connection. Envelopes for users not connected to
// this gateway instance are dropped.
func (s *Server) Run(ctx context.Context) {
	s.subscriber.Run(ctx, func(env models.Envelope) {
		client := s.registry.Get(env.UserID)
		if client == nil {
			return
		}
		if err := client.Send(env.Payload); err != nil {
			s.logger.Warn().Err(err).Str("user_id", env.UserID).Msg("event delivery failed")
		}
	})
}

func (s *Server) handleRegister(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := s.authService.Register(&req)
	if err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			response.Conflict(c, "username already taken")
			return
		}
		response.InternalError(c, "failed to register user")
		return
	}

	response.Created(c, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	token, err := s.authService.Login(&req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(c, "invalid username or password")
			return
		}
		response.InternalError(c, "failed to login")
		return
	}

	response.Success(c, token)
}
