package gateway

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tradepipe/internal/models"
	"github.com/tradepipe/internal/queue"
)

// Connection-level control actions handled by the gateway itself rather
// than dispatched to workers as trading jobs.
const (
	actionStartOrderBook  = "start_orderbook"
	actionStopOrderBook   = "stop_orderbook"
	actionStopPersistence = "stop_orderbook_persistence"
)

// authMessage is the first message on a new websocket connection. Either a
// JWT from the login endpoint or a bare user id identifies the client.
type authMessage struct {
	Token       string `json:"token,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	AccountName string `json:"account_name,omitempty"`
}

// clientMessage is any message after the handshake. Trading actions carry
// the full request; control actions use the exchange/symbol/interval
// fields only.
type clientMessage struct {
	models.TradeRequest
	IntervalSeconds int `json:"interval_seconds,omitempty"`
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	var auth authMessage
	if err := conn.ReadJSON(&auth); err != nil {
		return
	}

	client, ok := s.authenticate(conn, &auth)
	if !ok {
		conn.WriteJSON(gin.H{"status": "error", "message": "Authentication required (token or user_id)"})
		return
	}

	if old := s.registry.Register(client); old != nil {
		old.conn.Close()
	}
	defer s.disconnect(client)

	client.Send(gin.H{"status": "connected", "user_id": client.UserID})

	logger := s.logger.With().Str("user_id", client.UserID).Logger()
	logger.Info().Msg("client connected")

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			logger.Info().Msg("client disconnected")
			return
		}
		s.dispatch(c.Request.Context(), client, &msg, logger)
	}
}

// authenticate resolves the client identity from the handshake message.
// A valid JWT wins; otherwise a bare user_id is accepted, matching clients
// that manage their own identities.
func (s *Server) authenticate(conn *websocket.Conn, auth *authMessage) (*Client, bool) {
	if auth.Token != "" {
		claims, err := s.authService.ValidateToken(auth.Token)
		if err != nil {
			return nil, false
		}
		return &Client{
			UserID:      claims.Username,
			AccountName: auth.AccountName,
			conn:        conn,
		}, true
	}
	if auth.UserID != "" {
		return &Client{
			UserID:      auth.UserID,
			AccountName: auth.AccountName,
			conn:        conn,
		}, true
	}
	return nil, false
}

func (s *Server) dispatch(ctx context.Context, client *Client, msg *clientMessage, logger zerolog.Logger) {
	switch string(msg.Action) {
	case actionStartOrderBook:
		s.startPersistence(ctx, client, msg, logger)
	case actionStopPersistence:
		s.stopPersistence(ctx, client, logger)
	case actionStopOrderBook:
		// Polling is a client-side concern; acknowledge so the client can
		// tear down its loop.
		client.Send(gin.H{"action": actionStopOrderBook, "status": "stopped"})
	default:
		s.enqueueTrade(ctx, client, msg, logger)
	}
}

func (s *Server) enqueueTrade(ctx context.Context, client *Client, msg *clientMessage, logger zerolog.Logger) {
	req := msg.TradeRequest
	req.UserID = client.UserID
	if req.AccountName == "" {
		req.AccountName = client.AccountName
	}

	if !models.TradingActions[req.Action] {
		client.Send(gin.H{"status": "error", "message": "Unknown action: " + string(req.Action)})
		return
	}
	if err := req.Validate(); err != nil {
		client.Send(gin.H{"status": "error", "message": err.Error()})
		return
	}

	job := &queue.Job{
		ID:         uuid.NewString(),
		Kind:       queue.JobKindTrade,
		Request:    &req,
		EnqueuedAt: time.Now().UnixMilli(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		logger.Error().Err(err).Msg("failed to enqueue trade job")
		client.Send(gin.H{"status": "error", "message": "Failed to queue request"})
		return
	}

	client.Send(gin.H{"status": "processing", "action": req.Action})
}

func (s *Server) startPersistence(ctx context.Context, client *Client, msg *clientMessage, logger zerolog.Logger) {
	if msg.Exchange == "" || msg.Params.Symbol == "" {
		client.Send(gin.H{"status": "error", "message": "Missing required data (exchange, symbol)"})
		return
	}

	job := &queue.Job{
		ID:   uuid.NewString(),
		Kind: queue.JobKindRecordOrderBook,
		Record: &queue.RecordParams{
			Exchange:        msg.Exchange,
			Symbol:          msg.Params.Symbol,
			IntervalSeconds: msg.IntervalSeconds,
		},
		EnqueuedAt: time.Now().UnixMilli(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		logger.Error().Err(err).Msg("failed to enqueue record job")
		client.Send(gin.H{"status": "error", "message": "Failed to queue request"})
		return
	}

	// One persistence job per connection; starting a new one revokes the old.
	if prev := client.SetPersistenceJob(job.ID); prev != "" {
		if err := s.queue.Revoke(ctx, prev); err != nil {
			logger.Warn().Err(err).Str("job_id", prev).Msg("failed to revoke previous persistence job")
		}
	}

	client.Send(gin.H{"action": actionStartOrderBook, "status": "processing", "job_id": job.ID})
}

func (s *Server) stopPersistence(ctx context.Context, client *Client, logger zerolog.Logger) {
	jobID := client.SetPersistenceJob("")
	if jobID == "" {
		client.Send(gin.H{"status": "error", "message": "No active persistence task found."})
		return
	}

	if err := s.queue.Revoke(ctx, jobID); err != nil {
		logger.Error().Err(err).Str("job_id", jobID).Msg("failed to revoke persistence job")
		client.Send(gin.H{"status": "error", "message": "Failed to stop persistence task"})
		return
	}

	client.Send(gin.H{"action": actionStopPersistence, "status": "stopped"})
}

// disconnect revokes any persistence job still running for the connection
// and removes it from the registry.
func (s *Server) disconnect(client *Client) {
	if jobID := client.SetPersistenceJob(""); jobID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.queue.Revoke(ctx, jobID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("failed to revoke persistence job on disconnect")
		}
	}
	s.registry.Unregister(client)
	s.logger.Info().Str("user_id", client.UserID).Msg("client unregistered")
}
