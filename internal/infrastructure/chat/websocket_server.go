package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"
	"vlsnet/internal/core/services"
	"vlsnet/internal/infrastructure/middleware"
	apperrors "vlsnet/pkg/errors"
	"vlsnet/pkg/tracing"
	"vlsnet/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// CloseCodeBanned is sent to a banned user right after the upgrade.
const CloseCodeBanned = 4003

// DefaultMaxMessageBytes fits a maximum length message of four byte runes
// plus surrounding whitespace.
const DefaultMaxMessageBytes = 4*domain.MaxChatMessageRunes + 1024

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSlowConsumer     = errors.New("send buffer full")
)

type ServerConfig struct {
	PingInterval      time.Duration
	PongTimeout       time.Duration
	WriteTimeout      time.Duration
	SendBuffer        int
	MaxMessageBytes   int64
	MessagesPerSecond float64
	Burst             int
	AllowedOrigins    []string
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		PingInterval:      30 * time.Second,
		PongTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SendBuffer:        64,
		MaxMessageBytes:   DefaultMaxMessageBytes,
		MessagesPerSecond: 5,
		Burst:             10,
	}
}

// Client is one websocket connection subscribed to a single stream's chat.
type Client struct {
	id       string
	actor    domain.Actor
	streamID domain.StreamID
	conn     *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	closeCode   int
	closeReason string
}

func (c *Client) ID() string { return c.id }

// Send queues frame for the writer goroutine. It never blocks: a full buffer
// closes the connection and reports ErrSlowConsumer.
func (c *Client) Send(frame []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		c.closeWith(websocket.ClosePolicyViolation, "slow consumer")
		return ErrSlowConsumer
	}
}

func (c *Client) closeWith(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type WebSocketServer struct {
	tokens     ports.TokenService
	streams    ports.StreamService
	moderation ports.ModerationService
	chat       ports.ChatService
	fanout     ports.ChatFanout
	metrics    ports.ChatMetrics

	upgrader websocket.Upgrader
	cfg      ServerConfig

	clients map[string]*Client
	mu      sync.RWMutex

	logger *zap.SugaredLogger
}

func NewWebSocketServer(
	tokens ports.TokenService,
	streams ports.StreamService,
	moderation ports.ModerationService,
	chat ports.ChatService,
	fanout ports.ChatFanout,
	metrics ports.ChatMetrics,
	cfg ServerConfig,
	logger *zap.SugaredLogger,
) *WebSocketServer {
	defaults := DefaultServerConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaults.PingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaults.PongTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaults.SendBuffer
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = defaults.MaxMessageBytes
	}
	if metrics == nil {
		metrics = services.NopMetrics
	}

	s := &WebSocketServer{
		tokens:     tokens,
		streams:    streams,
		moderation: moderation,
		chat:       chat,
		fanout:     fanout,
		metrics:    metrics,
		cfg:        cfg,
		clients:    make(map[string]*Client),
		logger:     logger,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin:     s.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return s
}

func (s *WebSocketServer) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// HandleChat serves GET /ws/streams/:id/chat.
//
// Authentication and the stream lookup happen before the upgrade so that
// failures are plain HTTP errors. A banned user is upgraded and then closed
// with CloseCodeBanned.
func (s *WebSocketServer) HandleChat(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		_ = c.Error(apperrors.NewInvalidInputError("invalid stream id"))
		c.Abort()
		return
	}
	streamID := domain.StreamID(id)

	token := middleware.BearerToken(c)
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		_ = c.Error(apperrors.NewUnauthorizedError("missing access token"))
		c.Abort()
		return
	}
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	if _, err := s.streams.GetStream(ctx, streamID); err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "stream_id", streamID, "error", err)
		return
	}

	actor := claims.Actor()
	verdict, err := s.moderation.CheckAdmission(ctx, streamID, actor.ID)
	if err != nil {
		s.logger.Errorw("admission check failed", "stream_id", streamID, "user_id", actor.ID, "error", err)
		s.reject(conn, websocket.CloseInternalServerErr, "admission check failed")
		return
	}
	if verdict == domain.VerdictBanned {
		s.logger.Infow("banned user rejected from chat", "stream_id", streamID, "user_id", actor.ID)
		s.reject(conn, CloseCodeBanned, "banned")
		return
	}

	client := &Client{
		id:       utils.NewConnectionID(),
		actor:    actor,
		streamID: streamID,
		conn:     conn,
		send:     make(chan []byte, s.cfg.SendBuffer),
		done:     make(chan struct{}),
	}
	s.serve(client)
}

func (s *WebSocketServer) reject(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(s.cfg.WriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	conn.Close()
}

func (s *WebSocketServer) serve(client *Client) {
	conn := client.conn

	s.mu.Lock()
	s.clients[client.id] = client
	s.mu.Unlock()

	s.fanout.Subscribe(client.streamID, client)
	s.metrics.ConnectionOpened()
	s.logger.Infow("chat connection opened",
		"conn_id", client.id,
		"stream_id", client.streamID,
		"user_id", client.actor.ID,
	)

	writerDone := make(chan struct{})
	go s.writePump(client, writerDone)

	conn.SetReadLimit(s.cfg.MaxMessageBytes)
	conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	var limiter *rate.Limiter
	if s.cfg.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), max(s.cfg.Burst, 1))
	}

	messageChan := make(chan []byte)
	errorChan := make(chan error, 1)

	go func() {
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				errorChan <- err
				return
			}
			if msgType != websocket.TextMessage {
				continue
			}
			conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
			select {
			case messageChan <- data:
			case <-client.done:
				return
			}
		}
	}()

	// Inbound frames are handled one at a time, in arrival order.
	for {
		select {
		case data := <-messageChan:
			if limiter != nil && !limiter.Allow() {
				s.metrics.MessageDropped("rate_limited")
				s.logger.Debugw("chat frame rate limited", "conn_id", client.id, "user_id", client.actor.ID)
				continue
			}
			s.handleFrame(client, data)

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Infow("chat connection read error", "conn_id", client.id, "error", err)
			}
			goto cleanup

		case <-client.done:
			goto cleanup
		}
	}

cleanup:
	s.fanout.UnsubscribeAll(client)
	client.closeWith(websocket.CloseNormalClosure, "")
	<-writerDone
	conn.Close()

	s.mu.Lock()
	delete(s.clients, client.id)
	s.mu.Unlock()

	s.metrics.ConnectionClosed()
	s.logger.Infow("chat connection closed",
		"conn_id", client.id,
		"stream_id", client.streamID,
		"user_id", client.actor.ID,
	)
}

// handleFrame passes the text frame to the pipeline as the message body.
func (s *WebSocketServer) handleFrame(client *Client, data []byte) {
	ctx, span := tracing.TraceChatFrame(context.Background(), client.id)
	defer span.End()

	_, err := s.chat.HandleInbound(ctx, client.streamID, client.actor, string(data))
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrMessageDropped):
		// the sender is not told about moderation drops
	case errors.Is(err, domain.ErrInvalidChatInput):
		s.sendError(client, err.Error())
	default:
		s.logger.Warnw("failed to handle chat message",
			"conn_id", client.id,
			"stream_id", client.streamID,
			"error", err,
		)
		s.sendError(client, "message could not be delivered")
	}
}

func (s *WebSocketServer) sendError(client *Client, message string) {
	frame, err := json.Marshal(errorFrame{Type: "error", Message: message})
	if err != nil {
		return
	}
	_ = client.Send(frame)
}

func (s *WebSocketServer) writePump(client *Client, finished chan<- struct{}) {
	conn := client.conn
	pingTicker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		pingTicker.Stop()
		close(finished)
	}()

	for {
		select {
		case frame := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Debugw("chat write failed", "conn_id", client.id, "error", err)
				client.closeWith(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Debugw("chat ping failed", "conn_id", client.id, "error", err)
				client.closeWith(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-client.done:
			if client.closeCode != websocket.CloseAbnormalClosure {
				deadline := time.Now().Add(s.cfg.WriteTimeout)
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(client.closeCode, client.closeReason), deadline)
			}
			return
		}
	}
}

// ConnectionCount is the number of open chat connections.
func (s *WebSocketServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Shutdown closes every open connection with 1001 (going away).
func (s *WebSocketServer) Shutdown() {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for _, client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.RUnlock()

	for _, client := range clients {
		client.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
}
