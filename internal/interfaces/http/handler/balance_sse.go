package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/auton8n/backend/internal/domain/credits"
	"github.com/auton8n/backend/internal/domain/shared"
	"github.com/auton8n/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SSEClient represents a connected SSE client
type SSEClient struct {
	ID     string
	UserID string
	Chan   chan SSEMessage
	Done   chan struct{}
}

// SSEMessage represents a message to be sent to SSE clients
type SSEMessage struct {
	Event string `json:"event"`
	Data  string `json:"data"`
	ID    string `json:"id,omitempty"`
}

// BalanceUpdateEvent is the payload pushed when a balance moves
type BalanceUpdateEvent struct {
	Balance int64  `json:"balance"`
	Delta   int64  `json:"delta"`
	Reason  string `json:"reason"`
}

// BalanceSSEHandler streams live balance updates to connected clients.
// It subscribes to balance change events on the event bus and fans each
// one out to the connections owned by that user only.
type BalanceSSEHandler struct {
	BaseHandler
	logger     *zap.Logger
	clients    sync.Map // map[string]*SSEClient
	ctx        context.Context
	cancel     context.CancelFunc
	heartbeat  time.Duration
	started    bool
	startMu    sync.Mutex
	maxClients int
}

// BalanceSSEOption is a functional option for configuring the handler
type BalanceSSEOption func(*BalanceSSEHandler)

// WithSSELogger sets the logger for the handler
func WithSSELogger(logger *zap.Logger) BalanceSSEOption {
	return func(h *BalanceSSEHandler) {
		h.logger = logger
	}
}

// WithSSEHeartbeat sets the heartbeat interval
func WithSSEHeartbeat(interval time.Duration) BalanceSSEOption {
	return func(h *BalanceSSEHandler) {
		h.heartbeat = interval
	}
}

// WithSSEMaxClients sets the maximum number of concurrent SSE clients
func WithSSEMaxClients(max int) BalanceSSEOption {
	return func(h *BalanceSSEHandler) {
		h.maxClients = max
	}
}

// NewBalanceSSEHandler creates a new SSE handler for balance updates
func NewBalanceSSEHandler(opts ...BalanceSSEOption) *BalanceSSEHandler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &BalanceSSEHandler{
		logger:     zap.NewNop(),
		ctx:        ctx,
		cancel:     cancel,
		heartbeat:  30 * time.Second,
		maxClients: 10000,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

var _ shared.EventHandler = (*BalanceSSEHandler)(nil)

// EventTypes returns the event types this handler subscribes to
func (h *BalanceSSEHandler) EventTypes() []string {
	return []string{credits.EventTypeBalanceChanged}
}

// Handle receives a balance change event from the bus and pushes it to
// the owning user's connections
func (h *BalanceSSEHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*credits.BalanceChangedEvent)
	if !ok {
		return nil
	}

	data, err := json.Marshal(BalanceUpdateEvent{
		Balance: changed.Balance,
		Delta:   changed.Delta,
		Reason:  string(changed.Reason),
	})
	if err != nil {
		h.logger.Error("Failed to marshal SSE event", zap.Error(err))
		return nil
	}

	h.broadcastToUser(changed.UserID().String(), SSEMessage{
		Event: "balance_updated",
		Data:  string(data),
		ID:    fmt.Sprintf("%d", changed.OccurredAt().UnixNano()),
	})
	return nil
}

// Start begins sending heartbeats to connected clients
func (h *BalanceSSEHandler) Start() error {
	h.startMu.Lock()
	defer h.startMu.Unlock()

	if h.started {
		return fmt.Errorf("SSE handler already started")
	}

	go h.sendHeartbeats()

	h.started = true
	h.logger.Info("Balance SSE handler started")
	return nil
}

// Stop stops the SSE handler and disconnects all clients
func (h *BalanceSSEHandler) Stop() {
	h.cancel()

	h.clients.Range(func(key, value any) bool {
		if client, ok := value.(*SSEClient); ok {
			close(client.Done)
		}
		return true
	})

	h.logger.Info("Balance SSE handler stopped")
}

// disconnect removes a client from the broadcast set. The channel is
// never closed: a broadcast that loaded the client from the map before
// removal may still send, and the buffered channel absorbs it.
func (h *BalanceSSEHandler) disconnect(client *SSEClient) {
	h.clients.Delete(client.ID)
}

// broadcastToUser sends a message to every connection owned by userID
func (h *BalanceSSEHandler) broadcastToUser(userID string, msg SSEMessage) {
	h.clients.Range(func(key, value any) bool {
		client, ok := value.(*SSEClient)
		if !ok || client.UserID != userID {
			return true
		}

		select {
		case client.Chan <- msg:
		default:
			// Channel full, client might be slow
			h.logger.Warn("Client channel full, dropping message",
				zap.String("client_id", client.ID))
		}
		return true
	})
}

// broadcast sends a message to all connected clients
func (h *BalanceSSEHandler) broadcast(msg SSEMessage) {
	h.clients.Range(func(key, value any) bool {
		if client, ok := value.(*SSEClient); ok {
			select {
			case client.Chan <- msg:
			default:
				h.logger.Warn("Client channel full, dropping message",
					zap.String("client_id", client.ID))
			}
		}
		return true
	})
}

// sendHeartbeats periodically pings clients to keep connections alive
func (h *BalanceSSEHandler) sendHeartbeats() {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.broadcast(SSEMessage{
				Event: "heartbeat",
				Data:  fmt.Sprintf(`{"timestamp":%d}`, time.Now().Unix()),
			})
		}
	}
}

// Stream establishes a Server-Sent Events connection for live balance
// updates for the authenticated user
func (h *BalanceSSEHandler) Stream(c *gin.Context) {
	if h.maxClients > 0 && h.GetClientCount() >= h.maxClients {
		c.JSON(503, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MAX_CONNECTIONS_REACHED",
				"message": "Maximum number of SSE connections reached",
			},
		})
		return
	}

	userID := middleware.GetJWTUserID(c)
	if userID == "" {
		h.Unauthorized(c, "Invalid user identity")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// Buffer size allows messages to queue without blocking broadcast
	const sseMessageBufferSize = 100
	client := &SSEClient{
		ID:     uuid.New().String(),
		UserID: userID,
		Chan:   make(chan SSEMessage, sseMessageBufferSize),
		Done:   make(chan struct{}),
	}

	h.clients.Store(client.ID, client)
	defer h.disconnect(client)

	h.logger.Info("SSE client connected",
		zap.String("client_id", client.ID),
		zap.String("user_id", userID))

	h.sendEvent(c.Writer, SSEMessage{
		Event: "connected",
		Data:  fmt.Sprintf(`{"client_id":"%s","timestamp":%d}`, client.ID, time.Now().Unix()),
	})
	c.Writer.Flush()

	reqCtx := c.Request.Context()

	for {
		select {
		case <-reqCtx.Done():
			h.logger.Info("SSE client disconnected (request context done)",
				zap.String("client_id", client.ID))
			return
		case <-client.Done:
			h.logger.Info("SSE client disconnected (done signal)",
				zap.String("client_id", client.ID))
			return
		case <-h.ctx.Done():
			h.logger.Info("SSE handler stopped, disconnecting client",
				zap.String("client_id", client.ID))
			return
		case msg := <-client.Chan:
			h.sendEvent(c.Writer, msg)
			c.Writer.Flush()
		}
	}
}

// sendEvent writes an SSE event to the response writer
func (h *BalanceSSEHandler) sendEvent(w io.Writer, msg SSEMessage) {
	if msg.Event != "" {
		fmt.Fprintf(w, "event: %s\n", msg.Event)
	}
	if msg.ID != "" {
		fmt.Fprintf(w, "id: %s\n", msg.ID)
	}
	fmt.Fprintf(w, "data: %s\n\n", msg.Data)
}

// GetClientCount returns the number of connected SSE clients
func (h *BalanceSSEHandler) GetClientCount() int {
	count := 0
	h.clients.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
