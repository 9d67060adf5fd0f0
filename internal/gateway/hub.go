package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"backoffice/internal/models"
	"backoffice/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DecisionHandler applies approve/reject decisions sent by admins
type DecisionHandler interface {
	DecideOrder(ctx context.Context, tenantID string, orderID int64, adminID string, approve bool) (*models.Order, error)
}

// PresenceTracker mirrors who is connected; optional
type PresenceTracker interface {
	MarkOnline(ctx context.Context, tenantID, userID, role string) error
	MarkOffline(ctx context.Context, tenantID, userID string) error
}

// Options tunes connection handling
type Options struct {
	SendBuffer      int
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
	DecisionTimeout time.Duration
	AllowedOrigins  []string
}

func (o *Options) setDefaults() {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.DecisionTimeout <= 0 {
		o.DecisionTimeout = 10 * time.Second
	}
}

// Hub tracks websocket clients and fans notifications out per tenant
type Hub struct {
	mu        sync.RWMutex
	clients   map[*Client]struct{}
	decisions DecisionHandler
	presence  PresenceTracker
	opts      Options
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

// NewHub creates a hub. presence may be nil.
func NewHub(decisions DecisionHandler, presence PresenceTracker, opts Options) *Hub {
	opts.setDefaults()

	h := &Hub{
		clients:   make(map[*Client]struct{}),
		decisions: decisions,
		presence:  presence,
		opts:      opts,
		logger:    util.GetLogger(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.opts.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// ServeWS upgrades the request and runs the connection pumps
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h, conn)
	h.register(client)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	util.WebsocketConnections.Inc()
	h.logger.Debug("Websocket connected", zap.String("remote", c.conn.RemoteAddr().String()))
}

// unregister removes c and closes its send queue. Safe to call twice.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	id := c.identity()
	shared := id != nil && h.userConnectedLocked(id.TenantID, id.UserID)
	h.mu.Unlock()

	util.WebsocketConnections.Dec()

	// another tab of the same user keeps the presence entry alive
	if id != nil && !shared && h.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.presence.MarkOffline(ctx, id.TenantID, id.UserID); err != nil {
			h.logger.Warn("Failed to clear presence", zap.String("user_id", id.UserID), zap.Error(err))
		}
	}
}

func (h *Hub) userConnectedLocked(tenantID, userID string) bool {
	for other := range h.clients {
		if oid := other.identity(); oid != nil && oid.TenantID == tenantID && oid.UserID == userID {
			return true
		}
	}
	return false
}

// Broadcast sends env to every registered client of tenantID and returns
// how many clients it was queued for. Clients whose queue is full are dropped.
func (h *Hub) Broadcast(tenantID string, env models.Envelope) int {
	payload, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("Failed to marshal envelope", zap.String("type", env.Type), zap.Error(err))
		return 0
	}

	var slow []*Client
	delivered := 0

	h.mu.RLock()
	for c := range h.clients {
		id := c.identity()
		if id == nil || id.TenantID != tenantID {
			continue
		}
		select {
		case c.send <- payload:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		util.NotificationsDroppedTotal.WithLabelValues("slow_client").Inc()
		h.logger.Warn("Dropping slow websocket client", zap.String("remote", c.conn.RemoteAddr().String()))
		c.close()
	}

	util.NotificationsRelayedTotal.WithLabelValues(env.Type).Add(float64(delivered))
	return delivered
}

// RelayEvent broadcasts a notification event to its tenant
func (h *Hub) RelayEvent(_ context.Context, event models.Event) error {
	base := event.Base()
	env, err := models.NewEnvelope(base.EventType, "", event)
	if err != nil {
		return err
	}

	n := h.Broadcast(base.TenantID, env)
	h.logger.Debug("Relayed event",
		zap.String("event_type", base.EventType),
		zap.String("tenant_id", base.TenantID),
		zap.Int("clients", n))
	return nil
}

// ClientCount returns the number of open connections
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}
