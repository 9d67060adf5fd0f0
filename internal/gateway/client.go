package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"backoffice/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxMessageSize = 64 * 1024

var (
	errNotRegistered = errors.New("register before sending decisions")
	errAdminMismatch = errors.New("adminId does not match registered user")
)

// Client is one websocket connection
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	mu        sync.RWMutex
	id        *models.RegisterPayload
	closeOnce sync.Once
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.opts.SendBuffer),
	}
}

func (c *Client) identity() *models.RegisterPayload {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.refreshPresence()
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("Websocket read error", zap.Error(err))
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.sendError("invalid frame")
			continue
		}
		c.handle(env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.opts.PongTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handle(env models.Envelope) {
	switch env.Type {
	case models.MessageRegister:
		c.ack(env.ID, c.handleRegister(env))

	case models.EventTypeApproveOrder, models.EventTypeRejectOrder:
		c.ack(env.ID, c.handleDecision(env))

	default:
		c.sendError(fmt.Sprintf("unknown message type %q", env.Type))
	}
}

func (c *Client) handleRegister(env models.Envelope) error {
	var reg models.RegisterPayload
	if err := env.Decode(&reg); err != nil {
		return err
	}
	if reg.UserID == "" || reg.TenantID == "" {
		return errors.New("userId and tenantId are required")
	}
	if !models.ValidRole(reg.Role) {
		return fmt.Errorf("role %q may not subscribe", reg.Role)
	}

	c.mu.Lock()
	c.id = &reg
	c.mu.Unlock()

	c.hub.logger.Info("Websocket client registered",
		zap.String("tenant_id", reg.TenantID),
		zap.String("user_id", reg.UserID),
		zap.String("role", reg.Role))

	c.refreshPresence()
	return nil
}

// refreshPresence re-marks a registered client online; presence entries expire otherwise
func (c *Client) refreshPresence() {
	id := c.identity()
	if id == nil || c.hub.presence == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.hub.presence.MarkOnline(ctx, id.TenantID, id.UserID, id.Role); err != nil {
		c.hub.logger.Warn("Failed to record presence", zap.String("user_id", id.UserID), zap.Error(err))
	}
}

func (c *Client) handleDecision(env models.Envelope) error {
	id := c.identity()
	if id == nil {
		return errNotRegistered
	}

	var req models.DecisionPayload
	if err := env.Decode(&req); err != nil {
		return err
	}
	if req.AdminID == "" {
		req.AdminID = id.UserID
	}
	if req.AdminID != id.UserID {
		return errAdminMismatch
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.hub.opts.DecisionTimeout)
	defer cancel()

	approve := env.Type == models.EventTypeApproveOrder
	if _, err := c.hub.decisions.DecideOrder(ctx, id.TenantID, req.OrderID, req.AdminID, approve); err != nil {
		c.hub.logger.Warn("Order decision failed",
			zap.Int64("order_id", req.OrderID),
			zap.String("admin_id", req.AdminID),
			zap.Error(err))
		return err
	}
	return nil
}

// ack answers a request; requests without an id get no ack
func (c *Client) ack(requestID string, err error) {
	if requestID == "" {
		if err != nil {
			c.sendError(err.Error())
		}
		return
	}

	payload := models.AckPayload{OK: err == nil}
	if err != nil {
		payload.Error = err.Error()
	}
	c.sendEnvelope(models.MessageAck, requestID, payload)
}

func (c *Client) sendError(message string) {
	c.sendEnvelope(models.MessageError, "", models.ErrorPayload{Message: message})
}

func (c *Client) sendEnvelope(msgType, id string, data interface{}) {
	env, err := models.NewEnvelope(msgType, id, data)
	if err != nil {
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.hub.logger.Warn("Websocket send queue full, reply dropped", zap.String("type", msgType))
	}
}
