package notifier

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"backoffice/internal/models"

	"github.com/gorilla/websocket"
)

// Conn is one live channel to the gateway
type Conn interface {
	ReadEnvelope() (models.Envelope, error)
	WriteEnvelope(env models.Envelope) error
	Close() error
}

// Dialer opens a new Conn
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

const writeWait = 10 * time.Second

// WebsocketDialer dials the gateway's /ws endpoint
type WebsocketDialer struct {
	URL    string
	Header http.Header
	dialer *websocket.Dialer
}

func NewWebsocketDialer(url string) *WebsocketDialer {
	return &WebsocketDialer{
		URL: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

func (w *WebsocketDialer) Dial(ctx context.Context) (Conn, error) {
	conn, resp, err := w.dialer.DialContext(ctx, w.URL, w.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", w.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", w.URL, err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) ReadEnvelope() (models.Envelope, error) {
	var env models.Envelope
	err := c.conn.ReadJSON(&env)
	return env, err
}

func (c *wsConn) WriteEnvelope(env models.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(env)
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
