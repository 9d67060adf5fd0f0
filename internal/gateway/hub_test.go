package gateway

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"backoffice/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decisionCall struct {
	tenantID string
	orderID  int64
	adminID  string
	approve  bool
}

type fakeDecisions struct {
	mu    sync.Mutex
	calls []decisionCall
	err   error
}

func (f *fakeDecisions) DecideOrder(_ context.Context, tenantID string, orderID int64, adminID string, approve bool) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, decisionCall{tenantID, orderID, adminID, approve})
	if f.err != nil {
		return nil, f.err
	}
	return &models.Order{ID: orderID, TenantID: tenantID}, nil
}

func (f *fakeDecisions) recorded() []decisionCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]decisionCall(nil), f.calls...)
}

type fakePresence struct {
	mu       sync.Mutex
	online   map[string]string
	offlines int
}

func (p *fakePresence) MarkOnline(_ context.Context, tenantID, userID, role string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[tenantID+"/"+userID] = role
	return nil
}

func (p *fakePresence) MarkOffline(_ context.Context, tenantID, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, tenantID+"/"+userID)
	p.offlines++
	return nil
}

func (p *fakePresence) offlineCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offlines
}

func (p *fakePresence) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.online)
}

func setupHub(t *testing.T, decisions DecisionHandler, presence PresenceTracker) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(decisions, presence, Options{SendBuffer: 8})
	router := gin.New()
	router.GET("/ws", hub.ServeWS)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType, id string, data interface{}) {
	t.Helper()
	env, err := models.NewEnvelope(msgType, id, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))
}

func read(t *testing.T, conn *websocket.Conn) models.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env models.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func readAck(t *testing.T, conn *websocket.Conn, id string) models.AckPayload {
	t.Helper()
	env := read(t, conn)
	require.Equal(t, models.MessageAck, env.Type)
	require.Equal(t, id, env.ID)

	var ack models.AckPayload
	require.NoError(t, env.Decode(&ack))
	return ack
}

func register(t *testing.T, conn *websocket.Conn, userID, role, tenantID string) {
	t.Helper()
	send(t, conn, models.MessageRegister, "reg", models.RegisterPayload{UserID: userID, Role: role, TenantID: tenantID})
	ack := readAck(t, conn, "reg")
	require.True(t, ack.OK, ack.Error)
}

func webOrder(tenant string) *models.WebOrderReceivedEvent {
	return &models.WebOrderReceivedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: models.EventTypeWebOrderReceived,
			TenantID:  tenant,
			Timestamp: time.Now(),
		},
		OrderID:     10,
		OrderNumber: 3,
	}
}

func TestBroadcastReachesOnlyRegisteredTenantClients(t *testing.T) {
	hub, url := setupHub(t, &fakeDecisions{}, nil)

	admin := dial(t, url)
	register(t, admin, "u1", models.RoleAdmin, "T1")

	other := dial(t, url)
	register(t, other, "u2", models.RoleManager, "T2")

	anonymous := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.RelayEvent(context.Background(), webOrder("T1")))

	env := read(t, admin)
	assert.Equal(t, models.EventTypeWebOrderReceived, env.Type)
	event, err := models.ParseEvent(env.Data)
	require.NoError(t, err)
	assert.Equal(t, int64(3), event.(*models.WebOrderReceivedEvent).OrderNumber)

	for _, conn := range []*websocket.Conn{other, anonymous} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
		_, _, err := conn.ReadMessage()
		assert.Error(t, err)
	}
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	_, url := setupHub(t, &fakeDecisions{}, nil)
	conn := dial(t, url)

	send(t, conn, models.MessageRegister, "r1", models.RegisterPayload{UserID: "u1", Role: "cashier", TenantID: "T1"})
	ack := readAck(t, conn, "r1")
	assert.False(t, ack.OK)
	assert.Contains(t, ack.Error, "cashier")
}

func TestDecisionRequiresRegistration(t *testing.T) {
	decisions := &fakeDecisions{}
	_, url := setupHub(t, decisions, nil)
	conn := dial(t, url)

	send(t, conn, models.EventTypeApproveOrder, "d1", models.DecisionPayload{OrderID: 10, AdminID: "u1"})
	ack := readAck(t, conn, "d1")
	assert.False(t, ack.OK)
	assert.Empty(t, decisions.recorded())
}

func TestDecisionIsAppliedAndAcked(t *testing.T) {
	decisions := &fakeDecisions{}
	_, url := setupHub(t, decisions, nil)
	conn := dial(t, url)
	register(t, conn, "u1", models.RoleAdmin, "T1")

	send(t, conn, models.EventTypeRejectOrder, "d1", models.DecisionPayload{OrderID: 10, AdminID: "u1"})
	ack := readAck(t, conn, "d1")
	assert.True(t, ack.OK)

	require.Len(t, decisions.recorded(), 1)
	assert.Equal(t, decisionCall{tenantID: "T1", orderID: 10, adminID: "u1", approve: false}, decisions.recorded()[0])
}

func TestDecisionFailureIsReportedInAck(t *testing.T) {
	decisions := &fakeDecisions{err: errors.New("order already decided")}
	_, url := setupHub(t, decisions, nil)
	conn := dial(t, url)
	register(t, conn, "u1", models.RoleAdmin, "T1")

	send(t, conn, models.EventTypeApproveOrder, "d2", models.DecisionPayload{OrderID: 10})
	ack := readAck(t, conn, "d2")
	assert.False(t, ack.OK)
	assert.Equal(t, "order already decided", ack.Error)
}

func TestDecisionRejectsForeignAdmin(t *testing.T) {
	decisions := &fakeDecisions{}
	_, url := setupHub(t, decisions, nil)
	conn := dial(t, url)
	register(t, conn, "u1", models.RoleAdmin, "T1")

	send(t, conn, models.EventTypeApproveOrder, "d3", models.DecisionPayload{OrderID: 10, AdminID: "someone-else"})
	ack := readAck(t, conn, "d3")
	assert.False(t, ack.OK)
	assert.Empty(t, decisions.recorded())
}

func TestUnknownMessageGetsError(t *testing.T) {
	_, url := setupHub(t, &fakeDecisions{}, nil)
	conn := dial(t, url)

	send(t, conn, "dance", "", nil)
	env := read(t, conn)
	assert.Equal(t, models.MessageError, env.Type)
}

func TestPresenceFollowsConnection(t *testing.T) {
	presence := &fakePresence{online: map[string]string{}}
	hub, url := setupHub(t, &fakeDecisions{}, presence)

	conn := dial(t, url)
	register(t, conn, "u1", models.RoleAdmin, "T1")
	assert.Equal(t, 1, presence.count())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return presence.count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestPresenceKeptWhileSecondTabOpen(t *testing.T) {
	presence := &fakePresence{online: map[string]string{}}
	hub, url := setupHub(t, &fakeDecisions{}, presence)

	first := dial(t, url)
	register(t, first, "u1", models.RoleAdmin, "T1")
	second := dial(t, url)
	register(t, second, "u1", models.RoleAdmin, "T1")

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return presence.offlineCalls() > 0 }, 100*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, 1, presence.count())

	require.NoError(t, second.Close())
	assert.Eventually(t, func() bool { return presence.count() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, presence.offlineCalls())
}

func TestReRegisterAfterReconnect(t *testing.T) {
	hub, url := setupHub(t, &fakeDecisions{}, nil)

	first := dial(t, url)
	register(t, first, "u1", models.RoleAdmin, "T1")
	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	second := dial(t, url)
	register(t, second, "u1", models.RoleAdmin, "T1")

	assert.Equal(t, 1, hub.Broadcast("T1", models.Envelope{Type: models.EventTypeWebOrderReceived}))
	assert.Equal(t, models.EventTypeWebOrderReceived, read(t, second).Type)
}
