package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"backoffice/internal/models"
	"backoffice/internal/util"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotAlerting  = errors.New("no order is awaiting a decision")
	ErrNotConnected = errors.New("not connected to the notification server")
	ErrAckTimeout   = errors.New("server did not acknowledge in time")
	ErrRejected     = errors.New("server rejected the request")
)

// DefaultAckTimeout is how long a decision waits for the server's ack
const DefaultAckTimeout = 5 * time.Second

// Presenter renders notifications for the admin
type Presenter interface {
	ShowOrder(order *models.WebOrderReceivedEvent)
	CloseOrder(orderID int64)
	ShowToast(level, message string)
	ShowAudioBanner(err error)
	HideAudioBanner()
}

// DesktopNotifier raises an OS level notification
type DesktopNotifier interface {
	Notify(title, body string) error
}

// ReconcileFunc runs after every reconnect so alerts missed while offline
// can be recovered
type ReconcileFunc func(ctx context.Context, identity models.RegisterPayload) error

// Options configures a Dispatcher
type Options struct {
	AckTimeout time.Duration
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Desktop    DesktopNotifier
	Reconcile  ReconcileFunc
}

// Dispatcher keeps the admin client's channel to the gateway alive and
// turns pushed events into alerts
type Dispatcher struct {
	dialer    Dialer
	audio     *AudioManager
	presenter Presenter
	opts      Options
	logger    *zap.Logger

	mu            sync.Mutex
	state         State
	conn          Conn
	identity      *models.RegisterPayload
	current       *models.WebOrderReceivedEvent
	notifications []models.Event
	seen          map[string]struct{}
	pending       map[string]chan models.AckPayload
	connects      int
	registerID    string

	done      chan struct{}
	closeOnce sync.Once
}

func NewDispatcher(dialer Dialer, audio *AudioManager, presenter Presenter, opts Options) *Dispatcher {
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = DefaultAckTimeout
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}

	return &Dispatcher{
		dialer:    dialer,
		audio:     audio,
		presenter: presenter,
		opts:      opts,
		logger:    util.GetLogger(),
		state:     StateDisconnected,
		seen:      make(map[string]struct{}),
		pending:   make(map[string]chan models.AckPayload),
		done:      make(chan struct{}),
	}
}

// Run connects and reconnects until ctx is cancelled or Close is called.
func (d *Dispatcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-d.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.opts.MinBackoff
	b.MaxInterval = d.opts.MaxBackoff
	b.MaxElapsedTime = 0

	for {
		conn, err := d.dialer.Dial(ctx)
		if err != nil {
			if d.stopped(ctx) {
				return d.exitErr(ctx)
			}
			wait := b.NextBackOff()
			d.logger.Warn("Notification server unreachable", zap.Duration("retry_in", wait), zap.Error(err))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return d.exitErr(ctx)
			case <-timer.C:
			}
			continue
		}

		b.Reset()
		d.serve(ctx, conn)

		if d.stopped(ctx) {
			return d.exitErr(ctx)
		}
		d.logger.Warn("Notification channel dropped, reconnecting")
	}
}

func (d *Dispatcher) stopped(ctx context.Context) bool {
	return ctx.Err() != nil
}

func (d *Dispatcher) exitErr(ctx context.Context) error {
	select {
	case <-d.done:
		return nil
	default:
		return ctx.Err()
	}
}

// serve runs one connection until it drops
func (d *Dispatcher) serve(ctx context.Context, conn Conn) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	d.mu.Lock()
	d.conn = conn
	d.state = StateConnectedUnregistered
	d.connects++
	reconnect := d.connects > 1
	var identity *models.RegisterPayload
	if d.identity != nil {
		id := *d.identity
		identity = &id
	}
	d.mu.Unlock()

	d.logger.Info("Notification channel connected", zap.Bool("reconnect", reconnect))

	if identity != nil {
		if err := d.sendRegister(conn, *identity); err != nil {
			d.logger.Warn("Failed to register", zap.Error(err))
		} else if reconnect && d.opts.Reconcile != nil {
			go d.reconcile(ctx, *identity)
		}
	}

	for {
		env, err := conn.ReadEnvelope()
		if err != nil {
			d.disconnected(conn, err)
			return
		}
		d.handle(ctx, env)
	}
}

func (d *Dispatcher) reconcile(ctx context.Context, identity models.RegisterPayload) {
	if err := d.opts.Reconcile(ctx, identity); err != nil {
		d.logger.Warn("Reconciliation after reconnect failed", zap.Error(err))
	}
}

func (d *Dispatcher) disconnected(conn Conn, cause error) {
	conn.Close()

	d.mu.Lock()
	if d.conn == conn {
		d.conn = nil
		d.state = StateDisconnected
	}
	for id, ch := range d.pending {
		ch <- models.AckPayload{OK: false, Error: "connection lost"}
		delete(d.pending, id)
	}
	d.mu.Unlock()

	d.logger.Debug("Notification channel closed", zap.Error(cause))
}

// SetIdentity records who is logged in and registers if connected.
func (d *Dispatcher) SetIdentity(identity models.RegisterPayload) error {
	if identity.UserID == "" || identity.TenantID == "" {
		return errors.New("user id and tenant id are required")
	}
	if !models.ValidRole(identity.Role) {
		return fmt.Errorf("role %q does not receive order alerts", identity.Role)
	}

	d.mu.Lock()
	d.identity = &identity
	conn := d.conn
	d.mu.Unlock()

	if conn == nil {
		return nil
	}
	return d.sendRegister(conn, identity)
}

func (d *Dispatcher) sendRegister(conn Conn, identity models.RegisterPayload) error {
	reqID := d.nextRequestID("register")
	env, err := models.NewEnvelope(models.MessageRegister, reqID, identity)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.registerID = reqID
	d.mu.Unlock()

	if err := conn.WriteEnvelope(env); err != nil {
		return fmt.Errorf("failed to send register: %w", err)
	}

	d.mu.Lock()
	// registerID is cleared when the server refuses the registration
	if d.conn == conn && d.registerID == reqID {
		if d.current != nil {
			d.state = StateAlerting
		} else {
			d.state = StateRegistered
		}
	}
	d.mu.Unlock()

	d.logger.Info("Registration sent",
		zap.String("user_id", identity.UserID),
		zap.String("tenant_id", identity.TenantID))
	return nil
}

func (d *Dispatcher) nextRequestID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func (d *Dispatcher) handle(ctx context.Context, env models.Envelope) {
	switch env.Type {
	case models.MessageAck:
		d.handleAck(env)

	case models.MessageError:
		var payload models.ErrorPayload
		_ = env.Decode(&payload)
		d.logger.Warn("Server reported an error", zap.String("message", payload.Message))

	case models.EventTypeWebOrderReceived, models.EventTypeNewInventoryRequest,
		models.EventTypeApproveOrder, models.EventTypeRejectOrder:
		event, err := models.ParseEvent(env.Data)
		if err != nil {
			d.logger.Warn("Dropping malformed notification", zap.String("type", env.Type), zap.Error(err))
			return
		}
		d.handleEvent(ctx, event)

	default:
		d.logger.Debug("Ignoring unknown message", zap.String("type", env.Type))
	}
}

func (d *Dispatcher) handleAck(env models.Envelope) {
	var ack models.AckPayload
	if err := env.Decode(&ack); err != nil {
		d.logger.Warn("Dropping malformed ack", zap.Error(err))
		return
	}

	d.mu.Lock()
	if env.ID != "" && env.ID == d.registerID {
		if !ack.OK {
			d.registerID = ""
			if d.state == StateRegistered || d.state == StateAlerting {
				d.state = StateConnectedUnregistered
			}
		}
		d.mu.Unlock()

		if !ack.OK {
			d.logger.Warn("Registration refused", zap.String("error", ack.Error))
			d.presenter.ShowToast("error", "Registration refused: "+ack.Error)
		}
		return
	}
	ch, ok := d.pending[env.ID]
	delete(d.pending, env.ID)
	d.mu.Unlock()

	if ok {
		ch <- ack
		return
	}
	if !ack.OK {
		d.logger.Warn("Request failed", zap.String("id", env.ID), zap.String("error", ack.Error))
		d.presenter.ShowToast("error", ack.Error)
	}
}

func (d *Dispatcher) handleEvent(ctx context.Context, event models.Event) {
	base := event.Base()

	d.mu.Lock()
	if _, dup := d.seen[base.EventID]; dup {
		d.mu.Unlock()
		d.logger.Debug("Dropping duplicate notification", zap.String("event_id", base.EventID))
		return
	}
	d.seen[base.EventID] = struct{}{}
	d.notifications = append(d.notifications, event)
	d.mu.Unlock()

	switch e := event.(type) {
	case *models.WebOrderReceivedEvent:
		d.alert(ctx, e)

	case *models.InventoryRequestEvent:
		msg := fmt.Sprintf("Inventory request: %s %s %s", e.Quantity.String(), e.Unit, e.ItemName)
		d.presenter.ShowToast("info", msg)
		d.desktop("New inventory request", msg)

	case *models.OrderDecisionEvent:
		d.mu.Lock()
		closing := d.current != nil && d.current.OrderID == e.OrderID
		d.mu.Unlock()
		if closing {
			d.closeCurrent(e.OrderID)
			d.presenter.ShowToast("info", fmt.Sprintf("Order #%d was %s by %s", e.OrderNumber, e.Status, e.AdminID))
		}
	}
}

func (d *Dispatcher) alert(ctx context.Context, order *models.WebOrderReceivedEvent) {
	d.mu.Lock()
	d.current = order
	if d.state == StateRegistered {
		d.state = StateAlerting
	}
	d.mu.Unlock()

	d.presenter.ShowOrder(order)

	if err := d.audio.StartAlert(ctx); err != nil {
		d.logger.Warn("Alert audio unavailable", zap.Error(err))
		d.presenter.ShowAudioBanner(err)
	}

	d.desktop(fmt.Sprintf("New web order #%d", order.OrderNumber),
		fmt.Sprintf("%s, total %s", order.CustomerName, order.TotalAmount.StringFixed(2)))
}

func (d *Dispatcher) desktop(title, body string) {
	if d.opts.Desktop == nil {
		return
	}
	if err := d.opts.Desktop.Notify(title, body); err != nil {
		d.logger.Debug("Desktop notification failed", zap.Error(err))
	}
}

// closeCurrent clears the alerting order and its audio if it is still
// orderID. A newer order keeps ringing.
func (d *Dispatcher) closeCurrent(orderID int64) {
	d.mu.Lock()
	if d.current == nil || d.current.OrderID != orderID {
		d.mu.Unlock()
		return
	}
	d.current = nil
	if d.state == StateAlerting {
		d.state = StateRegistered
	}
	// under d.mu so a new order cannot become current between the check and the stop
	d.audio.StopAlert()
	d.mu.Unlock()

	d.presenter.CloseOrder(orderID)
}

// Approve accepts the order currently on screen
func (d *Dispatcher) Approve(ctx context.Context) error {
	return d.decide(ctx, true)
}

// Reject declines the order currently on screen
func (d *Dispatcher) Reject(ctx context.Context) error {
	return d.decide(ctx, false)
}

func (d *Dispatcher) decide(ctx context.Context, approve bool) error {
	d.mu.Lock()
	order := d.current
	conn := d.conn
	var adminID string
	if d.identity != nil {
		adminID = d.identity.UserID
	}
	d.mu.Unlock()

	if order == nil {
		return ErrNotAlerting
	}

	d.audio.StopAlert()

	if conn == nil || adminID == "" {
		d.presenter.ShowToast("error", "Not connected, try again in a moment")
		return ErrNotConnected
	}

	msgType := models.EventTypeRejectOrder
	if approve {
		msgType = models.EventTypeApproveOrder
	}

	reqID := d.nextRequestID("decision")
	env, err := models.NewEnvelope(msgType, reqID, models.DecisionPayload{OrderID: order.OrderID, AdminID: adminID})
	if err != nil {
		return err
	}

	ackCh := make(chan models.AckPayload, 1)
	d.mu.Lock()
	d.pending[reqID] = ackCh
	d.mu.Unlock()

	if err := conn.WriteEnvelope(env); err != nil {
		d.forget(reqID)
		d.presenter.ShowToast("error", "Could not send decision, try again")
		return fmt.Errorf("failed to send %s: %w", msgType, err)
	}

	timer := time.NewTimer(d.opts.AckTimeout)
	defer timer.Stop()

	select {
	case ack := <-ackCh:
		if !ack.OK {
			d.presenter.ShowToast("error", ack.Error)
			return fmt.Errorf("%w: %s", ErrRejected, ack.Error)
		}
	case <-timer.C:
		d.forget(reqID)
		d.presenter.ShowToast("error", "No response from server, try again")
		return ErrAckTimeout
	case <-ctx.Done():
		d.forget(reqID)
		return ctx.Err()
	}

	d.logger.Info("Order decision sent",
		zap.Int64("order_id", order.OrderID),
		zap.String("decision", msgType))
	d.closeCurrent(order.OrderID)
	return nil
}

func (d *Dispatcher) forget(reqID string) {
	d.mu.Lock()
	delete(d.pending, reqID)
	d.mu.Unlock()
}

// Dismiss closes the order modal without deciding
func (d *Dispatcher) Dismiss() {
	d.mu.Lock()
	order := d.current
	d.mu.Unlock()

	if order == nil {
		d.audio.StopAlert()
		return
	}
	d.closeCurrent(order.OrderID)
}

// UnlockAudio enables audio and, if an order is still waiting, starts its alert
func (d *Dispatcher) UnlockAudio(ctx context.Context) error {
	if err := d.audio.Unlock(ctx); err != nil {
		d.presenter.ShowAudioBanner(err)
		return err
	}
	d.presenter.HideAudioBanner()

	d.mu.Lock()
	waiting := d.current != nil
	d.mu.Unlock()

	if waiting && !d.audio.Playing() {
		if err := d.audio.StartAlert(ctx); err != nil {
			d.presenter.ShowAudioBanner(err)
			return err
		}
	}
	return nil
}

// Notifications returns every event received, in arrival order
func (d *Dispatcher) Notifications() []models.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.Event(nil), d.notifications...)
}

// Current returns the order awaiting a decision, if any
func (d *Dispatcher) Current() *models.WebOrderReceivedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Close tears the channel down and stops Run
func (d *Dispatcher) Close() error {
	d.closeOnce.Do(func() { close(d.done) })
	d.audio.StopAlert()

	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}
