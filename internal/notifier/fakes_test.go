package notifier

import (
	"context"
	"io"
	"sync"

	"backoffice/internal/models"
)

// recorder captures calls across fakes so tests can assert their order
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) count(call string) int {
	n := 0
	for _, c := range r.all() {
		if c == call {
			n++
		}
	}
	return n
}

type fakePlayer struct {
	rec *recorder
	err error
}

func (p *fakePlayer) Play(_ context.Context, sound string, _ bool) error {
	p.rec.add("audio:play:" + sound)
	return p.err
}

func (p *fakePlayer) Stop() {
	p.rec.add("audio:stop")
}

type memPrefs struct {
	mu      sync.Mutex
	enabled bool
}

func (m *memPrefs) AudioEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

func (m *memPrefs) SetAudioEnabled(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
	return nil
}

// fakeConn answers decisions with an ack unless silent is set
type fakeConn struct {
	rec       *recorder
	in        chan models.Envelope
	closed    chan struct{}
	closeOnce sync.Once
	silent    bool
	ackErr    string
	refuse    string

	mu      sync.Mutex
	written []models.Envelope
}

func newFakeConn(rec *recorder) *fakeConn {
	return &fakeConn{
		rec:    rec,
		in:     make(chan models.Envelope, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadEnvelope() (models.Envelope, error) {
	select {
	case env := <-c.in:
		return env, nil
	case <-c.closed:
		return models.Envelope{}, io.EOF
	}
}

func (c *fakeConn) WriteEnvelope(env models.Envelope) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}

	c.rec.add("send:" + env.Type)
	c.mu.Lock()
	c.written = append(c.written, env)
	c.mu.Unlock()

	if env.Type == models.MessageRegister && c.refuse != "" {
		ack, _ := models.NewEnvelope(models.MessageAck, env.ID, models.AckPayload{OK: false, Error: c.refuse})
		c.in <- ack
	}
	if (env.Type == models.EventTypeApproveOrder || env.Type == models.EventTypeRejectOrder) && !c.silent {
		ack, _ := models.NewEnvelope(models.MessageAck, env.ID, models.AckPayload{OK: c.ackErr == "", Error: c.ackErr})
		c.in <- ack
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) sent(msgType string) []models.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Envelope
	for _, env := range c.written {
		if env.Type == msgType {
			out = append(out, env)
		}
	}
	return out
}

func (c *fakeConn) push(msgType string, data interface{}) {
	env, _ := models.NewEnvelope(msgType, "", data)
	c.in <- env
}

type fakeDialer struct {
	conns chan *fakeConn
	dials int
	mu    sync.Mutex
}

func (f *fakeDialer) Dial(ctx context.Context) (Conn, error) {
	select {
	case c := <-f.conns:
		f.mu.Lock()
		f.dials++
		f.mu.Unlock()
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fakePresenter struct {
	mu     sync.Mutex
	shown  []int64
	closed []int64
	toasts []string
	banner bool
}

func (p *fakePresenter) ShowOrder(order *models.WebOrderReceivedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shown = append(p.shown, order.OrderID)
}

func (p *fakePresenter) CloseOrder(orderID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, orderID)
}

func (p *fakePresenter) ShowToast(_, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toasts = append(p.toasts, message)
}

func (p *fakePresenter) ShowAudioBanner(error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.banner = true
}

func (p *fakePresenter) HideAudioBanner() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.banner = false
}

func (p *fakePresenter) bannerShown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.banner
}

func (p *fakePresenter) closedOrders() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.closed...)
}

func (p *fakePresenter) toastCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.toasts)
}
