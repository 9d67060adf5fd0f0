package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"backoffice/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case msg := <-r.msgs:
		return msg, nil
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func inventoryEvent(tenant string) *models.InventoryRequestEvent {
	return &models.InventoryRequestEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "e-1",
			EventType: models.EventTypeNewInventoryRequest,
			TenantID:  tenant,
			Timestamp: time.Now(),
		},
		RequestID: 4,
		ItemName:  "flour",
	}
}

func TestPublishKeysByTenant(t *testing.T) {
	w := &fakeWriter{}
	ep := NewEventPublisher(&Producer{writer: w, logger: zap.NewNop()})

	require.NoError(t, ep.Publish(context.Background(), inventoryEvent("T1")))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "T1", string(w.msgs[0].Key))

	var decoded models.InventoryRequestEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "flour", decoded.ItemName)
}

func TestPublishRejectsInvalidEvent(t *testing.T) {
	w := &fakeWriter{}
	ep := NewEventPublisher(&Producer{writer: w, logger: zap.NewNop()})

	err := ep.Publish(context.Background(), inventoryEvent(""))
	assert.ErrorIs(t, err, models.ErrMalformedEvent)
	assert.Empty(t, w.msgs)
}

func TestPublishWrapsWriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	ep := NewEventPublisher(&Producer{writer: w, logger: zap.NewNop()})

	err := ep.Publish(context.Background(), inventoryEvent("T1"))
	assert.ErrorContains(t, err, "leader not available")
}

func TestRouterDispatchesAndDropsMalformed(t *testing.T) {
	router := NewEventRouter()

	var got []models.Event
	router.On(models.EventTypeNewInventoryRequest, func(_ context.Context, e models.Event) error {
		got = append(got, e)
		return nil
	})

	raw, err := json.Marshal(inventoryEvent("T1"))
	require.NoError(t, err)

	require.NoError(t, router.HandleMessage(context.Background(), kafka.Message{Value: raw}))
	require.NoError(t, router.HandleMessage(context.Background(), kafka.Message{Value: []byte(`{"event_type":"web_order_received"}`)}))

	require.Len(t, got, 1)
	assert.Equal(t, "e-1", got[0].Base().EventID)
}

func TestStartConsumingCommitsHandledMessages(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 3)}
	c := &Consumer{reader: reader, topic: "t", logger: zap.NewNop(), retryDelay: time.Millisecond}

	reader.msgs <- kafka.Message{Offset: 1}
	reader.msgs <- kafka.Message{Offset: 2, Value: []byte("fail")}
	reader.msgs <- kafka.Message{Offset: 3}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.StartConsuming(ctx, func(_ context.Context, msg kafka.Message) error {
			if string(msg.Value) == "fail" {
				return errors.New("boom")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return len(reader.committedOffsets()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []int64{1, 3}, reader.committedOffsets())
}
