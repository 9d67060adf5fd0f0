package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventWebOrder(t *testing.T) {
	raw := []byte(`{
		"event_id": "e-1",
		"event_type": "web_order_received",
		"tenant_id": "T1",
		"order_id": 42,
		"order_number": 7,
		"customer_name": "Ana",
		"total_amount": "12.50",
		"items": [{"menu_item": "soup", "quantity": 2, "unit_price": "6.25"}]
	}`)

	event, err := ParseEvent(raw)
	require.NoError(t, err)

	order, ok := event.(*WebOrderReceivedEvent)
	require.True(t, ok)
	assert.Equal(t, int64(42), order.OrderID)
	assert.Equal(t, "12.5", order.TotalAmount.String())
	assert.Equal(t, "T1", event.Base().TenantID)
	assert.Len(t, order.Items, 1)
}

func TestParseEventRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{`},
		{"unknown type", `{"event_id":"e","event_type":"party","tenant_id":"T1"}`},
		{"missing tenant", `{"event_id":"e","event_type":"web_order_received","order_id":1,"order_number":1}`},
		{"missing order id", `{"event_id":"e","event_type":"web_order_received","tenant_id":"T1","order_number":1}`},
		{"inventory without item", `{"event_id":"e","event_type":"new_inventory_request","tenant_id":"T1","request_id":3}`},
		{"decision without admin", `{"event_id":"e","event_type":"approve_order","tenant_id":"T1","order_id":3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEvent([]byte(tt.raw))
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(MessageRegister, "", RegisterPayload{UserID: "u1", Role: RoleAdmin, TenantID: "T1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":"u1","role":"admin","tenantId":"T1"}`, string(env.Data))

	var reg RegisterPayload
	require.NoError(t, env.Decode(&reg))
	assert.Equal(t, "u1", reg.UserID)

	assert.ErrorIs(t, Envelope{Type: MessageAck}.Decode(&AckPayload{}), ErrMalformedEvent)
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole(RoleAdmin))
	assert.True(t, ValidRole(RoleManager))
	assert.False(t, ValidRole("waiter"))
}
