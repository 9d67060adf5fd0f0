package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Notification event types
const (
	EventTypeNewInventoryRequest = "new_inventory_request"
	EventTypeWebOrderReceived    = "web_order_received"
	EventTypeApproveOrder        = "approve_order"
	EventTypeRejectOrder         = "reject_order"
)

// Socket control message types
const (
	MessageRegister = "register"
	MessageAck      = "ack"
	MessageError    = "error"
)

// ErrMalformedEvent marks a notification payload that cannot be rendered.
var ErrMalformedEvent = errors.New("malformed event")

// Event is implemented by every notification payload
type Event interface {
	Base() BaseEvent
	Validate() error
}

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	TenantID  string    `json:"tenant_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (b BaseEvent) Base() BaseEvent { return b }

func (b BaseEvent) validate() error {
	switch {
	case b.EventID == "":
		return fmt.Errorf("%w: missing event_id", ErrMalformedEvent)
	case b.EventType == "":
		return fmt.Errorf("%w: missing event_type", ErrMalformedEvent)
	case b.TenantID == "":
		return fmt.Errorf("%w: missing tenant_id", ErrMalformedEvent)
	}
	return nil
}

// OrderItemData represents item data in events
type OrderItemData struct {
	MenuItem  string          `json:"menu_item"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// WebOrderReceivedEvent carries everything the alert modal renders
type WebOrderReceivedEvent struct {
	BaseEvent
	OrderID       int64           `json:"order_id"`
	OrderNumber   int64           `json:"order_number"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	TableNo       string          `json:"table_no,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Items         []OrderItemData `json:"items"`
}

func (e *WebOrderReceivedEvent) Validate() error {
	if err := e.BaseEvent.validate(); err != nil {
		return err
	}
	if e.OrderID <= 0 {
		return fmt.Errorf("%w: missing order_id", ErrMalformedEvent)
	}
	if e.OrderNumber <= 0 {
		return fmt.Errorf("%w: missing order_number", ErrMalformedEvent)
	}
	return nil
}

// InventoryRequestEvent published when staff ask for a restock
type InventoryRequestEvent struct {
	BaseEvent
	RequestID   int64           `json:"request_id"`
	ItemName    string          `json:"item_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	RequestedBy string          `json:"requested_by"`
	Note        string          `json:"note,omitempty"`
}

func (e *InventoryRequestEvent) Validate() error {
	if err := e.BaseEvent.validate(); err != nil {
		return err
	}
	if e.RequestID <= 0 {
		return fmt.Errorf("%w: missing request_id", ErrMalformedEvent)
	}
	if e.ItemName == "" {
		return fmt.Errorf("%w: missing item_name", ErrMalformedEvent)
	}
	return nil
}

// OrderDecisionEvent published when an admin approves or rejects an order
type OrderDecisionEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	OrderNumber int64  `json:"order_number"`
	AdminID     string `json:"admin_id"`
	Status      string `json:"status"`
}

func (e *OrderDecisionEvent) Validate() error {
	if err := e.BaseEvent.validate(); err != nil {
		return err
	}
	if e.OrderID <= 0 {
		return fmt.Errorf("%w: missing order_id", ErrMalformedEvent)
	}
	if e.AdminID == "" {
		return fmt.Errorf("%w: missing admin_id", ErrMalformedEvent)
	}
	return nil
}

// ParseEvent decodes and validates a notification payload by its event_type.
func ParseEvent(raw []byte) (Event, error) {
	var base BaseEvent
	if err := json.Unmarshal(raw, &base); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	var event Event
	switch base.EventType {
	case EventTypeWebOrderReceived:
		event = &WebOrderReceivedEvent{}
	case EventTypeNewInventoryRequest:
		event = &InventoryRequestEvent{}
	case EventTypeApproveOrder, EventTypeRejectOrder:
		event = &OrderDecisionEvent{}
	default:
		return nil, fmt.Errorf("%w: unknown event_type %q", ErrMalformedEvent, base.EventType)
	}

	if err := json.Unmarshal(raw, event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}

// Envelope is the frame exchanged on the websocket channel
type Envelope struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into a frame of the given type
func NewEnvelope(msgType, id string, data interface{}) (Envelope, error) {
	env := Envelope{Type: msgType, ID: id}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
		}
		env.Data = raw
	}
	return env, nil
}

// Decode unmarshals the frame payload into v
func (e Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: empty %s payload", ErrMalformedEvent, e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

// RegisterPayload announces the identity behind a socket
type RegisterPayload struct {
	UserID   string `json:"userId"`
	Role     string `json:"role"`
	TenantID string `json:"tenantId"`
}

// DecisionPayload is sent upstream for approve_order and reject_order
type DecisionPayload struct {
	OrderID int64  `json:"orderId"`
	AdminID string `json:"adminId"`
}

// AckPayload answers a client request carrying the same envelope id
type AckPayload struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ErrorPayload reports a protocol error to the client
type ErrorPayload struct {
	Message string `json:"message"`
}
