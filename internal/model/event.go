package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventProductViewed         EventType = "PRODUCT_VIEWED"
	EventCartItemAdded         EventType = "CART_ITEM_ADDED"
	EventCartItemRemoved       EventType = "CART_ITEM_REMOVED"
	EventCartUpdated           EventType = "CART_UPDATED"
	EventCheckoutInitiated     EventType = "CHECKOUT_INITIATED"
	EventCheckoutCompleted     EventType = "CHECKOUT_COMPLETED"
	EventCheckoutFailed        EventType = "CHECKOUT_FAILED"
	EventConnectionEstablished EventType = "CONNECTION_ESTABLISHED"
	EventDisconnectRequested   EventType = "GFD_DISCONNECT_REQUESTED"
)

// DomainEvent is the payload carried on redis channels and delivered over SSE.
// SourceID is the routing key: the front-liner device whose stream receives
// the event. UserID is context only and is never consulted for routing.
type DomainEvent struct {
	EventID     string          `json:"eventId"`
	EventType   EventType       `json:"eventType"`
	UserID      string          `json:"userId,omitempty"`
	SourceID    string          `json:"sourceId"`
	Timestamp   int64           `json:"timestamp"`
	CartItems   []CartItem      `json:"cartItems,omitempty"`
	TotalAmount *float64        `json:"totalAmount,omitempty"`
	TotalItems  *int            `json:"totalItems,omitempty"`
	Message     string          `json:"message,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// NewDomainEvent builds an event with a fresh id and current timestamp.
func NewDomainEvent(eventType EventType, sourceID string) *DomainEvent {
	return &DomainEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		SourceID:  sourceID,
		Timestamp: time.Now().UnixMilli(),
	}
}

type CartItem struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Subtotal    float64 `json:"subtotal"`
}
