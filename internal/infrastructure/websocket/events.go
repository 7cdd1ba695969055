package websocket

import (
	"encoding/json"
	"time"

	"unimarket/internal/domain/entity"
)

// Wire message types spoken by the UniMarket realtime endpoint.
const (
	MessageTypePing            = "ping"
	MessageTypePong            = "pong"
	MessageTypeMessage         = "message"
	MessageTypeDeliveryReceipt = "delivery_receipt"
	MessageTypeReadReceipt     = "read_receipt"
	MessageTypeMarkRead        = "mark_read"
	MessageTypeTyping          = "typing"
	MessageTypePresence        = "user_presence"
	MessageTypeTransaction     = "transaction_update"
	MessageTypeError           = "error"
)

// WSMessage is the envelope of every frame in both directions.
type WSMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	ChatID    string          `json:"chat_id,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// MessageData is the payload of an inbound "message" frame.
type MessageData struct {
	ID            string `json:"id" validate:"required"`
	TempID        string `json:"temp_id,omitempty"`
	ChatID        string `json:"chat_id" validate:"required"`
	SenderID      string `json:"sender_id" validate:"required"`
	SenderName    string `json:"sender_name,omitempty"`
	Content       string `json:"content"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	AttachmentURL string `json:"attachment_url,omitempty"`
}

// DeliveryReceiptData correlates a temporary client id with the permanent
// server id once a send is acknowledged.
type DeliveryReceiptData struct {
	ChatID    string `json:"chat_id" validate:"required"`
	MessageID string `json:"message_id" validate:"required"`
	TempID    string `json:"temp_id,omitempty"`
	Status    string `json:"status"`
}

type PresenceData struct {
	UserID   string `json:"user_id" validate:"required"`
	IsOnline bool   `json:"is_online"`
	LastSeen string `json:"last_seen,omitempty"`
}

// Event categories delivered to subscribers.
const (
	EventMessage     = "message"
	EventAck         = "ack"
	EventTransaction = "transaction"
	EventPresence    = "presence"
	EventConnected   = "connected"
	EventDegraded    = "degraded"
)

// Ack is the temporary-to-permanent id correlation of a delivery receipt.
type Ack struct {
	ConversationID string
	TempID         string
	MessageID      string
	Status         entity.MessageStatus
}

type Presence struct {
	UserID   string
	IsOnline bool
}

// Event is what subscribers receive. Exactly one payload field is set,
// matching Type.
type Event struct {
	Type        string
	Message     *entity.Message
	Ack         *Ack
	Transaction *entity.Transaction
	Presence    *Presence
}

func (d *MessageData) toEntity() *entity.Message {
	created, err := time.Parse(time.RFC3339, d.Timestamp)
	if err != nil {
		created = time.Now()
	}
	status := entity.MessageStatus(d.Status)
	if status == "" {
		status = entity.MessageSent
	}
	msgType := d.Type
	if msgType == "" {
		msgType = "text"
	}
	return &entity.Message{
		ID:             d.ID,
		TempID:         d.TempID,
		ConversationID: d.ChatID,
		SenderID:       d.SenderID,
		Content:        d.Content,
		Type:           msgType,
		AttachmentURL:  d.AttachmentURL,
		Status:         status,
		CreatedAt:      created,
	}
}
