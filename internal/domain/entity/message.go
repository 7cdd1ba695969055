package entity

import "time"

type MessageStatus string

const (
	MessageSending   MessageStatus = "sending"
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
	MessageFailed    MessageStatus = "failed"
)

var statusRank = map[MessageStatus]int{
	MessageSending:   0,
	MessageSent:      1,
	MessageDelivered: 2,
	MessageRead:      3,
}

// CanTransition reports whether a delivery status may move from s to next.
// Delivery is a forward path; the only regression allowed is into failed.
func (s MessageStatus) CanTransition(next MessageStatus) bool {
	if s == MessageFailed {
		return false
	}
	if next == MessageFailed {
		return true
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

type MessageDirection string

const (
	DirectionOwn         MessageDirection = "own"
	DirectionCounterpart MessageDirection = "counterpart"
	DirectionSystem      MessageDirection = "system"
)

type Message struct {
	ID             string           `json:"id"`
	TempID         string           `json:"temp_id,omitempty"`
	ConversationID string           `json:"conversation_id" validate:"required"`
	SenderID       string           `json:"sender_id"`
	Direction      MessageDirection `json:"direction,omitempty"`
	Content        string           `json:"content"`
	Type           string           `json:"type"` // "text", "image", "system", "offer"
	AttachmentURL  string           `json:"attachment_url,omitempty"`
	Status         MessageStatus    `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Pending reports whether the message is still an optimistic local entry
// waiting for the server to assign it a permanent id.
func (m *Message) Pending() bool {
	return m.ID == "" && m.TempID != ""
}
