package entity

import "time"

// Conversation is the preview of the exchange with one counterpart. Identity
// is the counterpart's user id: there is exactly one conversation per
// counterpart, implicit in the message history, never deleted.
type Conversation struct {
	CounterpartID   string    `json:"counterpart_id" validate:"required"`
	CounterpartName string    `json:"counterpart_name"`
	AvatarURL       string    `json:"avatar_url,omitempty"`
	LastMessage     string    `json:"last_message,omitempty"`
	LastMessageAt   time.Time `json:"last_message_at"`
	UnreadCount     int       `json:"unread_count" validate:"gte=0"`
	Online          bool      `json:"online"`
	TransactionID   string    `json:"transaction_id,omitempty"`
}
