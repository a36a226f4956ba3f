package websocket

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventAuth        = "auth"
	EventSendMessage = "send_message"
	EventGetMessage  = "get_message"
	EventOnlineUsers = "online_users"
)

// InboundEvent is the envelope for every client frame. Only auth and
// send_message are handled; anything else is ignored.
type InboundEvent struct {
	Type     string `json:"type"`
	Token    string `json:"token,omitempty"`
	ChatID   string `json:"chat_id,omitempty"`
	SenderID string `json:"sender_id,omitempty"`
	Content  string `json:"content,omitempty"`
}

// MessageEvent is pushed to the recipient, either live or replayed
// from the pending queue.
type MessageEvent struct {
	Type      string    `json:"type"`
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chat_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// OnlineUsersEvent is the full presence snapshot broadcast to every
// client after each register or unregister.
type OnlineUsersEvent struct {
	Type    string      `json:"type"`
	UserIDs []uuid.UUID `json:"user_ids"`
}
