package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a two-party message thread, optionally scoped to a
// single property listing. The pair (User1ID, User2ID, PropertyID) is
// the dedup key; the pair is unordered from the domain's perspective
// even though storage fixes the two slots.
type Conversation struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	User1ID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_conversation_pair" json:"user1_id"`
	User2ID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_conversation_pair" json:"user2_id"`
	PropertyID *uuid.UUID `gorm:"type:uuid;index" json:"property_id,omitempty"`

	User1UnreadCount int    `gorm:"not null" json:"user1_unread_count"`
	User2UnreadCount int    `gorm:"not null" json:"user2_unread_count"`
	LastMessageText  string `gorm:"type:text;not null" json:"last_message_text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User1    User      `gorm:"foreignkey:User1ID" json:"-"`
	User2    User      `gorm:"foreignkey:User2ID" json:"-"`
	Messages []Message `json:"-"`
}

func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// OtherParticipant returns the participant that is not userID. The
// caller must have checked HasParticipant first.
func (c *Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// UnreadFor returns the unread counter belonging to userID's slot.
func (c *Conversation) UnreadFor(userID uuid.UUID) int {
	if c.User1ID == userID {
		return c.User1UnreadCount
	}
	return c.User2UnreadCount
}
