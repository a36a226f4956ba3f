package models

import (
	"time"

	"github.com/google/uuid"
)

// User carries only what the messaging core needs. Registration, login
// and profile editing live in a separate service.
type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	FullName string    `gorm:"size:255;not null" json:"full_name"`
	Email    string    `gorm:"size:255;not null;unique" json:"email"`

	ProfilePictureURL *string `gorm:"size:255" json:"profile_picture_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
