package models

import (
	"time"

	"github.com/google/uuid"
)

// Property is the listing a conversation may be scoped to. Listing
// CRUD and search belong to the listings service; this row exists so
// conversations can reference it.
type Property struct {
	ID      uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OwnerID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	Title   string    `gorm:"size:255;not null" json:"title"`

	Owner User `gorm:"foreignkey:OwnerID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
