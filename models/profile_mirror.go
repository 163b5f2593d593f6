package models

import (
	"time"
)

// UserMirror is a local snapshot of the display data the leaderboard needs.
// Owned solely by the profile sync worker; the engine never writes it.
type UserMirror struct {
	ID             string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string  `gorm:"uniqueIndex;not null" json:"external_user_id"` // the identity provider's id
	DisplayName    string  `gorm:"not null" json:"display_name"`
	AvatarURL      *string `json:"avatar_url,omitempty"`

	SyncedAt  time.Time `json:"synced_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreatorMirror is the coach/community identity that scopes engagement.
// Populated by the profile sync worker from the profile service.
type CreatorMirror struct {
	ID                string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalCreatorID string  `gorm:"uniqueIndex;not null" json:"external_creator_id"`
	DisplayName       string  `gorm:"not null" json:"display_name"`
	Handle            string  `json:"handle"`
	Slug              string  `gorm:"index" json:"slug"`
	AvatarURL         *string `json:"avatar_url,omitempty"`

	SyncedAt  time.Time `json:"synced_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
