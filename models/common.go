package models

import "time"

// Timestamps adds GORM auto-times. Engagement rows are never deleted, so
// there is no soft-delete column here.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
