package models

import (
	"time"
)

// BadgeType identifies a badge. A badge is earned at most once per
// (user, creator), ever.
type BadgeType string

const (
	BadgeStreak3    BadgeType = "streak_3"
	BadgeStreak7    BadgeType = "streak_7"
	BadgeStreak30   BadgeType = "streak_30"
	BadgeConsistent BadgeType = "consistent"
)

// UserBadge is an awarded badge instance. The composite unique index is the
// idempotency guard: a second insert for the same badge is a no-op.
type UserBadge struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_user_badges_user_creator_type" json:"user_id"`
	CreatorID string    `gorm:"not null;uniqueIndex:idx_user_badges_user_creator_type" json:"creator_id"`
	BadgeType BadgeType `gorm:"type:varchar(32);not null;uniqueIndex:idx_user_badges_user_creator_type" json:"badge_type"`
	EarnedAt  time.Time `json:"earned_at"`
}
