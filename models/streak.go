package models

import (
	"time"
)

// StreakRecord tracks consecutive-day activity for one (user, creator) pair.
// Created lazily on first activity, mutated at most once per calendar day.
// Invariant: LongestStreak >= CurrentStreak.
type StreakRecord struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string `gorm:"not null;uniqueIndex:idx_streaks_user_creator" json:"user_id"`
	CreatorID string `gorm:"not null;uniqueIndex:idx_streaks_user_creator" json:"creator_id"`

	CurrentStreak int `gorm:"default:0" json:"current_streak"`
	LongestStreak int `gorm:"default:0" json:"longest_streak"`

	// All dates are UTC calendar days (midnight-normalized).
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`
	LastVideoDate    *time.Time `json:"last_video_date,omitempty"`
	LastChatDate     *time.Time `json:"last_chat_date,omitempty"`

	Timestamps
}

func (StreakRecord) TableName() string {
	return "streaks"
}

// ActiveOn reports whether the streak already counted the given day.
func (s *StreakRecord) ActiveOn(day time.Time) bool {
	return s.LastActivityDate != nil && s.LastActivityDate.Equal(day)
}
