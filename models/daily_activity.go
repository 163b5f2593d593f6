package models

import (
	"time"
)

// ActivityKind is the qualifying activity category reported by the UI tier.
type ActivityKind string

const (
	ActivityVideo ActivityKind = "video"
	ActivityChat  ActivityKind = "chat"
	ActivityGoal  ActivityKind = "goal"
)

// ValidActivityKind reports whether k is one of the recognized kinds.
func ValidActivityKind(k ActivityKind) bool {
	switch k {
	case ActivityVideo, ActivityChat, ActivityGoal:
		return true
	}
	return false
}

// DailyActivityRecord is one row per (user, creator, UTC day). Counters only
// ever increase while the day is open; the row freezes once the day ends.
type DailyActivityRecord struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_daily_activity_user_creator_day" json:"user_id"`
	CreatorID string    `gorm:"not null;uniqueIndex:idx_daily_activity_user_creator_day" json:"creator_id"`
	Day       time.Time `gorm:"not null;uniqueIndex:idx_daily_activity_user_creator_day" json:"day"`

	WatchedVideo  bool `gorm:"default:false" json:"watched_video"`
	Chatted       bool `gorm:"default:false" json:"chatted"`
	CompletedGoal bool `gorm:"default:false" json:"completed_goal"`

	VideosWatched int `gorm:"default:0" json:"videos_watched"`
	MessagesSent  int `gorm:"default:0" json:"messages_sent"`
	WatchSeconds  int `gorm:"default:0" json:"watch_seconds"`

	Timestamps
}

func (DailyActivityRecord) TableName() string {
	return "daily_activity"
}

// DidKind reports whether the given kind already happened on this day.
func (d *DailyActivityRecord) DidKind(kind ActivityKind) bool {
	switch kind {
	case ActivityVideo:
		return d.WatchedVideo
	case ActivityChat:
		return d.Chatted
	case ActivityGoal:
		return d.CompletedGoal
	}
	return false
}
