package services

import (
	"os"
	"strconv"

	"engagement-service/models"
)

// PointsConfig defines how many points each activity is worth. Pure data:
// every value can be swapped via the environment variable of the same name
// without touching code.
type PointsConfig struct {
	StreakDaily         int64
	GoalCompleted       int64
	VideoWatched        int64
	VideoCompleted      int64
	ChatSession         int64
	ChatMessage         int64
	ChatMessageDailyCap int64
	FirstActivity       int64

	// Milestone bonus per exact streak length reached.
	MilestoneBonuses map[int]int64

	// Fixed point value credited alongside each badge award.
	BadgePoints map[models.BadgeType]int64
}

// DefaultPointsConfig returns the product defaults.
func DefaultPointsConfig() PointsConfig {
	return PointsConfig{
		StreakDaily:         5,
		GoalCompleted:       100,
		VideoWatched:        10,
		VideoCompleted:      20,
		ChatSession:         5,
		ChatMessage:         1,
		ChatMessageDailyCap: 10,
		FirstActivity:       25,
		MilestoneBonuses: map[int]int64{
			7:   50,
			14:  100,
			30:  200,
			100: 500,
		},
		BadgePoints: map[models.BadgeType]int64{
			models.BadgeStreak3:    50,
			models.BadgeStreak7:    100,
			models.BadgeStreak30:   300,
			models.BadgeConsistent: 150,
		},
	}
}

// LoadPointsConfig returns defaults overridden by environment variables.
func LoadPointsConfig() PointsConfig {
	cfg := DefaultPointsConfig()
	cfg.StreakDaily = envInt64("STREAK_DAILY", cfg.StreakDaily)
	cfg.GoalCompleted = envInt64("GOAL_COMPLETED", cfg.GoalCompleted)
	cfg.VideoWatched = envInt64("VIDEO_WATCHED", cfg.VideoWatched)
	cfg.VideoCompleted = envInt64("VIDEO_COMPLETED", cfg.VideoCompleted)
	cfg.ChatSession = envInt64("CHAT_SESSION", cfg.ChatSession)
	cfg.ChatMessage = envInt64("CHAT_MESSAGE", cfg.ChatMessage)
	cfg.ChatMessageDailyCap = envInt64("CHAT_MESSAGE_DAILY_CAP", cfg.ChatMessageDailyCap)
	cfg.FirstActivity = envInt64("FIRST_ACTIVITY", cfg.FirstActivity)
	cfg.MilestoneBonuses[7] = envInt64("STREAK_MILESTONE_7", cfg.MilestoneBonuses[7])
	cfg.MilestoneBonuses[14] = envInt64("STREAK_MILESTONE_14", cfg.MilestoneBonuses[14])
	cfg.MilestoneBonuses[30] = envInt64("STREAK_MILESTONE_30", cfg.MilestoneBonuses[30])
	cfg.MilestoneBonuses[100] = envInt64("STREAK_MILESTONE_100", cfg.MilestoneBonuses[100])
	return cfg
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
