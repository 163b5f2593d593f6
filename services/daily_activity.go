package services

import (
	"errors"
	"time"

	"engagement-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// recordDailyActivity upserts the (user, creator, day) aggregate row.
// Counters only increase; the per-kind boolean flips once. Reports whether
// this was the first activity of the day and the first of its kind today —
// the gates for the daily streak bonus and the once-per-day session awards.
func (s *EngagementService) recordDailyActivity(tx *gorm.DB, userID, creatorID string, today time.Time, kind models.ActivityKind, delta activityDelta) (*models.DailyActivityRecord, bool, bool, error) {
	var rec models.DailyActivityRecord
	err := tx.Where("user_id = ? AND creator_id = ? AND day = ?", userID, creatorID, today).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rec = models.DailyActivityRecord{
			ID:            uuid.NewString(),
			UserID:        userID,
			CreatorID:     creatorID,
			Day:           today,
			WatchedVideo:  kind == models.ActivityVideo,
			Chatted:       kind == models.ActivityChat,
			CompletedGoal: kind == models.ActivityGoal,
			VideosWatched: delta.videos,
			MessagesSent:  int(delta.messages),
			WatchSeconds:  delta.watchSeconds,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return nil, false, false, err
		}
		return &rec, true, true, nil
	}
	if err != nil {
		return nil, false, false, err
	}

	firstOfKind := !rec.DidKind(kind)
	switch kind {
	case models.ActivityVideo:
		rec.WatchedVideo = true
	case models.ActivityChat:
		rec.Chatted = true
	case models.ActivityGoal:
		rec.CompletedGoal = true
	}
	rec.VideosWatched += delta.videos
	rec.MessagesSent += int(delta.messages)
	rec.WatchSeconds += delta.watchSeconds

	if err := tx.Save(&rec).Error; err != nil {
		return nil, false, false, err
	}
	return &rec, false, firstOfKind, nil
}
