package services

import (
	"errors"
	"time"

	"engagement-service/models"
	"engagement-service/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// streakTransition classifies what one day's activity did to the streak.
type streakTransition int

const (
	// transitionSameDay: the day already counted; nothing changes.
	transitionSameDay streakTransition = iota
	// transitionFirstEver: first activity for this (user, creator) key.
	transitionFirstEver
	// transitionContinued: yesterday was active; streak extends by one.
	transitionContinued
	// transitionReset: gap of two or more days; the triggering activity
	// starts a new streak of length 1, never 0.
	transitionReset
)

// advanceStreak applies the per-day state machine to the key's streak row
// and returns the transition plus the milestone hit (0 if none). Runs inside
// the caller's transaction, under the same per-key lock as the daily
// aggregate write.
func (s *EngagementService) advanceStreak(tx *gorm.DB, userID, creatorID string, kind models.ActivityKind, today time.Time) (*models.StreakRecord, streakTransition, int, error) {
	var rec models.StreakRecord
	err := tx.Where("user_id = ? AND creator_id = ?", userID, creatorID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rec = models.StreakRecord{
			ID:            uuid.NewString(),
			UserID:        userID,
			CreatorID:     creatorID,
			CurrentStreak: 1,
			LongestStreak: 1,
		}
		setStreakDates(&rec, kind, today)
		if err := tx.Create(&rec).Error; err != nil {
			return nil, transitionFirstEver, 0, err
		}
		return &rec, transitionFirstEver, 0, nil
	}
	if err != nil {
		return nil, transitionSameDay, 0, err
	}

	var trans streakTransition
	switch {
	case rec.ActiveOn(today):
		trans = transitionSameDay
	case rec.LastActivityDate != nil && utils.DayGap(*rec.LastActivityDate, today) == 1:
		rec.CurrentStreak++
		trans = transitionContinued
	default:
		rec.CurrentStreak = 1
		trans = transitionReset
	}
	if rec.CurrentStreak > rec.LongestStreak {
		rec.LongestStreak = rec.CurrentStreak
	}
	setStreakDates(&rec, kind, today)

	if err := tx.Save(&rec).Error; err != nil {
		return nil, trans, 0, err
	}

	// Milestones fire only on a continued streak landing exactly on a
	// breakpoint. A first-ever or reset transition lands on 1, which is
	// never a breakpoint; same-day re-entry never re-fires one.
	milestone := 0
	if trans == transitionContinued {
		if _, ok := s.Config.MilestoneBonuses[rec.CurrentStreak]; ok {
			milestone = rec.CurrentStreak
		}
	}
	return &rec, trans, milestone, nil
}

func setStreakDates(rec *models.StreakRecord, kind models.ActivityKind, today time.Time) {
	day := today
	rec.LastActivityDate = &day
	switch kind {
	case models.ActivityVideo:
		rec.LastVideoDate = &day
	case models.ActivityChat:
		rec.LastChatDate = &day
	}
}
