package services

import (
	"fmt"
	"sync"
	"time"

	"engagement-service/models"
	"engagement-service/utils"

	"gorm.io/gorm"
)

// EngagementService turns raw user activity into streaks, point balances,
// badge awards, and leaderboard standing. All writes for one (user, creator)
// key are serialized behind a keyed mutex and applied in one DB transaction.
//
// A service built with a nil DB is a no-op engine: every call returns empty
// results so the UI degrades gracefully for anonymous/offline use.
type EngagementService struct {
	DB     *gorm.DB
	Config PointsConfig

	// Now supplies the clock; tests swap it to walk across calendar days.
	Now func() time.Time

	locks  keyLocks
	frozen sync.Map // engagement key -> struct{}, set on reconciliation failure
}

func NewEngagementService(db *gorm.DB, cfg PointsConfig) *EngagementService {
	return &EngagementService{DB: db, Config: cfg, Now: time.Now}
}

// ActivityResult summarizes what one recorded activity changed.
type ActivityResult struct {
	Accepted      bool               `json:"accepted"`
	PointsAwarded int64              `json:"points_awarded"`
	FirstOfDay    bool               `json:"first_of_day"`
	CurrentStreak int                `json:"current_streak"`
	LongestStreak int                `json:"longest_streak"`
	Milestone     int                `json:"milestone,omitempty"`
	NewBadges     []models.BadgeType `json:"new_badges,omitempty"`
}

// EngagementSummary is the read model behind the profile header.
type EngagementSummary struct {
	CurrentStreak int                  `json:"current_streak"`
	LongestStreak int                  `json:"longest_streak"`
	Points        models.PointsAccount `json:"points"`
	Rank          models.UserRank      `json:"rank"`
	Badges        []models.BadgeType   `json:"badges"`
}

// activityDelta carries the countable parts of one activity event.
type activityDelta struct {
	videos       int
	messages     int64
	watchSeconds int
	goalID       string
	completed    bool
}

// RecordActivity records one qualifying activity of the given kind.
func (s *EngagementService) RecordActivity(userID, creatorID string, kind models.ActivityKind, watchSeconds int) (ActivityResult, error) {
	if watchSeconds < 0 {
		watchSeconds = 0
	}
	delta := activityDelta{watchSeconds: watchSeconds}
	if kind == models.ActivityVideo {
		delta.videos = 1
	}
	return s.record(userID, creatorID, kind, delta)
}

// RecordVideoCompletion records a finished video. The completion bonus is
// per event; the watch credit stays once per day.
func (s *EngagementService) RecordVideoCompletion(userID, creatorID string, watchSeconds int) (ActivityResult, error) {
	if watchSeconds < 0 {
		watchSeconds = 0
	}
	return s.record(userID, creatorID, models.ActivityVideo, activityDelta{
		watchSeconds: watchSeconds,
		completed:    true,
	})
}

// RecordChatMessages records count sent messages. Message points are capped
// per day; the cap check is atomic with the ledger append.
func (s *EngagementService) RecordChatMessages(userID, creatorID string, count int) (ActivityResult, error) {
	if count < 0 {
		count = 0
	}
	return s.record(userID, creatorID, models.ActivityChat, activityDelta{messages: int64(count)})
}

// RecordGoalCompletion records a completed goal.
func (s *EngagementService) RecordGoalCompletion(userID, creatorID, goalID string) (ActivityResult, error) {
	return s.record(userID, creatorID, models.ActivityGoal, activityDelta{goalID: goalID})
}

// record runs the full critical section: daily aggregate upsert, streak
// transition, ledger appends, account credits, and badge evaluation.
func (s *EngagementService) record(userID, creatorID string, kind models.ActivityKind, delta activityDelta) (ActivityResult, error) {
	var res ActivityResult
	if s.DB == nil {
		return res, nil
	}
	if userID == "" || creatorID == "" {
		return res, fmt.Errorf("record activity: user and creator ids are required")
	}
	if !models.ValidActivityKind(kind) {
		return res, fmt.Errorf("record activity: unknown kind %q", kind)
	}
	if s.isFrozen(userID, creatorID) {
		return res, ErrKeyFrozen
	}

	unlock := s.locks.lock(engagementKey(userID, creatorID))
	defer unlock()

	now := s.Now().UTC()
	today := utils.DayOf(now)

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		_, firstOfDay, firstOfKind, err := s.recordDailyActivity(tx, userID, creatorID, today, kind, delta)
		if err != nil {
			return err
		}
		res.FirstOfDay = firstOfDay

		streak, trans, milestone, err := s.advanceStreak(tx, userID, creatorID, kind, today)
		if err != nil {
			return err
		}
		res.CurrentStreak = streak.CurrentStreak
		res.LongestStreak = streak.LongestStreak
		res.Milestone = milestone

		award := func(typ models.TransactionType, points int64, meta models.TransactionMetadata) error {
			r, err := s.award(tx, userID, creatorID, typ, points, meta, now)
			if err != nil {
				return err
			}
			res.PointsAwarded += r.PointsAwarded
			return nil
		}

		// Daily bonus gating follows the transition type, never a value
		// comparison: same-day re-entry earns nothing.
		switch trans {
		case transitionFirstEver:
			if err := award(models.TxFirstActivity, s.Config.FirstActivity,
				models.TransactionMetadata{Activity: &models.ActivityMetadata{Kind: kind}}); err != nil {
				return err
			}
		case transitionContinued, transitionReset:
			if err := award(models.TxStreakDaily, s.Config.StreakDaily,
				models.TransactionMetadata{Streak: &models.StreakMetadata{Streak: streak.CurrentStreak}}); err != nil {
				return err
			}
		}
		if milestone > 0 {
			if err := award(models.TxStreakMilestone, s.Config.MilestoneBonuses[milestone],
				models.TransactionMetadata{Milestone: &models.MilestoneMetadata{Milestone: milestone}}); err != nil {
				return err
			}
		}

		switch kind {
		case models.ActivityVideo:
			if firstOfKind {
				if err := award(models.TxVideoWatched, s.Config.VideoWatched,
					models.TransactionMetadata{Video: &models.VideoMetadata{WatchSeconds: delta.watchSeconds}}); err != nil {
					return err
				}
			}
			if delta.completed {
				if err := award(models.TxVideoCompleted, s.Config.VideoCompleted,
					models.TransactionMetadata{Video: &models.VideoMetadata{WatchSeconds: delta.watchSeconds}}); err != nil {
					return err
				}
			}
		case models.ActivityChat:
			if firstOfKind {
				if err := award(models.TxChatSession, s.Config.ChatSession, models.TransactionMetadata{}); err != nil {
					return err
				}
			}
			if delta.messages > 0 {
				requested := delta.messages * s.Config.ChatMessage
				r, err := s.award(tx, userID, creatorID, models.TxChatMessages, requested,
					models.TransactionMetadata{Chat: &models.ChatMetadata{Requested: requested}}, now)
				if err != nil {
					return err
				}
				res.PointsAwarded += r.PointsAwarded
			}
		case models.ActivityGoal:
			if err := award(models.TxGoalCompleted, s.Config.GoalCompleted,
				models.TransactionMetadata{Goal: &models.GoalMetadata{GoalID: delta.goalID}}); err != nil {
				return err
			}
		}

		newBadges, err := s.evaluateBadges(tx, userID, creatorID, streak, award, now)
		if err != nil {
			return err
		}
		res.NewBadges = newBadges
		return nil
	})
	if err != nil {
		return ActivityResult{}, storeError("record "+string(kind), err)
	}
	res.Accepted = true
	return res, nil
}

// evaluateBadges runs the rule set against post-update state and awards the
// newly eligible badges. Badge row + its points are part of the caller's
// transaction: one never exists without the other.
func (s *EngagementService) evaluateBadges(tx *gorm.DB, userID, creatorID string, streak *models.StreakRecord, award func(models.TransactionType, int64, models.TransactionMetadata) error, now time.Time) ([]models.BadgeType, error) {
	badgeSvc := NewBadgeService(tx, s.Config)

	var checkIns int64
	if err := tx.Model(&models.DailyActivityRecord{}).
		Where("user_id = ? AND creator_id = ?", userID, creatorID).
		Count(&checkIns).Error; err != nil {
		return nil, err
	}

	earned, err := badgeSvc.EarnedSet(tx, userID, creatorID)
	if err != nil {
		return nil, err
	}

	var awarded []models.BadgeType
	for _, badge := range badgeSvc.Evaluate(*streak, int(checkIns), earned) {
		inserted, err := badgeSvc.insertTx(tx, userID, creatorID, badge, now)
		if err != nil {
			return nil, err
		}
		if !inserted {
			continue
		}
		if err := award(models.TxBadgeEarned, s.Config.BadgePoints[badge],
			models.TransactionMetadata{Badge: &models.BadgeMetadata{Badge: badge}}); err != nil {
			return nil, err
		}
		awarded = append(awarded, badge)
	}
	return awarded, nil
}

// GetEngagementSummary returns streak, points, rank, and badges for the key.
func (s *EngagementService) GetEngagementSummary(userID, creatorID string) (EngagementSummary, error) {
	var sum EngagementSummary
	if s.DB == nil {
		return sum, nil
	}

	var streak models.StreakRecord
	err := s.DB.Where("user_id = ? AND creator_id = ?", userID, creatorID).First(&streak).Error
	if err == nil {
		sum.CurrentStreak = streak.CurrentStreak
		sum.LongestStreak = streak.LongestStreak
	} else if err != gorm.ErrRecordNotFound {
		return sum, storeError("load streak", err)
	}

	var acct models.PointsAccount
	err = s.DB.Where("user_id = ? AND creator_id = ?", userID, creatorID).First(&acct).Error
	if err == nil {
		sum.Points = acct
	} else if err != gorm.ErrRecordNotFound {
		return sum, storeError("load points account", err)
	}

	rank, err := NewLeaderboardService(s.DB).GetUserRank(userID, creatorID)
	if err != nil {
		return sum, err
	}
	sum.Rank = rank

	earned, err := NewBadgeService(s.DB, s.Config).EarnedSet(s.DB, userID, creatorID)
	if err != nil {
		return sum, storeError("load badges", err)
	}
	for badge := range earned {
		sum.Badges = append(sum.Badges, badge)
	}
	return sum, nil
}

// freezeKey blocks further writes for the key. An empty creatorID freezes
// every key of the user (aggregate-row violations).
func (s *EngagementService) freezeKey(userID, creatorID string) {
	s.frozen.Store(engagementKey(userID, creatorID), struct{}{})
}

func (s *EngagementService) isFrozen(userID, creatorID string) bool {
	if _, ok := s.frozen.Load(engagementKey(userID, creatorID)); ok {
		return true
	}
	_, ok := s.frozen.Load(engagementKey(userID, ""))
	return ok
}
