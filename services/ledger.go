package services

import (
	"fmt"
	"time"

	"engagement-service/models"
	"engagement-service/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AwardResult reports whether an award was applied and for how many points.
// accepted=false with a nil error means the daily cap swallowed the award —
// a normal outcome, not a failure.
type AwardResult struct {
	Accepted      bool  `json:"accepted"`
	PointsAwarded int64 `json:"points_awarded"`
}

// award appends a ledger transaction and credits the creator-scoped account
// and the cross-creator aggregate row, all inside the caller's transaction.
// The ledger append and the account update commit or roll back together,
// which is what keeps the reconciliation invariant intact.
//
// chat_messages awards are capped: the sum of today's chat_messages
// transactions is read in the same transaction as the append, so two
// concurrent bursts for one user cannot jointly exceed the cap.
func (s *EngagementService) award(tx *gorm.DB, userID, creatorID string, typ models.TransactionType, points int64, meta models.TransactionMetadata, at time.Time) (AwardResult, error) {
	if points <= 0 {
		return AwardResult{}, nil
	}

	if typ == models.TxChatMessages {
		dayStart := utils.DayOf(at)
		dayEnd := utils.NextDay(dayStart)
		var already int64
		if err := tx.Model(&models.PointTransaction{}).
			Select("COALESCE(SUM(points), 0)").
			Where("user_id = ? AND creator_id = ? AND type = ? AND created_at >= ? AND created_at < ?",
				userID, creatorID, models.TxChatMessages, dayStart, dayEnd).
			Scan(&already).Error; err != nil {
			return AwardResult{}, err
		}
		remaining := s.Config.ChatMessageDailyCap - already
		if remaining <= 0 {
			return AwardResult{Accepted: false}, nil
		}
		if points > remaining {
			points = remaining
		}
		if meta.Chat != nil {
			meta.Chat.Awarded = points
		}
	}

	txn := models.PointTransaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatorID: creatorID,
		Type:      typ,
		Points:    points,
		Metadata:  meta.JSON(),
		CreatedAt: at,
	}
	if err := tx.Create(&txn).Error; err != nil {
		return AwardResult{}, err
	}

	if err := s.creditAccount(tx, userID, creatorID, typ, points); err != nil {
		return AwardResult{}, err
	}
	if err := s.creditAccount(tx, userID, "", typ, points); err != nil {
		return AwardResult{}, err
	}
	return AwardResult{Accepted: true, PointsAwarded: points}, nil
}

// creditAccount adds points to the account's category and total. The update
// is relative (column + delta), never an absolute value computed from a read:
// the aggregate row (creator_id = "") is shared by every key of the user, and
// transactions for different creators hold different key locks, so a write
// built on a stale read would drop a concurrent creator's credit.
func (s *EngagementService) creditAccount(tx *gorm.DB, userID, creatorID string, typ models.TransactionType, points int64) error {
	cat := models.CategoryFor(typ)

	n, err := creditExisting(tx, userID, creatorID, cat, points)
	if err != nil || n > 0 {
		return err
	}

	acct := models.PointsAccount{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatorID: creatorID,
	}
	acct.Credit(cat, points)
	ins := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "creator_id"}},
		DoNothing: true,
	}).Create(&acct)
	if ins.Error != nil {
		return ins.Error
	}
	if ins.RowsAffected > 0 {
		return nil
	}

	// Lost the insert race, so the row exists now.
	n, err = creditExisting(tx, userID, creatorID, cat, points)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("points account %s/%s missing after conflicting insert", userID, creatorID)
	}
	return nil
}

func creditExisting(tx *gorm.DB, userID, creatorID string, cat models.PointCategory, points int64) (int64, error) {
	col := categoryColumn(cat)
	res := tx.Model(&models.PointsAccount{}).
		Where("user_id = ? AND creator_id = ?", userID, creatorID).
		Updates(map[string]interface{}{
			"total_points": gorm.Expr("total_points + ?", points),
			col:            gorm.Expr(col+" + ?", points),
		})
	return res.RowsAffected, res.Error
}

func categoryColumn(cat models.PointCategory) string {
	switch cat {
	case models.CategoryVideo:
		return "video_points"
	case models.CategoryChat:
		return "chat_points"
	case models.CategoryGoal:
		return "goal_points"
	default:
		return "streak_points"
	}
}
