package services

import (
	"time"

	"engagement-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeService struct {
	DB     *gorm.DB
	Config PointsConfig
}

func NewBadgeService(db *gorm.DB, cfg PointsConfig) *BadgeService {
	return &BadgeService{DB: db, Config: cfg}
}

type badgeRule struct {
	Type        models.BadgeType
	MinStreak   int
	MinCheckIns int
}

// badgeRules is the full badge rule set, checked after every streak update.
var badgeRules = []badgeRule{
	{Type: models.BadgeStreak3, MinStreak: 3},
	{Type: models.BadgeStreak7, MinStreak: 7},
	{Type: models.BadgeStreak30, MinStreak: 30},
	{Type: models.BadgeConsistent, MinCheckIns: 10},
}

// Evaluate is read-only and side-effect-free: given the current streak, the
// lifetime check-in count, and the badges already earned, it returns the
// badges newly eligible. Awarding is a separate, idempotent step.
func (b *BadgeService) Evaluate(streak models.StreakRecord, totalCheckIns int, alreadyEarned map[models.BadgeType]bool) []models.BadgeType {
	var eligible []models.BadgeType
	for _, rule := range badgeRules {
		if alreadyEarned[rule.Type] {
			continue
		}
		if rule.MinStreak > 0 && streak.CurrentStreak < rule.MinStreak {
			continue
		}
		if rule.MinCheckIns > 0 && totalCheckIns < rule.MinCheckIns {
			continue
		}
		eligible = append(eligible, rule.Type)
	}
	return eligible
}

// EarnedSet loads the badges already earned for the key.
func (b *BadgeService) EarnedSet(tx *gorm.DB, userID, creatorID string) (map[models.BadgeType]bool, error) {
	var rows []models.UserBadge
	if err := tx.Where("user_id = ? AND creator_id = ?", userID, creatorID).Find(&rows).Error; err != nil {
		return nil, err
	}
	earned := make(map[models.BadgeType]bool, len(rows))
	for _, r := range rows {
		earned[r.BadgeType] = true
	}
	return earned, nil
}

// insertTx awards the badge row inside the caller's transaction, relying on
// the unique (user, creator, badge) constraint for idempotency. Returns
// false when the badge already existed — a no-op, not an error.
func (b *BadgeService) insertTx(tx *gorm.DB, userID, creatorID string, badge models.BadgeType, at time.Time) (bool, error) {
	ub := models.UserBadge{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatorID: creatorID,
		BadgeType: badge,
		EarnedAt:  at,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ub)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
