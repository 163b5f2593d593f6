package models

import (
	"encoding/json"
	"time"
)

// TransactionType enumerates every way points can be earned. The ledger is
// append-only: the sum of a key's transactions must always equal that key's
// PointsAccount.TotalPoints.
type TransactionType string

const (
	TxStreakDaily     TransactionType = "streak_daily"
	TxStreakMilestone TransactionType = "streak_milestone"
	TxGoalCompleted   TransactionType = "goal_completed"
	TxVideoWatched    TransactionType = "video_watched"
	TxVideoCompleted  TransactionType = "video_completed"
	TxChatSession     TransactionType = "chat_session"
	TxChatMessages    TransactionType = "chat_messages"
	TxFirstActivity   TransactionType = "first_activity"
	TxBadgeEarned     TransactionType = "badge_earned"
)

// PointCategory is the balance bucket a transaction credits.
type PointCategory string

const (
	CategoryStreak PointCategory = "streak"
	CategoryVideo  PointCategory = "video"
	CategoryChat   PointCategory = "chat"
	CategoryGoal   PointCategory = "goal"
)

// CategoryFor maps a transaction type to its balance bucket. first_activity
// and badge_earned credit the streak bucket — both reward showing up, not a
// specific content interaction.
func CategoryFor(t TransactionType) PointCategory {
	switch t {
	case TxVideoWatched, TxVideoCompleted:
		return CategoryVideo
	case TxChatSession, TxChatMessages:
		return CategoryChat
	case TxGoalCompleted:
		return CategoryGoal
	default: // streak_daily, streak_milestone, first_activity, badge_earned
		return CategoryStreak
	}
}

// PointsAccount is the per-(user, creator) balance, denormalized for reads.
// The row with CreatorID == "" aggregates a user's points across all
// creators. Invariant: TotalPoints == sum of the four category columns.
type PointsAccount struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string `gorm:"not null;uniqueIndex:idx_points_accounts_user_creator" json:"user_id"`
	CreatorID string `gorm:"not null;default:'';uniqueIndex:idx_points_accounts_user_creator" json:"creator_id"`

	TotalPoints  int64 `gorm:"default:0" json:"total_points"`
	StreakPoints int64 `gorm:"default:0" json:"streak_points"`
	GoalPoints   int64 `gorm:"default:0" json:"goal_points"`
	VideoPoints  int64 `gorm:"default:0" json:"video_points"`
	ChatPoints   int64 `gorm:"default:0" json:"chat_points"`

	Timestamps
}

// Credit adds points to the category bucket and the total in one step so the
// split invariant cannot be violated by a partial update.
func (a *PointsAccount) Credit(cat PointCategory, points int64) {
	a.TotalPoints += points
	switch cat {
	case CategoryStreak:
		a.StreakPoints += points
	case CategoryVideo:
		a.VideoPoints += points
	case CategoryChat:
		a.ChatPoints += points
	case CategoryGoal:
		a.GoalPoints += points
	}
}

// CategorySum returns the sum of the four category buckets.
func (a *PointsAccount) CategorySum() int64 {
	return a.StreakPoints + a.GoalPoints + a.VideoPoints + a.ChatPoints
}

// PointTransaction is an immutable ledger entry. Rows are only ever appended,
// inside the same transaction as the account update they describe.
type PointTransaction struct {
	ID        string          `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string          `gorm:"not null;index:idx_points_transactions_user_creator" json:"user_id"`
	CreatorID string          `gorm:"not null;index:idx_points_transactions_user_creator" json:"creator_id"`
	Type      TransactionType `gorm:"type:varchar(32);not null;index" json:"type"`
	Points    int64           `gorm:"not null" json:"points"`
	Metadata  string          `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time       `gorm:"index" json:"created_at"`
}

func (PointTransaction) TableName() string {
	return "points_transactions"
}

// TransactionMetadata is a tagged union: exactly one variant is set,
// matching the transaction's type. Serialized to the jsonb metadata column.
type TransactionMetadata struct {
	Activity  *ActivityMetadata  `json:"activity,omitempty"`
	Streak    *StreakMetadata    `json:"streak,omitempty"`
	Milestone *MilestoneMetadata `json:"milestone,omitempty"`
	Video     *VideoMetadata     `json:"video,omitempty"`
	Chat      *ChatMetadata      `json:"chat,omitempty"`
	Goal      *GoalMetadata      `json:"goal,omitempty"`
	Badge     *BadgeMetadata     `json:"badge,omitempty"`
}

type ActivityMetadata struct {
	Kind ActivityKind `json:"kind"`
}

type StreakMetadata struct {
	Streak int `json:"streak"`
}

type MilestoneMetadata struct {
	Milestone int `json:"milestone"`
}

type VideoMetadata struct {
	WatchSeconds int `json:"watch_seconds,omitempty"`
}

type ChatMetadata struct {
	Requested int64 `json:"requested"`
	Awarded   int64 `json:"awarded"`
}

type GoalMetadata struct {
	GoalID string `json:"goal_id"`
}

type BadgeMetadata struct {
	Badge BadgeType `json:"badge"`
}

// JSON renders the metadata for storage. An empty union stores as "{}".
func (m TransactionMetadata) JSON() string {
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}
