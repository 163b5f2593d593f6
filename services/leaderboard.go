package services

import (
	"errors"
	"fmt"
	"time"

	"engagement-service/models"
	"engagement-service/utils"

	"gorm.io/gorm"
)

// LeaderboardService computes ranked views over points_accounts. Reads are
// pure and point-in-time: they run outside any write critical section and
// may lag a write by a request window, so results are cacheable.
type LeaderboardService struct {
	DB *gorm.DB
}

func NewLeaderboardService(db *gorm.DB) *LeaderboardService {
	return &LeaderboardService{DB: db}
}

const leaderboardCacheTTL = 30 * time.Second

// GetLeaderboard returns the top limit users for a creator, ordered by total
// points descending, ties broken by earliest account creation.
func (s *LeaderboardService) GetLeaderboard(creatorID string, limit int) (models.LeaderboardResponse, error) {
	resp := models.LeaderboardResponse{CreatorID: creatorID}
	if s.DB == nil || creatorID == "" {
		return resp, nil
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	cacheKey := fmt.Sprintf("leaderboard:%s:%d", creatorID, limit)
	if utils.CacheGetJSON(cacheKey, &resp) {
		return resp, nil
	}

	var total int64
	if err := s.DB.Model(&models.PointsAccount{}).
		Where("creator_id = ?", creatorID).
		Count(&total).Error; err != nil {
		return resp, storeError("count accounts", err)
	}

	var rows []struct {
		UserID        string
		DisplayName   *string
		AvatarURL     *string
		TotalPoints   int64
		CurrentStreak int
		LongestStreak int
	}
	if err := s.DB.Raw(`
		SELECT pa.user_id,
		       um.display_name,
		       um.avatar_url,
		       pa.total_points,
		       COALESCE(st.current_streak, 0) AS current_streak,
		       COALESCE(st.longest_streak, 0) AS longest_streak
		FROM points_accounts pa
		LEFT JOIN user_mirrors um ON um.external_user_id = pa.user_id
		LEFT JOIN streaks st ON st.user_id = pa.user_id AND st.creator_id = pa.creator_id
		WHERE pa.creator_id = ?
		ORDER BY pa.total_points DESC, pa.created_at ASC
		LIMIT ?`, creatorID, limit).Scan(&rows).Error; err != nil {
		return resp, storeError("load leaderboard", err)
	}

	resp.TotalUsers = int(total)
	resp.Leaderboard = make([]models.LeaderboardEntry, 0, len(rows))
	for i, r := range rows {
		name := r.UserID
		if r.DisplayName != nil && *r.DisplayName != "" {
			name = *r.DisplayName
		}
		rank := i + 1
		resp.Leaderboard = append(resp.Leaderboard, models.LeaderboardEntry{
			Rank:          rank,
			UserID:        r.UserID,
			DisplayName:   name,
			AvatarURL:     r.AvatarURL,
			TotalPoints:   r.TotalPoints,
			CurrentStreak: r.CurrentStreak,
			LongestStreak: r.LongestStreak,
			TotalUsers:    resp.TotalUsers,
			TopPercentage: topPercentage(rank, resp.TotalUsers),
		})
	}

	utils.CacheSetJSON(cacheKey, resp, leaderboardCacheTTL)
	return resp, nil
}

// GetUserRank returns the 1-based rank of a user within a creator's
// population. Rank 0 means the user has no account for that creator yet.
func (s *LeaderboardService) GetUserRank(userID, creatorID string) (models.UserRank, error) {
	if s.DB == nil {
		return models.UserRank{}, nil
	}

	var total int64
	if err := s.DB.Model(&models.PointsAccount{}).
		Where("creator_id = ?", creatorID).
		Count(&total).Error; err != nil {
		return models.UserRank{}, storeError("count accounts", err)
	}

	var acct models.PointsAccount
	err := s.DB.Where("user_id = ? AND creator_id = ?", userID, creatorID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.UserRank{TotalUsers: int(total)}, nil
	}
	if err != nil {
		return models.UserRank{}, storeError("load account", err)
	}

	var ahead int64
	if err := s.DB.Model(&models.PointsAccount{}).
		Where("creator_id = ? AND (total_points > ? OR (total_points = ? AND created_at < ?))",
			creatorID, acct.TotalPoints, acct.TotalPoints, acct.CreatedAt).
		Count(&ahead).Error; err != nil {
		return models.UserRank{}, storeError("rank account", err)
	}

	rank := int(ahead) + 1
	return models.UserRank{
		Rank:          rank,
		TotalUsers:    int(total),
		TopPercentage: topPercentage(rank, int(total)),
	}, nil
}

// topPercentage buckets a rank as "top N%", rounded up.
func topPercentage(rank, total int) int {
	if total <= 0 || rank <= 0 {
		return 0
	}
	return (100*rank + total - 1) / total
}
