package models

// LeaderboardEntry is a derived read model, computed fresh from
// points_accounts joined with streaks and user_mirrors. Never persisted.
type LeaderboardEntry struct {
	Rank          int     `json:"rank"`
	UserID        string  `json:"user_id"`
	DisplayName   string  `json:"display_name"`
	AvatarURL     *string `json:"avatar_url,omitempty"`
	TotalPoints   int64   `json:"total_points"`
	CurrentStreak int     `json:"current_streak"`
	LongestStreak int     `json:"longest_streak"`
	TotalUsers    int     `json:"total_users"`
	TopPercentage int     `json:"top_percentage"`
}

// LeaderboardResponse is the API response for a creator's leaderboard.
type LeaderboardResponse struct {
	CreatorID   string             `json:"creator_id"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	TotalUsers  int                `json:"total_users"`
}

// UserRank is a user's position within a creator's population.
// Rank 0 means the user has no points account for the creator yet.
type UserRank struct {
	Rank          int `json:"rank"`
	TotalUsers    int `json:"total_users"`
	TopPercentage int `json:"top_percentage"`
}
