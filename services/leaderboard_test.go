package services_test

import (
	"testing"
	"time"

	"engagement-service/models"
	"engagement-service/services"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func seedAccount(t *testing.T, db *gorm.DB, userID, creatorID string, total int64, createdAt time.Time) {
	t.Helper()
	acct := models.PointsAccount{
		ID:           uuid.NewString(),
		UserID:       userID,
		CreatorID:    creatorID,
		TotalPoints:  total,
		StreakPoints: total,
	}
	acct.CreatedAt = createdAt
	acct.UpdatedAt = createdAt
	if err := db.Create(&acct).Error; err != nil {
		t.Fatalf("seed account %s: %v", userID, err)
	}
}

func TestLeaderboard_OrderingAndPercentile(t *testing.T) {
	db := testDB(t)
	svc := services.NewLeaderboardService(db)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	// u1 and u2 are tied on points; u1's account is older and wins the tie.
	seedAccount(t, db, "u1", "coach-1", 300, base)
	seedAccount(t, db, "u2", "coach-1", 300, base.Add(time.Hour))
	seedAccount(t, db, "u3", "coach-1", 100, base.Add(2*time.Hour))

	resp, err := svc.GetLeaderboard("coach-1", 10)
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	if resp.TotalUsers != 3 {
		t.Fatalf("total users = %d, want 3", resp.TotalUsers)
	}
	wantOrder := []string{"u1", "u2", "u3"}
	if len(resp.Leaderboard) != 3 {
		t.Fatalf("entries = %d, want 3", len(resp.Leaderboard))
	}
	for i, want := range wantOrder {
		e := resp.Leaderboard[i]
		if e.UserID != want {
			t.Fatalf("rank %d = %s, want %s", i+1, e.UserID, want)
		}
		if e.Rank != i+1 {
			t.Fatalf("entry rank = %d, want %d", e.Rank, i+1)
		}
	}
	// ceil(100 * 2 / 3) = 67
	if resp.Leaderboard[1].TopPercentage != 67 {
		t.Fatalf("rank-2 top percentage = %d, want 67", resp.Leaderboard[1].TopPercentage)
	}
}

func TestLeaderboard_UsesMirroredDisplayNames(t *testing.T) {
	db := testDB(t)
	svc := services.NewLeaderboardService(db)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seedAccount(t, db, "u1", "coach-1", 50, base)
	seedAccount(t, db, "u2", "coach-1", 40, base)

	avatar := "https://cdn.example.com/u1.png"
	mirror := models.UserMirror{
		ID:             uuid.NewString(),
		ExternalUserID: "u1",
		DisplayName:    "Alice",
		AvatarURL:      &avatar,
		SyncedAt:       base,
	}
	if err := db.Create(&mirror).Error; err != nil {
		t.Fatalf("seed mirror: %v", err)
	}

	resp, err := svc.GetLeaderboard("coach-1", 10)
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	if resp.Leaderboard[0].DisplayName != "Alice" {
		t.Fatalf("display name = %q, want Alice", resp.Leaderboard[0].DisplayName)
	}
	if resp.Leaderboard[0].AvatarURL == nil || *resp.Leaderboard[0].AvatarURL != avatar {
		t.Fatal("avatar url not joined from mirror")
	}
	// No mirror row falls back to the raw user id.
	if resp.Leaderboard[1].DisplayName != "u2" {
		t.Fatalf("fallback display name = %q, want u2", resp.Leaderboard[1].DisplayName)
	}
}

func TestGetUserRank(t *testing.T) {
	db := testDB(t)
	svc := services.NewLeaderboardService(db)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seedAccount(t, db, "u1", "coach-1", 300, base)
	seedAccount(t, db, "u2", "coach-1", 300, base.Add(time.Hour))
	seedAccount(t, db, "u3", "coach-1", 100, base.Add(2*time.Hour))

	rank, err := svc.GetUserRank("u2", "coach-1")
	if err != nil {
		t.Fatalf("get rank: %v", err)
	}
	if rank.Rank != 2 || rank.TotalUsers != 3 || rank.TopPercentage != 67 {
		t.Fatalf("rank = %+v, want {2 3 67}", rank)
	}

	rank, err = svc.GetUserRank("u1", "coach-1")
	if err != nil {
		t.Fatalf("get rank: %v", err)
	}
	if rank.Rank != 1 || rank.TopPercentage != 34 {
		t.Fatalf("rank = %+v, want rank 1, top 34%%", rank)
	}

	// Unknown user: rank 0, population still reported.
	rank, err = svc.GetUserRank("ghost", "coach-1")
	if err != nil {
		t.Fatalf("get rank: %v", err)
	}
	if rank.Rank != 0 || rank.TotalUsers != 3 {
		t.Fatalf("unknown user rank = %+v, want {0 3 0}", rank)
	}
}

func TestLeaderboard_LimitAndUnconfigured(t *testing.T) {
	db := testDB(t)
	svc := services.NewLeaderboardService(db)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, u := range []string{"u1", "u2", "u3", "u4"} {
		seedAccount(t, db, u, "coach-1", int64(400-i*10), base.Add(time.Duration(i)*time.Minute))
	}

	resp, err := svc.GetLeaderboard("coach-1", 2)
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	if len(resp.Leaderboard) != 2 {
		t.Fatalf("entries = %d, want 2", len(resp.Leaderboard))
	}
	if resp.TotalUsers != 4 {
		t.Fatalf("total users = %d, want 4 even when page is smaller", resp.TotalUsers)
	}

	empty, err := services.NewLeaderboardService(nil).GetLeaderboard("coach-1", 10)
	if err != nil {
		t.Fatalf("unconfigured leaderboard: %v", err)
	}
	if len(empty.Leaderboard) != 0 || empty.TotalUsers != 0 {
		t.Fatalf("unconfigured leaderboard = %+v, want empty", empty)
	}
}
