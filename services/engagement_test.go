package services_test

import (
	"path/filepath"
	"testing"
	"time"

	"engagement-service/models"
	"engagement-service/services"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB creates a temporary sqlite database for testing.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "engagement.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	// sqlite has a single writer; one pooled connection keeps concurrent
	// transactions from tripping over file locks.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(
		&models.StreakRecord{},
		&models.DailyActivityRecord{},
		&models.PointsAccount{},
		&models.PointTransaction{},
		&models.UserBadge{},
		&models.UserMirror{},
		&models.CreatorMirror{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func testEngine(t *testing.T) *services.EngagementService {
	t.Helper()
	return services.NewEngagementService(testDB(t), services.DefaultPointsConfig())
}

// day returns 15:30 UTC on the nth test day, so activities land mid-day.
func day(n int) time.Time {
	return time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC).AddDate(0, 0, n-1)
}

func onDay(svc *services.EngagementService, d time.Time) {
	svc.Now = func() time.Time { return d }
}

func ledgerSum(t *testing.T, db *gorm.DB, userID, creatorID string) int64 {
	t.Helper()
	var sum int64
	q := db.Model(&models.PointTransaction{}).Select("COALESCE(SUM(points), 0)").Where("user_id = ?", userID)
	if creatorID != "" {
		q = q.Where("creator_id = ?", creatorID)
	}
	if err := q.Scan(&sum).Error; err != nil {
		t.Fatalf("sum ledger: %v", err)
	}
	return sum
}

func loadAccount(t *testing.T, db *gorm.DB, userID, creatorID string) models.PointsAccount {
	t.Helper()
	var acct models.PointsAccount
	if err := db.Where("user_id = ? AND creator_id = ?", userID, creatorID).First(&acct).Error; err != nil {
		t.Fatalf("load account %s/%s: %v", userID, creatorID, err)
	}
	return acct
}

func TestRecordActivity_FirstEver(t *testing.T) {
	svc := testEngine(t)
	onDay(svc, day(1))

	res, err := svc.RecordActivity("alice", "coach-1", models.ActivityVideo, 120)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !res.Accepted {
		t.Fatal("expected accepted result")
	}
	if res.CurrentStreak != 1 || res.LongestStreak != 1 {
		t.Fatalf("streak = %d/%d, want 1/1", res.CurrentStreak, res.LongestStreak)
	}
	if !res.FirstOfDay {
		t.Fatal("expected first activity of the day")
	}
	// first_activity (25) + video_watched (10)
	if res.PointsAwarded != 35 {
		t.Fatalf("points awarded = %d, want 35", res.PointsAwarded)
	}

	acct := loadAccount(t, svc.DB, "alice", "coach-1")
	if acct.TotalPoints != 35 {
		t.Fatalf("account total = %d, want 35", acct.TotalPoints)
	}
	if acct.StreakPoints != 25 || acct.VideoPoints != 10 {
		t.Fatalf("category split = streak %d video %d, want 25/10", acct.StreakPoints, acct.VideoPoints)
	}

	var txCount int64
	svc.DB.Model(&models.PointTransaction{}).
		Where("user_id = ? AND creator_id = ?", "alice", "coach-1").
		Count(&txCount)
	if txCount != 2 {
		t.Fatalf("transactions = %d, want 2", txCount)
	}
}

func TestRecordActivity_SameDayIdempotent(t *testing.T) {
	svc := testEngine(t)
	onDay(svc, day(1))

	if _, err := svc.RecordActivity("alice", "coach-1", models.ActivityVideo, 60); err != nil {
		t.Fatalf("first record: %v", err)
	}
	res, err := svc.RecordActivity("alice", "coach-1", models.ActivityVideo, 60)
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if res.CurrentStreak != 1 {
		t.Fatalf("streak after re-entry = %d, want 1", res.CurrentStreak)
	}
	if res.FirstOfDay {
		t.Fatal("second call must not be first of day")
	}
	if res.PointsAwarded != 0 {
		t.Fatalf("second call awarded %d points, want 0", res.PointsAwarded)
	}

	var daily models.DailyActivityRecord
	if err := svc.DB.Where("user_id = ? AND creator_id = ?", "alice", "coach-1").First(&daily).Error; err != nil {
		t.Fatalf("load daily row: %v", err)
	}
	if daily.VideosWatched != 2 {
		t.Fatalf("videos watched = %d, want 2", daily.VideosWatched)
	}
	if daily.WatchSeconds != 120 {
		t.Fatalf("watch seconds = %d, want 120", daily.WatchSeconds)
	}
}

func TestStreak_ContinuityAndReset(t *testing.T) {
	svc := testEngine(t)

	onDay(svc, day(1))
	if _, err := svc.RecordActivity("alice", "coach-1", models.ActivityVideo, 0); err != nil {
		t.Fatalf("day 1: %v", err)
	}

	onDay(svc, day(2))
	res, err := svc.RecordActivity("alice", "coach-1", models.ActivityVideo, 0)
	if err != nil {
		t.Fatalf("day 2: %v", err)
	}
	if res.CurrentStreak != 2 {
		t.Fatalf("consecutive day streak = %d, want 2", res.CurrentStreak)
	}
	// streak_daily (5) + video_watched (10)
	if res.PointsAwarded != 15 {
		t.Fatalf("day 2 points = %d, want 15", res.PointsAwarded)
	}

	// Skip day 3 entirely: the day-4 activity starts a new streak of 1.
	onDay(svc, day(4))
	res, err = svc.RecordActivity("alice", "coach-1", models.ActivityVideo, 0)
	if err != nil {
		t.Fatalf("day 4: %v", err)
	}
	if res.CurrentStreak != 1 {
		t.Fatalf("streak after gap = %d, want 1 (never 0)", res.CurrentStreak)
	}
	if res.LongestStreak != 2 {
		t.Fatalf("longest streak = %d, want 2", res.LongestStreak)
	}
}

func TestStreak_MilestoneAndBadgeAtSeven(t *testing.T) {
	svc := testEngine(t)

	for i := 1; i <= 6; i++ {
		onDay(svc, day(i))
		if _, err := svc.RecordActivity("alice", "coach-1", models.ActivityVideo, 0); err != nil {
			t.Fatalf("day %d: %v", i, err)
		}
	}

	onDay(svc, day(7))
	res, err := svc.RecordActivity("alice", "coach-1", models.ActivityVideo, 0)
	if err != nil {
		t.Fatalf("day 7: %v", err)
	}
	if res.CurrentStreak != 7 {
		t.Fatalf("streak = %d, want 7", res.CurrentStreak)
	}
	if res.Milestone != 7 {
		t.Fatalf("milestone = %d, want 7", res.Milestone)
	}
	// streak_daily (5) + milestone (50) + video_watched (10) + streak_7 badge (100)
	if res.PointsAwarded != 165 {
		t.Fatalf("day 7 points = %d, want 165", res.PointsAwarded)
	}
	if len(res.NewBadges) != 1 || res.NewBadges[0] != models.BadgeStreak7 {
		t.Fatalf("new badges = %v, want [streak_7]", res.NewBadges)
	}

	var milestoneTx models.PointTransaction
	if err := svc.DB.Where("user_id = ? AND type = ?", "alice", models.TxStreakMilestone).First(&milestoneTx).Error; err != nil {
		t.Fatalf("load milestone transaction: %v", err)
	}
	if milestoneTx.Points != 50 {
		t.Fatalf("milestone points = %d, want 50", milestoneTx.Points)
	}
}

func TestBadge_AwardedAtMostOnce(t *testing.T) {
	svc := testEngine(t)

	for i := 1; i <= 8; i++ {
		onDay(svc, day(i))
		if _, err := svc.RecordActivity("alice", "coach-1", models.ActivityVideo, 0); err != nil {
			t.Fatalf("day %d: %v", i, err)
		}
	}

	var badgeRows int64
	svc.DB.Model(&models.UserBadge{}).
		Where("user_id = ? AND creator_id = ? AND badge_type = ?", "alice", "coach-1", models.BadgeStreak7).
		Count(&badgeRows)
	if badgeRows != 1 {
		t.Fatalf("streak_7 badge rows = %d, want exactly 1", badgeRows)
	}

	var badgeTx []models.PointTransaction
	svc.DB.Where("user_id = ? AND type = ?", "alice", models.TxBadgeEarned).Find(&badgeTx)
	seven := 0
	for _, tx := range badgeTx {
		if tx.Points == 100 {
			seven++
		}
	}
	if seven != 1 {
		t.Fatalf("streak_7 badge transactions = %d, want exactly 1", seven)
	}
}

func TestChatCap_SingleBatch(t *testing.T) {
	svc := testEngine(t)
	onDay(svc, day(1))

	res, err := svc.RecordChatMessages("bob", "coach-1", 15)
	if err != nil {
		t.Fatalf("record chat: %v", err)
	}
	// first_activity (25) + chat_session (5) + capped messages (10)
	if res.PointsAwarded != 40 {
		t.Fatalf("points = %d, want 40", res.PointsAwarded)
	}

	var chatSum int64
	svc.DB.Model(&models.PointTransaction{}).
		Select("COALESCE(SUM(points), 0)").
		Where("user_id = ? AND type = ?", "bob", models.TxChatMessages).
		Scan(&chatSum)
	if chatSum != 10 {
		t.Fatalf("chat_messages points = %d, want 10 (capped)", chatSum)
	}
}

func TestChatCap_ManySmallBatches(t *testing.T) {
	svc := testEngine(t)
	onDay(svc, day(1))

	for i := 0; i < 15; i++ {
		if _, err := svc.RecordChatMessages("bob", "coach-1", 1); err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
	}

	var chatSum int64
	svc.DB.Model(&models.PointTransaction{}).
		Select("COALESCE(SUM(points), 0)").
		Where("user_id = ? AND type = ?", "bob", models.TxChatMessages).
		Scan(&chatSum)
	if chatSum != 10 {
		t.Fatalf("chat_messages points = %d, want 10 regardless of batching", chatSum)
	}

	// The cap resets the next day.
	onDay(svc, day(2))
	res, err := svc.RecordChatMessages("bob", "coach-1", 3)
	if err != nil {
		t.Fatalf("next day chat: %v", err)
	}
	// streak_daily (5) + chat_session (5) + 3 messages
	if res.PointsAwarded != 13 {
		t.Fatalf("next day points = %d, want 13", res.PointsAwarded)
	}
}

func TestVideoCompletion_AwardsCompletionBonus(t *testing.T) {
	svc := testEngine(t)
	onDay(svc, day(1))

	res, err := svc.RecordVideoCompletion("alice", "coach-1", 300)
	if err != nil {
		t.Fatalf("record completion: %v", err)
	}
	// first_activity (25) + video_watched (10) + video_completed (20)
	if res.PointsAwarded != 55 {
		t.Fatalf("points = %d, want 55", res.PointsAwarded)
	}

	// A second completion the same day re-awards only the completion bonus.
	res, err = svc.RecordVideoCompletion("alice", "coach-1", 200)
	if err != nil {
		t.Fatalf("second completion: %v", err)
	}
	if res.PointsAwarded != 20 {
		t.Fatalf("second completion points = %d, want 20", res.PointsAwarded)
	}
}

func TestGoalCompletion(t *testing.T) {
	svc := testEngine(t)
	onDay(svc, day(1))

	res, err := svc.RecordGoalCompletion("alice", "coach-1", "goal-42")
	if err != nil {
		t.Fatalf("record goal: %v", err)
	}
	// first_activity (25) + goal_completed (100)
	if res.PointsAwarded != 125 {
		t.Fatalf("points = %d, want 125", res.PointsAwarded)
	}

	acct := loadAccount(t, svc.DB, "alice", "coach-1")
	if acct.GoalPoints != 100 {
		t.Fatalf("goal points = %d, want 100", acct.GoalPoints)
	}
}

func TestReconciliation_InvariantsHoldAfterMixedActivity(t *testing.T) {
	svc := testEngine(t)

	for i := 1; i <= 4; i++ {
		onDay(svc, day(i))
		if _, err := svc.RecordActivity("alice", "coach-1", models.ActivityVideo, 30); err != nil {
			t.Fatalf("video day %d: %v", i, err)
		}
		if _, err := svc.RecordChatMessages("alice", "coach-1", 12); err != nil {
			t.Fatalf("chat day %d: %v", i, err)
		}
	}
	onDay(svc, day(4))
	if _, err := svc.RecordGoalCompletion("alice", "coach-2", "goal-1"); err != nil {
		t.Fatalf("goal for second creator: %v", err)
	}

	for _, creator := range []string{"coach-1", "coach-2", ""} {
		acct := loadAccount(t, svc.DB, "alice", creator)
		if acct.TotalPoints != acct.CategorySum() {
			t.Fatalf("creator %q: total %d != category sum %d", creator, acct.TotalPoints, acct.CategorySum())
		}
		if got := ledgerSum(t, svc.DB, "alice", creator); got != acct.TotalPoints {
			t.Fatalf("creator %q: ledger sum %d != account total %d", creator, got, acct.TotalPoints)
		}
	}

	n, err := services.NewReconciliationService(svc).Sweep()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("sweep found %d violations, want 0", n)
	}
}

func TestReconciliation_ViolationFreezesKey(t *testing.T) {
	svc := testEngine(t)
	onDay(svc, day(1))

	if _, err := svc.RecordActivity("alice", "coach-1", models.ActivityVideo, 0); err != nil {
		t.Fatalf("record: %v", err)
	}

	// Corrupt the account behind the engine's back.
	if err := svc.DB.Model(&models.PointsAccount{}).
		Where("user_id = ? AND creator_id = ?", "alice", "coach-1").
		Update("total_points", gorm.Expr("total_points + 5")).Error; err != nil {
		t.Fatalf("corrupt account: %v", err)
	}

	n, err := services.NewReconciliationService(svc).Sweep()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("sweep found %d violations, want 1", n)
	}

	if _, err := svc.RecordActivity("alice", "coach-1", models.ActivityVideo, 0); err != services.ErrKeyFrozen {
		t.Fatalf("record on frozen key returned %v, want ErrKeyFrozen", err)
	}
	// Other keys stay writable.
	if _, err := svc.RecordActivity("bob", "coach-1", models.ActivityVideo, 0); err != nil {
		t.Fatalf("record for unaffected key: %v", err)
	}
}

func TestNotConfigured_EngineIsNoOp(t *testing.T) {
	svc := services.NewEngagementService(nil, services.DefaultPointsConfig())

	res, err := svc.RecordActivity("alice", "coach-1", models.ActivityVideo, 0)
	if err != nil {
		t.Fatalf("record on unconfigured engine: %v", err)
	}
	if res.Accepted || res.PointsAwarded != 0 {
		t.Fatalf("unconfigured engine returned %+v, want zero result", res)
	}

	sum, err := svc.GetEngagementSummary("alice", "coach-1")
	if err != nil {
		t.Fatalf("summary on unconfigured engine: %v", err)
	}
	if sum.CurrentStreak != 0 || sum.Points.TotalPoints != 0 {
		t.Fatalf("unconfigured summary = %+v, want zeros", sum)
	}
}

func TestGetEngagementSummary(t *testing.T) {
	svc := testEngine(t)

	for i := 1; i <= 3; i++ {
		onDay(svc, day(i))
		if _, err := svc.RecordActivity("alice", "coach-1", models.ActivityVideo, 0); err != nil {
			t.Fatalf("day %d: %v", i, err)
		}
	}

	sum, err := svc.GetEngagementSummary("alice", "coach-1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.CurrentStreak != 3 || sum.LongestStreak != 3 {
		t.Fatalf("summary streak = %d/%d, want 3/3", sum.CurrentStreak, sum.LongestStreak)
	}
	if sum.Rank.Rank != 1 || sum.Rank.TotalUsers != 1 {
		t.Fatalf("summary rank = %+v, want rank 1 of 1", sum.Rank)
	}
	if sum.Points.TotalPoints != ledgerSum(t, svc.DB, "alice", "coach-1") {
		t.Fatal("summary points disagree with ledger")
	}
	foundStreak3 := false
	for _, b := range sum.Badges {
		if b == models.BadgeStreak3 {
			foundStreak3 = true
		}
	}
	if !foundStreak3 {
		t.Fatalf("summary badges = %v, want streak_3 included", sum.Badges)
	}
}

func TestConcurrentSameKey_NoDoubleDailyAward(t *testing.T) {
	svc := testEngine(t)
	onDay(svc, day(1))

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.RecordActivity("alice", "coach-1", models.ActivityVideo, 0)
			done <- err
		}()
	}
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent record: %v", err)
		}
	}

	var firstActivityCount int64
	svc.DB.Model(&models.PointTransaction{}).
		Where("user_id = ? AND type = ?", "alice", models.TxFirstActivity).
		Count(&firstActivityCount)
	if firstActivityCount != 1 {
		t.Fatalf("first_activity transactions = %d, want 1", firstActivityCount)
	}

	var streak models.StreakRecord
	if err := svc.DB.Where("user_id = ? AND creator_id = ?", "alice", "coach-1").First(&streak).Error; err != nil {
		t.Fatalf("load streak: %v", err)
	}
	if streak.CurrentStreak != 1 {
		t.Fatalf("streak after concurrent same-day calls = %d, want 1", streak.CurrentStreak)
	}
}

func TestConcurrentCreators_AggregateAccountStaysConsistent(t *testing.T) {
	svc := testEngine(t)
	onDay(svc, day(1))

	// Different creators hold different key locks, so both transactions can
	// credit alice's aggregate account at the same time.
	done := make(chan error, 2)
	for _, creator := range []string{"coach-1", "coach-2"} {
		go func(c string) {
			_, err := svc.RecordActivity("alice", c, models.ActivityVideo, 60)
			done <- err
		}(creator)
	}
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent record: %v", err)
		}
	}

	var total int64
	svc.DB.Model(&models.PointTransaction{}).
		Select("COALESCE(SUM(points), 0)").
		Where("user_id = ?", "alice").
		Scan(&total)
	// first_activity (25) + video_watched (10), once per creator
	if total != 70 {
		t.Fatalf("ledger sum = %d, want 70", total)
	}

	agg := loadAccount(t, svc.DB, "alice", "")
	if agg.TotalPoints != total {
		t.Fatalf("aggregate account = %d, ledger sum = %d", agg.TotalPoints, total)
	}
	if agg.CategorySum() != agg.TotalPoints {
		t.Fatalf("category split = %d, total = %d", agg.CategorySum(), agg.TotalPoints)
	}
}

func TestNegativeWatchSeconds_CountersOnlyIncrease(t *testing.T) {
	svc := testEngine(t)
	onDay(svc, day(1))

	if _, err := svc.RecordActivity("alice", "coach-1", models.ActivityVideo, 120); err != nil {
		t.Fatalf("record video: %v", err)
	}
	if _, err := svc.RecordActivity("alice", "coach-1", models.ActivityVideo, -100); err != nil {
		t.Fatalf("record negative seconds: %v", err)
	}
	if _, err := svc.RecordVideoCompletion("alice", "coach-1", -50); err != nil {
		t.Fatalf("record negative completion: %v", err)
	}

	var rec models.DailyActivityRecord
	if err := svc.DB.Where("user_id = ? AND creator_id = ?", "alice", "coach-1").First(&rec).Error; err != nil {
		t.Fatalf("load daily activity: %v", err)
	}
	if rec.WatchSeconds != 120 {
		t.Fatalf("watch seconds = %d, want 120", rec.WatchSeconds)
	}
}

func TestChatCap_ConcurrentBursts(t *testing.T) {
	svc := testEngine(t)
	onDay(svc, day(1))

	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := svc.RecordChatMessages("bob", "coach-1", 6)
			done <- err
		}()
	}
	for i := 0; i < 4; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent chat: %v", err)
		}
	}

	var chatSum int64
	svc.DB.Model(&models.PointTransaction{}).
		Select("COALESCE(SUM(points), 0)").
		Where("user_id = ? AND type = ?", "bob", models.TxChatMessages).
		Scan(&chatSum)
	if chatSum != 10 {
		t.Fatalf("chat_messages points = %d, want 10 across concurrent bursts", chatSum)
	}

	// chat_session (5) + capped messages (10)
	acct := loadAccount(t, svc.DB, "bob", "coach-1")
	if acct.ChatPoints != 15 {
		t.Fatalf("chat points = %d, want 15", acct.ChatPoints)
	}
}
