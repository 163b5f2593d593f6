package services

import (
	"time"

	"engagement-service/models"
	"engagement-service/utils"

	"github.com/go-co-op/gocron/v2"
)

// ReconciliationService verifies, per points account, that the row's total
// equals both the sum of its category buckets and the sum of the key's
// ledger transactions. A mismatch means a lost lock or a bypassed write
// path: the key is frozen against further writes and the violation surfaced
// loudly, never swallowed.
type ReconciliationService struct {
	Engine *EngagementService
}

func NewReconciliationService(engine *EngagementService) *ReconciliationService {
	return &ReconciliationService{Engine: engine}
}

// StartSweep schedules the periodic reconciliation job.
func (s *ReconciliationService) StartSweep(interval time.Duration) {
	if s.Engine == nil || s.Engine.DB == nil {
		return
	}
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := s.Sweep()
			if err != nil {
				if utils.Sugar != nil {
					utils.Sugar.Errorw("reconciliation sweep failed", "err", err)
				}
				return
			}
			if n > 0 && utils.Sugar != nil {
				utils.Sugar.Errorw("reconciliation sweep found violations", "count", n)
			}
		}),
	)
}

// Sweep checks every account once and returns the number of violations.
func (s *ReconciliationService) Sweep() (int, error) {
	db := s.Engine.DB
	var accounts []models.PointsAccount
	if err := db.Find(&accounts).Error; err != nil {
		return 0, storeError("load accounts", err)
	}

	violations := 0
	for i := range accounts {
		acct := &accounts[i]

		var ledger int64
		q := db.Model(&models.PointTransaction{}).
			Select("COALESCE(SUM(points), 0)").
			Where("user_id = ?", acct.UserID)
		if acct.CreatorID != "" {
			q = q.Where("creator_id = ?", acct.CreatorID)
		}
		if err := q.Scan(&ledger).Error; err != nil {
			return violations, storeError("sum ledger", err)
		}

		if acct.TotalPoints == acct.CategorySum() && acct.TotalPoints == ledger {
			continue
		}

		violations++
		s.Engine.freezeKey(acct.UserID, acct.CreatorID)
		if utils.Sugar != nil {
			utils.Sugar.Errorw("reconciliation violation: key frozen",
				"user_id", acct.UserID,
				"creator_id", acct.CreatorID,
				"total_points", acct.TotalPoints,
				"category_sum", acct.CategorySum(),
				"ledger_sum", ledger,
			)
		}
	}
	return violations, nil
}
