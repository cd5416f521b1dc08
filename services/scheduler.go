// services/scheduler.go
package services

import (
	"log"
	"time"

	"bounty-publish-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartRefundSweep runs a periodic job that reminds the operator channel of
// cancelled bounties still awaiting their manual refund. Cancellation never
// moves funds on-chain, so without a nag these would be forgotten.
func (s *BountyService) StartRefundSweep() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(func() {
			var pending []models.Bounty
			err := s.DB.Where("status = ? AND refund_pending = ?", models.BountyStatusCancelled, true).
				Order("created_at ASC").
				Find(&pending).Error
			if err != nil {
				log.Printf("[REFUND_SWEEP] DB error: %v", err)
				return
			}
			if len(pending) == 0 {
				return
			}

			ids := make([]string, 0, len(pending))
			for _, b := range pending {
				ids = append(ids, b.ID)
			}
			log.Printf("[REFUND_SWEEP] %d cancelled bounties awaiting manual refund", len(ids))
			s.Notifier.NotifyRefundPending(len(ids), ids)
		}),
	)
}
