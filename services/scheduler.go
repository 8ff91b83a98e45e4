// services/scheduler.go
package services

import (
	"errors"
	"log"
	"time"

	"dare-engine/models"

	"github.com/go-co-op/gocron/v2"
)

// StartExpirySweep runs the best-effort periodic sweep over expired dares.
// Lazy expiry on read already makes expiry correct; the sweep only exists so
// abandoned dares don't linger unobserved. Idempotent — the conditional
// transition inside ExpireDare makes racing with a lazy reader harmless.
func (s *DareService) StartExpirySweep() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			var dares []models.Dare
			now := time.Now()
			err := s.DB.Where("status IN ? AND expires_at IS NOT NULL AND expires_at <= ?",
				[]models.DareStatus{models.DareStatusPending, models.DareStatusAwaitingClaim}, now).
				Find(&dares).Error
			if err != nil {
				log.Printf("[ExpirySweep] DB error: %v", err)
				return
			}

			for _, d := range dares {
				if err := s.ExpireDare(d.ID, d.Status); err != nil {
					var conflict *ConflictError
					if errors.As(err, &conflict) {
						continue // a reader expired it first
					}
					log.Printf("[ExpirySweep] Failed to expire dare %s: %v", d.ID, err)
				} else {
					log.Printf("⌛ Auto-expired dare: %s", d.PublicID)
				}
			}
		}),
	)
}
