// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartMaintenanceScheduler runs the convenience sweeps:
//   - midnight (local): bulk-zero all watch counters. Optional for
//     correctness — the quota's lazy reset already handles stale days —
//     but it keeps the counters honest for admin dashboards.
//   - hourly: expire unclaimed offer clicks older than 48h.
func StartMaintenanceScheduler(quota *QuotaService, offers *OfferService) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, 0))),
		gocron.NewTask(func() {
			n, err := quota.ResetAllWatchCounts()
			if err != nil {
				log.Printf("[Scheduler] ❌ Watch count sweep failed: %v", err)
				return
			}
			log.Printf("[Scheduler] 🌙 Midnight sweep: zeroed %d watch counter(s)", n)
		}),
	)

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			n, err := offers.ExpireStaleClicks(48 * time.Hour)
			if err != nil {
				log.Printf("[Scheduler] ❌ Stale click sweep failed: %v", err)
				return
			}
			if n > 0 {
				log.Printf("[Scheduler] 🧹 Expired %d stale offer click(s)", n)
			}
		}),
	)
}
