// Package schedule decides when a plan's next backup is due.
package schedule

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"smlb/internal/model"
)

// IsDue reports whether the plan's next backup is due at the given time.
// The boundary is inclusive: a plan is due exactly at lastBackupTime plus
// its schedule interval. Unrecognized schedules evaluate with a one-day
// interval (see Schedule.IntervalDays).
func IsDue(plan *model.BackupPlan, now time.Time) bool {
	due := plan.LastBackupTime.AddDate(0, 0, plan.Schedule.IntervalDays())
	return !now.Before(due)
}

// EvaluateAll runs the due-check for every plan and updates each plan's
// BackupRequired flag. Plans are independent, so each is evaluated in
// its own goroutine; notify is invoked for every plan that is due and
// must be safe to call concurrently.
func EvaluateAll(ctx context.Context, plans []*model.BackupPlan, now time.Time, notify func(*model.BackupPlan)) error {
	g, _ := errgroup.WithContext(ctx)
	for _, plan := range plans {
		plan := plan
		g.Go(func() error {
			plan.BackupRequired = IsDue(plan, now)
			if plan.BackupRequired && notify != nil {
				notify(plan)
			}
			return nil
		})
	}
	return g.Wait()
}
