package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smlb/internal/model"
)

func TestIsDue(t *testing.T) {
	last := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	plan := &model.BackupPlan{Name: "docs", Schedule: model.EveryThreeDays, LastBackupTime: last}

	assert.False(t, IsDue(plan, last), "never due at the last backup time itself")
	assert.False(t, IsDue(plan, last.AddDate(0, 0, 3).Add(-time.Second)), "not due just before the boundary")
	assert.True(t, IsDue(plan, last.AddDate(0, 0, 3)), "due exactly at the boundary")
	assert.True(t, IsDue(plan, last.AddDate(0, 0, 10)), "due past the boundary")
}

func TestIsDue_UnknownScheduleDefaultsToOneDay(t *testing.T) {
	last := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	plan := &model.BackupPlan{Name: "docs", Schedule: model.Schedule(42), LastBackupTime: last}

	assert.False(t, IsDue(plan, last))
	assert.True(t, IsDue(plan, last.AddDate(0, 0, 1)))
}

func TestEvaluateAll(t *testing.T) {
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	plans := []*model.BackupPlan{
		{Name: "due", Schedule: model.EveryDay, LastBackupTime: now.AddDate(0, 0, -2)},
		{Name: "fresh", Schedule: model.EverySevenDays, LastBackupTime: now.AddDate(0, 0, -1), BackupRequired: true},
		{Name: "also-due", Schedule: model.EveryTwoDays, LastBackupTime: now.AddDate(0, 0, -2)},
	}

	var mu sync.Mutex
	var notified []string
	err := EvaluateAll(context.Background(), plans, now, func(p *model.BackupPlan) {
		mu.Lock()
		defer mu.Unlock()
		notified = append(notified, p.Name)
	})
	require.NoError(t, err)

	assert.True(t, plans[0].BackupRequired)
	assert.False(t, plans[1].BackupRequired, "flag is recomputed, not sticky")
	assert.True(t, plans[2].BackupRequired)
	assert.ElementsMatch(t, []string{"due", "also-due"}, notified)
}

func TestEvaluateAll_NilNotify(t *testing.T) {
	now := time.Now()
	plans := []*model.BackupPlan{
		{Name: "due", Schedule: model.EveryDay, LastBackupTime: now.AddDate(0, 0, -3)},
	}
	require.NoError(t, EvaluateAll(context.Background(), plans, now, nil))
	assert.True(t, plans[0].BackupRequired)
}
