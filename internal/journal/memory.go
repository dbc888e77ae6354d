package journal

import (
	"fmt"
	"sync"

	"smlb/internal/model"
	"smlb/internal/smlb"
)

// MemoryJournal is an in-memory Journal for tests and throwaway runs.
// Safe for concurrent use.
type MemoryJournal struct {
	mu      sync.Mutex
	nextID  int64
	records []*model.OperationRecord
	clock   smlb.Clock
}

var _ smlb.Journal = (*MemoryJournal)(nil)

// NewMemoryJournal creates an empty MemoryJournal.
func NewMemoryJournal(clock smlb.Clock) *MemoryJournal {
	return &MemoryJournal{nextID: 1, clock: clock}
}

func (j *MemoryJournal) Begin(planName string, operation string) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rec := &model.OperationRecord{
		ID:        j.nextID,
		PlanName:  planName,
		Operation: operation,
		Status:    "running",
		StartedAt: j.clock.Now(),
	}
	j.nextID++
	j.records = append(j.records, rec)
	return rec.ID, nil
}

func (j *MemoryJournal) Finish(id int64, status string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, rec := range j.records {
		if rec.ID == id {
			rec.Status = status
			rec.FinishedAt = j.clock.Now()
			return nil
		}
	}
	return fmt.Errorf("no operation with id %d", id)
}

func (j *MemoryJournal) Recent(limit int) ([]*model.OperationRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []*model.OperationRecord
	for i := len(j.records) - 1; i >= 0 && len(out) < limit; i-- {
		rec := *j.records[i]
		out = append(out, &rec)
	}
	return out, nil
}

func (j *MemoryJournal) Close() error { return nil }
