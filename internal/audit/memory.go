package audit

import (
	"context"
	"sort"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// MemoryRepository serves the timeline from an in-process audit trail.
type MemoryRepository struct {
	trail *shared.MemoryAuditTrail
}

// NewMemoryRepository reads from trail.
func NewMemoryRepository(trail *shared.MemoryAuditTrail) *MemoryRepository {
	return &MemoryRepository{trail: trail}
}

// Timeline implements Repository.
func (r *MemoryRepository) Timeline(_ context.Context, q Query) ([]TimelineRow, error) {
	logs := r.trail.Logs()
	rows := make([]TimelineRow, 0, len(logs))
	// Newest first; later records win ties like id DESC does.
	for i := len(logs) - 1; i >= 0; i-- {
		l := logs[i]
		row := TimelineRow{At: l.At, ActorID: l.ActorID, Action: l.Action, Entity: l.Entity, EntityID: l.EntityID, Meta: l.Meta}
		if q.matches(row) {
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].At.After(rows[j].At) })
	if q.Offset >= len(rows) {
		return nil, nil
	}
	rows = rows[q.Offset:]
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows, nil
}
