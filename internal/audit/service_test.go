package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func seededTrail(t *testing.T) *shared.MemoryAuditTrail {
	t.Helper()
	trail := &shared.MemoryAuditTrail{}
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for i, l := range []shared.AuditLog{
		{ActorID: 1, Action: "journal.post", Entity: "journal", EntityID: "1", At: base},
		{ActorID: 1, Action: "journal.post", Entity: "journal", EntityID: "2", At: base.Add(time.Hour)},
		{ActorID: 2, Action: "journal.reverse", Entity: "journal", EntityID: "1", At: base.Add(2 * time.Hour), Meta: map[string]any{"number": "JV-1-R"}},
		{ActorID: 2, Action: "journal.post", Entity: "journal", EntityID: "3", At: base.AddDate(0, 0, 5)},
	} {
		require.NoError(t, trail.Record(ctx, l), "log %d", i)
	}
	return trail
}

func TestTimelinePagingNewestFirst(t *testing.T) {
	svc := NewService(NewMemoryRepository(seededTrail(t)))
	ctx := context.Background()

	first, err := svc.Timeline(ctx, TimelineFilters{PageSize: 3})
	require.NoError(t, err)
	require.Len(t, first.Rows, 3)
	assert.Equal(t, "3", first.Rows[0].EntityID)
	assert.True(t, first.Paging.HasNext)
	assert.Equal(t, 2, first.Paging.NextPage)

	second, err := svc.Timeline(ctx, TimelineFilters{PageSize: 3, Page: 2})
	require.NoError(t, err)
	require.Len(t, second.Rows, 1)
	assert.Equal(t, "journal.post", second.Rows[0].Action)
	assert.False(t, second.Paging.HasNext)
	assert.Equal(t, 1, second.Paging.PrevPage)
}

func TestTimelineFilters(t *testing.T) {
	svc := NewService(NewMemoryRepository(seededTrail(t)))
	ctx := context.Background()

	res, err := svc.Timeline(ctx, TimelineFilters{Entity: "journal", EntityID: "1"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "journal.reverse", res.Rows[0].Action)

	res, err = svc.Timeline(ctx, TimelineFilters{ActorID: 2, To: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1, "to includes the whole day")

	rows, err := svc.Export(ctx, TimelineFilters{From: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = svc.Timeline(ctx, TimelineFilters{From: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)})
	assert.ErrorIs(t, err, ErrInvalidFilter)
	_, err = svc.Export(ctx, TimelineFilters{EntityID: "1"})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

type failingRepo struct{}

func (failingRepo) Timeline(context.Context, Query) ([]TimelineRow, error) {
	return nil, errors.New("pool closed")
}

func TestTimelineWrapsRepositoryErrors(t *testing.T) {
	_, err := NewService(failingRepo{}).Timeline(context.Background(), TimelineFilters{})
	assert.ErrorContains(t, err, "audit: timeline: pool closed")
	_, err = NewService(nil).Export(context.Background(), TimelineFilters{})
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	rows, err := NewService(NewMemoryRepository(seededTrail(t))).Export(context.Background(), TimelineFilters{Entity: "journal", EntityID: "1"})
	require.NoError(t, err)
	out, err := WriteCSV(rows)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "at,actor_id,action,entity,entity_id,meta", lines[0])
	assert.Equal(t, `2026-03-10T11:00:00Z,2,journal.reverse,journal,1,"{""number"":""JV-1-R""}"`, lines[1])
}
