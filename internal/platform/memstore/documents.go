package memstore

import (
	"context"
	"sort"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/openitems"
)

func (t *Tx) FindMaster(_ context.Context, key openitems.MasterKey) (openitems.Master, bool, error) {
	for _, m := range t.st.masters {
		if m.Kind == key.Kind && m.CounterpartyID == key.CounterpartyID &&
			m.SourceDoc.Type == key.SourceDoc.Type && m.SourceDoc.ID == key.SourceDoc.ID {
			return m, true, nil
		}
	}
	return openitems.Master{}, false, nil
}

func (t *Tx) InsertMaster(ctx context.Context, m openitems.Master) (openitems.Master, error) {
	if _, exists, _ := t.FindMaster(ctx, openitems.MasterKey{Kind: m.Kind, CounterpartyID: m.CounterpartyID, SourceDoc: m.SourceDoc}); exists {
		return openitems.Master{}, openitems.ErrDuplicateMaster
	}
	m.ID = t.st.id()
	m.Details = nil
	t.st.masters[m.ID] = m
	return m, nil
}

func (t *Tx) GetMaster(_ context.Context, id int64) (openitems.Master, error) {
	m, ok := t.st.masters[id]
	if !ok {
		return openitems.Master{}, openitems.ErrMasterNotFound
	}
	return m, nil
}

func (t *Tx) GetMasterForUpdate(ctx context.Context, id int64) (openitems.Master, error) {
	return t.GetMaster(ctx, id)
}

func (t *Tx) UpdateMaster(_ context.Context, m openitems.Master) error {
	if _, ok := t.st.masters[m.ID]; !ok {
		return openitems.ErrMasterNotFound
	}
	m.Details = nil
	t.st.masters[m.ID] = m
	return nil
}

func (t *Tx) ListMasters(_ context.Context, filter openitems.MasterFilter) ([]openitems.Master, error) {
	var out []openitems.Master
	for _, m := range t.st.masters {
		if filter.Match(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, 0, filter.Limit), nil
}

func (t *Tx) InsertDetail(_ context.Context, d openitems.Detail) (openitems.Detail, error) {
	d.ID = t.st.id()
	t.st.details[d.ID] = d
	return d, nil
}

func (t *Tx) GetDetail(_ context.Context, id int64) (openitems.Detail, error) {
	d, ok := t.st.details[id]
	if !ok {
		return openitems.Detail{}, openitems.ErrDetailNotFound
	}
	return d, nil
}

func (t *Tx) GetDetailForUpdate(ctx context.Context, id int64) (openitems.Detail, error) {
	return t.GetDetail(ctx, id)
}

func (t *Tx) UpdateDetail(_ context.Context, d openitems.Detail) error {
	if _, ok := t.st.details[d.ID]; !ok {
		return openitems.ErrDetailNotFound
	}
	t.st.details[d.ID] = d
	return nil
}

func (t *Tx) ListDetails(_ context.Context, masterID int64) ([]openitems.Detail, error) {
	var out []openitems.Detail
	for _, d := range t.st.details {
		if d.MasterID != nil && *d.MasterID == masterID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BusinessDate.Equal(out[j].BusinessDate) {
			return out[i].BusinessDate.Before(out[j].BusinessDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *Tx) InsertChange(_ context.Context, c openitems.Change) error {
	if c.Action == "direct_payment" && c.Reference != "" {
		for _, prev := range t.st.changes {
			if prev.MasterID == c.MasterID && prev.Action == c.Action && prev.Reference == c.Reference {
				return openitems.ErrPaymentApplied
			}
		}
	}
	c.ID = t.st.id()
	t.st.changes = append(t.st.changes, c)
	return nil
}

func (t *Tx) ListChanges(_ context.Context, masterID int64) ([]openitems.Change, error) {
	var out []openitems.Change
	for _, c := range t.st.changes {
		if c.MasterID == masterID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (t *Tx) InsertReport(_ context.Context, rec reports.ReportRecord) (reports.ReportRecord, error) {
	rec.ID = t.st.id()
	t.st.reports[rec.ID] = rec
	return rec, nil
}

func (t *Tx) GetReport(_ context.Context, id int64) (reports.ReportRecord, error) {
	rec, ok := t.st.reports[id]
	if !ok {
		return reports.ReportRecord{}, accounting.ErrReportNotFound
	}
	return rec, nil
}

func (t *Tx) ListReports(_ context.Context, filter reports.ListFilter) ([]reports.ReportRecord, error) {
	var out []reports.ReportRecord
	for _, rec := range t.st.reports {
		if filter.Match(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].GeneratedAt.After(out[j].GeneratedAt)
		}
		return out[i].ID > out[j].ID
	})
	return page(out, 0, filter.Limit), nil
}
