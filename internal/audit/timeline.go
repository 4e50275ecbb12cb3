package audit

import "time"

// TimelineFilters narrows the audit timeline. Zero values do not filter.
// To is inclusive to the end of its day.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	ActorID  int64
	Entity   string
	EntityID string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one audit_logs record.
type TimelineRow struct {
	At       time.Time      `json:"at"`
	ActorID  int64          `json:"actor_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// PagingInfo describes the page returned by Timeline.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Query is what a Repository executes. Limit zero returns every match.
type Query struct {
	TimelineFilters
	Offset int
	Limit  int
}

func (f TimelineFilters) matches(row TimelineRow) bool {
	if !f.From.IsZero() && row.At.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !row.At.Before(f.end()) {
		return false
	}
	if f.ActorID != 0 && row.ActorID != f.ActorID {
		return false
	}
	if f.Entity != "" && row.Entity != f.Entity {
		return false
	}
	if f.EntityID != "" && row.EntityID != f.EntityID {
		return false
	}
	if f.Action != "" && row.Action != f.Action {
		return false
	}
	return true
}

// end is the exclusive upper bound implied by To.
func (f TimelineFilters) end() time.Time {
	y, m, d := f.To.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, f.To.Location()).AddDate(0, 0, 1)
}
