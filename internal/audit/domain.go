package audit

import "time"

// TimelineRow is one audit record as presented to operators.
type TimelineRow struct {
	At         time.Time      `json:"at"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entityId"`
	Op         string         `json:"op"`
	Changes    map[string]any `json:"changes"`
	ActorID    string         `json:"actorId"`
	ActorEmail string         `json:"actorEmail"`
}

// TimelineFilters narrows the audit timeline query.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Entity   string
	Actor    string
	Op       string
	Page     int
	PageSize int
}

// PagingInfo reports the cursorless paging state of a timeline response.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result bundles timeline rows with paging information.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}
