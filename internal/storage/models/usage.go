package models

import "time"

// UsageRecord is one append-only ledger entry. Records are never deleted,
// only aggregated for reporting.
type UsageRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	Model     string    `json:"model,omitempty"`
	GrantedBy string    `json:"granted_by,omitempty"` // set on admin grants
	CreatedAt time.Time `json:"created_at"`
}

// Usage record reasons.
const (
	ReasonChat  = "chat"
	ReasonImage = "image"
	ReasonGrant = "grant"
)

// UsageStats is an aggregate over usage records for reporting.
type UsageStats struct {
	TotalCharged   int64                 `json:"total_charged"`
	TotalGranted   int64                 `json:"total_granted"`
	RecordCount    int                   `json:"record_count"`
	ModelBreakdown map[string]*ModelSpend `json:"models,omitempty"`
}

// ModelSpend aggregates charges for one model.
type ModelSpend struct {
	Model        string `json:"model"`
	Charged      int64  `json:"charged"`
	RecordCount  int    `json:"record_count"`
}

// StatsFilter narrows a usage stats query.
type StatsFilter struct {
	UserID    string
	Model     string
	StartDate *time.Time
	EndDate   *time.Time
}
