package domain

import "time"

// SyncError records one mutation that could not be delivered during a pass.
type SyncError struct {
	LocalID string `json:"local_id"`
	Message string `json:"message"`
}

// DomainReport is the result of draining one domain's queue.
type DomainReport struct {
	Domain    Domain      `json:"domain"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Errors    []SyncError `json:"errors,omitempty"`
}

// SyncReport aggregates the per-domain results of a full sync pass.
// It is returned to the caller and never persisted.
type SyncReport struct {
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	Domains        []DomainReport `json:"domains"`
	TotalSucceeded int            `json:"total_succeeded"`
	TotalFailed    int            `json:"total_failed"`
}

// Add folds a domain report into the aggregate.
func (r *SyncReport) Add(dr DomainReport) {
	r.Domains = append(r.Domains, dr)
	r.TotalSucceeded += dr.Succeeded
	r.TotalFailed += dr.Failed
}

// QueueStatus is a derived snapshot of the durable queue. CanSync is true
// when the device is online and at least one mutation is pending.
type QueueStatus struct {
	Pending      map[Domain]int `json:"pending"`
	TotalPending int            `json:"total_pending"`
	Online       bool           `json:"online"`
	CanSync      bool           `json:"can_sync"`
	LastSyncTime *time.Time     `json:"last_sync_time,omitempty"`
}
