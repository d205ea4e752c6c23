package domain

import "time"

// Mutation is a locally originated write that has not yet been acknowledged
// by the remote authority. It lives in the durable queue from the moment the
// online submission path gives up (or the device is offline) until a sync
// pass receives a success response for it.
type Mutation struct {
	LocalID      string         `json:"local_id"`
	Domain       Domain         `json:"domain"`
	Payload      map[string]any `json:"payload"`
	CreatedAt    time.Time      `json:"created_at"`
	AttemptCount int            `json:"attempt_count"`
}
