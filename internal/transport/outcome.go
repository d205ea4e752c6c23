package transport

import (
	"errors"
	"fmt"
)

// Category is the failure taxonomy for a request attempt. The Retryable flag
// on the Outcome derived from it is the single source of truth for retry
// policy; call sites never special-case status codes themselves.
type Category string

const (
	CategoryNetwork      Category = "network"
	CategoryUnauthorized Category = "unauthorized"
	CategoryForbidden    Category = "forbidden"
	CategoryNotFound     Category = "not_found"
	CategoryValidation   Category = "validation"
	CategoryRateLimited  Category = "rate_limited"
	CategoryServer       Category = "server"
	CategoryUnknown      Category = "unknown"
)

// Outcome is the classified result of a single failed attempt. Status is 0
// when no response was received at all.
type Outcome struct {
	Category  Category
	Message   string
	Status    int
	Retryable bool
	Err       error
}

func (o *Outcome) Error() string {
	if o.Status > 0 {
		return fmt.Sprintf("%s (http %d): %s", o.Category, o.Status, o.Message)
	}
	return fmt.Sprintf("%s: %s", o.Category, o.Message)
}

func (o *Outcome) Unwrap() error {
	return o.Err
}

// AsOutcome extracts a classified outcome from an error chain.
func AsOutcome(err error) (*Outcome, bool) {
	var o *Outcome
	if errors.As(err, &o) {
		return o, true
	}
	return nil, false
}

// offlineOutcome is raised when the reachability signal reports offline
// before an attempt, without consuming an HTTP round trip.
func offlineOutcome() *Outcome {
	return &Outcome{
		Category:  CategoryNetwork,
		Message:   "device is offline",
		Retryable: true,
	}
}
