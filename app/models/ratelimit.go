package models

import "time"

// RateLimitResult is the admission decision for one (subject, resource) call.
type RateLimitResult struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}
