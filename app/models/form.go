package models

import "time"

// Form is a user-owned form record. Instructions is the free-text brief the
// completion service drafts from; AIDraft holds the last generated draft.
type Form struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Title        string    `json:"title"`
	Instructions string    `json:"instructions"`
	AIDraft      string    `json:"ai_draft,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}
