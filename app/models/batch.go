// Package models defines batch job records and per-form outcome summaries.
package models

import "time"

type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
)

// BatchJob summarizes one batch submission. Counts and results are written
// exactly once, when every form in the batch has settled.
type BatchJob struct {
	ID          string       `json:"id"`
	SubjectID   string       `json:"subject_id"`
	Label       string       `json:"label"`
	TotalForms  int          `json:"total_forms"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
	Status      BatchStatus  `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Results     []FormResult `json:"results,omitempty"`
}

// FormResult is the settled outcome for a single form in a batch.
// Exactly one of the success draft or the error description is meaningful.
type FormResult struct {
	FormID  string `json:"form_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// BatchSummary is what a submit call returns once every form has settled.
type BatchSummary struct {
	JobID     string `json:"job_id"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}
