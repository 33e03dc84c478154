package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/IMAYAAGENCY/formswift-ai-sub001/app/models"
)

var errEmptyBatch = errors.New("form_ids must not be empty")

// Dispatcher runs a caller-specified set of forms against the completion
// service with a bounded worker pool and persists one consistent summary.
//
// Per-form outcomes are independent: one form failing never aborts or rolls
// back any other form. Every form settles (success or failure) before the
// job row is finalized; the barrier is the only ordering guarantee.
type Dispatcher struct {
	Forms   FormStore
	Jobs    JobStore
	Client  CompletionClient
	Workers int
}

type formTask struct {
	index  int
	formID string
}

// SubmitBatch creates the job row, fans the forms out, waits for every one
// to settle and finalizes the job. Synchronous from the caller's view: it
// returns a definitive summary or an error, never a partial status.
func (d *Dispatcher) SubmitBatch(ctx context.Context, subject string, formIDs []string, label string) (models.BatchSummary, error) {
	if len(formIDs) == 0 {
		return models.BatchSummary{}, errEmptyBatch
	}
	if d.Client == nil {
		return models.BatchSummary{}, ErrCompletionNotConfigured
	}

	start := time.Now()

	jobID, err := d.Jobs.CreateJob(ctx, subject, label, len(formIDs))
	if err != nil {
		return models.BatchSummary{}, err
	}

	numWorkers := d.Workers
	if numWorkers <= 0 {
		numWorkers = GetWorkerCount()
	}
	if numWorkers > len(formIDs) {
		numWorkers = len(formIDs)
	}
	log.Printf("Processing batch: subject=%s job_id=%s total_forms=%d workers=%d", subject, jobID, len(formIDs), numWorkers)

	tasks := make(chan formTask, len(formIDs))
	// one slot per form, each written by exactly one worker
	results := make([]models.FormResult, len(formIDs))
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for t := range tasks {
				results[t.index] = d.processForm(ctx, id, jobID, t.formID)
			}
		}(i)
	}

	// Feed tasks
	go func() {
		defer close(tasks)
		for i, formID := range formIDs {
			tasks <- formTask{index: i, formID: formID}
		}
	}()

	// All forms settle before we touch the job row again
	wg.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	failed := len(formIDs) - succeeded

	if err := d.Jobs.FinalizeJob(ctx, jobID, succeeded, failed, results); err != nil {
		log.Printf("FinalizeJob failed job_id=%s: %v", jobID, err)
		return models.BatchSummary{}, err
	}

	log.Printf(
		"Batch complete: subject=%s job_id=%s succeeded=%d failed=%d took=%s",
		subject, jobID, succeeded, failed, time.Since(start),
	)

	return models.BatchSummary{JobID: jobID, Processed: succeeded, Failed: failed}, nil
}

// processForm resolves one form, calls the completion service and writes the
// draft back. Always returns a settled result; errors stay local to the form.
func (d *Dispatcher) processForm(ctx context.Context, workerID int, jobID, formID string) models.FormResult {
	form, err := d.Forms.LoadForm(ctx, formID)
	if err != nil {
		if errors.Is(err, errFormNotFound) {
			log.Printf("worker %d: form %s not found (job_id=%s)", workerID, formID, jobID)
			return models.FormResult{FormID: formID, Error: "form not found"}
		}
		log.Printf("worker %d: failed to load form %s: %v", workerID, formID, err)
		return models.FormResult{FormID: formID, Error: "failed to load form: " + err.Error()}
	}

	draft, err := d.Client.Complete(ctx, buildPrompt(form))
	if err != nil {
		log.Printf("worker %d: completion failed for form %s (job_id=%s): %v", workerID, formID, jobID, err)
		return models.FormResult{FormID: formID, Error: err.Error()}
	}

	if err := d.Forms.SaveDraft(ctx, formID, draft); err != nil {
		log.Printf("worker %d: failed to save draft for form %s: %v", workerID, formID, err)
		return models.FormResult{FormID: formID, Error: "failed to save draft: " + err.Error()}
	}

	log.Printf("worker %d: drafted form %s (job_id=%s)", workerID, formID, jobID)
	return models.FormResult{FormID: formID, Success: true}
}
