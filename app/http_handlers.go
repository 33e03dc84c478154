package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/IMAYAAGENCY/formswift-ai-sub001/app/config"
	"github.com/IMAYAAGENCY/formswift-ai-sub001/auth"

	"github.com/gin-gonic/gin"
)

// BatchProcessResource names the admission-controlled operation guarding
// batch submissions.
const BatchProcessResource = "batch-process"

// batchTimeout bounds one synchronous batch end to end. Individual
// completion calls carry their own shorter timeout.
const batchTimeout = 5 * time.Minute

var (
	limiter     *RateLimiter
	completions CompletionClient
)

// InitServices wires the rate limiter and the completion client from config.
// A missing completion credential is not fatal here: the submit handler
// reports it per request so the rest of the API keeps serving.
func InitServices() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	limiter = NewRateLimiter(NewPGRateStore(), cfg.RateLimit.Window, cfg.RateLimit.MaxCalls, cfg.RateLimit.FailOpen)

	client, err := NewOpenAICompletions(cfg.Completion)
	if err != nil {
		log.Printf("completion client unavailable: %v", err)
		return
	}
	completions = client
}

type submitBatchRequest struct {
	FormIDs []string `json:"form_ids"`
	JobName string   `json:"job_name"`
}

// SubmitBatch processes a set of forms against the completion service and
// responds only after every form has settled.
func SubmitBatch(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok || claims.Subject == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	var req submitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if len(req.FormIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "form_ids must not be empty"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), batchTimeout)
	defer cancel()

	if limiter != nil {
		maxCalls := batchLimitForSubject(ctx, claims.Subject)
		res, err := limiter.CheckAndRecord(ctx, claims.Subject, BatchProcessResource, 0, maxCalls)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !res.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":     "rate limit exceeded for batch processing",
				"remaining": res.Remaining,
				"reset_at":  res.ResetAt,
			})
			return
		}
	}

	if completions == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": ErrCompletionNotConfigured.Error()})
		return
	}

	d := &Dispatcher{
		Forms:   NewPGFormStore(),
		Jobs:    NewPGJobStore(),
		Client:  completions,
		Workers: GetWorkerCount(),
	}

	summary, err := d.SubmitBatch(ctx, claims.Subject, req.FormIDs, req.JobName)
	if err != nil {
		if errors.Is(err, errEmptyBatch) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Printf("SubmitBatch failed for subject=%s: %v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":    summary.JobID,
		"processed": summary.Processed,
		"failed":    summary.Failed,
	})
}

// GetJobStatus returns a batch job with its per-form results.
func GetJobStatus(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	jobID := c.Param("jobid")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing job id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	job, err := FindBatchJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// jobs are visible to their owner only
	if job.SubjectID != claims.Subject {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job": job})
}

// CheckRateLimit answers whether one more call is admitted for the
// authenticated subject on the named resource, and records it if so.
// Internal gating surface; window/limit overrides come via query params.
func CheckRateLimit(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok || claims.Subject == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}
	if limiter == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rate limiter not initialized"})
		return
	}

	resource := c.Param("resource")
	if resource == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing resource"})
		return
	}

	var window time.Duration
	if q := c.Query("window_ms"); q != "" {
		if v, err := parsePositiveInt(q); err == nil && v > 0 {
			window = time.Duration(v) * time.Millisecond
		}
	}
	maxCalls := 0
	if q := c.Query("max_requests"); q != "" {
		if v, err := parsePositiveInt(q); err == nil && v > 0 {
			maxCalls = v
		}
	}

	res, err := limiter.CheckAndRecord(c.Request.Context(), claims.Subject, resource, window, maxCalls)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"allowed":   res.Allowed,
		"remaining": res.Remaining,
		"reset_at":  res.ResetAt,
	})
}
