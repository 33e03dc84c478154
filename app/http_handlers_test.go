package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/IMAYAAGENCY/formswift-ai-sub001/auth"

	"github.com/gin-gonic/gin"
)

// newBatchTestRouter mounts the batch routes behind a stub auth middleware.
// An empty subject mounts the routes with no claims at all.
func newBatchTestRouter(subject string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if subject != "" {
		r.Use(func(c *gin.Context) {
			ctx := auth.WithClaims(c.Request.Context(), &auth.Claims{Subject: subject})
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
	r.POST("/batches", SubmitBatch)
	r.GET("/jobs/:jobid", GetJobStatus)
	r.GET("/ratelimit/:resource", CheckRateLimit)
	return r
}

// swapServices replaces the package-level limiter and completion client for
// one test and restores them afterwards.
func swapServices(t *testing.T, rl *RateLimiter, client CompletionClient) {
	t.Helper()
	prevLimiter, prevCompletions := limiter, completions
	limiter, completions = rl, client
	t.Cleanup(func() {
		limiter, completions = prevLimiter, prevCompletions
	})
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubmitBatchRequiresAuth(t *testing.T) {
	swapServices(t, nil, &fakeCompletion{})
	r := newBatchTestRouter("")

	w := postJSON(r, "/batches", `{"form_ids":["f1"]}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestSubmitBatchRejectsBadInput(t *testing.T) {
	swapServices(t, nil, &fakeCompletion{})
	r := newBatchTestRouter("user-123")

	t.Run("empty form_ids", func(t *testing.T) {
		w := postJSON(r, "/batches", `{"form_ids":[],"job_name":"x"}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})

	t.Run("missing form_ids", func(t *testing.T) {
		w := postJSON(r, "/batches", `{"job_name":"x"}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		w := postJSON(r, "/batches", `{"form_ids":`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})
}

func TestSubmitBatchCompletionUnconfigured(t *testing.T) {
	swapServices(t, nil, nil)
	r := newBatchTestRouter("user-123")

	w := postJSON(r, "/batches", `{"form_ids":["f1"]}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "not configured") {
		t.Fatalf("error = %q, want a not-configured message", msg)
	}
}

func TestSubmitBatchRateLimited(t *testing.T) {
	store := newFakeRateStore()
	now := time.Now()
	// subject already exhausted the default window
	for i := 0; i < DefaultRateLimitMax; i++ {
		if err := store.Record(context.Background(), "user-123", BatchProcessResource, now.Add(-time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
	swapServices(t, NewRateLimiter(store, time.Minute, DefaultRateLimitMax, false), &fakeCompletion{})
	r := newBatchTestRouter("user-123")

	w := postJSON(r, "/batches", `{"form_ids":["f1"]}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if _, ok := body["reset_at"]; !ok {
		t.Fatal("429 body must carry reset_at")
	}
	if remaining, _ := body["remaining"].(float64); remaining != 0 {
		t.Fatalf("remaining = %v, want 0", body["remaining"])
	}
	// the denied request must not consume an admission slot
	if store.records != DefaultRateLimitMax {
		t.Fatalf("store grew to %d entries on a denied request", store.records)
	}
}

func TestSubmitBatchAdmittedWithoutDatabase(t *testing.T) {
	store := newFakeRateStore()
	swapServices(t, NewRateLimiter(store, time.Minute, DefaultRateLimitMax, false), &fakeCompletion{})
	r := newBatchTestRouter("user-123")

	// admission passes; job creation then fails because no db is attached
	w := postJSON(r, "/batches", `{"form_ids":["f1"]}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if store.records != 1 {
		t.Fatalf("admitted request must record exactly one entry, got %d", store.records)
	}
}

func TestCheckRateLimitRequiresAuth(t *testing.T) {
	swapServices(t, NewRateLimiter(newFakeRateStore(), time.Minute, 10, false), nil)
	r := newBatchTestRouter("")

	req := httptest.NewRequest(http.MethodGet, "/ratelimit/export", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestCheckRateLimitOverrides(t *testing.T) {
	swapServices(t, NewRateLimiter(newFakeRateStore(), time.Minute, 10, false), nil)
	r := newBatchTestRouter("user-123")

	get := func() map[string]any {
		req := httptest.NewRequest(http.MethodGet, "/ratelimit/export?max_requests=1&window_ms=60000", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid JSON response: %v", err)
		}
		return body
	}

	first := get()
	if allowed, _ := first["allowed"].(bool); !allowed {
		t.Fatalf("first call should be admitted, body=%v", first)
	}
	second := get()
	if allowed, _ := second["allowed"].(bool); allowed {
		t.Fatalf("second call should be denied with max_requests=1, body=%v", second)
	}
}

func TestGetJobStatusRequiresAuth(t *testing.T) {
	r := newBatchTestRouter("")

	req := httptest.NewRequest(http.MethodGet, "/jobs/job-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestGetJobStatusUnknownJob(t *testing.T) {
	r := newBatchTestRouter("user-123")

	req := httptest.NewRequest(http.MethodGet, "/jobs/no-such-job", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
