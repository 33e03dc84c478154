package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/IMAYAAGENCY/formswift-ai-sub001/app/config"
	"github.com/IMAYAAGENCY/formswift-ai-sub001/app/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Tables (managed externally, no migrations here):
//
//	rate_limit_entries (subject_id, resource_name, created_at)
//	batch_jobs         (id, subject_id, label, total_forms, succeeded, failed, status, created_at, completed_at)
//	batch_job_results  (job_id, position, form_id, success, error_message)
//	forms              (id, owner_id, title, instructions, ai_draft, updated_at)
//	users              (subject, email, name, plan, stripe_customer_id, last_login)
var db *sql.DB

var errFormNotFound = errors.New("form not found")

// MustInitDB initializes the global db and panics/logs fatally on error.
func MustInitDB() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s",
		cfg.DB.Username,
		cfg.DB.Password,
		cfg.DB.URL,
		cfg.DB.Port,
	)

	d, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("sql.Open: %v", err)
	}

	if err := d.Ping(); err != nil {
		log.Fatalf("db.Ping: %v", err)
	}

	log.Println("Connected to Postgres")
	db = d
}

// RateStore reads and appends admission window entries for a (subject, resource)
// pair. Entries are write-once; expiry happens by time-range filtering alone.
type RateStore interface {
	// Entries returns timestamps of calls at or after since, newest first.
	Entries(ctx context.Context, subject, resource string, since time.Time) ([]time.Time, error)

	// Record appends one entry at the given instant.
	Record(ctx context.Context, subject, resource string, at time.Time) error
}

// FormStore resolves form records and writes drafts back onto them.
type FormStore interface {
	LoadForm(ctx context.Context, id string) (models.Form, error)
	SaveDraft(ctx context.Context, id, draft string) error
}

// JobStore creates and finalizes batch job rows.
type JobStore interface {
	CreateJob(ctx context.Context, subject, label string, total int) (string, error)
	FinalizeJob(ctx context.Context, jobID string, succeeded, failed int, results []models.FormResult) error
}

// ---- Postgres rate store ----

type pgRateStore struct{}

// NewPGRateStore returns a RateStore backed by the shared Postgres pool.
func NewPGRateStore() RateStore { return pgRateStore{} }

func (pgRateStore) Entries(ctx context.Context, subject, resource string, since time.Time) ([]time.Time, error) {
	if db == nil {
		return nil, errors.New("db not initialized")
	}
	rows, err := db.QueryContext(ctx, `
		SELECT created_at
		FROM rate_limit_entries
		WHERE subject_id = $1
		  AND resource_name = $2
		  AND created_at >= $3
		ORDER BY created_at DESC;
	`, subject, resource, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (pgRateStore) Record(ctx context.Context, subject, resource string, at time.Time) error {
	if db == nil {
		return errors.New("db not initialized")
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO rate_limit_entries (subject_id, resource_name, created_at)
		VALUES ($1, $2, $3);
	`, subject, resource, at)
	return err
}

// ---- Postgres form store ----

type pgFormStore struct{}

// NewPGFormStore returns a FormStore backed by the shared Postgres pool.
func NewPGFormStore() FormStore { return pgFormStore{} }

func (pgFormStore) LoadForm(ctx context.Context, id string) (models.Form, error) {
	if db == nil {
		return models.Form{}, errors.New("db not initialized")
	}
	var f models.Form
	err := db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, instructions, COALESCE(ai_draft, ''), updated_at
		FROM forms
		WHERE id = $1;
	`, id).Scan(&f.ID, &f.OwnerID, &f.Title, &f.Instructions, &f.AIDraft, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Form{}, errFormNotFound
		}
		return models.Form{}, err
	}
	return f, nil
}

func (pgFormStore) SaveDraft(ctx context.Context, id, draft string) error {
	if db == nil {
		return errors.New("db not initialized")
	}
	_, err := db.ExecContext(ctx, `
		UPDATE forms
		SET ai_draft = $1, updated_at = now()
		WHERE id = $2;
	`, draft, id)
	return err
}

// ---- Postgres job store ----

type pgJobStore struct{}

// NewPGJobStore returns a JobStore backed by the shared Postgres pool.
func NewPGJobStore() JobStore { return pgJobStore{} }

func (pgJobStore) CreateJob(ctx context.Context, subject, label string, total int) (string, error) {
	if db == nil {
		return "", errors.New("db not initialized")
	}
	jobID := uuid.NewString()
	const q = `
        INSERT INTO batch_jobs (id, subject_id, label, total_forms, succeeded, failed, status, created_at)
        VALUES ($1, $2, $3, $4, 0, 0, $5, now());
    `
	if _, err := db.ExecContext(ctx, q, jobID, subject, label, total, models.BatchProcessing); err != nil {
		return "", err
	}
	log.Printf("Created batch job %s for subject=%s totalForms=%d", jobID, subject, total)
	return jobID, nil
}

// FinalizeJob writes counts, terminal status and the ordered per-form results
// in one transaction. Called exactly once per job, after every form settles.
func (pgJobStore) FinalizeJob(ctx context.Context, jobID string, succeeded, failed int, results []models.FormResult) error {
	if db == nil {
		return errors.New("db not initialized")
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE batch_jobs
		SET succeeded = $1,
		    failed = $2,
		    status = $3,
		    completed_at = now()
		WHERE id = $4
		  AND status = $5;
	`, succeeded, failed, models.BatchCompleted, jobID, models.BatchProcessing)
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		log.Printf("FinalizeJob: no processing job row found for id=%s", jobID)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(
		"batch_job_results",
		"job_id", "position", "form_id", "success", "error_message",
	))
	if err != nil {
		return err
	}
	for i, r := range results {
		if _, err := stmt.Exec(jobID, i, r.FormID, r.Success, r.Error); err != nil {
			return err
		}
	}
	if _, err := stmt.Exec(); err != nil {
		return err
	}
	if err := stmt.Close(); err != nil {
		return err
	}

	return tx.Commit()
}

// FindBatchJob fetches a job row and its ordered per-form results.
func FindBatchJob(ctx context.Context, jobID string) (models.BatchJob, error) {
	var job models.BatchJob
	if db == nil {
		return job, sql.ErrNoRows
	}

	const q = `
        SELECT id, subject_id, label, total_forms, succeeded, failed, status, created_at, completed_at
        FROM batch_jobs
        WHERE id = $1;
    `

	var completedAt sql.NullTime
	row := db.QueryRowContext(ctx, q, jobID)
	if err := row.Scan(
		&job.ID,
		&job.SubjectID,
		&job.Label,
		&job.TotalForms,
		&job.Succeeded,
		&job.Failed,
		&job.Status,
		&job.CreatedAt,
		&completedAt,
	); err != nil {
		return models.BatchJob{}, err
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	rows, err := db.QueryContext(ctx, `
		SELECT form_id, success, COALESCE(error_message, '')
		FROM batch_job_results
		WHERE job_id = $1
		ORDER BY position;
	`, jobID)
	if err != nil {
		return models.BatchJob{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var r models.FormResult
		if err := rows.Scan(&r.FormID, &r.Success, &r.Error); err != nil {
			return models.BatchJob{}, err
		}
		job.Results = append(job.Results, r)
	}
	if err := rows.Err(); err != nil {
		return models.BatchJob{}, err
	}

	return job, nil
}

// SweepStaleJobs force-completes processing jobs older than maxAge. Covers the
// crash-between-create-and-finalize gap: a job must never stay at processing
// forever. Swept jobs keep whatever counts were gathered; the remainder is
// counted as failed so that succeeded + failed == total_forms still holds.
func SweepStaleJobs(ctx context.Context, maxAge time.Duration) (int64, error) {
	if db == nil {
		return 0, nil
	}

	res, err := db.ExecContext(ctx, `
		UPDATE batch_jobs
		SET failed = total_forms - succeeded,
		    status = $1,
		    completed_at = now()
		WHERE status = $2
		  AND created_at < now() - $3::interval;
	`, models.BatchCompleted, models.BatchProcessing, fmt.Sprintf("%d milliseconds", maxAge.Milliseconds()))
	if err != nil {
		return 0, err
	}

	swept, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	if swept > 0 {
		log.Printf("Swept %d stale processing jobs older than %s", swept, maxAge)
	}
	return swept, nil
}
