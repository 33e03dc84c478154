// Package app provides user persistence helpers for authenticated requests.
package app

import (
	"context"
	"database/sql"
	"strings"

	"github.com/IMAYAAGENCY/formswift-ai-sub001/app/config"
	"github.com/IMAYAAGENCY/formswift-ai-sub001/app/models"
	"github.com/IMAYAAGENCY/formswift-ai-sub001/auth"
)

// UpsertUserFromClaims creates a user row if it does not already exist.
func UpsertUserFromClaims(ctx context.Context, claims *auth.Claims) error {
	if db == nil {
		return nil
	}
	if claims == nil || claims.Subject == "" {
		return nil
	}

	email := readStringClaim(claims.Raw, "email")
	name := readStringClaim(claims.Raw, "name")

	const q = `
		INSERT INTO users (subject, email, name, last_login, plan)
		VALUES ($1, $2, $3, now(), $4)
		ON CONFLICT (subject) DO NOTHING;
	`

	_, err := db.ExecContext(
		ctx,
		q,
		claims.Subject,
		nullIfEmpty(email),
		nullIfEmpty(name),
		models.PlanFree,
	)
	return err
}

func readStringClaim(raw map[string]any, key string) string {
	if raw == nil {
		return ""
	}
	val, ok := raw[key]
	if !ok {
		return ""
	}
	if s, ok := val.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func getUserBySubject(ctx context.Context, subject string) (models.User, error) {
	var user models.User
	err := db.QueryRowContext(ctx, `
		SELECT plan
		FROM users
		WHERE subject = $1;
	`, subject).Scan(&user.Plan)
	if err != nil {
		return models.User{}, err
	}
	user.Subject = subject
	return user, nil
}

// batchLimitForSubject returns the per-window batch submission limit for the
// subject's plan. Lookup failures fall back to the FREE limit rather than
// blocking the request.
func batchLimitForSubject(ctx context.Context, subject string) int {
	cfg, err := config.LoadConfig()
	if err != nil {
		return DefaultRateLimitMax
	}
	if db == nil {
		return cfg.RateLimit.MaxCalls
	}

	user, err := getUserBySubject(ctx, subject)
	if err != nil {
		return cfg.RateLimit.MaxCalls
	}
	if user.Plan == models.PlanPro {
		return cfg.RateLimit.ProMaxCalls
	}
	return cfg.RateLimit.MaxCalls
}
