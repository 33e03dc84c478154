// Package models defines user plan fields.
package models

type Plan string

const (
	PlanFree Plan = "FREE"
	PlanPro  Plan = "PRO"
)

type User struct {
	Subject string `db:"subject"`
	Plan    Plan   `db:"plan"`
}
