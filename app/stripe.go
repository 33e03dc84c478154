package app

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/IMAYAAGENCY/formswift-ai-sub001/app/config"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/customer"
)

// InitStripe wires the Stripe API key from the environment.
func InitStripe() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config for stripe: %v", err)
	}
	stripe.Key = cfg.Stripe.SecretKey
}

// ensureStripeCustomer finds or creates a Stripe Customer for the given user.
// It uses users.stripe_customer_id when present, otherwise creates a new
// customer with metadata subject = <subject>, then stores that in the users table.
func ensureStripeCustomer(ctx context.Context, subject string) (string, error) {
	if db == nil {
		return "", errors.New("db not initialized")
	}
	if subject == "" {
		return "", errors.New("missing subject")
	}

	var stripeID sql.NullString
	err := db.QueryRowContext(
		ctx,
		`
			SELECT stripe_customer_id
			FROM users
			WHERE subject = $1;
		`,
		subject,
	).Scan(&stripeID)
	if err != nil {
		return "", err
	}

	if stripeID.Valid && stripeID.String != "" {
		return stripeID.String, nil
	}

	params := &stripe.CustomerParams{
		Metadata: map[string]string{
			"subject": subject,
		},
	}
	cust, err := customer.New(params)
	if err != nil {
		return "", err
	}

	_, err = db.ExecContext(
		ctx,
		`
			UPDATE users
			SET stripe_customer_id = $1
			WHERE subject = $2;
		`,
		cust.ID,
		subject,
	)
	if err != nil {
		return "", err
	}

	return cust.ID, nil
}
