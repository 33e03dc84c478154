package main

import (
	"context"
	"log"
	"time"

	"github.com/IMAYAAGENCY/formswift-ai-sub001/app"
)

func main() {
	app.MustInitDB()
	app.InitStripe()
	app.InitServices()

	// batches interrupted by a crash or redeploy must not stay at processing
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := app.SweepStaleJobs(ctx, time.Hour); err != nil {
		log.Printf("stale job sweep failed: %v", err)
	}
	cancel()

	router, err := app.NewRouter()
	if err != nil {
		log.Fatalf("failed to initialize router: %v", err)
	}
	router.Run("0.0.0.0:8080")
}
