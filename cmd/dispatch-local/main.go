package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/IMAYAAGENCY/formswift-ai-sub001/app"
	"github.com/IMAYAAGENCY/formswift-ai-sub001/app/config"
)

// Runs one batch against the DB from the command line, bypassing HTTP.
// Useful for debugging dispatch behavior against a real completion endpoint.
func main() {
	subject := flag.String("subject", "local-dev", "subject that owns the batch")
	label := flag.String("label", "local batch", "job label")
	formIDs := flag.String("forms", "", "comma-separated form ids")
	flag.Parse()

	ids := strings.Split(*formIDs, ",")
	if *formIDs == "" || len(ids) == 0 {
		log.Fatal("at least one form id is required (-forms id1,id2,...)")
	}

	start := time.Now()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	app.MustInitDB()

	client, err := app.NewOpenAICompletions(cfg.Completion)
	if err != nil {
		log.Fatalf("completion client: %v", err)
	}

	d := &app.Dispatcher{
		Forms:   app.NewPGFormStore(),
		Jobs:    app.NewPGJobStore(),
		Client:  client,
		Workers: app.GetWorkerCount(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	summary, err := d.SubmitBatch(ctx, *subject, ids, *label)
	if err != nil {
		log.Fatalf("SubmitBatch failed: %v", err)
	}

	log.Printf("job_id=%s processed=%d failed=%d took=%s", summary.JobID, summary.Processed, summary.Failed, time.Since(start))
}
