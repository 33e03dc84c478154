package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IMAYAAGENCY/formswift-ai-sub001/app/config"
	"github.com/IMAYAAGENCY/formswift-ai-sub001/app/models"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"golang.org/x/time/rate"
)

// ErrCompletionNotConfigured means the downstream credentials are missing.
// This is fatal for a whole batch, never a per-form failure.
var ErrCompletionNotConfigured = errors.New("completion service not configured: missing OPENAI_API_KEY")

// CompletionClient generates one draft for one form brief.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAICompletions calls an OpenAI-compatible chat completion endpoint.
// A shared rate.Limiter smooths the request rate toward the downstream so a
// large batch fan-out does not arrive as one burst.
type OpenAICompletions struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	timeout time.Duration
}

// NewOpenAICompletions builds the client from config. Returns
// ErrCompletionNotConfigured when no API key is present, so callers can
// refuse a batch before creating any job row.
func NewOpenAICompletions(cfg config.CompletionConfig) (*OpenAICompletions, error) {
	if cfg.APIKey == "" {
		return nil, ErrCompletionNotConfigured
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAICompletions{
		client:  &client,
		model:   cfg.Model,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		timeout: timeout,
	}, nil
}

// Complete sends one prompt and returns the generated draft. Each call
// carries its own timeout; a timed-out call surfaces as an error the
// dispatcher records as a per-form failure.
func (o *OpenAICompletions) Complete(ctx context.Context, prompt string) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You draft professional form content. Respond with the completed form text only."),
			openai.UserMessage(prompt),
		},
		Model: shared.ChatModel(o.model),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("completion service returned status %d: %s", apiErr.StatusCode, apiErr.Message)
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion service returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// buildPrompt composes the completion prompt from a form record.
func buildPrompt(f models.Form) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Form: %s\n", f.Title)
	if f.Instructions != "" {
		fmt.Fprintf(&b, "Instructions: %s\n", f.Instructions)
	}
	b.WriteString("Draft the form content.")
	return b.String()
}
