// ABOUTME: Sources of raw assistant text for the extractor: an LLM-backed source and simple adapters.
// ABOUTME: The LLM source asks for a fenced json project block and retries rate-limited calls.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	muxllm "github.com/2389-research/mux/llm"
)

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Source produces assistant text for a user prompt.
type Source interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, prompt string) (string, error)

func (f SourceFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// SystemPrompt asks the model for the structured block the extractor prefers.
const SystemPrompt = `You generate small, runnable web projects for people learning to code.

Answer with a single fenced code block tagged json and nothing else:

` + "```json" + `
{
  "projectName": "Short project name",
  "description": "One or two sentences about the project",
  "files": [
    {
      "path": "src/App.tsx",
      "content": "full file contents",
      "language": "tsx",
      "isComplete": true,
      "challenges": [
        {"description": "What the learner should finish", "difficulty": "easy|medium|hard", "hints": ["optional hint"]}
      ]
    }
  ]
}
` + "```" + `

Rules:
- Paths are relative and use forward slashes.
- Include a package.json when the project needs npm dependencies.
- Mark a file isComplete false only when it contains a deliberate gap described by a challenge.`

// Option configures an LLMSource.
type Option func(*LLMSource)

// WithSystemPrompt replaces SystemPrompt.
func WithSystemPrompt(s string) Option {
	return func(l *LLMSource) {
		l.system = s
	}
}

// WithMaxTokens sets the output token limit.
func WithMaxTokens(n int) Option {
	return func(l *LLMSource) {
		if n > 0 {
			l.maxTokens = n
		}
	}
}

// WithRetryPolicy replaces the rate limit retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(l *LLMSource) {
		l.retry = p
	}
}

// WithLogger sets the logger.
func WithLogger(lg *log.Logger) Option {
	return func(l *LLMSource) {
		l.logger = lg
	}
}

// LLMSource generates text with a mux LLM client.
type LLMSource struct {
	client    muxllm.Client
	model     string
	system    string
	maxTokens int
	retry     RetryPolicy
	logger    *log.Logger
}

// NewLLMSource creates a source for client. An empty model lets the client
// choose its default.
func NewLLMSource(client muxllm.Client, model string, opts ...Option) *LLMSource {
	l := &LLMSource{
		client:    client,
		model:     model,
		system:    SystemPrompt,
		maxTokens: 16384,
		retry:     DefaultRetryPolicy(),
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Generate sends prompt to the model and returns its text.
func (l *LLMSource) Generate(ctx context.Context, prompt string) (string, error) {
	req := &muxllm.Request{
		Model:     l.model,
		System:    l.system,
		Messages:  []muxllm.Message{muxllm.NewUserMessage(prompt)},
		MaxTokens: l.maxTokens,
	}

	var resp *muxllm.Response
	err := retryOnRateLimit(ctx, l.retry, func() error {
		var callErr error
		resp, callErr = l.client.CreateMessage(ctx, req)
		return callErr
	}, func(err error, attempt int, delay time.Duration) {
		l.logger.Printf("component=generate action=rate_limit_retry attempt=%d delay=%s err=%v", attempt+1, delay, err)
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	text := resp.TextContent()
	if text == "" {
		return "", ErrEmptyResponse
	}
	l.logger.Printf("component=generate action=complete model=%s chars=%d", l.model, len(text))
	return text, nil
}
