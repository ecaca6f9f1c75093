// ABOUTME: Chat Completions client for OpenAI-compatible services reachable at a custom base URL.
// ABOUTME: Implements the mux client interface for plain text generation.
package generate

import (
	"context"
	"fmt"

	muxllm "github.com/2389-research/mux/llm"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAICompatClient talks to /v1/chat/completions, which OpenRouter,
// Cerebras, local gateways and similar services all support.
type OpenAICompatClient struct {
	client openai.Client
	model  string
}

// NewOpenAICompatClient creates a client for baseURL. An empty baseURL uses
// the OpenAI default.
func NewOpenAICompatClient(apiKey, model, baseURL string) *OpenAICompatClient {
	if model == "" {
		model = "gpt-5.2"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAICompatClient{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (c *OpenAICompatClient) prepare(req *muxllm.Request) openai.ChatCompletionNewParams {
	if req.Model == "" {
		req.Model = c.model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = 4096
	}
	return compatParams(req)
}

// CreateMessage sends a request and returns the full response.
func (c *OpenAICompatClient) CreateMessage(ctx context.Context, req *muxllm.Request) (*muxllm.Response, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.prepare(req))
	if err != nil {
		return nil, err
	}
	return compatResponse(resp), nil
}

// CreateMessageStream streams text deltas and finishes with the accumulated
// response.
func (c *OpenAICompatClient) CreateMessageStream(ctx context.Context, req *muxllm.Request) (<-chan muxllm.StreamEvent, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.prepare(req))
	events := make(chan muxllm.StreamEvent, 100)

	go func() {
		defer close(events)
		defer func() {
			if r := recover(); r != nil {
				events <- muxllm.StreamEvent{Type: muxllm.EventError, Error: fmt.Errorf("panic in stream processing: %v", r)}
			}
		}()

		var acc openai.ChatCompletionAccumulator
		events <- muxllm.StreamEvent{Type: muxllm.EventMessageStart}
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				events <- muxllm.StreamEvent{Type: muxllm.EventContentDelta, Text: chunk.Choices[0].Delta.Content}
			}
		}
		if err := stream.Err(); err != nil {
			events <- muxllm.StreamEvent{Type: muxllm.EventError, Error: err}
			return
		}
		events <- muxllm.StreamEvent{Type: muxllm.EventMessageStop, Response: compatResponse(&acc.ChatCompletion)}
	}()
	return events, nil
}

func compatParams(req *muxllm.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{Model: req.Model}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		text := messageText(msg)
		switch msg.Role {
		case muxllm.RoleUser:
			messages = append(messages, openai.UserMessage(text))
		case muxllm.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(text))
		}
	}
	params.Messages = messages
	return params
}

func messageText(msg muxllm.Message) string {
	if msg.Content != "" {
		return msg.Content
	}
	for _, block := range msg.Blocks {
		if block.Type == muxllm.ContentTypeText {
			return block.Text
		}
	}
	return ""
}

func compatResponse(resp *openai.ChatCompletion) *muxllm.Response {
	out := &muxllm.Response{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: muxllm.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	switch choice.FinishReason {
	case "length":
		out.StopReason = muxllm.StopReasonMaxTokens
	default:
		out.StopReason = muxllm.StopReasonEndTurn
	}
	if choice.Message.Content != "" {
		out.Content = append(out.Content, muxllm.ContentBlock{Type: muxllm.ContentTypeText, Text: choice.Message.Content})
	}
	return out
}

var _ muxllm.Client = (*OpenAICompatClient)(nil)
