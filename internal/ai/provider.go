// Package ai wraps the language model backends behind one Provider, selected
// once from configuration, and the field extractors built on top of it.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"buchhaltung/internal/config"
	"buchhaltung/internal/logger"
)

// Provider sends one system and user prompt and returns the model's answer.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, prompt string) (string, error)
}

type backend struct {
	baseURL string
	model   string
}

// All three backends speak the OpenAI chat completions protocol.
var backends = map[string]backend{
	"openai":    {baseURL: "", model: openai.GPT4oMini},
	"ollama":    {baseURL: "http://localhost:11434/v1", model: "llama3.1"},
	"anthropic": {baseURL: "https://api.anthropic.com/v1/", model: "claude-3-5-haiku-latest"},
}

const maxTokens = 1500

// ChatProvider implements Provider on an OpenAI compatible endpoint.
type ChatProvider struct {
	name        string
	model       string
	temperature float32
	maxRetries  int
	client      *openai.Client
	log         zerolog.Logger
}

// NewProvider selects the backend named by cfg.Provider.
func NewProvider(cfg config.AIConfig) (*ChatProvider, error) {
	const op = "NewProvider"

	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	b, ok := backends[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrUnknownProvider, cfg.Provider)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	switch {
	case cfg.BaseURL != "":
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	case b.baseURL != "":
		clientConfig.BaseURL = strings.TrimRight(b.baseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = b.model
	}
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}

	return &ChatProvider{
		name:        cfg.Provider,
		model:       model,
		temperature: cfg.Temperature,
		maxRetries:  retries,
		client:      openai.NewClientWithConfig(clientConfig),
		log:         logger.WithComponent("ai").With().Str("provider", cfg.Provider).Str("model", model).Logger(),
	}, nil
}

// Name returns the configured backend name.
func (p *ChatProvider) Name() string {
	return p.name
}

// Complete retries failed requests and empty answers up to the configured
// number of attempts.
func (p *ChatProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	const op = "Complete"

	p.log.Debug().
		Int("prompt_length", len(prompt)).
		Float32("temperature", p.temperature).
		Msg("Sending completion request")

	var lastErr error
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}

		resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       p.model,
			Temperature: p.temperature,
			MaxTokens:   maxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			lastErr = err
			p.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_retries", p.maxRetries).
				Msg("Completion request failed, retrying")
			continue
		}

		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			lastErr = ErrEmptyResponse
			p.log.Warn().Int("attempt", attempt).Msg("Empty completion, retrying")
			continue
		}

		content := resp.Choices[0].Message.Content
		p.log.Debug().Str("response", content).Int("attempt", attempt).Msg("Received completion")
		return content, nil
	}

	return "", fmt.Errorf("%s: all %d attempts failed, last error: %w", op, p.maxRetries, lastErr)
}

// CompleteJSON asks for a JSON answer and decodes it into out. Markdown code
// fences around the JSON are removed.
func CompleteJSON(ctx context.Context, p Provider, system, prompt string, out any) error {
	const op = "CompleteJSON"

	content, err := p.Complete(ctx, system, prompt)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(StripCodeFence(content)), out); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrInvalidJSON, err)
	}
	return nil
}

// StripCodeFence removes a surrounding ```json ... ``` block.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
