package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gleaner/internal/common"
)

// ClaudeService implements the Completer interface using the Anthropic
// Claude API.
type ClaudeService struct {
	config  *common.ClaudeConfig
	logger  arbor.ILogger
	client  *anthropic.Client
	model   string
	timeout time.Duration
}

// NewClaudeService creates a new Claude completion service instance.
func NewClaudeService(config *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required for the completion service (set GLEANER_CLAUDE_API_KEY, ANTHROPIC_API_KEY, or claude.api_key in config)")
	}

	if config.Model == "" {
		config.Model = "claude-sonnet-4-5-20250929"
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	service := &ClaudeService{
		config:  config,
		logger:  logger,
		client:  &client,
		model:   config.Model,
		timeout: timeout,
	}

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Float64("temperature", float64(config.Temperature)).
		Msg("Claude completion service initialized")

	return service, nil
}

// WithModel returns a copy of the service that completes with a different
// model but shares the underlying client. Used for the digest model.
func (s *ClaudeService) WithModel(model string) *ClaudeService {
	if model == "" || model == s.model {
		return s
	}
	clone := *s
	clone.model = model
	return &clone
}

// Complete generates a completion for a single user prompt.
func (s *ClaudeService) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt cannot be empty for completion")
	}
	if maxTokens <= 0 {
		maxTokens = s.config.MaxTokens
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}

	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}

	if response.Len() == 0 {
		if resp.StopReason == anthropic.StopReasonRefusal {
			return "", fmt.Errorf("model refused to respond")
		}
		return "", fmt.Errorf("no response generated (stop reason: %s)", resp.StopReason)
	}

	s.logger.Debug().
		Str("model", s.model).
		Int("prompt_length", len(prompt)).
		Int("response_length", response.Len()).
		Dur("duration", time.Since(start)).
		Msg("Completion generated")

	return response.String(), nil
}

// Close releases the client reference.
func (s *ClaudeService) Close() error {
	s.client = nil
	return nil
}
