// Package llm implements the streaming chat collaborator on an
// OpenAI-compatible backend.
package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"tangent-backend/internal/application/ports"
	"tangent-backend/internal/domain/chat"
	"tangent-backend/internal/domain/node"
	"tangent-backend/internal/observability"
	pkgerrors "tangent-backend/pkg/errors"
)

// Config holds connection settings for the chat backend.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIStreamer talks to an OpenAI-compatible chat completion endpoint.
// Calls run behind a circuit breaker so a dying backend fails cascades fast
// instead of letting every branch wait out its timeout.
type OpenAIStreamer struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewOpenAIStreamer creates a streamer from config.
func NewOpenAIStreamer(cfg Config, logger *zap.Logger, metrics *observability.Metrics) *OpenAIStreamer {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "chat-stream",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.8
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("chat breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &OpenAIStreamer{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: timeout,
		breaker: breaker,
		logger:  logger,
		metrics: metrics,
	}
}

// StreamChat implements ports.ChatStreamer. onChunk receives the cumulative
// text after every delta; the final accumulated text is returned once the
// stream terminates normally.
func (s *OpenAIStreamer) StreamChat(
	ctx context.Context,
	transcript chat.Transcript,
	onChunk func(string),
	opts ports.StreamOptions,
) (string, error) {
	model := opts.Model
	if model == "" {
		model = s.model
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	result, err := s.breaker.Execute(func() (any, error) {
		return s.stream(ctx, model, transcript, onChunk)
	})
	if s.metrics != nil {
		s.metrics.StreamDuration.Observe(time.Since(started).Seconds())
	}

	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return "", pkgerrors.NewExternal("chat backend unavailable", err)
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return "", pkgerrors.NewTimeout("chat stream timed out")
		default:
			return "", pkgerrors.NewExternal("chat stream failed", err)
		}
	}
	return result.(string), nil
}

func (s *OpenAIStreamer) stream(
	ctx context.Context,
	model string,
	transcript chat.Transcript,
	onChunk func(string),
) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toMessages(transcript),
		Stream:   true,
	}

	stream, err := s.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var acc strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return acc.String(), nil
		}
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		acc.WriteString(delta)
		if onChunk != nil {
			onChunk(acc.String())
		}
	}
}

// toMessages converts the domain transcript into wire messages. Turns with
// parts become multi-content messages carrying image URLs alongside text.
func toMessages(transcript chat.Transcript) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(transcript))
	for _, turn := range transcript {
		msg := openai.ChatCompletionMessage{Role: toRole(turn.Role)}
		if len(turn.Parts) == 0 {
			msg.Content = turn.Content
			messages = append(messages, msg)
			continue
		}
		parts := make([]openai.ChatMessagePart, 0, len(turn.Parts))
		for _, p := range turn.Parts {
			if p.ImageURL != "" {
				parts = append(parts, openai.ChatMessagePart{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: p.ImageURL},
				})
				continue
			}
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: p.Text,
			})
		}
		msg.MultiContent = parts
		messages = append(messages, msg)
	}
	return messages
}

func toRole(r node.Role) string {
	switch r {
	case node.RoleSystem:
		return openai.ChatMessageRoleSystem
	case node.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case node.RoleUser:
		return openai.ChatMessageRoleUser
	}
	return openai.ChatMessageRoleUser
}
