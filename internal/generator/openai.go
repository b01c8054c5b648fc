package generator

import (
	"alcyxob/workout-chat/internal/config"
	"alcyxob/workout-chat/internal/domain"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIGenerator streams chat completions from an OpenAI compatible API.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

var _ Generator = (*OpenAIGenerator)(nil)

func NewOpenAIGenerator(cfg config.OpenAIConfig, logger *zap.Logger) *OpenAIGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req domain.ChatTurnRequest, onWorkout func(domain.WorkoutDraft)) (*domain.WorkoutPlan, error) {
	stream, err := g.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    buildMessages(req),
		MaxTokens:   g.maxTokens,
		Temperature: float32(g.temperature),
	})
	if err != nil {
		g.logger.Error("Failed to start completion stream", zap.Error(err), zap.String("model", g.model))
		return nil, fmt.Errorf("start completion: %w", err)
	}
	defer stream.Close()

	p := newLineParser(g.logger)
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			g.logger.Error("Completion stream failed", zap.Error(err))
			return nil, fmt.Errorf("read completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		p.write(resp.Choices[0].Delta.Content, onWorkout)
	}
	p.flush(onWorkout)

	plan, err := p.result(onWorkout)
	if err != nil {
		g.logger.Error("Failed to parse completion",
			zap.Error(err),
			zap.String("response", p.raw.String()))
		return nil, err
	}
	g.logger.Info("Plan generated",
		zap.String("intent", string(plan.Intent)),
		zap.String("action", string(plan.Action)),
		zap.Int("workouts", len(plan.Workouts)),
		zap.Int("skippedLines", p.skipped))
	return plan, nil
}
