package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/testsmith/testsmith/internal/logger"
)

const DefaultGeminiModel = "gemini-2.0-flash"

var ErrEmptyResponse = errors.New("model returned an empty response")

type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	RetryMax    int
}

// GeminiModel generates text with the Gemini API.
type GeminiModel struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewGeminiModel(ctx context.Context, cfg GeminiConfig) (*GeminiModel, error) {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.Logger = logger.Logger

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: retryClient.StandardClient(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	return &GeminiModel{client: client, model: model, temperature: cfg.Temperature}, nil
}

func (m *GeminiModel) Name() string {
	return m.model
}

func (m *GeminiModel) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "GeminiModel.Generate", trace.WithAttributes(
		attribute.String("model", m.model),
		attribute.Int("prompt.length", len(prompt)),
	))
	defer span.End()

	temperature := m.temperature
	resp, err := m.client.Models.GenerateContent(
		ctx,
		m.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{
			Temperature:      &temperature,
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to generate content")
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		span.RecordError(ErrEmptyResponse)
		span.SetStatus(codes.Error, "empty response")
		return "", ErrEmptyResponse
	}

	span.SetAttributes(attribute.Int("response.length", len(text)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "generated content")
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
