package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/testsmith/testsmith/internal/identifier"
	"github.com/testsmith/testsmith/internal/logger"
	"github.com/testsmith/testsmith/internal/types"
)

const name string = "github.com/testsmith/testsmith/internal/generation"

var tracer = otel.Tracer(name)

var (
	ErrNoModel      = errors.New("no generation model configured")
	ErrEmptyResult  = errors.New("model output contained no usable summaries")
	ErrNoSourceFile = errors.New("no source file to generate for")
)

// Origin records which path produced a generation result.
type Origin string

const (
	OriginModel    Origin = "model"
	OriginFallback Origin = "fallback"
)

type (
	Proposal struct {
		Summaries []types.Summary
		Origin    Origin
		// Why the fallback path was taken. Nil for model output.
		FallbackReason error
	}

	Generated struct {
		Artifact       types.CodeArtifact
		Origin         Origin
		FallbackReason error
	}
)

type Config struct {
	// Bound on a single model call. Zero leaves the caller's deadline in place.
	Timeout time.Duration
	// Source characters included per file in a prompt. Zero includes everything.
	MaxPreviewChars int
}

type Option func(*Engine)

// WithClock replaces the time source used for synthesized ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine proposes test summaries and generates test code. Both operations
// always return a result: when the model is missing, fails or answers with
// unusable output, a deterministic fallback is returned instead.
type Engine struct {
	model Model
	cfg   Config
	now   func() time.Time
}

// NewEngine builds an engine around model. A nil model makes every call take
// the fallback path.
func NewEngine(model Model, cfg Config, opts ...Option) *Engine {
	e := &Engine{model: model, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) ModelName() string {
	if e.model == nil {
		return string(OriginFallback)
	}
	return e.model.Name()
}

func (e *Engine) generate(ctx context.Context, prompt string) (string, error) {
	if e.model == nil {
		return "", ErrNoModel
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	return e.model.Generate(ctx, prompt)
}

func (e *Engine) ProposeSummaries(ctx context.Context, files []types.FileSnapshot) Proposal {
	ctx, span := tracer.Start(ctx, "ProposeSummaries", trace.WithAttributes(
		attribute.Int("files.count", len(files)),
		attribute.String("model", e.ModelName()),
	))
	defer span.End()

	files = withLanguages(files)
	now := e.now()

	fallback := func(reason error) Proposal {
		logger.Logger.WarnContext(ctx, "using fallback summaries", "error", reason)
		span.AddEvent("fallback", trace.WithAttributes(attribute.String("reason", reason.Error())))
		span.SetStatus(codes.Ok, "returned fallback summaries")
		return Proposal{
			Summaries:      FallbackSummaries(files, now),
			Origin:         OriginFallback,
			FallbackReason: reason,
		}
	}

	if len(files) == 0 {
		return fallback(ErrNoSourceFile)
	}

	language := files[0].Language
	prompt, err := renderPrompt("summaries.tmpl", promptData{
		Language:  language,
		Framework: DefaultFramework(language),
		Files:     files,
	}, e.cfg.MaxPreviewChars)
	if err != nil {
		return fallback(err)
	}

	span.AddEvent("requesting summaries from model")
	text, err := e.generate(ctx, prompt)
	if err != nil {
		return fallback(fmt.Errorf("model call failed: %w", err))
	}

	summaries, err := parseSummaries(text)
	if err != nil {
		return fallback(err)
	}

	summaries = NormalizeSummaries(summaries, language, now)
	if len(summaries) == 0 {
		return fallback(ErrEmptyResult)
	}

	span.SetAttributes(attribute.Int("summaries.count", len(summaries)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "proposed summaries")
	return Proposal{Summaries: summaries, Origin: OriginModel}
}

func (e *Engine) GenerateCode(
	ctx context.Context,
	files []types.FileSnapshot,
	summary types.Summary,
) Generated {
	ctx, span := tracer.Start(ctx, "GenerateCode", trace.WithAttributes(
		attribute.Int("files.count", len(files)),
		attribute.String("summary.id", summary.ID),
		attribute.String("model", e.ModelName()),
	))
	defer span.End()

	files = withLanguages(files)
	primary := types.FileSnapshot{Path: "source.js", Language: identifier.LanguageJavaScript.String()}
	if len(files) > 0 {
		primary = files[0]
	}

	framework := ResolveFramework(primary.Language, summary.Framework)
	artifact := types.CodeArtifact{
		ID:         uuid.NewString(),
		SummaryID:  summary.ID,
		Filename:   TestFilename(primary.Path, framework, primary.Language),
		Framework:  framework.String(),
		Language:   primary.Language,
		RunCommand: framework.RunCommand(),
		CreatedAt:  e.now().UTC(),
	}
	span.SetAttributes(
		attribute.String("framework", artifact.Framework),
		attribute.String("filename", artifact.Filename),
	)

	fallback := func(reason error) Generated {
		logger.Logger.WarnContext(ctx, "using fallback test skeleton",
			"summary_id", summary.ID,
			"filename", artifact.Filename,
			"error", reason,
		)
		span.AddEvent("fallback", trace.WithAttributes(attribute.String("reason", reason.Error())))

		code, err := renderSkeleton(primary, summary, framework, artifact.Filename)
		if err != nil {
			// templates are embedded; this only happens on a programming error
			logger.Logger.ErrorContext(ctx, "failed to render skeleton", "error", err)
			code = fmt.Sprintf("// TODO: write tests for %s\n", primary.Path)
		}

		artifact.Code = code
		span.SetStatus(codes.Ok, "returned fallback skeleton")
		return Generated{Artifact: artifact, Origin: OriginFallback, FallbackReason: reason}
	}

	if len(files) == 0 {
		return fallback(ErrNoSourceFile)
	}

	prompt, err := renderPrompt("code.tmpl", promptData{
		Language:  primary.Language,
		Framework: framework,
		Filename:  artifact.Filename,
		Summary:   summary,
		Files:     files,
	}, e.cfg.MaxPreviewChars)
	if err != nil {
		return fallback(err)
	}

	span.AddEvent("requesting code from model")
	text, err := e.generate(ctx, prompt)
	if err != nil {
		return fallback(fmt.Errorf("model call failed: %w", err))
	}

	raw, err := parseCode(text)
	if err != nil {
		return fallback(err)
	}

	artifact.Code = raw.Code

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "generated code")
	return Generated{Artifact: artifact, Origin: OriginModel}
}

// withLanguages fills in missing snapshot languages from the file name and content
func withLanguages(files []types.FileSnapshot) []types.FileSnapshot {
	out := make([]types.FileSnapshot, len(files))
	for i, f := range files {
		out[i] = f
		if f.Language == "" {
			out[i].Language = identifier.GetLanguage(f.Path, []byte(f.Content)).String()
		}
	}
	return out
}
