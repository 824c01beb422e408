package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/dfryer1193/retrolaminate/editor/domain"
)

const (
	// DefaultModel is the image-capable model used when none is configured.
	DefaultModel = "gemini-2.5-flash-image"

	defaultOutputMediaType = "image/png"
)

// ContentGenerator is the part of the genai client the transformer needs.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Transformer sends an image and an instruction to Gemini and returns the
// first image in the response.
type Transformer struct {
	models  ContentGenerator
	model   string
	timeout time.Duration
}

var _ domain.Transformer = (*Transformer)(nil)

type Option func(*Transformer)

func WithModel(model string) Option {
	return func(t *Transformer) {
		if model != "" {
			t.model = model
		}
	}
}

// WithTimeout bounds each call. Zero leaves calls unbounded.
func WithTimeout(d time.Duration) Option {
	return func(t *Transformer) { t.timeout = d }
}

func NewTransformer(models ContentGenerator, opts ...Option) *Transformer {
	t := &Transformer{
		models: models,
		model:  DefaultModel,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// NewClient builds a Gemini API client for apiKey.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}

	return client, nil
}

// Transform returns errors wrapping domain.ErrService.
func (t *Transformer) Transform(ctx context.Context, req domain.TransformRequest) (*domain.TransformResult, error) {
	if len(req.Payload.Data) == 0 {
		return nil, fmt.Errorf("%w: gemini: empty payload", domain.ErrService)
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(req.Payload.Data, req.Payload.MediaType),
			genai.NewPartFromText(req.Instruction),
		}, genai.RoleUser),
	}

	start := time.Now()
	resp, err := t.models.GenerateContent(ctx, t.model, contents, nil)
	if err != nil {
		return nil, handleGenaiError("generate content", err)
	}

	log.Debug().Str("model", t.model).Dur("elapsed", time.Since(start)).Msg("Gemini responded")

	return extractImage(resp)
}

// extractImage returns the first inline-data part of the first candidate.
func extractImage(resp *genai.GenerateContentResponse) (*domain.TransformResult, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: gemini: empty response", domain.ErrService)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: gemini: prompt blocked: %s", domain.ErrService, resp.PromptFeedback.BlockReason)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: gemini: no candidates in response", domain.ErrService)
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}

		mediaType := part.InlineData.MIMEType
		if mediaType == "" {
			mediaType = defaultOutputMediaType
		}

		return &domain.TransformResult{
			Content:   part.InlineData.Data,
			MediaType: mediaType,
		}, nil
	}

	return nil, fmt.Errorf("%w: gemini: no image generated in the response (finish reason %q)",
		domain.ErrService, resp.Candidates[0].FinishReason)
}

func handleGenaiError(op string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: gemini: %s failed with status %d: %s", domain.ErrService, op, apiErr.Code, apiErr.Message)
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return fmt.Errorf("%w: gemini: %s failed with status %d: %s", domain.ErrService, op, apiErrPtr.Code, apiErrPtr.Message)
	}

	return fmt.Errorf("%w: gemini: %s failed: %w", domain.ErrService, op, err)
}
