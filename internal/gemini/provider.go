package gemini

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/mediscribe/scribe/internal/errors"
)

// DefaultModel is the hosted model used for transcription.
const DefaultModel = "gemini-2.0-flash-lite"

// TranscriptionPrompt instructs the model to return a clinical transcript only.
const TranscriptionPrompt = "Transcribe this medical conversation into a structured clinical note. " +
	"Focus on medical terminology, symptoms, medications, and clinical observations. " +
	"Format as a clean transcript suitable for a SOAP note. " +
	"Return only the transcribed text without additional commentary."

// ErrMissingAPIKey is reported when no credential is configured.
var ErrMissingAPIKey = stderrors.New("GEMINI_API_KEY is not set")

// generator is the slice of the genai models service the provider calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Provider transcribes audio with a hosted Gemini model. The client is created on
// first use so a missing key does not prevent startup.
type Provider struct {
	apiKey string
	model  string
	log    zerolog.Logger

	once      sync.Once
	gen       generator
	clientErr error
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the provider's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Provider) { p.log = l }
}

// withGenerator injects a fake models service.
func withGenerator(g generator) Option {
	return func(p *Provider) { p.gen = g }
}

// NewProvider returns a provider for apiKey and model. An empty model selects DefaultModel.
func NewProvider(apiKey, model string, opts ...Option) *Provider {
	if model == "" {
		model = DefaultModel
	}
	p := &Provider{apiKey: apiKey, model: model, log: zerolog.Nop()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// KeyLoaded reports whether a credential is configured.
func (p *Provider) KeyLoaded() bool {
	return p.apiKey != ""
}

// Model returns the configured model name.
func (p *Provider) Model() string {
	return p.model
}

func (p *Provider) client(ctx context.Context) (generator, error) {
	p.once.Do(func() {
		if p.gen != nil {
			return
		}
		if p.apiKey == "" {
			p.clientErr = ErrMissingAPIKey
			return
		}
		c, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  p.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			p.clientErr = err
			return
		}
		p.gen = c.Models
	})
	return p.gen, p.clientErr
}

// Transcribe sends audio inline with the transcription prompt and returns the model's text.
// Credential problems are PROVIDER_CONFIG errors; anything else is returned wrapped.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	gen, err := p.client(ctx)
	if err != nil {
		return "", classify(err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(TranscriptionPrompt),
			genai.NewPartFromBytes(audio, mimeType),
		}, genai.RoleUser),
	}

	resp, err := gen.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		p.log.Error().Err(err).Str("model", p.model).Msg("gemini transcription failed")
		return "", classify(err)
	}
	return resp.Text(), nil
}

// classify maps credential and bad-request failures onto PROVIDER_CONFIG.
func classify(err error) error {
	if isConfigError(err) {
		return errors.NewProviderConfig(err)
	}
	return fmt.Errorf("gemini: %w", err)
}

func isConfigError(err error) bool {
	if stderrors.Is(err, ErrMissingAPIKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "API_KEY") ||
		strings.Contains(msg, "API key") ||
		strings.Contains(msg, "Error 400,")
}
