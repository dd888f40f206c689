package speech

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"voicebook/internal/config"
	"voicebook/internal/model"
)

// ErrMarkupUnsupported is returned by providers that only accept plain text.
var ErrMarkupUnsupported = errors.New("speech: markup input not supported by provider")

// Synthesizer converts text (or SSML markup) into raw LINEAR16 audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, in model.SynthesisInput) ([]byte, error)
}

// New builds the provider selected by cfg.Provider. httpClient may be nil.
func New(ctx context.Context, cfg config.SpeechConfig, httpClient *http.Client) (Synthesizer, error) {
	switch cfg.Provider {
	case "", "google":
		return NewGoogle(ctx, GoogleOptions{
			APIKey:       cfg.APIKey,
			LanguageCode: cfg.LanguageCode,
			BaseURL:      cfg.BaseURL,
			HTTPClient:   httpClient,
		})
	case "openai":
		return NewOpenAI(OpenAIOptions{
			APIKey:     cfg.OpenAIKey,
			Voice:      cfg.OpenAIVoice,
			HTTPClient: httpClient,
		})
	default:
		return nil, fmt.Errorf("unsupported TTS provider: %s. Supported: google, openai", cfg.Provider)
	}
}
