package speech

import (
	"context"
	"errors"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"voicebook/internal/apperr"
	"voicebook/internal/model"
)

const openAIService = "openai tts"

// OpenAIOptions configure the OpenAI speech client.
type OpenAIOptions struct {
	APIKey     string
	Voice      string
	BaseURL    string
	HTTPClient *http.Client
}

// OpenAI synthesizes speech with the OpenAI audio API, requesting WAV output
// so replies play like the LINEAR16 files Google returns.
type OpenAI struct {
	client *openai.Client
	voice  openai.SpeechVoice
}

var _ Synthesizer = (*OpenAI)(nil)

func NewOpenAI(opts OpenAIOptions) (*OpenAI, error) {
	if opts.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable is not set")
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	} else {
		cfg.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	voice := opts.Voice
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), voice: openai.SpeechVoice(voice)}, nil
}

func (o *OpenAI) Synthesize(ctx context.Context, in model.SynthesisInput) ([]byte, error) {
	if in.UsesMarkup() {
		return nil, ErrMarkupUnsupported
	}
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          in.Text,
		Voice:          o.voice,
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, apperr.Network("openai tts read response", err)
	}
	if len(audio) == 0 {
		return nil, apperr.Remote(openAIService, 0, "empty audio")
	}
	return audio, nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apperr.Remote(openAIService, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return apperr.Remote(openAIService, reqErr.HTTPStatusCode, reqErr.Error())
	}
	return apperr.Network("openai tts request", err)
}
