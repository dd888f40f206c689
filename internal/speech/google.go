package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"voicebook/internal/apperr"
	"voicebook/internal/model"
)

const (
	googleService      = "tts"
	cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"
	linear16           = "LINEAR16"
)

// GoogleOptions configure the Google Cloud Text-to-Speech client.
type GoogleOptions struct {
	// APIKey is optional; without it application default credentials are used.
	APIKey       string
	LanguageCode string
	BaseURL      string
	HTTPClient   *http.Client
}

// Google calls the Text-to-Speech REST API.
type Google struct {
	client       *http.Client
	apiKey       string
	languageCode string
	url          string
}

var _ Synthesizer = (*Google)(nil)

type synthesisInput struct {
	Text string `json:"text,omitempty"`
	SSML string `json:"ssml,omitempty"`
}

type voiceSelection struct {
	LanguageCode string `json:"languageCode"`
}

type audioConfig struct {
	AudioEncoding string `json:"audioEncoding"`
}

type synthesizeRequest struct {
	Input       synthesisInput `json:"input"`
	Voice       voiceSelection `json:"voice"`
	AudioConfig audioConfig    `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

type googleAPIError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewGoogle creates a Google TTS client. When neither an API key nor an HTTP client is given,
// the client authenticates with application default credentials.
func NewGoogle(ctx context.Context, opts GoogleOptions) (*Google, error) {
	base := strings.TrimSuffix(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = "https://texttospeech.googleapis.com"
	}
	lang := opts.LanguageCode
	if lang == "" {
		lang = "en-GB"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		traced := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
		if opts.APIKey != "" {
			httpClient = traced
		} else {
			cctx := context.WithValue(ctx, oauth2.HTTPClient, traced)
			c, err := google.DefaultClient(cctx, cloudPlatformScope)
			if err != nil {
				return nil, fmt.Errorf("tts: find default credentials: %w", err)
			}
			httpClient = c
		}
	}

	return &Google{
		client:       httpClient,
		apiKey:       opts.APIKey,
		languageCode: lang,
		url:          base + "/v1/text:synthesize",
	}, nil
}

// Synthesize sends markup when present, plain text otherwise.
func (g *Google) Synthesize(ctx context.Context, in model.SynthesisInput) ([]byte, error) {
	input := synthesisInput{Text: in.Text}
	if in.UsesMarkup() {
		input = synthesisInput{SSML: in.Markup}
	}
	payload, err := json.Marshal(synthesizeRequest{
		Input:       input,
		Voice:       voiceSelection{LanguageCode: g.languageCode},
		AudioConfig: audioConfig{AudioEncoding: linear16},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("x-goog-api-key", g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, apperr.Network("tts request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Network("tts read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr googleAPIError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, apperr.Remote(googleService, resp.StatusCode, apiErr.Error.Status+": "+apiErr.Error.Message)
		}
		return nil, apperr.Remote(googleService, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out synthesizeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperr.Remote(googleService, resp.StatusCode, "decode response: "+err.Error())
	}
	audio, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, apperr.Remote(googleService, resp.StatusCode, "decode audio: "+err.Error())
	}
	if len(audio) == 0 {
		return nil, apperr.Remote(googleService, 0, "empty audio")
	}
	return audio, nil
}
