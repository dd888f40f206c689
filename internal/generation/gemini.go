package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"voicebook/internal/apperr"
	"voicebook/internal/model"
)

const (
	serviceName    = "gemini"
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.0-flash"
)

// Sampling settings are fixed; callers cannot tune them.
const (
	temperature      = 1
	topP             = 0.95
	topK             = 40
	maxOutputTokens  = 8192
	responseMIMEType = "text/plain"
)

// Client bridges local files to a remote completion call.
type Client interface {
	// UploadArtifact stages a local file on the remote service.
	UploadArtifact(ctx context.Context, path string) (model.RemoteFile, error)
	// Generate runs one completion over the artifacts (in order) followed by the prompt.
	Generate(ctx context.Context, req model.GenerationRequest) (string, error)
}

// Options configure the Gemini client.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Gemini talks to the Gemini API over REST. One instance is shared by all requests.
type Gemini struct {
	client      *http.Client
	apiKey      string
	uploadURL   string
	generateURL string
}

var _ Client = (*Gemini)(nil)

// NewGemini creates a Gemini client.
func NewGemini(opts Options) (*Gemini, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("gemini: api key required")
	}
	base := strings.TrimSuffix(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	modelID := strings.TrimSpace(opts.Model)
	if modelID == "" {
		modelID = defaultModel
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Gemini{
		client:      httpClient,
		apiKey:      opts.APIKey,
		uploadURL:   base + "/upload/v1beta/files",
		generateURL: fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, modelID),
	}, nil
}

// UploadArtifact pushes the file with a multipart/related upload. The MIME type is
// detected from the file content.
func (g *Gemini) UploadArtifact(ctx context.Context, path string) (model.RemoteFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.RemoteFile{}, apperr.Transient("read artifact", err)
	}
	mimeType := detectMIME(data)

	var meta fileMetadata
	meta.File.DisplayName = filepath.Base(path)
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return model.RemoteFile{}, err
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	metaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return model.RemoteFile{}, err
	}
	metaPart.Write(metaJSON)
	mediaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {mimeType}})
	if err != nil {
		return model.RemoteFile{}, err
	}
	mediaPart.Write(data)
	if err := mw.Close(); err != nil {
		return model.RemoteFile{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.uploadURL, body)
	if err != nil {
		return model.RemoteFile{}, err
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())
	req.Header.Set("X-Goog-Upload-Protocol", "multipart")

	var out uploadResponse
	if err := g.do(req, &out); err != nil {
		return model.RemoteFile{}, err
	}
	if out.File.URI == "" {
		return model.RemoteFile{}, apperr.Remote(serviceName, 0, "upload response missing file uri")
	}
	remoteMIME := out.File.MIMEType
	if remoteMIME == "" {
		remoteMIME = mimeType
	}
	return model.RemoteFile{Name: out.File.Name, URI: out.File.URI, MIMEType: remoteMIME}, nil
}

// Generate returns the text of the first candidate.
func (g *Gemini) Generate(ctx context.Context, in model.GenerationRequest) (string, error) {
	payload, err := json.Marshal(buildGenerateRequest(in))
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.generateURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out generateResponse
	if err := g.do(req, &out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 {
		if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
			return "", apperr.Remote(serviceName, 0, "prompt blocked: "+out.PromptFeedback.BlockReason)
		}
		return "", apperr.Remote(serviceName, 0, "no candidates returned")
	}
	first := out.Candidates[0]
	text := first.Content.Text()
	if text == "" {
		return "", apperr.Remote(serviceName, 0, "empty completion (finishReason="+first.FinishReason+")")
	}
	return text, nil
}

func buildGenerateRequest(in model.GenerationRequest) generateRequest {
	parts := make([]part, 0, len(in.Artifacts)+1)
	for _, a := range in.Artifacts {
		parts = append(parts, part{FileData: &fileData{FileURI: a.URI, MIMEType: a.MIMEType}})
	}
	parts = append(parts, part{Text: in.Prompt})
	return generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			Temperature:      temperature,
			TopP:             topP,
			TopK:             topK,
			MaxOutputTokens:  maxOutputTokens,
			ResponseMIMEType: responseMIMEType,
		},
	}
}

func (g *Gemini) do(req *http.Request, out any) error {
	req.Header.Set("x-goog-api-key", g.apiKey)
	resp, err := g.client.Do(req)
	if err != nil {
		return apperr.Network("gemini request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Network("gemini read response", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperr.Remote(serviceName, resp.StatusCode, "decode response: "+err.Error())
	}
	return nil
}

// detectMIME drops parameters such as "; charset=utf-8" which the files API rejects.
func detectMIME(data []byte) string {
	mt := mimetype.Detect(data).String()
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}
