package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"voicebook/internal/apperr"
	"voicebook/internal/generation"
	"voicebook/internal/model"
	"voicebook/internal/repository"
	"voicebook/internal/speech"
	"voicebook/internal/storage"
)

const replyPrompt = `You are an AI assistant that receives a book file, an audio file and a prompt.
Listen to the audio file and reply to what is asked.`

const transcriptPrompt = `Please provide an exact transcript for the audio and share your opinion on what is said in the audio. Follow this with a sentiment analysis and why the sentiment came out like that.

Your response should follow the format:

Text: USERS SPEECH TRANSCRIPTION
Your opinion
Sentiment Analysis: positive|neutral|negative
Why sentiment came out like that`

var tracer = otel.Tracer("voicebook/internal/service")

// Result is what one pipeline run produced. Files written before a failure stay in place.
type Result struct {
	Document *model.StoredFile
	Audio    *model.StoredFile
	Output   *model.StoredFile
	Text     string
	Err      error
}

// Outcome is the boundary-neutral view of a Result: success, or a message to show.
type Outcome struct {
	OK      bool
	Message string
}

func (r Result) Outcome() Outcome {
	if r.Err == nil {
		return Outcome{OK: true}
	}
	if msg, ok := apperr.UserMessage(r.Err); ok {
		return Outcome{Message: msg}
	}
	return Outcome{Message: r.Err.Error()}
}

func (r Result) status() string {
	switch {
	case r.Err == nil:
		return model.RunSucceeded
	case errors.As(r.Err, new(*apperr.UserError)):
		return model.RunRejected
	default:
		return model.RunFailed
	}
}

// Pipeline turns an uploaded recording into a generated reply (or transcript).
type Pipeline interface {
	Run(ctx context.Context, up *Upload) Result
	Mode() string
}

// PipelineDeps wires the collaborators. Runs, Metrics, Logger and Now are optional.
type PipelineDeps struct {
	Mode    string
	Uploads UploadService
	Store   storage.Storage
	Gen     generation.Client
	Speech  speech.Synthesizer
	Runs    repository.RunRepository
	Metrics *Metrics
	Logger  *zap.Logger
	// Timeout bounds the remote stage of a run. Zero means no limit.
	Timeout time.Duration
	Now     func() time.Time
}

type pipeline struct {
	d PipelineDeps
}

// NewPipeline validates deps and returns the orchestrator for the configured mode.
func NewPipeline(d PipelineDeps) (Pipeline, error) {
	if d.Mode == "" {
		d.Mode = model.ModeReply
	}
	if d.Mode != model.ModeReply && d.Mode != model.ModeTranscript {
		return nil, fmt.Errorf("unsupported pipeline mode: %s. Supported: reply, transcript", d.Mode)
	}
	if d.Uploads == nil || d.Store == nil || d.Gen == nil {
		return nil, errors.New("pipeline: uploads, store and generation client are required")
	}
	if d.Mode == model.ModeReply && d.Speech == nil {
		return nil, errors.New("pipeline: reply mode requires a speech synthesizer")
	}
	if d.Runs == nil {
		d.Runs = repository.NopRuns{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &pipeline{d: d}, nil
}

func (p *pipeline) Mode() string { return p.d.Mode }

func (p *pipeline) Run(ctx context.Context, up *Upload) Result {
	ctx, span := tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("pipeline.mode", p.d.Mode)))
	defer span.End()

	start := p.d.Now()
	var res Result
	if p.d.Mode == model.ModeTranscript {
		res = p.transcript(ctx, up)
	} else {
		res = p.reply(ctx, up)
	}
	p.record(ctx, res, start)

	span.SetAttributes(attribute.String("pipeline.status", res.status()))
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Outcome().Message)
	}
	return res
}

func (p *pipeline) reply(ctx context.Context, up *Upload) Result {
	var res Result

	doc, ok, err := p.d.Uploads.CurrentDocument(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	if !ok {
		res.Err = apperr.User(MsgNoBook)
		return res
	}
	res.Document = &doc

	audio, err := p.d.Uploads.SaveAudio(ctx, up)
	if err != nil {
		res.Err = err
		return res
	}
	res.Audio = &audio

	rctx, cancel := p.remoteContext(ctx)
	defer cancel()

	text, err := p.generate(rctx, replyPrompt, doc, audio)
	if err != nil {
		res.Err = err
		return res
	}
	res.Text = text

	start := time.Now()
	pcm, err := p.d.Speech.Synthesize(rctx, model.SynthesisInput{Text: text})
	p.d.Metrics.observe("tts", "synthesize", start, err)
	if err != nil {
		res.Err = err
		return res
	}

	out, err := p.d.Store.Save(ctx, model.FolderUploads, replyName(audio.Name), bytes.NewReader(pcm))
	if err != nil {
		res.Err = apperr.Transient("save reply", err)
		return res
	}
	res.Output = &out
	return res
}

func (p *pipeline) transcript(ctx context.Context, up *Upload) Result {
	var res Result

	audio, err := p.d.Uploads.SaveAudio(ctx, up)
	if err != nil {
		res.Err = err
		return res
	}
	res.Audio = &audio

	rctx, cancel := p.remoteContext(ctx)
	defer cancel()

	text, err := p.generate(rctx, transcriptPrompt, audio)
	if err != nil {
		res.Err = err
		return res
	}
	res.Text = text

	out, err := p.d.Store.Save(ctx, model.FolderUploads, audio.Name+".txt", strings.NewReader(text))
	if err != nil {
		res.Err = apperr.Transient("save transcript", err)
		return res
	}
	res.Output = &out
	return res
}

// generate stages each file in order, then issues a single completion over them.
func (p *pipeline) generate(ctx context.Context, prompt string, files ...model.StoredFile) (string, error) {
	artifacts := make([]model.RemoteFile, 0, len(files))
	for _, f := range files {
		rf, err := p.stage(ctx, f)
		if err != nil {
			return "", err
		}
		artifacts = append(artifacts, rf)
	}

	ctx, span := tracer.Start(ctx, "pipeline.generate",
		trace.WithAttributes(attribute.Int("pipeline.artifacts", len(artifacts))))
	defer span.End()

	start := time.Now()
	text, err := p.d.Gen.Generate(ctx, model.GenerationRequest{Artifacts: artifacts, Prompt: prompt})
	p.d.Metrics.observe("gemini", "generate", start, err)
	return text, err
}

func (p *pipeline) stage(ctx context.Context, f model.StoredFile) (model.RemoteFile, error) {
	path, cleanup, err := p.d.Store.LocalPath(ctx, f.Folder, f.Name)
	if err != nil {
		return model.RemoteFile{}, apperr.Transient("stage "+f.Key(), err)
	}
	defer cleanup()

	start := time.Now()
	rf, err := p.d.Gen.UploadArtifact(ctx, path)
	p.d.Metrics.observe("gemini", "upload", start, err)
	return rf, err
}

func (p *pipeline) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.d.Timeout > 0 {
		return context.WithTimeout(ctx, p.d.Timeout)
	}
	return ctx, func() {}
}

// record journals the run and logs it. Journal failures never change the outcome.
func (p *pipeline) record(ctx context.Context, res Result, start time.Time) {
	status := res.status()
	run := &model.Run{
		ID:           uuid.NewString(),
		Mode:         p.d.Mode,
		ResponseText: res.Text,
		Status:       status,
		CreatedAt:    start,
		DurationMs:   p.d.Now().Sub(start).Milliseconds(),
	}
	if res.Document != nil {
		run.DocumentFile = res.Document.Key()
	}
	if res.Audio != nil {
		run.AudioFile = res.Audio.Key()
	}
	if res.Output != nil {
		run.OutputFile = res.Output.Key()
	}
	if res.Err != nil {
		run.ErrorMessage = res.Err.Error()
	}

	p.d.Metrics.countRun(run.Mode, status)

	fields := []zap.Field{
		zap.String("run_id", run.ID),
		zap.String("mode", run.Mode),
		zap.String("status", status),
		zap.String("audio_file", run.AudioFile),
		zap.String("output_file", run.OutputFile),
		zap.Int64("duration_ms", run.DurationMs),
	}
	switch status {
	case model.RunFailed:
		p.d.Logger.Error("pipeline_run", append(fields, zap.Error(res.Err))...)
	case model.RunRejected:
		p.d.Logger.Warn("pipeline_run", append(fields, zap.String("reason", run.ErrorMessage))...)
	default:
		p.d.Logger.Info("pipeline_run", fields...)
	}

	if _, err := p.d.Runs.Create(context.WithoutCancel(ctx), run); err != nil {
		p.d.Logger.Warn("run_journal_failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// replyName pairs the synthesized reply with its recording: 20240101-120000.wav -> 20240101-120000_reply.wav.
func replyName(audioName string) string {
	base := audioName
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return base + "_reply.wav"
}
