package model

import "time"

// Pipeline modes.
const (
	ModeReply      = "reply"
	ModeTranscript = "transcript"
)

// Run statuses.
const (
	RunSucceeded = "succeeded"
	RunRejected  = "rejected"
	RunFailed    = "failed"
)

// Run is a journal entry describing one pipeline execution.
type Run struct {
	ID           string    `json:"id"`
	Mode         string    `json:"mode"`
	DocumentFile string    `json:"document_file,omitempty"`
	AudioFile    string    `json:"audio_file,omitempty"`
	OutputFile   string    `json:"output_file,omitempty"`
	ResponseText string    `json:"response_text,omitempty"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	DurationMs   int64     `json:"duration_ms"`
}
