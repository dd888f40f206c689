package model

// RemoteFile is an artifact staged on the generative-language service.
type RemoteFile struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MIMEType string `json:"mime_type"`
}

// GenerationRequest is a single-turn completion request. Artifacts are sent in order,
// followed by the prompt text.
type GenerationRequest struct {
	Artifacts []RemoteFile
	Prompt    string
}

// SynthesisInput holds either plain text or SSML markup. Markup wins when both are set.
type SynthesisInput struct {
	Text   string
	Markup string
}

// UsesMarkup reports whether the markup variant will be sent.
func (in SynthesisInput) UsesMarkup() bool {
	return in.Markup != ""
}
