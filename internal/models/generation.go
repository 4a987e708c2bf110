package models

import "time"

// DefaultTone is the tone used when a generation request does not set one.
const DefaultTone = "友好"

// GenerationRequest describes the email a text-generation provider should write.
type GenerationRequest struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Context   string `json:"context"`
	Tone      string `json:"tone,omitempty"`
}

// WithDefaults returns a copy of the request with the tone defaulted.
func (r GenerationRequest) WithDefaults() GenerationRequest {
	if r.Tone == "" {
		r.Tone = DefaultTone
	}
	return r
}

// GenerationResult is the text produced for a request together with who produced it.
type GenerationResult struct {
	Text     string        `json:"text"`
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Latency  time.Duration `json:"latency"`
}
