package entity

import "time"

// Verification is the audit payload captured alongside every signed
// inference: the exact prompt text, the model and output the provider
// signed over, and the signature itself. Returned by the inference call
// directly so the caller decides whether and where to persist it.
type Verification struct {
	RequestPrompt    string    `json:"request_prompt"`
	ResponseModel    string    `json:"response_model"`
	ResponseOutput   string    `json:"response_output"`
	Signature        string    `json:"signature"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	InferenceAt      time.Time `json:"inference_at"`
}
