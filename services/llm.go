package services

import (
	"regexp"
	"strings"
)

// LLMModelName is the GenAI model to use for a given generation.
type LLMModelName int32

const (
	Pro25 LLMModelName = iota
	Flash25
	FlashLite25
	Flash20
	Flash25Image
)

func (t LLMModelName) String() string {
	switch t {
	case Pro25:
		return "gemini-2.5-pro"
	case Flash25:
		return "gemini-2.5-flash"
	case FlashLite25:
		return "gemini-2.5-flash-lite-preview-06-17"
	case Flash25Image:
		return "gemini-2.5-flash-image-preview"
	case Flash20:
		return "gemini-2.0-flash"
	default:
		return "gemini-2.0-flash"
	}
}

func floatPointer(f float32) *float32 {
	return &f
}

func Int64Pointer(i int64) *int64 {
	return &i
}

func Int32Pointer(i int32) *int32 {
	return &i
}

type LLMResponse struct {
	Response           string   `json:"response"`
	Images             [][]byte `json:"images,omitempty"`
	InputTokenCount    int32    `json:"input_token_count"`
	Thoughts           string   `json:"thoughts"`
	ThoughtsTokenCount int32    `json:"thoughts_token_count"`
	OutputTokenCount   int32    `json:"output_token_count"`
	TotalTokenCount    int32    `json:"total_token_count"`
	IsTest             bool     `json:"is_test"`
}

// Add accumulates token usage from another call into this response.
func (r *LLMResponse) Add(other *LLMResponse) {
	if other == nil {
		return
	}
	r.InputTokenCount += other.InputTokenCount
	r.ThoughtsTokenCount += other.ThoughtsTokenCount
	r.OutputTokenCount += other.OutputTokenCount
	r.TotalTokenCount += other.TotalTokenCount
}

// GenerateOptions holds the per-call sampling knobs for a model request.
type GenerateOptions struct {
	Temperature     float32
	MaxOutputTokens int32
	TopP            *float32
	TopK            *float32
}

// StylistLLMProvider is the model surface the wardrobe pipeline depends on.
// DescribeImage runs a vision prompt over a single clothing photo,
// GenerateText runs a plain text prompt, GenerateImage produces
// inline image bytes for mannequin previews.
type StylistLLMProvider interface {
	DescribeImage(imagePath string, prompt string, modelName LLMModelName, opts GenerateOptions) (*LLMResponse, error)
	GenerateText(prompt string, modelName LLMModelName, opts GenerateOptions) (*LLMResponse, error)
	GenerateImage(prompt string, modelName LLMModelName) (*LLMResponse, error)
}

var jsonFenceRule = regexp.MustCompile("```json|```")

// CleanAIResponseText strips markdown code fences the model tends to wrap
// JSON payloads in.
func CleanAIResponseText(text string) string {
	return strings.TrimSpace(jsonFenceRule.ReplaceAllString(text, ""))
}
