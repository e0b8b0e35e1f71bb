// Package gemini provides a client for the Google Gemini REST API. It
// transcribes inline audio and renders transcripts as infographic images.
package gemini

import "strings"

// Model constants for Gemini models
const (
	// ModelGemini25Flash is the fast, efficient model used for transcription
	ModelGemini25Flash = "gemini-2.5-flash"
	// ModelGemini3ProImage is the image model used for infographics
	ModelGemini3ProImage = "gemini-3-pro-image-preview"
	// ModelGemini25FlashImage is the cheaper image model
	ModelGemini25FlashImage = "gemini-2.5-flash-image"
)

// SupportedAspectRatios lists the ratios accepted by imageConfig
var SupportedAspectRatios = []string{
	"1:1", "2:3", "3:2", "3:4", "4:3", "4:5", "5:4", "9:16", "16:9", "21:9",
}

// SupportedImageSizes lists the resolution tiers accepted by imageConfig
var SupportedImageSizes = []string{"1K", "2K", "4K"}

// APIError represents an error from the Gemini API
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// GenerateContentRequest is the request structure for the Gemini API
type GenerateContentRequest struct {
	Contents          []*Content        `json:"contents"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
}

// Content represents a content block in the API
type Content struct {
	Role  string  `json:"role,omitempty"`
	Parts []*Part `json:"parts"`
}

// Part represents a part of content (text or inline data)
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
	Thought    bool        `json:"thought,omitempty"`
}

// InlineData represents binary data (audio, images) inline
type InlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // Base64 encoded
}

// GenerationConfig contains generation parameters
type GenerationConfig struct {
	Temperature        *float64     `json:"temperature,omitempty"`
	MaxOutputTokens    *int         `json:"maxOutputTokens,omitempty"`
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *ImageConfig `json:"imageConfig,omitempty"`
}

// ImageConfig controls the shape of generated images
type ImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

// GenerateContentResponse is the response from the Gemini API
type GenerateContentResponse struct {
	Candidates     []*Candidate    `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
	UsageMetadata  *UsageMetadata  `json:"usageMetadata,omitempty"`
}

// Candidate represents a generated response candidate
type Candidate struct {
	Content      *Content `json:"content"`
	FinishReason string   `json:"finishReason"`
}

// PromptFeedback reports why a prompt was refused
type PromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// UsageMetadata contains token usage information
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// parts returns the parts of the first candidate
func (r *GenerateContentResponse) parts() []*Part {
	if r == nil || len(r.Candidates) == 0 || r.Candidates[0].Content == nil {
		return nil
	}
	return r.Candidates[0].Content.Parts
}

// Text concatenates the text parts of the first candidate, skipping thoughts
func (r *GenerateContentResponse) Text() string {
	var sb strings.Builder
	for _, p := range r.parts() {
		if p.Thought {
			continue
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// FirstInlineData returns the first inline blob of the first candidate
func (r *GenerateContentResponse) FirstInlineData() *InlineData {
	for _, p := range r.parts() {
		if p.InlineData != nil && p.InlineData.Data != "" {
			return p.InlineData
		}
	}
	return nil
}
