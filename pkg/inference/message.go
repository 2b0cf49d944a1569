package inference

import (
	"encoding/json"

	"github.com/teslashibe/lookout/pkg/frame"
)

// Role defines message roles in a conversation.
type Role string

// RoleUser is the only role lookout sends.
const RoleUser Role = "user"

// Content part types.
const (
	PartText     = "text"
	PartImageURL = "image_url"
)

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL wraps an image reference. lookout always uses data URLs.
type ImageURL struct {
	URL string `json:"url"`
}

// Message is a single chat message with structured content.
type Message struct {
	Role    Role          `json:"role"`
	Content []ContentPart `json:"content"`
}

// ChatRequest is the request body for /v1/chat/completions.
type ChatRequest struct {
	Model     string    `json:"model,omitempty"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []Message `json:"messages"`
}

// NewVisionMessage creates a user message with the instruction and one image.
func NewVisionMessage(instruction string, img frame.Image) Message {
	return Message{
		Role: RoleUser,
		Content: []ContentPart{
			{Type: PartText, Text: instruction},
			{Type: PartImageURL, ImageURL: &ImageURL{URL: img.DataURL()}},
		},
	}
}

// NewVisionRequest builds a single-turn request.
func NewVisionRequest(model string, maxTokens int, instruction string, img frame.Image) ChatRequest {
	return ChatRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  []Message{NewVisionMessage(instruction, img)},
	}
}

// chatCompletionResponse keeps content raw so a non-string content is a
// shape mismatch rather than a decode failure.
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// firstContent extracts choices[0].message.content as a non-empty string.
func firstContent(body []byte) (string, bool) {
	var resp chatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", false
	}
	if len(resp.Choices) == 0 {
		return "", false
	}
	var content string
	if err := json.Unmarshal(resp.Choices[0].Message.Content, &content); err != nil {
		return "", false
	}
	return content, content != ""
}
