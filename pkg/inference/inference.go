// Package inference sends a captured frame and an instruction to an
// OpenAI-compatible chat completions endpoint and returns the reply text.
//
// The client never returns errors to its caller. Transport failures, non-2xx
// statuses and malformed bodies are folded into a readable string so the
// sampling loop can display them and carry on:
//
//	client, _ := inference.NewClient(inference.WithMaxTokens(100))
//	text := client.Send(ctx, "http://localhost:1234", "What do you see?", img)
package inference

import (
	"context"

	"github.com/teslashibe/lookout/pkg/frame"
)

// Sender maps (endpoint, instruction, image) to response text.
// Implementations must not panic and must not return empty text on failure.
type Sender interface {
	Send(ctx context.Context, endpoint, instruction string, img frame.Image) string
}

// Fixed response texts.
const (
	// MsgInvalidResponse is returned when the body parses but has no
	// choices[0].message.content string.
	MsgInvalidResponse = "Invalid response from server."

	// MsgUnknownError is returned when a failure carries no message.
	MsgUnknownError = "An unknown error occurred."
)

// CompletionsPath is appended to the endpoint for every request.
const CompletionsPath = "/v1/chat/completions"

// ModelsPath is used by Health.
const ModelsPath = "/v1/models"
