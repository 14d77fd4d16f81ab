// Package ports declares the interfaces the application layer needs from
// external collaborators. Implementations live under infrastructure.
package ports

import (
	"context"
	"time"

	"tangent-backend/internal/domain/chat"
)

// StreamOptions configures one streaming chat call.
type StreamOptions struct {
	// Model identifies the backend model; empty uses the provider default.
	Model string
	// Timeout bounds the whole call, surfaced as a typed failure rather
	// than hanging.
	Timeout time.Duration
}

// ChatStreamer performs a streaming LLM call. onChunk is invoked repeatedly
// with the cumulative text so far; the final accumulated text is returned
// on a normal terminating signal. Transport and timeout failures are
// returned as errors.
type ChatStreamer interface {
	StreamChat(ctx context.Context, transcript chat.Transcript, onChunk func(string), opts StreamOptions) (string, error)
}

// ParsedFile is the normalized output of the external file parser.
type ParsedFile struct {
	Name string
	// Text is the extracted text, or a data URL for images.
	Text    string
	IsImage bool
}

// FileParser converts an uploaded file into node-ready content. A parse
// failure is an error for that file only; batch callers skip and continue.
type FileParser interface {
	Parse(name, mimeType string, data []byte) (ParsedFile, error)
}
