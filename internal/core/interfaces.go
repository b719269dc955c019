// Package core defines the core interfaces and types for the campus assistant.
package core

import (
	"context"
	"io"
)

// Provider defines the interface for LLM vendors
type Provider interface {
	// Name returns the vendor name used in logs, metrics and errors
	Name() string

	// ParseChunk extracts the text fragment from one streamed event payload.
	// A non-nil error ends the turn; an empty fragment is skipped.
	ParseChunk(payload string) (string, error)

	// StreamChatCompletion returns a raw SSE stream (caller must close).
	// A blank API key yields a configuration error before any network call.
	StreamChatCompletion(ctx context.Context, req *ChatRequest) (io.ReadCloser, error)
}
