// Package tts defines the Provider interface for speech-synthesis backends.
//
// Like the other capability providers, synthesis is a single batch
// request/response call: translated text in, raw PCM out. The orchestrator
// writes the returned audio straight to the call's outbound media channel;
// frame boundaries on the wire are independent of synthesis boundaries.
package tts

import "context"

// Provider is the abstraction over any speech-synthesis backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Synthesize renders text as signed 16-bit little-endian mono PCM in
	// the given language. An empty result with a nil error is allowed and
	// means nothing should be played.
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}
