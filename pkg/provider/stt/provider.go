// Package stt defines the Provider interface for speech-recognition backends.
//
// A provider wraps an external recognition service behind a single batch
// request/response call: one normalised audio chunk in, one text string out.
// The orchestrator drains its accumulation buffer into exactly one Recognize
// call per chunk, so providers never see overlapping audio for the same call.
//
// Implementations must be safe for concurrent use — every active call runs
// its own session and they all share one provider instance.
package stt

import "context"

// Provider is the abstraction over any speech-recognition backend.
type Provider interface {
	// Recognize transcribes one chunk of mono audio. Samples are normalised
	// float32 values in [-1, 1] at the deployment sample rate.
	//
	// An empty string with a nil error means the chunk contained no
	// recognisable speech; callers treat it as silence, not failure.
	Recognize(ctx context.Context, samples []float32) (string, error)
}
