// Package langid defines the Provider interface for language-identification
// backends.
//
// Identification runs on recognised text, not audio, and is invoked at most
// once per call session: the first non-empty transcript fixes the session's
// source language for its whole lifetime.
package langid

import "context"

// Provider is the abstraction over any language-identification backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Detect returns the language of text as a deployment-defined code
	// (e.g. "tamil", "hindi", "english"). Implementations may fall back to
	// a configured default when confidence is low rather than erroring.
	Detect(ctx context.Context, text string) (string, error)
}
