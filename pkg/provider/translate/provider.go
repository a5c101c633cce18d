// Package translate defines the Provider interface for text-translation
// backends.
//
// Every call in a deployment translates through a fixed pivot language: the
// forward direction maps the caller's detected language to the pivot, the
// reverse direction maps the pivot back. Providers only see concrete
// (source, target) pairs — direction logic lives in the orchestrator.
package translate

import "context"

// Provider is the abstraction over any translation backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Translate renders text from sourceLang into targetLang. Language codes
	// are deployment-defined (e.g. "tamil", "hi_en").
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}
