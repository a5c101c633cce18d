// Package transcript records per-call translation round-trips.
//
// Each completed pipeline run appends one immutable Entry to the call's
// transcript log. The log lives under its own store key with a longer TTL
// than the call record, so conversation history outlives the call itself.
package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tesparr/dragoman/internal/store"
)

// Direction identifies which party was speaking for a transcript entry.
type Direction string

const (
	// DirectionAToB is the forward direction: party A's detected language
	// is translated into the pivot language.
	DirectionAToB Direction = "a_to_b"

	// DirectionBToA is the reverse direction: the pivot language is
	// translated back into party A's detected language.
	DirectionBToA Direction = "b_to_a"
)

// IsValid reports whether d is a recognised direction.
func (d Direction) IsValid() bool {
	return d == DirectionAToB || d == DirectionBToA
}

// Entry is one translation round-trip. Entries are append-only and ordered
// by append time; they are never updated or deleted.
type Entry struct {
	// Timestamp is when the pipeline run completed.
	Timestamp time.Time `json:"timestamp"`

	// Direction is the session direction at the time of the exchange.
	Direction Direction `json:"direction"`

	// Original is the recognised source-language text.
	Original string `json:"original"`

	// Translated is the target-language text.
	Translated string `json:"translated"`
}

// Recorder appends transcript entries to the store and reads them back.
// Safe for concurrent use.
type Recorder struct {
	store store.Store
	ttl   time.Duration
}

// NewRecorder creates a Recorder whose logs expire ttl after the last append.
func NewRecorder(s store.Store, ttl time.Duration) *Recorder {
	return &Recorder{store: s, ttl: ttl}
}

// key returns the store key of a call's transcript list.
func key(callID string) string {
	return "call:" + callID + ":transcript"
}

// Append adds entry to the call's transcript log and refreshes the log TTL.
func (r *Recorder) Append(ctx context.Context, callID string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("transcript: encode entry for %s: %w", callID, err)
	}
	return r.store.Append(ctx, key(callID), string(data), r.ttl)
}

// ReadAll returns the call's transcript entries in append order. A call with
// no transcript yields an empty slice.
func (r *Recorder) ReadAll(ctx context.Context, callID string) ([]Entry, error) {
	raw, err := r.store.Range(ctx, key(callID))
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raw))
	for i, v := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("transcript: decode entry %d for %s: %w", i, callID, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
