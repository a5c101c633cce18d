// Package call owns call records and their lifecycle invariants.
//
// A call record tracks one telephony call from admission to termination. The
// registry persists records as single JSON blobs in the store, refreshing the
// configured TTL on every write, and maintains two global counters —
// active_calls_count and total_calls_processed — whose mutations are atomic
// at the store level and guarded so that repeated terminal events for the
// same call never double-count.
package call

import "time"

// Status is the lifecycle state of a call. Transitions are forward-only:
// initiated → active → terminated.
type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusActive     Status = "active"
	StatusTerminated Status = "terminated"
)

// IsValid reports whether s is a recognised call status.
func (s Status) IsValid() bool {
	switch s {
	case StatusInitiated, StatusActive, StatusTerminated:
		return true
	}
	return false
}

// rank orders statuses along the lifecycle. Higher ranks cannot transition
// to lower ones.
func (s Status) rank() int {
	switch s {
	case StatusInitiated:
		return 0
	case StatusActive:
		return 1
	case StatusTerminated:
		return 2
	default:
		return -1
	}
}

// Record is the persisted state of a single call.
type Record struct {
	// CallID correlates the telephony channel, media session, and transcript log.
	CallID string `json:"call_id"`

	// ChannelID is the switch-assigned identifier for the call leg. Set once
	// the media channel exists.
	ChannelID string `json:"channel_id,omitempty"`

	// CallerNumber is the calling party's number as reported by the switch.
	CallerNumber string `json:"caller_number,omitempty"`

	// Destination is the dialled party for calls originated through the API.
	Destination string `json:"destination,omitempty"`

	// Status is the lifecycle state.
	Status Status `json:"status"`

	// DetectedLanguage is set after the first successful language
	// identification and never changes afterwards.
	DetectedLanguage string `json:"detected_language,omitempty"`

	// ChannelState is the last telephony channel state reported by the
	// switch, stored verbatim.
	ChannelState string `json:"channel_state,omitempty"`

	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at"`
}
