package call

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tesparr/dragoman/internal/store"
)

// ErrNotFound is returned when no record exists for a call id.
var ErrNotFound = errors.New("call: record not found")

// ErrInvalidTransition is returned when a status change would move the
// lifecycle backwards.
var ErrInvalidTransition = errors.New("call: invalid status transition")

const (
	// keyActiveCalls is the store key of the live-call gauge counter.
	keyActiveCalls = "active_calls_count"

	// keyTotalProcessed is the store key of the lifetime call counter.
	keyTotalProcessed = "total_calls_processed"
)

// Registry persists call records and enforces their lifecycle invariants.
// All methods are safe for concurrent use; cross-call consistency relies on
// the store's atomic counter operations, not in-process locking.
type Registry struct {
	store store.Store
	ttl   time.Duration
}

// NewRegistry creates a Registry writing through to s. Every record write
// re-applies ttl, so a record expires ttl after its last mutation.
func NewRegistry(s store.Store, ttl time.Duration) *Registry {
	return &Registry{store: s, ttl: ttl}
}

// recordKey returns the store key of a call record blob.
func recordKey(callID string) string {
	return "call:" + callID
}

// dtmfKey returns the store key of a call's DTMF digit list.
func dtmfKey(callID string) string {
	return "call:" + callID + ":dtmf"
}

// Create stores a fresh record with status initiated. An existing record for
// the same call id is overwritten.
func (r *Registry) Create(ctx context.Context, callID, caller, destination string) (*Record, error) {
	rec := &Record{
		CallID:       callID,
		CallerNumber: caller,
		Destination:  destination,
		Status:       StatusInitiated,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.put(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Activate records call admission from the switch: the record is created (or
// overwritten) with status active, the caller number, and the channel id.
// The active-call counter is incremented exactly once per entry into the
// active state — a record that is already active is updated without touching
// the counter.
func (r *Registry) Activate(ctx context.Context, callID, caller, channelID string) (*Record, error) {
	rec, err := r.Get(ctx, callID)
	switch {
	case errors.Is(err, ErrNotFound):
		rec = &Record{CallID: callID, CreatedAt: time.Now().UTC()}
	case err != nil:
		return nil, err
	}

	wasActive := rec.Status == StatusActive
	rec.Status = StatusActive
	rec.CallerNumber = caller
	rec.ChannelID = channelID

	if err := r.put(ctx, rec); err != nil {
		return nil, err
	}
	if !wasActive {
		if _, err := r.store.Incr(ctx, keyActiveCalls); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// AttachChannel sets the channel id on an existing record.
func (r *Registry) AttachChannel(ctx context.Context, callID, channelID string) error {
	return r.update(ctx, callID, func(rec *Record) error {
		rec.ChannelID = channelID
		return nil
	})
}

// SetStatus transitions a call to status, enforcing the forward-only order
// initiated → active → terminated. Re-asserting the current status is a
// no-op. Counter effects:
//
//   - entry into active increments active_calls_count
//   - active → terminated decrements active_calls_count
//   - entry into terminated increments total_calls_processed
//
// Each effect fires at most once per call, so repeated terminal events
// cannot double-decrement.
func (r *Registry) SetStatus(ctx context.Context, callID string, status Status) error {
	if !status.IsValid() {
		return fmt.Errorf("call: unknown status %q", status)
	}
	var prev Status
	err := r.update(ctx, callID, func(rec *Record) error {
		prev = rec.Status
		if status.rank() < prev.rank() {
			return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, prev, status)
		}
		rec.Status = status
		return nil
	})
	if err != nil {
		return err
	}
	if status == prev {
		return nil
	}

	switch status {
	case StatusActive:
		if _, err := r.store.Incr(ctx, keyActiveCalls); err != nil {
			return err
		}
	case StatusTerminated:
		if prev == StatusActive {
			if _, err := r.store.Decr(ctx, keyActiveCalls); err != nil {
				return err
			}
		}
		if _, err := r.store.Incr(ctx, keyTotalProcessed); err != nil {
			return err
		}
	}
	return nil
}

// SetLanguage persists the detected source language on the record.
func (r *Registry) SetLanguage(ctx context.Context, callID, lang string) error {
	return r.update(ctx, callID, func(rec *Record) error {
		rec.DetectedLanguage = lang
		return nil
	})
}

// SetChannelState stores the switch-reported channel state verbatim.
func (r *Registry) SetChannelState(ctx context.Context, callID, state string) error {
	return r.update(ctx, callID, func(rec *Record) error {
		rec.ChannelState = state
		return nil
	})
}

// AppendDTMF appends a received digit to the call's DTMF log. The log
// currently has no consumer; it is reserved for future language-override
// input.
func (r *Registry) AppendDTMF(ctx context.Context, callID, digit string) error {
	return r.store.Append(ctx, dtmfKey(callID), digit, r.ttl)
}

// DTMF returns the digits received so far, in press order.
func (r *Registry) DTMF(ctx context.Context, callID string) ([]string, error) {
	return r.store.Range(ctx, dtmfKey(callID))
}

// Get returns the record for callID, or ErrNotFound.
func (r *Registry) Get(ctx context.Context, callID string) (*Record, error) {
	raw, err := r.store.Get(ctx, recordKey(callID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, callID)
	}
	if err != nil {
		return nil, err
	}
	rec := &Record{}
	if err := json.Unmarshal([]byte(raw), rec); err != nil {
		return nil, fmt.Errorf("call: decode record %s: %w", callID, err)
	}
	return rec, nil
}

// ActiveCalls returns the current value of the live-call counter.
func (r *Registry) ActiveCalls(ctx context.Context) (int64, error) {
	return r.counter(ctx, keyActiveCalls)
}

// TotalProcessed returns the lifetime processed-call counter.
func (r *Registry) TotalProcessed(ctx context.Context) (int64, error) {
	return r.counter(ctx, keyTotalProcessed)
}

// put serialises rec and writes it through with the registry TTL.
func (r *Registry) put(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("call: encode record %s: %w", rec.CallID, err)
	}
	return r.store.Set(ctx, recordKey(rec.CallID), string(data), r.ttl)
}

// update applies fn to the stored record and writes the result back,
// refreshing the TTL.
func (r *Registry) update(ctx context.Context, callID string, fn func(*Record) error) error {
	rec, err := r.Get(ctx, callID)
	if err != nil {
		return err
	}
	if err := fn(rec); err != nil {
		return err
	}
	return r.put(ctx, rec)
}

// counter reads an integer counter key, treating a missing key as zero.
func (r *Registry) counter(ctx context.Context, key string) (int64, error) {
	raw, err := r.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var n int64
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil {
		return 0, fmt.Errorf("call: counter %q holds non-integer %q", key, raw)
	}
	return n, nil
}
