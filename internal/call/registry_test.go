package call

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/tesparr/dragoman/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := store.NewRedis(store.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewRegistry(s, 24*time.Hour), mr
}

func TestCreate_StoresInitiatedRecord(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	rec, err := reg.Create(ctx, "c1", "1001", "2002")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Status != StatusInitiated {
		t.Errorf("status = %q, want initiated", rec.Status)
	}

	got, err := reg.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CallerNumber != "1001" || got.Destination != "2002" {
		t.Errorf("record = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestActivate_CreatesActiveRecordAndIncrementsCounter(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	rec, err := reg.Activate(ctx, "c1", "1001", "chan-1")
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if rec.Status != StatusActive {
		t.Errorf("status = %q, want active", rec.Status)
	}
	if rec.ChannelID != "chan-1" {
		t.Errorf("channel id = %q, want chan-1", rec.ChannelID)
	}

	n, err := reg.ActiveCalls(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ActiveCalls = (%d, %v), want (1, nil)", n, err)
	}
}

func TestActivate_ExistingInitiatedRecordTransitions(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Create(ctx, "c1", "1001", "2002"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := reg.Activate(ctx, "c1", "1001", "chan-1"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	got, err := reg.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != StatusActive {
		t.Errorf("status = %q, want active", got.Status)
	}
	// Destination from the initiate path must survive activation.
	if got.Destination != "2002" {
		t.Errorf("destination = %q, want 2002", got.Destination)
	}
}

func TestActivate_RepeatedDoesNotDoubleIncrement(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := reg.Activate(ctx, "c1", "1001", "chan-1"); err != nil {
			t.Fatalf("Activate #%d: %v", i, err)
		}
	}
	n, _ := reg.ActiveCalls(ctx)
	if n != 1 {
		t.Errorf("ActiveCalls = %d, want 1", n)
	}
}

func TestSetStatus_ForwardOnly(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Activate(ctx, "c1", "1001", "chan-1"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := reg.SetStatus(ctx, "c1", StatusTerminated); err != nil {
		t.Fatalf("SetStatus(terminated): %v", err)
	}

	err := reg.SetStatus(ctx, "c1", StatusActive)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("backward transition err = %v, want ErrInvalidTransition", err)
	}
	err = reg.SetStatus(ctx, "c1", StatusInitiated)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("backward transition err = %v, want ErrInvalidTransition", err)
	}
}

func TestSetStatus_TerminateDecrementsOnce(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Activate(ctx, "c1", "1001", "chan-1"); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	// Two terminal transitions for the same call: the counter moves once.
	if err := reg.SetStatus(ctx, "c1", StatusTerminated); err != nil {
		t.Fatalf("first terminate: %v", err)
	}
	if err := reg.SetStatus(ctx, "c1", StatusTerminated); err != nil {
		t.Fatalf("second terminate: %v", err)
	}

	active, _ := reg.ActiveCalls(ctx)
	if active != 0 {
		t.Errorf("ActiveCalls = %d, want 0", active)
	}
	total, _ := reg.TotalProcessed(ctx)
	if total != 1 {
		t.Errorf("TotalProcessed = %d, want 1", total)
	}
}

func TestSetStatus_TerminateFromInitiatedSkipsDecrement(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Create(ctx, "c1", "1001", "2002"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := reg.SetStatus(ctx, "c1", StatusTerminated); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	// The call never went active, so the gauge must not go negative.
	active, _ := reg.ActiveCalls(ctx)
	if active != 0 {
		t.Errorf("ActiveCalls = %d, want 0", active)
	}
	total, _ := reg.TotalProcessed(ctx)
	if total != 1 {
		t.Errorf("TotalProcessed = %d, want 1", total)
	}
}

func TestSetLanguage_PersistsDetectedLanguage(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Activate(ctx, "c1", "1001", "chan-1"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := reg.SetLanguage(ctx, "c1", "tamil"); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}

	got, _ := reg.Get(ctx, "c1")
	if got.DetectedLanguage != "tamil" {
		t.Errorf("DetectedLanguage = %q, want tamil", got.DetectedLanguage)
	}
}

func TestSetChannelState_StoredVerbatim(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Activate(ctx, "c1", "1001", "chan-1"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := reg.SetChannelState(ctx, "c1", "Up"); err != nil {
		t.Fatalf("SetChannelState: %v", err)
	}
	got, _ := reg.Get(ctx, "c1")
	if got.ChannelState != "Up" {
		t.Errorf("ChannelState = %q, want Up", got.ChannelState)
	}
}

func TestAppendDTMF_OrderedLog(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	for _, d := range []string{"1", "4", "#"} {
		if err := reg.AppendDTMF(ctx, "c1", d); err != nil {
			t.Fatalf("AppendDTMF(%q): %v", d, err)
		}
	}
	digits, err := reg.DTMF(ctx, "c1")
	if err != nil {
		t.Fatalf("DTMF: %v", err)
	}
	want := []string{"1", "4", "#"}
	for i := range want {
		if digits[i] != want[i] {
			t.Errorf("digits[%d] = %q, want %q", i, digits[i], want[i])
		}
	}
}

func TestGet_UnknownCall(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestWrite_RefreshesTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := store.NewRedis(store.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer s.Close()
	reg := NewRegistry(s, time.Hour)
	ctx := context.Background()

	if _, err := reg.Activate(ctx, "c1", "1001", "chan-1"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	mr.FastForward(45 * time.Minute)

	// Write-through refresh: the mutation below must reset the clock.
	if err := reg.SetChannelState(ctx, "c1", "Up"); err != nil {
		t.Fatalf("SetChannelState: %v", err)
	}
	mr.FastForward(45 * time.Minute)

	if _, err := reg.Get(ctx, "c1"); err != nil {
		t.Fatalf("record expired despite refresh: %v", err)
	}
}
