package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

// newTestStore spins up an in-process Redis and returns a connected store.
func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedis(RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGet_MissingKeyReturnsErrNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "absent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSetGet_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "call:abc", `{"status":"active"}`, time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "call:abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != `{"status":"active"}` {
		t.Errorf("Get = %q", got)
	}
}

func TestIncrDecr_AtomicCounter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.Incr(ctx, "active_calls_count")
	if err != nil || n != 1 {
		t.Fatalf("Incr = (%d, %v), want (1, nil)", n, err)
	}
	n, err = s.Incr(ctx, "active_calls_count")
	if err != nil || n != 2 {
		t.Fatalf("second Incr = (%d, %v), want (2, nil)", n, err)
	}
	n, err = s.Decr(ctx, "active_calls_count")
	if err != nil || n != 1 {
		t.Fatalf("Decr = (%d, %v), want (1, nil)", n, err)
	}
}

func TestAppendRange_PreservesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, v := range []string{"first", "second", "third"} {
		if err := s.Append(ctx, "call:abc:dtmf", v, time.Hour); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	vals, err := s.Range(ctx, "call:abc:dtmf")
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(vals) != len(want) {
		t.Fatalf("len = %d, want %d", len(vals), len(want))
	}
	for i := range want {
		if vals[i] != want[i] {
			t.Errorf("vals[%d] = %q, want %q", i, vals[i], want[i])
		}
	}
}

func TestRange_MissingKeyYieldsEmpty(t *testing.T) {
	s := newTestStore(t)
	vals, err := s.Range(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(vals) != 0 {
		t.Errorf("len = %d, want 0", len(vals))
	}
}

func TestSet_TTLExpiresKey(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedis(RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "call:ttl", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := s.Get(ctx, "call:ttl"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err after expiry = %v, want ErrNotFound", err)
	}
}

func TestAppend_RefreshesTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedis(RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.Append(ctx, "call:x:transcript", "a", time.Minute); err != nil {
		t.Fatalf("Append: %v", err)
	}
	mr.FastForward(30 * time.Second)
	if err := s.Append(ctx, "call:x:transcript", "b", time.Minute); err != nil {
		t.Fatalf("Append: %v", err)
	}
	// The second append pushed the expiry out; the list must survive the
	// original deadline.
	mr.FastForward(45 * time.Second)

	vals, err := s.Range(ctx, "call:x:transcript")
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(vals) != 2 {
		t.Errorf("len = %d, want 2", len(vals))
	}
}
