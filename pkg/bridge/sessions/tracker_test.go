package sessions

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTracker_RegisterUnregister_CountAndWait(t *testing.T) {
	tr := NewTracker()
	if tr.Count() != 0 {
		t.Fatalf("initial count=%d, want 0", tr.Count())
	}

	u1 := tr.Register("MZ1", Handle{})
	u2 := tr.Register("MZ2", Handle{})
	if tr.Count() != 2 {
		t.Fatalf("count=%d, want 2", tr.Count())
	}

	u1()
	u1() // idempotent
	if tr.Count() != 1 {
		t.Fatalf("count=%d, want 1", tr.Count())
	}

	u2()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if ok := tr.Wait(ctx); !ok {
		t.Fatalf("expected Wait to return true")
	}
	if tr.Count() != 0 {
		t.Fatalf("count=%d, want 0", tr.Count())
	}
}

func TestTracker_CancelAll_CallsCancel(t *testing.T) {
	tr := NewTracker()
	var c1, c2 atomic.Int64
	tr.Register("MZ1", Handle{Cancel: func() { c1.Add(1) }})
	tr.Register("MZ2", Handle{Cancel: func() { c2.Add(1) }})

	if n := tr.CancelAll(); n != 2 {
		t.Fatalf("canceled=%d, want 2", n)
	}
	if c1.Load() != 1 || c2.Load() != 1 {
		t.Fatalf("cancel calls=%d/%d, want 1/1", c1.Load(), c2.Load())
	}
}

func TestTracker_ReRegisterEvictsOld(t *testing.T) {
	tr := NewTracker()
	u1 := tr.Register("MZ1", Handle{})
	_ = tr.Register("MZ1", Handle{})
	if tr.Count() != 1 {
		t.Fatalf("count=%d, want 1 after re-register", tr.Count())
	}

	// The evicted entry's unregister must not remove the replacement.
	u1()
	if tr.Count() != 1 {
		t.Fatalf("count=%d, want 1 after stale unregister", tr.Count())
	}
}

func TestTracker_WaitTimesOut(t *testing.T) {
	tr := NewTracker()
	tr.Register("MZ1", Handle{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if ok := tr.Wait(ctx); ok {
		t.Fatal("Wait returned true with a session still registered")
	}
}

func TestTracker_NilSafe(t *testing.T) {
	var tr *Tracker
	u := tr.Register("MZ1", Handle{})
	u()
	if tr.Count() != 0 || tr.CancelAll() != 0 || !tr.Wait(context.Background()) {
		t.Fatal("nil tracker methods misbehaved")
	}
}
