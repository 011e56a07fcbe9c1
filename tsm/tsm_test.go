package tsm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNextInvokeIDWraps(t *testing.T) {
	m := NewManager(time.Second, 0, 0)
	seen := make(map[uint8]bool)
	for i := 0; i < 256; i++ {
		id := m.NextInvokeID("peer-a")
		seen[id] = true
	}
	if len(seen) != 256 {
		t.Fatalf("expected 256 distinct ids, got %d", len(seen))
	}
	if m.NextInvokeID("peer-a") != 0 {
		t.Fatal("expected wraparound to 0")
	}
}

func TestBeginDuplicateRejected(t *testing.T) {
	m := NewManager(time.Second, 0, 0)
	if _, err := m.Begin("peer-a", 5); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Begin("peer-a", 5); !errors.Is(err, ErrResourcesBusy) {
		t.Fatalf("expected ErrResourcesBusy, got %v", err)
	}
	m.End("peer-a", 5)
	if _, err := m.Begin("peer-a", 5); err != nil {
		t.Fatalf("expected reuse to succeed after End, got %v", err)
	}
}

func TestWaitCompletesOnResponse(t *testing.T) {
	m := NewManager(time.Second, 0, 0)
	tx, err := m.Begin("peer-a", 1)
	if err != nil {
		t.Fatal(err)
	}
	go m.Complete("peer-a", 1, []byte{0x01, 0x02}, nil)
	data, err := m.Wait(context.Background(), tx)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 2 {
		t.Fatalf("got %v", data)
	}
}

func TestWaitTimesOut(t *testing.T) {
	m := NewManager(10*time.Millisecond, 0, 0)
	tx, err := m.Begin("peer-a", 1)
	if err != nil {
		t.Fatal(err)
	}
	_, err = m.Wait(context.Background(), tx)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	m := NewManager(time.Second, 0, 0)
	tx, err := m.Begin("peer-a", 1)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Wait(ctx, tx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAppendSegmentEnforcesCap(t *testing.T) {
	m := NewManager(time.Second, 0, 0)
	tx, err := m.Begin("peer-a", 1)
	if err != nil {
		t.Fatal(err)
	}
	big := make([]byte, MaxReassemblySize)
	if err := tx.AppendSegment(big); err != nil {
		t.Fatal(err)
	}
	if err := tx.AppendSegment([]byte{0x01}); !errors.Is(err, ErrReassemblyTooLarge) {
		t.Fatalf("expected ErrReassemblyTooLarge, got %v", err)
	}
}

func TestReassembledConcatenatesInOrder(t *testing.T) {
	m := NewManager(time.Second, 0, 0)
	tx, _ := m.Begin("peer-a", 1)
	tx.AppendSegment([]byte{0x01, 0x02})
	tx.AppendSegment([]byte{0x03})
	got := tx.Reassembled()
	want := []byte{0x01, 0x02, 0x03}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestSegmentWindowSplitsAndTracksFlight(t *testing.T) {
	payload := make([]byte, 250)
	w := NewSegmentWindow(payload, 100, 3)
	if w.TotalSegments() != 3 {
		t.Fatalf("got %d segments", w.TotalSegments())
	}
	seg, more := w.Segment(0)
	if len(seg) != 100 || !more {
		t.Fatalf("got len=%d more=%v", len(seg), more)
	}
	_, more = w.Segment(2)
	if more {
		t.Fatal("expected last segment to report no more")
	}
	w.Advance()
	w.Advance()
	w.Advance()
	if w.CanSend() {
		t.Fatal("expected window exhausted after 3 in-flight segments")
	}
	w.Ack(2)
	if !w.CanSend() {
		t.Fatal("expected window to reopen after ack")
	}
}
