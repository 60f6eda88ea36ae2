package batcher

import (
	"testing"
	"time"

	"tierwatch/internal/logging"
)

func newTestBatcher(opts Options) *Batcher {
	b := New(opts, logging.NewNop())
	b.sleep = func(time.Duration) {}
	b.stat = func(string) (int64, bool) { return 100, true }
	return b
}

func TestRecordCoalescesPerPath(t *testing.T) {
	b := newTestBatcher(Options{FlushInterval: time.Minute})

	b.Record("/hub/a.pdf")
	b.Record("/hub/a.pdf")
	b.Record("/hub/a.pdf")

	if got := b.PendingCount(); got != 1 {
		t.Fatalf("PendingCount = %d, want 1", got)
	}
	if got := b.PendingEvents(); got != 3 {
		t.Fatalf("PendingEvents = %d, want 3", got)
	}
}

func TestDueOnInterval(t *testing.T) {
	b := newTestBatcher(Options{FlushInterval: 15 * time.Second})
	b.lastFlush = time.Now().Add(-20 * time.Second)

	for i := 0; i < 10; i++ {
		b.Record(string(rune('a'+i)) + ".pdf")
	}
	if !b.Due(time.Now()) {
		t.Fatal("expected flush due after interval elapsed")
	}
}

func TestLowTrafficFastPath(t *testing.T) {
	b := newTestBatcher(Options{FlushInterval: time.Hour, LowTrafficLimit: 5})

	if b.Due(time.Now()) {
		t.Fatal("empty batcher should never be due")
	}

	b.Record("/hub/one.pdf")
	if !b.Due(time.Now()) {
		t.Fatal("small batch should flush immediately via the fast path")
	}

	for i := 0; i < 10; i++ {
		b.Record(string(rune('a'+i)) + ".pdf")
	}
	if b.Due(time.Now()) {
		t.Fatal("large batch should wait out the interval")
	}
}

func TestLowTrafficFastPathBoundary(t *testing.T) {
	b := newTestBatcher(Options{FlushInterval: time.Hour, LowTrafficLimit: 5})

	for i := 0; i < 4; i++ {
		b.Record(string(rune('a'+i)) + ".pdf")
	}
	if !b.Due(time.Now()) {
		t.Fatal("four pending paths should take the fast path")
	}

	// The limit itself is outside the fast path: five distinct paths wait
	// out the interval.
	b.Record("/hub/e.pdf")
	if b.Due(time.Now()) {
		t.Fatal("five pending paths should wait out the interval")
	}
}

func TestFlushPreservesDiscoveryOrder(t *testing.T) {
	b := newTestBatcher(Options{FlushInterval: time.Minute})

	b.Record("/hub/newest.pdf")
	b.Record("/hub/older.pdf")
	b.Record("/hub/newest.pdf") // repeat event keeps original position

	got := b.Flush(time.Now())
	want := []string{"/hub/newest.pdf", "/hub/older.pdf"}
	if len(got) != len(want) {
		t.Fatalf("Flush returned %d paths, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Flush[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestFlushDropsVanishedPaths(t *testing.T) {
	b := newTestBatcher(Options{FlushInterval: time.Minute})
	b.stat = func(path string) (int64, bool) {
		return 0, path != "/hub/gone.pdf"
	}

	b.Record("/hub/gone.pdf")
	b.Record("/hub/here.pdf")

	got := b.Flush(time.Now())
	if len(got) != 1 || got[0] != "/hub/here.pdf" {
		t.Fatalf("Flush = %v, want only /hub/here.pdf", got)
	}
	if b.PendingCount() != 0 {
		t.Fatal("vanished path should not stay pending")
	}
}

func TestFlushDropsGrowingFiles(t *testing.T) {
	b := newTestBatcher(Options{FlushInterval: time.Minute, LowTrafficLimit: 5})
	size := int64(100)
	b.stat = func(string) (int64, bool) {
		size += 50 // file grows between the two stats
		return size, true
	}

	b.Record("/hub/copying.pdf")

	if got := b.Flush(time.Now()); len(got) != 0 {
		t.Fatalf("growing file released: %v", got)
	}
	// The path leaves the batch entirely; keeping it pending would make the
	// low-traffic path re-probe the copy on every poll tick.
	if b.PendingCount() != 0 {
		t.Fatal("growing file should be dropped, not requeued")
	}
	if b.Due(time.Now().Add(time.Second)) {
		t.Fatal("nothing should be due after the growing file is dropped")
	}
}

func TestDirectoriesAlwaysSettle(t *testing.T) {
	b := newTestBatcher(Options{FlushInterval: time.Minute})
	b.stat = func(string) (int64, bool) { return -1, true }

	b.Record("/hub/folder")
	if got := b.Flush(time.Now()); len(got) != 1 {
		t.Fatalf("directory not released: %v", got)
	}
}
