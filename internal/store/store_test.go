package store

import (
	"context"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndRecent(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	entries := []Entry{
		{Query: "first question", Tool: "Local", Answer: "first answer", Duration: 1200 * time.Millisecond},
		{Query: "second question", Tool: "Web", Answer: "second answer", Duration: 800 * time.Millisecond},
		{Query: "third question", Tool: "Both", Answer: "third answer", Duration: 2 * time.Second},
	}
	for _, e := range entries {
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d entries, want 2", len(got))
	}
	// Oldest-first within the tail: second then third.
	if got[0].Query != "second question" || got[1].Query != "third question" {
		t.Errorf("Recent() order wrong: %q then %q", got[0].Query, got[1].Query)
	}
	if got[1].Duration != 2*time.Second {
		t.Errorf("duration round-trip = %v, want 2s", got[1].Duration)
	}
}

func TestCount(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Count() on empty store = %d, want 0", n)
	}

	if err := s.Append(ctx, Entry{Query: "q", Tool: "Local", Answer: "a"}); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	n, err = s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestAppendRejectsUnknownTool(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	if err := s.Append(context.Background(), Entry{Query: "q", Tool: "Database", Answer: "a"}); err == nil {
		t.Error("Append() accepted a tool outside the CHECK constraint")
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() failed: %v", err)
	}
}
