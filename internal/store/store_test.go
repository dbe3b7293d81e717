package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/havenlog/havenlog/export"
	"github.com/havenlog/havenlog/internal/auth"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEntryRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	owner, err := s.CreateUser(ctx, "sam", "tok-1", "plus")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	occurred := time.Date(2026, 3, 14, 21, 30, 0, 0, time.UTC)
	id, err := s.CreateEntry(ctx, owner, export.EntryView{
		Title:        "Shouting match",
		Description:  "He blocked the door.",
		OccurredAt:   occurred,
		Location:     "Kitchen",
		SafetyRating: 2,
		MoodRating:   1,
		Tags:         []string{"isolation", "intimidation"},
		StateBefore:  "calm",
		StateAfter:   "shaking",
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}

	view, err := s.Entry(ctx, owner, id)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if view.Title != "Shouting match" || view.Location != "Kitchen" {
		t.Fatalf("round trip mismatch: %+v", view)
	}
	if len(view.Tags) != 2 || view.Tags[0] != "isolation" {
		t.Fatalf("tags mismatch: %v", view.Tags)
	}
	if !view.OccurredAt.Equal(occurred) {
		t.Fatalf("occurred_at mismatch: %v", view.OccurredAt)
	}
}

func TestEntryOwnerScoped(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	owner, _ := s.CreateUser(ctx, "sam", "tok-1", "plus")
	other, _ := s.CreateUser(ctx, "kim", "tok-2", "free")
	id, err := s.CreateEntry(ctx, owner, export.EntryView{Title: "private", OccurredAt: time.Now()})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}

	if _, err := s.Entry(ctx, other, id); !errors.Is(err, export.ErrNotFound) {
		t.Fatalf("foreign owner should see not-found, got %v", err)
	}
	if _, err := s.Entry(ctx, owner, "nonexistent"); !errors.Is(err, export.ErrNotFound) {
		t.Fatalf("missing entry should be not-found, got %v", err)
	}
}

func TestEvidenceOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	owner, _ := s.CreateUser(ctx, "sam", "tok-1", "plus")
	id, _ := s.CreateEntry(ctx, owner, export.EntryView{Title: "e", OccurredAt: time.Now()})

	for _, name := range []string{"a.png", "b.m4a", "c.txt"} {
		if _, err := s.AddEvidence(ctx, id, export.Evidence{
			FileName: name, MIMEType: "application/octet-stream", Ref: "ref-" + name,
		}); err != nil {
			t.Fatalf("add evidence: %v", err)
		}
	}

	evs, err := s.EvidenceByEntry(ctx, id)
	if err != nil {
		t.Fatalf("list evidence: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("want 3 evidence rows, got %d", len(evs))
	}
	for _, ev := range evs {
		if ev.UploadedAt.IsZero() {
			t.Fatalf("uploaded_at not recorded")
		}
	}
}

func TestIdentityByToken(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "sam", "tok-1", "plus"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	ident, err := s.IdentityByToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if ident.Name != "sam" || ident.Tier != "plus" {
		t.Fatalf("wrong identity: %+v", ident)
	}
	if _, err := s.IdentityByToken(ctx, "wrong"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestListEntriesNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	owner, _ := s.CreateUser(ctx, "sam", "tok-1", "plus")

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	s.CreateEntry(ctx, owner, export.EntryView{Title: "old", OccurredAt: old})
	s.CreateEntry(ctx, owner, export.EntryView{Title: "recent", OccurredAt: recent})

	views, err := s.ListEntries(ctx, owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 2 || views[0].Title != "recent" {
		t.Fatalf("unexpected order: %+v", views)
	}
}
