package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestStoreHistory(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	for _, entry := range []*HistoryEntry{
		{Event: EventLogin, Metadata: map[string]interface{}{"login_id": "kim"}},
		{Event: EventRealtime, Scope: "board:3", Metadata: map[string]interface{}{"type": "comment_changed"}},
		{Event: EventSessionEnded, Scope: "notifications"},
	} {
		if err := s.AppendHistory(entry); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
		if entry.ID == "" {
			t.Fatalf("expected id to be assigned")
		}
	}

	history, err := s.ListHistory(2, "")
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(history) != 2 || history[0].Event != EventSessionEnded || history[1].Scope != "board:3" {
		t.Fatalf("unexpected history %+v", history)
	}
	if history[1].Metadata["type"] != "comment_changed" {
		t.Fatalf("metadata not round-tripped: %+v", history[1].Metadata)
	}

	logins, err := s.ListHistory(0, EventLogin)
	if err != nil {
		t.Fatalf("ListHistory(login): %v", err)
	}
	if len(logins) != 1 || logins[0].Metadata["login_id"] != "kim" {
		t.Fatalf("unexpected filtered history %+v", logins)
	}

	if err := s.AppendHistory(&HistoryEntry{}); err == nil {
		t.Fatalf("expected error for empty event")
	}
}

func TestStoreCursors(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	if _, err := s.GetCursor("board:1"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
	if err := s.SaveCursor(Cursor{Scope: "board:1", EventID: "e1", OccurredAt: "2026-03-01T09:00:00"}); err != nil {
		t.Fatalf("SaveCursor: %v", err)
	}
	if err := s.SaveCursor(Cursor{Scope: "board:1", EventID: "e2"}); err != nil {
		t.Fatalf("SaveCursor overwrite: %v", err)
	}
	c, err := s.GetCursor("board:1")
	if err != nil {
		t.Fatalf("GetCursor: %v", err)
	}
	if c.EventID != "e2" || c.OccurredAt != "" || c.UpdatedAt.IsZero() {
		t.Fatalf("unexpected cursor %+v", c)
	}
	if err := s.SaveCursor(Cursor{Scope: "board:1"}); err == nil {
		t.Fatalf("expected error for missing event id")
	}
}
