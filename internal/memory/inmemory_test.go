package memory

import (
	"context"
	"testing"
)

func TestInMemoryStoreSessionTurns(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	for i, content := range []string{"rules", "pick", "picked", "is it alive?"} {
		if err := s.SaveTurn(ctx, TurnRecord{SessionID: "s1", Position: i + 1, Role: "user", Content: content}); err != nil {
			t.Fatalf("SaveTurn() error = %v", err)
		}
	}
	if err := s.SaveTurn(ctx, TurnRecord{SessionID: "s2", Position: 1, Content: "other"}); err != nil {
		t.Fatalf("SaveTurn() error = %v", err)
	}

	all, err := s.SessionTurns(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("SessionTurns() error = %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("len = %d, want 4", len(all))
	}
	if all[0].ID == "" || all[0].CreatedAt.IsZero() {
		t.Fatalf("defaults not filled: %+v", all[0])
	}

	recent, err := s.SessionTurns(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("SessionTurns() error = %v", err)
	}
	if len(recent) != 2 || recent[0].Content != "picked" || recent[1].Content != "is it alive?" {
		t.Fatalf("recent = %+v", recent)
	}

	none, err := s.SessionTurns(ctx, "missing", 5)
	if err != nil || len(none) != 0 {
		t.Fatalf("SessionTurns(missing) = %v, %v", none, err)
	}
	if Mode(s) != "in-memory" {
		t.Fatalf("Mode() = %q", Mode(s))
	}
}

func TestInMemoryStoreDeleteSession(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"s1", "s2"} {
		if err := s.SaveTurn(ctx, TurnRecord{SessionID: id, Position: 1, Content: "pick"}); err != nil {
			t.Fatalf("SaveTurn() error = %v", err)
		}
	}

	var purger SessionPurger = s
	if err := purger.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if got, _ := s.SessionTurns(ctx, "s1", 0); len(got) != 0 {
		t.Fatalf("s1 turns after delete = %d, want 0", len(got))
	}
	if got, _ := s.SessionTurns(ctx, "s2", 0); len(got) != 1 {
		t.Fatalf("s2 turns = %d, want 1", len(got))
	}
}
