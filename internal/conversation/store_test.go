package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/ziadkadry99/cube-pilot/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening in-memory db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestSaveAndLoadSession(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	history := []Message{
		{Role: "user", Content: "revenue last month", Timestamp: time.Now()},
		{Role: "assistant", Content: "I found data for your query: revenue", Timestamp: time.Now()},
	}
	queryContext := map[string]any{"time_specification": "last month"}

	if err := store.SaveSession(ctx, "s1", history, queryContext); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	rec, err := store.LoadSession(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if len(rec.History) != 2 {
		t.Errorf("expected 2 history messages, got %d", len(rec.History))
	}
	if rec.QueryContext["time_specification"] != "last month" {
		t.Errorf("unexpected query context: %v", rec.QueryContext)
	}
}

func TestSaveSessionUpdates(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.SaveSession(ctx, "s1", []Message{{Role: "user", Content: "first"}}, nil); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := store.SaveSession(ctx, "s1", []Message{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "second"},
	}, nil); err != nil {
		t.Fatalf("second SaveSession failed: %v", err)
	}

	rec, err := store.LoadSession(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if len(rec.History) != 2 {
		t.Errorf("expected updated history with 2 messages, got %d", len(rec.History))
	}
}

func TestLoadSessionUnknown(t *testing.T) {
	store := setupStore(t)
	if _, err := store.LoadSession(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown session")
	}
}

func TestEnsureSessionPreservesState(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.SaveSession(ctx, "s1", []Message{{Role: "user", Content: "hello"}}, nil); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := store.EnsureSession(ctx, "s1"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}

	rec, err := store.LoadSession(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if len(rec.History) != 1 {
		t.Errorf("EnsureSession clobbered existing history: %v", rec.History)
	}
}

func TestListSessions(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.SaveSession(ctx, id, nil, nil); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}
	}

	ids, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("expected 3 sessions, got %d", len(ids))
	}
}

func TestMessagesAndDelete(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.EnsureSession(ctx, "s1"); err != nil {
		t.Fatalf("EnsureSession failed: %v", err)
	}
	if err := store.AddMessage(ctx, "s1", "user", "revenue by venue", ""); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}
	if err := store.AddMessage(ctx, "s1", "assistant", "here are the results", "data_result"); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}

	msgs, err := store.GetMessages(ctx, "s1")
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[1].ResponseType != "data_result" {
		t.Errorf("unexpected response type: %q", msgs[1].ResponseType)
	}

	if err := store.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	msgs, err = store.GetMessages(ctx, "s1")
	if err != nil {
		t.Fatalf("GetMessages after delete failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected messages to be deleted with the session, got %d", len(msgs))
	}
}
