package history

import (
	"context"
	"testing"

	"github.com/diogo/llamigo/internal/models"
)

func TestRecorder_CreatesConversationLazily(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		rec := NewRecorder(store, "tiny.gguf")
		if rec.ConversationID() != "" {
			t.Fatal("conversation should not exist before the first Record")
		}
		list, _ := store.ListConversations()
		if len(list) != 0 {
			t.Fatalf("expected no conversations, got %d", len(list))
		}

		err := rec.Record(context.Background(),
			models.Message{Role: models.RoleUser, Content: "2+2?", Status: models.StatusComplete},
			models.Message{Role: models.RoleAssistant, Content: "4", Status: models.StatusComplete},
		)
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}

		conv, err := store.GetConversation(rec.ConversationID())
		if err != nil {
			t.Fatalf("GetConversation failed: %v", err)
		}
		if conv.Model != "tiny.gguf" || conv.Title != "2+2?" {
			t.Errorf("conv = %s %q", conv.Model, conv.Title)
		}
		if len(conv.Messages) != 2 || conv.Messages[1].Content != "4" {
			t.Errorf("messages = %+v", conv.Messages)
		}

		_ = rec.Record(context.Background(), models.Message{Role: models.RoleUser, Content: "again"})
		list, _ = store.ListConversations()
		if len(list) != 1 {
			t.Errorf("expected a single conversation, got %d", len(list))
		}
	})
}

func TestResumeRecorder(t *testing.T) {
	store, _ := NewFileStore(t.TempDir())
	conv, _ := store.CreateConversation("m")
	_ = store.AddMessage(conv.ID, Message{Role: "user", Content: "earlier"})

	rec := ResumeRecorder(store, conv)
	if rec.ConversationID() != conv.ID {
		t.Fatalf("ConversationID() = %s, want %s", rec.ConversationID(), conv.ID)
	}
	if err := rec.Record(context.Background(), models.Message{Role: models.RoleUser, Content: "later"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, _ := store.GetConversation(conv.ID)
	if len(got.Messages) != 2 || got.Messages[1].Content != "later" {
		t.Errorf("messages = %+v", got.Messages)
	}
	if got.Title != "earlier" {
		t.Errorf("Title = %q, want earlier", got.Title)
	}
}

func TestRecorder_CancelledContext(t *testing.T) {
	store, _ := NewFileStore(t.TempDir())
	rec := NewRecorder(store, "m")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rec.Record(ctx, models.Message{Role: models.RoleUser, Content: "x"}); err == nil {
		t.Error("expected context error")
	}
}
