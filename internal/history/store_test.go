package history

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/diogo/llamigo/internal/models"
)

type backend struct {
	name string
	open func(t *testing.T) Store
}

func backends() []backend {
	return []backend{
		{"file", func(t *testing.T) Store {
			s, err := NewFileStore(t.TempDir())
			if err != nil {
				t.Fatalf("NewFileStore failed: %v", err)
			}
			return s
		}},
		{"badger", func(t *testing.T) Store {
			s, err := NewBadgerStore(BadgerOptions{InMemory: true})
			if err != nil {
				t.Fatalf("NewBadgerStore failed: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		}},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, store Store)) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			fn(t, b.open(t))
		})
	}
}

func TestNewFileStore(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewFileStore(tmpDir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	historyDir := filepath.Join(tmpDir, "history")
	if store.Dir() != historyDir {
		t.Errorf("Dir() = %s, want %s", store.Dir(), historyDir)
	}
	if _, err := os.Stat(historyDir); os.IsNotExist(err) {
		t.Error("history directory was not created")
	}
}

func TestNewBadgerStore_RequiresDir(t *testing.T) {
	if _, err := NewBadgerStore(BadgerOptions{}); err == nil {
		t.Error("expected error without Dir")
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"", false},
		{BackendFile, false},
		{BackendBadger, false},
		{"sqlite", true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			store, err := Open(tt.backend, t.TempDir(), nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open(%q) error = %v, wantErr %v", tt.backend, err, tt.wantErr)
			}
			if store != nil {
				store.Close()
			}
		})
	}
}

func TestStore_CreateConversation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		conv, err := store.CreateConversation("tiny.gguf")
		if err != nil {
			t.Fatalf("CreateConversation failed: %v", err)
		}

		if !strings.HasPrefix(conv.ID, "conv-") {
			t.Errorf("ID = %s, want conv- prefix", conv.ID)
		}
		if conv.Model != "tiny.gguf" {
			t.Errorf("Model = %s, want tiny.gguf", conv.Model)
		}
		if conv.CreatedAt.IsZero() {
			t.Error("CreatedAt is zero")
		}
		if len(conv.Messages) != 0 {
			t.Errorf("expected 0 messages, got %d", len(conv.Messages))
		}

		got, err := store.GetConversation(conv.ID)
		if err != nil {
			t.Fatalf("GetConversation failed: %v", err)
		}
		if got.ID != conv.ID || got.Model != conv.Model || got.Title != conv.Title {
			t.Errorf("GetConversation = %+v, want %+v", got, conv)
		}
	})
}

func TestStore_GetConversation_NotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		_, err := store.GetConversation("conv-missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStore_AddMessage(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		conv, _ := store.CreateConversation("m")

		if err := store.AddMessage(conv.ID, Message{Role: "user", Content: "Hello"}); err != nil {
			t.Fatalf("AddMessage failed: %v", err)
		}
		if err := store.AddMessage(conv.ID, Message{Role: "assistant", Content: "Hi there", Status: "failed"}); err != nil {
			t.Fatalf("AddMessage failed: %v", err)
		}

		got, _ := store.GetConversation(conv.ID)
		if len(got.Messages) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(got.Messages))
		}
		if got.Messages[0].Role != "user" || got.Messages[0].Content != "Hello" {
			t.Errorf("message 0 = %+v", got.Messages[0])
		}
		if got.Messages[1].Status != "failed" {
			t.Errorf("message 1 status = %q, want failed", got.Messages[1].Status)
		}
		if got.Messages[0].Timestamp.IsZero() {
			t.Error("Timestamp should be filled in")
		}
		if got.Title != "Hello" {
			t.Errorf("Title = %q, want Hello", got.Title)
		}
	})
}

func TestStore_AddMessage_NotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		err := store.AddMessage("conv-missing", Message{Role: "user", Content: "x"})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStore_TitleFromFirstUserMessage(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		conv, _ := store.CreateConversation("m")

		_ = store.AddMessage(conv.ID, Message{Role: "assistant", Content: "Loaded m"})
		_ = store.AddMessage(conv.ID, Message{Role: "user", Content: "first question"})
		_ = store.AddMessage(conv.ID, Message{Role: "user", Content: "second question"})

		got, _ := store.GetConversation(conv.ID)
		if got.Title != "first question" {
			t.Errorf("Title = %q, want first question", got.Title)
		}
	})
}

func TestMakeTitle(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"short", "hello", "hello"},
		{"exact", strings.Repeat("a", 50), strings.Repeat("a", 50)},
		{"long", strings.Repeat("a", 60), strings.Repeat("a", 50) + "..."},
		{"multibyte", strings.Repeat("é", 55), strings.Repeat("é", 50) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := makeTitle(tt.content); got != tt.want {
				t.Errorf("makeTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStore_ListConversations(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		list, err := store.ListConversations()
		if err != nil {
			t.Fatalf("ListConversations failed: %v", err)
		}
		if len(list) != 0 {
			t.Errorf("expected empty list, got %d", len(list))
		}

		conv1, _ := store.CreateConversation("model-1")
		time.Sleep(10 * time.Millisecond)
		conv2, _ := store.CreateConversation("model-2")
		time.Sleep(10 * time.Millisecond)
		_ = store.AddMessage(conv1.ID, Message{Role: "user", Content: "bump"})

		list, _ = store.ListConversations()
		if len(list) != 2 {
			t.Fatalf("expected 2 conversations, got %d", len(list))
		}
		if list[0].ID != conv1.ID || list[1].ID != conv2.ID {
			t.Errorf("order = [%s %s], want most recently updated first", list[0].ID, list[1].ID)
		}
	})
}

func TestStore_UpdateTitle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		conv, _ := store.CreateConversation("m")

		if err := store.UpdateTitle(conv.ID, "Renamed"); err != nil {
			t.Fatalf("UpdateTitle failed: %v", err)
		}
		got, _ := store.GetConversation(conv.ID)
		if got.Title != "Renamed" {
			t.Errorf("Title = %q, want Renamed", got.Title)
		}
	})
}

func TestStore_DeleteConversation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		conv, _ := store.CreateConversation("m")

		if err := store.DeleteConversation(conv.ID); err != nil {
			t.Fatalf("DeleteConversation failed: %v", err)
		}
		if _, err := store.GetConversation(conv.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("conversation still present: %v", err)
		}
		if err := store.DeleteConversation(conv.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("second delete = %v, want ErrNotFound", err)
		}
	})
}

func TestStore_ClearAll(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		for i := 0; i < 3; i++ {
			_, _ = store.CreateConversation("m")
		}

		if err := store.ClearAll(); err != nil {
			t.Fatalf("ClearAll failed: %v", err)
		}
		list, _ := store.ListConversations()
		if len(list) != 0 {
			t.Errorf("expected 0 conversations, got %d", len(list))
		}
	})
}

func TestFileStore_ClearAll_RemovesOnlyJSONFiles(t *testing.T) {
	store, _ := NewFileStore(t.TempDir())
	_, _ = store.CreateConversation("m")

	other := filepath.Join(store.Dir(), "notes.txt")
	if err := os.WriteFile(other, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := store.ClearAll(); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("non-JSON file should be kept")
	}
}

func TestFileStore_SkipsCorruptedFiles(t *testing.T) {
	store, _ := NewFileStore(t.TempDir())
	conv, _ := store.CreateConversation("m")

	bad := filepath.Join(store.Dir(), "conv-bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	list, err := store.ListConversations()
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != conv.ID {
		t.Errorf("expected only the valid conversation, got %d", len(list))
	}
}

func TestBadgerStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBadgerStore(BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatalf("NewBadgerStore failed: %v", err)
	}
	conv, _ := store.CreateConversation("m")
	_ = store.AddMessage(conv.ID, Message{Role: "user", Content: "remember me"})
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	store, err = NewBadgerStore(BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()

	got, err := store.GetConversation(conv.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "remember me" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestGenerateConvID(t *testing.T) {
	id1 := generateConvID()
	id2 := generateConvID()

	if !strings.HasPrefix(id1, "conv-") {
		t.Errorf("ID should start with conv-, got %s", id1)
	}
	if id1 == id2 {
		t.Error("IDs should be unique")
	}
}

func TestFromModel(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name string
		in   models.Message
		want Message
	}{
		{
			"complete",
			models.Message{Role: models.RoleUser, Content: "hi", Status: models.StatusComplete, CreatedAt: ts},
			Message{Role: "user", Content: "hi", Timestamp: ts},
		},
		{
			"failed",
			models.Message{Role: models.RoleAssistant, Content: "boom", Status: models.StatusFailed, CreatedAt: ts},
			Message{Role: "assistant", Content: "boom", Status: "failed", Timestamp: ts},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromModel(tt.in); got != tt.want {
				t.Errorf("FromModel() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMessage_ToModel(t *testing.T) {
	tests := []struct {
		status string
		want   models.Status
	}{
		{"", models.StatusComplete},
		{"failed", models.StatusFailed},
		{"interrupted", models.StatusInterrupted},
		{"streaming", models.StatusInterrupted},
		{"bogus", models.StatusComplete},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			got := Message{Role: "assistant", Content: "x", Status: tt.status}.ToModel()
			if got.Status != tt.want {
				t.Errorf("Status = %s, want %s", got.Status, tt.want)
			}
			if got.Role != models.RoleAssistant {
				t.Errorf("Role = %s, want assistant", got.Role)
			}
		})
	}
}

func TestConversation_Transcript(t *testing.T) {
	conv := &Conversation{Messages: []Message{
		{Role: "user", Content: "q"},
		{Role: "assistant", Content: "a"},
	}}

	msgs := conv.Transcript()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[1].Role != models.RoleAssistant {
		t.Errorf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}
	for _, m := range msgs {
		if m.InFlight() {
			t.Error("seeded messages must be sealed")
		}
	}
}
