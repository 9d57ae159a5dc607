package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/diogo/llamigo/internal/history"
)

// seedHistory writes two conversations into the default file store
func seedHistory(t *testing.T, home string) (*history.FileStore, []*history.Conversation) {
	t.Helper()
	store, err := history.NewFileStore(filepath.Join(home, ".llamigo"))
	if err != nil {
		t.Fatal(err)
	}

	var convs []*history.Conversation
	for _, exchange := range [][2]string{
		{"explain goroutines", "Lightweight threads."},
		{"write a haiku\nabout rust", "Iron slowly turns"},
	} {
		conv, err := store.CreateConversation("tiny.gguf")
		if err != nil {
			t.Fatal(err)
		}
		_ = store.AddMessage(conv.ID, history.Message{Role: "user", Content: exchange[0], Status: "complete"})
		_ = store.AddMessage(conv.ID, history.Message{Role: "assistant", Content: exchange[1], Status: "complete"})
		convs = append(convs, conv)
	}
	return store, convs
}

func TestHistory_ListEmpty(t *testing.T) {
	setupTestHome(t)

	stdout, _, err := execute(t, testDeps(nil), "history", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "No conversations found") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestHistory_List(t *testing.T) {
	home := setupTestHome(t)
	_, convs := seedHistory(t, home)

	stdout, _, err := execute(t, testDeps(nil), "history", "list")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{convs[0].ID, convs[1].ID, "explain goroutines", "write a haiku about rust", "tiny.gguf"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("list missing %q:\n%s", want, stdout)
		}
	}
}

func TestHistory_Show(t *testing.T) {
	home := setupTestHome(t)
	_, convs := seedHistory(t, home)

	stdout, _, err := execute(t, testDeps(nil), "history", "show", convs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Title: explain goroutines", "You", "Assistant", "Lightweight threads."} {
		if !strings.Contains(stdout, want) {
			t.Errorf("show missing %q:\n%s", want, stdout)
		}
	}

	if _, _, err := execute(t, testDeps(nil), "history", "show", "missing"); err == nil {
		t.Error("unknown reference should fail")
	}
}

func TestHistory_Export(t *testing.T) {
	home := setupTestHome(t)
	_, convs := seedHistory(t, home)

	stdout, _, err := execute(t, testDeps(nil), "history", "export", convs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "# explain goroutines") {
		t.Errorf("markdown export = %q", stdout)
	}

	out := filepath.Join(t.TempDir(), "conv.json")
	if _, _, err := execute(t, testDeps(nil), "history", "export", convs[0].ID, "-o", out); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Errorf("a .json output should be exported as JSON: %v", err)
	}

	if _, _, err := execute(t, testDeps(nil), "history", "export", convs[0].ID, "--format", "pdf"); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestHistory_Search(t *testing.T) {
	home := setupTestHome(t)
	_, convs := seedHistory(t, home)

	stdout, _, err := execute(t, testDeps(nil), "history", "search", "haiku")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, convs[1].ID) || strings.Contains(stdout, convs[0].ID) {
		t.Errorf("title search = %q", stdout)
	}

	stdout, _, _ = execute(t, testDeps(nil), "history", "search", "threads")
	if !strings.Contains(stdout, "No conversations matching") {
		t.Errorf("content should only be searched with --content: %q", stdout)
	}

	stdout, _, _ = execute(t, testDeps(nil), "history", "search", "--content", "threads")
	if !strings.Contains(stdout, convs[0].ID) {
		t.Errorf("content search = %q", stdout)
	}
}

func TestHistory_DeleteAndClear(t *testing.T) {
	home := setupTestHome(t)
	store, convs := seedHistory(t, home)

	stdout, _, err := execute(t, testDeps(nil), "history", "delete", convs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, convs[0].ID) {
		t.Errorf("stdout = %q", stdout)
	}
	if _, err := store.GetConversation(convs[0].ID); err == nil {
		t.Error("conversation should be deleted")
	}

	if _, _, err := execute(t, testDeps(nil), "history", "clear"); err != nil {
		t.Fatal(err)
	}
	list, _ := store.ListConversations()
	if len(list) != 0 {
		t.Errorf("expected no conversations, got %d", len(list))
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"too long here", 3, "too..."},
		{"héllo wörld", 5, "héllo..."},
		{"keeps\nlines", 20, "keeps\nlines"},
	}

	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestOneLine(t *testing.T) {
	if got := oneLine("  a\n\tb   c \n"); got != "a b c" {
		t.Errorf("oneLine() = %q", got)
	}
}
