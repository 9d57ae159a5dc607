package history

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func sampleConversation() *Conversation {
	ts := time.Date(2026, 3, 4, 10, 20, 30, 0, time.UTC)
	return &Conversation{
		ID:        "conv-1",
		Title:     "Test Conversation",
		Model:     "tiny.gguf",
		CreatedAt: ts,
		UpdatedAt: ts,
		Messages: []Message{
			{Role: "user", Content: "Hello, how are you?", Timestamp: ts},
			{Role: "assistant", Content: "I'm doing well, thank you!", Timestamp: ts},
			{Role: "assistant", Content: "engine crashed", Status: "failed", Timestamp: ts},
		},
	}
}

func TestExportMarkdown(t *testing.T) {
	md := ExportMarkdown(sampleConversation())

	for _, want := range []string{
		"# Test Conversation",
		"**Model:** tiny.gguf",
		"**Messages:** 3",
		"## You (10:20:30)",
		"## Assistant (10:20:30)",
		"Hello, how are you?",
		"I'm doing well",
		"[failed]",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if got := strings.Count(md, "\n---\n"); got != 3 {
		t.Errorf("expected 3 separators, got %d", got)
	}
}

func TestExportJSON(t *testing.T) {
	data, err := ExportJSON(sampleConversation())
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}

	var parsed struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Status  string `json:"status"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.ID != "conv-1" || parsed.Title != "Test Conversation" {
		t.Errorf("header = %s %q", parsed.ID, parsed.Title)
	}
	if len(parsed.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(parsed.Messages))
	}
	if parsed.Messages[2].Status != "failed" {
		t.Errorf("status = %q, want failed", parsed.Messages[2].Status)
	}
	if strings.Count(string(data), `"status"`) != 1 {
		t.Error("empty status should be omitted")
	}
}

func TestParseExportFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    ExportFormat
		wantErr bool
	}{
		{"", ExportFormatMarkdown, false},
		{"md", ExportFormatMarkdown, false},
		{".md", ExportFormatMarkdown, false},
		{"Markdown", ExportFormatMarkdown, false},
		{"json", ExportFormatJSON, false},
		{".JSON", ExportFormatJSON, false},
		{"yaml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseExportFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseExportFormat(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseExportFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExport(t *testing.T) {
	conv := sampleConversation()

	md, err := Export(conv, ExportFormatMarkdown)
	if err != nil || !strings.HasPrefix(string(md), "# Test Conversation") {
		t.Errorf("markdown export = %q, %v", md, err)
	}
	js, err := Export(conv, ExportFormatJSON)
	if err != nil || !json.Valid(js) {
		t.Errorf("json export invalid: %v", err)
	}
}

func TestSearch(t *testing.T) {
	store, _ := NewFileStore(t.TempDir())

	c1, _ := store.CreateConversation("m")
	_ = store.AddMessage(c1.ID, Message{Role: "user", Content: "Python tips"})
	_ = store.AddMessage(c1.ID, Message{Role: "assistant", Content: "Use list comprehensions for clarity"})

	c2, _ := store.CreateConversation("m")
	_ = store.AddMessage(c2.ID, Message{Role: "user", Content: "Go questions"})

	tests := []struct {
		name          string
		query         string
		searchContent bool
		wantField     string
		wantCount     int
	}{
		{"title", "python", false, "title", 1},
		{"title case insensitive", "GO QUESTIONS", false, "title", 1},
		{"content disabled", "comprehensions", false, "", 0},
		{"content", "comprehensions", true, "content", 1},
		{"no match", "haskell", true, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := Search(store, tt.query, tt.searchContent)
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if len(results) != tt.wantCount {
				t.Fatalf("expected %d results, got %d", tt.wantCount, len(results))
			}
			if tt.wantCount > 0 && results[0].MatchField != tt.wantField {
				t.Errorf("MatchField = %s, want %s", results[0].MatchField, tt.wantField)
			}
		})
	}
}

func TestExtractSnippet(t *testing.T) {
	content := strings.Repeat("a", 100) + "needle" + strings.Repeat("b", 100)

	snippet := extractSnippet(content, "needle", 40)
	if !strings.Contains(snippet, "needle") {
		t.Errorf("snippet %q missing the match", snippet)
	}
	if !strings.HasPrefix(snippet, "...") || !strings.HasSuffix(snippet, "...") {
		t.Errorf("snippet %q should be elided on both sides", snippet)
	}

	if got := extractSnippet("needle at start", "needle", 100); got != "needle at start" {
		t.Errorf("short content snippet = %q", got)
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5 min ago"},
		{3 * time.Hour, "3h ago"},
		{30 * time.Hour, "yesterday"},
		{4 * 24 * time.Hour, "4 days ago"},
		{8 * 24 * time.Hour, "1 week ago"},
		{15 * 24 * time.Hour, "2 weeks ago"},
		{35 * 24 * time.Hour, "1 month ago"},
		{90 * 24 * time.Hour, "3 months ago"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatRelativeTime(now.Add(-tt.ago)); got != tt.want {
				t.Errorf("FormatRelativeTime(-%v) = %q, want %q", tt.ago, got, tt.want)
			}
		})
	}

	old := time.Date(2020, 5, 6, 0, 0, 0, 0, time.Local)
	if got := FormatRelativeTime(old); got != "2020-05-06" {
		t.Errorf("old date = %q, want 2020-05-06", got)
	}
}
