package render

import (
	"strings"
	"sync"
	"testing"

	"github.com/diogo/llamigo/internal/config"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.Width != 80 {
		t.Errorf("expected Width=80, got %d", opts.Width)
	}
	if opts.Style != "dark" {
		t.Errorf("expected Style='dark', got %s", opts.Style)
	}
	if !opts.EnableEmoji || !opts.PreserveNewLines || !opts.TableWrap {
		t.Errorf("unexpected defaults: %+v", opts)
	}
}

func TestOptionsChaining(t *testing.T) {
	opts := DefaultOptions().WithWidth(100).WithStyle("light")

	if opts.Width != 100 {
		t.Errorf("expected Width=100, got %d", opts.Width)
	}
	if opts.Style != "light" {
		t.Errorf("expected Style='light', got %s", opts.Style)
	}
	if !opts.EnableEmoji {
		t.Error("other options should be preserved")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	tests := []struct {
		name string
		md   config.MarkdownConfig
		want Options
	}{
		{
			name: "defaults",
			md:   config.DefaultMarkdownConfig(),
			want: DefaultOptions(),
		},
		{
			name: "empty style keeps default",
			md:   config.MarkdownConfig{},
			want: Options{Width: 80, Style: "dark"},
		},
		{
			name: "custom",
			md:   config.MarkdownConfig{Style: "notty", TableWrap: true},
			want: Options{Width: 80, Style: "notty", TableWrap: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OptionsFromConfig(tt.md); got != tt.want {
				t.Errorf("OptionsFromConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestIsStandardStyle(t *testing.T) {
	tests := []struct {
		style string
		want  bool
	}{
		{"dark", true},
		{"light", true},
		{"notty", true},
		{"tokyo-night", true},
		{"/tmp/mine.json", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsStandardStyle(tt.style); got != tt.want {
			t.Errorf("IsStandardStyle(%q) = %v, want %v", tt.style, got, tt.want)
		}
	}
}

func TestMarkdown(t *testing.T) {
	ClearCache()
	opts := DefaultOptions().WithStyle("notty")

	out, err := Markdown("# Title\n\nSome **bold** text.", opts)
	if err != nil {
		t.Fatalf("Markdown() returned error: %v", err)
	}
	if !strings.Contains(out, "Title") || !strings.Contains(out, "bold") {
		t.Errorf("output missing content: %q", out)
	}
	if CacheSize() != 1 {
		t.Errorf("CacheSize() = %d, want 1", CacheSize())
	}

	if _, err := Markdown("again", opts); err != nil {
		t.Fatal(err)
	}
	if CacheSize() != 1 {
		t.Errorf("same options should reuse the renderer, got %d", CacheSize())
	}

	if _, err := Markdown("again", opts.WithWidth(40)); err != nil {
		t.Fatal(err)
	}
	if CacheSize() != 2 {
		t.Errorf("different options should add a renderer, got %d", CacheSize())
	}
}

func TestMarkdown_MissingStyleFile(t *testing.T) {
	ClearCache()
	_, err := Markdown("text", DefaultOptions().WithStyle("/nonexistent/style.json"))
	if err == nil {
		t.Error("expected error for a missing style file")
	}
}

func TestMarkdownOrPlain(t *testing.T) {
	ClearCache()

	out := MarkdownOrPlain("plain words", DefaultOptions().WithStyle("notty"))
	if !strings.Contains(out, "plain words") {
		t.Errorf("output = %q", out)
	}
	if strings.HasPrefix(out, "\n") || strings.HasSuffix(out, "\n") {
		t.Errorf("output should be trimmed: %q", out)
	}

	raw := "**kept raw**"
	if got := MarkdownOrPlain(raw, DefaultOptions().WithStyle("/nonexistent/style.json")); got != raw {
		t.Errorf("fallback = %q, want %q", got, raw)
	}
}

func TestMarkdown_Concurrent(t *testing.T) {
	ClearCache()
	opts := DefaultOptions().WithStyle("notty")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := Markdown("- a\n- b\n", opts); err != nil {
				t.Errorf("Markdown() returned error: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestMarkdown_CacheEvictsOldest(t *testing.T) {
	ClearCache()
	opts := DefaultOptions().WithStyle("notty")

	for width := 40; width < 40+maxRenderers+3; width++ {
		if _, err := Markdown("x", opts.WithWidth(width)); err != nil {
			t.Fatal(err)
		}
	}
	if CacheSize() != maxRenderers {
		t.Errorf("CacheSize() = %d, want %d", CacheSize(), maxRenderers)
	}

	renderers.Lock()
	_, oldest := renderers.byOpts[opts.WithWidth(40)]
	_, newest := renderers.byOpts[opts.WithWidth(40+maxRenderers+2)]
	renderers.Unlock()
	if oldest || !newest {
		t.Errorf("expected the oldest width evicted and the newest kept (oldest=%v newest=%v)", oldest, newest)
	}
}

func TestMarkdown_ConfigOptionsShareRenderer(t *testing.T) {
	ClearCache()
	md := config.MarkdownConfig{Style: "notty", EnableEmoji: true, TableWrap: true}

	for range 3 {
		if _, err := Markdown("hi", OptionsFromConfig(md).WithWidth(60)); err != nil {
			t.Fatal(err)
		}
	}
	if CacheSize() != 1 {
		t.Errorf("equal options built from the same config should share a renderer, got %d", CacheSize())
	}
}
