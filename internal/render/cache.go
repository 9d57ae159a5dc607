package render

import (
	"sync"

	"github.com/charmbracelet/glamour"
)

// maxRenderers bounds the cache; every new terminal width adds an entry
const maxRenderers = 8

// renderer is a glamour renderer used by one caller at a time
type renderer struct {
	mu sync.Mutex
	tr *glamour.TermRenderer
}

func (r *renderer) render(content string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tr.Render(content)
}

// renderers holds one renderer per distinct Options value. order lists
// the keys oldest first for eviction.
var renderers = struct {
	sync.Mutex
	byOpts map[Options]*renderer
	order  []Options
}{byOpts: make(map[Options]*renderer)}

// rendererFor returns the cached renderer for opts, building it on first use
func rendererFor(opts Options) (*renderer, error) {
	renderers.Lock()
	defer renderers.Unlock()

	if r, ok := renderers.byOpts[opts]; ok {
		return r, nil
	}

	tr, err := newTermRenderer(opts)
	if err != nil {
		return nil, err
	}
	if len(renderers.order) >= maxRenderers {
		delete(renderers.byOpts, renderers.order[0])
		renderers.order = renderers.order[1:]
	}
	r := &renderer{tr: tr}
	renderers.byOpts[opts] = r
	renderers.order = append(renderers.order, opts)
	return r, nil
}

func newTermRenderer(opts Options) (*glamour.TermRenderer, error) {
	style := glamour.WithStylePath(opts.Style)
	if IsStandardStyle(opts.Style) {
		style = glamour.WithStandardStyle(opts.Style)
	}

	tropts := []glamour.TermRendererOption{
		style,
		glamour.WithWordWrap(opts.Width),
		glamour.WithTableWrap(opts.TableWrap),
	}
	if opts.EnableEmoji {
		tropts = append(tropts, glamour.WithEmoji())
	}
	if opts.PreserveNewLines {
		tropts = append(tropts, glamour.WithPreservedNewLines())
	}
	return glamour.NewTermRenderer(tropts...)
}

// ClearCache drops every cached renderer
func ClearCache() {
	renderers.Lock()
	defer renderers.Unlock()
	clear(renderers.byOpts)
	renderers.order = nil
}

// CacheSize returns the number of cached renderers
func CacheSize() int {
	renderers.Lock()
	defer renderers.Unlock()
	return len(renderers.byOpts)
}
