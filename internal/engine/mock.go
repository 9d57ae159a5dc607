package engine

import (
	"context"
	"iter"
	"strings"
	"sync"
	"time"

	apierrors "github.com/diogo/llamigo/internal/errors"
)

// Mock is a scripted Engine for tests and offline demos
type Mock struct {
	// Mock return values
	LoadErr   error
	UnloadErr error
	// Fragments are yielded in order for every prompt. When nil the prompt
	// is echoed back word by word.
	Fragments []string
	// StreamErr, when set, is yielded after the fragments
	StreamErr error
	// Gate, when set, must receive a value before each fragment is yielded
	Gate chan struct{}
	// Delay is slept before each fragment
	Delay time.Duration
	// IgnoreCancel keeps yielding after ctx is cancelled, like a runtime
	// that does not observe cancellation.
	IgnoreCancel bool

	mu sync.Mutex
	// Call counters/recorders
	loadCalls   []string
	prompts     []string
	unloadCalls int
	loaded      string
	primed      []Exchange
}

// Ensure Mock implements Engine
var (
	_ Engine = (*Mock)(nil)
	_ Primer = (*Mock)(nil)
)

func (m *Mock) Load(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loadCalls = append(m.loadCalls, path)
	if m.LoadErr != nil {
		return m.LoadErr
	}
	m.loaded = path
	return nil
}

func (m *Mock) Send(ctx context.Context, prompt string) iter.Seq2[string, error] {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	fragments := m.Fragments
	if fragments == nil {
		fragments = echo(prompt)
	}
	m.mu.Unlock()

	return func(yield func(string, error) bool) {
		for _, f := range fragments {
			if m.Gate != nil {
				select {
				case <-m.Gate:
				case <-ctx.Done():
					if !m.IgnoreCancel {
						return
					}
					<-m.Gate
				}
			}
			if m.Delay > 0 {
				time.Sleep(m.Delay)
			}
			if ctx.Err() != nil && !m.IgnoreCancel {
				return
			}
			if !yield(f, nil) {
				return
			}
		}
		if m.StreamErr != nil {
			yield("", apierrors.NewStreamError(apierrors.Describe(m.StreamErr), m.StreamErr))
		}
	}
}

func (m *Mock) Unload(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.unloadCalls++
	if m.UnloadErr != nil {
		return m.UnloadErr
	}
	if m.loaded == "" {
		return apierrors.NewUnloadError("", apierrors.ErrNotLoaded)
	}
	m.loaded = ""
	return nil
}

func (m *Mock) Prime(exchanges []Exchange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.primed = append(m.primed, exchanges...)
}

// Primed returns the exchanges passed to Prime
func (m *Mock) Primed() []Exchange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Exchange(nil), m.primed...)
}

// LoadCalls returns the paths passed to Load
func (m *Mock) LoadCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loadCalls...)
}

// Prompts returns the prompts passed to Send
func (m *Mock) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// UnloadCalls returns how many times Unload ran
func (m *Mock) UnloadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unloadCalls
}

// Loaded returns the currently loaded path
func (m *Mock) Loaded() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

func echo(prompt string) []string {
	words := strings.Fields(prompt)
	out := make([]string, 0, len(words))
	for i, w := range words {
		if i > 0 {
			w = " " + w
		}
		out = append(out, w)
	}
	return out
}
