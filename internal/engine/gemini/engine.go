// Package gemini runs generation against the Google Gemini API.
package gemini

import (
	"context"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/diogo/llamigo/internal/engine"
	apierrors "github.com/diogo/llamigo/internal/errors"
)

// DefaultModel is used when Load receives an empty name
const DefaultModel = "gemini-2.5-flash"

// Engine is an engine.Engine backed by the Gemini API
type Engine struct {
	apiKey       string
	baseURL      string
	systemPrompt string
	maxTurns     int
	httpClient   *http.Client
	logger       *slog.Logger

	mu      sync.Mutex
	client  *genai.Client
	model   string
	history []*genai.Content
}

// Ensure Engine implements engine.Engine
var (
	_ engine.Engine = (*Engine)(nil)
	_ engine.Primer = (*Engine)(nil)
)

// Option is a function that configures the engine
type Option func(*Engine)

// WithAPIKey sets the API key. When empty the SDK falls back to the
// GEMINI_API_KEY and GOOGLE_API_KEY environment variables.
func WithAPIKey(key string) Option {
	return func(e *Engine) {
		e.apiKey = key
	}
}

// WithBaseURL overrides the API endpoint
func WithBaseURL(url string) Option {
	return func(e *Engine) {
		e.baseURL = url
	}
}

// WithSystemPrompt sets the system instruction for every request
func WithSystemPrompt(prompt string) Option {
	return func(e *Engine) {
		e.systemPrompt = prompt
	}
}

// WithMaxTurns bounds how many past exchanges are replayed as context
func WithMaxTurns(n int) Option {
	return func(e *Engine) {
		e.maxTurns = n
	}
}

// WithHTTPClient sets the HTTP client used by the SDK
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		e.httpClient = c
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine. The API is not contacted until Load.
func New(opts ...Option) *Engine {
	e := &Engine{
		maxTurns: 16,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load connects to the API and resolves the model named by path
func (e *Engine) Load(ctx context.Context, path string) error {
	name := strings.TrimPrefix(strings.TrimSpace(path), "models/")
	if name == "" {
		name = DefaultModel
	}

	cfg := &genai.ClientConfig{
		APIKey:     e.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: e.httpClient,
	}
	if e.baseURL != "" {
		cfg.HTTPOptions.BaseURL = e.baseURL
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return apierrors.NewLoadError(name, "", err)
	}

	if _, err := client.Models.Get(ctx, name, nil); err != nil {
		return apierrors.NewLoadError(name, "model unavailable", err)
	}

	e.mu.Lock()
	e.client = client
	e.model = name
	e.history = nil
	e.mu.Unlock()

	e.logger.Info("model loaded", "model", name)
	return nil
}

// Send streams a reply for prompt with the previous exchanges as context
func (e *Engine) Send(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		e.mu.Lock()
		client, model := e.client, e.model
		contents := make([]*genai.Content, 0, len(e.history)+1)
		contents = append(contents, e.history...)
		e.mu.Unlock()

		if client == nil {
			yield("", apierrors.NewStreamError(apierrors.ErrNotLoaded.Error(), apierrors.ErrNotLoaded))
			return
		}
		contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

		var cfg *genai.GenerateContentConfig
		if e.systemPrompt != "" {
			cfg = &genai.GenerateContentConfig{
				SystemInstruction: genai.NewContentFromText(e.systemPrompt, genai.RoleUser),
			}
		}

		var reply strings.Builder
		for resp, err := range client.Models.GenerateContentStream(ctx, model, contents, cfg) {
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				e.logger.Error("stream failed", "model", model, "error", err)
				yield("", apierrors.NewStreamError(err.Error(), err))
				return
			}
			text := responseText(resp)
			if text == "" {
				continue
			}
			reply.WriteString(text)
			if !yield(text, nil) {
				return
			}
		}

		e.remember(prompt, reply.String())
	}
}

// Unload drops the client and the conversation
func (e *Engine) Unload(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client == nil {
		return apierrors.NewUnloadError("", apierrors.ErrNotLoaded)
	}
	e.logger.Info("model unloaded", "model", e.model)
	e.client = nil
	e.model = ""
	e.history = nil
	return nil
}

// Model returns the resolved model name
func (e *Engine) Model() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model
}

// Prime replays earlier exchanges as context for the next prompts. The
// newest exchanges are kept when there are more than the turn limit.
func (e *Engine) Prime(exchanges []engine.Exchange) {
	for _, x := range exchanges {
		e.remember(x.Prompt, x.Reply)
	}
}

func (e *Engine) remember(prompt, reply string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.maxTurns <= 0 || e.client == nil {
		return
	}
	e.history = append(e.history,
		genai.NewContentFromText(prompt, genai.RoleUser),
		genai.NewContentFromText(reply, genai.RoleModel),
	)
	if extra := len(e.history) - 2*e.maxTurns; extra > 0 {
		e.history = append(e.history[:0:0], e.history[extra:]...)
	}
}

// responseText joins the text parts of the first candidate, skipping
// thought parts.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}
