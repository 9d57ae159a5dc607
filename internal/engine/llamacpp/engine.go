// Package llamacpp runs generation against a llama.cpp server through its
// OpenAI-compatible HTTP API.
package llamacpp

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"

	"github.com/diogo/llamigo/internal/engine"
	apierrors "github.com/diogo/llamigo/internal/errors"
)

// DefaultBaseURL is where llama-server listens by default
const DefaultBaseURL = "http://127.0.0.1:8080"

// Engine is an engine.Engine backed by llama-server
type Engine struct {
	baseURL      string
	apiKey       string
	systemPrompt string
	maxTurns     int
	httpClient   *http.Client
	logger       *slog.Logger

	mu     sync.Mutex
	client *openai.Client
	model  string
	turns  []openai.ChatCompletionMessageParamUnion
}

// Ensure Engine implements engine.Engine
var (
	_ engine.Engine = (*Engine)(nil)
	_ engine.Primer = (*Engine)(nil)
)

// Option is a function that configures the engine
type Option func(*Engine)

// WithBaseURL sets the server address (without the /v1 suffix)
func WithBaseURL(url string) Option {
	return func(e *Engine) {
		e.baseURL = strings.TrimRight(url, "/")
	}
}

// WithAPIKey sets the key sent as a bearer token, for servers started
// with --api-key
func WithAPIKey(key string) Option {
	return func(e *Engine) {
		e.apiKey = key
	}
}

// WithSystemPrompt prepends a system message to every request
func WithSystemPrompt(prompt string) Option {
	return func(e *Engine) {
		e.systemPrompt = prompt
	}
}

// WithMaxTurns bounds how many past exchanges are replayed as context.
// Zero disables context.
func WithMaxTurns(n int) Option {
	return func(e *Engine) {
		e.maxTurns = n
	}
}

// WithHTTPClient sets the HTTP client for both health checks and generation
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

// New creates an engine. Nothing is contacted until Load.
func New(opts ...Option) *Engine {
	e := &Engine{
		baseURL:    DefaultBaseURL,
		maxTurns:   16,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load verifies the model file when path names one, checks that the server
// is up and has finished loading, then starts a fresh conversation.
func (e *Engine) Load(ctx context.Context, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return apierrors.NewLoadError("", "model path is empty", nil)
	}

	if looksLikeFile(path) {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return apierrors.NewLoadError(path, "model file not found", err)
			}
			return apierrors.NewLoadError(path, "", err)
		}
		if !info.Mode().IsRegular() {
			return apierrors.NewLoadError(path, "not a regular file", nil)
		}
	}

	if err := e.checkHealth(ctx); err != nil {
		return apierrors.NewLoadError(path, err.Error(), err)
	}

	opts := []option.RequestOption{
		option.WithBaseURL(e.baseURL + "/v1/"),
		option.WithHTTPClient(e.httpClient),
		option.WithMaxRetries(0),
	}
	if e.apiKey != "" {
		opts = append(opts, option.WithAPIKey(e.apiKey))
	} else {
		// The SDK insists on a key; llama-server ignores it unless --api-key is set.
		opts = append(opts, option.WithAPIKey("sk-no-key-required"))
	}
	client := openai.NewClient(opts...)

	e.mu.Lock()
	e.client = &client
	e.model = modelAlias(path)
	e.turns = nil
	e.mu.Unlock()

	e.logger.Info("model loaded", "path", path, "model", e.model, "server", e.baseURL)
	return nil
}

// Send streams a chat completion for prompt. Completed exchanges are kept
// and replayed as context for later prompts.
func (e *Engine) Send(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		e.mu.Lock()
		client, model := e.client, e.model
		msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(e.turns)+2)
		if e.systemPrompt != "" {
			msgs = append(msgs, openai.SystemMessage(e.systemPrompt))
		}
		msgs = append(msgs, e.turns...)
		e.mu.Unlock()

		if client == nil {
			yield("", apierrors.NewStreamError(apierrors.ErrNotLoaded.Error(), apierrors.ErrNotLoaded))
			return
		}
		msgs = append(msgs, openai.UserMessage(prompt))

		start := time.Now()
		stream := client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
			Model:    model,
			Messages: msgs,
		})
		defer stream.Close()

		var reply strings.Builder
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			reply.WriteString(delta)
			if !yield(delta, nil) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			if ctx.Err() != nil {
				return
			}
			e.logger.Error("stream failed", "model", model, "error", err)
			yield("", apierrors.NewStreamError(err.Error(), err))
			return
		}

		e.remember(prompt, reply.String())
		e.logger.Debug("stream finished", "model", model, "bytes", reply.Len(), "elapsed", time.Since(start))
	}
}

// Unload forgets the model and the conversation
func (e *Engine) Unload(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client == nil {
		return apierrors.NewUnloadError("", apierrors.ErrNotLoaded)
	}
	e.logger.Info("model unloaded", "model", e.model)
	e.client = nil
	e.model = ""
	e.turns = nil
	return nil
}

// Model returns the alias sent with each request
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

// Internal methods

func (e *Engine) remember(prompt, reply string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.maxTurns <= 0 || e.client == nil {
		return
	}
	e.turns = append(e.turns, openai.UserMessage(prompt), openai.AssistantMessage(reply))
	if extra := len(e.turns) - 2*e.maxTurns; extra > 0 {
		e.turns = append(e.turns[:0:0], e.turns[extra:]...)
	}
}

// checkHealth queries GET /health. llama-server answers 200 {"status":"ok"}
// when ready and 503 with an error object while the model is loading.
func (e *Engine) checkHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("invalid server address %q: %w", e.baseURL, err)
	}
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("server unreachable at %s: %w", e.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read health response: %w", err)
	}

	if resp.StatusCode == http.StatusOK && gjson.GetBytes(body, "status").String() == "ok" {
		return nil
	}
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return fmt.Errorf("server not ready: %s", msg.String())
	}
	if status := gjson.GetBytes(body, "status"); status.Exists() {
		return fmt.Errorf("server not ready: %s", status.String())
	}
	return fmt.Errorf("server not ready: HTTP %d", resp.StatusCode)
}

func looksLikeFile(path string) bool {
	return strings.ContainsRune(path, os.PathSeparator) ||
		strings.ContainsRune(path, '/') ||
		strings.EqualFold(filepath.Ext(path), ".gguf")
}

// modelAlias derives the model name sent to the server from a path
func modelAlias(path string) string {
	if !looksLikeFile(path) {
		return path
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
