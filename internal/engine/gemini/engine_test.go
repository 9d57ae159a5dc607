package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/diogo/llamigo/internal/engine"
	apierrors "github.com/diogo/llamigo/internal/errors"
)

func newFakeAPI(t *testing.T, fragments []string, knownModel string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, ":streamGenerateContent"):
			w.Header().Set("Content-Type", "text/event-stream")
			for _, f := range fragments {
				fmt.Fprintf(w, "data: {\"candidates\":[{\"content\":{\"role\":\"model\",\"parts\":[{\"text\":%q}]}}]}\r\n\r\n", f)
			}
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/models/"+knownModel):
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"name":"models/%s","displayName":"Test"}`, knownModel)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"code":404,"message":"model not found","status":"NOT_FOUND"}}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoadAndSend(t *testing.T) {
	srv := newFakeAPI(t, []string{"Hel", "lo"}, "gemini-test")
	e := New(WithAPIKey("test-key"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	if err := e.Load(context.Background(), "models/gemini-test"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if e.Model() != "gemini-test" {
		t.Errorf("Model() = %q, want gemini-test", e.Model())
	}

	text, err := engine.Collect(e.Send(context.Background(), "hi"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if text != "Hello" {
		t.Errorf("text = %q, want Hello", text)
	}

	if err := e.Unload(context.Background()); err != nil {
		t.Errorf("Unload failed: %v", err)
	}
}

func TestLoad_UnknownModel(t *testing.T) {
	srv := newFakeAPI(t, nil, "gemini-test")
	e := New(WithAPIKey("test-key"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))

	err := e.Load(context.Background(), "gemini-missing")
	if !apierrors.IsLoadError(err) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if !strings.Contains(err.Error(), "gemini-missing") {
		t.Errorf("Error() = %q, want the model name", err.Error())
	}
}

func TestSend_NotLoaded(t *testing.T) {
	e := New()
	_, err := engine.Collect(e.Send(context.Background(), "hi"))
	if !errors.Is(err, apierrors.ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}
}

func TestUnload_NotLoaded(t *testing.T) {
	e := New()
	if err := e.Unload(context.Background()); !apierrors.IsUnloadError(err) {
		t.Errorf("expected UnloadError, got %v", err)
	}
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: "Hel"},
				{Text: "lo"},
			}},
		}},
	}
	if got := responseText(resp); got != "Hello" {
		t.Errorf("responseText() = %q, want Hello", got)
	}
	if got := responseText(nil); got != "" {
		t.Errorf("responseText(nil) = %q, want empty", got)
	}
}

func TestPrime_BeforeLoadIsIgnored(t *testing.T) {
	e := New()
	e.Prime([]engine.Exchange{{Prompt: "a", Reply: "b"}})
	if len(e.history) != 0 {
		t.Errorf("history = %d entries, want none before Load", len(e.history))
	}
}
