// Package engine defines the boundary between the chat coordinator and the
// inference runtime that loads a model and generates text.
package engine

import (
	"context"
	"iter"
	"strings"

	"github.com/diogo/llamigo/internal/models"
)

// Engine is an inference runtime.
//
// Send returns a lazy, finite sequence of text fragments that cannot be
// restarted. A failure is yielded once as a *errors.StreamError and ends
// the sequence; cancelling ctx also ends it.
type Engine interface {
	Load(ctx context.Context, path string) error
	Send(ctx context.Context, prompt string) iter.Seq2[string, error]
	Unload(ctx context.Context) error
}

// Exchange is one prompt and the reply it produced
type Exchange struct {
	Prompt string
	Reply  string
}

// Primer is implemented by engines that replay earlier exchanges as
// context. Load starts a fresh conversation, so Prime is called after it.
type Primer interface {
	Prime(exchanges []Exchange)
}

// Exchanges pairs each user message with the completed assistant reply
// that directly follows it. Failed and interrupted replies are skipped.
func Exchanges(msgs []models.Message) []Exchange {
	var out []Exchange
	for i := 0; i+1 < len(msgs); i++ {
		user, reply := msgs[i], msgs[i+1]
		if user.Role != models.RoleUser || reply.Role != models.RoleAssistant {
			continue
		}
		if reply.Status != models.StatusComplete || reply.Content == "" {
			continue
		}
		out = append(out, Exchange{Prompt: user.Content, Reply: reply.Content})
		i++
	}
	return out
}

// WithPriming wraps e so that every successful Load is followed by Prime
// with exchanges. Engines that are not Primers are returned unchanged.
func WithPriming(e Engine, exchanges []Exchange) Engine {
	p, ok := e.(Primer)
	if !ok || len(exchanges) == 0 {
		return e
	}
	return &primed{Engine: e, primer: p, exchanges: exchanges}
}

type primed struct {
	Engine
	primer    Primer
	exchanges []Exchange
}

func (p *primed) Load(ctx context.Context, path string) error {
	if err := p.Engine.Load(ctx, path); err != nil {
		return err
	}
	p.primer.Prime(p.exchanges)
	return nil
}

// Collect drains a stream and returns the concatenated text along with the
// first error it yielded.
func Collect(seq iter.Seq2[string, error]) (string, error) {
	var sb strings.Builder
	for fragment, err := range seq {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(fragment)
	}
	return sb.String(), nil
}
