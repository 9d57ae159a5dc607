package history

import (
	"context"
	"sync"

	"github.com/diogo/llamigo/internal/models"
)

// Recorder appends finished transcript messages to one conversation. The
// conversation is created on the first Record unless one was given.
type Recorder struct {
	store Store
	model string

	mu     sync.Mutex
	convID string
}

// NewRecorder records into a new conversation for model
func NewRecorder(store Store, model string) *Recorder {
	return &Recorder{store: store, model: model}
}

// ResumeRecorder records into an existing conversation
func ResumeRecorder(store Store, conv *Conversation) *Recorder {
	return &Recorder{store: store, model: conv.Model, convID: conv.ID}
}

// ConversationID returns the conversation being written, or "" before the
// first Record.
func (r *Recorder) ConversationID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.convID
}

// Record appends msgs in order
func (r *Recorder) Record(ctx context.Context, msgs ...models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.convID == "" {
		conv, err := r.store.CreateConversation(r.model)
		if err != nil {
			return err
		}
		r.convID = conv.ID
	}

	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.store.AddMessage(r.convID, FromModel(m)); err != nil {
			return err
		}
	}
	return nil
}
