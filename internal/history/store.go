// Package history provides local conversation history storage.
package history

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/diogo/llamigo/internal/models"
)

// ErrNotFound is returned when a conversation does not exist
var ErrNotFound = errors.New("conversation not found")

// titleLimit is the maximum number of runes taken from the first user
// message when titling a conversation.
const titleLimit = 50

// Message represents a single message in a conversation
type Message struct {
	Role      string    `json:"role" msgpack:"role"` // "user" or "assistant"
	Content   string    `json:"content" msgpack:"content"`
	Status    string    `json:"status,omitempty" msgpack:"status,omitempty"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

// Conversation represents a complete chat conversation
type Conversation struct {
	ID        string    `json:"id" msgpack:"id"`
	Title     string    `json:"title" msgpack:"title"`
	Model     string    `json:"model" msgpack:"model"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
	UpdatedAt time.Time `json:"updated_at" msgpack:"updated_at"`
	Messages  []Message `json:"messages" msgpack:"messages"`
}

// Store persists conversations. ListConversations returns the most
// recently updated conversation first.
type Store interface {
	CreateConversation(model string) (*Conversation, error)
	GetConversation(id string) (*Conversation, error)
	ListConversations() ([]*Conversation, error)
	AddMessage(id string, msg Message) error
	UpdateTitle(id, title string) error
	DeleteConversation(id string) error
	ClearAll() error
	Close() error
}

// Backend names accepted by Open
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Open creates the store for backend under baseDir
func Open(backend, baseDir string, logger *slog.Logger) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(baseDir)
	case BackendBadger:
		return NewBadgerStore(BadgerOptions{
			Dir:    filepath.Join(baseDir, "history.db"),
			Logger: logger,
		})
	default:
		return nil, fmt.Errorf("unknown history backend %q", backend)
	}
}

// FromModel converts a transcript message for storage
func FromModel(m models.Message) Message {
	ts := m.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	status := ""
	if m.Status != models.StatusComplete {
		status = string(m.Status)
	}
	return Message{
		Role:      string(m.Role),
		Content:   m.Content,
		Status:    status,
		Timestamp: ts,
	}
}

// ToModel converts a stored message back into a sealed transcript message.
// IDs are assigned by the transcript.
func (m Message) ToModel() models.Message {
	role := models.RoleAssistant
	if m.Role == string(models.RoleUser) {
		role = models.RoleUser
	}
	status := models.StatusComplete
	switch models.Status(m.Status) {
	case models.StatusFailed:
		status = models.StatusFailed
	case models.StatusInterrupted, models.StatusStreaming:
		status = models.StatusInterrupted
	}
	return models.Message{
		Role:      role,
		Content:   m.Content,
		Status:    status,
		CreatedAt: m.Timestamp,
	}
}

// Transcript returns the messages ready to seed a transcript
func (c *Conversation) Transcript() []models.Message {
	out := make([]models.Message, len(c.Messages))
	for i, m := range c.Messages {
		out[i] = m.ToModel()
	}
	return out
}

func newConversation(model string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        generateConvID(),
		Title:     fmt.Sprintf("Chat %s", now.Format("2006-01-02 15:04")),
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []Message{},
	}
}

// appendMessage adds msg to conv. The first user message becomes the
// title.
func appendMessage(conv *Conversation, msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = time.Now()

	if msg.Role == string(models.RoleUser) && countRole(conv.Messages, msg.Role) == 1 {
		conv.Title = makeTitle(msg.Content)
	}
}

func countRole(msgs []Message, role string) int {
	n := 0
	for _, m := range msgs {
		if m.Role == role {
			n++
		}
	}
	return n
}

func makeTitle(content string) string {
	if utf8.RuneCountInString(content) <= titleLimit {
		return content
	}
	runes := []rune(content)
	return string(runes[:titleLimit]) + "..."
}

func generateConvID() string {
	return "conv-" + uuid.NewString()
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
