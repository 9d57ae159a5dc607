package models

import "time"

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Label returns the display name for the role
func (r Role) Label() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Status describes where a message is in its lifecycle
type Status string

const (
	// StatusComplete is a finished message: a user utterance, a notice,
	// or an assistant reply whose stream ended normally.
	StatusComplete Status = "complete"
	// StatusStreaming marks the single in-flight assistant placeholder.
	StatusStreaming Status = "streaming"
	// StatusFailed marks an assistant reply whose stream failed.
	StatusFailed Status = "failed"
	// StatusInterrupted marks a reply sealed before its stream ended.
	StatusInterrupted Status = "interrupted"
)

// Message represents a chat message in the transcript
type Message struct {
	ID        uint64
	Role      Role
	Content   string
	Status    Status
	CreatedAt time.Time
}

// InFlight reports whether the message still accepts fragments
func (m Message) InFlight() bool {
	return m.Status == StatusStreaming
}
