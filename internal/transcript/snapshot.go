package transcript

import (
	"iter"

	"github.com/diogo/llamigo/internal/models"
)

// Snapshot is an immutable view of the transcript at one version.
//
// Sealed messages are shared with the store's backing array: they are never
// written again once sealed, and the slice is length-capped so later
// appends cannot show through. The in-flight message, if any, is held by
// value.
type Snapshot struct {
	Version uint64

	sealed  []models.Message
	live    models.Message
	hasLive bool
}

// Len returns the number of messages
func (s Snapshot) Len() int {
	if s.hasLive {
		return len(s.sealed) + 1
	}
	return len(s.sealed)
}

// At returns the i-th message, oldest first
func (s Snapshot) At(i int) models.Message {
	if i == len(s.sealed) && s.hasLive {
		return s.live
	}
	return s.sealed[i]
}

// Messages returns a copy of all messages, oldest first
func (s Snapshot) Messages() []models.Message {
	out := make([]models.Message, 0, s.Len())
	out = append(out, s.sealed...)
	if s.hasLive {
		out = append(out, s.live)
	}
	return out
}

// Newest iterates messages newest first, the order a chat list displays them
func (s Snapshot) Newest() iter.Seq[models.Message] {
	return func(yield func(models.Message) bool) {
		for i := s.Len() - 1; i >= 0; i-- {
			if !yield(s.At(i)) {
				return
			}
		}
	}
}

// Latest returns the newest message
func (s Snapshot) Latest() (models.Message, bool) {
	if s.Len() == 0 {
		return models.Message{}, false
	}
	return s.At(s.Len() - 1), true
}

// InFlight returns the message currently receiving fragments
func (s Snapshot) InFlight() (models.Message, bool) {
	return s.live, s.hasLive
}

// Find returns the message with the given identity
func (s Snapshot) Find(id uint64) (models.Message, bool) {
	if s.hasLive && s.live.ID == id {
		return s.live, true
	}
	for i := len(s.sealed) - 1; i >= 0; i-- {
		if s.sealed[i].ID == id {
			return s.sealed[i], true
		}
	}
	return models.Message{}, false
}
