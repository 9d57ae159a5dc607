// Package transcript holds the ordered, append-only log of chat messages and
// publishes immutable snapshots of it to observers.
package transcript

import (
	"errors"
	"sync"
	"time"

	"github.com/diogo/llamigo/internal/models"
)

// ErrNotEmpty is returned by Seed when the transcript already has messages
var ErrNotEmpty = errors.New("transcript is not empty")

// Store is a single-writer transcript. All mutations are serialized under
// one lock and each one publishes a new Snapshot.
//
// At most one assistant message is in flight at a time. It always sits at
// the newest position, because appending any other message seals it.
type Store struct {
	mu sync.Mutex

	sealed  []models.Message
	live    models.Message
	hasLive bool

	nextID  uint64
	version uint64
	closed  bool

	subs    map[int]chan Snapshot
	nextSub int

	now func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used to stamp messages
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty transcript
func New(opts ...Option) *Store {
	s := &Store{
		sealed: make([]models.Message, 0, 32),
		subs:   make(map[int]chan Snapshot),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append inserts a completed message at the newest position. An in-flight
// assistant message is sealed as interrupted first. It reports false when
// the store is closed.
func (s *Store) Append(role models.Role, content string) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return models.Message{}, false
	}
	if s.hasLive {
		s.live.Status = models.StatusInterrupted
		s.sealLocked()
	}

	msg := s.newMessageLocked(role, content, models.StatusComplete)
	s.sealed = append(s.sealed, msg)
	s.publishLocked()
	return msg, true
}

// Open appends an empty assistant placeholder and makes it the in-flight
// message.
func (s *Store) Open() (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return models.Message{}, false
	}
	if s.hasLive {
		s.live.Status = models.StatusInterrupted
		s.sealLocked()
	}

	s.live = s.newMessageLocked(models.RoleAssistant, "", models.StatusStreaming)
	s.hasLive = true
	s.publishLocked()
	return s.live, true
}

// MergeIntoLatestAssistant concatenates fragment onto the in-flight assistant
// message. With no message in flight, including on an empty transcript, it
// does nothing and reports false.
func (s *Store) MergeIntoLatestAssistant(fragment string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.hasLive {
		return false
	}
	return s.mergeLocked(fragment)
}

// Merge concatenates fragment onto the in-flight message only when it is the
// message identified by id.
func (s *Store) Merge(id uint64, fragment string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.hasLive || s.live.ID != id {
		return false
	}
	return s.mergeLocked(fragment)
}

// Finalize seals the in-flight message identified by id with the given
// terminal status. No further merges are accepted into it.
func (s *Store) Finalize(id uint64, status models.Status) bool {
	if status == models.StatusStreaming {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.hasLive || s.live.ID != id {
		return false
	}
	s.live.Status = status
	s.sealLocked()
	s.publishLocked()
	return true
}

// Fail writes reason into the in-flight message identified by id, marks it
// failed and seals it. Text already streamed is kept; reason goes after it
// so the body always ends with the failure description.
func (s *Store) Fail(id uint64, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.hasLive || s.live.ID != id {
		return false
	}
	if s.live.Content == "" {
		s.live.Content = reason
	} else if reason != "" {
		s.live.Content += "\n\n" + reason
	}
	s.live.Status = models.StatusFailed
	s.sealLocked()
	s.publishLocked()
	return true
}

// Seed fills an empty transcript with previously saved messages. Messages
// get fresh identities; any saved as streaming are restored as interrupted.
func (s *Store) Seed(msgs []models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	if len(s.sealed) > 0 || s.hasLive {
		return ErrNotEmpty
	}
	if len(msgs) == 0 {
		return nil
	}

	for _, m := range msgs {
		s.nextID++
		m.ID = s.nextID
		if m.Status == "" {
			m.Status = models.StatusComplete
		}
		if m.Status == models.StatusStreaming {
			m.Status = models.StatusInterrupted
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = s.now()
		}
		s.sealed = append(s.sealed, m)
	}
	s.publishLocked()
	return nil
}

// Snapshot returns the current state of the transcript
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers an observer. The channel holds at most one pending
// snapshot: a slow reader skips intermediate versions but always receives
// the newest one. The current snapshot is delivered immediately. The
// returned function unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		ch <- s.snapshotLocked()
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Close stops the store. Subscriber channels are closed and later mutations
// are dropped.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// Internal methods

func (s *Store) newMessageLocked(role models.Role, content string, status models.Status) models.Message {
	s.nextID++
	return models.Message{
		ID:        s.nextID,
		Role:      role,
		Content:   content,
		Status:    status,
		CreatedAt: s.now(),
	}
}

func (s *Store) mergeLocked(fragment string) bool {
	if fragment == "" {
		return true
	}
	s.live.Content += fragment
	s.publishLocked()
	return true
}

func (s *Store) sealLocked() {
	s.sealed = append(s.sealed, s.live)
	s.live = models.Message{}
	s.hasLive = false
}

func (s *Store) snapshotLocked() Snapshot {
	n := len(s.sealed)
	return Snapshot{
		Version: s.version,
		sealed:  s.sealed[:n:n],
		live:    s.live,
		hasLive: s.hasLive,
	}
}

func (s *Store) publishLocked() {
	s.version++
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		offer(ch, snap)
	}
}

// offer replaces whatever the subscriber has not read yet with snap.
// Callers hold s.mu, so no other publisher races for the slot.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
