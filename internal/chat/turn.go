package chat

import (
	"context"
	"sync"
)

// State is a position in a submission's lifecycle:
//
//	Idle -> UserAppended -> PlaceholderOpen -> Streaming -> {Completed | Failed}
//
// A submission still queued or streaming when the coordinator is unloaded
// ends in Cancelled.
type State int

const (
	StateIdle State = iota
	StateUserAppended
	StatePlaceholderOpen
	StateStreaming
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUserAppended:
		return "user-appended"
	case StatePlaceholderOpen:
		return "placeholder-open"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Turn tracks one submission
type Turn struct {
	seq    uint64
	prompt string

	mu      sync.Mutex
	state   State
	userID  uint64
	replyID uint64
	err     error
	done    chan struct{}
}

func newTurn(seq uint64, prompt string) *Turn {
	return &Turn{
		seq:    seq,
		prompt: prompt,
		done:   make(chan struct{}),
	}
}

// Prompt returns the submitted text
func (t *Turn) Prompt() string {
	return t.prompt
}

// State returns the current state
func (t *Turn) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// ReplyID returns the identity of the assistant message, or 0 while the
// turn is still queued.
func (t *Turn) ReplyID() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.replyID
}

// UserID returns the identity of the user message, or 0 while queued
func (t *Turn) UserID() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.userID
}

// Done is closed when the turn reaches a terminal state
func (t *Turn) Done() <-chan struct{} {
	return t.done
}

// Err returns the stream error of a failed turn
func (t *Turn) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Wait blocks until the turn ends or ctx is done
func (t *Turn) Wait(ctx context.Context) (State, error) {
	select {
	case <-t.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.state, t.err
	case <-ctx.Done():
		return t.State(), ctx.Err()
	}
}

func (t *Turn) opened(userID, replyID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.userID = userID
	t.replyID = replyID
	t.state = StatePlaceholderOpen
}

func (t *Turn) advance(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.Terminal() {
		t.state = s
	}
}

func (t *Turn) finish(s State, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return
	}
	t.state = s
	t.err = err
	close(t.done)
}
