// Package chat coordinates a conversation: it records what the user says,
// asks the engine for a reply and folds the streamed fragments into the
// transcript.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/diogo/llamigo/internal/engine"
	apierrors "github.com/diogo/llamigo/internal/errors"
	"github.com/diogo/llamigo/internal/models"
	"github.com/diogo/llamigo/internal/transcript"
)

// Recorder persists finished messages. Failures are logged and never reach
// the transcript.
type Recorder interface {
	Record(ctx context.Context, msgs ...models.Message) error
}

type jobKind int

const (
	jobSubmit jobKind = iota
	jobLoad
)

type job struct {
	kind jobKind

	turn *Turn

	ctx    context.Context
	path   string
	result chan error
}

// Coordinator forwards user text to an engine and streams the reply into a
// transcript. Submissions and loads run one at a time in call order, so
// only the newest assistant message is ever in flight.
type Coordinator struct {
	engine   engine.Engine
	store    *transcript.Store
	logger   *slog.Logger
	recorder Recorder

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	queue   []*job
	running bool
	idle    chan struct{}
	active  *Turn
	closed  bool
	seq     uint64

	wg         sync.WaitGroup
	unloadOnce sync.Once
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithRecorder persists the user and assistant messages of every turn
// that completes or fails. Notices are not recorded.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		c.recorder = r
	}
}

// New creates a coordinator over an engine and a transcript
func New(eng engine.Engine, store *transcript.Store, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		engine: eng,
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transcript returns the store the coordinator writes to
func (c *Coordinator) Transcript() *transcript.Store {
	return c.store
}

// Submit starts a turn for text. Empty or whitespace-only text is rejected
// with ErrEmptyPrompt and leaves the transcript untouched.
//
// When nothing else is running the user message and the empty assistant
// placeholder are appended before Submit returns. Otherwise the turn waits
// in line and both are appended when it reaches the front. Generation
// always happens in the background.
func (c *Coordinator) Submit(text string) (*Turn, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apierrors.ErrEmptyPrompt
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, apierrors.ErrClosed
	}

	c.seq++
	t := newTurn(c.seq, text)
	if !c.running && len(c.queue) == 0 {
		if !c.openLocked(t) {
			return nil, apierrors.ErrClosed
		}
	}
	c.enqueueLocked(&job{kind: jobSubmit, turn: t})
	return t, nil
}

// Load asks the engine to load the model at path and waits for the result.
// It runs after any earlier submissions. Success appends a notice to the
// transcript; failure appends the error text and also returns it.
func (c *Coordinator) Load(ctx context.Context, path string) error {
	select {
	case err := <-c.LoadAsync(ctx, path):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadAsync queues a load before returning, so submissions made afterwards
// wait for it. The channel receives the result once; nobody has to read
// it.
func (c *Coordinator) LoadAsync(ctx context.Context, path string) <-chan error {
	result := make(chan error, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		result <- apierrors.ErrClosed
		return result
	}
	c.enqueueLocked(&job{kind: jobLoad, ctx: ctx, path: path, result: result})
	return result
}

// Unload tears the coordinator down: it stops the running stream, drops
// queued submissions, then releases the engine. Fragments that arrive
// afterwards are discarded. An engine failure is logged and shown in the
// transcript, never returned. Later calls do nothing.
func (c *Coordinator) Unload(ctx context.Context) {
	c.unloadOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		pending := c.queue
		c.queue = nil
		active := c.active
		c.mu.Unlock()

		// Seal first so no merge can land between here and cancellation.
		if active != nil {
			if id := active.ReplyID(); id != 0 {
				c.store.Finalize(id, models.StatusInterrupted)
			}
		}
		c.cancel()

		for _, j := range pending {
			c.drop(j)
		}
		c.wg.Wait()

		if err := c.engine.Unload(ctx); err != nil {
			ue := asUnloadError(err)
			c.logger.Error("unload failed", "error", ue)
			c.notice(apierrors.Describe(ue))
			return
		}
		c.logger.Info("engine unloaded")
	})
}

// Wait blocks until the queue has drained or ctx is done
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Closed reports whether Unload has run
func (c *Coordinator) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Internal methods

func (c *Coordinator) enqueueLocked(j *job) {
	c.queue = append(c.queue, j)
	if c.running {
		return
	}
	c.running = true
	c.idle = make(chan struct{})
	c.wg.Add(1)
	go c.drain()
}

func (c *Coordinator) drain() {
	defer c.wg.Done()

	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.running = false
			c.active = nil
			close(c.idle)
			c.mu.Unlock()
			return
		}
		j := c.queue[0]
		c.queue[0] = nil
		c.queue = c.queue[1:]
		c.active = j.turn
		c.mu.Unlock()

		switch j.kind {
		case jobSubmit:
			c.runTurn(j.turn)
		case jobLoad:
			c.runLoad(j)
		}
	}
}

// openLocked appends the user message and the assistant placeholder.
// Callers hold c.mu, which keeps the pair contiguous.
func (c *Coordinator) openLocked(t *Turn) bool {
	user, ok := c.store.Append(models.RoleUser, t.prompt)
	if !ok {
		return false
	}
	t.advance(StateUserAppended)

	reply, ok := c.store.Open()
	if !ok {
		return false
	}
	t.opened(user.ID, reply.ID)
	return true
}

func (c *Coordinator) runTurn(t *Turn) {
	log := c.logger.With("turn", t.seq)

	if t.ReplyID() == 0 {
		c.mu.Lock()
		ok := !c.closed && c.openLocked(t)
		c.mu.Unlock()
		if !ok {
			t.finish(StateCancelled, apierrors.ErrClosed)
			return
		}
	}

	ctx, cancel := context.WithCancel(c.ctx)
	defer cancel()

	id := t.ReplyID()
	t.advance(StateStreaming)
	log.Debug("stream started", "prompt_len", len(t.prompt))
	start := time.Now()

	var streamErr error
	fragments := 0
	for fragment, err := range c.engine.Send(ctx, t.prompt) {
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			streamErr = err
			break
		}
		if c.store.Merge(id, fragment) {
			fragments++
		}
	}

	switch {
	case ctx.Err() != nil || c.Closed():
		c.store.Finalize(id, models.StatusInterrupted)
		t.finish(StateCancelled, nil)
		log.Info("stream cancelled", "fragments", fragments)

	case streamErr != nil:
		se := asStreamError(streamErr)
		c.store.Fail(id, apierrors.Describe(se))
		c.record(t)
		t.finish(StateFailed, se)
		log.Error("stream failed", "error", se, "fragments", fragments)

	default:
		c.store.Finalize(id, models.StatusComplete)
		c.record(t)
		t.finish(StateCompleted, nil)
		log.Info("stream completed", "fragments", fragments, "elapsed", time.Since(start))
	}
}

func (c *Coordinator) runLoad(j *job) {
	if err := j.ctx.Err(); err != nil {
		j.result <- err
		return
	}

	ctx, cancel := context.WithCancel(j.ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	if err := c.engine.Load(ctx, j.path); err != nil {
		if c.ctx.Err() != nil {
			j.result <- apierrors.ErrClosed
			return
		}
		le := asLoadError(err, j.path)
		c.logger.Error("load failed", "path", j.path, "error", le)
		c.notice(apierrors.Describe(le))
		j.result <- le
		return
	}

	c.logger.Info("model loaded", "path", j.path)
	c.notice("Loaded " + j.path)
	j.result <- nil
}

func (c *Coordinator) drop(j *job) {
	switch j.kind {
	case jobSubmit:
		if id := j.turn.ReplyID(); id != 0 {
			c.store.Finalize(id, models.StatusInterrupted)
		}
		j.turn.finish(StateCancelled, apierrors.ErrClosed)
	case jobLoad:
		j.result <- apierrors.ErrClosed
	}
}

// notice appends an informational assistant message. Notices describe the
// session, not the conversation, so they are never recorded.
func (c *Coordinator) notice(text string) {
	c.store.Append(models.RoleAssistant, text)
}

func (c *Coordinator) record(t *Turn) {
	if c.recorder == nil {
		return
	}
	snap := c.store.Snapshot()
	user, ok := snap.Find(t.UserID())
	if !ok {
		return
	}
	reply, ok := snap.Find(t.ReplyID())
	if !ok {
		return
	}
	c.persist(user, reply)
}

func (c *Coordinator) persist(msgs ...models.Message) {
	if c.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.recorder.Record(ctx, msgs...); err != nil {
		c.logger.Warn("failed to record history", "error", err)
	}
}

func asStreamError(err error) *apierrors.StreamError {
	var se *apierrors.StreamError
	if errors.As(err, &se) {
		return se
	}
	return apierrors.NewStreamError(err.Error(), err)
}

func asLoadError(err error, path string) *apierrors.LoadError {
	var le *apierrors.LoadError
	if errors.As(err, &le) {
		return le
	}
	return apierrors.NewLoadError(path, err.Error(), err)
}

func asUnloadError(err error) *apierrors.UnloadError {
	var ue *apierrors.UnloadError
	if errors.As(err, &ue) {
		return ue
	}
	return apierrors.NewUnloadError(err.Error(), err)
}
