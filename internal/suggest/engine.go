package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"reup-suggest-backend/internal/logging"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// State is the engine's observable output. Suggestions is always a fresh
// copy, so callers may keep or modify it.
type State struct {
	Status      Status
	Suggestions []Suggestion
	Seq         uint64
	RequestID   string
	Err         error
	UpdatedAt   time.Time
}

func (s State) IsLoading() bool {
	return s.Status == StatusLoading
}

type EngineConfig struct {
	Limit   int
	Timeout time.Duration
	Catalog *Catalog
	Usage   UsageStore
	Logger  *slog.Logger
	Now     func() time.Time
}

// Engine owns the suggestion state for one user. Every generation gets a
// sequence number; starting a new one cancels the previous run and only the
// latest run may write the state.
type Engine struct {
	limit   int
	timeout time.Duration
	catalog *Catalog
	usage   UsageStore
	log     *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	seq     uint64
	cancel  context.CancelFunc
	state   State
	known   map[string]struct{}
	changed chan struct{}
	closed  bool
}

func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		limit:   cfg.Limit,
		timeout: cfg.Timeout,
		catalog: cfg.Catalog,
		usage:   cfg.Usage,
		log:     cfg.Logger,
		now:     cfg.Now,
		state:   State{Status: StatusIdle},
		known:   map[string]struct{}{},
		changed: make(chan struct{}),
	}
	if e.limit <= 0 {
		e.limit = DefaultLimit
	}
	if e.timeout <= 0 {
		e.timeout = 3 * time.Second
	}
	if e.log == nil {
		e.log = logging.Nop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) Suggestions() []Suggestion {
	return e.State().Suggestions
}

func (e *Engine) IsLoading() bool {
	return e.State().IsLoading()
}

// Changed returns a channel that is closed on the next state transition.
func (e *Engine) Changed() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.changed
}

// Start launches a generation for req and returns its sequence number
// without waiting. Any generation still in flight is cancelled and its
// result dropped. The run is detached from ctx cancellation but keeps its
// values; it is bounded by the engine timeout instead.
func (e *Engine) Start(ctx context.Context, req Request) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}

	e.seq++
	seq := e.seq
	reqID := uuid.NewString()

	e.known = make(map[string]struct{}, len(req.Tasks))
	for _, t := range req.Tasks {
		e.known[t.ID] = struct{}{}
	}

	if e.closed {
		e.setLocked(State{Status: StatusFailed, Seq: seq, RequestID: reqID, Err: context.Canceled})
		return seq
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	e.cancel = cancel

	prev := e.state.Suggestions
	e.setLocked(State{Status: StatusLoading, Suggestions: prev, Seq: seq, RequestID: reqID})

	e.log.Debug("suggestion generation started",
		"seq", seq, "request_id", reqID, "tasks", len(req.Tasks), "categories", len(req.Categories))

	go e.run(runCtx, cancel, seq, reqID, req)
	return seq
}

// Generate starts a generation and waits for it. If a newer generation
// replaces it first, the latest state is returned with ErrSuperseded.
// A failed generation is not an error here: it shows up as StatusFailed.
func (e *Engine) Generate(ctx context.Context, req Request) (State, error) {
	seq := e.Start(ctx, req)
	return e.Wait(ctx, seq)
}

// Wait blocks until generation seq resolves, is superseded, or ctx ends.
func (e *Engine) Wait(ctx context.Context, seq uint64) (State, error) {
	for {
		e.mu.Lock()
		st := e.snapshotLocked()
		latest := e.seq
		ch := e.changed
		e.mu.Unlock()

		if latest != seq {
			return st, ErrSuperseded
		}
		if st.Seq == seq && !st.IsLoading() {
			return st, nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// LearnFromTask reports that the user accepted a suggested task. Ids that
// were not part of the last generation input are logged and ignored. It
// never touches the current suggestions and reports whether the event was
// forwarded to the usage store.
func (e *Engine) LearnFromTask(ctx context.Context, taskID string) bool {
	e.mu.Lock()
	_, ok := e.known[taskID]
	e.mu.Unlock()

	if !ok {
		e.log.Warn("learn from task ignored", "task_id", taskID, "error", ErrUnknownTask)
		return false
	}
	if e.usage == nil {
		return false
	}
	if err := e.usage.RecordUsage(ctx, taskID, e.now()); err != nil {
		e.log.Warn("record usage failed", "task_id", taskID, "error", err)
		return false
	}
	return true
}

// Close cancels any in-flight generation. Later calls to Start fail fast.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

func (e *Engine) run(ctx context.Context, cancel context.CancelFunc, seq uint64, reqID string, req Request) {
	defer cancel()

	started := time.Now()
	out, err := e.compute(ctx, req)

	e.mu.Lock()
	defer e.mu.Unlock()

	if seq != e.seq {
		e.log.Debug("stale suggestion result dropped", "seq", seq, "latest", e.seq, "request_id", reqID)
		return
	}
	e.cancel = nil

	if err != nil {
		e.log.Warn("suggestion generation failed",
			"seq", seq, "request_id", reqID, "error", err, "duration", time.Since(started))
		e.setLocked(State{Status: StatusFailed, Seq: seq, RequestID: reqID, Err: err})
		return
	}

	e.log.Info("suggestions generated",
		"seq", seq, "request_id", reqID, "count", len(out), "duration", time.Since(started))
	e.setLocked(State{Status: StatusReady, Suggestions: out, Seq: seq, RequestID: reqID})
}

func (e *Engine) compute(ctx context.Context, req Request) (out []Suggestion, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("generation panicked: %v", r)
		}
	}()

	if req.Usage == nil && e.usage != nil && len(req.Tasks) > 0 {
		stats, uerr := e.usage.UsageStats(ctx, req.TaskIDs())
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case uerr != nil:
			// scoring still works without counters
			e.log.Warn("usage stats unavailable", "error", uerr)
		default:
			req.Usage = stats
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if req.Now.IsZero() {
		req.Now = e.now()
	}
	out, err = Generate(req, Options{Limit: e.limit, Catalog: e.catalog})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) setLocked(st State) {
	st.UpdatedAt = e.now()
	if st.Suggestions == nil {
		st.Suggestions = []Suggestion{}
	}
	e.state = st
	close(e.changed)
	e.changed = make(chan struct{})
}

func (e *Engine) snapshotLocked() State {
	st := e.state
	st.Suggestions = append([]Suggestion(nil), e.state.Suggestions...)
	if st.Suggestions == nil {
		st.Suggestions = []Suggestion{}
	}
	return st
}
