package thread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/koopa0/assistant/internal/chunk"
	"github.com/koopa0/assistant/internal/model"
)

// Runner drives one vendor generation over a turn. Implemented by the
// processor package; declared here so the service depends only on the
// behavior it needs.
type Runner interface {
	// Name returns the vendor identifier the runner serves.
	Name() string

	// Run consumes the vendor stream, emitting chunks through emit in
	// production order. emit blocks for backpressure and fails when the
	// turn is cancelled.
	Run(ctx context.Context, turn *Turn, emit func(chunk.Chunk) error) (chunk.Statistics, error)
}

// Storage is what the service needs from persistence.
type Storage interface {
	Save(ctx context.Context, t *Thread) error
	Get(ctx context.Context, id uuid.UUID) (*Thread, error)
}

// defaultBufferSize bounds the chunk channel handed to consumers. A slow
// consumer stalls the producer rather than losing chunks.
const defaultBufferSize = 64

// Service owns thread lifecycle and turn execution: creating and loading
// threads with ownership checks, gating each thread to one turn at a
// time, and persisting state at turn boundaries.
type Service struct {
	store    Storage
	registry *model.Registry
	runners  map[string]Runner
	buffer   int
	logger   *slog.Logger

	mu     sync.Mutex
	active map[uuid.UUID]context.CancelFunc
}

// NewService creates a Service. runners are indexed by vendor name;
// buffer <= 0 uses the default.
func NewService(store Storage, registry *model.Registry, runners []Runner, buffer int, logger *slog.Logger) *Service {
	if buffer <= 0 {
		buffer = defaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	byVendor := make(map[string]Runner, len(runners))
	for _, r := range runners {
		byVendor[r.Name()] = r
	}
	return &Service{
		store:    store,
		registry: registry,
		runners:  byVendor,
		buffer:   buffer,
		logger:   logger,
		active:   make(map[uuid.UUID]context.CancelFunc),
	}
}

// Create starts a new thread for the user. A requested model the user may
// not use resolves to the default model; creation never fails on model
// choice alone.
func (s *Service) Create(ctx context.Context, userID, requestedModel string, roles []string) (*Thread, error) {
	m, ok := s.registry.Resolve(requestedModel, roles)
	if !ok {
		return nil, fmt.Errorf("no models configured")
	}
	if requestedModel != "" && m.ID != requestedModel {
		s.logger.Info("requested model resolved to fallback",
			"requested", requestedModel, "resolved", m.ID)
	}

	now := time.Now().UTC()
	t := &Thread{
		ID:        uuid.New(),
		UserID:    userID,
		Model:     m.ID,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("created thread", "thread_id", t.ID, "model", t.Model)
	return t, nil
}

// Load retrieves a thread and verifies ownership. Returns ErrNotFound for
// unknown IDs and ErrForbidden when the thread belongs to another user.
func (s *Service) Load(ctx context.Context, id uuid.UUID, userID string) (*Thread, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, fmt.Errorf("thread %s: %w", id, ErrForbidden)
	}
	return t, nil
}

// Save persists the thread.
func (s *Service) Save(ctx context.Context, t *Thread) error {
	return s.store.Save(ctx, t)
}

// Cancel stops the thread's running turn, if any. Reports whether a turn
// was running. The cancelled turn persists its partial progress.
func (s *Service) Cancel(threadID uuid.UUID) bool {
	s.mu.Lock()
	cancel, ok := s.active[threadID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// TurnRequest is the input to one turn.
type TurnRequest struct {
	// Message is the user message opening the turn.
	Message Message

	// Files are attachments forwarded to the vendor alongside Message.
	Files []Block

	// System is the base system prompt for the turn.
	System string
}

// RunTurn starts one turn on the thread and returns the chunk stream.
// The channel is closed when the turn ends; the caller must drain it.
// A second turn on the same thread is refused with ErrTurnInProgress
// while the first is running.
func (s *Service) RunTurn(ctx context.Context, t *Thread, req TurnRequest) (<-chan chunk.Chunk, error) {
	m, ok := s.registry.Get(t.Model)
	if !ok {
		return nil, fmt.Errorf("thread %s references unknown model %q", t.ID, t.Model)
	}
	runner, ok := s.runners[m.Vendor]
	if !ok {
		return nil, fmt.Errorf("no runner for vendor %q", m.Vendor)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if _, busy := s.active[t.ID]; busy {
		s.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("thread %s: %w", t.ID, ErrTurnInProgress)
	}
	s.active[t.ID] = cancel
	s.mu.Unlock()

	t.Status = StatusActive
	t.AppendMessage(req.Message)
	turn := NewTurn(t, req.System, req.Files)

	out := make(chan chunk.Chunk, s.buffer)
	go s.run(ctx, runner, turn, out)
	return out, nil
}

// run executes the turn and settles the thread state afterwards.
func (s *Service) run(ctx context.Context, runner Runner, turn *Turn, out chan<- chunk.Chunk) {
	t := turn.Thread
	defer close(out)
	defer func() {
		s.mu.Lock()
		if cancel, ok := s.active[t.ID]; ok {
			cancel()
			delete(s.active, t.ID)
		}
		s.mu.Unlock()
	}()

	// emit records a thinking item only after the chunk is accepted, so
	// the persisted history never runs ahead of what the consumer saw.
	emit := func(c chunk.Chunk) error {
		select {
		case out <- c:
			s.record(turn, c)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	_ = emit(chunk.Lifecycle(chunk.StageTurnStarted))
	stats, err := runner.Run(ctx, turn, emit)
	turn.Finish()
	t.UpdatedAt = time.Now().UTC()

	var authErr *AuthRequiredError
	switch {
	case err == nil:
		t.Status = StatusActive
		_ = emit(chunk.Completion(stats))

	case ctx.Err() != nil:
		// Cancellation is not a failure: partial progress stays, no error
		// chunk, the thread remains usable.
		t.Status = StatusActive
		s.logger.Info("turn cancelled", "thread_id", t.ID)

	case errors.As(err, &authErr):
		// The runner already emitted the auth_required chunk.
		t.Status = StatusActive
		s.logger.Warn("turn needs re-authentication",
			"thread_id", t.ID, "server", authErr.Server)

	default:
		t.Status = StatusErrored
		s.logger.Error("turn failed", "thread_id", t.ID, "error", err)
		_ = emit(chunk.Error(err.Error()))
	}

	// Persist with a fresh context so cancellation does not lose the
	// partial state it is supposed to keep.
	if saveErr := s.store.Save(context.WithoutCancel(ctx), t); saveErr != nil {
		s.logger.Error("persisting turn failed", "thread_id", t.ID, "error", saveErr)
		if err == nil {
			_ = emit(chunk.Error("the answer was generated but could not be saved"))
		}
	}

	_ = emit(chunk.Lifecycle(chunk.StageTurnFinished))
}

// record mirrors stream chunks into the thread's thinking history. One
// tool_call item per call: only the opening status records, so the item
// count stays equal to the number of tool sessions.
func (s *Service) record(turn *Turn, c chunk.Chunk) {
	switch c.Type {
	case chunk.TypeThinking:
		turn.Record(ItemThinking, c.Payload, sessionIndex(c), c.Metadata[chunk.KeyServer])
	case chunk.TypeThinkingResult:
		turn.Record(ItemThinkingResult, c.Payload, sessionIndex(c), c.Metadata[chunk.KeyServer])
	case chunk.TypeToolCall:
		if c.Metadata[chunk.KeyStatus] == chunk.StatusStarting {
			turn.Record(ItemToolCall, c.Payload, sessionIndex(c), c.Metadata[chunk.KeyServer])
		}
	case chunk.TypeToolResult:
		turn.Record(ItemToolResult, c.Payload, sessionIndex(c), c.Metadata[chunk.KeyServer])
	}
}

// sessionIndex extracts the tool session index a chunk is tagged with.
func sessionIndex(c chunk.Chunk) *int {
	raw, ok := c.Metadata[chunk.KeySession]
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}
