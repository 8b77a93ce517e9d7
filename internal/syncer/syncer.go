package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"gagebu/internal/core"
	"gagebu/internal/queue"
)

// RemoteAPI is the slice of the backend client the engine replays against.
type RemoteAPI interface {
	CreateTransaction(ctx context.Context, body any) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, body any) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	ToggleFavorite(ctx context.Context, id string, isFavorite bool) (core.Transaction, error)
}

// MutationQueue is the persisted queue the engine drains.
type MutationQueue interface {
	Snapshot() []queue.PendingMutation
	DequeueMany(ctx context.Context, ids []string)
}

// Reconciler swaps an optimistic placeholder for the record the server returned.
type Reconciler interface {
	ReplaceLocalTransaction(ctx context.Context, localID string, server core.Transaction)
}

// Notifier is told when a flush drained at least one mutation. Optional.
type Notifier interface {
	PublishFlushCompleted(ctx context.Context, flushed, remaining int) error
}

// Engine replays queued mutations against the backend in the order
// they were enqueued. A flush stops at the first failure so that later
// mutations never overtake an earlier one that has not been applied.
type Engine struct {
	api        RemoteAPI
	queue      MutationQueue
	reconciler Reconciler
	notifier   Notifier
	logger     *slog.Logger

	mu       sync.Mutex
	flushing bool
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(api RemoteAPI, q MutationQueue, r Reconciler, opts ...Option) *Engine {
	e := &Engine{
		api:        api,
		queue:      q,
		reconciler: r,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsFlushing reports whether a flush is currently running.
func (e *Engine) IsFlushing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushing
}

// Flush drains the pending queue sequentially. If a flush is already
// running the call returns immediately without queuing a second run.
// Mutations replayed before the first failure are removed from the
// queue in a single batch; the failed one and everything after it stay
// queued for the next flush.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	if e.flushing {
		e.mu.Unlock()
		e.logger.DebugContext(ctx, "flush already in progress, skipping")
		return nil
	}
	e.flushing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.flushing = false
		e.mu.Unlock()
	}()

	mutations := e.queue.Snapshot()
	if len(mutations) == 0 {
		return nil
	}

	e.logger.InfoContext(ctx, "flushing pending mutations", "count", len(mutations))

	flushed := make([]string, 0, len(mutations))
	var firstErr error
	for _, m := range mutations {
		if err := e.process(ctx, m); err != nil {
			e.logger.WarnContext(ctx, "mutation replay failed, stopping flush",
				"mutation_id", m.ID, "type", m.Type, "error", err)
			firstErr = fmt.Errorf("replay mutation %s: %w", m.ID, err)
			break
		}
		flushed = append(flushed, m.ID)
	}

	if len(flushed) > 0 {
		e.queue.DequeueMany(ctx, flushed)
		if e.notifier != nil {
			remaining := len(mutations) - len(flushed)
			if err := e.notifier.PublishFlushCompleted(ctx, len(flushed), remaining); err != nil {
				e.logger.WarnContext(ctx, "failed to publish flush event", "error", err)
			}
		}
	}

	e.logger.InfoContext(ctx, "flush finished",
		"flushed", len(flushed), "remaining", len(mutations)-len(flushed))
	return firstErr
}

func (e *Engine) process(ctx context.Context, m queue.PendingMutation) error {
	if m.Resource != queue.ResourceTransaction {
		e.logger.WarnContext(ctx, "dropping mutation for unknown resource",
			"mutation_id", m.ID, "resource", m.Resource)
		return nil
	}

	switch m.Type {
	case queue.MutationCreate:
		server, err := e.api.CreateTransaction(ctx, json.RawMessage(m.Payload))
		if err != nil {
			return err
		}
		if m.LocalID != "" && e.reconciler != nil {
			e.reconciler.ReplaceLocalTransaction(ctx, m.LocalID, server)
		}
		return nil

	case queue.MutationUpdate:
		var fields map[string]any
		if err := json.Unmarshal(m.Payload, &fields); err != nil {
			return fmt.Errorf("decode update payload: %w", err)
		}
		id, ok := fields["id"].(string)
		if !ok || id == "" {
			return fmt.Errorf("update payload has no id")
		}
		delete(fields, "id")
		_, err := e.api.UpdateTransaction(ctx, id, fields)
		return err

	case queue.MutationDelete:
		var payload struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(m.Payload, &payload); err != nil {
			return fmt.Errorf("decode delete payload: %w", err)
		}
		if payload.ID == "" {
			return fmt.Errorf("delete payload has no id")
		}
		return e.api.DeleteTransaction(ctx, payload.ID)

	case queue.MutationToggleFavorite:
		var payload struct {
			ID         string `json:"id"`
			IsFavorite bool   `json:"is_favorite"`
		}
		if err := json.Unmarshal(m.Payload, &payload); err != nil {
			return fmt.Errorf("decode favorite payload: %w", err)
		}
		if payload.ID == "" {
			return fmt.Errorf("favorite payload has no id")
		}
		_, err := e.api.ToggleFavorite(ctx, payload.ID, payload.IsFavorite)
		return err

	default:
		e.logger.WarnContext(ctx, "dropping mutation of unknown type",
			"mutation_id", m.ID, "type", m.Type)
		return nil
	}
}
