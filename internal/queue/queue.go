// Package queue holds the durable queue of writes issued while offline.
// Mutations are replayed in insertion order by the sync engine and removed
// only once the remote confirms them.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"gagebu/internal/storage"
)

// StorageKey is the named store the queue persists under.
const StorageKey = "pending-mutations"

const ResourceTransaction = "transaction"

const (
	MutationCreate         MutationType = "CREATE"
	MutationUpdate         MutationType = "UPDATE"
	MutationDelete         MutationType = "DELETE"
	MutationToggleFavorite MutationType = "TOGGLE_FAVORITE"
)

type MutationType string

// PendingMutation is one not-yet-confirmed write against a remote resource.
// LocalID is set only on CREATE mutations and names the optimistic record
// the server response will replace. CreatedAt is epoch milliseconds and is
// diagnostic only; ordering is by queue position.
type PendingMutation struct {
	ID        string          `json:"id"`
	Type      MutationType    `json:"type"`
	Resource  string          `json:"resource"`
	Payload   json.RawMessage `json:"payload"`
	LocalID   string          `json:"localId,omitempty"`
	CreatedAt int64           `json:"createdAt"`
}

type persistedState struct {
	Queue []PendingMutation `json:"queue"`
}

// Queue is the durable mutation queue. All access goes through its methods;
// the in-memory list and the persisted copy are updated inside the same call.
type Queue struct {
	mu    sync.Mutex
	kv    storage.KV
	items []PendingMutation

	nowFunc func() time.Time
	idFunc  func() string
}

// Open loads any persisted queue state from kv. A missing or corrupt record
// starts an empty queue rather than failing the process.
func Open(ctx context.Context, kv storage.KV) (*Queue, error) {
	q := &Queue{
		kv:      kv,
		nowFunc: time.Now,
		idFunc:  uuid.NewString,
	}

	raw, ok, err := kv.GetItem(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("load pending mutations: %w", err)
	}
	if ok {
		var state persistedState
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			slog.WarnContext(ctx, "Discarding corrupt pending mutation state", "error", err)
		} else {
			q.items = state.Queue
		}
	}

	if len(q.items) > 0 {
		slog.InfoContext(ctx, "Restored pending mutations", "count", len(q.items))
	}

	return q, nil
}

// Enqueue assigns a fresh id and timestamp, appends the mutation and persists
// the queue. It never fails: persistence errors are logged and the in-memory
// queue keeps the mutation.
func (q *Queue) Enqueue(ctx context.Context, m PendingMutation) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	m.ID = q.idFunc()
	m.CreatedAt = q.nowFunc().UnixMilli()
	q.items = append(q.items, m)
	q.persist(ctx)

	slog.DebugContext(ctx, "Mutation enqueued",
		"id", m.ID,
		"type", m.Type,
		"resource", m.Resource,
		"pending", len(q.items))

	return m.ID
}

// Dequeue removes the mutation with the given id; no-op if absent.
func (q *Queue) Dequeue(ctx context.Context, id string) {
	q.DequeueMany(ctx, []string{id})
}

// DequeueMany removes every mutation whose id is in ids in one state update,
// preserving the order of the remaining elements.
func (q *Queue) DequeueMany(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0]
	for _, m := range q.items {
		if _, gone := drop[m.ID]; !gone {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(q.items) {
		return
	}
	q.items = kept
	q.persist(ctx)
}

// ClearAll empties the queue unconditionally.
func (q *Queue) ClearAll(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = nil
	q.persist(ctx)
}

// Snapshot returns a copy of the queue in insertion order.
func (q *Queue) Snapshot() []PendingMutation {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]PendingMutation, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of pending mutations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// persist writes the current queue; callers hold q.mu.
func (q *Queue) persist(ctx context.Context) {
	raw, err := json.Marshal(persistedState{Queue: q.items})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to marshal pending mutations", "error", err)
		return
	}
	if err := q.kv.SetItem(ctx, StorageKey, string(raw)); err != nil {
		slog.ErrorContext(ctx, "Failed to persist pending mutations",
			"error", err,
			"pending", len(q.items))
	}
}
