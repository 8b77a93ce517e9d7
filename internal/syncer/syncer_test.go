package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"gagebu/internal/core"
	"gagebu/internal/queue"
	"gagebu/internal/storage"
)

type remoteCall struct {
	op   string
	id   string
	body any
}

type fakeRemote struct {
	mu    sync.Mutex
	calls []remoteCall

	createResult core.Transaction
	failOp       string
	failErr      error

	createStarted chan struct{}
	createRelease chan struct{}
}

func (f *fakeRemote) record(c remoteCall) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	if f.failOp == c.op {
		return f.failErr
	}
	return nil
}

func (f *fakeRemote) recorded() []remoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remoteCall(nil), f.calls...)
}

func (f *fakeRemote) CreateTransaction(ctx context.Context, body any) (core.Transaction, error) {
	if f.createStarted != nil {
		close(f.createStarted)
		f.createStarted = nil
		<-f.createRelease
	}
	if err := f.record(remoteCall{op: "create", body: body}); err != nil {
		return core.Transaction{}, err
	}
	return f.createResult, nil
}

func (f *fakeRemote) UpdateTransaction(ctx context.Context, id string, body any) (core.Transaction, error) {
	if err := f.record(remoteCall{op: "update", id: id, body: body}); err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{ID: id}, nil
}

func (f *fakeRemote) DeleteTransaction(ctx context.Context, id string) error {
	return f.record(remoteCall{op: "delete", id: id})
}

func (f *fakeRemote) ToggleFavorite(ctx context.Context, id string, isFavorite bool) (core.Transaction, error) {
	if err := f.record(remoteCall{op: "favorite", id: id, body: isFavorite}); err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{ID: id, IsFavorite: isFavorite}, nil
}

type fakeReconciler struct {
	mu      sync.Mutex
	localID string
	server  core.Transaction
}

func (f *fakeReconciler) ReplaceLocalTransaction(ctx context.Context, localID string, server core.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.localID = localID
	f.server = server
}

type fakeNotifier struct {
	flushed   int
	remaining int
	calls     int
}

func (f *fakeNotifier) PublishFlushCompleted(ctx context.Context, flushed, remaining int) error {
	f.calls++
	f.flushed = flushed
	f.remaining = remaining
	return nil
}

func openTestQueue(t *testing.T) *queue.Queue {
	t.Helper()
	q, err := queue.Open(context.Background(), storage.NewMemoryKV())
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	return q
}

func mustRaw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return b
}

func TestEngine_FlushEmptyQueue(t *testing.T) {
	remote := &fakeRemote{}
	engine := NewEngine(remote, openTestQueue(t), &fakeReconciler{})

	if err := engine.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(remote.recorded()) != 0 {
		t.Error("empty queue must not produce API calls")
	}
}

func TestEngine_FlushReplaysInOrder(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)
	remote := &fakeRemote{createResult: core.Transaction{ID: "server-9", Amount: 5000}}
	rec := &fakeReconciler{}
	engine := NewEngine(remote, q, rec)

	q.Enqueue(ctx, queue.PendingMutation{
		Type:     queue.MutationCreate,
		Resource: queue.ResourceTransaction,
		Payload:  mustRaw(t, map[string]any{"amount": 5000, "type": "expense"}),
		LocalID:  "local-1",
	})
	q.Enqueue(ctx, queue.PendingMutation{
		Type:     queue.MutationUpdate,
		Resource: queue.ResourceTransaction,
		Payload:  mustRaw(t, map[string]any{"id": "tx-2", "amount": 7000}),
	})
	q.Enqueue(ctx, queue.PendingMutation{
		Type:     queue.MutationDelete,
		Resource: queue.ResourceTransaction,
		Payload:  mustRaw(t, map[string]string{"id": "tx-3"}),
	})
	q.Enqueue(ctx, queue.PendingMutation{
		Type:     queue.MutationToggleFavorite,
		Resource: queue.ResourceTransaction,
		Payload:  mustRaw(t, map[string]any{"id": "tx-4", "is_favorite": true}),
	})

	if err := engine.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	calls := remote.recorded()
	if len(calls) != 4 {
		t.Fatalf("got %d API calls, want 4", len(calls))
	}
	wantOps := []string{"create", "update", "delete", "favorite"}
	for i, op := range wantOps {
		if calls[i].op != op {
			t.Errorf("call %d = %s, want %s", i, calls[i].op, op)
		}
	}

	update := calls[1]
	if update.id != "tx-2" {
		t.Errorf("update id = %q", update.id)
	}
	fields, ok := update.body.(map[string]any)
	if !ok {
		t.Fatalf("update body type %T", update.body)
	}
	if _, present := fields["id"]; present {
		t.Error("id must be stripped from the update body")
	}
	if fields["amount"] != float64(7000) {
		t.Errorf("update amount = %v", fields["amount"])
	}

	if calls[2].id != "tx-3" {
		t.Errorf("delete id = %q", calls[2].id)
	}
	if calls[3].id != "tx-4" || calls[3].body != true {
		t.Errorf("favorite call = %+v", calls[3])
	}

	if rec.localID != "local-1" || rec.server.ID != "server-9" {
		t.Errorf("reconciler got (%q, %+v)", rec.localID, rec.server)
	}
	if q.Len() != 0 {
		t.Errorf("queue still holds %d mutations", q.Len())
	}
}

func TestEngine_FlushStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)
	remote := &fakeRemote{failOp: "update", failErr: errors.New("conflict")}
	engine := NewEngine(remote, q, &fakeReconciler{})

	q.Enqueue(ctx, queue.PendingMutation{
		Type: queue.MutationDelete, Resource: queue.ResourceTransaction,
		Payload: mustRaw(t, map[string]string{"id": "tx-1"}),
	})
	q.Enqueue(ctx, queue.PendingMutation{
		Type: queue.MutationUpdate, Resource: queue.ResourceTransaction,
		Payload: mustRaw(t, map[string]any{"id": "tx-2", "amount": 100}),
	})
	q.Enqueue(ctx, queue.PendingMutation{
		Type: queue.MutationDelete, Resource: queue.ResourceTransaction,
		Payload: mustRaw(t, map[string]string{"id": "tx-3"}),
	})

	if err := engine.Flush(ctx); err == nil {
		t.Fatal("flush must report the replay failure")
	}

	calls := remote.recorded()
	if len(calls) != 2 {
		t.Fatalf("got %d API calls, want 2 (stop after failure)", len(calls))
	}

	remaining := q.Snapshot()
	if len(remaining) != 2 {
		t.Fatalf("queue holds %d mutations, want failed one plus successor", len(remaining))
	}
	if remaining[0].Type != queue.MutationUpdate || remaining[1].Type != queue.MutationDelete {
		t.Errorf("remaining order wrong: %+v", remaining)
	}
}

func TestEngine_FlushNotReentrant(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)
	remote := &fakeRemote{
		createStarted: make(chan struct{}),
		createRelease: make(chan struct{}),
	}
	started := remote.createStarted
	engine := NewEngine(remote, q, &fakeReconciler{})

	q.Enqueue(ctx, queue.PendingMutation{
		Type: queue.MutationCreate, Resource: queue.ResourceTransaction,
		Payload: mustRaw(t, map[string]any{"amount": 1}),
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.Flush(ctx)
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first flush never started")
	}

	if !engine.IsFlushing() {
		t.Error("IsFlushing must report the running flush")
	}
	if err := engine.Flush(ctx); err != nil {
		t.Fatalf("concurrent Flush: %v", err)
	}
	if got := len(remote.recorded()); got != 0 {
		t.Errorf("concurrent flush made %d API calls before release", got)
	}

	close(remote.createRelease)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("first flush never finished")
	}

	if engine.IsFlushing() {
		t.Error("flushing flag must be released")
	}
	if len(remote.recorded()) != 1 {
		t.Errorf("got %d API calls, want the single original create", len(remote.recorded()))
	}
}

func TestEngine_FlushDropsUnknownMutations(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)
	remote := &fakeRemote{}
	engine := NewEngine(remote, q, &fakeReconciler{})

	q.Enqueue(ctx, queue.PendingMutation{
		Type: "REORDER", Resource: queue.ResourceTransaction,
		Payload: mustRaw(t, map[string]string{"id": "tx-1"}),
	})
	q.Enqueue(ctx, queue.PendingMutation{
		Type: queue.MutationDelete, Resource: "category",
		Payload: mustRaw(t, map[string]string{"id": "cat-1"}),
	})

	if err := engine.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(remote.recorded()) != 0 {
		t.Error("unknown mutations must not reach the API")
	}
	if q.Len() != 0 {
		t.Error("unknown mutations must be dropped from the queue")
	}
}

func TestEngine_FlushNotifies(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t)
	notifier := &fakeNotifier{}
	engine := NewEngine(&fakeRemote{}, q, &fakeReconciler{}, WithNotifier(notifier))

	q.Enqueue(ctx, queue.PendingMutation{
		Type: queue.MutationDelete, Resource: queue.ResourceTransaction,
		Payload: mustRaw(t, map[string]string{"id": "tx-1"}),
	})
	q.Enqueue(ctx, queue.PendingMutation{
		Type: queue.MutationDelete, Resource: queue.ResourceTransaction,
		Payload: mustRaw(t, map[string]string{"id": "tx-2"}),
	})

	if err := engine.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if notifier.calls != 1 || notifier.flushed != 2 || notifier.remaining != 0 {
		t.Errorf("notifier = %+v", notifier)
	}

	if err := engine.Flush(ctx); err != nil {
		t.Fatalf("second Flush: %v", err)
	}
	if notifier.calls != 1 {
		t.Error("empty flush must not publish an event")
	}
}
