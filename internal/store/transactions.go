// Package store holds the locally-visible materialized state for each remote
// resource. Writes go straight to the backend when online and become
// optimistic local edits plus queued mutations when offline.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"gagebu/internal/core"
	"gagebu/internal/queue"
	"gagebu/internal/storage"
)

// TransactionsKey is the named store the visible collection persists under.
const TransactionsKey = "transactions"

// TransactionAPI is the slice of the remote client the store needs.
type TransactionAPI interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, body any) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, body any) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	ToggleFavorite(ctx context.Context, id string, isFavorite bool) (core.Transaction, error)
}

type persistedTransactions struct {
	Transactions []core.Transaction `json:"transactions"`
}

// TransactionStore owns the visible transaction collection. The caller
// supplies isOnline per write; the store never consults the monitor itself.
type TransactionStore struct {
	mu           sync.Mutex
	api          TransactionAPI
	pending      *queue.Queue
	kv           storage.KV
	transactions []core.Transaction
	loading      bool

	nowFunc func() time.Time
	idFunc  func() string
}

// OpenTransactionStore restores the persisted collection from kv.
func OpenTransactionStore(ctx context.Context, api TransactionAPI, pending *queue.Queue, kv storage.KV) (*TransactionStore, error) {
	s := &TransactionStore{
		api:     api,
		pending: pending,
		kv:      kv,
		nowFunc: time.Now,
		idFunc:  uuid.NewString,
	}

	raw, ok, err := kv.GetItem(ctx, TransactionsKey)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	if ok {
		var state persistedTransactions
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			slog.WarnContext(ctx, "Discarding corrupt transaction state", "error", err)
		} else {
			s.transactions = state.Transactions
		}
	}

	return s, nil
}

// Fetch replaces the whole collection with the server response. Online-only:
// errors bubble to the caller and leave the current list untouched.
func (s *TransactionStore) Fetch(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	transactions, err := s.api.ListTransactions(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		return fmt.Errorf("fetch transactions: %w", err)
	}

	s.transactions = transactions
	s.persist(ctx)
	return nil
}

// Create writes a new transaction. Online: direct API call, server record
// prepended. Offline: optimistic placeholder prepended and a CREATE mutation
// enqueued carrying the placeholder id as localId.
func (s *TransactionStore) Create(ctx context.Context, isOnline bool, in core.TransactionCreate) (core.Transaction, error) {
	if isOnline {
		tx, err := s.api.CreateTransaction(ctx, in)
		if err != nil {
			return core.Transaction{}, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.transactions = append([]core.Transaction{tx}, s.transactions...)
		s.persist(ctx)
		return tx, nil
	}

	now := s.nowFunc()
	placeholder := core.Transaction{
		ID:           s.idFunc(),
		UserID:       "",
		CategoryID:   in.CategoryID,
		Type:         in.Type,
		Amount:       in.Amount,
		Description:  in.Description,
		TransactedAt: in.TransactedAt,
		CreatedAt:    now,
		UpdatedAt:    now,
		IsFavorite:   false,
		PaymentType:  in.PaymentType,
		UserCardID:   in.UserCardID,
		Pending:      true,
	}

	s.mu.Lock()
	s.transactions = append([]core.Transaction{placeholder}, s.transactions...)
	s.persist(ctx)
	s.mu.Unlock()

	payload, err := json.Marshal(in)
	if err != nil {
		// Marshal of a plain struct cannot realistically fail; log and keep
		// the optimistic record so the user sees the entry.
		slog.ErrorContext(ctx, "Failed to marshal create payload", "error", err)
		return placeholder, nil
	}
	s.pending.Enqueue(ctx, queue.PendingMutation{
		Type:     queue.MutationCreate,
		Resource: queue.ResourceTransaction,
		Payload:  payload,
		LocalID:  placeholder.ID,
	})

	return placeholder, nil
}

// Update edits a transaction. Offline: the partial update merges into the
// matching local record and an UPDATE mutation (id + changed fields) is
// enqueued.
func (s *TransactionStore) Update(ctx context.Context, isOnline bool, id string, in core.TransactionUpdate) error {
	if isOnline {
		updated, err := s.api.UpdateTransaction(ctx, id, in)
		if err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.replaceByID(id, updated)
		s.persist(ctx)
		return nil
	}

	s.mu.Lock()
	for i := range s.transactions {
		if s.transactions[i].ID != id {
			continue
		}
		applyUpdate(&s.transactions[i], in)
		s.transactions[i].UpdatedAt = s.nowFunc()
		break
	}
	s.persist(ctx)
	s.mu.Unlock()

	payload, err := updatePayload(id, in)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to marshal update payload", "error", err, "id", id)
		return nil
	}
	s.pending.Enqueue(ctx, queue.PendingMutation{
		Type:     queue.MutationUpdate,
		Resource: queue.ResourceTransaction,
		Payload:  payload,
	})

	return nil
}

// Delete removes a transaction. Offline: removed locally at once, DELETE
// mutation enqueued.
func (s *TransactionStore) Delete(ctx context.Context, isOnline bool, id string) error {
	if isOnline {
		if err := s.api.DeleteTransaction(ctx, id); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.removeByID(id)
	s.persist(ctx)
	s.mu.Unlock()

	if !isOnline {
		payload, _ := json.Marshal(struct {
			ID string `json:"id"`
		}{ID: id})
		s.pending.Enqueue(ctx, queue.PendingMutation{
			Type:     queue.MutationDelete,
			Resource: queue.ResourceTransaction,
			Payload:  payload,
		})
	}

	return nil
}

// ToggleFavorite flips the favorite flag. Offline: flipped locally, a
// TOGGLE_FAVORITE mutation (id + flag) enqueued.
func (s *TransactionStore) ToggleFavorite(ctx context.Context, isOnline bool, id string, isFavorite bool) error {
	if isOnline {
		updated, err := s.api.ToggleFavorite(ctx, id, isFavorite)
		if err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.replaceByID(id, updated)
		s.persist(ctx)
		return nil
	}

	s.mu.Lock()
	for i := range s.transactions {
		if s.transactions[i].ID == id {
			s.transactions[i].IsFavorite = isFavorite
			s.transactions[i].UpdatedAt = s.nowFunc()
			break
		}
	}
	s.persist(ctx)
	s.mu.Unlock()

	payload, _ := json.Marshal(struct {
		ID         string `json:"id"`
		IsFavorite bool   `json:"is_favorite"`
	}{ID: id, IsFavorite: isFavorite})
	s.pending.Enqueue(ctx, queue.PendingMutation{
		Type:     queue.MutationToggleFavorite,
		Resource: queue.ResourceTransaction,
		Payload:  payload,
	})

	return nil
}

// ReplaceLocalTransaction substitutes, in place, the record whose id equals
// localID with the server-confirmed record. Used by the sync engine after a
// CREATE mutation succeeds; the list order is untouched.
func (s *TransactionStore) ReplaceLocalTransaction(ctx context.Context, localID string, server core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.transactions {
		if s.transactions[i].ID == localID {
			s.transactions[i] = server
			s.persist(ctx)
			slog.InfoContext(ctx, "Reconciled optimistic transaction",
				"local_id", localID,
				"server_id", server.ID)
			return
		}
	}
}

// Transactions returns a copy of the visible collection.
func (s *TransactionStore) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

// IsLoading reports whether a fetch is in flight.
func (s *TransactionStore) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// replaceByID swaps the record with the matching id; callers hold s.mu.
func (s *TransactionStore) replaceByID(id string, tx core.Transaction) {
	for i := range s.transactions {
		if s.transactions[i].ID == id {
			s.transactions[i] = tx
			return
		}
	}
}

// removeByID drops the record with the matching id; callers hold s.mu.
func (s *TransactionStore) removeByID(id string) {
	for i := range s.transactions {
		if s.transactions[i].ID == id {
			s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
			return
		}
	}
}

// persist writes the visible collection; callers hold s.mu.
func (s *TransactionStore) persist(ctx context.Context) {
	raw, err := json.Marshal(persistedTransactions{Transactions: s.transactions})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to marshal transactions", "error", err)
		return
	}
	if err := s.kv.SetItem(ctx, TransactionsKey, string(raw)); err != nil {
		slog.ErrorContext(ctx, "Failed to persist transactions", "error", err)
	}
}

func applyUpdate(tx *core.Transaction, in core.TransactionUpdate) {
	if in.Type != nil {
		tx.Type = *in.Type
	}
	if in.Amount != nil {
		tx.Amount = *in.Amount
	}
	if in.Description != nil {
		tx.Description = *in.Description
	}
	if in.CategoryID != nil {
		tx.CategoryID = in.CategoryID
	}
	if in.TransactedAt != nil {
		tx.TransactedAt = *in.TransactedAt
	}
}

// updatePayload is the UPDATE mutation body: resource id plus changed fields.
func updatePayload(id string, in core.TransactionUpdate) (json.RawMessage, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["id"] = id
	return json.Marshal(fields)
}
