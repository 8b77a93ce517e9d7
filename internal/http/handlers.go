package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"gagebu/internal/api"
	"gagebu/internal/core"
	"gagebu/internal/suggest"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// writeStoreError maps a store failure onto an HTTP status. Backend
// errors keep their original status so clients see what the server said.
func writeStoreError(w http.ResponseWriter, err error) {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.StatusCode, apiErr.Message)
		return
	}
	writeError(w, http.StatusBadGateway, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	list := s.transactions.Transactions()
	if list == nil {
		list = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in core.TransactionCreate
	if !decodeBody(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	tx, err := s.transactions.Create(r.Context(), s.isOnline(), in)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// handleRefreshTransactions re-pulls the remote collections. Offline it
// refuses rather than silently serving stale data as fresh.
func (s *Server) handleRefreshTransactions(w http.ResponseWriter, r *http.Request) {
	if !s.isOnline() {
		writeError(w, http.StatusServiceUnavailable, "offline")
		return
	}

	if err := s.transactions.Fetch(r.Context()); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.categories.Fetch(r.Context()); err != nil {
		slog.WarnContext(r.Context(), "Category refresh failed", "error", err)
	}
	if err := s.cards.Fetch(r.Context()); err != nil {
		slog.WarnContext(r.Context(), "Card refresh failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in core.TransactionUpdate
	if !decodeBody(w, r, &in) {
		return
	}
	if in.IsEmpty() {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.transactions.Update(r.Context(), s.isOnline(), id, in); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.transactions.Delete(r.Context(), s.isOnline(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var in struct {
		IsFavorite bool `json:"is_favorite"`
	}
	if !decodeBody(w, r, &in) {
		return
	}

	if err := s.transactions.ToggleFavorite(r.Context(), s.isOnline(), r.PathValue("id"), in.IsFavorite); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	list := s.categories.Categories()
	if list == nil {
		list = []core.Category{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	if !s.isOnline() {
		writeError(w, http.StatusServiceUnavailable, "category changes require a connection")
		return
	}
	var in core.CategoryCreate
	if !decodeBody(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	cat, err := s.categories.Create(r.Context(), in)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.suggestCache.Clear()
	writeJSON(w, http.StatusCreated, cat)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	if !s.isOnline() {
		writeError(w, http.StatusServiceUnavailable, "category changes require a connection")
		return
	}
	var in core.CategoryUpdate
	if !decodeBody(w, r, &in) {
		return
	}

	if err := s.categories.Update(r.Context(), r.PathValue("id"), in); err != nil {
		writeStoreError(w, err)
		return
	}
	s.suggestCache.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if !s.isOnline() {
		writeError(w, http.StatusServiceUnavailable, "category changes require a connection")
		return
	}

	if err := s.categories.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	s.suggestCache.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	list := s.cards.Cards()
	if list == nil {
		list = []core.UserCard{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	if !s.isOnline() {
		writeError(w, http.StatusServiceUnavailable, "card changes require a connection")
		return
	}
	var in core.CardCreate
	if !decodeBody(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	card, err := s.cards.Create(r.Context(), in)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if !s.isOnline() {
		writeError(w, http.StatusServiceUnavailable, "card changes require a connection")
		return
	}

	if err := s.cards.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	description := strings.TrimSpace(r.URL.Query().Get("description"))
	txType := r.URL.Query().Get("type")
	if txType == "" {
		txType = string(core.TypeExpense)
	}

	key := txType + "|" + suggest.Normalize(description)
	if result, ok := s.suggestCache.Get(key); ok {
		writeJSON(w, http.StatusOK, result)
		return
	}

	result, ok := suggest.Suggest(description, txType, s.transactions.Transactions(), s.categories.Categories())
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	s.suggestCache.Set(key, result)
	writeJSON(w, http.StatusOK, result)
}

// handleFlush kicks off a flush in the background. The caller polls
// /status to see it finish.
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := s.engine.Flush(context.Background()); err != nil {
			slog.Error("Manual flush failed", "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "flush started"})
}
