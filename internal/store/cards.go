package store

import (
	"context"
	"fmt"
	"sync"

	"gagebu/internal/core"
)

// CardAPI is the slice of the remote client the card store needs.
type CardAPI interface {
	ListCards(ctx context.Context) ([]core.UserCard, error)
	CreateCard(ctx context.Context, in core.CardCreate) (core.UserCard, error)
	DeleteCard(ctx context.Context, id string) error
}

// CardStore tracks the user's cards and their monthly spending targets.
// Online-only, like the category store.
type CardStore struct {
	mu      sync.Mutex
	api     CardAPI
	cards   []core.UserCard
	loading bool
}

func NewCardStore(api CardAPI) *CardStore {
	return &CardStore{api: api}
}

func (s *CardStore) Fetch(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	cards, err := s.api.ListCards(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		return fmt.Errorf("fetch cards: %w", err)
	}
	s.cards = cards
	return nil
}

func (s *CardStore) Create(ctx context.Context, in core.CardCreate) (core.UserCard, error) {
	card, err := s.api.CreateCard(ctx, in)
	if err != nil {
		return core.UserCard{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards = append(s.cards, card)
	return card, nil
}

func (s *CardStore) Delete(ctx context.Context, id string) error {
	if err := s.api.DeleteCard(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cards {
		if s.cards[i].ID == id {
			s.cards = append(s.cards[:i], s.cards[i+1:]...)
			break
		}
	}
	return nil
}

func (s *CardStore) Cards() []core.UserCard {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.UserCard, len(s.cards))
	copy(out, s.cards)
	return out
}
