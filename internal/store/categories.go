package store

import (
	"context"
	"fmt"
	"sync"

	"gagebu/internal/core"
)

// CategoryAPI is the slice of the remote client the category store needs.
type CategoryAPI interface {
	ListCategories(ctx context.Context) ([]core.Category, error)
	CreateCategory(ctx context.Context, in core.CategoryCreate) (core.Category, error)
	UpdateCategory(ctx context.Context, id string, in core.CategoryUpdate) (core.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// CategoryStore is online-only: category management is rare enough that the
// original product never queued it.
type CategoryStore struct {
	mu         sync.Mutex
	api        CategoryAPI
	categories []core.Category
	loading    bool
}

func NewCategoryStore(api CategoryAPI) *CategoryStore {
	return &CategoryStore{api: api}
}

func (s *CategoryStore) Fetch(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	categories, err := s.api.ListCategories(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		return fmt.Errorf("fetch categories: %w", err)
	}
	s.categories = categories
	return nil
}

func (s *CategoryStore) Create(ctx context.Context, in core.CategoryCreate) (core.Category, error) {
	category, err := s.api.CreateCategory(ctx, in)
	if err != nil {
		return core.Category{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = append(s.categories, category)
	return category, nil
}

func (s *CategoryStore) Update(ctx context.Context, id string, in core.CategoryUpdate) error {
	updated, err := s.api.UpdateCategory(ctx, id, in)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.categories {
		if s.categories[i].ID == id {
			s.categories[i] = updated
			break
		}
	}
	return nil
}

func (s *CategoryStore) Delete(ctx context.Context, id string) error {
	if err := s.api.DeleteCategory(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.categories {
		if s.categories[i].ID == id {
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			break
		}
	}
	return nil
}

func (s *CategoryStore) Categories() []core.Category {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Category, len(s.categories))
	copy(out, s.categories)
	return out
}
