package store

import (
	"context"
	"errors"
	"testing"

	"gagebu/internal/core"
)

type fakeCategoryAPI struct {
	listResult []core.Category
	listErr    error
	createErr  error
	deleteErr  error
}

func (f *fakeCategoryAPI) ListCategories(ctx context.Context) ([]core.Category, error) {
	return f.listResult, f.listErr
}

func (f *fakeCategoryAPI) CreateCategory(ctx context.Context, in core.CategoryCreate) (core.Category, error) {
	if f.createErr != nil {
		return core.Category{}, f.createErr
	}
	return core.Category{ID: "cat-new", Name: in.Name, Type: in.Type}, nil
}

func (f *fakeCategoryAPI) UpdateCategory(ctx context.Context, id string, in core.CategoryUpdate) (core.Category, error) {
	updated := core.Category{ID: id}
	if in.Name != nil {
		updated.Name = *in.Name
	}
	return updated, nil
}

func (f *fakeCategoryAPI) DeleteCategory(ctx context.Context, id string) error {
	return f.deleteErr
}

func TestCategoryStore_FetchReplacesCollection(t *testing.T) {
	ctx := context.Background()
	api := &fakeCategoryAPI{listResult: []core.Category{{ID: "a"}, {ID: "b"}}}
	s := NewCategoryStore(api)

	if err := s.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := s.Categories(); len(got) != 2 {
		t.Errorf("Categories() = %+v", got)
	}
}

func TestCategoryStore_FetchErrorKeepsCollection(t *testing.T) {
	ctx := context.Background()
	api := &fakeCategoryAPI{listResult: []core.Category{{ID: "a"}}}
	s := NewCategoryStore(api)
	s.Fetch(ctx)

	api.listErr = errors.New("timeout")
	if err := s.Fetch(ctx); err == nil {
		t.Fatal("fetch error must propagate")
	}
	if got := s.Categories(); len(got) != 1 {
		t.Errorf("failed fetch must keep the old list, got %+v", got)
	}
}

func TestCategoryStore_CreateAppends(t *testing.T) {
	ctx := context.Background()
	s := NewCategoryStore(&fakeCategoryAPI{})

	cat, err := s.Create(ctx, core.CategoryCreate{Name: "카페", Type: core.TypeExpense})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if cat.ID != "cat-new" || cat.Name != "카페" {
		t.Errorf("created = %+v", cat)
	}
	if got := s.Categories(); len(got) != 1 {
		t.Errorf("Categories() = %+v", got)
	}
}

func TestCategoryStore_CreateErrorLeavesCollection(t *testing.T) {
	ctx := context.Background()
	s := NewCategoryStore(&fakeCategoryAPI{createErr: errors.New("backend down")})

	if _, err := s.Create(ctx, core.CategoryCreate{Name: "카페", Type: core.TypeExpense}); err == nil {
		t.Fatal("create error must propagate")
	}
	if got := s.Categories(); len(got) != 0 {
		t.Errorf("failed create must not touch local state, got %+v", got)
	}
}

func TestCategoryStore_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	api := &fakeCategoryAPI{listResult: []core.Category{{ID: "a", Name: "old"}, {ID: "b"}}}
	s := NewCategoryStore(api)
	s.Fetch(ctx)

	name := "new"
	if err := s.Update(ctx, "a", core.CategoryUpdate{Name: &name}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := s.Categories(); got[0].Name != "new" {
		t.Errorf("update not applied locally: %+v", got)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got := s.Categories()
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("delete not applied locally: %+v", got)
	}
}
