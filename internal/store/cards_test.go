package store

import (
	"context"
	"errors"
	"testing"

	"gagebu/internal/core"
)

type fakeCardAPI struct {
	listResult []core.UserCard
	listErr    error
	createErr  error
	deleteErr  error
}

func (f *fakeCardAPI) ListCards(ctx context.Context) ([]core.UserCard, error) {
	return f.listResult, f.listErr
}

func (f *fakeCardAPI) CreateCard(ctx context.Context, in core.CardCreate) (core.UserCard, error) {
	if f.createErr != nil {
		return core.UserCard{}, f.createErr
	}
	return core.UserCard{ID: "card-new", Type: in.Type, Name: in.Name, MonthlyTarget: in.MonthlyTarget}, nil
}

func (f *fakeCardAPI) DeleteCard(ctx context.Context, id string) error {
	return f.deleteErr
}

func TestCardStore_FetchReplacesCollection(t *testing.T) {
	ctx := context.Background()
	api := &fakeCardAPI{listResult: []core.UserCard{{ID: "a"}, {ID: "b"}}}
	s := NewCardStore(api)

	if err := s.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := s.Cards(); len(got) != 2 {
		t.Errorf("Cards() = %+v", got)
	}
}

func TestCardStore_FetchErrorKeepsCollection(t *testing.T) {
	ctx := context.Background()
	api := &fakeCardAPI{listResult: []core.UserCard{{ID: "a"}}}
	s := NewCardStore(api)
	s.Fetch(ctx)

	api.listErr = errors.New("timeout")
	if err := s.Fetch(ctx); err == nil {
		t.Fatal("fetch error must propagate")
	}
	if got := s.Cards(); len(got) != 1 {
		t.Errorf("failed fetch must keep the old list, got %+v", got)
	}
}

func TestCardStore_CreateAppends(t *testing.T) {
	ctx := context.Background()
	s := NewCardStore(&fakeCardAPI{})

	target := int64(300000)
	card, err := s.Create(ctx, core.CardCreate{Type: "credit", Name: "현대카드", MonthlyTarget: &target})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if card.ID != "card-new" || card.Name != "현대카드" {
		t.Errorf("created = %+v", card)
	}
	if got := s.Cards(); len(got) != 1 {
		t.Errorf("Cards() = %+v", got)
	}
}

func TestCardStore_CreateErrorLeavesCollection(t *testing.T) {
	ctx := context.Background()
	s := NewCardStore(&fakeCardAPI{createErr: errors.New("boom")})

	if _, err := s.Create(ctx, core.CardCreate{Type: "credit", Name: "x"}); err == nil {
		t.Fatal("create error must propagate")
	}
	if got := s.Cards(); len(got) != 0 {
		t.Errorf("failed create must not touch the list, got %+v", got)
	}
}

func TestCardStore_DeleteRemoves(t *testing.T) {
	ctx := context.Background()
	api := &fakeCardAPI{listResult: []core.UserCard{{ID: "a"}, {ID: "b"}}}
	s := NewCardStore(api)
	s.Fetch(ctx)

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got := s.Cards()
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("Cards() after delete = %+v", got)
	}
}
