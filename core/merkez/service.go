package merkez

import (
	"context"
	"fmt"
	"time"

	"github.com/maraakiz/maraakiz/core"
)

var ErrNotFound = fmt.Errorf("merkez %w", core.ErrNotFound)

type (
	Repository interface {
		GetMerkez(ctx context.Context, id int) (Merkez, error)
		// QueryActiveMerkez returns every actif merkez.
		QueryActiveMerkez(ctx context.Context) ([]Merkez, error)
		UpdateMerkez(ctx context.Context, mk Merkez) (Merkez, error)
	}

	Service interface {
		GetByID(ctx context.Context, id int) (Merkez, error)
		Update(ctx context.Context, mk Merkez, upd Update) (Merkez, error)
		QueryPublic(ctx context.Context, filter PublicFilter) ([]Merkez, error)
		GetPublic(ctx context.Context, id int) (Merkez, error)
	}

	service struct {
		repo Repository
	}
)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) GetByID(ctx context.Context, id int) (Merkez, error) {
	if id <= 0 {
		return Merkez{}, ErrNotFound
	}
	return svc.repo.GetMerkez(ctx, id)
}

func (svc *service) Update(ctx context.Context, mk Merkez, upd Update) (Merkez, error) {
	upd.Apply(&mk)
	mk.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateMerkez(ctx, mk)
}

func (svc *service) QueryPublic(ctx context.Context, filter PublicFilter) ([]Merkez, error) {
	filter.Clean()
	all, err := svc.repo.QueryActiveMerkez(ctx)
	if err != nil {
		return nil, err
	}
	mks := make([]Merkez, 0, len(all))
	for _, mk := range all {
		if filter.Match(mk) {
			mks = append(mks, mk)
		}
	}
	SortByNote(mks)
	return mks, nil
}

func (svc *service) GetPublic(ctx context.Context, id int) (Merkez, error) {
	mk, err := svc.GetByID(ctx, id)
	if err != nil {
		return Merkez{}, err
	}
	if !mk.Actif {
		return Merkez{}, ErrNotFound
	}
	return mk, nil
}
