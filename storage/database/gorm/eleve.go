package gormrepos

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/eleve"
	"github.com/maraakiz/maraakiz/core/merkez"
	"github.com/maraakiz/maraakiz/core/user"
)

type eleveRepository struct {
	db *gorm.DB
}

var _ eleve.Repository = (*eleveRepository)(nil) // interface compliance check

func NewEleveRepository(db *gorm.DB) *eleveRepository {
	return &eleveRepository{db: db}
}

func (repo eleveRepository) CreateEleve(ctx context.Context, e eleve.Eleve, newUser *user.User) (eleve.Eleve, error) {
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if newUser != nil {
			if err := tx.Create(newUser).Error; err != nil {
				return errors.Wrap(err, "inserting eleve user")
			}
			e.UserID = null.IntFrom(newUser.ID)
		}
		if err := tx.Create(&e).Error; err != nil {
			return errors.Wrap(err, "inserting eleve")
		}
		err := tx.Model(&merkez.Merkez{}).
			Where("id = ?", e.MerkezID).
			Update("nombre_eleves", gorm.Expr("nombre_eleves + 1")).Error
		return errors.Wrap(err, "counting eleves")
	})
	if err != nil {
		return eleve.Eleve{}, err
	}
	return e, nil
}

func (repo eleveRepository) QueryEleves(ctx context.Context, merkezID int, filter eleve.QueryFilter, ordering []core.DBOrdering) ([]eleve.Eleve, error) {
	tx := repo.db.WithContext(ctx).Where("merkez_id = ?", merkezID)
	if filter.Statut != "" {
		tx = tx.Where("statut = ?", filter.Statut)
	}
	if filter.Search != "" {
		val := likeValue(filter.Search)
		tx = tx.Where("nom LIKE ? OR prenom LIKE ? OR email LIKE ?", val, val, val)
	}

	eleves := make([]eleve.Eleve, 0)
	if err := order(tx, ordering).Find(&eleves).Error; err != nil {
		return nil, errors.Wrap(err, "querying eleves")
	}
	return eleves, nil
}

func (repo eleveRepository) GetEleve(ctx context.Context, id int) (eleve.Eleve, error) {
	var e eleve.Eleve
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return eleve.Eleve{}, trapNotFound(err, eleve.ErrNotFound, "finding eleve")
	}
	return e, nil
}

func (repo eleveRepository) QueryElevesByUser(ctx context.Context, userID int) ([]eleve.Eleve, error) {
	eleves := make([]eleve.Eleve, 0)
	if err := repo.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&eleves).Error; err != nil {
		return nil, errors.Wrap(err, "querying eleves by user")
	}
	return eleves, nil
}

func (repo eleveRepository) UpdateEleve(ctx context.Context, e eleve.Eleve) (eleve.Eleve, error) {
	if err := repo.db.WithContext(ctx).Save(&e).Error; err != nil {
		return eleve.Eleve{}, errors.Wrap(err, "updating eleve")
	}
	return e, nil
}

func (repo eleveRepository) DeleteEleve(ctx context.Context, e eleve.Eleve) error {
	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// paiements, notes and cours links cascade
		if err := tx.Delete(&eleve.Eleve{}, e.ID).Error; err != nil {
			return errors.Wrap(err, "deleting eleve")
		}
		err := tx.Model(&merkez.Merkez{}).
			Where("id = ? AND nombre_eleves > 0", e.MerkezID).
			Update("nombre_eleves", gorm.Expr("nombre_eleves - 1")).Error
		return errors.Wrap(err, "counting eleves")
	})
}
