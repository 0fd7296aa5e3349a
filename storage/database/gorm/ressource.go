package gormrepos

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/maraakiz/maraakiz/core/ressource"
)

type ressourceRepository struct {
	db *gorm.DB
}

var _ ressource.Repository = (*ressourceRepository)(nil) // interface compliance check

func NewRessourceRepository(db *gorm.DB) *ressourceRepository {
	return &ressourceRepository{db: db}
}

func (repo ressourceRepository) QueryRessources(ctx context.Context, merkezID int, filter ressource.QueryFilter) ([]ressource.Ressource, error) {
	tx := repo.db.WithContext(ctx).Where("merkez_id = ?", merkezID)
	if filter.Categorie != "" {
		tx = tx.Where("categorie = ?", filter.Categorie)
	}
	if filter.Dossier != "" {
		tx = tx.Where("dossier = ?", filter.Dossier)
	}

	rs := make([]ressource.Ressource, 0)
	if err := tx.Order("created_at DESC").Order("id DESC").Find(&rs).Error; err != nil {
		return nil, errors.Wrap(err, "querying ressources")
	}
	return rs, nil
}

func (repo ressourceRepository) QueryShared(ctx context.Context, merkezID int, types ...string) ([]ressource.Ressource, error) {
	rs := make([]ressource.Ressource, 0)
	if len(types) == 0 {
		return rs, nil
	}
	err := repo.db.WithContext(ctx).
		Where("merkez_id = ? AND acces_type IN ?", merkezID, types).
		Order("created_at DESC").Order("id DESC").
		Find(&rs).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying shared ressources")
	}
	return rs, nil
}

func (repo ressourceRepository) GetRessource(ctx context.Context, id int) (ressource.Ressource, error) {
	var r ressource.Ressource
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return ressource.Ressource{}, trapNotFound(err, ressource.ErrNotFound, "finding ressource")
	}
	return r, nil
}

func (repo ressourceRepository) CreateRessource(ctx context.Context, r ressource.Ressource) (ressource.Ressource, error) {
	if err := repo.db.WithContext(ctx).Create(&r).Error; err != nil {
		return ressource.Ressource{}, errors.Wrap(err, "inserting ressource")
	}
	return r, nil
}

func (repo ressourceRepository) UpdateRessource(ctx context.Context, r ressource.Ressource) (ressource.Ressource, error) {
	if err := repo.db.WithContext(ctx).Save(&r).Error; err != nil {
		return ressource.Ressource{}, errors.Wrap(err, "updating ressource")
	}
	return r, nil
}

func (repo ressourceRepository) DeleteRessource(ctx context.Context, id int) error {
	err := repo.db.WithContext(ctx).Delete(&ressource.Ressource{}, id).Error
	return errors.Wrap(err, "deleting ressource")
}

func (repo ressourceRepository) increment(ctx context.Context, id int, column string) error {
	// counters leave updated_at alone
	err := repo.db.WithContext(ctx).Model(&ressource.Ressource{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + 1")).Error
	return errors.Wrapf(err, "incrementing %s", column)
}

func (repo ressourceRepository) IncrementVues(ctx context.Context, id int) error {
	return repo.increment(ctx, id, "vues")
}

func (repo ressourceRepository) IncrementTelecharges(ctx context.Context, id int) error {
	return repo.increment(ctx, id, "telecharges")
}
