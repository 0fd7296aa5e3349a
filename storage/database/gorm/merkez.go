package gormrepos

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/maraakiz/maraakiz/core/merkez"
	"github.com/maraakiz/maraakiz/core/professeur"
	"github.com/maraakiz/maraakiz/core/user"
)

type merkezRepository struct {
	db *gorm.DB
}

var _ merkez.Repository = (*merkezRepository)(nil) // interface compliance check

func NewMerkezRepository(db *gorm.DB) *merkezRepository {
	return &merkezRepository{db: db}
}

func (repo merkezRepository) GetMerkez(ctx context.Context, id int) (merkez.Merkez, error) {
	var mk merkez.Merkez
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&mk).Error; err != nil {
		return merkez.Merkez{}, trapNotFound(err, merkez.ErrNotFound, "finding merkez")
	}
	return mk, nil
}

func (repo merkezRepository) QueryActiveMerkez(ctx context.Context) ([]merkez.Merkez, error) {
	mks := make([]merkez.Merkez, 0)
	if err := repo.db.WithContext(ctx).Where("actif = ?", true).Order("id").Find(&mks).Error; err != nil {
		return nil, errors.Wrap(err, "querying merkez")
	}
	return mks, nil
}

func (repo merkezRepository) UpdateMerkez(ctx context.Context, mk merkez.Merkez) (merkez.Merkez, error) {
	if err := repo.db.WithContext(ctx).Save(&mk).Error; err != nil {
		return merkez.Merkez{}, errors.Wrap(err, "updating merkez")
	}
	return mk, nil
}

type professeurRepository struct {
	db *gorm.DB
}

var _ professeur.Repository = (*professeurRepository)(nil) // interface compliance check

func NewProfesseurRepository(db *gorm.DB) *professeurRepository {
	return &professeurRepository{db: db}
}

func (repo professeurRepository) QueryProfesseurs(ctx context.Context, institutID int) ([]professeur.Professeur, error) {
	db := repo.db.WithContext(ctx)

	var users []user.User
	if err := db.Where("institut_id = ?", institutID).Order("nom").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "querying professeurs")
	}

	ids := make([]int, 0, len(users))
	for _, u := range users {
		if u.HasMerkez() {
			ids = append(ids, u.MerkezID.Int)
		}
	}
	byID := make(map[int]merkez.Merkez, len(ids))
	if len(ids) > 0 {
		var mks []merkez.Merkez
		if err := db.Where("id IN ?", ids).Find(&mks).Error; err != nil {
			return nil, errors.Wrap(err, "querying professeurs merkez")
		}
		for _, mk := range mks {
			byID[mk.ID] = mk
		}
	}

	profs := make([]professeur.Professeur, 0, len(users))
	for _, u := range users {
		p := professeur.Professeur{User: u}
		if mk, ok := byID[u.MerkezID.Int]; ok {
			p.Merkez = &mk
		}
		profs = append(profs, p)
	}
	return profs, nil
}
