package gormrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/abonnement"
)

type abonnementRepository struct {
	db *gorm.DB
}

var _ abonnement.Repository = (*abonnementRepository)(nil) // interface compliance check

func NewAbonnementRepository(db *gorm.DB) *abonnementRepository {
	return &abonnementRepository{db: db}
}

// syncMerkezFlags sets abonnement_actif from the active subscriptions of the merkez.
func syncMerkezFlags(tx *gorm.DB, merkezIDs ...int) error {
	if len(merkezIDs) == 0 {
		return nil
	}
	err := tx.Exec(`UPDATE merkez SET abonnement_actif = EXISTS (
		SELECT 1 FROM abonnements a WHERE a.merkez_id = merkez.id AND a.is_active = ?
	) WHERE id IN ?`, true, merkezIDs).Error
	return errors.Wrap(err, "syncing merkez abonnement")
}

func (repo abonnementRepository) QueryAbonnements(ctx context.Context, merkezID int) ([]abonnement.Abonnement, error) {
	tx := repo.db.WithContext(ctx)
	if merkezID > 0 {
		tx = tx.Where("merkez_id = ?", merkezID)
	}
	abos := make([]abonnement.Abonnement, 0)
	if err := tx.Order("start_date DESC").Order("id DESC").Find(&abos).Error; err != nil {
		return nil, errors.Wrap(err, "querying abonnements")
	}
	return abos, nil
}

func (repo abonnementRepository) GetAbonnement(ctx context.Context, id int) (abonnement.Abonnement, error) {
	var a abonnement.Abonnement
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return abonnement.Abonnement{}, trapNotFound(err, abonnement.ErrNotFound, "finding abonnement")
	}
	return a, nil
}

func (repo abonnementRepository) CreateAbonnement(ctx context.Context, a abonnement.Abonnement) (abonnement.Abonnement, error) {
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&a).Error; err != nil {
			return errors.Wrap(err, "inserting abonnement")
		}
		return syncMerkezFlags(tx, a.MerkezID)
	})
	if err != nil {
		return abonnement.Abonnement{}, err
	}
	return a, nil
}

func (repo abonnementRepository) DeactivateAbonnement(ctx context.Context, id int, at time.Time) (abonnement.Abonnement, error) {
	var a abonnement.Abonnement
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&a).Error; err != nil {
			return trapNotFound(err, abonnement.ErrNotFound, "finding abonnement")
		}
		a.IsActive = false
		a.UpdatedAt = at
		err := tx.Model(&a).UpdateColumns(map[string]interface{}{"is_active": false, "updated_at": at}).Error
		if err != nil {
			return errors.Wrap(err, "deactivating abonnement")
		}
		return syncMerkezFlags(tx, a.MerkezID)
	})
	if err != nil {
		return abonnement.Abonnement{}, err
	}
	return a, nil
}

func (repo abonnementRepository) ExpireAbonnements(ctx context.Context, today core.Date) (int, error) {
	var expired int
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var abos []abonnement.Abonnement
		err := tx.Where("is_active = ? AND end_date IS NOT NULL AND end_date < ?", true, today).Find(&abos).Error
		if err != nil {
			return errors.Wrap(err, "querying expired abonnements")
		}
		if len(abos) == 0 {
			return nil
		}

		ids := make([]int, len(abos))
		seen := make(map[int]bool)
		merkezIDs := make([]int, 0, len(abos))
		for i, a := range abos {
			ids[i] = a.ID
			if !seen[a.MerkezID] {
				seen[a.MerkezID] = true
				merkezIDs = append(merkezIDs, a.MerkezID)
			}
		}
		err = tx.Model(&abonnement.Abonnement{}).
			Where("id IN ?", ids).
			UpdateColumns(map[string]interface{}{"is_active": false, "updated_at": time.Now().UTC()}).Error
		if err != nil {
			return errors.Wrap(err, "expiring abonnements")
		}
		expired = len(ids)
		return syncMerkezFlags(tx, merkezIDs...)
	})
	return expired, err
}
