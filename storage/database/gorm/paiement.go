package gormrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/maraakiz/maraakiz/core/paiement"
)

const paiementDetailColumns = "p.*, e.nom AS eleve_nom, e.prenom AS eleve_prenom, " +
	"COALESCE(e.email, '') AS eleve_email, COALESCE(e.email_parent, '') AS eleve_email_parent, " +
	"m.nom AS merkez_nom, m.email AS merkez_email"

type paiementRepository struct {
	db *gorm.DB
}

var _ paiement.Repository = (*paiementRepository)(nil) // interface compliance check

func NewPaiementRepository(db *gorm.DB) *paiementRepository {
	return &paiementRepository{db: db}
}

func (repo paiementRepository) details(ctx context.Context) *gorm.DB {
	return repo.db.WithContext(ctx).
		Table("paiements p").
		Select(paiementDetailColumns).
		Joins("JOIN eleves e ON e.id = p.eleve_id").
		Joins("JOIN merkez m ON m.id = p.merkez_id")
}

func (repo paiementRepository) QueryPaiements(ctx context.Context, merkezID int, filter paiement.QueryFilter) ([]paiement.Detail, error) {
	tx := repo.details(ctx).Where("p.merkez_id = ?", merkezID)
	if !filter.IncludeArchived {
		tx = tx.Where("p.archived = ?", false)
	}
	if filter.EleveID > 0 {
		tx = tx.Where("p.eleve_id = ?", filter.EleveID)
	}
	if filter.Statut != "" {
		tx = tx.Where("p.statut = ?", filter.Statut)
	}
	if filter.Mois > 0 {
		tx = tx.Where("p.mois = ?", filter.Mois)
	}
	if filter.Annee > 0 {
		tx = tx.Where("p.annee = ?", filter.Annee)
	}

	details := make([]paiement.Detail, 0)
	if err := tx.Order("p.annee DESC, p.mois DESC, p.id DESC").Scan(&details).Error; err != nil {
		return nil, errors.Wrap(err, "querying paiements")
	}
	for i := range details {
		details[i].Fill()
	}
	return details, nil
}

func (repo paiementRepository) GetPaiement(ctx context.Context, id int) (paiement.Paiement, error) {
	var p paiement.Paiement
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return paiement.Paiement{}, trapNotFound(err, paiement.ErrNotFound, "finding paiement")
	}
	return p, nil
}

func (repo paiementRepository) getDetail(tx *gorm.DB) (paiement.Detail, error) {
	var details []paiement.Detail
	if err := tx.Limit(1).Scan(&details).Error; err != nil {
		return paiement.Detail{}, errors.Wrap(err, "finding paiement")
	}
	if len(details) == 0 {
		return paiement.Detail{}, paiement.ErrNotFound
	}
	details[0].Fill()
	return details[0], nil
}

func (repo paiementRepository) GetDetail(ctx context.Context, id int) (paiement.Detail, error) {
	return repo.getDetail(repo.details(ctx).Where("p.id = ?", id))
}

func (repo paiementRepository) GetDetailByToken(ctx context.Context, token string) (paiement.Detail, error) {
	d, err := repo.getDetail(repo.details(ctx).Where("p.lien_token = ?", token))
	if errors.Is(err, paiement.ErrNotFound) {
		return paiement.Detail{}, paiement.ErrLinkNotFound
	}
	return d, err
}

func (repo paiementRepository) ExistsForMonth(ctx context.Context, eleveID, mois, annee int) (bool, error) {
	var cnt int64
	err := repo.db.WithContext(ctx).Model(&paiement.Paiement{}).
		Where("eleve_id = ? AND mois = ? AND annee = ?", eleveID, mois, annee).
		Count(&cnt).Error
	if err != nil {
		return false, errors.Wrap(err, "checking paiement month")
	}
	return cnt > 0, nil
}

func (repo paiementRepository) CreatePaiement(ctx context.Context, p paiement.Paiement) (paiement.Paiement, error) {
	if err := repo.db.WithContext(ctx).Create(&p).Error; err != nil {
		return paiement.Paiement{}, errors.Wrap(err, "inserting paiement")
	}
	return p, nil
}

func (repo paiementRepository) UpdatePaiement(ctx context.Context, p paiement.Paiement) (paiement.Paiement, error) {
	if err := repo.db.WithContext(ctx).Save(&p).Error; err != nil {
		return paiement.Paiement{}, errors.Wrap(err, "updating paiement")
	}
	return p, nil
}

func (repo paiementRepository) DeletePaiement(ctx context.Context, id int) error {
	err := repo.db.WithContext(ctx).Delete(&paiement.Paiement{}, id).Error
	return errors.Wrap(err, "deleting paiement")
}

func (repo paiementRepository) SetArchived(ctx context.Context, merkezID, mois, annee int, archived bool, at time.Time) (int, error) {
	values := map[string]interface{}{"archived": archived, "archived_at": nil}
	if archived {
		values["archived_at"] = at
	}
	res := repo.db.WithContext(ctx).Model(&paiement.Paiement{}).
		Where("merkez_id = ? AND mois = ? AND annee = ? AND archived = ?", merkezID, mois, annee, !archived).
		Updates(values)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "archiving paiements")
	}
	return int(res.RowsAffected), nil
}
