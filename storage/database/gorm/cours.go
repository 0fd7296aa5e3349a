package gormrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/cours"
	"github.com/maraakiz/maraakiz/core/eleve"
	"github.com/maraakiz/maraakiz/core/merkez"
)

// coursEleve is a row of the cours/eleves join table.
type coursEleve struct {
	CoursID  int `gorm:"primaryKey;autoIncrement:false"`
	EleveID  int `gorm:"primaryKey;autoIncrement:false"`
	Presente bool
}

func (coursEleve) TableName() string { return "cours_eleves" }

type enrolledRow struct {
	CoursID  int
	ID       int
	Nom      string
	Prenom   string
	Presente bool
}

type coursRepository struct {
	db *gorm.DB
}

var _ cours.Repository = (*coursRepository)(nil) // interface compliance check

func NewCoursRepository(db *gorm.DB) *coursRepository {
	return &coursRepository{db: db}
}

// loadEleves fills the enrolled students of every cours.
func loadEleves(tx *gorm.DB, crs []cours.Cours) error {
	if len(crs) == 0 {
		return nil
	}
	ids := make([]int, len(crs))
	for i, c := range crs {
		ids[i] = c.ID
	}

	var rows []enrolledRow
	err := tx.Table("cours_eleves ce").
		Select("ce.cours_id, e.id, e.nom, e.prenom, ce.presente").
		Joins("JOIN eleves e ON e.id = ce.eleve_id").
		Where("ce.cours_id IN ?", ids).
		Order("e.nom, e.prenom").
		Scan(&rows).Error
	if err != nil {
		return errors.Wrap(err, "querying cours eleves")
	}

	byCours := make(map[int][]cours.CoursEleve, len(crs))
	for _, r := range rows {
		byCours[r.CoursID] = append(byCours[r.CoursID], cours.CoursEleve{
			ID:       r.ID,
			Nom:      r.Nom,
			Prenom:   r.Prenom,
			Presente: r.Presente,
		})
	}
	for i := range crs {
		crs[i].Eleves = byCours[crs[i].ID]
		if crs[i].Eleves == nil {
			crs[i].Eleves = []cours.CoursEleve{}
		}
	}
	return nil
}

func (repo coursRepository) QueryCours(ctx context.Context, merkezID int, filter cours.QueryFilter) ([]cours.Cours, error) {
	db := repo.db.WithContext(ctx)
	tx := db.Where("merkez_id = ?", merkezID)
	if !filter.StartDate.IsZero() {
		tx = tx.Where("date_debut >= ?", filter.StartDate.Time)
	}
	if !filter.EndDate.IsZero() {
		// the end date is inclusive
		tx = tx.Where("date_debut < ?", filter.EndDate.AddDays(1).Time)
	}
	if filter.Statut != "" {
		tx = tx.Where("statut = ?", filter.Statut)
	}
	if filter.EleveID > 0 {
		tx = tx.Where("id IN (SELECT cours_id FROM cours_eleves WHERE eleve_id = ?)", filter.EleveID)
	}

	crs := make([]cours.Cours, 0)
	if err := tx.Order("date_debut").Order("id").Find(&crs).Error; err != nil {
		return nil, errors.Wrap(err, "querying cours")
	}
	if err := loadEleves(db, crs); err != nil {
		return nil, err
	}
	return crs, nil
}

func (repo coursRepository) GetCours(ctx context.Context, id int) (cours.Cours, error) {
	db := repo.db.WithContext(ctx)
	var c cours.Cours
	if err := db.Where("id = ?", id).First(&c).Error; err != nil {
		return cours.Cours{}, trapNotFound(err, cours.ErrNotFound, "finding cours")
	}
	crs := []cours.Cours{c}
	if err := loadEleves(db, crs); err != nil {
		return cours.Cours{}, err
	}
	return crs[0], nil
}

func (repo coursRepository) CreateCours(ctx context.Context, crs []cours.Cours, eleveIDs []int) ([]cours.Cours, error) {
	db := repo.db.WithContext(ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		var parentID int
		for i := range crs {
			c := &crs[i]
			if c.IsRecurrent && parentID > 0 {
				c.RecurrenceParentID = null.IntFrom(parentID)
			}
			if err := tx.Create(c).Error; err != nil {
				return errors.Wrap(err, "inserting cours")
			}
			if c.IsRecurrent && parentID == 0 {
				parentID = c.ID
				c.RecurrenceParentID = null.IntFrom(parentID)
				err := tx.Model(&cours.Cours{}).Where("id = ?", c.ID).Update("recurrence_parent_id", parentID).Error
				if err != nil {
					return errors.Wrap(err, "linking series parent")
				}
			}
			if err := linkEleves(tx, c.ID, eleveIDs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err = loadEleves(db, crs); err != nil {
		return nil, err
	}
	return crs, nil
}

func linkEleves(tx *gorm.DB, coursID int, eleveIDs []int) error {
	if len(eleveIDs) == 0 {
		return nil
	}
	links := make([]coursEleve, len(eleveIDs))
	for i, id := range eleveIDs {
		links[i] = coursEleve{CoursID: coursID, EleveID: id}
	}
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
	return errors.Wrap(err, "linking cours eleves")
}

func (repo coursRepository) UpdateCours(ctx context.Context, c cours.Cours, eleveIDs []int, presences map[int]bool, incrDonnes bool) (cours.Cours, error) {
	db := repo.db.WithContext(ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&c).Error; err != nil {
			return errors.Wrap(err, "updating cours")
		}

		if eleveIDs != nil {
			del := tx.Where("cours_id = ?", c.ID)
			if len(eleveIDs) > 0 {
				del = del.Where("eleve_id NOT IN ?", eleveIDs)
			}
			if err := del.Delete(&coursEleve{}).Error; err != nil {
				return errors.Wrap(err, "unlinking cours eleves")
			}
			if err := linkEleves(tx, c.ID, eleveIDs); err != nil {
				return err
			}
		}

		for eleveID, presente := range presences {
			err := tx.Model(&coursEleve{}).
				Where("cours_id = ? AND eleve_id = ?", c.ID, eleveID).
				Update("presente", presente).Error
			if err != nil {
				return errors.Wrap(err, "saving presence")
			}
		}

		if incrDonnes {
			return countCoursDonne(tx, c)
		}
		return nil
	})
	if err != nil {
		return cours.Cours{}, err
	}

	crs := []cours.Cours{c}
	if err = loadEleves(db, crs); err != nil {
		return cours.Cours{}, err
	}
	return crs[0], nil
}

// countCoursDonne updates the merkez and student counters of a cours that just ended.
func countCoursDonne(tx *gorm.DB, c cours.Cours) error {
	err := tx.Model(&merkez.Merkez{}).
		Where("id = ?", c.MerkezID).
		Update("nombre_cours_donnes", gorm.Expr("nombre_cours_donnes + 1")).Error
	if err != nil {
		return errors.Wrap(err, "counting cours donnes")
	}

	present := tx.Table("cours_eleves").Select("eleve_id").Where("cours_id = ? AND presente = ?", c.ID, true)
	absent := tx.Table("cours_eleves").Select("eleve_id").Where("cours_id = ? AND presente = ?", c.ID, false)

	err = tx.Model(&eleve.Eleve{}).
		Where("id IN (?)", present).
		Updates(map[string]interface{}{
			"nombre_cours_suivis": gorm.Expr("nombre_cours_suivis + 1"),
			"date_dernier_cours":  core.DateOf(c.DateDebut),
			"updated_at":          time.Now().UTC(),
		}).Error
	if err != nil {
		return errors.Wrap(err, "counting cours suivis")
	}

	err = tx.Model(&eleve.Eleve{}).
		Where("id IN (?)", absent).
		Updates(map[string]interface{}{
			"nombre_absences": gorm.Expr("nombre_absences + 1"),
			"updated_at":      time.Now().UTC(),
		}).Error
	return errors.Wrap(err, "counting absences")
}

func (repo coursRepository) SetGoogleEventID(ctx context.Context, id int, eventID string) error {
	err := repo.db.WithContext(ctx).Model(&cours.Cours{}).
		Where("id = ?", id).
		Update("google_event_id", eventID).Error
	return errors.Wrap(err, "saving google event id")
}

func (repo coursRepository) QuerySeries(ctx context.Context, parentID int) ([]cours.Cours, error) {
	crs := make([]cours.Cours, 0)
	err := repo.db.WithContext(ctx).
		Where("id = ? OR recurrence_parent_id = ?", parentID, parentID).
		Order("date_debut").
		Find(&crs).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying series")
	}
	return crs, nil
}

func (repo coursRepository) DeleteCours(ctx context.Context, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	err := repo.db.WithContext(ctx).Where("id IN ?", ids).Delete(&cours.Cours{}).Error
	return errors.Wrap(err, "deleting cours")
}

func (repo coursRepository) QueryTrames(ctx context.Context, merkezID int) ([]cours.Trame, error) {
	trames := make([]cours.Trame, 0)
	if err := repo.db.WithContext(ctx).Where("merkez_id = ?", merkezID).Order("nom").Find(&trames).Error; err != nil {
		return nil, errors.Wrap(err, "querying trames")
	}
	return trames, nil
}

func (repo coursRepository) GetTrame(ctx context.Context, id int) (cours.Trame, error) {
	var t cours.Trame
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return cours.Trame{}, trapNotFound(err, cours.ErrTrameNotFound, "finding trame")
	}
	return t, nil
}

func (repo coursRepository) CreateTrame(ctx context.Context, t cours.Trame) (cours.Trame, error) {
	if err := repo.db.WithContext(ctx).Create(&t).Error; err != nil {
		return cours.Trame{}, errors.Wrap(err, "inserting trame")
	}
	return t, nil
}

func (repo coursRepository) DeleteTrame(ctx context.Context, id int) error {
	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&cours.Cours{}).Where("trame_cours_id = ?", id).Update("trame_cours_id", nil).Error
		if err != nil {
			return errors.Wrap(err, "detaching trame")
		}
		return errors.Wrap(tx.Delete(&cours.Trame{}, id).Error, "deleting trame")
	})
}
