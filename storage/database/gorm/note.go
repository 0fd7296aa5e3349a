package gormrepos

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/maraakiz/maraakiz/core/note"
)

type noteRepository struct {
	db *gorm.DB
}

var _ note.Repository = (*noteRepository)(nil) // interface compliance check

func NewNoteRepository(db *gorm.DB) *noteRepository {
	return &noteRepository{db: db}
}

func (repo noteRepository) GetNote(ctx context.Context, id int) (note.Note, error) {
	var n note.Note
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		return note.Note{}, trapNotFound(err, note.ErrNotFound, "finding note")
	}
	return n, nil
}

func (repo noteRepository) GetNoteByCours(ctx context.Context, coursID int) (note.Note, error) {
	var n note.Note
	if err := repo.db.WithContext(ctx).Where("cours_id = ?", coursID).First(&n).Error; err != nil {
		return note.Note{}, trapNotFound(err, note.ErrNotFound, "finding note")
	}
	return n, nil
}

func (repo noteRepository) QueryNotesByEleve(ctx context.Context, eleveID int) ([]note.Note, error) {
	notes := make([]note.Note, 0)
	err := repo.db.WithContext(ctx).
		Table("notes_cours n").
		Select("n.*").
		Joins("JOIN cours c ON c.id = n.cours_id").
		Where("n.eleve_id = ?", eleveID).
		Order("c.date_debut DESC").
		Find(&notes).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying notes")
	}
	return notes, nil
}

func (repo noteRepository) CreateNote(ctx context.Context, n note.Note) (note.Note, error) {
	if err := repo.db.WithContext(ctx).Create(&n).Error; err != nil {
		return note.Note{}, errors.Wrap(err, "inserting note")
	}
	return n, nil
}

func (repo noteRepository) UpdateNote(ctx context.Context, n note.Note) (note.Note, error) {
	if err := repo.db.WithContext(ctx).Save(&n).Error; err != nil {
		return note.Note{}, errors.Wrap(err, "updating note")
	}
	return n, nil
}

func (repo noteRepository) DeleteNote(ctx context.Context, id int) error {
	err := repo.db.WithContext(ctx).Delete(&note.Note{}, id).Error
	return errors.Wrap(err, "deleting note")
}
