package note

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/cours"
	"github.com/maraakiz/maraakiz/core/eleve"
	"github.com/maraakiz/maraakiz/core/user"
)

var (
	ErrNotFound = fmt.Errorf("note %w", core.ErrNotFound)

	errExists      = errors.New("notes already exist for this cours")
	errNoEleve     = errors.New("the cours has no enrolled eleve")
	errNotEnrolled = errors.New("this eleve is not enrolled in the cours")
	errAccess      = errors.Wrap(core.ErrForbidden, "no access to these notes")

	fileTypes = []string{
		"application/pdf",
		"image/jpeg", "image/png", "image/webp", "image/gif",
		"audio/mpeg", "audio/wav", "audio/ogg",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
)

type (
	Repository interface {
		GetNote(ctx context.Context, id int) (Note, error)
		GetNoteByCours(ctx context.Context, coursID int) (Note, error)
		QueryNotesByEleve(ctx context.Context, eleveID int) ([]Note, error)
		CreateNote(ctx context.Context, n Note) (Note, error)
		UpdateNote(ctx context.Context, n Note) (Note, error)
		DeleteNote(ctx context.Context, id int) error
	}

	Service interface {
		GetByCours(ctx context.Context, usr user.User, coursID int) (Note, error)
		QueryByEleve(ctx context.Context, usr user.User, eleveID int) ([]Note, error)
		Create(ctx context.Context, usr user.User, nn NewNote) (Note, error)
		Update(ctx context.Context, usr user.User, id int, c Contents) (Note, error)
		Delete(ctx context.Context, usr user.User, id int) error
		AddFichier(ctx context.Context, usr user.User, id int, up core.Upload) (Note, error)
	}

	service struct {
		repo     Repository
		coursSvc cours.Service
		eleveSvc eleve.Service
		files    core.FileStorage
	}
)

func NewService(repo Repository, coursSvc cours.Service, eleveSvc eleve.Service, files core.FileStorage) Service {
	return &service{
		repo:     repo,
		coursSvc: coursSvc,
		eleveSvc: eleveSvc,
		files:    files,
	}
}

// checkEleveAccess lets through the staff of the merkez owning the eleve and the eleve user itself.
// Staff of another merkez get a not found.
func (svc *service) checkEleveAccess(ctx context.Context, usr user.User, merkezID, eleveID int) error {
	if usr.HasMerkez() {
		if usr.MerkezID.Int != merkezID {
			return ErrNotFound
		}
		return nil
	}
	if usr.IsEleve() {
		e, err := svc.eleveSvc.GetAny(ctx, eleveID)
		if err != nil {
			return err
		}
		if e.UserID.Valid && e.UserID.Int == usr.ID {
			return nil
		}
	}
	return errAccess
}

func (svc *service) GetByCours(ctx context.Context, usr user.User, coursID int) (Note, error) {
	n, err := svc.repo.GetNoteByCours(ctx, coursID)
	if err != nil {
		return Note{}, err
	}
	if err = svc.checkEleveAccess(ctx, usr, n.MerkezID, n.EleveID); err != nil {
		return Note{}, err
	}
	return n, nil
}

func (svc *service) QueryByEleve(ctx context.Context, usr user.User, eleveID int) ([]Note, error) {
	e, err := svc.eleveSvc.GetAny(ctx, eleveID)
	if err != nil {
		return nil, err
	}
	if usr.HasMerkez() && usr.MerkezID.Int != e.MerkezID {
		return nil, eleve.ErrNotFound
	}
	if err = svc.checkEleveAccess(ctx, usr, e.MerkezID, e.ID); err != nil {
		return nil, err
	}
	return svc.repo.QueryNotesByEleve(ctx, eleveID)
}

func (svc *service) Create(ctx context.Context, usr user.User, nn NewNote) (Note, error) {
	merkezID := usr.CtxMerkezID()
	c, err := svc.coursSvc.Get(ctx, merkezID, nn.CoursID)
	if err != nil {
		return Note{}, err
	}

	if _, err = svc.repo.GetNoteByCours(ctx, c.ID); err == nil {
		return Note{}, core.NewValidationError(errExists)
	} else if !core.IsNotFound(err) {
		return Note{}, err
	}

	enrolled := c.EleveIDs()
	var eleveID int
	if nn.EleveID == nil || *nn.EleveID <= 0 {
		if len(enrolled) == 0 {
			return Note{}, core.NewFieldError("eleve_id", errNoEleve.Error())
		}
		eleveID = enrolled[0]
	} else {
		eleveID = *nn.EleveID
		found := false
		for _, id := range enrolled {
			if id == eleveID {
				found = true
				break
			}
		}
		if !found {
			return Note{}, core.NewFieldError("eleve_id", errNotEnrolled.Error())
		}
	}

	now := time.Now().UTC()
	n := Note{
		CoursID:   c.ID,
		EleveID:   eleveID,
		MerkezID:  merkezID,
		Fichiers:  Fichiers{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	nn.Contents.Apply(&n)
	if n, err = svc.repo.CreateNote(ctx, n); err != nil {
		return Note{}, errors.Wrap(err, "creating note")
	}
	return n, nil
}

// getOwned returns a note of the caller's merkez.
func (svc *service) getOwned(ctx context.Context, usr user.User, id int) (Note, error) {
	n, err := svc.repo.GetNote(ctx, id)
	if err != nil {
		return Note{}, err
	}
	if n.MerkezID != usr.CtxMerkezID() {
		return Note{}, ErrNotFound
	}
	return n, nil
}

func (svc *service) Update(ctx context.Context, usr user.User, id int, c Contents) (Note, error) {
	n, err := svc.getOwned(ctx, usr, id)
	if err != nil {
		return Note{}, err
	}
	c.Apply(&n)
	n.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateNote(ctx, n)
}

func (svc *service) Delete(ctx context.Context, usr user.User, id int) error {
	n, err := svc.getOwned(ctx, usr, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteNote(ctx, n.ID); err != nil {
		return err
	}
	for _, f := range n.Fichiers {
		_ = svc.files.Delete(ctx, f.URL)
	}
	return nil
}

func (svc *service) AddFichier(ctx context.Context, usr user.User, id int, up core.Upload) (Note, error) {
	n, err := svc.getOwned(ctx, usr, id)
	if err != nil {
		return Note{}, err
	}
	ct, content, err := core.SniffContentType(up.Content, fileTypes...)
	if err != nil {
		return Note{}, err
	}

	ext := strings.ToLower(filepath.Ext(up.Filename))
	stored, err := svc.files.Save(ctx, "notes", uuid.New().String()+ext, content)
	if err != nil {
		return Note{}, errors.Wrap(err, "saving note file")
	}

	n.Fichiers = append(n.Fichiers, Fichier{Nom: filepath.Base(up.Filename), URL: stored.URL, Type: ct})
	n.UpdatedAt = time.Now().UTC()
	if n, err = svc.repo.UpdateNote(ctx, n); err != nil {
		_ = svc.files.Delete(ctx, stored.URL)
		return Note{}, err
	}
	return n, nil
}
