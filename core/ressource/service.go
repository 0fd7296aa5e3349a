package ressource

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/eleve"
	"github.com/maraakiz/maraakiz/core/user"
)

var (
	ErrNotFound = fmt.Errorf("ressource %w", core.ErrNotFound)

	errAccess = errors.Wrap(core.ErrForbidden, "no access to this library")
)

type (
	Repository interface {
		QueryRessources(ctx context.Context, merkezID int, filter QueryFilter) ([]Ressource, error)
		// QueryShared returns the ressources of the merkez whose acces_type is one of types.
		QueryShared(ctx context.Context, merkezID int, types ...string) ([]Ressource, error)
		GetRessource(ctx context.Context, id int) (Ressource, error)
		CreateRessource(ctx context.Context, r Ressource) (Ressource, error)
		UpdateRessource(ctx context.Context, r Ressource) (Ressource, error)
		DeleteRessource(ctx context.Context, id int) error
		IncrementVues(ctx context.Context, id int) error
		IncrementTelecharges(ctx context.Context, id int) error
	}

	ReportRepository interface {
		QueryFolders(ctx context.Context, merkezID int) ([]Folder, error)
	}

	Service interface {
		Query(ctx context.Context, merkezID int, filter QueryFilter) ([]Ressource, error)
		Folders(ctx context.Context, merkezID int) ([]Folder, error)
		Upload(ctx context.Context, merkezID int, nr NewRessource, up core.Upload) (Ressource, error)
		// Get returns a ressource of the merkez and counts the view.
		Get(ctx context.Context, merkezID, id int) (Ressource, error)
		// Download counts the download and returns the file URL.
		Download(ctx context.Context, merkezID, id int) (string, error)
		Update(ctx context.Context, merkezID, id int, upd Update) (Ressource, error)
		Delete(ctx context.Context, merkezID, id int) error
		QueryPublic(ctx context.Context, merkezID int) ([]Ressource, error)
		QueryForEleve(ctx context.Context, usr user.User, eleveID int) ([]Ressource, error)
	}

	service struct {
		repo     Repository
		reports  ReportRepository
		eleveSvc eleve.Service
		files    core.FileStorage
	}
)

func NewService(repo Repository, reports ReportRepository, eleveSvc eleve.Service, files core.FileStorage) Service {
	return &service{
		repo:     repo,
		reports:  reports,
		eleveSvc: eleveSvc,
		files:    files,
	}
}

func (svc *service) Query(ctx context.Context, merkezID int, filter QueryFilter) ([]Ressource, error) {
	filter.Categorie = core.CleanString(filter.Categorie, true /* lower */)
	filter.Dossier = core.CleanString(filter.Dossier)
	return svc.repo.QueryRessources(ctx, merkezID, filter)
}

func (svc *service) Folders(ctx context.Context, merkezID int) ([]Folder, error) {
	folders, err := svc.reports.QueryFolders(ctx, merkezID)
	if err != nil {
		return nil, errors.Wrap(err, "querying folders")
	}
	return folders, nil
}

// checkEleves makes sure every authorized student belongs to the merkez.
func (svc *service) checkEleves(ctx context.Context, merkezID int, ids []int) error {
	for _, id := range ids {
		if _, err := svc.eleveSvc.Get(ctx, merkezID, id); err != nil {
			return err
		}
	}
	return nil
}

func (svc *service) Upload(ctx context.Context, merkezID int, nr NewRessource, up core.Upload) (Ressource, error) {
	if err := svc.checkEleves(ctx, merkezID, nr.ElevesAutorises); err != nil {
		return Ressource{}, err
	}
	ct, content, err := core.SniffContentType(up.Content, AllowedTypes...)
	if err != nil {
		return Ressource{}, err
	}

	now := time.Now().UTC()
	stored, err := svc.files.Save(ctx, "bibliotheque", StoredName(up.Filename, now), content)
	if err != nil {
		return Ressource{}, errors.Wrap(err, "saving ressource file")
	}

	r := Ressource{
		MerkezID:        merkezID,
		Titre:           nr.Titre,
		Description:     null.NewString(nr.Description, nr.Description != ""),
		FichierNom:      filepath.Base(up.Filename),
		FichierURL:      stored.URL,
		FichierType:     ct,
		FichierTaille:   stored.Size,
		Categorie:       CategorieOf(ct),
		AccesType:       nr.AccesType,
		ElevesAutorises: append(core.IntList{}, nr.ElevesAutorises...),
		Tags:            append(core.StringList{}, nr.Tags...),
		Dossier:         null.NewString(nr.Dossier, nr.Dossier != ""),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if r, err = svc.repo.CreateRessource(ctx, r); err != nil {
		_ = svc.files.Delete(ctx, stored.URL)
		return Ressource{}, errors.Wrap(err, "creating ressource")
	}
	return r, nil
}

func (svc *service) get(ctx context.Context, merkezID, id int) (Ressource, error) {
	r, err := svc.repo.GetRessource(ctx, id)
	if err != nil {
		return Ressource{}, err
	}
	if r.MerkezID != merkezID {
		return Ressource{}, ErrNotFound
	}
	return r, nil
}

func (svc *service) Get(ctx context.Context, merkezID, id int) (Ressource, error) {
	r, err := svc.get(ctx, merkezID, id)
	if err != nil {
		return Ressource{}, err
	}
	if err = svc.repo.IncrementVues(ctx, id); err != nil {
		return Ressource{}, errors.Wrap(err, "counting view")
	}
	r.Vues++
	return r, nil
}

func (svc *service) Download(ctx context.Context, merkezID, id int) (string, error) {
	r, err := svc.get(ctx, merkezID, id)
	if err != nil {
		return "", err
	}
	if err = svc.repo.IncrementTelecharges(ctx, id); err != nil {
		return "", errors.Wrap(err, "counting download")
	}
	return r.FichierURL, nil
}

func (svc *service) Update(ctx context.Context, merkezID, id int, upd Update) (Ressource, error) {
	r, err := svc.get(ctx, merkezID, id)
	if err != nil {
		return Ressource{}, err
	}
	if upd.ElevesAutorises != nil {
		if err = svc.checkEleves(ctx, merkezID, *upd.ElevesAutorises); err != nil {
			return Ressource{}, err
		}
	}
	upd.Apply(&r)
	r.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateRessource(ctx, r)
}

func (svc *service) Delete(ctx context.Context, merkezID, id int) error {
	r, err := svc.get(ctx, merkezID, id)
	if err != nil {
		return err
	}
	if err = svc.files.Delete(ctx, r.FichierURL); err != nil {
		return errors.Wrap(err, "deleting ressource file")
	}
	return svc.repo.DeleteRessource(ctx, id)
}

func (svc *service) QueryPublic(ctx context.Context, merkezID int) ([]Ressource, error) {
	return svc.repo.QueryShared(ctx, merkezID, AccesPublic)
}

func (svc *service) QueryForEleve(ctx context.Context, usr user.User, eleveID int) ([]Ressource, error) {
	e, err := svc.eleveSvc.GetAny(ctx, eleveID)
	if err != nil {
		return nil, err
	}
	switch {
	case usr.HasMerkez():
		if usr.MerkezID.Int != e.MerkezID {
			return nil, eleve.ErrNotFound
		}
	case usr.IsEleve() && e.UserID.Valid && e.UserID.Int == usr.ID:
	default:
		return nil, errAccess
	}

	shared, err := svc.repo.QueryShared(ctx, e.MerkezID, AccesPublic, AccesEleves, AccesSpecifique)
	if err != nil {
		return nil, err
	}
	out := make([]Ressource, 0, len(shared))
	for _, r := range shared {
		if r.VisibleTo(e.ID) {
			out = append(out, r)
		}
	}
	return out, nil
}
