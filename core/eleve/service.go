package eleve

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/merkez"
	"github.com/maraakiz/maraakiz/core/user"
)

var ErrNotFound = fmt.Errorf("eleve %w", core.ErrNotFound)

type (
	Repository interface {
		// CreateEleve inserts e and, when newUser is not nil, the user account it is linked to.
		// Both happen in one transaction which also increments the merkez student count.
		CreateEleve(ctx context.Context, e Eleve, newUser *user.User) (Eleve, error)
		QueryEleves(ctx context.Context, merkezID int, filter QueryFilter, ordering []core.DBOrdering) ([]Eleve, error)
		GetEleve(ctx context.Context, id int) (Eleve, error)
		// QueryElevesByUser lists the student records linked to a user account, across merkez.
		QueryElevesByUser(ctx context.Context, userID int) ([]Eleve, error)
		UpdateEleve(ctx context.Context, e Eleve) (Eleve, error)
		// DeleteEleve cascades to payments, notes and course links and decrements the merkez student count.
		DeleteEleve(ctx context.Context, e Eleve) error
	}

	Service interface {
		Create(ctx context.Context, merkezID int, ne NewEleve) (CreateResult, error)
		Query(ctx context.Context, merkezID int, filter QueryFilter, ordering []core.DBOrdering) ([]Eleve, error)
		// Get returns the eleve when it belongs to merkezID.
		Get(ctx context.Context, merkezID, id int) (Eleve, error)
		// GetAny returns the eleve regardless of its merkez; callers check access.
		GetAny(ctx context.Context, id int) (Eleve, error)
		QueryByUser(ctx context.Context, userID int) ([]Eleve, error)
		Update(ctx context.Context, merkezID, id int, upd Update) (Eleve, error)
		Delete(ctx context.Context, merkezID, id int) error
		// SendCredentials emails a new student's login details; false when no email service is set up.
		SendCredentials(ctx context.Context, mk merkez.Merkez, ce CredentialsEmail) (bool, error)
	}

	service struct {
		repo    Repository
		usrSvc  user.Service
		mailSvc core.EmailService
		conf    *core.Config
	}
)

func NewService(repo Repository, usrSvc user.Service, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		repo:    repo,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func (svc *service) Create(ctx context.Context, merkezID int, ne NewEleve) (CreateResult, error) {
	now := time.Now().UTC()
	e := ne.ToEleve(merkezID, now)
	res := CreateResult{Message: "Élève créé avec succès"}

	var newUser *user.User
	if ne.Email != "" {
		res.Email = ne.Email
		existing, err := svc.usrSvc.GetByEmail(ctx, ne.Email)
		switch {
		case err == nil:
			if existing.IsEleve() {
				e.UserID = null.IntFrom(existing.ID)
				res.Message = "Élève créé et lié au compte existant"
			}
		case core.IsNotFound(err):
			res.TempPassword = user.EleveTempPassword(now)
			newUser = &user.User{
				Email:      ne.Email,
				Nom:        e.FullName(),
				UserType:   user.TypeEleve,
				Genre:      e.Genre,
				AvatarURL:  e.AvatarURL,
				AvatarType: user.AvatarDefault,
				IsActive:   true,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err = newUser.SetPassword(res.TempPassword); err != nil {
				return CreateResult{}, errors.Wrap(err, "hashing password")
			}
			res.UserCreated = true
			res.Message = "Élève et compte utilisateur créés avec succès"
		default:
			return CreateResult{}, errors.Wrap(err, "finding user by email")
		}
	}

	e, err := svc.repo.CreateEleve(ctx, e, newUser)
	if err != nil {
		return CreateResult{}, errors.Wrap(err, "creating eleve")
	}
	res.Eleve = e
	return res, nil
}

func (svc *service) Query(ctx context.Context, merkezID int, filter QueryFilter, ordering []core.DBOrdering) ([]Eleve, error) {
	filter.Clean()
	return svc.repo.QueryEleves(ctx, merkezID, filter, ordering)
}

func (svc *service) Get(ctx context.Context, merkezID, id int) (Eleve, error) {
	e, err := svc.repo.GetEleve(ctx, id)
	if err != nil {
		return Eleve{}, err
	}
	if e.MerkezID != merkezID {
		return Eleve{}, ErrNotFound
	}
	return e, nil
}

func (svc *service) GetAny(ctx context.Context, id int) (Eleve, error) {
	return svc.repo.GetEleve(ctx, id)
}

func (svc *service) QueryByUser(ctx context.Context, userID int) ([]Eleve, error) {
	return svc.repo.QueryElevesByUser(ctx, userID)
}

func (svc *service) Update(ctx context.Context, merkezID, id int, upd Update) (Eleve, error) {
	e, err := svc.Get(ctx, merkezID, id)
	if err != nil {
		return Eleve{}, err
	}
	upd.Apply(&e)
	e.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateEleve(ctx, e)
}

func (svc *service) Delete(ctx context.Context, merkezID, id int) error {
	e, err := svc.Get(ctx, merkezID, id)
	if err != nil {
		return err
	}
	return svc.repo.DeleteEleve(ctx, e)
}

func (svc *service) SendCredentials(ctx context.Context, mk merkez.Merkez, ce CredentialsEmail) (bool, error) {
	if svc.mailSvc == nil {
		return false, nil
	}
	name := ce.StudentFirstname + " " + ce.StudentLastname
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: name, Address: ce.Email}},
		Subject:      fmt.Sprintf("Vos identifiants %s", svc.conf.AppName),
		TemplateName: "eleve_credentials",
		TemplateData: map[string]interface{}{
			"Name":         name,
			"Email":        ce.Email,
			"TempPassword": ce.TempPassword,
			"MerkezNom":    mk.Nom,
			"LoginURL":     svc.conf.FrontendBaseURL + "/login",
		},
	})
	return true, nil
}
