// Package professeur manages the profs employed by an institut.
package professeur

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/merkez"
	"github.com/maraakiz/maraakiz/core/user"
)

var (
	ErrNotFound    = fmt.Errorf("professeur %w", core.ErrNotFound)
	ErrNotInstitut = errors.Wrap(core.ErrForbidden, "only an institut can manage profs")
)

type (
	// Professeur is a prof account with the merkez it owns.
	Professeur struct {
		user.User
		Merkez *merkez.Merkez `json:"merkez"`
	}

	NewProfesseur struct {
		Nom       string `json:"nom" validate:"required,notblank,max=255"`
		Email     string `json:"email" validate:"required,email,max=255"`
		Telephone string `json:"telephone" validate:"omitempty,max=50"`
		Genre     string `json:"genre" validate:"omitempty,max=20"`
	}

	Update struct {
		Nom       *string `json:"nom" validate:"omitempty,notblank,max=255"`
		Email     *string `json:"email" validate:"omitempty,email,max=255"`
		Telephone *string `json:"telephone" validate:"omitempty,max=50"`
		Genre     *string `json:"genre" validate:"omitempty,max=20"`
		IsActive  *bool   `json:"is_active"`
	}

	CreateResult struct {
		Professeur   Professeur `json:"professeur"`
		TempPassword string     `json:"temp_password"`
	}

	Repository interface {
		// QueryProfesseurs lists the users employed by institutID, with their merkez.
		QueryProfesseurs(ctx context.Context, institutID int) ([]Professeur, error)
	}

	Service interface {
		List(ctx context.Context, institut user.User) ([]Professeur, error)
		Create(ctx context.Context, institut user.User, np NewProfesseur) (CreateResult, error)
		Update(ctx context.Context, institut user.User, id int, upd Update) (Professeur, error)
		Delete(ctx context.Context, institut user.User, id int) error
	}

	service struct {
		repo      Repository
		usrSvc    user.Service
		merkezSvc merkez.Service
		mailSvc   core.EmailService
		conf      *core.Config
	}
)

func (np *NewProfesseur) Validate(validate *validator.Validate) error {
	np.Nom = core.StripTags(np.Nom)
	np.Email = core.CleanString(np.Email, true /* lower */)
	np.Telephone = core.StripTags(np.Telephone)
	np.Genre = core.CleanString(np.Genre, true /* lower */)
	return validate.Struct(np)
}

func (u *Update) Validate(validate *validator.Validate) error {
	u.Nom = core.StripTagsPtr(u.Nom)
	u.Telephone = core.StripTagsPtr(u.Telephone)
	if u.Email != nil {
		v := core.CleanString(*u.Email, true /* lower */)
		u.Email = &v
	}
	if u.Genre != nil {
		v := core.CleanString(*u.Genre, true /* lower */)
		u.Genre = &v
	}
	return validate.Struct(u)
}

func NewService(
	repo Repository,
	usrSvc user.Service,
	merkezSvc merkez.Service,
	mailSvc core.EmailService,
	conf *core.Config,
) Service {
	return &service{
		repo:      repo,
		usrSvc:    usrSvc,
		merkezSvc: merkezSvc,
		mailSvc:   mailSvc,
		conf:      conf,
	}
}

func (svc *service) checkInstitut(ctx context.Context, institut user.User) (merkez.Merkez, error) {
	if !institut.HasMerkez() {
		return merkez.Merkez{}, ErrNotInstitut
	}
	mk, err := svc.merkezSvc.GetByID(ctx, institut.CtxMerkezID())
	if err != nil {
		if core.IsNotFound(err) {
			return merkez.Merkez{}, ErrNotInstitut
		}
		return merkez.Merkez{}, err
	}
	if !mk.IsInstitut() {
		return merkez.Merkez{}, ErrNotInstitut
	}
	return mk, nil
}

func (svc *service) List(ctx context.Context, institut user.User) ([]Professeur, error) {
	if _, err := svc.checkInstitut(ctx, institut); err != nil {
		return nil, err
	}
	return svc.repo.QueryProfesseurs(ctx, institut.ID)
}

func (svc *service) get(ctx context.Context, institut user.User, id int) (Professeur, error) {
	usr, err := svc.usrSvc.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return Professeur{}, ErrNotFound
		}
		return Professeur{}, err
	}
	if !usr.InstitutID.Valid || usr.InstitutID.Int != institut.ID {
		return Professeur{}, ErrNotFound
	}
	prof := Professeur{User: usr}
	if usr.HasMerkez() {
		mk, err := svc.merkezSvc.GetByID(ctx, usr.CtxMerkezID())
		if err != nil && !core.IsNotFound(err) {
			return Professeur{}, err
		}
		if err == nil {
			prof.Merkez = &mk
		}
	}
	return prof, nil
}

func (svc *service) Create(ctx context.Context, institut user.User, np NewProfesseur) (CreateResult, error) {
	instMk, err := svc.checkInstitut(ctx, institut)
	if err != nil {
		return CreateResult{}, err
	}

	tempPwd := user.GenerateTempPassword(user.TempPasswordLength)
	avatar := user.ProfAvatarForGenre(np.Genre)
	usr := user.User{
		Email:      np.Email,
		Nom:        np.Nom,
		UserType:   user.TypeProf,
		InstitutID: null.IntFrom(institut.ID),
		Genre:      null.NewString(np.Genre, np.Genre != ""),
		AvatarURL:  null.NewString(avatar, avatar != ""),
		AvatarType: user.AvatarDefault,
	}
	mk := merkez.Merkez{
		Type:            merkez.TypeProfesseur,
		Nom:             np.Nom,
		Telephone:       null.NewString(np.Telephone, np.Telephone != ""),
		Verifie:         true,
		Nouveau:         false,
		AbonnementActif: true,
		Actif:           true,
	}
	usr, mk, err = svc.usrSvc.CreateWithMerkez(ctx, usr, tempPwd, mk)
	if err != nil {
		return CreateResult{}, err
	}

	if svc.mailSvc != nil {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Nom, Address: usr.Email}},
			Subject:      fmt.Sprintf("Votre compte professeur chez %s", instMk.Nom),
			TemplateName: "professeur_credentials",
			TemplateData: map[string]interface{}{
				"Name":         usr.Nom,
				"Email":        usr.Email,
				"TempPassword": tempPwd,
				"InstitutNom":  instMk.Nom,
				"LoginURL":     svc.conf.FrontendBaseURL + "/login",
			},
		})
	}

	return CreateResult{
		Professeur:   Professeur{User: usr, Merkez: &mk},
		TempPassword: tempPwd,
	}, nil
}

func (svc *service) Update(ctx context.Context, institut user.User, id int, upd Update) (Professeur, error) {
	if _, err := svc.checkInstitut(ctx, institut); err != nil {
		return Professeur{}, err
	}
	prof, err := svc.get(ctx, institut, id)
	if err != nil {
		return Professeur{}, err
	}

	usr := prof.User
	if upd.Email != nil && *upd.Email != usr.Email {
		if err = svc.usrSvc.CheckEmailUniqueness(ctx, *upd.Email, usr.ID); err != nil {
			return Professeur{}, err
		}
		usr.Email = *upd.Email
	}
	if upd.Nom != nil {
		usr.Nom = *upd.Nom
	}
	if upd.Genre != nil && *upd.Genre != usr.Genre.String {
		usr.Genre = null.NewString(*upd.Genre, *upd.Genre != "")
		if usr.AvatarType != user.AvatarCustom {
			avatar := user.ProfAvatarForGenre(*upd.Genre)
			usr.AvatarURL = null.NewString(avatar, avatar != "")
		}
	}
	if upd.IsActive != nil {
		usr.IsActive = *upd.IsActive
	}
	if prof.User, err = svc.usrSvc.Update(ctx, usr); err != nil {
		return Professeur{}, errors.Wrap(err, "updating prof user")
	}

	if prof.Merkez != nil && (upd.Nom != nil || upd.Telephone != nil || upd.Email != nil || upd.IsActive != nil) {
		mk := *prof.Merkez
		mk.Email = usr.Email
		if upd.IsActive != nil {
			mk.Actif = *upd.IsActive
		}
		mkUpd := merkez.Update{Nom: upd.Nom, Telephone: upd.Telephone}
		if mk, err = svc.merkezSvc.Update(ctx, mk, mkUpd); err != nil {
			return Professeur{}, errors.Wrap(err, "updating prof merkez")
		}
		prof.Merkez = &mk
	}
	return prof, nil
}

func (svc *service) Delete(ctx context.Context, institut user.User, id int) error {
	if _, err := svc.checkInstitut(ctx, institut); err != nil {
		return err
	}
	if _, err := svc.get(ctx, institut, id); err != nil {
		return err
	}
	return svc.usrSvc.Delete(ctx, id)
}
