package echoapi

import (
	"encoding/json"
	"io/ioutil"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/merkez"
	"github.com/maraakiz/maraakiz/core/user"
)

type profileApi struct {
	svc       user.Service
	merkezSvc merkez.Service
	validate  *validator.Validate
}

func registerProfileAPI(g *echo.Group, auth []echo.MiddlewareFunc, deps ServerDeps) {
	api := profileApi{
		svc:       deps.UserSvc,
		merkezSvc: deps.MerkezSvc,
		validate:  deps.Validate,
	}

	pg := g.Group("/profile", auth...)
	pg.GET("", api.retrieve)
	pg.PUT("", api.update)
	pg.POST("/avatar/upload", api.uploadAvatar)
	pg.DELETE("/avatar", api.deleteAvatar)
	pg.GET("/complete", api.retrieveComplete)
	pg.PUT("/complete", api.updateComplete)
}

type (
	ProfileResponse struct {
		ID         int         `json:"id"`
		Email      string      `json:"email"`
		Nom        string      `json:"nom"`
		UserType   string      `json:"user_type"`
		MerkezID   null.Int    `json:"merkez_id"`
		Genre      null.String `json:"genre"`
		AvatarURL  null.String `json:"avatar_url"`
		AvatarType string      `json:"avatar_type"`
	}

	// CompleteProfile is the profile plus the editable fields of the user's merkez.
	CompleteProfile struct {
		ProfileResponse

		Telephone null.String `json:"telephone"`
		SiteWeb   null.String `json:"site_web"`
		Facebook  null.String `json:"facebook"`
		Instagram null.String `json:"instagram"`
		Linkedin  null.String `json:"linkedin"`
		Twitter   null.String `json:"twitter"`
		Youtube   null.String `json:"youtube"`

		Cursus               null.String `json:"cursus"`
		Programme            null.String `json:"programme"`
		Livres               null.String `json:"livres"`
		Methodologie         null.String `json:"methodologie"`
		PresentationInstitut null.String `json:"presentation_institut"`

		Matieres    core.StringList `json:"matieres"`
		Formats     core.StringList `json:"formats"`
		TypeClasse  core.StringList `json:"type_classe"`
		Niveaux     core.StringList `json:"niveaux"`
		Langues     core.StringList `json:"langues"`
		PublicCible core.StringList `json:"public_cible"`

		PrixMin             decimal.NullDecimal `json:"prix_min"`
		PrixMax             decimal.NullDecimal `json:"prix_max"`
		PremierCoursGratuit null.Bool           `json:"premier_cours_gratuit"`

		Ville   null.String `json:"ville"`
		Pays    null.String `json:"pays"`
		Adresse null.String `json:"adresse"`
	}
)

func newProfileResponse(usr user.User) ProfileResponse {
	return ProfileResponse{
		ID:         usr.ID,
		Email:      usr.Email,
		Nom:        usr.Nom,
		UserType:   usr.UserType,
		MerkezID:   usr.MerkezID,
		Genre:      usr.Genre,
		AvatarURL:  usr.AvatarURL,
		AvatarType: usr.AvatarType,
	}
}

func newCompleteProfile(usr user.User, mk *merkez.Merkez) CompleteProfile {
	cp := CompleteProfile{ProfileResponse: newProfileResponse(usr)}
	if mk == nil {
		empty := core.StringList{}
		cp.Matieres, cp.Formats, cp.TypeClasse = empty, empty, empty
		cp.Niveaux, cp.Langues, cp.PublicCible = empty, empty, empty
		return cp
	}
	cp.Telephone = mk.Telephone
	cp.SiteWeb = mk.SiteWeb
	cp.Facebook = mk.Facebook
	cp.Instagram = mk.Instagram
	cp.Linkedin = mk.Linkedin
	cp.Twitter = mk.Twitter
	cp.Youtube = mk.Youtube
	cp.Cursus = mk.Cursus
	cp.Programme = mk.Programme
	cp.Livres = mk.Livres
	cp.Methodologie = mk.Methodologie
	cp.PresentationInstitut = mk.PresentationInstitut
	cp.Matieres = mk.Matieres
	cp.Formats = mk.Formats
	cp.TypeClasse = mk.TypeClasse
	cp.Niveaux = mk.Niveaux
	cp.Langues = mk.Langues
	cp.PublicCible = mk.PublicCible
	cp.PrixMin = mk.PrixMin
	cp.PrixMax = mk.PrixMax
	cp.PremierCoursGratuit = null.BoolFrom(mk.PremierCoursGratuit)
	cp.Ville = mk.Ville
	cp.Pays = null.StringFrom(mk.Pays)
	cp.Adresse = mk.Adresse
	return cp
}

// Handlers

func (api *profileApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, newProfileResponse(usr))
}

func (api *profileApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.ProfileUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProfileUpdate")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if usr, err = api.svc.UpdateProfile(ctx.Request().Context(), usr, data); err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, newProfileResponse(usr))
}

func (api *profileApi) uploadAvatar(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !usr.IsProf() {
		return errors.Wrap(core.ErrForbidden, "only profs can upload an avatar")
	}

	up, closeFile, err := bindUpload(ctx, "file")
	if err != nil {
		return err
	}
	defer closeFile()

	if usr, err = api.svc.SetAvatar(ctx.Request().Context(), usr, up); err != nil {
		return errors.Wrap(err, "setting avatar")
	}
	return ctx.JSON(http.StatusOK, newProfileResponse(usr))
}

func (api *profileApi) deleteAvatar(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr, err = api.svc.DeleteAvatar(ctx.Request().Context(), usr); err != nil {
		return errors.Wrap(err, "deleting avatar")
	}
	return ctx.JSON(http.StatusOK, newProfileResponse(usr))
}

func (api *profileApi) userMerkez(ctx echo.Context, usr user.User) (*merkez.Merkez, error) {
	if !usr.HasMerkez() {
		return nil, nil
	}
	mk, err := api.merkezSvc.GetByID(ctx.Request().Context(), usr.MerkezID.Int)
	if err != nil {
		return nil, errors.Wrap(err, "finding user merkez")
	}
	return &mk, nil
}

func (api *profileApi) retrieveComplete(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	mk, err := api.userMerkez(ctx, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newCompleteProfile(usr, mk))
}

func (api *profileApi) updateComplete(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	// the same document carries the user and the merkez fields
	body, err := ioutil.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading request body")
	}
	var (
		pu user.ProfileUpdate
		mu merkez.Update
	)
	if err = json.Unmarshal(body, &pu); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body").SetInternal(err)
	}
	if err = json.Unmarshal(body, &mu); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body").SetInternal(err)
	}
	if err = pu.Validate(api.validate); err != nil {
		return err
	}
	if err = mu.Validate(api.validate); err != nil {
		return err
	}

	if usr, err = api.svc.UpdateProfile(ctx.Request().Context(), usr, pu); err != nil {
		return errors.Wrap(err, "updating profile")
	}
	mk, err := api.userMerkez(ctx, usr)
	if err != nil {
		return err
	}
	if mk != nil {
		updated, err := api.merkezSvc.Update(ctx.Request().Context(), *mk, mu)
		if err != nil {
			return errors.Wrap(err, "updating merkez")
		}
		mk = &updated
	}
	return ctx.JSON(http.StatusOK, newCompleteProfile(usr, mk))
}
