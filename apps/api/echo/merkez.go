package echoapi

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/merkez"
	"github.com/maraakiz/maraakiz/core/user"
)

type merkezApi struct {
	svc      merkez.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerMerkezAPI(g *echo.Group, auth []echo.MiddlewareFunc, deps ServerDeps) {
	api := merkezApi{
		svc:      deps.MerkezSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	mg := g.Group("/merkez", auth...)
	mg.GET("/me", api.retrieveOwn)
	mg.PUT("/me", api.updateOwn, merkezMiddleware)

	// un-authed endpoints
	pg := g.Group("/public/merkez")
	pg.GET("", api.queryPublic)
	pg.GET("/:id", api.retrievePublic)
}

type (
	Badges struct {
		NouveauProf         bool `json:"nouveauProf"`
		PremierCoursGratuit bool `json:"premierCoursGratuit"`
	}

	// MerkezCard is a merkez as listed on the public search page.
	MerkezCard struct {
		ID       int                 `json:"id"`
		Type     string              `json:"type"`
		Nom      string              `json:"nom"`
		Image    string              `json:"image"`
		Note     float64             `json:"note"`
		NbAvis   int                 `json:"nbAvis"`
		Matieres core.StringList     `json:"matieres"`
		Format   string              `json:"format"`
		Langues  core.StringList     `json:"langues"`
		Niveaux  core.StringList     `json:"niveaux"`
		Prix     decimal.NullDecimal `json:"prix"`
		Verifie  bool                `json:"verifie"`
		Badges   Badges              `json:"badges"`
		Bio      string              `json:"bio"`
	}

	MerkezDetail struct {
		ID                   int    `json:"id"`
		Type                 string `json:"type"`
		Nom                  string `json:"nom"`
		Cursus               string `json:"cursus"`
		PresentationInstitut string `json:"presentationInstitut"`

		NombreProfesseurs              int `json:"nombreProfesseurs"`
		NombreSecretaires              int `json:"nombreSecretaires"`
		NombreSuperviseurs             int `json:"nombreSuperviseurs"`
		NombreResponsablesPedagogiques int `json:"nombreResponsablesPedagogiques"`
		NombreGestionnaires            int `json:"nombreGestionnaires"`

		Programme    string `json:"programme"`
		Livres       string `json:"livres"`
		Methodologie string `json:"methodologie"`
		Image        string `json:"image"`
		VideoURL     string `json:"videoUrl"`

		Matieres    core.StringList `json:"matieres"`
		Formats     core.StringList `json:"formats"`
		TypeClasse  core.StringList `json:"typeClasse"`
		Niveaux     core.StringList `json:"niveaux"`
		Langues     core.StringList `json:"langues"`
		PublicCible core.StringList `json:"publicCible"`

		PrixMin             decimal.NullDecimal `json:"prixMin"`
		PrixMax             decimal.NullDecimal `json:"prixMax"`
		PremierCoursGratuit bool                `json:"premierCoursGratuit"`

		Ville             string  `json:"ville"`
		Pays              string  `json:"pays"`
		NoteMoyenne       float64 `json:"noteMoyenne"`
		NombreAvis        int     `json:"nombreAvis"`
		Verifie           bool    `json:"verifie"`
		Nouveau           bool    `json:"nouveau"`
		NombreEleves      int     `json:"nombreEleves"`
		NombreCoursDonnes int     `json:"nombreCoursDonnes"`
	}
)

func newMerkezCard(mk merkez.Merkez) MerkezCard {
	return MerkezCard{
		ID:       mk.ID,
		Type:     mk.Type,
		Nom:      mk.Nom,
		Image:    mk.ImageURL.String,
		Note:     mk.NoteMoyenne,
		NbAvis:   mk.NombreAvis,
		Matieres: mk.Matieres,
		Format:   strings.Join(mk.Formats, ", "),
		Langues:  mk.Langues,
		Niveaux:  mk.Niveaux,
		Prix:     mk.PrixMin,
		Verifie:  mk.Verifie,
		Badges: Badges{
			NouveauProf:         mk.Nouveau,
			PremierCoursGratuit: mk.PremierCoursGratuit,
		},
		Bio: mk.Bio(),
	}
}

func newMerkezDetail(mk merkez.Merkez) MerkezDetail {
	return MerkezDetail{
		ID:                             mk.ID,
		Type:                           mk.Type,
		Nom:                            mk.Nom,
		Cursus:                         mk.Cursus.String,
		PresentationInstitut:           mk.PresentationInstitut.String,
		NombreProfesseurs:              mk.NombreProfesseurs,
		NombreSecretaires:              mk.NombreSecretaires,
		NombreSuperviseurs:             mk.NombreSuperviseurs,
		NombreResponsablesPedagogiques: mk.NombreResponsablesPedagogiques,
		NombreGestionnaires:            mk.NombreGestionnaires,
		Programme:                      mk.Programme.String,
		Livres:                         mk.Livres.String,
		Methodologie:                   mk.Methodologie.String,
		Image:                          mk.ImageURL.String,
		VideoURL:                       mk.PresentationVideoURL.String,
		Matieres:                       mk.Matieres,
		Formats:                        mk.Formats,
		TypeClasse:                     mk.TypeClasse,
		Niveaux:                        mk.Niveaux,
		Langues:                        mk.Langues,
		PublicCible:                    mk.PublicCible,
		PrixMin:                        mk.PrixMin,
		PrixMax:                        mk.PrixMax,
		PremierCoursGratuit:            mk.PremierCoursGratuit,
		Ville:                          mk.Ville.String,
		Pays:                           mk.Pays,
		NoteMoyenne:                    mk.NoteMoyenne,
		NombreAvis:                     mk.NombreAvis,
		Verifie:                        mk.Verifie,
		Nouveau:                        mk.Nouveau,
		NombreEleves:                   mk.NombreEleves,
		NombreCoursDonnes:              mk.NombreCoursDonnes,
	}
}

// Handlers

func (api *merkezApi) retrieveOwn(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !usr.HasMerkez() {
		return errHttpNotFound
	}
	mk, err := api.svc.GetByID(ctx.Request().Context(), usr.MerkezID.Int)
	if err != nil {
		return errors.Wrap(err, "finding merkez")
	}
	return ctx.JSON(http.StatusOK, mk)
}

func (api *merkezApi) updateOwn(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data merkez.Update
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to merkez.Update")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	mk, err := api.svc.GetByID(ctx.Request().Context(), usr.MerkezID.Int)
	if err != nil {
		return errors.Wrap(err, "finding merkez")
	}
	if mk, err = api.svc.Update(ctx.Request().Context(), mk, data); err != nil {
		return errors.Wrap(err, "updating merkez")
	}
	return ctx.JSON(http.StatusOK, mk)
}

func (api *merkezApi) queryPublic(ctx echo.Context) error {
	params := ctx.QueryParams()
	filter := merkez.PublicFilter{
		Types:    params["type"],
		Matieres: params["matiere"],
		Formats:  params["format"],
		Niveaux:  params["niveau"],
	}

	merkezs, err := api.svc.QueryPublic(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying public merkez")
	}
	cards := make([]MerkezCard, len(merkezs))
	for i, mk := range merkezs {
		cards[i] = newMerkezCard(mk)
	}
	return ctx.JSON(http.StatusOK, cards)
}

func (api *merkezApi) retrievePublic(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	mk, err := api.svc.GetPublic(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding public merkez")
	}
	return ctx.JSON(http.StatusOK, newMerkezDetail(mk))
}
