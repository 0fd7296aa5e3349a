package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/ressource"
	"github.com/maraakiz/maraakiz/core/user"
)

type ressourceApi struct {
	svc      ressource.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerRessourceAPI(g *echo.Group, auth []echo.MiddlewareFunc, deps ServerDeps) {
	api := ressourceApi{
		svc:      deps.RessourceSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	// un-authed endpoints
	g.GET("/bibliotheque/public/merkez/:merkez_id", api.queryPublic)

	bg := g.Group("/bibliotheque", auth...)
	bg.GET("/student/:eleve_id", api.queryForEleve)

	mg := bg.Group("", merkezMiddleware)
	mg.GET("", api.query)
	mg.GET("/folders", api.folders)
	mg.POST("/upload", api.upload)
	mg.GET("/:id", api.retrieve)
	mg.POST("/:id/download", api.download)
	mg.PUT("/:id", api.update)
	mg.DELETE("/:id", api.destroy)
}

// Handlers

func (api *ressourceApi) query(ctx echo.Context) error {
	filter := ressource.QueryFilter{
		Categorie: ctx.QueryParam("categorie"),
		Dossier:   ctx.QueryParam("dossier"),
	}
	res, err := api.svc.Query(ctx.Request().Context(), ctxMerkezID(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "querying ressources")
	}
	return ctx.JSON(http.StatusOK, nonNilRessources(res))
}

func (api *ressourceApi) folders(ctx echo.Context) error {
	folders, err := api.svc.Folders(ctx.Request().Context(), ctxMerkezID(ctx))
	if err != nil {
		return errors.Wrap(err, "querying folders")
	}
	if folders == nil {
		folders = []ressource.Folder{}
	}
	return ctx.JSON(http.StatusOK, folders)
}

func (api *ressourceApi) upload(ctx echo.Context) error {
	data := ressource.NewRessource{
		Titre:       ctx.FormValue("titre"),
		Description: ctx.FormValue("description"),
		AccesType:   ctx.FormValue("acces_type"),
		Tags:        splitList(ctx.FormValue("tags")),
		Dossier:     ctx.FormValue("dossier"),
	}
	for _, v := range splitList(ctx.FormValue("eleves_autorises")) {
		id, err := strconv.Atoi(v)
		if err != nil {
			return core.NewFieldError("eleves_autorises", "must be a comma separated list of eleve ids")
		}
		data.ElevesAutorises = append(data.ElevesAutorises, id)
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	up, closeFile, err := bindUpload(ctx, "file")
	if err != nil {
		return err
	}
	defer closeFile()

	r, err := api.svc.Upload(ctx.Request().Context(), ctxMerkezID(ctx), data, up)
	if err != nil {
		return errors.Wrap(err, "uploading ressource")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *ressourceApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	r, err := api.svc.Get(ctx.Request().Context(), ctxMerkezID(ctx), id)
	if err != nil {
		return errors.Wrap(err, "finding ressource")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *ressourceApi) download(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	url, err := api.svc.Download(ctx.Request().Context(), ctxMerkezID(ctx), id)
	if err != nil {
		return errors.Wrap(err, "downloading ressource")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"fichier_url": url})
}

func (api *ressourceApi) update(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}

	var data ressource.Update
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ressource.Update")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	r, err := api.svc.Update(ctx.Request().Context(), ctxMerkezID(ctx), id, data)
	if err != nil {
		return errors.Wrap(err, "updating ressource")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *ressourceApi) destroy(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), ctxMerkezID(ctx), id); err != nil {
		return errors.Wrap(err, "deleting ressource")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *ressourceApi) queryPublic(ctx echo.Context) error {
	merkezID, err := pathID(ctx, "merkez_id")
	if err != nil {
		return err
	}
	res, err := api.svc.QueryPublic(ctx.Request().Context(), merkezID)
	if err != nil {
		return errors.Wrap(err, "querying public ressources")
	}
	return ctx.JSON(http.StatusOK, nonNilRessources(res))
}

func (api *ressourceApi) queryForEleve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	eleveID, err := pathID(ctx, "eleve_id")
	if err != nil {
		return err
	}
	res, err := api.svc.QueryForEleve(ctx.Request().Context(), usr, eleveID)
	if err != nil {
		return errors.Wrap(err, "querying eleve ressources")
	}
	return ctx.JSON(http.StatusOK, nonNilRessources(res))
}

func nonNilRessources(res []ressource.Ressource) []ressource.Ressource {
	if res == nil {
		return []ressource.Ressource{}
	}
	return res
}
