package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maraakiz/maraakiz/core/note"
	"github.com/maraakiz/maraakiz/core/user"
)

type noteApi struct {
	svc      note.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerNoteAPI(g *echo.Group, auth []echo.MiddlewareFunc, deps ServerDeps) {
	api := noteApi{
		svc:      deps.NoteSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	ng := g.Group("/notes-cours", auth...)
	ng.GET("/cours/:cours_id", api.retrieveByCours)
	ng.GET("/eleve/:eleve_id", api.queryByEleve)
	ng.POST("", api.create, merkezMiddleware)
	ng.PUT("/:id", api.update, merkezMiddleware)
	ng.DELETE("/:id", api.destroy, merkezMiddleware)
	ng.POST("/:id/upload", api.upload, merkezMiddleware)
}

// Handlers

func (api *noteApi) retrieveByCours(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	coursID, err := pathID(ctx, "cours_id")
	if err != nil {
		return err
	}
	n, err := api.svc.GetByCours(ctx.Request().Context(), usr, coursID)
	if err != nil {
		return errors.Wrap(err, "finding cours note")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *noteApi) queryByEleve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	eleveID, err := pathID(ctx, "eleve_id")
	if err != nil {
		return err
	}
	notes, err := api.svc.QueryByEleve(ctx.Request().Context(), usr, eleveID)
	if err != nil {
		return errors.Wrap(err, "querying eleve notes")
	}
	if notes == nil {
		notes = []note.Note{}
	}
	return ctx.JSON(http.StatusOK, notes)
}

func (api *noteApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data note.NewNote
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNote")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	n, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating note")
	}
	return ctx.JSON(http.StatusCreated, n)
}

func (api *noteApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}

	var data note.Contents
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to note.Contents")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	n, err := api.svc.Update(ctx.Request().Context(), usr, id, data)
	if err != nil {
		return errors.Wrap(err, "updating note")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *noteApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, id); err != nil {
		return errors.Wrap(err, "deleting note")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *noteApi) upload(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}

	up, closeFile, err := bindUpload(ctx, "file")
	if err != nil {
		return err
	}
	defer closeFile()

	n, err := api.svc.AddFichier(ctx.Request().Context(), usr, id, up)
	if err != nil {
		return errors.Wrap(err, "attaching note file")
	}
	return ctx.JSON(http.StatusOK, n)
}
