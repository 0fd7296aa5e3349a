package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maraakiz/maraakiz/core/professeur"
	"github.com/maraakiz/maraakiz/core/user"
)

type professeurApi struct {
	svc      professeur.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerProfesseurAPI(g *echo.Group, auth []echo.MiddlewareFunc, deps ServerDeps) {
	api := professeurApi{
		svc:      deps.ProfesseurSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	pg := g.Group("/professeurs", chain(auth, merkezMiddleware)...)
	pg.GET("", api.query)
	pg.POST("", api.create)
	pg.PUT("/:id", api.update)
	pg.DELETE("/:id", api.destroy)
}

// Handlers

func (api *professeurApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	profs, err := api.svc.List(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing professeurs")
	}
	if profs == nil {
		profs = []professeur.Professeur{}
	}
	return ctx.JSON(http.StatusOK, profs)
}

func (api *professeurApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data professeur.NewProfesseur
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProfesseur")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating professeur")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *professeurApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}

	var data professeur.Update
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to professeur.Update")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	prof, err := api.svc.Update(ctx.Request().Context(), usr, id, data)
	if err != nil {
		return errors.Wrap(err, "updating professeur")
	}
	return ctx.JSON(http.StatusOK, prof)
}

func (api *professeurApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, id); err != nil {
		return errors.Wrap(err, "deleting professeur")
	}
	return ctx.NoContent(http.StatusNoContent)
}
