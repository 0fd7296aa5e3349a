package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maraakiz/maraakiz/core/abonnement"
)

type abonnementApi struct {
	svc      abonnement.Service
	validate *validator.Validate
}

func registerAbonnementAPI(g *echo.Group, auth []echo.MiddlewareFunc, deps ServerDeps) {
	api := abonnementApi{
		svc:      deps.AbonnementSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/abonnements", auth...)
	ag.GET("/me", api.queryOwn, merkezMiddleware)
	ag.POST("", api.create, adminMiddleware)
	ag.POST("/:id/cancel", api.cancel, adminMiddleware)
}

// Handlers

func (api *abonnementApi) queryOwn(ctx echo.Context) error {
	abos, err := api.svc.Query(ctx.Request().Context(), ctxMerkezID(ctx))
	if err != nil {
		return errors.Wrap(err, "querying abonnements")
	}
	if abos == nil {
		abos = []abonnement.Abonnement{}
	}
	return ctx.JSON(http.StatusOK, abos)
}

func (api *abonnementApi) create(ctx echo.Context) error {
	var data abonnement.NewAbonnement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAbonnement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	abo, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating abonnement")
	}
	return ctx.JSON(http.StatusCreated, abo)
}

func (api *abonnementApi) cancel(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	abo, err := api.svc.Cancel(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "cancelling abonnement")
	}
	return ctx.JSON(http.StatusOK, abo)
}
