package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/eleve"
	"github.com/maraakiz/maraakiz/core/merkez"
	"github.com/maraakiz/maraakiz/core/user"
)

var eleveOrderingFields = core.OrderingFields{
	"id":               "id",
	"nom":              "nom",
	"prenom":           "prenom",
	"statut":           "statut",
	"niveau":           "niveau",
	"date_inscription": "date_inscription",
	"created_at":       "created_at",
}

type eleveApi struct {
	svc       eleve.Service
	usrSvc    user.Service
	merkezSvc merkez.Service
	validate  *validator.Validate
}

func registerEleveAPI(g *echo.Group, auth []echo.MiddlewareFunc, deps ServerDeps) {
	api := eleveApi{
		svc:       deps.EleveSvc,
		usrSvc:    deps.UserSvc,
		merkezSvc: deps.MerkezSvc,
		validate:  deps.Validate,
	}

	eg := g.Group("/eleves", chain(auth, merkezMiddleware)...)
	eg.GET("", api.query)
	eg.POST("", api.create)
	eg.POST("/send-credentials-email", api.sendCredentials)
	eg.GET("/:id", api.retrieve)
	eg.PUT("/:id", api.update)
	eg.DELETE("/:id", api.destroy)
}

// ctxMerkezID returns the merkez of the authenticated user, set by merkezMiddleware.
func ctxMerkezID(ctx echo.Context) int {
	usr, _ := ctx.Get(contextUserKey).(user.User)
	return usr.CtxMerkezID()
}

// Handlers

func (api *eleveApi) query(ctx echo.Context) error {
	filter := eleve.QueryFilter{
		Statut: ctx.QueryParam("statut"),
		Search: ctx.QueryParam("search"),
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	eleves, err := api.svc.Query(
		ctx.Request().Context(),
		ctxMerkezID(ctx),
		filter,
		eleveOrderingFields.Clean(
			ordering.Orderings,
			core.DBOrdering{Field: "nom", Ascending: true},
			core.DBOrdering{Field: "prenom", Ascending: true},
		),
	)
	if err != nil {
		return errors.Wrap(err, "querying eleves")
	}
	if eleves == nil {
		eleves = []eleve.Eleve{}
	}
	return ctx.JSON(http.StatusOK, eleves)
}

func (api *eleveApi) create(ctx echo.Context) error {
	var data eleve.NewEleve
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEleve")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Create(ctx.Request().Context(), ctxMerkezID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating eleve")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *eleveApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	e, err := api.svc.Get(ctx.Request().Context(), ctxMerkezID(ctx), id)
	if err != nil {
		return errors.Wrap(err, "finding eleve")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *eleveApi) update(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}

	var data eleve.Update
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to eleve.Update")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.Update(ctx.Request().Context(), ctxMerkezID(ctx), id, data)
	if err != nil {
		return errors.Wrap(err, "updating eleve")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *eleveApi) destroy(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), ctxMerkezID(ctx), id); err != nil {
		return errors.Wrap(err, "deleting eleve")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *eleveApi) sendCredentials(ctx echo.Context) error {
	var data eleve.CredentialsEmail
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CredentialsEmail")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	mk, err := api.merkezSvc.GetByID(ctx.Request().Context(), ctxMerkezID(ctx))
	if err != nil {
		return errors.Wrap(err, "finding merkez")
	}
	sent, err := api.svc.SendCredentials(ctx.Request().Context(), mk, data)
	if err != nil {
		return errors.Wrap(err, "sending credentials")
	}
	if !sent {
		return ctx.JSON(http.StatusOK, echo.Map{"success": false, "message": "no email service is configured"})
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "message": "credentials sent to " + data.Email})
}
