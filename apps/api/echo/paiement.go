package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/maraakiz/maraakiz/core/paiement"
)

type paiementApi struct {
	svc      paiement.Service
	validate *validator.Validate
}

func registerPaiementAPI(g *echo.Group, auth []echo.MiddlewareFunc, deps ServerDeps) {
	api := paiementApi{
		svc:      deps.PaiementSvc,
		validate: deps.Validate,
	}

	// un-authed endpoints, reached through the payment link
	g.GET("/paiements/pay/:token", api.retrievePublic)
	g.POST("/paiements/pay/:token/confirm", api.confirm)

	pg := g.Group("/paiements", chain(auth, merkezMiddleware)...)
	pg.GET("", api.query)
	pg.POST("", api.create)
	pg.GET("/student/:eleve_id", api.queryByEleve)
	pg.POST("/archive-month", api.archiveMonth)
	pg.POST("/unarchive-month", api.unarchiveMonth)
	pg.GET("/archived-months", api.archivedMonths)
	pg.GET("/stats/overview", api.stats)
	pg.POST("/reminders", api.sendReminders)
	pg.PUT("/:id", api.update)
	pg.DELETE("/:id", api.destroy)
	pg.POST("/:id/mark-paid", api.markPaid)
	pg.POST("/:id/add-partial", api.addPartial)
	pg.POST("/:id/send-link", api.sendLink)
}

// Handlers

func (api *paiementApi) query(ctx echo.Context) error {
	filter := paiement.QueryFilter{
		EleveID:         queryInt(ctx, "eleve_id"),
		Statut:          ctx.QueryParam("statut"),
		Mois:            queryInt(ctx, "mois"),
		Annee:           queryInt(ctx, "annee"),
		IncludeArchived: queryBool(ctx, "include_archived"),
	}
	details, err := api.svc.Query(ctx.Request().Context(), ctxMerkezID(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "querying paiements")
	}
	if details == nil {
		details = []paiement.Detail{}
	}
	return ctx.JSON(http.StatusOK, details)
}

func (api *paiementApi) queryByEleve(ctx echo.Context) error {
	eleveID, err := pathID(ctx, "eleve_id")
	if err != nil {
		return err
	}
	details, err := api.svc.QueryByEleve(ctx.Request().Context(), ctxMerkezID(ctx), eleveID)
	if err != nil {
		return errors.Wrap(err, "querying eleve paiements")
	}
	if details == nil {
		details = []paiement.Detail{}
	}
	return ctx.JSON(http.StatusOK, details)
}

func (api *paiementApi) create(ctx echo.Context) error {
	var data paiement.NewPaiement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPaiement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), ctxMerkezID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating paiement")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *paiementApi) update(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}

	var data paiement.Update
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to paiement.Update")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Update(ctx.Request().Context(), ctxMerkezID(ctx), id, data)
	if err != nil {
		return errors.Wrap(err, "updating paiement")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *paiementApi) markPaid(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	methode := ctx.QueryParam("methode_paiement")
	if methode == "" {
		methode = paiement.MethodeEspeces
	}
	p, err := api.svc.MarkPaid(ctx.Request().Context(), ctxMerkezID(ctx), id, methode)
	if err != nil {
		return errors.Wrap(err, "marking paiement paid")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *paiementApi) addPartial(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}

	// the payments page sends the partial payment as query params, with no body
	var data paiement.PartialPayment
	if data.Montant, err = queryDecimal(ctx, "montant", decimal.Zero); err != nil {
		return err
	}
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PartialPayment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.AddPartial(ctx.Request().Context(), ctxMerkezID(ctx), id, data)
	if err != nil {
		return errors.Wrap(err, "adding partial payment")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *paiementApi) destroy(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), ctxMerkezID(ctx), id); err != nil {
		return errors.Wrap(err, "deleting paiement")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *paiementApi) bindMonth(ctx echo.Context) (paiement.MonthRequest, error) {
	var data paiement.MonthRequest
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to MonthRequest")
	}
	return data, data.Validate(api.validate)
}

func (api *paiementApi) archiveMonth(ctx echo.Context) error {
	data, err := api.bindMonth(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.ArchiveMonth(ctx.Request().Context(), ctxMerkezID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "archiving month")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"archived": n})
}

func (api *paiementApi) unarchiveMonth(ctx echo.Context) error {
	data, err := api.bindMonth(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.UnarchiveMonth(ctx.Request().Context(), ctxMerkezID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "unarchiving month")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"unarchived": n})
}

func (api *paiementApi) archivedMonths(ctx echo.Context) error {
	months, err := api.svc.ArchivedMonths(ctx.Request().Context(), ctxMerkezID(ctx))
	if err != nil {
		return errors.Wrap(err, "querying archived months")
	}
	if months == nil {
		months = []paiement.ArchivedMonth{}
	}
	return ctx.JSON(http.StatusOK, months)
}

func (api *paiementApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context(), ctxMerkezID(ctx))
	if err != nil {
		return errors.Wrap(err, "computing paiement stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *paiementApi) sendLink(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	res, err := api.svc.SendLink(ctx.Request().Context(), ctxMerkezID(ctx), id)
	if err != nil {
		return errors.Wrap(err, "sending payment link")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *paiementApi) sendReminders(ctx echo.Context) error {
	n, err := api.svc.SendReminders(ctx.Request().Context(), ctxMerkezID(ctx))
	if err != nil {
		return errors.Wrap(err, "sending reminders")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"sent": n})
}

func (api *paiementApi) retrievePublic(ctx echo.Context) error {
	pub, err := api.svc.GetPublic(ctx.Request().Context(), ctx.Param("token"))
	if err != nil {
		return errors.Wrap(err, "finding paiement by link")
	}
	return ctx.JSON(http.StatusOK, pub)
}

func (api *paiementApi) confirm(ctx echo.Context) error {
	var data paiement.Confirmation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Confirmation")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	pub, err := api.svc.Confirm(ctx.Request().Context(), ctx.Param("token"), data)
	if err != nil {
		return errors.Wrap(err, "confirming payment")
	}
	return ctx.JSON(http.StatusOK, pub)
}
