package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maraakiz/maraakiz/core/cours"
	"github.com/maraakiz/maraakiz/core/user"
)

type coursApi struct {
	svc      cours.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerCoursAPI(g *echo.Group, auth []echo.MiddlewareFunc, deps ServerDeps) {
	api := coursApi{
		svc:      deps.CoursSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	cg := g.Group("/calendrier", chain(auth, merkezMiddleware)...)
	cg.GET("/cours", api.query)
	cg.POST("/cours", api.create)
	cg.POST("/cours/recurrent", api.createRecurrent)
	cg.GET("/cours/:id", api.retrieve)
	cg.PUT("/cours/:id", api.update)
	cg.DELETE("/cours/:id", api.destroy)

	cg.GET("/trames", api.queryTrames)
	cg.POST("/trames", api.createTrame)
	cg.DELETE("/trames/:id", api.destroyTrame)

	cg.GET("/google/auth-url", api.googleAuthURL)
	cg.POST("/google/callback", api.googleCallback)
	cg.POST("/google/disconnect", api.googleDisconnect)
	cg.GET("/google/status", api.googleStatus)
}

// Handlers

func (api *coursApi) query(ctx echo.Context) error {
	var (
		filter cours.QueryFilter
		err    error
	)
	if filter.StartDate, err = queryDate(ctx, "start_date"); err != nil {
		return err
	}
	if filter.EndDate, err = queryDate(ctx, "end_date"); err != nil {
		return err
	}
	filter.EleveID = queryInt(ctx, "eleve_id")
	filter.Statut = ctx.QueryParam("statut")

	crs, err := api.svc.Query(ctx.Request().Context(), ctxMerkezID(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "querying cours")
	}
	if crs == nil {
		crs = []cours.Cours{}
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *coursApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	c, err := api.svc.Get(ctx.Request().Context(), ctxMerkezID(ctx), id)
	if err != nil {
		return errors.Wrap(err, "finding cours")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *coursApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data cours.NewCours
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCours")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating cours")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *coursApi) createRecurrent(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data cours.NewRecurrentCours
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecurrentCours")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.CreateRecurrent(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating recurrent cours")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *coursApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}

	var data cours.Update
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to cours.Update")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Update(ctx.Request().Context(), usr, id, data)
	if err != nil {
		return errors.Wrap(err, "updating cours")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *coursApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, id, queryBool(ctx, "all_recurrences")); err != nil {
		return errors.Wrap(err, "deleting cours")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *coursApi) queryTrames(ctx echo.Context) error {
	trames, err := api.svc.QueryTrames(ctx.Request().Context(), ctxMerkezID(ctx))
	if err != nil {
		return errors.Wrap(err, "querying trames")
	}
	if trames == nil {
		trames = []cours.Trame{}
	}
	return ctx.JSON(http.StatusOK, trames)
}

func (api *coursApi) createTrame(ctx echo.Context) error {
	var data cours.NewTrame
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTrame")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.CreateTrame(ctx.Request().Context(), ctxMerkezID(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating trame")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *coursApi) destroyTrame(ctx echo.Context) error {
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.DeleteTrame(ctx.Request().Context(), ctxMerkezID(ctx), id); err != nil {
		return errors.Wrap(err, "deleting trame")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *coursApi) googleAuthURL(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	url, state, err := api.svc.GoogleAuthURL(usr)
	if err != nil {
		return errors.Wrap(err, "building google auth url")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"auth_url": url, "state": state})
}

func (api *coursApi) googleCallback(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data GoogleCallbackRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GoogleCallbackRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	if err = api.svc.GoogleCallback(ctx.Request().Context(), usr, data.Code, data.State); err != nil {
		return errors.Wrap(err, "connecting google calendar")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "message": "Google Calendar connected"})
}

func (api *coursApi) googleDisconnect(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.GoogleDisconnect(ctx.Request().Context(), usr); err != nil {
		return errors.Wrap(err, "disconnecting google calendar")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "message": "Google Calendar disconnected"})
}

func (api *coursApi) googleStatus(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, api.svc.GoogleStatus(usr))
}

type GoogleCallbackRequest struct {
	Code  string `json:"code" validate:"required"`
	State string `json:"state" validate:"required"`
}
