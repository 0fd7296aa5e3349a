package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/merkez"
	"github.com/maraakiz/maraakiz/core/user"
)

var userOrderingFields = core.OrderingFields{
	"id":         "id",
	"nom":        "nom",
	"email":      "email",
	"user_type":  "user_type",
	"created_at": "created_at",
	"last_login": "last_login",
}

type userApi struct {
	conf      *core.Config
	svc       user.Service
	merkezSvc merkez.Service
	validate  *validator.Validate
}

func registerUserAPI(g *echo.Group, auth []echo.MiddlewareFunc, deps ServerDeps) {
	api := userApi{
		conf:      deps.Conf,
		svc:       deps.UserSvc,
		merkezSvc: deps.MerkezSvc,
		validate:  deps.Validate,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/login`, `/password-reset` & `/password-reset-confirm`
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag.GET("/me", api.me, auth...)
	ag.POST("/token-refresh", api.refreshToken, auth...)

	// admin endpoints
	ug := g.Group("/users", chain(auth, adminMiddleware)...)
	ug.GET("", api.query)
	ug.GET("/:id", api.retrieve)
	ug.PUT("/:id", api.update)
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewRegistration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRegistration")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	resp, err := api.tokenResponse(ctx, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, resp)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := authenticate(ctx, data.Email, data.Password, api.svc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	resp, err := api.tokenResponse(ctx, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	typ, err := api.accountType(ctx, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, MeResponse{
		ID:        usr.ID,
		Email:     usr.Email,
		Nom:       usr.Nom,
		Type:      typ,
		MerkezID:  usr.MerkezID,
		UserType:  usr.UserType,
		IsAdmin:   usr.IsAdmin,
		Genre:     usr.Genre,
		AvatarURL: usr.AvatarURL,
	})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc, api.conf)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"access_token": token, "token_type": "bearer"})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || core.IsNotFound(err)) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) query(ctx echo.Context) error {
	filter := user.QueryFilter{
		Search:   ctx.QueryParam("search"),
		UserType: ctx.QueryParam("user_type"),
	}
	if active, err := strconv.ParseBool(ctx.QueryParam("is_active")); err == nil {
		filter.IsActive = &active
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(
		ctx.Request().Context(),
		filter,
		userOrderingFields.Clean(ordering.Orderings, core.DBOrdering{Field: "id", Ascending: true}),
	)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) object(ctx echo.Context) (user.User, error) {
	id, err := pathID(ctx, "id")
	if err != nil {
		return user.User{}, err
	}
	usr, err := api.svc.GetByID(ctx.Request().Context(), id)
	return usr, errors.Wrap(err, "finding user by ID")
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := api.object(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, err := api.object(ctx)
	if err != nil {
		return err
	}

	var data ActivationRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ActivationRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	// Say No to Suicide! ctxUser cannot deactivate themselves
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.ID == ctxUsr.ID && !*data.IsActive {
		return errHttpForbidden
	}

	if usr, err = api.svc.SetActive(ctx.Request().Context(), usr, *data.IsActive); err != nil {
		return errors.Wrap(err, "setting user activation")
	}
	return ctx.JSON(http.StatusOK, usr)
}

// accountType is the merkez type for profs, the user type otherwise.
func (api *userApi) accountType(ctx echo.Context, usr user.User) (string, error) {
	if !usr.HasMerkez() {
		return usr.UserType, nil
	}
	mk, err := api.merkezSvc.GetByID(ctx.Request().Context(), usr.MerkezID.Int)
	if err != nil {
		return "", errors.Wrap(err, "finding user merkez")
	}
	return mk.Type, nil
}

func (api *userApi) tokenResponse(ctx echo.Context, usr user.User) (TokenResponse, error) {
	typ, err := api.accountType(ctx, usr)
	if err != nil {
		return TokenResponse{}, err
	}
	token, err := GenerateToken(GetUserClaims(usr, api.conf), api.conf.SecretKey)
	if err != nil {
		return TokenResponse{}, errors.Wrap(err, "generating token")
	}
	return TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User: TokenUser{
			ID:       usr.ID,
			Email:    usr.Email,
			Nom:      usr.Nom,
			Type:     typ,
			MerkezID: usr.MerkezID,
		},
	}, nil
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	TokenUser struct {
		ID       int      `json:"id"`
		Email    string   `json:"email"`
		Nom      string   `json:"nom"`
		Type     string   `json:"type"`
		MerkezID null.Int `json:"merkez_id"`
	}

	TokenResponse struct {
		AccessToken string    `json:"access_token"`
		TokenType   string    `json:"token_type"`
		User        TokenUser `json:"user"`
	}

	MeResponse struct {
		ID        int         `json:"id"`
		Email     string      `json:"email"`
		Nom       string      `json:"nom"`
		Type      string      `json:"type"`
		MerkezID  null.Int    `json:"merkez_id"`
		UserType  string      `json:"user_type"`
		IsAdmin   bool        `json:"is_admin"`
		Genre     null.String `json:"genre"`
		AvatarURL null.String `json:"avatar_url"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	ActivationRequest struct {
		IsActive *bool `json:"is_active" validate:"required"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
