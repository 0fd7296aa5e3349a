package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/message"
	"github.com/maraakiz/maraakiz/core/user"
)

type messageApi struct {
	svc      message.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerMessageAPI(g *echo.Group, auth []echo.MiddlewareFunc, deps ServerDeps) {
	api := messageApi{
		svc:      deps.MessageSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	mg := g.Group("/messages", auth...)
	mg.GET("/conversations", api.conversations)
	mg.GET("/conversation/:autre_user_id", api.thread)
	mg.POST("", api.send)
	mg.POST("/upload", api.sendFile)
	mg.PUT("/:id/read", api.markRead)
	mg.DELETE("/:id", api.destroy)
	mg.GET("/unread/count", api.unreadCount)
	mg.GET("/contacts", api.contacts)
}

// Handlers

func (api *messageApi) conversations(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	convs, err := api.svc.Conversations(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying conversations")
	}
	if convs == nil {
		convs = []message.Conversation{}
	}
	return ctx.JSON(http.StatusOK, convs)
}

func (api *messageApi) thread(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	otherID, err := pathID(ctx, "autre_user_id")
	if err != nil {
		return err
	}
	msgs, err := api.svc.Thread(ctx.Request().Context(), usr, otherID)
	if err != nil {
		return errors.Wrap(err, "querying conversation")
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *messageApi) send(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data message.NewMessage
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err = data.Validate(api.validate, false); err != nil {
		return err
	}

	m, err := api.svc.Send(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *messageApi) sendFile(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	destID, err := strconv.Atoi(ctx.FormValue("destinataire_id"))
	if err != nil {
		return core.NewFieldError("destinataire_id", "must be a user id")
	}
	data := message.NewMessage{
		DestinataireID: destID,
		Sujet:          ctx.FormValue("sujet"),
		Contenu:        ctx.FormValue("contenu"),
	}
	if err = data.Validate(api.validate, true); err != nil {
		return err
	}

	up, closeFile, err := bindUpload(ctx, "file")
	if err != nil {
		return err
	}
	defer closeFile()

	m, err := api.svc.SendFile(ctx.Request().Context(), usr, data, up)
	if err != nil {
		return errors.Wrap(err, "sending file message")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *messageApi) markRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	m, err := api.svc.MarkRead(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "marking message read")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *messageApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), usr, id); err != nil {
		return errors.Wrap(err, "archiving message")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *messageApi) unreadCount(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := api.svc.UnreadCount(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "counting unread messages")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"count": n})
}

func (api *messageApi) contacts(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	contacts, err := api.svc.Contacts(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying contacts")
	}
	if contacts == nil {
		contacts = []message.Contact{}
	}
	return ctx.JSON(http.StatusOK, contacts)
}
