package echoapi

import (
	"net/http"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusUnauthorized, "incorrect email or password")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errNoMerkez             = echo.NewHTTPError(http.StatusForbidden, "no merkez is associated with this account")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// errorResponse maps err to the status code and body sent to the client.
// The bool reports whether err is unexpected, ie. a server error.
func errorResponse(err error, translator ut.Translator) (int, interface{}, bool) {
	switch origErr := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if origErr == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, origErr.Message, false
		}
		if origErr.Internal != nil {
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
		}
		return origErr.Code, origErr.Message, false
	case validator.ValidationErrors:
		fldErrs := make(map[string]string, len(origErr))
		for _, vErr := range origErr {
			fldErrs[vErr.Field()] = vErr.Translate(translator)
		}
		return http.StatusBadRequest, fldErrs, false
	case *core.ValidationError:
		if origErr.Fields != nil {
			fldErrs := make(map[string]string, len(origErr.Fields))
			for _, fErr := range origErr.Fields {
				fldErrs[fErr.Field] = fErr.Error
			}
			return http.StatusBadRequest, fldErrs, false
		}
		return http.StatusBadRequest, origErr.Error(), false
	}

	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, sentinelMessage(err, core.ErrNotFound), false
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, sentinelMessage(err, core.ErrForbidden), false
	case errors.Is(err, core.ErrGone):
		return http.StatusGone, sentinelMessage(err, core.ErrGone), false
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), true
}

// sentinelMessage returns the innermost message wrapping sentinel, without the sentinel's own text.
// Context added by the upper layers is dropped.
func sentinelMessage(err, sentinel error) string {
	msg := sentinel.Error()
	for e := err; e != nil && e != sentinel; e = errors.Unwrap(e) {
		msg = strings.TrimSuffix(e.Error(), ": "+sentinel.Error())
	}
	return msg
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, message, unexpected := errorResponse(err, translator)

		if unexpected {
			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.UserID
				usr.Email = claims.Email
			}
			logger.Error(message.(string), errors.Wrap(err, message.(string)), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && unexpected {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
