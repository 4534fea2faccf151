package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/neenza/offsetauth"
)

const (
	msgBadCredentials = "Incorrect username or password"
	msgInactiveUser   = "Inactive user"
	msgSessionInvalid = "Session invalid"
	msgUnauthorized   = "Could not validate credentials"
	msgUsernameExists = "username_exists"
)

// statusFor maps engine errors to the HTTP error returned to the client.
// Session rejections are checked before ErrUnauthorized since a
// *SessionError matches both.
func statusFor(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, offsetauth.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, msgBadCredentials)
	case errors.Is(err, offsetauth.ErrAccountDisabled):
		return echo.NewHTTPError(http.StatusBadRequest, msgInactiveUser)
	case errors.Is(err, offsetauth.ErrSessionInvalid):
		return echo.NewHTTPError(http.StatusUnauthorized, msgSessionInvalid)
	case errors.Is(err, offsetauth.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, msgUnauthorized)
	case errors.Is(err, offsetauth.ErrAccountExists):
		return echo.NewHTTPError(http.StatusConflict, msgUsernameExists)
	case errors.Is(err, offsetauth.ErrInvalidRegistration):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid registration")
	case errors.Is(err, offsetauth.ErrEngineNotReady):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "service unavailable")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}
