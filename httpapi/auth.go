package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/neenza/offsetauth"
	"github.com/neenza/offsetauth/internal/logging"
	authmw "github.com/neenza/offsetauth/middleware"
)

type AuthHTTP struct {
	Engine *offsetauth.Engine

	cookies    offsetauth.CookieConfig
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthHTTP(engine *offsetauth.Engine) *AuthHTTP {
	cfg := engine.Config()
	return &AuthHTTP{
		Engine:     engine,
		cookies:    cfg.Cookie,
		accessTTL:  cfg.JWT.AccessTTL,
		refreshTTL: cfg.JWT.RefreshTTL,
	}
}

type credentialsRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type registerRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	FullName string `json:"full_name" form:"full_name"`
	Password string `json:"password" form:"password"`
}

type tokenResponse struct {
	Success     bool                    `json:"success"`
	Message     string                  `json:"message"`
	AccessToken string                  `json:"access_token,omitempty"`
	TokenType   string                  `json:"token_type,omitempty"`
	ExpiresIn   int                     `json:"expires_in"`
	User        *offsetauth.UserProfile `json:"user,omitempty"`
}

// tokenResponse carries the access token in the body only when
// Cookie.ExposeAccessTokenInBody is set; otherwise it lives in the HttpOnly
// cookie alone.
func (h *AuthHTTP) tokenResponse(message, accessToken string) tokenResponse {
	resp := tokenResponse{
		Success:   true,
		Message:   message,
		ExpiresIn: int(h.accessTTL.Seconds()),
	}
	if h.cookies.ExposeAccessTokenInBody {
		resp.AccessToken = accessToken
		resp.TokenType = "bearer"
	}
	return resp
}

// Login accepts OAuth2 password-form fields or a JSON body.
func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Engine.Login(ctx, req.Username, req.Password)
	if err != nil {
		he := statusFor(err)
		if he.Code == http.StatusUnauthorized {
			c.Response().Header().Set("WWW-Authenticate", "Bearer")
		}
		l.Warn("login_failed", "status", he.Code, "username", req.Username, "error", err)
		return he
	}

	h.setAuthCookies(c, res.TokenPair)
	l.Info("login_successful", "username", res.User.Username)

	resp := h.tokenResponse("Login successful", res.AccessToken)
	resp.User = &res.User
	return c.JSON(http.StatusOK, resp)
}

// Refresh rotates the session named by the session cookie. Any rejection
// clears both cookies.
func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	sessionID := h.sessionID(c)
	if sessionID == "" {
		h.clearAuthCookies(c)
		return echo.NewHTTPError(http.StatusUnauthorized, msgSessionInvalid)
	}

	pair, err := h.Engine.Refresh(ctx, sessionID)
	if err != nil {
		if errors.Is(err, offsetauth.ErrSessionInvalid) {
			reason, _ := offsetauth.SessionRejectReason(err)
			h.clearAuthCookies(c)
			l.Warn("refresh_rejected", "reason", reason)
			return statusFor(err)
		}
		l.Error("refresh_failed", "error", err)
		return statusFor(err)
	}

	h.setAuthCookies(c, *pair)
	return c.JSON(http.StatusOK, h.tokenResponse("Token refreshed", pair.AccessToken))
}

// Logout always clears the cookies. It fails only when the session store
// errors.
func (h *AuthHTTP) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	h.clearAuthCookies(c)

	if sessionID := h.sessionID(c); sessionID != "" {
		if err := h.Engine.Logout(ctx, sessionID); err != nil {
			l.Error("logout_failed", "status", 500, "reason", "cannot terminate session", "error", err)
			return statusFor(err)
		}
	}

	l.Info("successful_logout")
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Logged out",
	})
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	profile, err := h.Engine.Register(ctx, offsetauth.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	})
	if err != nil {
		he := statusFor(err)
		l.Warn("register_failed", "status", he.Code, "username", req.Username, "error", err)
		return he
	}

	l.Info("register_successful", "username", profile.Username)
	return c.JSON(http.StatusCreated, profile)
}

// Me returns the profile of the caller proven by the guard.
func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()

	p, ok := authmw.PrincipalFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, msgUnauthorized)
	}

	profile, err := h.Engine.Profile(ctx, p.Username)
	if err != nil {
		return statusFor(err)
	}
	return c.JSON(http.StatusOK, profile)
}

// SessionStatus inspects the session cookie without binding or rotating
// it. A rejected session clears both cookies.
func (h *AuthHTTP) SessionStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "session_status")

	sessionID := h.sessionID(c)
	if sessionID == "" {
		h.clearAuthCookies(c)
		return echo.NewHTTPError(http.StatusUnauthorized, msgSessionInvalid)
	}

	status, err := h.Engine.SessionStatus(ctx, sessionID)
	if err != nil {
		if errors.Is(err, offsetauth.ErrSessionInvalid) {
			reason, _ := offsetauth.SessionRejectReason(err)
			h.clearAuthCookies(c)
			l.Warn("session_status_rejected", "reason", reason)
		}
		return statusFor(err)
	}
	return c.JSON(http.StatusOK, status)
}
