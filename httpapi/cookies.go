package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/neenza/offsetauth"
)

func newCookie(cfg offsetauth.CookieConfig, name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	}
}

func expiredCookie(cfg offsetauth.CookieConfig, name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	}
}

func (h *AuthHTTP) setAuthCookies(c echo.Context, pair offsetauth.TokenPair) {
	c.SetCookie(newCookie(h.cookies, h.cookies.AccessTokenName, pair.AccessToken, h.accessTTL))
	c.SetCookie(newCookie(h.cookies, h.cookies.SessionIDName, pair.SessionID, h.refreshTTL))
}

func (h *AuthHTTP) clearAuthCookies(c echo.Context) {
	c.SetCookie(expiredCookie(h.cookies, h.cookies.AccessTokenName))
	c.SetCookie(expiredCookie(h.cookies, h.cookies.SessionIDName))
}

func (h *AuthHTTP) sessionID(c echo.Context) string {
	ck, err := c.Cookie(h.cookies.SessionIDName)
	if err != nil {
		return ""
	}
	return ck.Value
}
