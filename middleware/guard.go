package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/neenza/offsetauth"
)

// Principal is the caller identity proven by a valid access token.
type Principal struct {
	Username    string
	AccessToken string
}

type principalContextKey struct{}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// Guard verifies the access token and stores the Principal in the request
// context. The Authorization bearer header wins over the access cookie.
// Session state is not consulted.
func Guard(engine *offsetauth.Engine) func(http.Handler) http.Handler {
	cookieName := ""
	if engine != nil {
		cookieName = engine.Config().Cookie.AccessTokenName
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				unauthorized(w)
				return
			}

			token, ok := AccessToken(r, cookieName)
			if !ok {
				unauthorized(w)
				return
			}

			username, err := engine.VerifyAccess(token)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := WithPrincipal(r.Context(), Principal{Username: username, AccessToken: token})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessToken extracts the access token from the bearer header, falling
// back to the named cookie.
func AccessToken(r *http.Request, cookieName string) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		return bearerToken(h)
	}
	if cookieName == "" {
		return "", false
	}
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
