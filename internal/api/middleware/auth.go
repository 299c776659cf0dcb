package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/terracast/terracast/internal/api/models"
	"github.com/terracast/terracast/internal/auth"
)

type claimsKey struct{}

// TokenAuthorizer validates bearer tokens. *auth.JWTService implements it.
type TokenAuthorizer interface {
	Authorize(token, scope string) (*auth.Claims, error)
}

// Auth requires a bearer token granting scope.
func Auth(authorizer TokenAuthorizer, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeUnauthorized(w, r, "missing or malformed bearer token")
				return
			}

			claims, err := authorizer.Authorize(token, scope)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrMissingScope):
					models.NewForbidden(GetRequestID(r.Context()), "token does not grant "+scope).
						WithInstance(r.URL.Path).
						Write(w)
				case errors.Is(err, auth.ErrAccessTokenExpired):
					writeUnauthorized(w, r, "access token has expired")
				default:
					writeUnauthorized(w, r, "invalid access token")
				}
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an Authorization header. The scheme
// is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="terracast"`)
	models.NewUnauthorized(GetRequestID(r.Context()), detail).
		WithInstance(r.URL.Path).
		Write(w)
}

// GetClaims returns the authenticated token claims, or nil.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims
}

// GetSubject returns the authenticated subject, or "".
func GetSubject(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.Subject
	}
	return ""
}
