package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pamaxie/Pamaxie.Scan-API/internal/auth"
	"github.com/pamaxie/Pamaxie.Scan-API/internal/logging"
)

type claimsContextKey string

const claimsKey claimsContextKey = "claims"

// AuthChecker is the upstream call the auth guard delegates the actual
// credential verification to; the bearer token's signature is never
// checked locally.
type AuthChecker interface {
	CheckAuth(ctx context.Context, bearer string) (bool, error)
	IsInternalAuth(ctx context.Context, bearer string) (bool, error)
}

// RequireAuth rejects a request that has no bearer header or one the
// Database API does not recognize. On success it stashes the raw token's
// parsed claims in the request context for downstream handlers.
func RequireAuth(checker AuthChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer, ok := bearerToken(r)
			if !ok {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			valid, err := checkAuthWithContext(r.Context(), checker, bearer)
			if err != nil || !valid {
				if err != nil {
					logging.Warn().Err(err).Msg("auth guard: upstream check failed")
				}
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			claims, err := auth.ParseClaims(bearer)
			if err != nil {
				logging.Warn().Err(err).Msg("auth guard: could not parse token claims")
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireInternal wraps RequireAuth's companion check: the caller must
// additionally be recognized as the system's own worker fleet, not merely
// an authenticated end user.
func RequireInternal(checker AuthChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer, ok := bearerToken(r)
			if !ok {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			internal, err := checker.IsInternalAuth(r.Context(), bearer)
			if err != nil || !internal {
				if err != nil {
					logging.Warn().Err(err).Msg("auth guard: internal check failed")
				}
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte("this endpoint is restricted to the internal worker fleet"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func checkAuthWithContext(ctx context.Context, checker AuthChecker, bearer string) (bool, error) {
	return checker.CheckAuth(ctx, bearer)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimPrefix(header, prefix)
	if token == "" {
		return "", false
	}
	return token, true
}

// ClaimsFromContext retrieves the claims RequireAuth stashed, if any.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}
