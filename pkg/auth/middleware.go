package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/biocompute/bcodb/pkg/httputil"
	"github.com/biocompute/bcodb/pkg/observability"
	"github.com/biocompute/bcodb/pkg/permissions"
)

// GroupResolver yields a user's group memberships. The groups service
// implements this.
type GroupResolver interface {
	MembershipsFor(ctx context.Context, username string) ([]string, error)
}

type identityKey struct{}

// IdentityFromContext returns the resolved caller, or the anonymous
// identity when no middleware ran.
func IdentityFromContext(ctx context.Context) permissions.Identity {
	if id, ok := ctx.Value(identityKey{}).(permissions.Identity); ok {
		return id
	}
	return permissions.Identity{Username: permissions.AnonUser}
}

// WithIdentity stores an identity in the context. Exposed for handler tests.
func WithIdentity(ctx context.Context, id permissions.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// Middleware resolves Bearer tokens into identities. Requests without an
// Authorization header proceed as the anonymous identity; requests with a
// bad token are rejected outright.
func Middleware(tokens *TokenService, groups GroupResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				ctx := WithIdentity(r.Context(), permissions.Identity{Username: permissions.AnonUser})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			plaintext, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || !strings.HasPrefix(plaintext, TokenPrefix) {
				httputil.WriteUnauthorized(w, "malformed authorization header")
				return
			}

			username, err := tokens.Validate(r.Context(), plaintext)
			if err != nil {
				if errors.Is(err, ErrInvalidToken) {
					httputil.WriteUnauthorized(w, "invalid token")
					return
				}
				observability.FromContext(r.Context()).WithError(err).Error("token validation faulted")
				httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
				return
			}

			memberships, err := groups.MembershipsFor(r.Context(), username)
			if err != nil {
				observability.FromContext(r.Context()).WithError(err).Error("membership resolution faulted")
				httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
				return
			}

			ctx := WithIdentity(r.Context(), permissions.Identity{Username: username, Groups: memberships})
			ctx = observability.WithUsername(ctx, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
